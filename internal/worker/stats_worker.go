package worker

import (
	"context"
	"log/slog"
	"sync"

	"treasure-map/internal/domain/rating"
)

// Tally counts confirmed mutations for one kind.
type Tally struct {
	Adds    int64 `json:"adds"`
	Removes int64 `json:"removes"`
	Edits   int64 `json:"edits"`
}

type StatsWorker struct {
	Ch     <-chan rating.Event
	logger *slog.Logger

	mu      sync.RWMutex
	tallies map[rating.Kind]Tally
}

func NewStatsWorker(ch <-chan rating.Event, logger *slog.Logger) *StatsWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsWorker{
		Ch:      ch,
		logger:  logger,
		tallies: make(map[rating.Kind]Tally),
	}
}

func (w *StatsWorker) Run(ctx context.Context) {
	w.logger.Info("stats worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stats worker stopped")
			return
		case ev, ok := <-w.Ch:
			if !ok {
				w.logger.Info("stats worker channel closed")
				return
			}
			w.record(ev)
			w.logger.Debug("rating event",
				"kind", ev.Kind,
				"target_id", ev.TargetID,
				"operation", ev.Operation,
				"count", ev.Count,
			)
		}
	}
}

func (w *StatsWorker) record(ev rating.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	t := w.tallies[ev.Kind]
	switch ev.Operation {
	case rating.OpAdd:
		t.Adds++
	case rating.OpRemove:
		t.Removes++
	case rating.OpEdit:
		t.Edits++
	default:
		return
	}
	w.tallies[ev.Kind] = t
}

// Snapshot returns a copy of the tallies seen so far.
func (w *StatsWorker) Snapshot() map[rating.Kind]Tally {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make(map[rating.Kind]Tally, len(w.tallies))
	for k, v := range w.tallies {
		out[k] = v
	}
	return out
}
