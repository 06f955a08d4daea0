package worker

import (
	"context"
	"log/slog"
	"time"
)

// Purger drops expired rows. Stores that expire entries on their own
// (redis, the in-memory LRU) do not need one.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type Janitor struct {
	purger   Purger
	interval time.Duration
	logger   *slog.Logger
}

func NewJanitor(p Purger, interval time.Duration, logger *slog.Logger) *Janitor {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{purger: p, interval: interval, logger: logger}
}

func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	n, err := j.purger.PurgeExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			j.logger.Warn("purge expired pending actions", "error", err)
		}
		return
	}
	if n > 0 {
		j.logger.Info("purged expired pending actions", "count", n)
	}
}
