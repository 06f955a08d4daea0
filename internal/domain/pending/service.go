package pending

import (
	"context"
	"errors"
	"log/slog"

	"treasure-map/internal/metrics"
)

type Service struct {
	store    Store
	replayer Replayer
	logger   *slog.Logger
}

func NewService(store Store, replayer Replayer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, replayer: replayer, logger: logger}
}

// Defer stores the action for visitorID, replacing whatever was there.
func (s *Service) Defer(ctx context.Context, visitorID string, a Action) error {
	if visitorID == "" {
		return ErrNotFound
	}
	if err := a.Validate(); err != nil {
		return err
	}
	if err := s.store.Save(ctx, visitorID, a); err != nil {
		return err
	}
	metrics.IncPendingAction("deferred")
	return nil
}

// Replay sends the visitor's pending action upstream with the fresh token.
// The action is taken out of the store first so concurrent requests cannot
// replay it twice; if the upstream call fails it is put back and the next
// request after a successful login tries again. Returns ErrNotFound when
// nothing was waiting.
func (s *Service) Replay(ctx context.Context, visitorID, token string) (Action, error) {
	a, err := s.store.Take(ctx, visitorID)
	if err != nil {
		return Action{}, err
	}

	if err := s.replayer.Replay(ctx, token, a); err != nil {
		metrics.IncPendingAction("replay_failed")
		if saveErr := s.store.Save(ctx, visitorID, a); saveErr != nil {
			s.logger.Error("redirect action lost", "action", a.String(), "error", saveErr)
			return a, errors.Join(err, saveErr)
		}
		s.logger.Warn("redirect action failed, kept for next login", "action", a.String(), "error", err)
		return a, err
	}

	metrics.IncPendingAction("replayed")
	s.logger.Info("redirect action replayed", "action", a.String())
	return a, nil
}

// Discard drops a pending action the viewer abandoned.
func (s *Service) Discard(ctx context.Context, visitorID string) error {
	err := s.store.Discard(ctx, visitorID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if err == nil {
		metrics.IncPendingAction("discarded")
	}
	return nil
}
