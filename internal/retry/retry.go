package retry

import (
	"context"
	"log/slog"
	"time"
)

// Policy describes how a startup dependency is waited for. Upstream
// mutations never go through here; only startup connection checks do.
type Policy struct {
	Name      string
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// StartupPolicy is used for the initial Postgres and Redis pings.
func StartupPolicy(name string) Policy {
	return Policy{Name: name, Attempts: 6, BaseDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second}
}

// Do executes fn up to p.Attempts times with exponential backoff capped at
// p.MaxDelay. It stops early if the context is canceled and otherwise
// returns the last error.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	var err error
	delay := p.BaseDelay

	for i := 0; i < p.Attempts; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err = fn(ctx); err == nil {
			return nil
		}

		if i == p.Attempts-1 {
			break
		}
		slog.Warn("dependency not ready, retrying",
			"name", p.Name,
			"attempt", i+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return err
}
