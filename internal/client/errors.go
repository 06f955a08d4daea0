package client

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized = errors.New("upstream: unauthorized")
	ErrNotFound     = errors.New("upstream: not found")
	ErrRateLimited  = errors.New("upstream: rate limited")
	ErrServer       = errors.New("upstream: server error")
	ErrTransport    = errors.New("upstream: request failed")

	// counted against the circuit breaker, never returned
	errUpstreamUnhealthy = errors.New("upstream unhealthy")
)

// APIError is an unexpected status with whatever {"error": ...} body came with it.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Message)
}

// RedirectFor returns the page a browser should be sent to after err, or ""
// when the error is meant to be shown inline.
func RedirectFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return "/login"
	case errors.Is(err, ErrNotFound):
		return "/404"
	case errors.Is(err, ErrRateLimited):
		return "/rate-limit"
	case errors.Is(err, ErrServer):
		return "/500"
	case errors.Is(err, ErrTransport):
		return "/404"
	}
	return ""
}
