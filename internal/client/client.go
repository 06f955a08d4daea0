package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"treasure-map/internal/domain/pending"
	"treasure-map/internal/domain/rating"
	"treasure-map/internal/metrics"
)

// Status codes the Treasure Map API answers with when a call did what was asked.
const (
	StatusMutated  = http.StatusNoContent    // star, like, copy, summary like
	StatusDeleted  = http.StatusResetContent // delete link or summary
	StatusReplayed = http.StatusOK           // deferred action after login
)

const maxBodyBytes = 1 << 20

// Client talks to the Treasure Map REST API. It never retries; a failed
// call is reported to the caller as is.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "treasure-api",
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
			},
			IsSuccessful: func(err error) bool {
				return err == nil || !errors.Is(err, errUpstreamUnhealthy)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				metrics.SetBreakerState(name, int(to))
			},
		}),
	}
}

type linkBody struct {
	LinkID string `json:"link_id"`
	Stars  int    `json:"stars,omitempty"`
}

// Send issues a rating mutation. It satisfies rating.Sender.
func (c *Client) Send(ctx context.Context, token string, m rating.Mutation) error {
	var (
		path    string
		payload any
	)
	switch m.Kind {
	case rating.KindStars:
		body := linkBody{LinkID: m.TargetID}
		if m.Method == http.MethodPost {
			body.Stars = m.Value
		}
		path, payload = "/links/star", body
	case rating.KindLike, rating.KindCopy:
		path, payload = "/links/"+m.TargetID+"/"+string(m.Kind), linkBody{LinkID: m.TargetID}
	case rating.KindSummaryLike:
		path = "/summaries/" + m.TargetID + "/like"
	default:
		return fmt.Errorf("%w: %q", rating.ErrUnknownKind, m.Kind)
	}

	return c.do(ctx, m.Method, path, token, payload, StatusMutated)
}

func (c *Client) DeleteLink(ctx context.Context, token, linkID string) error {
	return c.do(ctx, http.MethodDelete, "/links", token, linkBody{LinkID: linkID}, StatusDeleted)
}

type summaryBody struct {
	SummaryID string `json:"summary_id"`
}

func (c *Client) DeleteSummary(ctx context.Context, token, summaryID string) error {
	return c.do(ctx, http.MethodDelete, "/summaries", token, summaryBody{SummaryID: summaryID}, StatusDeleted)
}

// Replay performs a deferred action. It satisfies pending.Replayer.
func (c *Client) Replay(ctx context.Context, token string, a pending.Action) error {
	return c.do(ctx, http.MethodPost, "/"+a.Path(), token, nil, StatusReplayed)
}

type response struct {
	status int
	body   []byte
}

func (c *Client) do(ctx context.Context, method, path, token string, payload any, expected int) error {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errUpstreamUnhealthy, err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		r := &response{status: resp.StatusCode, body: body}
		if resp.StatusCode >= http.StatusInternalServerError {
			return r, errUpstreamUnhealthy
		}
		return r, nil
	})

	r, _ := out.(*response)
	if r == nil {
		return fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	return checkStatus(r, expected)
}

func checkStatus(r *response, expected int) error {
	if r.status == expected {
		return nil
	}
	switch r.status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusInternalServerError:
		return ErrServer
	}

	apiErr := &APIError{Status: r.status}
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(r.body, &payload); err == nil && payload.Error != "" {
		apiErr.Message = payload.Error
	} else {
		apiErr.Message = http.StatusText(r.status)
	}
	return apiErr
}
