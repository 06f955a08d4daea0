package rating

import (
	"context"
	"sync"

	"treasure-map/internal/metrics"
)

type Change struct {
	Kind     Kind
	TargetID string
	Viewer   string
	Token    string
	State    State
	Value    int
}

type Result struct {
	State     State     `json:"state"`
	Operation Operation `json:"operation"`
}

// Service owns the window between proposing a change and hearing back from
// upstream. Only one change per viewer and item may be outstanding.
type Service struct {
	agg    *Aggregator
	sender Sender
	events chan<- Event

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewService(agg *Aggregator, sender Sender, events chan<- Event) *Service {
	return &Service{
		agg:      agg,
		sender:   sender,
		events:   events,
		inflight: make(map[string]struct{}),
	}
}

// Apply proposes the change, sends the mutation and reconciles. On any
// failure the returned Result carries the unchanged input state.
func (s *Service) Apply(ctx context.Context, c Change) (Result, error) {
	if err := s.agg.Validate(c.Kind, c.State); err != nil {
		return Result{State: c.State, Operation: OpNone}, err
	}

	next, m, err := s.agg.ProposeChange(c.Kind, c.TargetID, c.State, c.Viewer, c.Value)
	if err != nil {
		return Result{State: c.State, Operation: OpNone}, err
	}
	if m == nil {
		return Result{State: c.State, Operation: OpNone}, nil
	}

	key := string(c.Kind) + "|" + c.TargetID + "|" + c.Viewer
	if !s.acquire(key) {
		return Result{State: c.State, Operation: m.Operation}, ErrMutationInFlight
	}
	defer s.release(key)

	final, err := Reconcile(c.State, next, s.sender.Send(ctx, c.Token, *m))
	if err != nil {
		metrics.IncMutation(string(c.Kind), string(m.Operation), "failed")
		return Result{State: final, Operation: m.Operation}, err
	}
	metrics.IncMutation(string(c.Kind), string(m.Operation), "ok")

	s.publish(Event{
		Kind:      c.Kind,
		TargetID:  c.TargetID,
		Viewer:    c.Viewer,
		Operation: m.Operation,
		Count:     final.ContributorCount,
	})

	return Result{State: final, Operation: m.Operation}, nil
}

func (s *Service) acquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[key]; busy {
		return false
	}
	s.inflight[key] = struct{}{}
	return true
}

func (s *Service) release(key string) {
	s.mu.Lock()
	delete(s.inflight, key)
	s.mu.Unlock()
}

func (s *Service) publish(ev Event) {
	if s.events == nil {
		return
	}
	select {
	case s.events <- ev:
	default:
	}
}
