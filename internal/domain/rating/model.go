package rating

import (
	"context"
	"net/http"
)

type Kind string

const (
	KindStars       Kind = "stars"
	KindLike        Kind = "like"
	KindCopy        Kind = "copy"
	KindSummaryLike Kind = "summary_like"
)

// ParseKind accepts the path segment used by the gateway routes.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindStars, KindLike, KindCopy, KindSummaryLike:
		return Kind(s), true
	}
	return "", false
}

// Averaged reports whether AggregateValue carries a mean for this kind.
// Like and copy are plain counts.
func (k Kind) Averaged() bool {
	return k == KindStars
}

// Section is the upstream resource family the kind belongs to.
func (k Kind) Section() string {
	if k == KindSummaryLike {
		return "summaries"
	}
	return "links"
}

// State is the per-link, per-viewer aggregate rendered next to a link.
type State struct {
	YourValue            int      `json:"your_value"`
	AggregateValue       float64  `json:"aggregate_value"`
	ContributorCount     int      `json:"contributor_count"`
	EarliestContributors []string `json:"earliest_contributors"`
}

func (s State) clone() State {
	out := s
	out.EarliestContributors = append([]string(nil), s.EarliestContributors...)
	return out
}

type Operation string

const (
	OpNone   Operation = "none"
	OpAdd    Operation = "add"
	OpRemove Operation = "remove"
	OpEdit   Operation = "edit"
)

// Classify maps an old/new contribution pair onto the operation it represents.
func Classify(oldValue, newValue int) Operation {
	switch {
	case oldValue == newValue:
		return OpNone
	case oldValue == 0:
		return OpAdd
	case newValue == 0:
		return OpRemove
	default:
		return OpEdit
	}
}

// Mutation is the upstream request that makes a proposed change durable.
type Mutation struct {
	Kind      Kind      `json:"kind"`
	TargetID  string    `json:"target_id"`
	Method    string    `json:"method"`
	Value     int       `json:"value,omitempty"`
	Operation Operation `json:"operation"`
}

func newMutation(kind Kind, targetID string, op Operation, value int) *Mutation {
	m := &Mutation{Kind: kind, TargetID: targetID, Operation: op, Method: http.MethodPost}
	if op == OpRemove {
		m.Method = http.MethodDelete
		return m
	}
	m.Value = value
	return m
}

// Sender delivers a mutation upstream on behalf of the viewer.
type Sender interface {
	Send(ctx context.Context, token string, m Mutation) error
}

// Event is published after a mutation has been confirmed upstream.
type Event struct {
	Kind      Kind
	TargetID  string
	Viewer    string
	Operation Operation
	Count     int
}
