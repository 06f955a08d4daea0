package pending

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound      = errors.New("no pending action")
	ErrInvalidAction = errors.New("invalid pending action")
)

// DefaultTTL matches the lifetime of the login round trip.
const DefaultTTL = 5 * time.Minute

type Verb string

const (
	VerbLike Verb = "like"
	VerbCopy Verb = "copy"
)

type Target string

const (
	TargetLink    Target = "link"
	TargetSummary Target = "summary"
)

// Action is something the viewer tried to do before signing in.
// Its text form is "<verb> <kind> <id>", e.g. "like summary 78".
type Action struct {
	Verb     Verb   `json:"verb"`
	Target   Target `json:"target"`
	TargetID string `json:"target_id"`
}

func (a Action) String() string {
	return string(a.Verb) + " " + string(a.Target) + " " + a.TargetID
}

func (a Action) Validate() error {
	switch {
	case a.Verb != VerbLike && a.Verb != VerbCopy:
		return fmt.Errorf("%w: verb %q", ErrInvalidAction, a.Verb)
	case a.Target != TargetLink && a.Target != TargetSummary:
		return fmt.Errorf("%w: target %q", ErrInvalidAction, a.Target)
	case a.Target == TargetSummary && a.Verb != VerbLike:
		return fmt.Errorf("%w: summaries can only be liked", ErrInvalidAction)
	case a.TargetID == "" || strings.ContainsAny(a.TargetID, " /?#"):
		return fmt.Errorf("%w: target id %q", ErrInvalidAction, a.TargetID)
	}
	return nil
}

// Path is the upstream path the action is replayed against, relative to the API root.
func (a Action) Path() string {
	section := "links"
	if a.Target == TargetSummary {
		section = "summaries"
	}
	return section + "/" + a.TargetID + "/" + string(a.Verb)
}

func ParseAction(s string) (Action, error) {
	parts := strings.Split(s, " ")
	if len(parts) != 3 {
		return Action{}, fmt.Errorf("%w: %q", ErrInvalidAction, s)
	}
	a := Action{Verb: Verb(parts[0]), Target: Target(parts[1]), TargetID: parts[2]}
	if err := a.Validate(); err != nil {
		return Action{}, err
	}
	return a, nil
}

// Store is a single-slot, short-lived outbox keyed by visitor.
// Take returns the action at most once.
type Store interface {
	Save(ctx context.Context, key string, a Action) error
	Take(ctx context.Context, key string) (Action, error)
	Discard(ctx context.Context, key string) error
}

// Replayer performs a deferred action upstream with the fresh token.
type Replayer interface {
	Replay(ctx context.Context, token string, a Action) error
}
