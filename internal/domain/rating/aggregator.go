package rating

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

var (
	ErrValueOutOfRange  = errors.New("rating value out of range")
	ErrInvalidState     = errors.New("invalid rating state")
	ErrUnknownKind      = errors.New("unknown rating kind")
	ErrMissingViewer    = errors.New("viewer required")
	ErrMutationInFlight = errors.New("a change for this item is already in flight")
)

const (
	DefaultMaxStars                = 3
	DefaultMaxEarliestContributors = 10
)

// Aggregator recomputes a State from the previous aggregate and the single
// contribution that changed. It never sees the full contribution history.
type Aggregator struct {
	maxStars int
	cap      int
}

func NewAggregator(maxEarliest, maxStars int) *Aggregator {
	if maxEarliest <= 0 {
		maxEarliest = DefaultMaxEarliestContributors
	}
	if maxStars <= 0 {
		maxStars = DefaultMaxStars
	}
	return &Aggregator{maxStars: maxStars, cap: maxEarliest}
}

func (a *Aggregator) MaxValue(kind Kind) (int, error) {
	switch kind {
	case KindStars:
		return a.maxStars, nil
	case KindLike, KindCopy, KindSummaryLike:
		return 1, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// Validate checks a snapshot handed to us by the page before doing any math on it.
func (a *Aggregator) Validate(kind Kind, s State) error {
	limit, err := a.MaxValue(kind)
	if err != nil {
		return err
	}
	switch {
	case s.ContributorCount < 0:
		return fmt.Errorf("%w: negative contributor count", ErrInvalidState)
	case s.YourValue < 0 || s.YourValue > limit:
		return fmt.Errorf("%w: your_value %d", ErrInvalidState, s.YourValue)
	case s.YourValue > 0 && s.ContributorCount == 0:
		return fmt.Errorf("%w: own contribution without contributors", ErrInvalidState)
	case s.ContributorCount == 0 && (s.AggregateValue != 0 || len(s.EarliestContributors) > 0):
		return fmt.Errorf("%w: aggregate without contributors", ErrInvalidState)
	case len(s.EarliestContributors) > s.ContributorCount:
		return fmt.Errorf("%w: more earliest contributors than contributors", ErrInvalidState)
	case len(s.EarliestContributors) > a.cap:
		return fmt.Errorf("%w: more than %d earliest contributors", ErrInvalidState, a.cap)
	case math.IsNaN(s.AggregateValue) || math.IsInf(s.AggregateValue, 0):
		return fmt.Errorf("%w: aggregate is not a number", ErrInvalidState)
	}
	return nil
}

// ProposeChange returns the optimistic next state for the viewer setting
// their own contribution to newValue, plus the mutation to send upstream.
// A newValue equal to the current one returns the state untouched and a nil
// mutation.
func (a *Aggregator) ProposeChange(kind Kind, targetID string, s State, viewer string, newValue int) (State, *Mutation, error) {
	limit, err := a.MaxValue(kind)
	if err != nil {
		return s, nil, err
	}
	if newValue < 0 || newValue > limit {
		return s, nil, fmt.Errorf("%w: %d not in 0..%d", ErrValueOutOfRange, newValue, limit)
	}

	op := Classify(s.YourValue, newValue)
	if op == OpNone {
		return s, nil, nil
	}
	if viewer == "" {
		return s, nil, ErrMissingViewer
	}

	next := s.clone()
	next.YourValue = newValue

	switch op {
	case OpAdd:
		if s.ContributorCount < a.cap {
			next.EarliestContributors = append(next.EarliestContributors, viewer)
		}
		next.ContributorCount = s.ContributorCount + 1
	case OpRemove:
		next.EarliestContributors = slices.DeleteFunc(next.EarliestContributors, func(id string) bool {
			return id == viewer
		})
		next.ContributorCount = s.ContributorCount - 1
	}

	if kind.Averaged() {
		next.AggregateValue = recomputeMean(s.AggregateValue, s.ContributorCount, s.YourValue, newValue, next.ContributorCount)
	} else {
		next.AggregateValue = 0
	}
	if next.ContributorCount == 0 {
		next.EarliestContributors = []string{}
	}

	return next, newMutation(kind, targetID, op, newValue), nil
}

// recomputeMean swaps oldValue for newValue inside a mean of oldCount
// entries. A zero oldValue is an add, a zero newValue a remove.
func recomputeMean(oldMean float64, oldCount, oldValue, newValue, newCount int) float64 {
	if newCount == 0 {
		return 0
	}
	sum := oldMean*float64(oldCount) - float64(oldValue) + float64(newValue)
	return round2(sum / float64(newCount))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Reconcile settles an optimistic change once its mutation has completed.
// Any error reverts to prev; there is no partial application.
func Reconcile(prev, next State, err error) (State, error) {
	if err != nil {
		return prev, err
	}
	return next, nil
}
