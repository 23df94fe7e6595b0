// Package aioutput holds the review lifecycle of AI generated report
// artifacts and the audit chain that records it.
package aioutput

import (
	"errors"
	"fmt"
)

// Status is a lifecycle stage of an AI output.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusReviewed  Status = "reviewed"
	StatusApproved  Status = "approved"
	StatusPublished Status = "published"
)

var (
	ErrUnknownStatus = errors.New("unknown ai output status")
	ErrFinalStatus   = errors.New("ai output is already published")
	// ErrInvalidTransition matches every *TransitionError.
	ErrInvalidTransition = errors.New("invalid ai output transition")
)

// lifecycle is the only order statuses may move in.
var lifecycle = []Status{StatusDraft, StatusReviewed, StatusApproved, StatusPublished}

// TransitionError reports an attempt to move anywhere but one step forward.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move ai output from %q to %q", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// IsTransitionError reports whether err is a rejected transition.
func IsTransitionError(err error) bool {
	var e *TransitionError
	return errors.As(err, &e)
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if st.index() < 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return st, nil
}

func (s Status) String() string { return string(s) }

func (s Status) index() int {
	for i, st := range lifecycle {
		if st == s {
			return i
		}
	}
	return -1
}

// Final reports whether no transition leaves s.
func (s Status) Final() bool { return s == StatusPublished }

// Next returns the status following s.
func (s Status) Next() (Status, error) {
	i := s.index()
	if i < 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	if i == len(lifecycle)-1 {
		return "", ErrFinalStatus
	}
	return lifecycle[i+1], nil
}

// Advance moves from one status to the next. When target is set it must be
// exactly the next status.
func Advance(from, target Status) (Status, error) {
	next, err := from.Next()
	if err != nil {
		return "", err
	}
	if target != "" && target != next {
		return "", &TransitionError{From: from, To: target}
	}
	return next, nil
}

// Statuses returns the lifecycle in order.
func Statuses() []Status {
	out := make([]Status, len(lifecycle))
	copy(out, lifecycle)
	return out
}
