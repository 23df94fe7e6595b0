package aioutput

import (
	"errors"
	"fmt"
)

var ErrBrokenChain = errors.New("audit chain broken")

// Entry is the part of an audit log row the chain invariant looks at.
type Entry struct {
	PreviousStatus *Status
	NewStatus      Status
}

// VerifyChain checks the audit entries of one output, oldest first: the first
// entry has no previous status and each later entry starts where the one
// before it ended.
func VerifyChain(entries []Entry) error {
	for i, e := range entries {
		if i == 0 {
			if e.PreviousStatus != nil {
				return fmt.Errorf("%w: first entry has previous status %q", ErrBrokenChain, *e.PreviousStatus)
			}
			continue
		}
		prev := entries[i-1].NewStatus
		if e.PreviousStatus == nil || *e.PreviousStatus != prev {
			got := "null"
			if e.PreviousStatus != nil {
				got = string(*e.PreviousStatus)
			}
			return fmt.Errorf("%w: entry %d starts at %s, expected %q", ErrBrokenChain, i, got, prev)
		}
	}
	return nil
}
