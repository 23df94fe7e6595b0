package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Validation and lookup failures. Handlers map these to 4xx answers; any
// other error is a data-access failure.
var (
	ErrNotFound                = errors.New("not found")
	ErrInvalidID               = errors.New("invalid id")
	ErrDuplicatePendingRequest = errors.New("a pending request for this role already exists")
	ErrRoleAlreadyHeld         = errors.New("you already hold this role")
	ErrAdminNotRequestable     = errors.New("the admin role cannot be requested")
	ErrRequestAlreadyReviewed  = errors.New("role request has already been reviewed")
	ErrSelfReview              = errors.New("you cannot review your own role request")
	ErrSelfRoleModification    = errors.New("you cannot change your own roles")
	ErrRoleAlreadyAssigned     = errors.New("user already holds this role")
	ErrAdminDefinition         = errors.New("the admin role always has full access and cannot be overridden")
	ErrOutputExists            = errors.New("ai output already registered")
	ErrInvalidCredentials      = errors.New("invalid email or password")
	ErrEmailTaken              = errors.New("email already exists")
	ErrUsernameTaken           = errors.New("username already exists")
	ErrInvalidInput            = errors.New("invalid input")
)

func parseID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return parsed, nil
}

// notFound turns gorm's missing-row error into ErrNotFound and wraps anything
// else with the operation name.
func notFound(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func uuidPtrString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
