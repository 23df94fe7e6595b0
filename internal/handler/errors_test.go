package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"nexus/internal/access"
	"nexus/internal/aioutput"
	"nexus/internal/service"

	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("role request: %w", service.ErrNotFound), http.StatusNotFound},
		{service.ErrDuplicatePendingRequest, http.StatusConflict},
		{service.ErrSelfReview, http.StatusForbidden},
		{fmt.Errorf("%w: %q", access.ErrUnknownRole, "overlord"), http.StatusBadRequest},
		{&aioutput.TransitionError{From: aioutput.StatusDraft, To: aioutput.StatusPublished}, http.StatusConflict},
		{aioutput.ErrFinalStatus, http.StatusConflict},
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
