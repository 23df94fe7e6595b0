package handler

import (
	"errors"
	"net/http"

	"nexus/internal/access"
	"nexus/internal/aioutput"
	"nexus/internal/auth"
	"nexus/internal/service"
	"nexus/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var errorStatuses = []struct {
	err    error
	status int
}{
	{service.ErrNotFound, http.StatusNotFound},
	{service.ErrInvalidID, http.StatusBadRequest},
	{service.ErrInvalidInput, http.StatusBadRequest},
	{access.ErrUnknownRole, http.StatusBadRequest},
	{access.ErrUnknownFeature, http.StatusBadRequest},
	{aioutput.ErrUnknownStatus, http.StatusBadRequest},
	{service.ErrAdminNotRequestable, http.StatusBadRequest},
	{service.ErrAdminDefinition, http.StatusBadRequest},
	{service.ErrDuplicatePendingRequest, http.StatusConflict},
	{service.ErrRoleAlreadyHeld, http.StatusConflict},
	{service.ErrRoleAlreadyAssigned, http.StatusConflict},
	{service.ErrRequestAlreadyReviewed, http.StatusConflict},
	{service.ErrOutputExists, http.StatusConflict},
	{service.ErrEmailTaken, http.StatusConflict},
	{service.ErrUsernameTaken, http.StatusConflict},
	{aioutput.ErrFinalStatus, http.StatusConflict},
	{aioutput.ErrInvalidTransition, http.StatusConflict},
	{service.ErrSelfReview, http.StatusForbidden},
	{service.ErrSelfRoleModification, http.StatusForbidden},
	{service.ErrInvalidCredentials, http.StatusUnauthorized},
	{auth.ErrInvalidToken, http.StatusUnauthorized},
}

// statusFor maps domain errors to HTTP statuses. Anything unknown is a
// server-side failure.
func statusFor(err error) int {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

// respondError writes err in the response envelope. Internal errors are
// logged and answered with a generic message.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, response.Error(status, "Internal server error"))
		return
	}
	c.JSON(status, response.Error(status, err.Error()))
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
}

func orNop(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}
