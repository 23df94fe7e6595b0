package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"nexus/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRequests struct {
	submitErr error
	submitted []service.SubmitRoleRequest
	reviewed  []string
}

func (s *stubRequests) Submit(_ context.Context, userID uuid.UUID, req service.SubmitRoleRequest) (*service.RoleRequestResponse, error) {
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	s.submitted = append(s.submitted, req)
	return &service.RoleRequestResponse{ID: uuid.NewString(), UserID: userID.String(), RequestedRole: req.RequestedRole, Status: "pending"}, nil
}

func (s *stubRequests) ListForUser(context.Context, uuid.UUID) ([]service.RoleRequestResponse, error) {
	return []service.RoleRequestResponse{}, nil
}

func (s *stubRequests) List(_ context.Context, status string, _, _ int) ([]service.RoleRequestResponse, int64, error) {
	return []service.RoleRequestResponse{{Status: status}}, 1, nil
}

func (s *stubRequests) Review(_ context.Context, _ uuid.UUID, id string, req service.ReviewRoleRequest) (*service.RoleRequestResponse, error) {
	s.reviewed = append(s.reviewed, id)
	return &service.RoleRequestResponse{ID: id, Status: req.Decision}, nil
}

func (s *stubRequests) UpdateNotes(_ context.Context, id string, req service.UpdateAdminNotesRequest) (*service.RoleRequestResponse, error) {
	return &service.RoleRequestResponse{ID: id, AdminNotes: req.AdminNotes}, nil
}

func TestSubmitRoleRequest(t *testing.T) {
	e := newEnv(t)
	stub := &stubRequests{}
	e.register(NewRoleRequestHandler(stub, e.auth, nil))

	code, body := e.do(t, http.MethodPost, "/api/role-requests", "user", `{"requested_role":"pmo"}`)
	require.Equal(t, http.StatusCreated, code)
	var created service.RoleRequestResponse
	require.NoError(t, json.Unmarshal(body.Data, &created))
	assert.Equal(t, "pending", created.Status)
	assert.Equal(t, e.users["user"].String(), created.UserID)

	code, _ = e.do(t, http.MethodPost, "/api/role-requests", "user", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)

	stub.submitErr = service.ErrDuplicatePendingRequest
	code, body = e.do(t, http.MethodPost, "/api/role-requests", "user", `{"requested_role":"pmo"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, service.ErrDuplicatePendingRequest.Error(), body.Error)

	assert.Len(t, stub.submitted, 1)
}

func TestReviewRoleRequest_AdminOnly(t *testing.T) {
	e := newEnv(t)
	stub := &stubRequests{}
	e.register(NewRoleRequestHandler(stub, e.auth, nil))
	id := uuid.NewString()

	code, body := e.do(t, http.MethodPost, "/api/role-requests/"+id+"/review", "pmo", `{"decision":"approved"}`)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Access Restricted", body.Error)

	code, _ = e.do(t, http.MethodPost, "/api/role-requests/"+id+"/review", "admin", `{"decision":"maybe"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Empty(t, stub.reviewed)

	code, body = e.do(t, http.MethodPost, "/api/role-requests/"+id+"/review", "admin", `{"decision":"approved"}`)
	require.Equal(t, http.StatusOK, code)
	var reviewed service.RoleRequestResponse
	require.NoError(t, json.Unmarshal(body.Data, &reviewed))
	assert.Equal(t, "approved", reviewed.Status)
	assert.Equal(t, []string{id}, stub.reviewed)

	code, _ = e.do(t, http.MethodGet, "/api/role-requests?status=pending", "admin", "")
	assert.Equal(t, http.StatusOK, code)
}
