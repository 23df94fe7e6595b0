package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"nexus/internal/access"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gatePayload struct {
	State   string `json:"state"`
	Render  string `json:"render"`
	Message string `json:"message"`
}

func TestEvaluateGate(t *testing.T) {
	e := newEnv(t)
	e.register(NewAccessHandler(e.access, e.auth, nil))

	tests := []struct {
		name  string
		token string
		query string
		want  gatePayload
	}{
		{"granted by static map", "project_manager", "feature=projects", gatePayload{State: "granted", Render: "content"}},
		{"denied silently", "user", "feature=reports", gatePayload{State: "denied", Render: "nothing"}},
		{"denied with fallback", "user", "feature=reports&fallback=true&show_denied=true", gatePayload{State: "denied", Render: "fallback"}},
		{"denied with message", "user", "feature=reports&show_denied=true", gatePayload{State: "denied", Render: "restricted", Message: access.RestrictedMessage}},
		{"minimum role", "program_manager", "minimum_role=senior_project_manager", gatePayload{State: "granted", Render: "content"}},
		{"feature wins over role", "pmo", "feature=role_management&minimum_role=user", gatePayload{State: "denied", Render: "nothing"}},
		{"admin", "admin", "feature=role_management", gatePayload{State: "granted", Render: "content"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := e.do(t, http.MethodGet, "/api/access/gate?"+tt.query, tt.token, "")
			require.Equal(t, http.StatusOK, code)
			var got gatePayload
			require.NoError(t, json.Unmarshal(body.Data, &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateGate_LoadingAndBadInput(t *testing.T) {
	e := newEnv(t)
	e.register(NewAccessHandler(e.access, e.auth, nil))

	code, body := e.do(t, http.MethodGet, "/api/access/gate?feature=teleport", "user", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body.Error, "unknown feature")

	code, _ = e.do(t, http.MethodGet, "/api/access/gate?feature=tasks", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	e.access.state = access.StateLoading
	code, body = e.do(t, http.MethodGet, "/api/access/gate?feature=tasks", "user", "")
	require.Equal(t, http.StatusOK, code)
	var got gatePayload
	require.NoError(t, json.Unmarshal(body.Data, &got))
	assert.Equal(t, gatePayload{State: "loading", Render: "pending"}, got)
}
