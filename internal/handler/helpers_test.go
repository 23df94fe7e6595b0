package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"nexus/internal/access"
	"nexus/internal/middleware"
	"nexus/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// stubAccess resolves users from a fixed role table with an empty overlay.
type stubAccess struct {
	roles map[uuid.UUID][]access.Role
	state access.LoadState
}

func (s *stubAccess) Subject(_ context.Context, userID uuid.UUID) (access.Subject, error) {
	return access.NewSubject(userID, s.roles[userID]), nil
}

func (s *stubAccess) Decider(ctx context.Context, userID uuid.UUID) (*access.Decider, error) {
	subject, _ := s.Subject(ctx, userID)
	return access.NewDecider(subject, nil, s.state), nil
}

func (s *stubAccess) Gate(ctx context.Context, userID uuid.UUID, opts access.GateOptions) (access.GateResult, error) {
	d, _ := s.Decider(ctx, userID)
	return access.Evaluate(d, opts), nil
}

func (s *stubAccess) Summary(ctx context.Context, userID uuid.UUID) (*service.AccessSummary, error) {
	d, _ := s.Decider(ctx, userID)
	return &service.AccessSummary{UserID: userID.String(), Role: d.Subject().Role.String(), IsAdmin: d.Subject().IsAdmin}, nil
}

type stubTokens map[string]uuid.UUID

func (s stubTokens) Parse(token string) (uuid.UUID, error) {
	id, ok := s[token]
	if !ok {
		return uuid.Nil, errors.New("bad token")
	}
	return id, nil
}

// env wires one user per role behind bearer tokens named after the role.
type env struct {
	router *gin.Engine
	auth   *middleware.Auth
	access *stubAccess
	users  map[string]uuid.UUID
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	e := &env{
		router: gin.New(),
		access: &stubAccess{roles: map[uuid.UUID][]access.Role{}, state: access.StateLoaded},
		users:  map[string]uuid.UUID{},
	}
	tokens := stubTokens{}
	for _, r := range access.AllRoles() {
		id := uuid.New()
		e.users[r.String()] = id
		tokens[r.String()] = id
		e.access.roles[id] = []access.Role{r}
	}
	e.auth = middleware.NewAuth(tokens, e.access, nil)
	return e
}

func (e *env) register(handlers ...interface{ RegisterRoutes(*gin.RouterGroup) }) {
	group := e.router.Group("")
	for _, h := range handlers {
		h.RegisterRoutes(group)
	}
}

type envelope struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
}

func (e *env) do(t *testing.T, method, path, token, body string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var out envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}
