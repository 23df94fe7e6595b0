package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"nexus/internal/aioutput"
	"nexus/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubOutputs struct {
	advanceErr  error
	auditFailed bool
	lastAdvance service.AdvanceOutputRequest
}

func (s *stubOutputs) Register(_ context.Context, _ uuid.UUID, req service.RegisterOutputRequest) (*service.OutputResponse, error) {
	return &service.OutputResponse{ReportType: req.ReportType, ReportName: req.ReportName, Status: "draft"}, nil
}

func (s *stubOutputs) Advance(_ context.Context, _ uuid.UUID, reportType, reportName string, req service.AdvanceOutputRequest) (*service.AdvanceResult, error) {
	s.lastAdvance = req
	if s.advanceErr != nil {
		return nil, s.advanceErr
	}
	res := &service.AdvanceResult{
		Output:         service.OutputResponse{ReportType: reportType, ReportName: reportName, Status: "reviewed"},
		PreviousStatus: "draft",
		AuditLogged:    !s.auditFailed,
	}
	if s.auditFailed {
		res.AuditError = "audit log entry could not be written"
		res.AuditErr = errors.New("insert failed")
	}
	return res, nil
}

func (s *stubOutputs) Get(_ context.Context, reportType, reportName string) (*service.OutputResponse, error) {
	return nil, service.ErrNotFound
}

func (s *stubOutputs) List(context.Context, string, string, int, int) ([]service.OutputResponse, int64, error) {
	return []service.OutputResponse{}, 0, nil
}

func (s *stubOutputs) History(_ context.Context, reportType, reportName string) (*service.OutputHistory, error) {
	return &service.OutputHistory{ChainValid: true}, nil
}

func TestAdvanceOutput(t *testing.T) {
	e := newEnv(t)
	stub := &stubOutputs{}
	e.register(NewAIOutputHandler(stub, e.auth, nil))

	// project_manager has the assistant but not reports.
	code, _ := e.do(t, http.MethodPost, "/api/ai-outputs/weekly/week-12/advance", "project_manager", "")
	assert.Equal(t, http.StatusForbidden, code)

	code, body := e.do(t, http.MethodPost, "/api/ai-outputs/weekly/week-12/advance", "senior_project_manager", "")
	require.Equal(t, http.StatusOK, code)
	var res service.AdvanceResult
	require.NoError(t, json.Unmarshal(body.Data, &res))
	assert.Equal(t, "reviewed", res.Output.Status)
	assert.True(t, res.AuditLogged)
	assert.Empty(t, stub.lastAdvance.TargetStatus)

	stub.auditFailed = true
	code, body = e.do(t, http.MethodPost, "/api/ai-outputs/weekly/week-12/advance", "pmo", `{"target_status":"reviewed"}`)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(body.Data, &res))
	assert.False(t, res.AuditLogged)
	assert.NotEmpty(t, res.AuditError)
	assert.Equal(t, "reviewed", stub.lastAdvance.TargetStatus)

	stub.advanceErr = &aioutput.TransitionError{From: aioutput.StatusDraft, To: aioutput.StatusPublished}
	code, body = e.do(t, http.MethodPost, "/api/ai-outputs/weekly/week-12/advance", "pmo", `{"target_status":"published"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, body.Error, "cannot move ai output")
}

func TestOutputRoutes(t *testing.T) {
	e := newEnv(t)
	e.register(NewAIOutputHandler(&stubOutputs{}, e.auth, nil))

	code, _ := e.do(t, http.MethodGet, "/api/ai-outputs/weekly/missing", "project_manager", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = e.do(t, http.MethodGet, "/api/ai-outputs/weekly/week-12/history", "program_manager", "")
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = e.do(t, http.MethodGet, "/api/ai-outputs/weekly/week-12/history", "pmo", "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = e.do(t, http.MethodPost, "/api/ai-outputs", "user", `{"report_type":"weekly","report_name":"week-12"}`)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = e.do(t, http.MethodPost, "/api/ai-outputs", "project_manager", `{"report_type":"weekly","report_name":"week-12"}`)
	assert.Equal(t, http.StatusCreated, code)
}
