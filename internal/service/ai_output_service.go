package service

import (
	"context"
	"errors"
	"fmt"

	"nexus/internal/aioutput"
	"nexus/internal/model"
	"nexus/internal/notify"
	"nexus/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// --- DTOs ---

type RegisterOutputRequest struct {
	ReportType string  `json:"report_type" binding:"required,max=50"`
	ReportName string  `json:"report_name" binding:"required,max=255"`
	Notes      *string `json:"notes"`
}

type AdvanceOutputRequest struct {
	// TargetStatus is optional; when set it must be the next status.
	TargetStatus string  `json:"target_status"`
	Notes        *string `json:"notes"`
}

type OutputResponse struct {
	ID         string  `json:"id"`
	ReportType string  `json:"report_type"`
	ReportName string  `json:"report_name"`
	Status     string  `json:"status"`
	NextStatus *string `json:"next_status"`
	CreatedBy  *string `json:"created_by"`
	UpdatedBy  *string `json:"updated_by"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

// AdvanceResult reports a status change. The status change is committed even
// when AuditLogged is false.
type AdvanceResult struct {
	Output         OutputResponse `json:"output"`
	PreviousStatus string         `json:"previous_status"`
	AuditLogged    bool           `json:"audit_logged"`
	AuditError     string         `json:"audit_error,omitempty"`

	AuditErr error `json:"-"`
}

type OutputHistory struct {
	Output     OutputResponse       `json:"output"`
	Lifecycle  []string             `json:"lifecycle"`
	Entries    []AuditEntryResponse `json:"entries"`
	ChainValid bool                 `json:"chain_valid"`
	ChainError string               `json:"chain_error,omitempty"`
}

// --- Interface ---

type AIOutputService interface {
	Register(ctx context.Context, actorID uuid.UUID, req RegisterOutputRequest) (*OutputResponse, error)
	Advance(ctx context.Context, actorID uuid.UUID, reportType, reportName string, req AdvanceOutputRequest) (*AdvanceResult, error)
	Get(ctx context.Context, reportType, reportName string) (*OutputResponse, error)
	List(ctx context.Context, reportType, status string, page, limit int) ([]OutputResponse, int64, error)
	History(ctx context.Context, reportType, reportName string) (*OutputHistory, error)
}

type aiOutputService struct {
	outputs   repository.AIOutputRepository
	audit     repository.AuditRepository
	txManager repository.TransactionManager
	notifier  notify.Sink
	activity  ActivityPublisher
	log       *zap.Logger
}

func NewAIOutputService(
	outputs repository.AIOutputRepository,
	audit repository.AuditRepository,
	txManager repository.TransactionManager,
	notifier notify.Sink,
	activity ActivityPublisher,
	log *zap.Logger,
) AIOutputService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if activity == nil {
		activity = nopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &aiOutputService{
		outputs:   outputs,
		audit:     audit,
		txManager: txManager,
		notifier:  notifier,
		activity:  activity,
		log:       log,
	}
}

func toOutputResponse(o *model.AIOutput) OutputResponse {
	res := OutputResponse{
		ID:         o.ID.String(),
		ReportType: o.ReportType,
		ReportName: o.ReportName,
		Status:     o.Status,
		CreatedBy:  uuidPtrString(o.CreatedBy),
		UpdatedBy:  uuidPtrString(o.UpdatedBy),
		CreatedAt:  formatTime(o.CreatedAt),
		UpdatedAt:  formatTime(o.UpdatedAt),
	}
	if st, err := aioutput.ParseStatus(o.Status); err == nil {
		if next, err := st.Next(); err == nil {
			s := next.String()
			res.NextStatus = &s
		}
	}
	return res
}

func reportLabel(reportType, reportName string) string {
	return reportType + "/" + reportName
}

// --- Implementation ---

// Register creates an output in draft together with the first audit entry.
func (s *aiOutputService) Register(ctx context.Context, actorID uuid.UUID, req RegisterOutputRequest) (*OutputResponse, error) {
	if req.ReportType == "" || req.ReportName == "" {
		return nil, fmt.Errorf("%w: report type and name are required", ErrInvalidInput)
	}

	output := &model.AIOutput{
		ReportType: req.ReportType,
		ReportName: req.ReportName,
		Status:     aioutput.StatusDraft.String(),
		CreatedBy:  &actorID,
		UpdatedBy:  &actorID,
	}
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.outputs.Create(txCtx, output); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrOutputExists
			}
			return fmt.Errorf("failed to create ai output: %w", err)
		}
		entry := &model.AuditLog{
			UserID:     &actorID,
			ReportType: output.ReportType,
			ReportName: output.ReportName,
			NewStatus:  output.Status,
			Notes:      req.Notes,
		}
		if err := s.audit.Log(txCtx, entry); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	publishActivity(s.activity, Activity{
		Action:  ActivityOutputRegistered,
		ActorID: actorID,
		Subject: reportLabel(output.ReportType, output.ReportName),
		Detail:  output.Status,
	})
	res := toOutputResponse(output)
	return &res, nil
}

// Advance moves an output one step along its lifecycle. The audit row is
// written under the same row lock as the status update, behind a savepoint: a
// failed audit insert is reported on the result instead of undoing the status
// change, and audit rows keep the order of the status changes they record.
func (s *aiOutputService) Advance(ctx context.Context, actorID uuid.UUID, reportType, reportName string, req AdvanceOutputRequest) (*AdvanceResult, error) {
	var target aioutput.Status
	if req.TargetStatus != "" {
		st, err := aioutput.ParseStatus(req.TargetStatus)
		if err != nil {
			return nil, err
		}
		target = st
	}

	var (
		output   *model.AIOutput
		previous aioutput.Status
		auditErr error
	)
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		o, err := s.outputs.FindByReportForUpdate(txCtx, reportType, reportName)
		if err != nil {
			return notFound("ai output", err)
		}
		from, err := aioutput.ParseStatus(o.Status)
		if err != nil {
			return err
		}
		next, err := aioutput.Advance(from, target)
		if err != nil {
			return err
		}

		o.Status = next.String()
		o.UpdatedBy = &actorID
		if err := s.outputs.Update(txCtx, o); err != nil {
			return fmt.Errorf("failed to update ai output: %w", err)
		}
		output, previous = o, from

		prev := from.String()
		entry := &model.AuditLog{
			UserID:         &actorID,
			ReportType:     o.ReportType,
			ReportName:     o.ReportName,
			PreviousStatus: &prev,
			NewStatus:      o.Status,
			Notes:          req.Notes,
		}
		// Not returned: the status change commits even when the audit row does not.
		auditErr = s.txManager.RunInSavepoint(txCtx, func(spCtx context.Context) error {
			return s.audit.Log(spCtx, entry)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	label := reportLabel(output.ReportType, output.ReportName)
	result := &AdvanceResult{
		Output:         toOutputResponse(output),
		PreviousStatus: previous.String(),
		AuditLogged:    true,
	}

	prev := previous.String()
	if err := auditErr; err != nil {
		s.log.Error("status changed but audit log insert failed",
			zap.String("report", label),
			zap.String("previous_status", prev),
			zap.String("new_status", output.Status),
			zap.Error(err))
		result.AuditLogged = false
		result.AuditErr = err
		result.AuditError = "audit log entry could not be written"
		s.notifier.Notify(ctx, actorID, notify.Warning("Audit log not written",
			fmt.Sprintf("%s moved to %s, but the audit log entry could not be saved.", label, output.Status)))
	} else {
		s.notifier.Notify(ctx, actorID, notify.Success("Status updated",
			fmt.Sprintf("%s moved to %s.", label, output.Status)))
	}

	publishActivity(s.activity, Activity{
		Action:  ActivityOutputAdvanced,
		ActorID: actorID,
		Subject: label,
		Detail:  output.Status,
	})
	return result, nil
}

func (s *aiOutputService) Get(ctx context.Context, reportType, reportName string) (*OutputResponse, error) {
	o, err := s.outputs.FindByReport(ctx, reportType, reportName)
	if err != nil {
		return nil, notFound("ai output", err)
	}
	res := toOutputResponse(o)
	return &res, nil
}

func (s *aiOutputService) List(ctx context.Context, reportType, status string, page, limit int) ([]OutputResponse, int64, error) {
	if status != "" {
		if _, err := aioutput.ParseStatus(status); err != nil {
			return nil, 0, err
		}
	}

	outputs, total, err := s.outputs.List(ctx, reportType, status, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch ai outputs: %w", err)
	}

	res := make([]OutputResponse, 0, len(outputs))
	for i := range outputs {
		res = append(res, toOutputResponse(&outputs[i]))
	}
	return res, total, nil
}

// History returns an output's audit trail, oldest first, and whether the
// trail forms an unbroken chain.
func (s *aiOutputService) History(ctx context.Context, reportType, reportName string) (*OutputHistory, error) {
	o, err := s.outputs.FindByReport(ctx, reportType, reportName)
	if err != nil {
		return nil, notFound("ai output", err)
	}
	logs, err := s.audit.History(ctx, reportType, reportName)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch audit history: %w", err)
	}

	history := &OutputHistory{
		Output:     toOutputResponse(o),
		Lifecycle:  make([]string, 0, 4),
		Entries:    make([]AuditEntryResponse, 0, len(logs)),
		ChainValid: true,
	}
	chain := make([]aioutput.Entry, 0, len(logs))
	for i := range logs {
		history.Entries = append(history.Entries, toAuditEntryResponse(&logs[i]))
		e := aioutput.Entry{NewStatus: aioutput.Status(logs[i].NewStatus)}
		if logs[i].PreviousStatus != nil {
			p := aioutput.Status(*logs[i].PreviousStatus)
			e.PreviousStatus = &p
		}
		chain = append(chain, e)
	}
	for _, st := range aioutput.Statuses() {
		history.Lifecycle = append(history.Lifecycle, st.String())
	}
	if err := aioutput.VerifyChain(chain); err != nil {
		history.ChainValid = false
		history.ChainError = err.Error()
	}
	return history, nil
}
