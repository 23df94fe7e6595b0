package service

import (
	"context"
	"fmt"

	"nexus/internal/model"
	"nexus/internal/repository"
)

type AuditEntryResponse struct {
	ID             string  `json:"id"`
	UserID         *string `json:"user_id"`
	Username       string  `json:"username"`
	ReportType     string  `json:"report_type"`
	ReportName     string  `json:"report_name"`
	PreviousStatus *string `json:"previous_status"`
	NewStatus      string  `json:"new_status"`
	Notes          *string `json:"notes"`
	CreatedAt      string  `json:"created_at"`
}

type AuditService interface {
	List(ctx context.Context, filter repository.AuditFilter, page, limit int) ([]AuditEntryResponse, int64, error)
}

type auditService struct {
	repo repository.AuditRepository
}

func NewAuditService(repo repository.AuditRepository) AuditService {
	return &auditService{repo: repo}
}

func toAuditEntryResponse(l *model.AuditLog) AuditEntryResponse {
	username := "System"
	if l.User != nil {
		username = l.User.Username
	}
	return AuditEntryResponse{
		ID:             l.ID.String(),
		UserID:         uuidPtrString(l.UserID),
		Username:       username,
		ReportType:     l.ReportType,
		ReportName:     l.ReportName,
		PreviousStatus: l.PreviousStatus,
		NewStatus:      l.NewStatus,
		Notes:          l.Notes,
		CreatedAt:      formatTime(l.CreatedAt),
	}
}

func (s *auditService) List(ctx context.Context, filter repository.AuditFilter, page, limit int) ([]AuditEntryResponse, int64, error) {
	logs, total, err := s.repo.List(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch audit logs: %w", err)
	}

	res := make([]AuditEntryResponse, 0, len(logs))
	for i := range logs {
		res = append(res, toAuditEntryResponse(&logs[i]))
	}
	return res, total, nil
}
