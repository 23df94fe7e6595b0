package service

import (
	"context"
	"fmt"

	"nexus/internal/access"
	"nexus/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AccessSummary struct {
	UserID       string   `json:"user_id"`
	Role         string   `json:"role"`
	IsAdmin      bool     `json:"is_admin"`
	OverlayState string   `json:"overlay_state"`
	Features     []string `json:"features"`
}

// AccessService resolves callers into access decisions. Roles are read on
// every call so grants and revocations apply to the next request.
type AccessService interface {
	Subject(ctx context.Context, userID uuid.UUID) (access.Subject, error)
	Decider(ctx context.Context, userID uuid.UUID) (*access.Decider, error)
	Gate(ctx context.Context, userID uuid.UUID, opts access.GateOptions) (access.GateResult, error)
	Summary(ctx context.Context, userID uuid.UUID) (*AccessSummary, error)
}

type accessService struct {
	roles repository.RoleRepository
	store *access.OverlayStore
	log   *zap.Logger
}

func NewAccessService(roles repository.RoleRepository, store *access.OverlayStore, log *zap.Logger) AccessService {
	if log == nil {
		log = zap.NewNop()
	}
	return &accessService{roles: roles, store: store, log: log}
}

func (s *accessService) Subject(ctx context.Context, userID uuid.UUID) (access.Subject, error) {
	rows, err := s.roles.ListUserRoles(ctx, userID)
	if err != nil {
		return access.Subject{}, fmt.Errorf("failed to load user roles: %w", err)
	}

	roles := make([]access.Role, 0, len(rows))
	for _, row := range rows {
		role, err := access.ParseRole(row.Role)
		if err != nil {
			s.log.Warn("ignoring unknown role assignment",
				zap.String("user_id", userID.String()), zap.String("role", row.Role))
			continue
		}
		roles = append(roles, role)
	}
	return access.NewSubject(userID, roles), nil
}

func (s *accessService) Decider(ctx context.Context, userID uuid.UUID) (*access.Decider, error) {
	subject, err := s.Subject(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.store.Load(ctx)
	return s.store.Decider(subject), nil
}

func (s *accessService) Gate(ctx context.Context, userID uuid.UUID, opts access.GateOptions) (access.GateResult, error) {
	d, err := s.Decider(ctx, userID)
	if err != nil {
		return access.GateResult{}, err
	}
	return access.Evaluate(d, opts), nil
}

func (s *accessService) Summary(ctx context.Context, userID uuid.UUID) (*AccessSummary, error) {
	d, err := s.Decider(ctx, userID)
	if err != nil {
		return nil, err
	}

	features := d.Features()
	names := make([]string, 0, len(features))
	for _, f := range features {
		names = append(names, f.String())
	}

	subject := d.Subject()
	return &AccessSummary{
		UserID:       subject.UserID.String(),
		Role:         subject.Role.String(),
		IsAdmin:      subject.IsAdmin,
		OverlayState: d.State().String(),
		Features:     names,
	}, nil
}
