package service

import (
	"context"
	"errors"
	"fmt"

	"nexus/internal/access"
	"nexus/internal/model"
	"nexus/internal/notify"
	"nexus/internal/repository"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// --- DTOs ---

type AssignRoleRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
	Role   string `json:"role" binding:"required"`
}

type UpsertRoleDefinitionRequest struct {
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

type UserRoleResponse struct {
	UserID    string  `json:"user_id"`
	Role      string  `json:"role"`
	GrantedBy *string `json:"granted_by"`
	CreatedAt string  `json:"created_at"`
}

// RoleDefinitionResponse shows a role's stored override next to its static
// defaults. EffectiveFeatures is what access decisions use.
type RoleDefinitionResponse struct {
	Role              string   `json:"role"`
	Rank              int      `json:"rank"`
	Description       string   `json:"description"`
	Permissions       []string `json:"permissions"`
	DefaultFeatures   []string `json:"default_features"`
	EffectiveFeatures []string `json:"effective_features"`
	Overridden        bool     `json:"overridden"`
	UpdatedAt         *string  `json:"updated_at"`
}

// --- Interface ---

type RoleService interface {
	ListUserRoles(ctx context.Context, userID string) ([]UserRoleResponse, error)
	Assign(ctx context.Context, actorID uuid.UUID, req AssignRoleRequest) (*UserRoleResponse, error)
	Revoke(ctx context.Context, actorID uuid.UUID, userID, role string) error

	ListDefinitions(ctx context.Context) ([]RoleDefinitionResponse, error)
	GetDefinition(ctx context.Context, role string) (*RoleDefinitionResponse, error)
	UpsertDefinition(ctx context.Context, actorID uuid.UUID, role string, req UpsertRoleDefinitionRequest) (*RoleDefinitionResponse, error)
	DeleteDefinition(ctx context.Context, actorID uuid.UUID, role string) error
}

// OverlayInvalidator is told whenever role definitions change.
type OverlayInvalidator interface {
	Invalidate()
}

type roleService struct {
	roles    repository.RoleRepository
	profiles repository.ProfileRepository
	overlay  OverlayInvalidator
	notifier notify.Sink
	activity ActivityPublisher
}

func NewRoleService(
	roles repository.RoleRepository,
	profiles repository.ProfileRepository,
	overlay OverlayInvalidator,
	notifier notify.Sink,
	activity ActivityPublisher,
) RoleService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if activity == nil {
		activity = nopPublisher{}
	}
	return &roleService{
		roles:    roles,
		profiles: profiles,
		overlay:  overlay,
		notifier: notifier,
		activity: activity,
	}
}

func toUserRoleResponse(r *model.UserRole) UserRoleResponse {
	return UserRoleResponse{
		UserID:    r.UserID.String(),
		Role:      r.Role,
		GrantedBy: uuidPtrString(r.GrantedBy),
		CreatedAt: formatTime(r.CreatedAt),
	}
}

func featureNames(features []access.Feature) []string {
	out := make([]string, 0, len(features))
	for _, f := range features {
		out = append(out, f.String())
	}
	return out
}

// --- Role assignments ---

func (s *roleService) ListUserRoles(ctx context.Context, userID string) ([]UserRoleResponse, error) {
	uid, err := parseID(userID)
	if err != nil {
		return nil, err
	}
	rows, err := s.roles.ListUserRoles(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user roles: %w", err)
	}

	res := make([]UserRoleResponse, 0, len(rows))
	for i := range rows {
		res = append(res, toUserRoleResponse(&rows[i]))
	}
	return res, nil
}

func (s *roleService) Assign(ctx context.Context, actorID uuid.UUID, req AssignRoleRequest) (*UserRoleResponse, error) {
	uid, err := parseID(req.UserID)
	if err != nil {
		return nil, err
	}
	if uid == actorID {
		return nil, ErrSelfRoleModification
	}
	role, err := access.ParseRole(req.Role)
	if err != nil {
		return nil, err
	}
	if _, err := s.profiles.GetByID(ctx, uid); err != nil {
		return nil, notFound("user", err)
	}

	assignment := &model.UserRole{UserID: uid, Role: role.String(), GrantedBy: &actorID}
	if err := s.roles.Grant(ctx, assignment); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrRoleAlreadyAssigned
		}
		return nil, fmt.Errorf("failed to grant role: %w", err)
	}

	s.notifier.Notify(ctx, uid, notify.Success("Role granted", fmt.Sprintf("You were granted the %s role.", role)))
	publishActivity(s.activity, Activity{Action: ActivityRoleGranted, ActorID: actorID, Subject: uid.String(), Detail: role.String()})

	res := toUserRoleResponse(assignment)
	return &res, nil
}

func (s *roleService) Revoke(ctx context.Context, actorID uuid.UUID, userID, role string) error {
	uid, err := parseID(userID)
	if err != nil {
		return err
	}
	if uid == actorID {
		return ErrSelfRoleModification
	}
	r, err := access.ParseRole(role)
	if err != nil {
		return err
	}

	if err := s.roles.Revoke(ctx, uid, r.String()); err != nil {
		return notFound("role assignment", err)
	}

	s.notifier.Notify(ctx, uid, notify.Warning("Role revoked", fmt.Sprintf("The %s role was removed from your account.", r)))
	publishActivity(s.activity, Activity{Action: ActivityRoleRevoked, ActorID: actorID, Subject: uid.String(), Detail: r.String()})
	return nil
}

// --- Role definitions ---

// ListDefinitions returns every ranked role, merged with its stored
// definition when one exists. Admin is left out: its access is fixed.
func (s *roleService) ListDefinitions(ctx context.Context) ([]RoleDefinitionResponse, error) {
	defs, err := s.roles.ListDefinitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch role definitions: %w", err)
	}

	stored := make(map[string]*model.RoleDefinition, len(defs))
	records := make([]access.OverrideRecord, 0, len(defs))
	for i := range defs {
		stored[defs[i].Role] = &defs[i]
		records = append(records, access.OverrideRecord{Role: defs[i].Role, Permissions: defs[i].Permissions})
	}
	// Malformed entries are already logged by the overlay store.
	overlay, _ := access.DecodeOverlay(records)

	res := make([]RoleDefinitionResponse, 0, len(access.RankedRoles()))
	for _, role := range access.RankedRoles() {
		res = append(res, definitionResponse(role, stored[role.String()], overlay))
	}
	return res, nil
}

// GetDefinition returns one role's definition. A role without a stored
// definition reports its static defaults.
func (s *roleService) GetDefinition(ctx context.Context, role string) (*RoleDefinitionResponse, error) {
	r, err := access.ParseRole(role)
	if err != nil {
		return nil, err
	}
	if r == access.RoleAdmin {
		return nil, ErrAdminDefinition
	}

	def, err := s.roles.GetDefinition(ctx, r.String())
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		def = nil
	case err != nil:
		return nil, fmt.Errorf("failed to fetch role definition: %w", err)
	}

	var records []access.OverrideRecord
	if def != nil {
		records = append(records, access.OverrideRecord{Role: def.Role, Permissions: def.Permissions})
	}
	overlay, _ := access.DecodeOverlay(records)
	res := definitionResponse(r, def, overlay)
	return &res, nil
}

func definitionResponse(role access.Role, def *model.RoleDefinition, overlay *access.Overlay) RoleDefinitionResponse {
	res := RoleDefinitionResponse{
		Role:              role.String(),
		Rank:              access.Rank(role),
		Permissions:       []string{},
		DefaultFeatures:   featureNames(access.StaticFeatures(role)),
		EffectiveFeatures: featureNames(access.StaticFeatures(role)),
	}
	if def != nil {
		res.Description = def.Description
		res.Permissions = append(res.Permissions, def.Permissions...)
		res.UpdatedAt = formatTimePtr(&def.UpdatedAt)
	}
	if features, ok := overlay.Lookup(role); ok {
		res.EffectiveFeatures = featureNames(features)
		res.Overridden = true
	}
	return res
}

func (s *roleService) UpsertDefinition(ctx context.Context, actorID uuid.UUID, role string, req UpsertRoleDefinitionRequest) (*RoleDefinitionResponse, error) {
	r, err := access.ParseRole(role)
	if err != nil {
		return nil, err
	}
	if r == access.RoleAdmin {
		return nil, ErrAdminDefinition
	}

	permissions := make(pq.StringArray, 0, len(req.Permissions))
	seen := make(map[access.Feature]bool, len(req.Permissions))
	for _, p := range req.Permissions {
		f, err := access.ParseFeature(p)
		if err != nil {
			return nil, err
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		permissions = append(permissions, f.String())
	}

	def := &model.RoleDefinition{
		Role:        r.String(),
		Description: req.Description,
		Permissions: permissions,
		UpdatedBy:   &actorID,
	}
	if err := s.roles.UpsertDefinition(ctx, def); err != nil {
		return nil, fmt.Errorf("failed to save role definition: %w", err)
	}
	s.overlay.Invalidate()
	publishActivity(s.activity, Activity{Action: ActivityDefinitionChanged, ActorID: actorID, Subject: r.String()})

	overlay, _ := access.DecodeOverlay([]access.OverrideRecord{{Role: def.Role, Permissions: def.Permissions}})
	res := definitionResponse(r, def, overlay)
	return &res, nil
}

func (s *roleService) DeleteDefinition(ctx context.Context, actorID uuid.UUID, role string) error {
	r, err := access.ParseRole(role)
	if err != nil {
		return err
	}
	if err := s.roles.DeleteDefinition(ctx, r.String()); err != nil {
		return notFound("role definition", err)
	}
	s.overlay.Invalidate()
	publishActivity(s.activity, Activity{Action: ActivityDefinitionChanged, ActorID: actorID, Subject: r.String()})
	return nil
}
