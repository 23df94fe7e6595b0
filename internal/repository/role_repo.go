package repository

import (
	"context"

	"nexus/internal/access"
	"nexus/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RoleRepository covers role assignments and role definition overrides.
type RoleRepository interface {
	ListUserRoles(ctx context.Context, userID uuid.UUID) ([]model.UserRole, error)
	ListUsersWithRole(ctx context.Context, role string) ([]model.UserRole, error)
	Grant(ctx context.Context, assignment *model.UserRole) error
	Revoke(ctx context.Context, userID uuid.UUID, role string) error

	ListDefinitions(ctx context.Context) ([]model.RoleDefinition, error)
	GetDefinition(ctx context.Context, role string) (*model.RoleDefinition, error)
	UpsertDefinition(ctx context.Context, def *model.RoleDefinition) error
	DeleteDefinition(ctx context.Context, role string) error

	// ListRoleOverrides feeds the access overlay store.
	ListRoleOverrides(ctx context.Context) ([]access.OverrideRecord, error)
}

type roleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) ListUserRoles(ctx context.Context, userID uuid.UUID) ([]model.UserRole, error) {
	var roles []model.UserRole
	if err := GetDB(ctx, r.db).Where("user_id = ?", userID).Order("created_at asc").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *roleRepository) ListUsersWithRole(ctx context.Context, role string) ([]model.UserRole, error) {
	var roles []model.UserRole
	if err := GetDB(ctx, r.db).Where("role = ?", role).Order("created_at asc").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

// Grant inserts an assignment. An existing (user, role) pair yields
// gorm.ErrDuplicatedKey.
func (r *roleRepository) Grant(ctx context.Context, assignment *model.UserRole) error {
	return GetDB(ctx, r.db).Create(assignment).Error
}

// Revoke deletes an assignment, returning gorm.ErrRecordNotFound when the
// user does not hold the role.
func (r *roleRepository) Revoke(ctx context.Context, userID uuid.UUID, role string) error {
	res := GetDB(ctx, r.db).Where("user_id = ? AND role = ?", userID, role).Delete(&model.UserRole{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *roleRepository) ListDefinitions(ctx context.Context) ([]model.RoleDefinition, error) {
	var defs []model.RoleDefinition
	if err := GetDB(ctx, r.db).Order("role asc").Find(&defs).Error; err != nil {
		return nil, err
	}
	return defs, nil
}

func (r *roleRepository) GetDefinition(ctx context.Context, role string) (*model.RoleDefinition, error) {
	var def model.RoleDefinition
	if err := GetDB(ctx, r.db).First(&def, "role = ?", role).Error; err != nil {
		return nil, err
	}
	return &def, nil
}

func (r *roleRepository) UpsertDefinition(ctx context.Context, def *model.RoleDefinition) error {
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "role"}},
		DoUpdates: clause.AssignmentColumns([]string{"description", "permissions", "updated_by", "updated_at"}),
	}).Create(def).Error
}

func (r *roleRepository) DeleteDefinition(ctx context.Context, role string) error {
	res := GetDB(ctx, r.db).Where("role = ?", role).Delete(&model.RoleDefinition{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *roleRepository) ListRoleOverrides(ctx context.Context) ([]access.OverrideRecord, error) {
	defs, err := r.ListDefinitions(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]access.OverrideRecord, 0, len(defs))
	for _, d := range defs {
		records = append(records, access.OverrideRecord{Role: d.Role, Permissions: []string(d.Permissions)})
	}
	return records, nil
}
