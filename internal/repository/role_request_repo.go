package repository

import (
	"context"

	"nexus/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RoleRequestRepository interface {
	Create(ctx context.Context, req *model.RoleRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.RoleRequest, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.RoleRequest, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.RoleRequest, error)
	List(ctx context.Context, status string, page, limit int) ([]model.RoleRequest, int64, error)
	Update(ctx context.Context, req *model.RoleRequest) error
	// UpdateNotes writes admin_notes only, leaving the review columns as stored.
	UpdateNotes(ctx context.Context, id uuid.UUID, notes *string) error
}

type roleRequestRepository struct {
	db *gorm.DB
}

func NewRoleRequestRepository(db *gorm.DB) RoleRequestRepository {
	return &roleRequestRepository{db: db}
}

// Create inserts a request. A second pending request for the same user and
// role violates idx_role_requests_one_pending and yields gorm.ErrDuplicatedKey.
func (r *roleRequestRepository) Create(ctx context.Context, req *model.RoleRequest) error {
	return GetDB(ctx, r.db).Create(req).Error
}

func (r *roleRequestRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.RoleRequest, error) {
	var req model.RoleRequest
	if err := GetDB(ctx, r.db).Preload("Requester").Preload("Reviewer").First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *roleRequestRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.RoleRequest, error) {
	var req model.RoleRequest
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// ListByUser returns a user's requests, newest first.
func (r *roleRequestRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.RoleRequest, error) {
	var requests []model.RoleRequest
	if err := GetDB(ctx, r.db).Where("user_id = ?", userID).Order("created_at DESC").Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *roleRequestRepository) List(ctx context.Context, status string, page, limit int) ([]model.RoleRequest, int64, error) {
	var requests []model.RoleRequest
	var total int64

	db := GetDB(ctx, r.db)
	query := db.Model(&model.RoleRequest{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	fetchQuery := db.Preload("Requester").Preload("Reviewer")
	if status != "" {
		fetchQuery = fetchQuery.Where("status = ?", status)
	}
	if err := fetchQuery.Order("created_at DESC").Offset(offset).Limit(limit).Find(&requests).Error; err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

func (r *roleRequestRepository) Update(ctx context.Context, req *model.RoleRequest) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Save(req).Error
}

func (r *roleRequestRepository) UpdateNotes(ctx context.Context, id uuid.UUID, notes *string) error {
	res := GetDB(ctx, r.db).Model(&model.RoleRequest{}).Where("id = ?", id).Update("admin_notes", notes)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
