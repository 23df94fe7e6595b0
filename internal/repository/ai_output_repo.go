package repository

import (
	"context"

	"nexus/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AIOutputRepository interface {
	Create(ctx context.Context, output *model.AIOutput) error
	FindByReport(ctx context.Context, reportType, reportName string) (*model.AIOutput, error)
	// FindByReportForUpdate locks the row until the surrounding transaction ends.
	FindByReportForUpdate(ctx context.Context, reportType, reportName string) (*model.AIOutput, error)
	List(ctx context.Context, reportType, status string, page, limit int) ([]model.AIOutput, int64, error)
	Update(ctx context.Context, output *model.AIOutput) error
}

type aiOutputRepository struct {
	db *gorm.DB
}

func NewAIOutputRepository(db *gorm.DB) AIOutputRepository {
	return &aiOutputRepository{db: db}
}

func (r *aiOutputRepository) Create(ctx context.Context, output *model.AIOutput) error {
	return GetDB(ctx, r.db).Create(output).Error
}

func (r *aiOutputRepository) FindByReport(ctx context.Context, reportType, reportName string) (*model.AIOutput, error) {
	var output model.AIOutput
	if err := GetDB(ctx, r.db).First(&output, "report_type = ? AND report_name = ?", reportType, reportName).Error; err != nil {
		return nil, err
	}
	return &output, nil
}

func (r *aiOutputRepository) FindByReportForUpdate(ctx context.Context, reportType, reportName string) (*model.AIOutput, error) {
	var output model.AIOutput
	err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&output, "report_type = ? AND report_name = ?", reportType, reportName).Error
	if err != nil {
		return nil, err
	}
	return &output, nil
}

func (r *aiOutputRepository) List(ctx context.Context, reportType, status string, page, limit int) ([]model.AIOutput, int64, error) {
	var outputs []model.AIOutput
	var total int64

	query := GetDB(ctx, r.db).Model(&model.AIOutput{})
	if reportType != "" {
		query = query.Where("report_type = ?", reportType)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.Order("updated_at desc").Offset(offset).Limit(limit).Find(&outputs).Error; err != nil {
		return nil, 0, err
	}
	return outputs, total, nil
}

func (r *aiOutputRepository) Update(ctx context.Context, output *model.AIOutput) error {
	return GetDB(ctx, r.db).Save(output).Error
}
