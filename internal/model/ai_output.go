package model

import (
	"time"

	"github.com/google/uuid"
)

// AIOutput tracks the review status of one AI generated report.
type AIOutput struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ReportType string     `gorm:"type:varchar(50);not null;uniqueIndex:idx_ai_outputs_report" json:"report_type"`
	ReportName string     `gorm:"type:varchar(255);not null;uniqueIndex:idx_ai_outputs_report" json:"report_name"`
	Status     string     `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	CreatedBy  *uuid.UUID `gorm:"type:uuid" json:"created_by"`
	UpdatedBy  *uuid.UUID `gorm:"type:uuid" json:"updated_by"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
