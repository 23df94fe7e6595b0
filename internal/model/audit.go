package model

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog records one AI output status change: who moved which report from
// where to where.
type AuditLog struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID         *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable for automated changes
	User           *Profile   `gorm:"foreignKey:UserID" json:"user,omitempty"`
	ReportType     string     `gorm:"type:varchar(50);not null;index:idx_audit_logs_report" json:"report_type"`
	ReportName     string     `gorm:"type:varchar(255);not null;index:idx_audit_logs_report" json:"report_name"`
	PreviousStatus *string    `gorm:"type:varchar(20)" json:"previous_status"`
	NewStatus      string     `gorm:"type:varchar(20);not null" json:"new_status"`
	Notes          *string    `gorm:"type:text" json:"notes"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
}
