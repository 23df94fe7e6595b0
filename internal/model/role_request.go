package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleRequestPending  = "pending"
	RoleRequestApproved = "approved"
	RoleRequestRejected = "rejected"
)

// RoleRequest is a user's request for another role. It is reviewed once;
// afterwards only AdminNotes may change.
//
// The partial unique index allows a single pending request per user and role.
type RoleRequest struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID        uuid.UUID  `gorm:"type:uuid;not null;index;uniqueIndex:idx_role_requests_one_pending,where:status = 'pending'" json:"user_id"`
	Requester     *Profile   `gorm:"foreignKey:UserID" json:"requester,omitempty"`
	RequestedRole string     `gorm:"type:varchar(50);not null;uniqueIndex:idx_role_requests_one_pending,where:status = 'pending'" json:"requested_role"`
	Status        string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	AdminNotes    *string    `gorm:"type:text" json:"admin_notes"`
	ReviewedBy    *uuid.UUID `gorm:"type:uuid" json:"reviewed_by"`
	Reviewer      *Profile   `gorm:"foreignKey:ReviewedBy" json:"reviewer,omitempty"`
	ReviewedAt    *time.Time `json:"reviewed_at"`
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
