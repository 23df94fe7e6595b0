package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// UserRole assigns one role to a user. A user may hold several rows, e.g. a
// ranked role plus admin.
type UserRole struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_user_roles_user_role" json:"user_id"`
	Role      string     `gorm:"type:varchar(50);not null;uniqueIndex:idx_user_roles_user_role" json:"role"`
	GrantedBy *uuid.UUID `gorm:"type:uuid" json:"granted_by"`
	CreatedAt time.Time  `json:"created_at"`
}

// RoleDefinition overrides the default feature list of a role. An empty
// Permissions list leaves the defaults in place.
type RoleDefinition struct {
	Role        string         `gorm:"type:varchar(50);primaryKey" json:"role"`
	Description string         `gorm:"type:text" json:"description"`
	Permissions pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"permissions"`
	UpdatedBy   *uuid.UUID     `gorm:"type:uuid" json:"updated_by"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
