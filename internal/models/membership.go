package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a user's role within one organization. Roles are attributes of the
// Membership relation, never of the User: the same user holds an independent
// role in every organization they belong to.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Valid reports whether r is one of the fixed role set. Request input must be
// validated with this before it reaches the store; values read back from the
// store are ranked by the authorization core and unknown values rank as zero.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// Membership grants a user a role within exactly one organization.
// At most one row exists per (user, organization) pair.
type Membership struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	UserID         uuid.UUID `json:"user_id"`
	Role           Role      `json:"role"`
	JoinedAt       time.Time `json:"joined_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
