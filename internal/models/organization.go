package models

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Slug must be lowercase alphanumeric and hyphens only, 2–64 chars.
var slugRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,63}$`)

// ValidSlug reports whether s is a usable organization slug.
func ValidSlug(s string) bool {
	return slugRegex.MatchString(s)
}

// OrganizationStatus is the lifecycle state of a tenant.
type OrganizationStatus string

const (
	OrgStatusActive    OrganizationStatus = "active"
	OrgStatusSuspended OrganizationStatus = "suspended"
	OrgStatusDeleted   OrganizationStatus = "deleted"
)

// OrganizationSettings is the per-tenant settings bag (quotas, visibility defaults).
// Stored as JSONB; zero values mean "no limit" for quotas.
type OrganizationSettings struct {
	MaxVideos         int             `json:"max_videos"`
	MaxStorageBytes   int64           `json:"max_storage_bytes"`
	DefaultVisibility VideoVisibility `json:"default_visibility"`
}

// DefaultSettings returns the settings applied to a new organization.
func DefaultSettings() OrganizationSettings {
	return OrganizationSettings{
		MaxVideos:         100,
		MaxStorageBytes:   10 << 30,
		DefaultVisibility: VisibilityOrganization,
	}
}

// Organization represents a tenant: the isolation boundary for videos and permissions.
type Organization struct {
	ID        uuid.UUID            `json:"id"`
	Name      string               `json:"name"`
	Slug      string               `json:"slug"`
	Status    OrganizationStatus   `json:"status"`
	Settings  OrganizationSettings `json:"settings"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// IsActive reports whether the organization may serve requests.
func (o *Organization) IsActive() bool {
	return o.Status == OrgStatusActive
}
