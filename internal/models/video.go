package models

import (
	"time"

	"github.com/google/uuid"
)

// VideoStatus is the upload lifecycle of a video object.
type VideoStatus string

const (
	VideoStatusPending VideoStatus = "pending"
	VideoStatusReady   VideoStatus = "ready"
	VideoStatusFailed  VideoStatus = "failed"
)

// VideoVisibility controls who inside the owning organization may view a video.
// Tenant isolation applies regardless: no visibility setting crosses organizations.
type VideoVisibility string

const (
	// VisibilityPrivate: only the uploader and holders of video:view_all.
	VisibilityPrivate VideoVisibility = "private"
	// VisibilityOrganization: any member of the owning organization.
	VisibilityOrganization VideoVisibility = "organization"
)

// Video is owned by exactly one (user, organization) pair. OrganizationID is
// immutable after creation and is the sole tenant-isolation key for every
// video query.
type Video struct {
	ID             uuid.UUID       `json:"id"`
	OrganizationID uuid.UUID       `json:"organization_id"`
	UserID         uuid.UUID       `json:"user_id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	ObjectKey      string          `json:"object_key,omitempty"`
	ContentType    string          `json:"content_type"`
	SizeBytes      int64           `json:"size_bytes"`
	Visibility     VideoVisibility `json:"visibility"`
	Status         VideoStatus     `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
