package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditEventType categorizes audit trail entries.
type AuditEventType string

const (
	AuditAccessDenied       AuditEventType = "authz.access_denied"
	AuditMemberAdded        AuditEventType = "member.added"
	AuditMemberRoleChanged  AuditEventType = "member.role_changed"
	AuditMemberRemoved      AuditEventType = "member.removed"
	AuditVideoDeleted       AuditEventType = "video.deleted"
	AuditOrgSettingsChanged AuditEventType = "org.settings_changed"
	AuditOrgDeleted         AuditEventType = "org.deleted"
)

// AuditEvent is one persisted audit trail entry, written asynchronously by the
// worker. ActorID is the authenticated user the event is attributed to;
// TargetID identifies the affected user or video when applicable.
type AuditEvent struct {
	ID             uuid.UUID       `json:"id"`
	OccurredAt     time.Time       `json:"occurred_at"`
	EventType      AuditEventType  `json:"event_type"`
	OrganizationID uuid.UUID       `json:"organization_id"`
	ActorID        *uuid.UUID      `json:"actor_id,omitempty"`
	TargetID       *uuid.UUID      `json:"target_id,omitempty"`
	DenialKind     string          `json:"denial_kind,omitempty"`
	Message        string          `json:"message"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}
