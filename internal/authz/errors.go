package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/clipstack/backend/internal/models"
)

// DenialKind is the machine-readable classification carried on every
// authorization failure. Store outages are deliberately not a denial kind:
// an outage must never read as "denied" to callers or operators.
type DenialKind string

const (
	KindUnauthenticated  DenialKind = "unauthenticated"
	KindNotAMember       DenialKind = "not_a_member"
	KindInsufficientRole DenialKind = "insufficient_role"
	KindPermissionDenied DenialKind = "permission_denied"
)

// CodeStoreUnavailable is the wire code for authorization infrastructure
// failures. It is not a DenialKind: an outage is an error, not a denial.
const CodeStoreUnavailable = "store_unavailable"

var (
	// ErrUnauthenticated: no verifiable identity or no organization selector.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrNotAMember: valid identity, no membership in the target organization.
	// Also used on the wire when the organization is not active, so tenant
	// state is not leaked; the internal Reason distinguishes the two.
	ErrNotAMember = errors.New("not a member of this organization")
	// ErrInsufficientRole: member, but role rank below the requirement.
	ErrInsufficientRole = errors.New("insufficient role")
	// ErrPermissionDenied: member, but role lacks the required capability.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrStoreUnavailable: membership or organization lookup failed for
	// infrastructure reasons. Never conflated with a denial.
	ErrStoreUnavailable = errors.New("authorization store unavailable")
)

// Denial is a typed authorization failure. Kind and the public message go on
// the wire; Reason is internal detail for logs and audit only.
type Denial struct {
	Kind         DenialKind
	Reason       string
	RequiredRole models.Role
	ActualRole   models.Role
	Capability   Capability
}

// Error returns the public, human-readable denial message. Role names appear
// only for the insufficient_role kind, which is only ever produced for
// callers that already authenticated and resolved a membership.
func (d *Denial) Error() string {
	switch d.Kind {
	case KindUnauthenticated:
		return ErrUnauthenticated.Error()
	case KindNotAMember:
		return ErrNotAMember.Error()
	case KindInsufficientRole:
		return fmt.Sprintf("%s: requires %s, have %s", ErrInsufficientRole.Error(), d.RequiredRole, d.ActualRole)
	case KindPermissionDenied:
		return fmt.Sprintf("%s: missing capability %s", ErrPermissionDenied.Error(), d.Capability)
	}
	return "access denied"
}

// Unwrap maps the denial onto its sentinel so errors.Is works across layers.
func (d *Denial) Unwrap() error {
	switch d.Kind {
	case KindUnauthenticated:
		return ErrUnauthenticated
	case KindNotAMember:
		return ErrNotAMember
	case KindInsufficientRole:
		return ErrInsufficientRole
	case KindPermissionDenied:
		return ErrPermissionDenied
	}
	return nil
}

// storeFailure wraps an infrastructure error so errors.Is(err,
// ErrStoreUnavailable) holds while the cause stays visible in logs.
func storeFailure(op string, cause error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, cause)
}

// DenialRecord is what the gate hands to the audit trail for every denial
// that can be attributed to an organization.
type DenialRecord struct {
	Kind           DenialKind
	Reason         string
	UserID         uuid.UUID
	OrganizationID uuid.UUID
	Method         string
	Path           string
	Message        string
}

// DenialRecorder receives denial records. Implementations must not block the
// request; the gate calls this inline.
type DenialRecorder interface {
	RecordDenial(ctx context.Context, rec DenialRecord)
}
