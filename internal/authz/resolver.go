package authz

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clipstack/backend/internal/models"
)

// MembershipFinder is the slice of the membership store the resolver needs.
// A nil membership with a nil error means "no membership exists"; a non-nil
// error means the store could not answer.
type MembershipFinder interface {
	GetMembership(ctx context.Context, orgID, userID uuid.UUID) (*models.Membership, error)
}

// OrganizationGetter reports the target organization so the resolver can
// refuse grants against suspended or deleted tenants. Nil org with nil error
// means "no such organization".
type OrganizationGetter interface {
	GetByID(ctx context.Context, orgID uuid.UUID) (*models.Organization, error)
}

// Grant is the proof that a user holds a role in an organization, resolved
// fresh from the store for a single request. It is never cached across
// requests; revoking a membership takes effect on the next call.
type Grant struct {
	UserID         uuid.UUID
	OrganizationID uuid.UUID
	Role           models.Role
	JoinedAt       time.Time
}

// Satisfies reports whether the grant's role meets the minimum.
func (g *Grant) Satisfies(min models.Role) bool {
	return Satisfies(g.Role, min)
}

// Can reports whether the grant's role carries the capability.
func (g *Grant) Can(cap Capability) bool {
	return RoleAllows(g.Role, cap)
}

// Resolver turns (user, organization) pairs into grants. It is safe for
// concurrent use; it holds no per-request state.
type Resolver struct {
	memberships MembershipFinder
	orgs        OrganizationGetter
}

// NewResolver builds a resolver. orgs may be nil, in which case organization
// status is not checked and only the membership decides.
func NewResolver(memberships MembershipFinder, orgs OrganizationGetter) *Resolver {
	return &Resolver{memberships: memberships, orgs: orgs}
}

// Resolve loads the caller's membership in the target organization and
// returns a grant. Failures are either a *Denial (the caller is not allowed)
// or an ErrStoreUnavailable wrap (the store could not answer). A missing or
// inactive organization resolves to not_a_member so that probing requests
// cannot distinguish "no such org" from "not yours".
func (r *Resolver) Resolve(ctx context.Context, userID, orgID uuid.UUID) (*Grant, error) {
	if r.orgs != nil {
		org, err := r.orgs.GetByID(ctx, orgID)
		if err != nil {
			return nil, storeFailure("get organization", err)
		}
		if org == nil {
			return nil, &Denial{Kind: KindNotAMember, Reason: "organization_not_found"}
		}
		if !org.IsActive() {
			return nil, &Denial{Kind: KindNotAMember, Reason: "organization_inactive"}
		}
	}

	m, err := r.memberships.GetMembership(ctx, orgID, userID)
	if err != nil {
		return nil, storeFailure("get membership", err)
	}
	if m == nil {
		return nil, &Denial{Kind: KindNotAMember, Reason: "no_membership"}
	}

	return &Grant{
		UserID:         m.UserID,
		OrganizationID: m.OrganizationID,
		Role:           m.Role,
		JoinedAt:       m.JoinedAt,
	}, nil
}
