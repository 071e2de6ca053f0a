package authz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipstack/backend/internal/models"
)

// stubStore fakes both the organization and membership lookups.
type stubStore struct {
	org    *models.Organization
	orgErr error
	m      *models.Membership
	mErr   error

	membershipCalls int
}

func (s *stubStore) GetByID(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	return s.org, s.orgErr
}

func (s *stubStore) GetMembership(ctx context.Context, orgID, userID uuid.UUID) (*models.Membership, error) {
	s.membershipCalls++
	return s.m, s.mErr
}

func activeOrg(id uuid.UUID) *models.Organization {
	return &models.Organization{ID: id, Name: "Acme", Slug: "acme", Status: models.OrgStatusActive}
}

func TestResolveGrant(t *testing.T) {
	userID, orgID := uuid.New(), uuid.New()
	joined := time.Now().Add(-time.Hour)
	store := &stubStore{
		org: activeOrg(orgID),
		m:   &models.Membership{OrganizationID: orgID, UserID: userID, Role: models.RoleEditor, JoinedAt: joined},
	}

	grant, err := NewResolver(store, store).Resolve(context.Background(), userID, orgID)
	require.NoError(t, err)
	require.NotNil(t, grant)
	assert.Equal(t, userID, grant.UserID)
	assert.Equal(t, orgID, grant.OrganizationID)
	assert.Equal(t, models.RoleEditor, grant.Role)
	assert.Equal(t, joined, grant.JoinedAt)

	assert.True(t, grant.Satisfies(models.RoleViewer))
	assert.False(t, grant.Satisfies(models.RoleAdmin))
	assert.True(t, grant.Can(CapUploadVideo))
	assert.False(t, grant.Can(CapManageMembers))
}

// multiOrgStore keys memberships by organization so one user can hold a
// different role in each tenant.
type multiOrgStore struct {
	orgs  map[uuid.UUID]*models.Organization
	roles map[uuid.UUID]models.Role
	user  uuid.UUID
}

func (s *multiOrgStore) GetByID(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	return s.orgs[orgID], nil
}

func (s *multiOrgStore) GetMembership(ctx context.Context, orgID, userID uuid.UUID) (*models.Membership, error) {
	if userID != s.user {
		return nil, nil
	}
	role, ok := s.roles[orgID]
	if !ok {
		return nil, nil
	}
	return &models.Membership{OrganizationID: orgID, UserID: userID, Role: role}, nil
}

// Role is strictly per tenant: an editor in one organization who is an admin
// in another gets the editor capability set there and the admin set here,
// and nothing at all in a third organization.
func TestResolveRoleIsPerOrganization(t *testing.T) {
	user := uuid.New()
	orgA, orgB := uuid.New(), uuid.New()
	store := &multiOrgStore{
		orgs:  map[uuid.UUID]*models.Organization{orgA: activeOrg(orgA), orgB: activeOrg(orgB)},
		roles: map[uuid.UUID]models.Role{orgA: models.RoleEditor, orgB: models.RoleAdmin},
		user:  user,
	}
	resolver := NewResolver(store, store)

	inA, err := resolver.Resolve(context.Background(), user, orgA)
	require.NoError(t, err)
	assert.Equal(t, models.RoleEditor, inA.Role)
	assert.True(t, inA.Can(CapDeleteAnyVideo))
	assert.False(t, inA.Can(CapManageMembers))

	inB, err := resolver.Resolve(context.Background(), user, orgB)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, inB.Role)
	assert.True(t, inB.Can(CapManageMembers))

	_, err = resolver.Resolve(context.Background(), user, uuid.New())
	assert.ErrorIs(t, err, ErrNotAMember)
}

func TestResolveNoMembership(t *testing.T) {
	orgID := uuid.New()
	store := &stubStore{org: activeOrg(orgID)}

	grant, err := NewResolver(store, store).Resolve(context.Background(), uuid.New(), orgID)
	require.Error(t, err)
	assert.Nil(t, grant)

	var d *Denial
	require.ErrorAs(t, err, &d)
	assert.Equal(t, KindNotAMember, d.Kind)
	assert.Equal(t, "no_membership", d.Reason)
	assert.ErrorIs(t, err, ErrNotAMember)
}

// A nonexistent organization and an organization the caller does not belong
// to produce the same denial kind and message, so probing cannot tell them
// apart.
func TestResolveOrganizationNotFoundLooksLikeNonMember(t *testing.T) {
	missing := &stubStore{} // no org, no membership
	nonMember := &stubStore{org: activeOrg(uuid.New())}

	_, errMissing := NewResolver(missing, missing).Resolve(context.Background(), uuid.New(), uuid.New())
	_, errNonMember := NewResolver(nonMember, nonMember).Resolve(context.Background(), uuid.New(), uuid.New())

	var dMissing, dNonMember *Denial
	require.ErrorAs(t, errMissing, &dMissing)
	require.ErrorAs(t, errNonMember, &dNonMember)

	assert.Equal(t, dNonMember.Kind, dMissing.Kind)
	assert.Equal(t, dNonMember.Error(), dMissing.Error())
	// Internal reasons still differ for the audit trail.
	assert.Equal(t, "organization_not_found", dMissing.Reason)
	assert.Equal(t, "no_membership", dNonMember.Reason)
}

func TestResolveInactiveOrganization(t *testing.T) {
	for _, status := range []models.OrganizationStatus{models.OrgStatusSuspended, models.OrgStatusDeleted} {
		t.Run(string(status), func(t *testing.T) {
			userID, orgID := uuid.New(), uuid.New()
			store := &stubStore{
				org: &models.Organization{ID: orgID, Status: status},
				m:   &models.Membership{OrganizationID: orgID, UserID: userID, Role: models.RoleAdmin},
			}

			_, err := NewResolver(store, store).Resolve(context.Background(), userID, orgID)
			var d *Denial
			require.ErrorAs(t, err, &d)
			assert.Equal(t, KindNotAMember, d.Kind)
			assert.Equal(t, "organization_inactive", d.Reason)
			// Membership is never consulted for an inactive tenant.
			assert.Zero(t, store.membershipCalls)
		})
	}
}

// Store failures must surface as ErrStoreUnavailable, never as a denial: an
// outage reading as "denied" would be both wrong and misleading in audit.
func TestResolveStoreFailureIsNotADenial(t *testing.T) {
	boom := errors.New("connection refused")
	orgID := uuid.New()

	cases := []struct {
		name  string
		store *stubStore
	}{
		{"organization lookup fails", &stubStore{orgErr: boom}},
		{"membership lookup fails", &stubStore{org: activeOrg(orgID), mErr: boom}},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewResolver(tt.store, tt.store).Resolve(context.Background(), uuid.New(), orgID)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrStoreUnavailable)

			var d *Denial
			assert.False(t, errors.As(err, &d), "store failure must not be a denial")
		})
	}
}

// Grants are resolved fresh every time: removing the membership takes effect
// on the very next resolution.
func TestResolveRevocationTakesEffectNextCall(t *testing.T) {
	userID, orgID := uuid.New(), uuid.New()
	store := &stubStore{
		org: activeOrg(orgID),
		m:   &models.Membership{OrganizationID: orgID, UserID: userID, Role: models.RoleAdmin},
	}
	resolver := NewResolver(store, store)

	_, err := resolver.Resolve(context.Background(), userID, orgID)
	require.NoError(t, err)

	store.m = nil // revoked
	_, err = resolver.Resolve(context.Background(), userID, orgID)
	assert.ErrorIs(t, err, ErrNotAMember)
	assert.Equal(t, 2, store.membershipCalls)
}

func TestResolveWithoutOrganizationGetter(t *testing.T) {
	userID, orgID := uuid.New(), uuid.New()
	store := &stubStore{
		m: &models.Membership{OrganizationID: orgID, UserID: userID, Role: models.RoleViewer},
	}

	grant, err := NewResolver(store, nil).Resolve(context.Background(), userID, orgID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleViewer, grant.Role)
}

// Roles read back from storage that are not in the fixed set must never grant
// anything, even when a membership row exists.
func TestResolveUnknownStoredRoleGrantsNothing(t *testing.T) {
	userID, orgID := uuid.New(), uuid.New()
	store := &stubStore{
		org: activeOrg(orgID),
		m:   &models.Membership{OrganizationID: orgID, UserID: userID, Role: models.Role("superuser")},
	}

	grant, err := NewResolver(store, store).Resolve(context.Background(), userID, orgID)
	require.NoError(t, err)
	assert.False(t, grant.Satisfies(models.RoleViewer))
	assert.False(t, grant.Can(CapUploadVideo))
	assert.False(t, grant.Can(CapManageSettings))
}
