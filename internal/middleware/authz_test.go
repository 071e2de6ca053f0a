package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clipstack/backend/internal/auth"
	"github.com/clipstack/backend/internal/authz"
	"github.com/clipstack/backend/internal/models"
	"github.com/clipstack/backend/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// gateStore fakes the resolver's organization and membership lookups and
// records the organization each membership lookup targeted.
type gateStore struct {
	org    *models.Organization
	orgErr error
	m      *models.Membership
	mErr   error

	lastOrg uuid.UUID
}

func (s *gateStore) GetByID(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	return s.org, s.orgErr
}

func (s *gateStore) GetMembership(ctx context.Context, orgID, userID uuid.UUID) (*models.Membership, error) {
	s.lastOrg = orgID
	return s.m, s.mErr
}

type capturingRecorder struct {
	records []authz.DenialRecord
}

func (r *capturingRecorder) RecordDenial(ctx context.Context, rec authz.DenialRecord) {
	r.records = append(r.records, rec)
}

type failBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func memberStore(orgID, userID uuid.UUID, role models.Role) *gateStore {
	return &gateStore{
		org: &models.Organization{ID: orgID, Slug: "acme", Status: models.OrgStatusActive},
		m:   &models.Membership{OrganizationID: orgID, UserID: userID, Role: role},
	}
}

// newGateRouter mounts a minimal org-scoped API behind the gate. identity is
// planted directly in context, standing in for the JWT middleware.
func newGateRouter(store *gateStore, identity uuid.UUID, rec authz.DenialRecorder) *gin.Engine {
	gate := NewGate(authz.NewResolver(store, store), rec, zap.NewNop())

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if identity != uuid.Nil {
			c.Set(auth.ContextUserID, identity)
		}
	})
	org := r.Group("/organizations/:orgID")
	org.Use(gate.RequireMembership())
	org.GET("/videos", func(c *gin.Context) {
		response.OK(c, gin.H{"role": MustGrant(c).Role})
	})
	org.DELETE("", gate.RequireRole(models.RoleAdmin), func(c *gin.Context) {
		response.NoContent(c)
	})
	org.PATCH("/settings", gate.RequirePermission(authz.CapManageSettings), func(c *gin.Context) {
		response.OK(c, nil)
	})
	return r
}

func doRequest(r *gin.Engine, method, path string) (*httptest.ResponseRecorder, failBody) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
	var body failBody
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestGateAllowsMember(t *testing.T) {
	orgID, userID := uuid.New(), uuid.New()
	r := newGateRouter(memberStore(orgID, userID, models.RoleViewer), userID, nil)

	w, _ := doRequest(r, http.MethodGet, "/organizations/"+orgID.String()+"/videos")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGateRejectsMissingIdentity(t *testing.T) {
	orgID := uuid.New()
	r := newGateRouter(memberStore(orgID, uuid.New(), models.RoleAdmin), uuid.Nil, nil)

	w, body := doRequest(r, http.MethodGet, "/organizations/"+orgID.String()+"/videos")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, string(authz.KindUnauthenticated), body.Code)
}

func TestGateRejectsNonMember(t *testing.T) {
	orgID := uuid.New()
	store := &gateStore{org: &models.Organization{ID: orgID, Status: models.OrgStatusActive}}
	r := newGateRouter(store, uuid.New(), nil)

	w, body := doRequest(r, http.MethodGet, "/organizations/"+orgID.String()+"/videos")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, string(authz.KindNotAMember), body.Code)
}

// A request against an organization that does not exist must be
// indistinguishable on the wire from one against an organization the caller
// is not a member of.
func TestGateHidesOrganizationExistence(t *testing.T) {
	userID := uuid.New()
	existing := &gateStore{org: &models.Organization{ID: uuid.New(), Status: models.OrgStatusActive}}
	missing := &gateStore{}

	wExisting, bodyExisting := doRequest(newGateRouter(existing, userID, nil),
		http.MethodGet, "/organizations/"+uuid.New().String()+"/videos")
	wMissing, bodyMissing := doRequest(newGateRouter(missing, userID, nil),
		http.MethodGet, "/organizations/"+uuid.New().String()+"/videos")

	assert.Equal(t, wExisting.Code, wMissing.Code)
	assert.Equal(t, http.StatusForbidden, wMissing.Code)
	assert.Equal(t, bodyExisting.Code, bodyMissing.Code)
	assert.Equal(t, bodyExisting.Error, bodyMissing.Error)
}

func TestGateRejectsSuspendedOrganization(t *testing.T) {
	orgID, userID := uuid.New(), uuid.New()
	store := memberStore(orgID, userID, models.RoleAdmin)
	store.org.Status = models.OrgStatusSuspended
	r := newGateRouter(store, userID, nil)

	w, body := doRequest(r, http.MethodGet, "/organizations/"+orgID.String()+"/videos")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, string(authz.KindNotAMember), body.Code)
}

func TestGateInvalidOrgSelector(t *testing.T) {
	r := newGateRouter(&gateStore{}, uuid.New(), nil)

	w, body := doRequest(r, http.MethodGet, "/organizations/not-a-uuid/videos")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, string(authz.KindUnauthenticated), body.Code)
}

// Infrastructure failures come back as 503 with a dedicated code; they never
// wear a denial kind.
func TestGateStoreFailureIs503(t *testing.T) {
	orgID, userID := uuid.New(), uuid.New()
	store := memberStore(orgID, userID, models.RoleAdmin)
	store.mErr = errors.New("connection refused")
	r := newGateRouter(store, userID, nil)

	w, body := doRequest(r, http.MethodGet, "/organizations/"+orgID.String()+"/videos")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, authz.CodeStoreUnavailable, body.Code)
	assert.NotEqual(t, string(authz.KindNotAMember), body.Code)
}

func TestRequireRoleInsufficient(t *testing.T) {
	orgID, userID := uuid.New(), uuid.New()
	r := newGateRouter(memberStore(orgID, userID, models.RoleViewer), userID, nil)

	w, body := doRequest(r, http.MethodDelete, "/organizations/"+orgID.String())
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, string(authz.KindInsufficientRole), body.Code)
	assert.Contains(t, body.Error, "requires admin")
	assert.Contains(t, body.Error, "have viewer")
}

func TestRequireRoleSatisfied(t *testing.T) {
	orgID, userID := uuid.New(), uuid.New()
	r := newGateRouter(memberStore(orgID, userID, models.RoleAdmin), userID, nil)

	w, _ := doRequest(r, http.MethodDelete, "/organizations/"+orgID.String())
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRequirePermissionDenied(t *testing.T) {
	orgID, userID := uuid.New(), uuid.New()
	r := newGateRouter(memberStore(orgID, userID, models.RoleEditor), userID, nil)

	w, body := doRequest(r, http.MethodPatch, "/organizations/"+orgID.String()+"/settings")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, string(authz.KindPermissionDenied), body.Code)
	assert.Contains(t, body.Error, string(authz.CapManageSettings))
}

func TestDenialIsRecorded(t *testing.T) {
	orgID := uuid.New()
	userID := uuid.New()
	rec := &capturingRecorder{}
	store := &gateStore{org: &models.Organization{ID: orgID, Status: models.OrgStatusActive}}
	r := newGateRouter(store, userID, rec)

	doRequest(r, http.MethodGet, "/organizations/"+orgID.String()+"/videos")

	require.Len(t, rec.records, 1)
	got := rec.records[0]
	assert.Equal(t, authz.KindNotAMember, got.Kind)
	assert.Equal(t, userID, got.UserID)
	assert.Equal(t, orgID, got.OrganizationID)
	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "/organizations/:orgID/videos", got.Path)
}

// Denials with no target organization (bad selector, missing identity) are
// logged but not written to any tenant's audit trail.
func TestDenialWithoutOrganizationNotRecorded(t *testing.T) {
	rec := &capturingRecorder{}
	r := newGateRouter(&gateStore{}, uuid.Nil, rec)

	doRequest(r, http.MethodGet, "/organizations/"+uuid.New().String()+"/videos")
	assert.Empty(t, rec.records)
}

// The path parameter outranks the X-Organization-ID header, which outranks
// the token's organization hint.
func TestOrgSelectorPrecedence(t *testing.T) {
	pathOrg, headerOrg, hintOrg := uuid.New(), uuid.New(), uuid.New()
	userID := uuid.New()

	store := &gateStore{
		org: &models.Organization{Status: models.OrgStatusActive},
		m:   &models.Membership{UserID: userID, Role: models.RoleViewer},
	}
	gate := NewGate(authz.NewResolver(store, store), nil, zap.NewNop())

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(auth.ContextUserID, userID)
		c.Set(auth.ContextOrgID, hintOrg)
	})
	r.GET("/organizations/:orgID/videos", gate.RequireMembership(), func(c *gin.Context) { response.OK(c, nil) })
	r.GET("/videos", gate.RequireMembership(), func(c *gin.Context) { response.OK(c, nil) })

	// Path parameter wins even when the header is set.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/organizations/"+pathOrg.String()+"/videos", nil)
	req.Header.Set(HeaderOrganization, headerOrg.String())
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, pathOrg, store.lastOrg)

	// Without a path parameter the header wins over the token hint.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/videos", nil)
	req.Header.Set(HeaderOrganization, headerOrg.String())
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, headerOrg, store.lastOrg)

	// With neither, the token hint is used.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/videos", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, hintOrg, store.lastOrg)
}

func TestRequireRoleWithoutMembershipGate(t *testing.T) {
	gate := NewGate(authz.NewResolver(&gateStore{}, nil), nil, zap.NewNop())

	r := gin.New()
	// RequireMembership deliberately omitted: the grant is missing.
	r.GET("/x", gate.RequireRole(models.RoleViewer), func(c *gin.Context) { response.OK(c, nil) })

	w, body := doRequest(r, http.MethodGet, "/x")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, string(authz.KindUnauthenticated), body.Code)
}

func TestGrantFrom(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := GrantFrom(c)
	assert.False(t, ok)

	want := &authz.Grant{UserID: uuid.New(), Role: models.RoleEditor}
	c.Set(ContextGrant, want)
	got, ok := GrantFrom(c)
	require.True(t, ok)
	assert.Equal(t, want, got)
}
