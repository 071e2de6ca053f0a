package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clipstack/backend/internal/auth"
	"github.com/clipstack/backend/internal/authz"
	"github.com/clipstack/backend/internal/models"
	"github.com/clipstack/backend/pkg/response"
)

const (
	// ContextGrant is the key for the resolved grant in gin context.
	ContextGrant = "authz_grant"
	// HeaderOrganization selects the target organization on routes that
	// have no orgID path parameter.
	HeaderOrganization = "X-Organization-ID"
)

// Gate produces middleware that resolves and enforces grants. Every protected
// request passes through RequireMembership first; RequireRole and
// RequirePermission then check the grant it stored. A missing grant is
// treated as unauthenticated, never as allowed.
type Gate struct {
	resolver *authz.Resolver
	audit    authz.DenialRecorder
	logger   *zap.Logger
}

// NewGate builds a gate. recorder may be nil, in which case denials are only
// logged.
func NewGate(resolver *authz.Resolver, recorder authz.DenialRecorder, logger *zap.Logger) *Gate {
	return &Gate{resolver: resolver, audit: recorder, logger: logger}
}

// RequireMembership resolves the caller's membership in the target
// organization and stores the grant in context. The organization is selected
// by the orgID path parameter, then the X-Organization-ID header, then the
// token's organization hint; a missing or unparseable selector is rejected
// as unauthenticated. The grant is resolved fresh on every request.
func (g *Gate) RequireMembership() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := userFrom(c)
		if !ok {
			g.deny(c, &authz.Denial{Kind: authz.KindUnauthenticated, Reason: "missing_identity"}, uuid.Nil, uuid.Nil)
			return
		}
		orgID, ok := targetOrg(c)
		if !ok {
			g.deny(c, &authz.Denial{Kind: authz.KindUnauthenticated, Reason: "missing_organization"}, userID, uuid.Nil)
			return
		}
		grant, err := g.resolver.Resolve(c.Request.Context(), userID, orgID)
		if err != nil {
			var d *authz.Denial
			if errors.As(err, &d) {
				g.deny(c, d, userID, orgID)
				return
			}
			g.logger.Error("authorization check failed",
				zap.Error(err),
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
			)
			response.Fail(c, http.StatusServiceUnavailable, authz.CodeStoreUnavailable, authz.ErrStoreUnavailable.Error())
			c.Abort()
			return
		}
		c.Set(ContextGrant, grant)
		c.Next()
	}
}

// RequireRole allows only grants at or above min. It must run after
// RequireMembership.
func (g *Gate) RequireRole(min models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		grant, ok := GrantFrom(c)
		if !ok {
			g.deny(c, &authz.Denial{Kind: authz.KindUnauthenticated, Reason: "missing_grant"}, uuid.Nil, uuid.Nil)
			return
		}
		if !grant.Satisfies(min) {
			g.deny(c, &authz.Denial{Kind: authz.KindInsufficientRole, RequiredRole: min, ActualRole: grant.Role},
				grant.UserID, grant.OrganizationID)
			return
		}
		c.Next()
	}
}

// RequirePermission allows only grants whose role carries the capability. It
// must run after RequireMembership.
func (g *Gate) RequirePermission(cap authz.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		grant, ok := GrantFrom(c)
		if !ok {
			g.deny(c, &authz.Denial{Kind: authz.KindUnauthenticated, Reason: "missing_grant"}, uuid.Nil, uuid.Nil)
			return
		}
		if !grant.Can(cap) {
			g.deny(c, &authz.Denial{Kind: authz.KindPermissionDenied, Capability: cap, ActualRole: grant.Role},
				grant.UserID, grant.OrganizationID)
			return
		}
		c.Next()
	}
}

// GrantFrom returns the grant stored by RequireMembership.
func GrantFrom(c *gin.Context) (*authz.Grant, bool) {
	v, ok := c.Get(ContextGrant)
	if !ok {
		return nil, false
	}
	grant, ok := v.(*authz.Grant)
	return grant, ok && grant != nil
}

// MustGrant returns the grant stored by RequireMembership. Handlers
// registered behind RequireMembership may rely on it; elsewhere it panics.
func MustGrant(c *gin.Context) *authz.Grant {
	grant, ok := GrantFrom(c)
	if !ok {
		panic("middleware: no grant in context")
	}
	return grant
}

func (g *Gate) deny(c *gin.Context, d *authz.Denial, userID, orgID uuid.UUID) {
	status := http.StatusForbidden
	if d.Kind == authz.KindUnauthenticated {
		status = http.StatusUnauthorized
	}
	g.logger.Info("access denied",
		zap.String("kind", string(d.Kind)),
		zap.String("reason", d.Reason),
		idField("user_id", userID),
		idField("organization_id", orgID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
	)
	if g.audit != nil && orgID != uuid.Nil {
		g.audit.RecordDenial(c.Request.Context(), authz.DenialRecord{
			Kind:           d.Kind,
			Reason:         d.Reason,
			UserID:         userID,
			OrganizationID: orgID,
			Method:         c.Request.Method,
			Path:           c.FullPath(),
			Message:        d.Error(),
		})
	}
	response.Fail(c, status, string(d.Kind), d.Error())
	c.Abort()
}

func userFrom(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(auth.ContextUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok && id != uuid.Nil
}

func targetOrg(c *gin.Context) (uuid.UUID, bool) {
	if raw := c.Param("orgID"); raw != "" {
		id, err := uuid.Parse(raw)
		return id, err == nil
	}
	if raw := c.GetHeader(HeaderOrganization); raw != "" {
		id, err := uuid.Parse(raw)
		return id, err == nil
	}
	if v, ok := c.Get(auth.ContextOrgID); ok {
		if id, ok := v.(uuid.UUID); ok && id != uuid.Nil {
			return id, true
		}
	}
	return uuid.Nil, false
}

func idField(key string, id uuid.UUID) zap.Field {
	if id == uuid.Nil {
		return zap.Skip()
	}
	return zap.String(key, id.String())
}
