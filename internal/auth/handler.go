package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clipstack/backend/internal/authz"
	"github.com/clipstack/backend/internal/models"
	"github.com/clipstack/backend/pkg/password"
	"github.com/clipstack/backend/pkg/response"
)

// MembershipStore is the slice of the organization store the auth flows
// need: org bootstrap at registration, fallback org at login, membership
// re-validation when switching organizations.
type MembershipStore interface {
	CreateWithAdmin(ctx context.Context, org *models.Organization, adminID uuid.UUID) error
	ListMembershipsForUser(ctx context.Context, userID uuid.UUID) ([]models.Membership, error)
	GetMembership(ctx context.Context, orgID, userID uuid.UUID) (*models.Membership, error)
	GetByID(ctx context.Context, orgID uuid.UUID) (*models.Organization, error)
	GetBySlug(ctx context.Context, slug string) (*models.Organization, error)
}

// RegisterOrganization is the optional organization bootstrap at registration.
type RegisterOrganization struct {
	Name string `json:"name" binding:"required"`
	Slug string `json:"slug" binding:"required"`
}

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Email        string                `json:"email" binding:"required,email"`
	Password     string                `json:"password" binding:"required"`
	FullName     string                `json:"full_name" binding:"required"`
	Organization *RegisterOrganization `json:"organization"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// SwitchOrganizationRequest is the body for POST /auth/switch-organization.
type SwitchOrganizationRequest struct {
	OrganizationID string `json:"organization_id" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token        string               `json:"token"`
	User         models.UserPublic    `json:"user"`
	Organization *models.Organization `json:"organization,omitempty"`
}

// MeResponse is the body of GET /me.
type MeResponse struct {
	User        models.UserPublic   `json:"user"`
	Memberships []models.Membership `json:"memberships"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	repo        *Repository
	memberships MembershipStore
	jwt         *JWTService
	logger      *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo *Repository, memberships MembershipStore, jwt *JWTService, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, memberships: memberships, jwt: jwt, logger: logger}
}

// Register handles POST /auth/register. With an organization block, the
// caller gets a fresh organization and its first admin membership; without
// one, the account starts with no memberships.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := password.Validate(req.Password); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var org *models.Organization
	if req.Organization != nil {
		slug := strings.ToLower(strings.TrimSpace(req.Organization.Slug))
		if !models.ValidSlug(slug) {
			response.BadRequest(c, "slug must be 2–64 chars, lowercase letters, numbers, hyphens only")
			return
		}
		name := strings.TrimSpace(req.Organization.Name)
		if len(name) < 1 || len(name) > 255 {
			response.BadRequest(c, "organization name must be 1–255 characters")
			return
		}
		existing, err := h.memberships.GetBySlug(c.Request.Context(), slug)
		if err != nil {
			h.logger.Error("slug lookup failed", zap.Error(err))
			response.Internal(c, "failed to check organization slug")
			return
		}
		if existing != nil {
			response.Conflict(c, "an organization with this slug already exists")
			return
		}
		org = &models.Organization{
			Name:     name,
			Slug:     slug,
			Status:   models.OrgStatusActive,
			Settings: models.DefaultSettings(),
		}
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}
	user, err := h.repo.Create(c.Request.Context(), email, hash, req.FullName)
	if err != nil {
		if err == ErrDuplicateEmail {
			response.BadRequest(c, "email already registered")
			return
		}
		h.logger.Error("create user failed", zap.Error(err))
		response.Internal(c, "failed to create user")
		return
	}

	var orgID *uuid.UUID
	if org != nil {
		if err := h.memberships.CreateWithAdmin(c.Request.Context(), org, user.ID); err != nil {
			h.logger.Error("create organization failed", zap.Error(err), zap.String("user_id", user.ID.String()))
			response.Internal(c, "account created but organization setup failed; create it via POST /organizations")
			return
		}
		orgID = &org.ID
	}

	token, err := h.jwt.Generate(user.ID, user.Email, orgID)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.Created(c, TokenResponse{Token: token, User: user.ToPublic(), Organization: org})
}

// Login handles POST /auth/login. The token's organization hint is the
// earliest membership; clients switch via POST /auth/switch-organization.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.repo.GetByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		h.logger.Error("login lookup failed", zap.Error(err))
		response.Internal(c, "failed to look up account")
		return
	}
	if user == nil || !password.Verify(req.Password, user.PasswordHash) {
		response.Unauthorized(c, "invalid email or password")
		return
	}
	if !user.IsActive {
		response.Forbidden(c, "account is inactive")
		return
	}

	memberships, err := h.memberships.ListMembershipsForUser(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error("list memberships failed", zap.Error(err), zap.String("user_id", user.ID.String()))
		response.Internal(c, "failed to load memberships")
		return
	}
	var orgID *uuid.UUID
	if len(memberships) > 0 {
		orgID = &memberships[0].OrganizationID
	}

	token, err := h.jwt.Generate(user.ID, user.Email, orgID)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	c.JSON(http.StatusOK, response.Body{Success: true, Data: TokenResponse{Token: token, User: user.ToPublic()}})
}

// SwitchOrganization handles POST /auth/switch-organization. Issues a new
// token whose organization hint is the requested org, after re-validating
// that the caller is a member and the org is active.
func (h *Handler) SwitchOrganization(c *gin.Context) {
	userID := c.MustGet(ContextUserID).(uuid.UUID)
	email := c.MustGet(ContextUserEmail).(string)

	var req SwitchOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "organization_id required")
		return
	}
	orgID, err := uuid.Parse(req.OrganizationID)
	if err != nil {
		response.BadRequest(c, "invalid organization_id")
		return
	}

	org, err := h.memberships.GetByID(c.Request.Context(), orgID)
	if err != nil {
		response.Fail(c, http.StatusServiceUnavailable, authz.CodeStoreUnavailable, authz.ErrStoreUnavailable.Error())
		return
	}
	if org == nil || !org.IsActive() {
		response.Fail(c, http.StatusForbidden, string(authz.KindNotAMember), authz.ErrNotAMember.Error())
		return
	}
	m, err := h.memberships.GetMembership(c.Request.Context(), orgID, userID)
	if err != nil {
		response.Fail(c, http.StatusServiceUnavailable, authz.CodeStoreUnavailable, authz.ErrStoreUnavailable.Error())
		return
	}
	if m == nil {
		response.Fail(c, http.StatusForbidden, string(authz.KindNotAMember), authz.ErrNotAMember.Error())
		return
	}

	user, err := h.repo.GetByID(c.Request.Context(), userID)
	if err != nil || user == nil {
		response.Internal(c, "failed to load account")
		return
	}
	token, err := h.jwt.Generate(userID, email, &orgID)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.OK(c, TokenResponse{Token: token, User: user.ToPublic(), Organization: org})
}

// Me handles GET /me. Returns the caller's profile and memberships.
func (h *Handler) Me(c *gin.Context) {
	userID := c.MustGet(ContextUserID).(uuid.UUID)
	user, err := h.repo.GetByID(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("load user failed", zap.Error(err))
		response.Internal(c, "failed to load account")
		return
	}
	if user == nil {
		response.NotFound(c, "user not found")
		return
	}
	memberships, err := h.memberships.ListMembershipsForUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list memberships failed", zap.Error(err))
		response.Internal(c, "failed to load memberships")
		return
	}
	response.OK(c, MeResponse{User: user.ToPublic(), Memberships: memberships})
}
