package organizations

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clipstack/backend/internal/audit"
	"github.com/clipstack/backend/internal/auth"
	"github.com/clipstack/backend/internal/middleware"
	"github.com/clipstack/backend/internal/models"
	"github.com/clipstack/backend/pkg/response"
)

// UserDirectory looks up users for member management. Nil user with nil
// error means "no such user".
type UserDirectory interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// Handler handles organization and membership HTTP endpoints.
type Handler struct {
	repo   *Repository
	users  UserDirectory
	audit  *audit.Recorder
	logger *zap.Logger
}

// NewHandler creates an organizations handler.
func NewHandler(repo *Repository, users UserDirectory, recorder *audit.Recorder, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, users: users, audit: recorder, logger: logger}
}

// CreateOrganizationRequest is the body for POST /organizations.
type CreateOrganizationRequest struct {
	Name string `json:"name" binding:"required"`
	Slug string `json:"slug" binding:"required"`
}

// Create handles POST /organizations. Creates the organization with the
// caller as its first admin.
func (h *Handler) Create(c *gin.Context) {
	userID := c.MustGet(auth.ContextUserID).(uuid.UUID)
	var body CreateOrganizationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "name and slug required")
		return
	}
	body.Slug = strings.ToLower(strings.TrimSpace(body.Slug))
	if !models.ValidSlug(body.Slug) {
		response.BadRequest(c, "slug must be 2–64 chars, lowercase letters, numbers, hyphens only")
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	if len(body.Name) < 1 || len(body.Name) > 255 {
		response.BadRequest(c, "name must be 1–255 characters")
		return
	}
	org := &models.Organization{
		Name:     body.Name,
		Slug:     body.Slug,
		Status:   models.OrgStatusActive,
		Settings: models.DefaultSettings(),
	}
	if err := h.repo.CreateWithAdmin(c.Request.Context(), org, userID); err != nil {
		if errors.Is(err, ErrDuplicateSlug) {
			response.Conflict(c, "an organization with this slug already exists")
			return
		}
		h.logger.Error("create organization failed", zap.Error(err))
		response.Internal(c, "failed to create organization")
		return
	}
	response.Created(c, org)
}

// ListMine handles GET /organizations. Returns the caller's organizations
// with the caller's role in each.
func (h *Handler) ListMine(c *gin.Context) {
	userID := c.MustGet(auth.ContextUserID).(uuid.UUID)
	orgs, err := h.repo.ListOrganizationsForUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list organizations failed", zap.Error(err))
		response.Internal(c, "failed to load organizations")
		return
	}
	response.OK(c, orgs)
}

// Get handles GET /organizations/:orgID. Any member may read the organization.
func (h *Handler) Get(c *gin.Context) {
	grant := middleware.MustGrant(c)
	org, err := h.repo.GetByID(c.Request.Context(), grant.OrganizationID)
	if err != nil {
		h.logger.Error("get organization failed", zap.Error(err))
		response.Internal(c, "failed to load organization")
		return
	}
	if org == nil {
		response.NotFound(c, "organization not found")
		return
	}
	response.OK(c, org)
}

// UpdateSettingsRequest is the body for PATCH /organizations/:orgID/settings.
// Absent fields keep their current value.
type UpdateSettingsRequest struct {
	MaxVideos         *int    `json:"max_videos"`
	MaxStorageBytes   *int64  `json:"max_storage_bytes"`
	DefaultVisibility *string `json:"default_visibility"`
}

// UpdateSettings handles PATCH /organizations/:orgID/settings.
func (h *Handler) UpdateSettings(c *gin.Context) {
	grant := middleware.MustGrant(c)
	var body UpdateSettingsRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	org, err := h.repo.GetByID(c.Request.Context(), grant.OrganizationID)
	if err != nil {
		h.logger.Error("get organization failed", zap.Error(err))
		response.Internal(c, "failed to load organization")
		return
	}
	if org == nil {
		response.NotFound(c, "organization not found")
		return
	}
	settings := org.Settings
	if body.MaxVideos != nil {
		if *body.MaxVideos < 0 {
			response.BadRequest(c, "max_videos must be >= 0")
			return
		}
		settings.MaxVideos = *body.MaxVideos
	}
	if body.MaxStorageBytes != nil {
		if *body.MaxStorageBytes < 0 {
			response.BadRequest(c, "max_storage_bytes must be >= 0")
			return
		}
		settings.MaxStorageBytes = *body.MaxStorageBytes
	}
	if body.DefaultVisibility != nil {
		v := models.VideoVisibility(*body.DefaultVisibility)
		if v != models.VisibilityPrivate && v != models.VisibilityOrganization {
			response.BadRequest(c, "default_visibility must be private or organization")
			return
		}
		settings.DefaultVisibility = v
	}
	if err := h.repo.UpdateSettings(c.Request.Context(), grant.OrganizationID, settings); err != nil {
		if errors.Is(err, ErrOrganizationNotFound) {
			response.NotFound(c, "organization not found")
			return
		}
		h.logger.Error("update settings failed", zap.Error(err))
		response.Internal(c, "failed to update settings")
		return
	}
	h.audit.Record(c.Request.Context(), models.AuditEvent{
		EventType:      models.AuditOrgSettingsChanged,
		OrganizationID: grant.OrganizationID,
		ActorID:        &grant.UserID,
		Metadata:       audit.Metadata(map[string]any{"settings": settings}),
	})
	org.Settings = settings
	response.OK(c, org)
}

// Delete handles DELETE /organizations/:orgID. Soft-deletes the organization
// and removes all memberships; videos and audit events are retained.
func (h *Handler) Delete(c *gin.Context) {
	grant := middleware.MustGrant(c)
	if err := h.repo.SoftDelete(c.Request.Context(), grant.OrganizationID); err != nil {
		if errors.Is(err, ErrOrganizationNotFound) {
			response.NotFound(c, "organization not found")
			return
		}
		h.logger.Error("delete organization failed", zap.Error(err))
		response.Internal(c, "failed to delete organization")
		return
	}
	h.audit.Record(c.Request.Context(), models.AuditEvent{
		EventType:      models.AuditOrgDeleted,
		OrganizationID: grant.OrganizationID,
		ActorID:        &grant.UserID,
	})
	response.NoContent(c)
}

// ListMembers handles GET /organizations/:orgID/members. Any member may see
// the roster.
func (h *Handler) ListMembers(c *gin.Context) {
	grant := middleware.MustGrant(c)
	members, err := h.repo.ListMembers(c.Request.Context(), grant.OrganizationID)
	if err != nil {
		h.logger.Error("list members failed", zap.Error(err))
		response.Internal(c, "failed to load members")
		return
	}
	response.OK(c, members)
}

// AddMemberRequest is the body for POST /organizations/:orgID/members.
type AddMemberRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"required"`
}

// AddMember handles POST /organizations/:orgID/members. Adds an existing
// user to the organization by email.
func (h *Handler) AddMember(c *gin.Context) {
	grant := middleware.MustGrant(c)
	var body AddMemberRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "email and role required")
		return
	}
	role := models.Role(body.Role)
	if !role.Valid() {
		response.BadRequest(c, "role must be admin, editor, or viewer")
		return
	}
	user, err := h.users.GetByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(body.Email)))
	if err != nil {
		h.logger.Error("lookup user failed", zap.Error(err))
		response.Internal(c, "failed to look up user")
		return
	}
	if user == nil {
		response.NotFound(c, "user not found")
		return
	}
	if !user.IsActive {
		response.BadRequest(c, "user account is inactive")
		return
	}
	if err := h.repo.AddMember(c.Request.Context(), grant.OrganizationID, user.ID, role); err != nil {
		if errors.Is(err, ErrDuplicateMembership) {
			response.Conflict(c, "user is already a member of this organization")
			return
		}
		h.logger.Error("add member failed", zap.Error(err))
		response.Internal(c, "failed to add member")
		return
	}
	h.audit.Record(c.Request.Context(), models.AuditEvent{
		EventType:      models.AuditMemberAdded,
		OrganizationID: grant.OrganizationID,
		ActorID:        &grant.UserID,
		TargetID:       &user.ID,
		Metadata:       audit.Metadata(map[string]any{"role": role}),
	})
	m, err := h.repo.GetMembership(c.Request.Context(), grant.OrganizationID, user.ID)
	if err != nil || m == nil {
		response.Created(c, gin.H{"organization_id": grant.OrganizationID, "user_id": user.ID, "role": role})
		return
	}
	response.Created(c, m)
}

// UpdateMemberRoleRequest is the body for PATCH /organizations/:orgID/members/:userID.
type UpdateMemberRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// UpdateMemberRole handles PATCH /organizations/:orgID/members/:userID. The
// change takes effect on the member's next request; in-flight requests keep
// the grant they resolved.
func (h *Handler) UpdateMemberRole(c *gin.Context) {
	grant := middleware.MustGrant(c)
	targetID, err := uuid.Parse(c.Param("userID"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	var body UpdateMemberRoleRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "role required")
		return
	}
	role := models.Role(body.Role)
	if !role.Valid() {
		response.BadRequest(c, "role must be admin, editor, or viewer")
		return
	}
	current, err := h.repo.GetMembership(c.Request.Context(), grant.OrganizationID, targetID)
	if err != nil {
		h.logger.Error("get membership failed", zap.Error(err))
		response.Internal(c, "failed to load membership")
		return
	}
	if current == nil {
		response.NotFound(c, "membership not found")
		return
	}
	if current.Role == models.RoleAdmin && role != models.RoleAdmin {
		if err := h.guardLastAdmin(c, grant.OrganizationID); err != nil {
			return
		}
	}
	if err := h.repo.UpdateMemberRole(c.Request.Context(), grant.OrganizationID, targetID, role); err != nil {
		if errors.Is(err, ErrMembershipNotFound) {
			response.NotFound(c, "membership not found")
			return
		}
		h.logger.Error("update member role failed", zap.Error(err))
		response.Internal(c, "failed to update role")
		return
	}
	h.audit.Record(c.Request.Context(), models.AuditEvent{
		EventType:      models.AuditMemberRoleChanged,
		OrganizationID: grant.OrganizationID,
		ActorID:        &grant.UserID,
		TargetID:       &targetID,
		Metadata:       audit.Metadata(map[string]any{"from": current.Role, "to": role}),
	})
	updated, err := h.repo.GetMembership(c.Request.Context(), grant.OrganizationID, targetID)
	if err != nil || updated == nil {
		response.OK(c, gin.H{"organization_id": grant.OrganizationID, "user_id": targetID, "role": role})
		return
	}
	response.OK(c, updated)
}

// RemoveMember handles DELETE /organizations/:orgID/members/:userID. Revocation
// takes effect on the member's next request.
func (h *Handler) RemoveMember(c *gin.Context) {
	grant := middleware.MustGrant(c)
	targetID, err := uuid.Parse(c.Param("userID"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	current, err := h.repo.GetMembership(c.Request.Context(), grant.OrganizationID, targetID)
	if err != nil {
		h.logger.Error("get membership failed", zap.Error(err))
		response.Internal(c, "failed to load membership")
		return
	}
	if current == nil {
		response.NotFound(c, "membership not found")
		return
	}
	if current.Role == models.RoleAdmin {
		if err := h.guardLastAdmin(c, grant.OrganizationID); err != nil {
			return
		}
	}
	if err := h.repo.RemoveMember(c.Request.Context(), grant.OrganizationID, targetID); err != nil {
		if errors.Is(err, ErrMembershipNotFound) {
			response.NotFound(c, "membership not found")
			return
		}
		h.logger.Error("remove member failed", zap.Error(err))
		response.Internal(c, "failed to remove member")
		return
	}
	h.audit.Record(c.Request.Context(), models.AuditEvent{
		EventType:      models.AuditMemberRemoved,
		OrganizationID: grant.OrganizationID,
		ActorID:        &grant.UserID,
		TargetID:       &targetID,
		Metadata:       audit.Metadata(map[string]any{"role": current.Role}),
	})
	response.NoContent(c)
}

// guardLastAdmin writes a 409 and returns an error if the organization has
// only one admin left. Best effort: concurrent demotions can race, which is
// accepted for this guard.
func (h *Handler) guardLastAdmin(c *gin.Context, orgID uuid.UUID) error {
	n, err := h.repo.CountAdmins(c.Request.Context(), orgID)
	if err != nil {
		h.logger.Error("count admins failed", zap.Error(err))
		response.Internal(c, "failed to check admin count")
		return err
	}
	if n <= 1 {
		response.Conflict(c, "organization must keep at least one admin")
		return errors.New("last admin")
	}
	return nil
}
