package videos

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clipstack/backend/internal/audit"
	"github.com/clipstack/backend/internal/authz"
	"github.com/clipstack/backend/internal/middleware"
	"github.com/clipstack/backend/internal/models"
	"github.com/clipstack/backend/internal/organizations"
	"github.com/clipstack/backend/pkg/response"
	"github.com/clipstack/backend/pkg/storage"
)

// Handler serves video endpoints. All routes run behind the membership gate,
// so every handler can rely on a resolved grant in context; object-level
// rules (ownership, visibility) are enforced here on top of it.
type Handler struct {
	repo   *Repository
	orgs   *organizations.Repository
	s3     *storage.S3
	audit  *audit.Recorder
	logger *zap.Logger
}

// NewHandler creates a videos handler.
func NewHandler(repo *Repository, orgs *organizations.Repository, s3 *storage.S3, recorder *audit.Recorder, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, orgs: orgs, s3: s3, audit: recorder, logger: logger}
}

// CreateRequest starts a presigned upload.
type CreateRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type"`
	Visibility  string `json:"visibility"`
}

// List returns the caller's own videos in the organization.
// GET /organizations/:orgID/videos
func (h *Handler) List(c *gin.Context) {
	grant := middleware.MustGrant(c)

	list, err := h.repo.ListByOwner(c.Request.Context(), grant.OrganizationID, grant.UserID)
	if err != nil {
		h.logger.Error("failed to list videos", zap.Error(err))
		response.Internal(c, "failed to list videos")
		return
	}
	response.OK(c, list)
}

// ListAll returns every video in the organization. Routed behind the
// video:view_all permission.
// GET /organizations/:orgID/videos/all
func (h *Handler) ListAll(c *gin.Context) {
	grant := middleware.MustGrant(c)

	list, err := h.repo.ListByOrganization(c.Request.Context(), grant.OrganizationID)
	if err != nil {
		h.logger.Error("failed to list videos", zap.Error(err))
		response.Internal(c, "failed to list videos")
		return
	}
	response.OK(c, list)
}

// GetStats returns video count and storage usage for the organization. Routed
// behind the video:view_all permission.
// GET /organizations/:orgID/videos/stats
func (h *Handler) GetStats(c *gin.Context) {
	grant := middleware.MustGrant(c)

	stats, err := h.repo.StatsByOrganization(c.Request.Context(), grant.OrganizationID)
	if err != nil {
		h.logger.Error("failed to load video stats", zap.Error(err))
		response.Internal(c, "failed to load video stats")
		return
	}
	response.OK(c, stats)
}

// Create registers a pending video and returns a presigned PUT URL for the
// client to upload the file directly to S3. Routed behind video:upload.
// POST /organizations/:orgID/videos
func (h *Handler) Create(c *gin.Context) {
	if h.s3 == nil {
		response.Internal(c, "S3 not configured")
		return
	}
	grant := middleware.MustGrant(c)

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || len(req.Title) > 255 {
		response.BadRequest(c, "title must be 1-255 characters")
		return
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = storage.ContentTypeForFilename(req.Filename)
	}
	if !storage.ValidateVideoFileType(contentType, req.Filename) {
		response.BadRequest(c, "unsupported video type; allowed: mp4, webm, mov, mkv, avi")
		return
	}

	settings, ok := h.orgSettings(c, grant.OrganizationID)
	if !ok {
		return
	}
	visibility, ok := parseVisibility(req.Visibility, settings.DefaultVisibility)
	if !ok {
		response.BadRequest(c, "visibility must be 'private' or 'organization'")
		return
	}
	if !h.checkQuota(c, grant.OrganizationID, settings, 0) {
		return
	}

	video := &models.Video{
		ID:             uuid.New(),
		OrganizationID: grant.OrganizationID,
		UserID:         grant.UserID,
		Title:          req.Title,
		Description:    req.Description,
		ContentType:    contentType,
		Visibility:     visibility,
		Status:         models.VideoStatusPending,
	}
	video.ObjectKey = storage.VideoKey(grant.OrganizationID.String(), video.ID.String(), req.Filename)

	if err := h.repo.Create(c.Request.Context(), video); err != nil {
		h.logger.Error("failed to create video", zap.Error(err))
		response.Internal(c, "failed to create video")
		return
	}

	uploadURL, err := h.s3.PresignUpload(c.Request.Context(), video.ObjectKey, contentType)
	if err != nil {
		h.logger.Error("failed to presign upload", zap.Error(err), zap.String("key", video.ObjectKey))
		response.Internal(c, "failed to create upload URL")
		return
	}

	response.Created(c, gin.H{
		"video":      video,
		"upload_url": uploadURL,
		"expires_in": int(h.s3.PresignExpire().Seconds()),
	})
}

// DirectUpload accepts a multipart upload through the API for small files and
// stores the video as ready in one step. Routed behind video:upload.
// POST /organizations/:orgID/videos/upload
func (h *Handler) DirectUpload(c *gin.Context) {
	if h.s3 == nil {
		response.Internal(c, "S3 not configured")
		return
	}
	grant := middleware.MustGrant(c)

	title := strings.TrimSpace(c.PostForm("title"))
	if title == "" || len(title) > 255 {
		response.BadRequest(c, "title must be 1-255 characters")
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "no file provided")
		return
	}
	if file.Size > storage.MaxDirectUploadSize {
		response.BadRequest(c, "file too large for direct upload; request a presigned upload instead")
		return
	}

	contentType := file.Header.Get("Content-Type")
	if !storage.ValidateVideoFileType(contentType, file.Filename) {
		response.BadRequest(c, "unsupported video type; allowed: mp4, webm, mov, mkv, avi")
		return
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = storage.ContentTypeForFilename(file.Filename)
	}

	settings, ok := h.orgSettings(c, grant.OrganizationID)
	if !ok {
		return
	}
	visibility, ok := parseVisibility(c.PostForm("visibility"), settings.DefaultVisibility)
	if !ok {
		response.BadRequest(c, "visibility must be 'private' or 'organization'")
		return
	}
	if !h.checkQuota(c, grant.OrganizationID, settings, file.Size) {
		return
	}

	video := &models.Video{
		ID:             uuid.New(),
		OrganizationID: grant.OrganizationID,
		UserID:         grant.UserID,
		Title:          title,
		Description:    c.PostForm("description"),
		ContentType:    contentType,
		SizeBytes:      file.Size,
		Visibility:     visibility,
		Status:         models.VideoStatusReady,
	}
	video.ObjectKey = storage.VideoKey(grant.OrganizationID.String(), video.ID.String(), file.Filename)

	src, err := file.Open()
	if err != nil {
		response.BadRequest(c, "failed to read file")
		return
	}
	defer src.Close()

	if err := h.s3.Upload(c.Request.Context(), video.ObjectKey, contentType, src, file.Size); err != nil {
		h.logger.Error("failed to upload video", zap.Error(err), zap.String("key", video.ObjectKey))
		response.Internal(c, "failed to upload file")
		return
	}

	if err := h.repo.Create(c.Request.Context(), video); err != nil {
		h.logger.Error("failed to create video", zap.Error(err))
		// Orphaned object otherwise: the row never existed.
		if delErr := h.s3.DeleteObject(c.Request.Context(), video.ObjectKey); delErr != nil {
			h.logger.Warn("failed to clean up uploaded object", zap.Error(delErr), zap.String("key", video.ObjectKey))
		}
		response.Internal(c, "failed to create video")
		return
	}

	response.Created(c, video)
}

// Complete marks a presigned upload as finished. Only the uploader may call
// it; the object must exist in S3. Completing an already-ready video is a
// no-op so client retries are safe.
// POST /organizations/:orgID/videos/:videoID/complete
func (h *Handler) Complete(c *gin.Context) {
	if h.s3 == nil {
		response.Internal(c, "S3 not configured")
		return
	}
	grant := middleware.MustGrant(c)

	video, ok := h.findVideo(c, grant.OrganizationID)
	if !ok {
		return
	}
	if video.UserID != grant.UserID {
		h.denyObject(c, grant, video.ID, "complete_not_owner", "permission denied: only the uploader may complete an upload")
		return
	}
	if video.Status == models.VideoStatusReady {
		response.OK(c, video)
		return
	}

	size, err := h.s3.HeadObject(c.Request.Context(), video.ObjectKey)
	if err != nil {
		response.BadRequest(c, "uploaded object not found; upload the file before completing")
		return
	}
	if size > storage.MaxVideoFileSize {
		if err := h.repo.UpdateStatusSize(c.Request.Context(), grant.OrganizationID, video.ID, models.VideoStatusFailed, size); err != nil {
			h.logger.Error("failed to mark video failed", zap.Error(err), zap.String("video_id", video.ID.String()))
		}
		response.BadRequest(c, "uploaded file exceeds maximum video size")
		return
	}

	if err := h.repo.UpdateStatusSize(c.Request.Context(), grant.OrganizationID, video.ID, models.VideoStatusReady, size); err != nil {
		h.logger.Error("failed to mark video ready", zap.Error(err), zap.String("video_id", video.ID.String()))
		response.Internal(c, "failed to complete upload")
		return
	}
	video.Status = models.VideoStatusReady
	video.SizeBytes = size
	response.OK(c, video)
}

// Get returns one video's metadata.
// GET /organizations/:orgID/videos/:videoID
func (h *Handler) Get(c *gin.Context) {
	grant := middleware.MustGrant(c)

	video, ok := h.findVideo(c, grant.OrganizationID)
	if !ok {
		return
	}
	if !canView(grant, video) {
		h.denyObject(c, grant, video.ID, "private_video",
			(&authz.Denial{Kind: authz.KindPermissionDenied, Capability: authz.CapViewAllVideos}).Error())
		return
	}
	response.OK(c, video)
}

// DownloadURL returns a presigned GET URL for a ready video.
// GET /organizations/:orgID/videos/:videoID/download
func (h *Handler) DownloadURL(c *gin.Context) {
	if h.s3 == nil {
		response.Internal(c, "S3 not configured")
		return
	}
	grant := middleware.MustGrant(c)

	video, ok := h.findVideo(c, grant.OrganizationID)
	if !ok {
		return
	}
	if !canView(grant, video) {
		h.denyObject(c, grant, video.ID, "private_video",
			(&authz.Denial{Kind: authz.KindPermissionDenied, Capability: authz.CapViewAllVideos}).Error())
		return
	}
	if video.Status != models.VideoStatusReady {
		response.Conflict(c, "video is not ready")
		return
	}

	url, err := h.s3.PresignDownload(c.Request.Context(), video.ObjectKey)
	if err != nil {
		h.logger.Error("failed to presign download", zap.Error(err), zap.String("key", video.ObjectKey))
		response.Internal(c, "failed to create download URL")
		return
	}
	response.OK(c, gin.H{
		"download_url": url,
		"expires_in":   int(h.s3.PresignExpire().Seconds()),
	})
}

// Delete removes a video and its stored object. The uploader may always
// delete their own video; deleting someone else's requires video:delete_any.
// DELETE /organizations/:orgID/videos/:videoID
func (h *Handler) Delete(c *gin.Context) {
	grant := middleware.MustGrant(c)

	video, ok := h.findVideo(c, grant.OrganizationID)
	if !ok {
		return
	}
	if video.UserID != grant.UserID && !grant.Can(authz.CapDeleteAnyVideo) {
		h.denyObject(c, grant, video.ID, "delete_not_owner",
			(&authz.Denial{Kind: authz.KindPermissionDenied, Capability: authz.CapDeleteAnyVideo}).Error())
		return
	}

	// Object first, best effort: a leftover row is recoverable, a row
	// pointing at a deleted object is not worse than one pointing at a
	// never-uploaded object.
	if h.s3 != nil {
		if err := h.s3.DeleteObject(c.Request.Context(), video.ObjectKey); err != nil {
			h.logger.Warn("failed to delete video object", zap.Error(err), zap.String("key", video.ObjectKey))
		}
	}
	if err := h.repo.Delete(c.Request.Context(), grant.OrganizationID, video.ID); err != nil {
		if err == ErrVideoNotFound {
			response.NotFound(c, "video not found")
			return
		}
		h.logger.Error("failed to delete video", zap.Error(err), zap.String("video_id", video.ID.String()))
		response.Internal(c, "failed to delete video")
		return
	}

	actor := grant.UserID
	target := video.ID
	h.audit.Record(c.Request.Context(), models.AuditEvent{
		EventType:      models.AuditVideoDeleted,
		OrganizationID: grant.OrganizationID,
		ActorID:        &actor,
		TargetID:       &target,
		Message:        "video deleted",
		Metadata: audit.Metadata(map[string]any{
			"title":      video.Title,
			"size_bytes": video.SizeBytes,
			"owner_id":   video.UserID.String(),
		}),
	})
	response.NoContent(c)
}

// findVideo loads the :videoID video scoped to the organization and writes
// the error response on failure. A video owned by another organization is
// reported as not found, identical to a nonexistent one.
func (h *Handler) findVideo(c *gin.Context, orgID uuid.UUID) (*models.Video, bool) {
	videoID, err := uuid.Parse(c.Param("videoID"))
	if err != nil {
		response.BadRequest(c, "invalid video ID")
		return nil, false
	}
	video, err := h.repo.GetByID(c.Request.Context(), orgID, videoID)
	if err != nil {
		h.logger.Error("failed to load video", zap.Error(err), zap.String("video_id", videoID.String()))
		response.Internal(c, "failed to load video")
		return nil, false
	}
	if video == nil {
		response.NotFound(c, "video not found")
		return nil, false
	}
	return video, true
}

// orgSettings loads the organization's settings for quota and visibility
// defaults, writing the error response on failure.
func (h *Handler) orgSettings(c *gin.Context, orgID uuid.UUID) (models.OrganizationSettings, bool) {
	org, err := h.orgs.GetByID(c.Request.Context(), orgID)
	if err != nil {
		h.logger.Error("failed to load organization", zap.Error(err), zap.String("organization_id", orgID.String()))
		response.Internal(c, "failed to load organization")
		return models.OrganizationSettings{}, false
	}
	if org == nil {
		// Only reachable when the organization was deleted mid-request.
		response.NotFound(c, "organization not found")
		return models.OrganizationSettings{}, false
	}
	return org.Settings, true
}

// checkQuota rejects the request with 409 when the organization is at its
// video-count or storage limit. incoming is the size of the file being added
// now, zero for presigned uploads whose size is unknown until completion.
func (h *Handler) checkQuota(c *gin.Context, orgID uuid.UUID, settings models.OrganizationSettings, incoming int64) bool {
	stats, err := h.repo.StatsByOrganization(c.Request.Context(), orgID)
	if err != nil {
		h.logger.Error("failed to check quota", zap.Error(err), zap.String("organization_id", orgID.String()))
		response.Internal(c, "failed to check quota")
		return false
	}
	if settings.MaxVideos > 0 && stats.TotalVideos >= int64(settings.MaxVideos) {
		response.Conflict(c, "video quota exceeded for this organization")
		return false
	}
	if settings.MaxStorageBytes > 0 && stats.TotalSizeBytes+incoming > settings.MaxStorageBytes {
		response.Conflict(c, "storage quota exceeded for this organization")
		return false
	}
	return true
}

// canView applies the object-level read rule: the uploader, any member when
// the video is organization-visible, or a holder of video:view_all.
func canView(grant *authz.Grant, video *models.Video) bool {
	if video.UserID == grant.UserID {
		return true
	}
	if video.Visibility == models.VisibilityOrganization {
		return true
	}
	return grant.Can(authz.CapViewAllVideos)
}

// parseVisibility validates a requested visibility, falling back to the
// organization default when empty.
func parseVisibility(raw string, fallback models.VideoVisibility) (models.VideoVisibility, bool) {
	switch models.VideoVisibility(raw) {
	case models.VisibilityPrivate, models.VisibilityOrganization:
		return models.VideoVisibility(raw), true
	case "":
		if fallback == "" {
			return models.VisibilityOrganization, true
		}
		return fallback, true
	default:
		return "", false
	}
}

// denyObject records and returns an object-level permission denial. These are
// decided in the handler because they depend on the video row, unlike the
// route-level checks the gate performs.
func (h *Handler) denyObject(c *gin.Context, grant *authz.Grant, videoID uuid.UUID, reason, msg string) {
	h.logger.Info("access denied",
		zap.String("kind", string(authz.KindPermissionDenied)),
		zap.String("reason", reason),
		zap.String("user_id", grant.UserID.String()),
		zap.String("organization_id", grant.OrganizationID.String()),
		zap.String("video_id", videoID.String()),
	)
	if h.audit != nil {
		h.audit.RecordDenial(c.Request.Context(), authz.DenialRecord{
			Kind:           authz.KindPermissionDenied,
			Reason:         reason,
			UserID:         grant.UserID,
			OrganizationID: grant.OrganizationID,
			Method:         c.Request.Method,
			Path:           c.FullPath(),
			Message:        msg,
		})
	}
	response.Fail(c, http.StatusForbidden, string(authz.KindPermissionDenied), msg)
}
