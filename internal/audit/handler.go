package audit

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clipstack/backend/internal/middleware"
	"github.com/clipstack/backend/pkg/response"
)

const maxListLimit = 500

// Handler serves the audit trail read endpoint.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates an audit handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /organizations/:orgID/audit. Returns recent events,
// newest first. Optional ?limit=n, capped at 500.
func (h *Handler) List(c *gin.Context) {
	grant := middleware.MustGrant(c)
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.BadRequest(c, "limit must be a positive integer")
			return
		}
		if n > maxListLimit {
			n = maxListLimit
		}
		limit = n
	}
	events, err := h.repo.ListByOrganization(c.Request.Context(), grant.OrganizationID, limit)
	if err != nil {
		h.logger.Error("list audit events failed", zap.Error(err))
		response.Internal(c, "failed to load audit events")
		return
	}
	response.OK(c, events)
}
