package audit

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clipstack/backend/internal/models"
)

// Repository persists and reads audit events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an audit repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert writes one audit event. Inserting the same event ID twice is a
// no-op, so retried queue jobs never duplicate rows.
func (r *Repository) Insert(ctx context.Context, ev models.AuditEvent) error {
	const q = `INSERT INTO audit_events
		(id, occurred_at, event_type, organization_id, actor_id, target_id, denial_kind, message, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)
		ON CONFLICT (id) DO NOTHING`
	_, err := r.pool.Exec(ctx, q, ev.ID, ev.OccurredAt, string(ev.EventType), ev.OrganizationID,
		ev.ActorID, ev.TargetID, ev.DenialKind, ev.Message, ev.Metadata)
	return err
}

// ListByOrganization returns the most recent audit events for an organization.
func (r *Repository) ListByOrganization(ctx context.Context, orgID uuid.UUID, limit int) ([]models.AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT id, occurred_at, event_type, organization_id, actor_id, target_id,
			COALESCE(denial_kind, ''), message, metadata
		FROM audit_events
		WHERE organization_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2`
	rows, err := r.pool.Query(ctx, q, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.AuditEvent
	for rows.Next() {
		var ev models.AuditEvent
		var eventType string
		if err := rows.Scan(&ev.ID, &ev.OccurredAt, &eventType, &ev.OrganizationID,
			&ev.ActorID, &ev.TargetID, &ev.DenialKind, &ev.Message, &ev.Metadata); err != nil {
			return nil, err
		}
		ev.EventType = models.AuditEventType(eventType)
		list = append(list, ev)
	}
	return list, rows.Err()
}
