package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clipstack/backend/internal/authz"
	"github.com/clipstack/backend/internal/models"
	"github.com/clipstack/backend/pkg/queue"
)

// Recorder publishes audit events to the worker queue. Recording is best
// effort: a queue failure is logged and never surfaces to the request that
// produced the event.
type Recorder struct {
	queue  *queue.Queue
	logger *zap.Logger
}

// NewRecorder creates an audit recorder.
func NewRecorder(q *queue.Queue, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{queue: q, logger: logger}
}

// Metadata marshals a metadata map for an audit event. Returns nil when the
// map cannot be marshaled; the event is still recorded without it.
func Metadata(kv map[string]any) json.RawMessage {
	raw, err := json.Marshal(kv)
	if err != nil {
		return nil
	}
	return raw
}

// Record enqueues one audit event. The event ID is assigned here so worker
// retries stay idempotent at insert time.
func (r *Recorder) Record(ctx context.Context, ev models.AuditEvent) {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	payload := queue.AuditEventPayload{
		ID:             ev.ID,
		OccurredAt:     ev.OccurredAt,
		EventType:      string(ev.EventType),
		OrganizationID: ev.OrganizationID,
		ActorID:        ev.ActorID,
		TargetID:       ev.TargetID,
		DenialKind:     ev.DenialKind,
		Message:        ev.Message,
		Metadata:       ev.Metadata,
	}
	if err := r.queue.EnqueueAuditEvent(ctx, payload); err != nil {
		r.logger.Warn("audit event dropped",
			zap.Error(err),
			zap.String("event_type", string(ev.EventType)),
			zap.String("organization_id", ev.OrganizationID.String()))
	}
}

// RecordDenial implements authz.DenialRecorder.
func (r *Recorder) RecordDenial(ctx context.Context, rec authz.DenialRecord) {
	ev := models.AuditEvent{
		EventType:      models.AuditAccessDenied,
		OrganizationID: rec.OrganizationID,
		DenialKind:     string(rec.Kind),
		Message:        rec.Message,
		Metadata: Metadata(map[string]any{
			"method": rec.Method,
			"path":   rec.Path,
			"reason": rec.Reason,
		}),
	}
	if rec.UserID != uuid.Nil {
		actor := rec.UserID
		ev.ActorID = &actor
	}
	r.Record(ctx, ev)
}
