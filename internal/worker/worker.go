package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/clipstack/backend/internal/audit"
	"github.com/clipstack/backend/internal/models"
	"github.com/clipstack/backend/pkg/queue"
)

// AuditProcessor drains the audit queue into Postgres. It runs outside the
// request path; an insert failure is retried and then dead-lettered without
// ever affecting the request that produced the event.
type AuditProcessor struct {
	repo   *audit.Repository
	queue  *queue.Queue
	logger *zap.Logger
}

// NewAuditProcessor creates an audit persistence processor.
func NewAuditProcessor(repo *audit.Repository, q *queue.Queue, logger *zap.Logger) *AuditProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditProcessor{repo: repo, queue: q, logger: logger}
}

// Process executes one audit persistence job. Inserts are idempotent by
// event ID, so re-processing a retried job is safe.
func (p *AuditProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeAuditEvent {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.AuditEventPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	ev := models.AuditEvent{
		ID:             payload.ID,
		OccurredAt:     payload.OccurredAt,
		EventType:      models.AuditEventType(payload.EventType),
		OrganizationID: payload.OrganizationID,
		ActorID:        payload.ActorID,
		TargetID:       payload.TargetID,
		DenialKind:     payload.DenialKind,
		Message:        payload.Message,
		Metadata:       payload.Metadata,
	}
	if err := p.repo.Insert(ctx, ev); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	p.logger.Debug("audit event persisted",
		zap.String("event_id", ev.ID.String()),
		zap.String("event_type", string(ev.EventType)),
		zap.String("organization_id", ev.OrganizationID.String()))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *AuditProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("audit worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
