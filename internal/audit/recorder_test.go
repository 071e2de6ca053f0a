package audit

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipstack/backend/internal/authz"
	"github.com/clipstack/backend/internal/models"
	"github.com/clipstack/backend/pkg/queue"
)

func newTestRecorder(t *testing.T) (*Recorder, *queue.Queue) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	q := queue.NewQueue(client, nil)
	return NewRecorder(q, nil), q
}

func dequeuePayload(t *testing.T, q *queue.Queue) queue.AuditEventPayload {
	t.Helper()
	job, _, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Equal(t, queue.JobTypeAuditEvent, job.Type)

	var payload queue.AuditEventPayload
	require.NoError(t, json.Unmarshal(job.Payload, &payload))
	return payload
}

func TestRecordAssignsIDAndTimestamp(t *testing.T) {
	rec, q := newTestRecorder(t)
	orgID := uuid.New()

	rec.Record(context.Background(), models.AuditEvent{
		EventType:      models.AuditMemberAdded,
		OrganizationID: orgID,
		Message:        "member added",
	})

	payload := dequeuePayload(t, q)
	assert.NotEqual(t, uuid.Nil, payload.ID, "event ID must be assigned at enqueue time")
	assert.False(t, payload.OccurredAt.IsZero())
	assert.Equal(t, string(models.AuditMemberAdded), payload.EventType)
	assert.Equal(t, orgID, payload.OrganizationID)
}

func TestRecordKeepsCallerAssignedID(t *testing.T) {
	rec, q := newTestRecorder(t)
	id := uuid.New()

	rec.Record(context.Background(), models.AuditEvent{
		ID:             id,
		EventType:      models.AuditVideoDeleted,
		OrganizationID: uuid.New(),
	})

	assert.Equal(t, id, dequeuePayload(t, q).ID)
}

func TestRecordDenialShapesEvent(t *testing.T) {
	rec, q := newTestRecorder(t)
	userID, orgID := uuid.New(), uuid.New()

	rec.RecordDenial(context.Background(), authz.DenialRecord{
		Kind:           authz.KindInsufficientRole,
		Reason:         "below_minimum",
		UserID:         userID,
		OrganizationID: orgID,
		Method:         "DELETE",
		Path:           "/organizations/:orgID",
		Message:        "insufficient role: requires admin, have viewer",
	})

	payload := dequeuePayload(t, q)
	assert.Equal(t, string(models.AuditAccessDenied), payload.EventType)
	assert.Equal(t, string(authz.KindInsufficientRole), payload.DenialKind)
	assert.Equal(t, orgID, payload.OrganizationID)
	require.NotNil(t, payload.ActorID)
	assert.Equal(t, userID, *payload.ActorID)

	var meta map[string]string
	require.NoError(t, json.Unmarshal(payload.Metadata, &meta))
	assert.Equal(t, "DELETE", meta["method"])
	assert.Equal(t, "/organizations/:orgID", meta["path"])
	assert.Equal(t, "below_minimum", meta["reason"])
}

func TestRecordDenialWithoutActor(t *testing.T) {
	rec, q := newTestRecorder(t)

	rec.RecordDenial(context.Background(), authz.DenialRecord{
		Kind:           authz.KindNotAMember,
		OrganizationID: uuid.New(),
	})

	assert.Nil(t, dequeuePayload(t, q).ActorID)
}

// A dead queue must never fail the request that produced the event.
func TestRecordSurvivesQueueOutage(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	rec := NewRecorder(queue.NewQueue(client, nil), nil)
	mr.Close()

	assert.NotPanics(t, func() {
		rec.Record(context.Background(), models.AuditEvent{
			EventType:      models.AuditOrgDeleted,
			OrganizationID: uuid.New(),
		})
	})
}
