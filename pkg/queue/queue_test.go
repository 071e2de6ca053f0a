package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewQueue(client, nil), mr
}

func TestEnqueueDequeueAuditEvent(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	payload := AuditEventPayload{
		ID:             uuid.New(),
		OccurredAt:     time.Now().UTC(),
		EventType:      "member.added",
		OrganizationID: uuid.New(),
		Message:        "member added",
	}
	require.NoError(t, q.EnqueueAuditEvent(ctx, payload))

	job, key, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, QueueAudit, key)
	assert.Equal(t, JobTypeAuditEvent, job.Type)
	assert.Equal(t, 0, job.Attempt)
	assert.NotEmpty(t, job.ID)

	var got AuditEventPayload
	require.NoError(t, json.Unmarshal(job.Payload, &got))
	assert.Equal(t, payload.ID, got.ID)
	assert.Equal(t, payload.EventType, got.EventType)
	assert.Equal(t, payload.OrganizationID, got.OrganizationID)
}

func TestDequeueSkipsMalformedJob(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	_, err := mr.RPush(QueueAudit, "not json")
	require.NoError(t, err)

	job, _, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestRetryRequeuesUntilMaxAttempts(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	job := &Job{ID: uuid.New().String(), Type: JobTypeAuditEvent, Payload: json.RawMessage(`{}`)}

	for attempt := 1; attempt < MaxRetries; attempt++ {
		require.NoError(t, q.Retry(ctx, job))
		assert.Equal(t, attempt, job.Attempt)

		got, _, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.NotNil(t, got, "job should be back on the work queue")
		assert.Equal(t, attempt, got.Attempt)
	}

	// The final retry lands in the DLQ, not the work queue.
	require.NoError(t, q.Retry(ctx, job))
	assert.False(t, mr.Exists(QueueAudit))
	dlq, err := mr.List(QueueDLQ)
	require.NoError(t, err)
	require.Len(t, dlq, 1)

	var dead Job
	require.NoError(t, json.Unmarshal([]byte(dlq[0]), &dead))
	assert.Equal(t, job.ID, dead.ID)
	assert.Equal(t, MaxRetries, dead.Attempt)
}
