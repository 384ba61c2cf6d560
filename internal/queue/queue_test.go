package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestNewJob(t *testing.T) {
	job, err := NewJob(KindInbound, "jordan@acme.example", map[string]string{"message": "YES"})
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)
	require.Equal(t, KindInbound, job.Kind)
	require.Equal(t, "jordan@acme.example", job.Partition)
	require.False(t, job.EnqueuedAt.IsZero())

	var payload map[string]string
	require.NoError(t, json.Unmarshal(job.Payload, &payload))
	require.Equal(t, "YES", payload["message"])
}

func TestNewJob_UniqueIDs(t *testing.T) {
	a, err := NewJob(KindScan, "scan:GDPR_EMAIL", nil)
	require.NoError(t, err)
	b, err := NewJob(KindScan, "scan:GDPR_EMAIL", nil)
	require.NoError(t, err)
	require.NotEqual(t, a.ID, b.ID)
}

func TestNewJob_UnmarshalablePayload(t *testing.T) {
	_, err := NewJob(KindInbound, "a@b.c", func() {})
	require.Error(t, err)
}

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	mr := miniredis.RunT(t)
	q, err := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	require.NoError(t, err)
	return q
}

func mustEnqueue(t *testing.T, q *Queue, partition, message string) Job {
	t.Helper()
	job, err := NewJob(KindInbound, partition, map[string]string{"message": message})
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(context.Background(), job))
	return job
}

func TestEnqueuePop_FIFOWithinPartition(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	first := mustEnqueue(t, q, "a@b.c", "first")
	second := mustEnqueue(t, q, "a@b.c", "second")

	ready, err := q.ReadyPartitions(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a@b.c"}, ready)

	got, err := q.Pop(ctx, "a@b.c")
	require.NoError(t, err)
	require.Equal(t, first.ID, got.ID)

	got, err = q.Pop(ctx, "a@b.c")
	require.NoError(t, err)
	require.Equal(t, second.ID, got.ID)

	got, err = q.Pop(ctx, "a@b.c")
	require.NoError(t, err)
	require.Nil(t, got)

	ready, err = q.ReadyPartitions(ctx)
	require.NoError(t, err)
	require.Empty(t, ready)
}

func TestPop_EnqueueAfterDrainMarksPartitionReadyAgain(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	mustEnqueue(t, q, "a@b.c", "first")
	_, err := q.Pop(ctx, "a@b.c")
	require.NoError(t, err)
	got, err := q.Pop(ctx, "a@b.c")
	require.NoError(t, err)
	require.Nil(t, got)

	// A job arriving after the partition drained must become visible on the
	// next tick: its Enqueue re-adds the ready flag the empty Pop removed.
	job := mustEnqueue(t, q, "a@b.c", "late reply")

	ready, err := q.ReadyPartitions(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a@b.c"}, ready)

	got, err = q.Pop(ctx, "a@b.c")
	require.NoError(t, err)
	require.Equal(t, job.ID, got.ID)
}

func TestPop_NeverStrandsPendingJobs(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	// Drain and refill repeatedly; after every round, a partition with
	// pending jobs must still be listed ready. The empty check and the
	// ready-flag removal run as one script, so no enqueue can slip between
	// them and leave a job invisible.
	for i := 0; i < 20; i++ {
		mustEnqueue(t, q, "a@b.c", "ping")
		_, err := q.Pop(ctx, "a@b.c")
		require.NoError(t, err)

		mustEnqueue(t, q, "a@b.c", "pong")
		got, err := q.Pop(ctx, "a@b.c")
		require.NoError(t, err)
		require.NotNil(t, got)
		got, err = q.Pop(ctx, "a@b.c")
		require.NoError(t, err)
		require.Nil(t, got)

		mustEnqueue(t, q, "a@b.c", "refill")
		ready, err := q.ReadyPartitions(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"a@b.c"}, ready)
		_, err = q.Pop(ctx, "a@b.c")
		require.NoError(t, err)
	}
}

func TestEnqueueAfter_PromoteDue(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return clock }

	job, err := NewJob(KindInitiate, "a@b.c", map[string]string{"message": "opening"})
	require.NoError(t, err)
	require.NoError(t, q.EnqueueAfter(ctx, job, 30*time.Second))

	ready, err := q.ReadyPartitions(ctx)
	require.NoError(t, err)
	require.Empty(t, ready)

	promoted, err := q.PromoteDue(ctx)
	require.NoError(t, err)
	require.Zero(t, promoted)

	clock = clock.Add(time.Minute)
	promoted, err = q.PromoteDue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, promoted)

	got, err := q.Pop(ctx, "a@b.c")
	require.NoError(t, err)
	require.Equal(t, job.ID, got.ID)

	// Promoted entries leave the schedule.
	promoted, err = q.PromoteDue(ctx)
	require.NoError(t, err)
	require.Zero(t, promoted)
}

func TestEnqueueAfter_ZeroDelayIsImmediate(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, err := NewJob(KindInitiate, "a@b.c", nil)
	require.NoError(t, err)
	require.NoError(t, q.EnqueueAfter(ctx, job, 0))

	got, err := q.Pop(ctx, "a@b.c")
	require.NoError(t, err)
	require.Equal(t, job.ID, got.ID)
}

func TestLease_Contention(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	release, ok, err := q.Lease(ctx, "a@b.c")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = q.Lease(ctx, "a@b.c")
	require.NoError(t, err)
	require.False(t, ok)

	release()

	release2, ok, err := q.Lease(ctx, "a@b.c")
	require.NoError(t, err)
	require.True(t, ok)
	release2()
}
