package jobqueue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/catalystvision/core/eventbus"
	"github.com/catalystvision/core/video"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(rdb, eventbus.New(rdb)), mr
}

func TestEnqueueAndClaimFairness(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	lowID, err := q.Enqueue(ctx, "u1", video.OriginURL, "https://host/a.mp4", video.DefaultProcessingOptions(), EnqueueOptions{Priority: 3})
	require.NoError(t, err)
	highID, err := q.Enqueue(ctx, "u1", video.OriginURL, "https://host/b.mp4", video.DefaultProcessingOptions(), EnqueueOptions{Priority: 8})
	require.NoError(t, err)

	claimCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	claimed, err := q.Claim(claimCtx, "worker-1")
	require.NoError(t, err)
	require.Equal(t, highID, claimed.Job.ID)
	claimed.Release()

	claimed2, err := q.Claim(claimCtx, "worker-1")
	require.NoError(t, err)
	require.Equal(t, lowID, claimed2.Job.ID)
	claimed2.Release()
}

func TestAckCompletedRecordsTerminalState(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, "u1", video.OriginURL, "https://host/a.mp4", video.DefaultProcessingOptions(), EnqueueOptions{})
	require.NoError(t, err)

	claimCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	claimed, err := q.Claim(claimCtx, "worker-1")
	require.NoError(t, err)
	require.NoError(t, q.Ack(ctx, claimed.Job.ID, OutcomeCompleted, nil, nil))
	claimed.Release()

	status, ok, err := q.GetStatus(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, video.StateCompleted, status.State)
}

func TestAckFailedSchedulesRetryWithBackoff(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, "u1", video.OriginURL, "https://host/a.mp4", video.DefaultProcessingOptions(), EnqueueOptions{MaxAttempts: 2})
	require.NoError(t, err)

	claimCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	claimed, err := q.Claim(claimCtx, "worker-1")
	require.NoError(t, err)
	require.Equal(t, 1, claimed.Job.Attempts)

	jobErr := &video.JobError{Code: "external_transient", Message: "timeout"}
	require.NoError(t, q.Ack(ctx, claimed.Job.ID, OutcomeFailed, nil, jobErr))
	claimed.Release()

	status, ok, err := q.GetStatus(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, video.StateWaiting, status.State)
}

func TestCancelWaitingJob(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, "u1", video.OriginURL, "https://host/a.mp4", video.DefaultProcessingOptions(), EnqueueOptions{})
	require.NoError(t, err)

	ok, err := q.Cancel(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	status, found, err := q.GetStatus(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, video.StateCancelled, status.State)
}

func TestCancelActiveJobThenAckIsNoOp(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, "u1", video.OriginURL, "https://host/a.mp4", video.DefaultProcessingOptions(), EnqueueOptions{})
	require.NoError(t, err)

	claimCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	claimed, err := q.Claim(claimCtx, "worker-1")
	require.NoError(t, err)

	ok, err := q.Cancel(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	// The worker's in-flight ctx observes the cancellation and, per the
	// orchestrator's checkCancelled contract, the worker acks with
	// OutcomeCancelled rather than OutcomeFailed.
	jobErr := &video.JobError{Code: "cancelled", Message: "job was cancelled"}
	require.NoError(t, q.Ack(ctx, id, OutcomeCancelled, nil, jobErr))
	claimed.Release()

	status, ok, err := q.GetStatus(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, video.StateCancelled, status.State)
}

func TestAckFailedDoesNotReopenAnAlreadyCancelledJob(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, "u1", video.OriginURL, "https://host/a.mp4", video.DefaultProcessingOptions(), EnqueueOptions{})
	require.NoError(t, err)

	claimCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	claimed, err := q.Claim(claimCtx, "worker-1")
	require.NoError(t, err)

	ok, err := q.Cancel(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	// Even if a worker races ahead and acks with the "wrong" outcome after
	// losing to a concurrent Cancel, the stored terminal state must win.
	jobErr := &video.JobError{Code: "external_transient", Message: "timeout"}
	require.NoError(t, q.Ack(ctx, id, OutcomeFailed, nil, jobErr))
	claimed.Release()

	status, ok, err := q.GetStatus(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, video.StateCancelled, status.State)
}

func TestReapExpiredLeasesReturnsDeadWorkerJobToWaiting(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, "u1", video.OriginURL, "https://host/a.mp4", video.DefaultProcessingOptions(), EnqueueOptions{MaxAttempts: 3})
	require.NoError(t, err)

	claimCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	claimed, err := q.Claim(claimCtx, "worker-1")
	require.NoError(t, err)
	require.Equal(t, 1, claimed.Job.Attempts)

	// Simulate a dead worker: its heartbeat stopped renewing long enough
	// ago to exceed LeaseTTL, without ever calling Ack.
	stale := time.Now().Add(-time.Hour).UnixMilli()
	require.NoError(t, q.rdb.ZAdd(ctx, keyActive, redis.Z{Score: float64(stale), Member: id}).Err())

	reaped, err := q.ReapExpiredLeases(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, reaped)

	status, ok, err := q.GetStatus(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, video.StateWaiting, status.State)
	require.Equal(t, 1, status.AttemptsMade)
}

func TestReapExpiredLeasesIgnoresFreshLeases(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, "u1", video.OriginURL, "https://host/a.mp4", video.DefaultProcessingOptions(), EnqueueOptions{})
	require.NoError(t, err)

	claimCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	claimed, err := q.Claim(claimCtx, "worker-1")
	require.NoError(t, err)
	defer claimed.Release()

	reaped, err := q.ReapExpiredLeases(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, reaped)
}

func TestMetricsReflectsQueueDepth(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, "u1", video.OriginURL, "https://host/a.mp4", video.DefaultProcessingOptions(), EnqueueOptions{})
	require.NoError(t, err)

	m, err := q.Metrics(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), m.Waiting)
}
