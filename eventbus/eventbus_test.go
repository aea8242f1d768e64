package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) (*Bus, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(rdb), mr
}

func TestPublishSubscribeExactTopic(t *testing.T) {
	bus, _ := newTestBus(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sub := bus.Subscribe(ctx, JobTopic("job-1"))
	defer sub.Close()
	time.Sleep(50 * time.Millisecond) // allow PSUBSCRIBE to register

	payload, err := MarshalJobEvent(JobEvent{JobID: "job-1"})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, JobTopic("job-1"), payload))

	msg, err := sub.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, JobTopic("job-1"), msg.Topic)

	kind, err := SniffKind(msg.Payload)
	require.NoError(t, err)
	require.Equal(t, KindJobEvent, kind)
}

func TestSubscribeWildcardSegment(t *testing.T) {
	bus, _ := newTestBus(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sub := bus.Subscribe(ctx, "progress:*")
	defer sub.Close()
	time.Sleep(50 * time.Millisecond)

	payload, err := MarshalProgressUpdate(ProgressUpdate{JobID: "job-9", Progress: 10, Stage: "metadata"})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, ProgressTopic("job-9"), payload))

	msg, err := sub.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, ProgressTopic("job-9"), msg.Topic)
}

func TestAppendStreamIsReadableByXRange(t *testing.T) {
	bus, _ := newTestBus(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, bus.AppendStream(ctx, ResultTopic("final"), 10000, []byte("hello")))

	entries, err := bus.rdb.XRange(ctx, ResultTopic("final"), "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "hello", entries[0].Values["payload"])
}

func TestTopicHelpers(t *testing.T) {
	require.Equal(t, "jobs:abc", JobTopic("abc"))
	require.Equal(t, "progress:abc", ProgressTopic("abc"))
	require.Equal(t, "frames:abc", FrameStreamTopic("abc"))
	require.Equal(t, "scenes:abc", SceneTopic("abc"))
	require.Equal(t, "results:partial", ResultTopic("partial"))
}
