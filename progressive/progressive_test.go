package progressive

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/catalystvision/core/eventbus"
)

func newTestResults(t *testing.T) (*Results, *clock.Mock, *eventbus.Bus) {
	t.Helper()
	rdb, _ := newTestRedis(t)
	bus := eventbus.New(rdb)
	mock := clock.NewMock()
	return New(bus, mock), mock, bus
}

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()}), mr
}

func TestHandleResultEmitsPartialImmediately(t *testing.T) {
	r, _, bus := newTestResults(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	sub := bus.Subscribe(ctx, eventbus.ResultTopic("partial"))
	defer sub.Close()
	time.Sleep(30 * time.Millisecond)

	r.HandleResult("stream-1", 1, "a scene", nil)

	msg, err := sub.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, eventbus.ResultTopic("partial"), msg.Topic)
	require.Equal(t, 1, r.StateCount())
}

func TestHandleResultAlsoAppendsToResultStream(t *testing.T) {
	rdb, _ := newTestRedis(t)
	bus := eventbus.New(rdb)
	r := New(bus, clock.NewMock())
	ctx := context.Background()

	r.HandleResult("stream-1", 1, "a scene", nil)

	entries, err := rdb.XRange(ctx, eventbus.ResultTopic("partial"), "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestScannerEmitsRefinedThenFinalInOrder(t *testing.T) {
	r, mock, bus := newTestResults(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	subRefined := bus.Subscribe(ctx, eventbus.ResultTopic("refined"))
	defer subRefined.Close()
	subFinal := bus.Subscribe(ctx, eventbus.ResultTopic("final"))
	defer subFinal.Close()
	time.Sleep(30 * time.Millisecond)

	go r.Run(ctx)

	r.HandleResult("stream-1", 7, "a scene", map[string]float64{"brightness": 0.8})

	mock.Add(600 * time.Millisecond) // past refinementDelay (500ms)
	waitCtx, waitCancel := context.WithTimeout(ctx, time.Second)
	defer waitCancel()
	refinedMsg, err := subRefined.Next(waitCtx)
	require.NoError(t, err)
	require.Equal(t, eventbus.ResultTopic("refined"), refinedMsg.Topic)

	mock.Add(1600 * time.Millisecond) // past finalDelay (1500ms) since refined
	finalCtx, finalCancel := context.WithTimeout(ctx, time.Second)
	defer finalCancel()
	finalMsg, err := subFinal.Next(finalCtx)
	require.NoError(t, err)
	require.Equal(t, eventbus.ResultTopic("final"), finalMsg.Topic)

	require.Eventually(t, func() bool { return r.StateCount() == 0 }, time.Second, 10*time.Millisecond)
}
