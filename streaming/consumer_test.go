package streaming

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestConsumerParsesValidRecordAndDropsInvalid(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()

	rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: "frames:s1",
		Values: map[string]interface{}{
			"client_id":    "c1",
			"frame":        "bytes",
			"frame_number": "5",
			"pts":          "1.5",
		},
	})
	rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: "frames:s1",
		Values: map[string]interface{}{"frame": "bytes"}, // missing client_id
	})

	consumer := NewConsumer(rdb, "worker-1")
	readCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	records, err := consumer.ReadNext(readCtx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, int64(5), records[0].FrameNumber)
	require.Equal(t, 1.5, records[0].PTS)
}
