package streaming

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/catalystvision/core/config"
	"github.com/catalystvision/core/log"
)

// Consumer scans for frames:* streams and reads new records via a shared
// consumer group (spec.md §4.4).
type Consumer struct {
	rdb         *redis.Client
	groupName   string
	consumerID  string
	maxBatch    int64
	blockWindow time.Duration

	knownStreams map[string]struct{}
}

func NewConsumer(rdb *redis.Client, consumerID string) *Consumer {
	return &Consumer{
		rdb:          rdb,
		groupName:    config.StreamConsumerGroup,
		consumerID:   consumerID,
		maxBatch:     config.DefaultMaxBatchSize,
		blockWindow:  config.StreamBlockWindow,
		knownStreams: make(map[string]struct{}),
	}
}

// discoverStreams lists keys matching frames:* and lazily creates the
// consumer group on any not seen before.
func (c *Consumer) discoverStreams(ctx context.Context) ([]string, error) {
	var streams []string
	iter := c.rdb.Scan(ctx, 0, "frames:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		streams = append(streams, key)
		if _, ok := c.knownStreams[key]; !ok {
			err := c.rdb.XGroupCreateMkStream(ctx, key, c.groupName, "0").Err()
			if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
				return nil, err
			}
			c.knownStreams[key] = struct{}{}
		}
	}
	return streams, iter.Err()
}

// ReadNext blocks up to blockWindow across every known stream and returns
// parsed records. Records missing client-id or frame bytes are ACKed and
// logged, never retried (spec.md §4.4).
func (c *Consumer) ReadNext(ctx context.Context) ([]StreamRecord, error) {
	streams, err := c.discoverStreams(ctx)
	if err != nil || len(streams) == 0 {
		return nil, err
	}

	args := make([]string, 0, len(streams)*2)
	args = append(args, streams...)
	for range streams {
		args = append(args, ">")
	}

	res, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.groupName,
		Consumer: c.consumerID,
		Streams:  args,
		Count:    c.maxBatch,
		Block:    c.blockWindow,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var records []StreamRecord
	for _, stream := range res {
		for _, msg := range stream.Messages {
			rec, ok := parseRecord(stream.Stream, msg)
			if !ok {
				log.LogNoID("dropping malformed stream record", "stream", stream.Stream, "id", msg.ID)
				c.rdb.XAck(ctx, stream.Stream, c.groupName, msg.ID)
				continue
			}
			records = append(records, rec)
		}
	}
	return records, nil
}

// Ack acknowledges a consumed record (spec.md §4.4).
func (c *Consumer) Ack(ctx context.Context, rec StreamRecord) error {
	return c.rdb.XAck(ctx, rec.StreamID, c.groupName, rec.logID).Err()
}

func parseRecord(streamKey string, msg redis.XMessage) (StreamRecord, bool) {
	clientID, _ := msg.Values["client_id"].(string)
	frameBytes, _ := msg.Values["frame"].(string)
	if clientID == "" || frameBytes == "" {
		return StreamRecord{}, false
	}
	var frameNumber int64
	if v, ok := msg.Values["frame_number"].(string); ok {
		frameNumber = parseInt64(v)
	}
	var pts float64
	if v, ok := msg.Values["pts"].(string); ok {
		pts = parseFloat64(v)
	}
	return StreamRecord{
		StreamID:    streamKey,
		FrameNumber: frameNumber,
		PTS:         pts,
		ClientID:    clientID,
		FrameBytes:  []byte(frameBytes),
		logID:       msg.ID,
	}, true
}
