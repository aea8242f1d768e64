// Package eventbus implements C1, the pub/sub fabric every other component
// fans events through (spec.md §4.1). It is a thin wrapper over Redis
// pub/sub: publish is PUBLISH, subscribe is PSUBSCRIBE translated from the
// ":"-segment/"*"-wildcard pattern grammar into Redis glob patterns.
package eventbus

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/catalystvision/core/log"
)

// Topic roots used across the core (spec.md §4.1).
const (
	TopicJobs     = "jobs"
	TopicProgress = "progress"
	TopicFrames   = "frames"
	TopicScenes   = "scenes"
	TopicResults  = "results"
)

// Message is one delivered (topic, payload) pair.
type Message struct {
	Topic   string
	Payload []byte
}

// Bus is a Redis-backed EventBus (C1). At-least-once delivery per
// subscriber; FIFO within a single topic per publisher; no ordering across
// topics; no replay for late subscribers (spec.md §4.1).
type Bus struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Bus {
	return &Bus{rdb: rdb}
}

// Publish is non-blocking from the caller's perspective beyond the network
// round trip to the fabric; it returns once Redis has accepted the message.
func (b *Bus) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.rdb.Publish(ctx, topic, payload).Err(); err != nil {
		return err
	}
	return nil
}

// AppendStream appends payload to stream, approximately trimming it to the
// most recent maxLen entries (XADD ... MAXLEN ~ maxLen). Unlike Publish,
// which only reaches subscribers live at send time, the stream is durable:
// a late reader can XRANGE/XREAD it to catch up (spec.md §4.5, §6
// "results:{partial|refined|final}" bounded ring streams).
func (b *Bus) AppendStream(ctx context.Context, stream string, maxLen int64, payload []byte) error {
	return b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: maxLen,
		Approx: true,
		Values: map[string]interface{}{"payload": payload},
	}).Err()
}

// Subscription is a lazy sequence of messages matching a pattern.
type Subscription struct {
	pubsub *redis.PubSub
	ch     <-chan *redis.Message
}

// Subscribe returns a Subscription for pattern, where ":" separates
// segments and "*" matches exactly one segment (spec.md §4.1). A bare "*"
// segment is translated to the Redis glob class "[^:]*" rather than a plain
// "*", so the match stops at the next ":" — a plain "*" would otherwise
// match across segment boundaries (e.g. "jobs:*" would wrongly match a
// three-segment topic like "jobs:a:b").
func (b *Bus) Subscribe(ctx context.Context, pattern string) *Subscription {
	redisPattern := toRedisGlob(pattern)
	ps := b.rdb.PSubscribe(ctx, redisPattern)
	return &Subscription{pubsub: ps, ch: ps.Channel()}
}

// Next blocks until a message arrives or ctx is done.
func (s *Subscription) Next(ctx context.Context) (Message, error) {
	select {
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case m, ok := <-s.ch:
		if !ok {
			return Message{}, context.Canceled
		}
		return Message{Topic: m.Channel, Payload: []byte(m.Payload)}, nil
	}
}

func (s *Subscription) Close() error {
	return s.pubsub.Close()
}

// JobTopic returns the per-job "jobs:<id>" topic.
func JobTopic(jobID string) string { return TopicJobs + ":" + jobID }

// ProgressTopic returns the per-job "progress:<id>" topic.
func ProgressTopic(jobID string) string { return TopicProgress + ":" + jobID }

// FrameStreamTopic returns the per-stream "frames:<id>" topic.
func FrameStreamTopic(streamID string) string { return TopicFrames + ":" + streamID }

// SceneTopic returns the per-job "scenes:<id>" topic.
func SceneTopic(jobID string) string { return TopicScenes + ":" + jobID }

// ResultTopic returns "results:partial|refined|final".
func ResultTopic(stage string) string { return TopicResults + ":" + stage }

func toRedisGlob(pattern string) string {
	segments := strings.Split(pattern, ":")
	for i, seg := range segments {
		if seg == "*" {
			segments[i] = "[^:]*"
		}
	}
	return strings.Join(segments, ":")
}

// PublishLogged publishes and logs failures without returning them, used by
// call sites that treat EventBus delivery as best-effort fan-out (spec.md
// §4.1 guarantees no replay; a publish failure here is not fatal to the
// caller's own state transition, which has already been committed).
func (b *Bus) PublishLogged(ctx context.Context, jobID, topic string, payload []byte) {
	if err := b.Publish(ctx, topic, payload); err != nil {
		log.LogError(jobID, "eventbus publish failed", err, "topic", topic)
	}
}
