package streaming

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/catalystvision/core/clients"
	"github.com/catalystvision/core/video"
)

type fakeModelService struct {
	mu          sync.Mutex
	visionCalls int
}

func (f *fakeModelService) Vision(ctx context.Context, image []byte, prompt string, maxTokens int) (clients.VisionResponse, error) {
	f.mu.Lock()
	f.visionCalls++
	f.mu.Unlock()
	return clients.VisionResponse{Description: "a frame"}, nil
}
func (f *fakeModelService) Transcription(context.Context, string, clients.TranscriptionOptions) (video.AudioAnalysis, error) {
	panic("unused")
}
func (f *fakeModelService) Classification(context.Context, []string) (video.ContentClassification, error) {
	panic("unused")
}
func (f *fakeModelService) Synthesis(context.Context, []string, string) (string, error) {
	panic("unused")
}
func (f *fakeModelService) Embedding(context.Context, string, clients.EmbeddingKind) ([]float32, error) {
	panic("unused")
}

type recordingSink struct {
	mu      sync.Mutex
	results []string
}

func (s *recordingSink) HandleResult(streamID string, frameNumber int64, description string, features map[string]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, description)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

func TestWorkerPoolProcessesBatchAndEmitsResults(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	consumer := NewConsumer(rdb, "worker-1")
	batcher := NewBatcher(2, time.Hour, 4)
	model := &fakeModelService{}
	sink := &recordingSink{}
	pool := NewWorkerPool(consumer, batcher, model, sink, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pool.Run(ctx, 1)

	batcher.Add(StreamRecord{StreamID: "frames:s1", FrameNumber: 1})
	batcher.Add(StreamRecord{StreamID: "frames:s1", FrameNumber: 2})

	require.Eventually(t, func() bool {
		return sink.count() == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWorkerPoolProcessesRecordsWithAndWithoutFrameBytes(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	consumer := NewConsumer(rdb, "worker-1")
	batcher := NewBatcher(2, time.Hour, 4)
	model := &fakeModelService{}
	sink := &recordingSink{}
	pool := NewWorkerPool(consumer, batcher, model, sink, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pool.Run(ctx, 1)

	// A nil FrameBytes record still reaches Vision (the fake never panics),
	// so both records of the batch are processed and emitted; no record in
	// this test panics.
	batcher.Add(StreamRecord{StreamID: "frames:s1", FrameNumber: 1, FrameBytes: nil})
	batcher.Add(StreamRecord{StreamID: "frames:s1", FrameNumber: 2, FrameBytes: []byte("x")})

	require.Eventually(t, func() bool {
		return sink.count() == 2
	}, 2*time.Second, 10*time.Millisecond)
}
