package streaming

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/catalystvision/core/config"
	"github.com/catalystvision/core/log"
)

// Batcher accumulates StreamRecords into bounded micro-batches (spec.md
// §4.4). A single mutex protects the accumulation slice; it is released
// before the batch is handed to the (possibly blocking) batch channel
// (spec.md §5 shared-resource policy).
type Batcher struct {
	mu      sync.Mutex
	pending []StreamRecord
	timer   *time.Timer

	maxSize int
	wait    time.Duration

	batchCh chan []StreamRecord

	droppedBatches int64
}

func NewBatcher(maxSize int, wait time.Duration, batchChCap int) *Batcher {
	if maxSize <= 0 {
		maxSize = config.DefaultMaxBatchSize
	}
	if wait <= 0 {
		wait = config.DefaultBatchWait
	}
	return &Batcher{
		maxSize: maxSize,
		wait:    wait,
		batchCh: make(chan []StreamRecord, batchChCap),
	}
}

// Batches exposes the flushed-batch channel for worker pools to consume.
func (b *Batcher) Batches() <-chan []StreamRecord { return b.batchCh }

// Add appends rec to the pending batch, flushing immediately if it is now
// full. The batch-wait timer starts on the first record of a new batch and
// is stopped (not merely ignored) on an early full-flush, so it cannot fire
// against an already-empty pending slice (spec.md §4.4 detail floor).
func (b *Batcher) Add(rec StreamRecord) {
	b.mu.Lock()
	b.pending = append(b.pending, rec)
	isFirst := len(b.pending) == 1
	isFull := len(b.pending) >= b.maxSize
	if isFirst {
		b.timer = time.AfterFunc(b.wait, b.flushOnTimer)
	}
	var toFlush []StreamRecord
	if isFull {
		toFlush = b.pending
		b.pending = nil
		if b.timer != nil {
			b.timer.Stop()
		}
	}
	b.mu.Unlock()

	if toFlush != nil {
		b.dispatch(toFlush)
	}
}

func (b *Batcher) flushOnTimer() {
	b.mu.Lock()
	toFlush := b.pending
	b.pending = nil
	b.mu.Unlock()

	if len(toFlush) > 0 {
		b.dispatch(toFlush)
	}
}

// dispatch hands a flushed batch to the bounded batch channel. If the
// channel is full the newest batch is dropped and counted — live-stream
// loss is preferable to blocking the consumer (spec.md §4.4).
func (b *Batcher) dispatch(batch []StreamRecord) {
	select {
	case b.batchCh <- batch:
	default:
		atomic.AddInt64(&b.droppedBatches, 1)
		log.LogNoID("dropping stream batch, channel full", "size", len(batch))
	}
}

func (b *Batcher) DroppedBatches() int64 {
	return atomic.LoadInt64(&b.droppedBatches)
}
