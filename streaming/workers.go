package streaming

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/catalystvision/core/clients"
	"github.com/catalystvision/core/config"
	"github.com/catalystvision/core/log"
)

// WorkerPool drains flushed batches and runs each record concurrently
// against ModelService.vision (spec.md §4.4).
type WorkerPool struct {
	consumer *Consumer
	batcher  *Batcher
	model    clients.ModelService
	sink     ResultSink

	resultCh chan StreamResult

	droppedResults int64
}

func NewWorkerPool(consumer *Consumer, batcher *Batcher, model clients.ModelService, sink ResultSink, resultChCap int) *WorkerPool {
	return &WorkerPool{
		consumer: consumer,
		batcher:  batcher,
		model:    model,
		sink:     sink,
		resultCh: make(chan StreamResult, resultChCap),
	}
}

// Run starts n batch workers and a single result dispatcher; it blocks
// until ctx is done.
func (p *WorkerPool) Run(ctx context.Context, n int) {
	if n <= 0 {
		n = config.DefaultBatchWorkers
	}
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.runWorker(ctx)
		}()
	}
	go p.dispatchResults(ctx)
	wg.Wait()
}

func (p *WorkerPool) runWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-p.batcher.Batches():
			if !ok {
				return
			}
			p.processBatch(ctx, batch)
		}
	}
}

// processBatch runs every record in the batch concurrently (one goroutine
// per record); a panic in one record's processing is isolated and does not
// prevent the rest of the batch from ACKing and emitting (spec.md §4.4).
func (p *WorkerPool) processBatch(ctx context.Context, batch []StreamRecord) {
	var wg sync.WaitGroup
	for _, rec := range batch {
		rec := rec
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.LogNoID("recovered panic processing stream record", "stream", rec.StreamID, "frame", rec.FrameNumber, "panic", fmt.Sprint(r))
				}
			}()
			p.processOne(ctx, rec)
		}()
	}
	wg.Wait()
}

func (p *WorkerPool) processOne(ctx context.Context, rec StreamRecord) {
	visionCtx, cancel := context.WithTimeout(ctx, config.VisionTimeout)
	defer cancel()

	resp, err := p.model.Vision(visionCtx, rec.FrameBytes, "", 0)
	result := StreamResult{StreamID: rec.StreamID, FrameNumber: rec.FrameNumber, Err: err}
	if err == nil {
		result.Description = resp.Description
		result.Features = resp.Features
	}

	select {
	case p.resultCh <- result:
	default:
		atomic.AddInt64(&p.droppedResults, 1)
		log.LogNoID("dropping stream result, channel full", "stream", rec.StreamID, "frame", rec.FrameNumber)
	}

	if err := p.consumer.Ack(ctx, rec); err != nil {
		log.LogError(rec.ClientID, "failed to ack stream record", err, "stream", rec.StreamID)
	}
}

func (p *WorkerPool) dispatchResults(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case result, ok := <-p.resultCh:
			if !ok {
				return
			}
			if result.Err != nil {
				continue
			}
			p.sink.HandleResult(result.StreamID, result.FrameNumber, result.Description, result.Features)
		}
	}
}

func (p *WorkerPool) DroppedResults() int64 {
	return atomic.LoadInt64(&p.droppedResults)
}
