// Package progressive implements C5, the ProgressiveResults state machine
// that delivers partial, refined, and final results per (stream, frame)
// (spec.md §4.5).
package progressive

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/catalystvision/core/config"
	"github.com/catalystvision/core/eventbus"
	"github.com/catalystvision/core/log"
)

type frameKey struct {
	streamID    string
	frameNumber int64
}

type frameState struct {
	description string
	features    map[string]float64

	partialAt time.Time
	refinedAt time.Time

	refinedSent bool
	finalSent   bool
}

// Results is the in-process ProgressiveResults component (C5). It holds no
// durable state: on restart, in-flight states are discarded (best-effort,
// spec.md §4.5 invariant).
type Results struct {
	mu     sync.RWMutex
	states map[frameKey]*frameState

	bus   *eventbus.Bus
	clock clock.Clock

	refinementDelay time.Duration
	finalDelay      time.Duration
}

func New(bus *eventbus.Bus, clk clock.Clock) *Results {
	if clk == nil {
		clk = clock.New()
	}
	return &Results{
		states:          make(map[frameKey]*frameState),
		bus:             bus,
		clock:           clk,
		refinementDelay: config.DefaultRefinementDelay,
		finalDelay:      config.DefaultFinalDelay,
	}
}

// HandleResult satisfies streaming.ResultSink: on first call for a
// (streamID, frameNumber) it creates state and emits partial immediately
// (spec.md §4.5).
func (r *Results) HandleResult(streamID string, frameNumber int64, description string, features map[string]float64) {
	key := frameKey{streamID, frameNumber}
	now := r.clock.Now()

	r.mu.Lock()
	r.states[key] = &frameState{description: description, features: features, partialAt: now}
	r.mu.Unlock()

	r.emit(eventbus.ProgressiveResult{
		StreamID:    streamID,
		FrameNumber: frameNumber,
		Stage:       "partial",
		Confidence:  config.PartialConfidence,
		Description: description,
	})
}

// Run drives the 100ms scanner until ctx is done (spec.md §4.5).
func (r *Results) Run(ctx context.Context) {
	ticker := r.clock.Ticker(config.ScannerTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.scanOnce()
		}
	}
}

// scanOnce snapshots the state map under a read-lock before iterating
// (spec.md §5 shared-resource policy), then mutates individual entries
// under the write-lock only for the keys it emits or removes.
func (r *Results) scanOnce() {
	now := r.clock.Now()

	r.mu.RLock()
	keys := make([]frameKey, 0, len(r.states))
	for k := range r.states {
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	for _, key := range keys {
		r.mu.Lock()
		st, ok := r.states[key]
		if !ok {
			r.mu.Unlock()
			continue
		}

		switch {
		case !st.refinedSent && now.Sub(st.partialAt) >= r.refinementDelay:
			st.refinedSent = true
			st.refinedAt = now
			r.mu.Unlock()
			r.emit(eventbus.ProgressiveResult{
				StreamID:         key.streamID,
				FrameNumber:      key.frameNumber,
				Stage:            "refined",
				Confidence:       config.RefinedConfidence,
				Description:      st.description,
				RefinementTimeMS: now.Sub(st.partialAt).Milliseconds(),
			})

		case st.refinedSent && !st.finalSent && now.Sub(st.refinedAt) >= r.finalDelay:
			st.finalSent = true
			delete(r.states, key)
			r.mu.Unlock()
			r.emit(eventbus.ProgressiveResult{
				StreamID:    key.streamID,
				FrameNumber: key.frameNumber,
				Stage:       "final",
				Confidence:  config.FinalConfidence,
				Description: st.description,
				TimingBreakdownMS: map[string]int64{
					"partial_to_refined_ms": st.refinedAt.Sub(st.partialAt).Milliseconds(),
					"refined_to_final_ms":   now.Sub(st.refinedAt).Milliseconds(),
				},
				EnrichedData: featuresToEnriched(st.features),
			})

		default:
			r.mu.Unlock()
		}
	}
}

func featuresToEnriched(features map[string]float64) map[string]interface{} {
	if len(features) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(features))
	for k, v := range features {
		out[k] = v
	}
	return out
}

// emit fans result out both ways: Publish reaches subscribers live at send
// time, AppendStream writes it into the bounded "results:{stage}" stream
// (spec.md §4.5, §6) so a subscriber that wasn't listening yet can still
// catch up instead of losing the result outright.
func (r *Results) emit(result eventbus.ProgressiveResult) {
	payload, err := eventbus.MarshalProgressiveResult(result)
	if err != nil {
		log.LogNoID("failed to marshal progressive result", "err", err.Error())
		return
	}
	ctx := context.Background()
	topic := eventbus.ResultTopic(result.Stage)
	r.bus.PublishLogged(ctx, result.StreamID, topic, payload)
	if err := r.bus.AppendStream(ctx, topic, config.ResultStreamMaxLen, payload); err != nil {
		log.LogError(result.StreamID, "failed to append result stream", err, "topic", topic)
	}
}

// StateCount reports how many (stream, frame) pairs are currently tracked,
// used by tests and metrics.
func (r *Results) StateCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.states)
}
