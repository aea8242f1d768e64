// Package streaming implements C4, the live-stream ingestion path:
// StreamConsumer reads frame records off Redis streams and FrameBatcher
// micro-batches them for vision processing (spec.md §4.4).
package streaming

// StreamRecord is one raw frame pulled off a frames:<stream-id> log.
type StreamRecord struct {
	StreamID    string
	FrameNumber int64
	PTS         float64
	ClientID    string
	FrameBytes  []byte

	logID string // the fabric's own record id, needed to ACK
}

// StreamResult is the assembled output of processing one StreamRecord
// against ModelService.vision (spec.md §4.4).
type StreamResult struct {
	StreamID    string
	FrameNumber int64
	Description string
	Features    map[string]float64
	Err         error
}

// ResultSink receives completed StreamResults. ProgressiveResults (C5)
// implements this; streaming never imports package progressive directly,
// keeping the dependency graph acyclic (spec.md §2 dependency order).
type ResultSink interface {
	HandleResult(streamID string, frameNumber int64, description string, features map[string]float64)
}
