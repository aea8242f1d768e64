package eventbus

import (
	"encoding/json"
	"time"

	"github.com/catalystvision/core/video"
)

// EventKind is the shared discriminator field for every payload shape
// published onto the bus (spec.md §9: tagged union, not an any-shaped
// payload).
type EventKind string

const (
	KindJobEvent         EventKind = "job"
	KindProgressUpdate   EventKind = "progress"
	KindFrameEvent       EventKind = "frame"
	KindSceneEvent       EventKind = "scene"
	KindProgressiveResult EventKind = "progressive_result"
)

// JobEvent is published on jobs:<id> and the global jobs topic on every
// state transition (spec.md §4.2 invariant).
type JobEvent struct {
	Kind      EventKind  `json:"kind"`
	JobID     string     `json:"jobId"`
	State     video.State `json:"state"`
	Attempts  int        `json:"attemptsMade"`
	Error     *video.JobError `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// ProgressUpdate is published on progress:<id> after each pipeline stage
// (spec.md §4.6).
type ProgressUpdate struct {
	Kind     EventKind `json:"kind"`
	JobID    string    `json:"jobId"`
	Progress int       `json:"progress"`
	Stage    string    `json:"stage"`
	Message  string    `json:"message"`
}

// FrameEvent is published on frames:<id> when a processed frame is ready.
type FrameEvent struct {
	Kind   EventKind `json:"kind"`
	JobID  string    `json:"jobId"`
	Number int64     `json:"number"`
}

// SceneEvent is published on scenes:<id> when a scene boundary is finalised.
type SceneEvent struct {
	Kind    EventKind `json:"kind"`
	JobID   string    `json:"jobId"`
	Ordinal int       `json:"ordinal"`
}

// ProgressiveResult is published on results:{partial|refined|final}
// (spec.md §4.5).
type ProgressiveResult struct {
	Kind               EventKind              `json:"kind"`
	StreamID           string                 `json:"streamId"`
	FrameNumber        int64                  `json:"frameNumber"`
	Stage              string                 `json:"stage"`
	Confidence         float64                `json:"confidence"`
	Description        string                 `json:"description"`
	RefinementTimeMS   int64                  `json:"refinementTimeMs,omitempty"`
	TimingBreakdownMS  map[string]int64       `json:"timingBreakdownMs,omitempty"`
	EnrichedData       map[string]interface{} `json:"enrichedData,omitempty"`
}

func MarshalJobEvent(e JobEvent) ([]byte, error) {
	e.Kind = KindJobEvent
	return json.Marshal(e)
}

func MarshalProgressUpdate(e ProgressUpdate) ([]byte, error) {
	e.Kind = KindProgressUpdate
	return json.Marshal(e)
}

func MarshalFrameEvent(e FrameEvent) ([]byte, error) {
	e.Kind = KindFrameEvent
	return json.Marshal(e)
}

func MarshalSceneEvent(e SceneEvent) ([]byte, error) {
	e.Kind = KindSceneEvent
	return json.Marshal(e)
}

func MarshalProgressiveResult(e ProgressiveResult) ([]byte, error) {
	e.Kind = KindProgressiveResult
	return json.Marshal(e)
}

// Envelope is used to sniff the discriminator before unmarshalling into a
// concrete type, e.g. in the realtime gateway's demultiplexer.
type Envelope struct {
	Kind EventKind `json:"kind"`
}

func SniffKind(payload []byte) (EventKind, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return "", err
	}
	return env.Kind, nil
}
