package video

import "time"

// SpeakerSegment is one diarized span of the transcript.
type SpeakerSegment struct {
	SpeakerID  string
	Start, End time.Duration
	Text       string
	Confidence float64
}

// AudioAnalysis is the transcription/diarization result (spec.md §3).
type AudioAnalysis struct {
	Transcript string
	Segments   []SpeakerSegment
	Language   string
	Topics     []string
	Keywords   []string
}

// ContentClassification is the output of ModelService.classification.
type ContentClassification struct {
	Categories []string
	Tags       []string
	Confidence float64
}

// ModelUsageRecord tracks one external ModelService call for billing/metering
// collaborators that live outside this core (spec.md §1 Non-goals).
type ModelUsageRecord struct {
	Call       string // "vision" | "transcription" | "classification" | "synthesis" | "embedding"
	DurationMS int64
	Tokens     int
}
