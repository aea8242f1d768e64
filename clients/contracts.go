// Package clients defines the external collaborators this core depends on
// but does not implement (spec.md §1, §6): MediaDecoder, ModelService, and
// JobStore are opaque boundaries — contract only, following the teacher's
// clients package convention of one small interface per external system
// (e.g. clients.TranscodeProvider) rather than a single do-everything
// client.
package clients

import (
	"context"

	"github.com/catalystvision/core/video"
)

// MediaDecoder is the opaque video decoder/codec-level collaborator
// (spec.md §1, §6). It never sees job or queue concepts — only file paths.
type MediaDecoder interface {
	Validate(ctx context.Context, path string) error
	ExtractMetadata(ctx context.Context, path string) (video.Metadata, error)
	ExtractFrames(ctx context.Context, path string, mode video.FrameSamplingMode, rate float64, maxFrames int) ([]FrameBytes, error)
	ExtractAudio(ctx context.Context, path string) (audioPath string, err error)
}

// FrameBytes is one raw decoded frame handed back by MediaDecoder.ExtractFrames.
type FrameBytes struct {
	Number int64
	PTS    float64
	Data   []byte
}

// VisionResponse is the raw shape returned by ModelService.vision before
// parsing (spec.md §9): a human-written JSON string the orchestrator must
// parse defensively.
type VisionResponse struct {
	Description string
	Features    map[string]float64
}

// EmbeddingKind selects which prompt template the embedding model uses.
type EmbeddingKind string

const (
	EmbeddingDocument EmbeddingKind = "document"
	EmbeddingQuery    EmbeddingKind = "query"
)

// ModelService is the opaque vision/transcription/classification/embedding
// collaborator (spec.md §1, §6).
type ModelService interface {
	Vision(ctx context.Context, image []byte, prompt string, maxTokens int) (VisionResponse, error)
	Transcription(ctx context.Context, audioPath string, opts TranscriptionOptions) (video.AudioAnalysis, error)
	Classification(ctx context.Context, descriptions []string) (video.ContentClassification, error)
	Synthesis(ctx context.Context, sources []string, kind string) (string, error)
	Embedding(ctx context.Context, text string, kind EmbeddingKind) ([]float32, error)
}

// TranscriptionOptions configures diarization (spec.md §4.6 step 5).
type TranscriptionOptions struct {
	Diarize         bool
	TargetLanguages []string
}

// JobStore is the opaque persistent-relational-storage collaborator
// (spec.md §1, §6): CRUD over jobs, frames, scenes, audio analyses,
// classifications, and results. The orchestrator hands artifacts to it at
// stage completion; it owns none of them in memory.
type JobStore interface {
	SaveResult(ctx context.Context, result video.ProcessingResult) error
	SaveFrames(ctx context.Context, jobID string, frames []video.Frame) error
	SaveScenes(ctx context.Context, jobID string, scenes []video.Scene) error
	SaveAudioAnalysis(ctx context.Context, jobID string, audio video.AudioAnalysis) error
	SaveClassification(ctx context.Context, jobID string, classification video.ContentClassification) error
}
