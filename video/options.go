package video

// FrameSamplingMode selects how the Frames stage samples frames from the
// decoded video (spec.md §4.6 step 4).
type FrameSamplingMode string

const (
	SamplingKeyframes  FrameSamplingMode = "keyframes"
	SamplingUniform    FrameSamplingMode = "uniform"
	SamplingSceneBased FrameSamplingMode = "scene-based"
)

// QualityPreference trades off latency against fidelity for model calls.
type QualityPreference string

const (
	QualitySpeed    QualityPreference = "speed"
	QualityBalanced QualityPreference = "balanced"
	QualityAccuracy QualityPreference = "accuracy"
)

// ProcessingOptions is the complete enumeration from spec.md §6.
type ProcessingOptions struct {
	ExtractFrames     bool
	FrameSamplingMode FrameSamplingMode
	FrameSampleRate   float64 // frames per second, default 1
	MaxFrames         int     // 0 = unbounded

	ExtractAudio    bool
	TranscribeAudio bool

	DetectScenes  bool
	DetectObjects bool
	ExtractText   bool

	ClassifyContent bool
	GenerateSummary bool

	CustomAnalysis *string

	TargetLanguages []string

	QualityPreference QualityPreference

	// EmbeddingAggregation selects how persistEmbeddings combines per-frame
	// embeddings into the video embedding (spec.md §4.6); the empty value
	// defaults to AggregateMean.
	EmbeddingAggregation AggregationMethod

	AdditionalMetadata map[string]any
}

// DefaultProcessingOptions mirrors the defaults named in spec.md §6.
func DefaultProcessingOptions() ProcessingOptions {
	return ProcessingOptions{
		FrameSamplingMode:    SamplingUniform,
		FrameSampleRate:      1,
		QualityPreference:    QualityBalanced,
		EmbeddingAggregation: AggregateMean,
	}
}
