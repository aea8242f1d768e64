package video

// BoundingBox is normalised to [0,1]^2 (spec.md §3).
type BoundingBox struct {
	X1, Y1, X2, Y2 float64
}

// DetectedObject is one object-detection hit on a Frame.
type DetectedObject struct {
	Label      string
	Confidence float64
	Box        BoundingBox
}

// TextRegion is one detected text region on a Frame.
type TextRegion struct {
	Text       string
	Confidence float64
	Box        BoundingBox
}

// FrameAnalysis is the typed result of parsing a ModelService.vision
// response (spec.md §4.6 step 4, §9). On schema violation the parser falls
// back to {Description: rawString, Features: defaults}.
type FrameAnalysis struct {
	Description string
	Features    map[string]float64
	Objects     []DetectedObject
	Text        []TextRegion
}

// Frame is append-only within a job (spec.md §3).
type Frame struct {
	JobID     string
	Number    int64 // monotonic
	PTS       float64 // presentation timestamp, seconds

	Bytes      []byte // raw bytes, mutually exclusive with BlobHandle
	BlobHandle string

	Embedding []float32 // optional, len == config.EmbeddingDimension when set

	Description string
	Features    map[string]float64
	Objects     []DetectedObject
	Text        []TextRegion
}
