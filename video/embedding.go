package video

// AggregationMethod combines per-frame embeddings into one video/scene
// embedding (spec.md §4.6).
type AggregationMethod string

const (
	AggregateMean      AggregationMethod = "mean"
	AggregateMax       AggregationMethod = "max"
	AggregateAttention AggregationMethod = "attention"
)

// VideoPayload mirrors the searchable attributes stored alongside a
// VideoEmbedding (spec.md §3).
type VideoPayload struct {
	VideoID        string            `json:"video_id"`
	DurationSec    float64           `json:"duration_sec"`
	SceneTypes     []string          `json:"scene_types,omitempty"`
	Tags           []string          `json:"tags,omitempty"`
	DominantColors []string          `json:"dominant_colors,omitempty"`
	ColorProfile   map[string]string `json:"color_profile,omitempty"`
	StartTimestamp int64             `json:"start_timestamp,omitempty"`
	ContentHash    string            `json:"content_hash"`
}

// VideoEmbedding is one row of the video_embeddings collection (spec.md §3).
type VideoEmbedding struct {
	ID      string
	Vector  []float32 // len == config.EmbeddingDimension
	Payload VideoPayload
}

// ScenePayload mirrors the searchable attributes stored alongside a
// SceneEmbedding.
type ScenePayload struct {
	VideoID     string  `json:"video_id"`
	SceneID     string  `json:"scene_id"`
	Ordinal     int     `json:"ordinal"`
	StartFrame  int64   `json:"start_frame"`
	EndFrame    int64   `json:"end_frame"`
	DurationSec float64 `json:"duration_sec"`
	ContentHash string  `json:"content_hash"`
}

// SceneEmbedding is one row of the scene_embeddings collection.
type SceneEmbedding struct {
	ID      string
	Vector  []float32
	Payload ScenePayload
}
