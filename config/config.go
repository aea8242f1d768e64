// Package config holds tunable defaults and the process-wide configuration
// struct shared by every binary in this module.
package config

import "time"

// Version is set at build time via -ldflags.
var Version string

// Clock lets tests substitute a fixed wall clock. Production code should
// call Clock.GetTime() instead of time.Now() directly so that job
// timestamps (§3) can be frozen in tests.
var Clock TimestampGenerator = RealTimestampGenerator{}

// Job queue defaults (spec.md §3, §4.2).
const (
	DefaultMaxAttempts  = 3
	DefaultBackoffBase  = 5 * time.Second
	DefaultRetainKeepOK = 100
	DefaultRetainKeepKO = 500
	DefaultPriority     = 5
	MinPriority         = 1
	MaxPriority         = 10
)

// Worker lease defaults (spec.md §4.2 "Failure semantics": worker death —
// missed heartbeat or broken context — returns the job to waiting with
// attempts incremented and backoff applied).
const (
	LeaseTTL               = 45 * time.Second
	LeaseHeartbeatInterval = 15 * time.Second
	ReaperInterval         = 20 * time.Second
)

// Shutdown / cancellation window (spec.md §4.2, §8).
const CancelShutdownWindow = 30 * time.Second

// Similarity index defaults (spec.md §4.3).
const (
	EmbeddingDimension  = 1024
	HNSWM               = 16
	HNSWEfConstruct     = 100
	HNSWFullScanThresh  = 10000
	DefaultScoreThresh  = 0.7
	UpsertBatchChunk    = 100
	VideoCollection     = "video_embeddings"
	SceneCollection     = "scene_embeddings"
)

// Re-ranking defaults (SPEC_FULL.md §C.5, §D OQ #2): RerankMatchBoost is the
// multiplier applied per fully-matched filter category (tags, scene_types)
// on top of the raw cosine Score, which is left untouched.
const RerankMatchBoost = 0.1

// Cacher defaults (SPEC_FULL.md §C.2): embedding memoization is scoped to a
// single job's lifetime, so its TTL only needs to outlive one pipeline run.
const (
	EmbeddingCacheTTL    = 10 * time.Minute
	CacheCleanupInterval = 5 * time.Minute
)

// Live-stream batching defaults (spec.md §4.4).
const (
	DefaultMaxBatchSize  = 16
	DefaultBatchWait     = 50 * time.Millisecond
	DefaultBatchWorkers  = 2
	StreamConsumerGroup  = "videoagent-worker"
	StreamBlockWindow    = 1 * time.Second
)

// Progressive-results defaults (spec.md §4.5, §8).
const (
	DefaultRefinementDelay = 500 * time.Millisecond
	DefaultFinalDelay      = 1500 * time.Millisecond
	ScannerTick            = 100 * time.Millisecond
	PartialConfidence      = 0.60
	RefinedConfidence      = 0.85
	FinalConfidence        = 0.95
	ResultStreamMaxLen     = 10000
)

// Pipeline stage thresholds (spec.md §4.6).
const (
	SceneThreshold   = 0.7
	ShotThreshold    = 0.85
	MinSceneLength   = 30
	MaxSceneLength   = 900
	MinShotLength    = 5
	SummaryFrameCap  = 5
)

// Timeouts (spec.md §5). These are package-level variables, not Cli fields.
var (
	VisionTimeout        = 60 * time.Second
	TranscriptionTimeout = 3600 * time.Second
	EmbeddingTimeout     = 10 * time.Second
	IndexSearchTimeout   = 10 * time.Second
	IndexRetrieveTimeout = 5 * time.Second
	DownloadTimeout      = 5 * time.Minute
	JobStageTimeout      = 300 * time.Second
)

// Realtime gateway defaults (spec.md §4.7).
const (
	PingInterval       = 15 * time.Second
	InactivityTimeout  = 30 * time.Second
	ClockSkewTolerance = 5 * time.Second
)

// Progress anchors published after each pipeline stage (spec.md §4.6).
var ProgressAnchors = []int{0, 10, 15, 25, 60, 75, 85, 90, 95, 100}

// Allowed local-filesystem roots for `file://` references (spec.md §4.6 Prepare).
var AllowedFileRoots = []string{"/tmp/", "/shared/", "/data/"}
