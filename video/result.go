package video

import "time"

// ProcessingResult bundles everything produced for one terminal completed
// job (spec.md §3) — exactly one per job.
type ProcessingResult struct {
	JobID string

	Metadata       Metadata
	Frames         []Frame
	Audio          *AudioAnalysis
	Scenes         []Scene
	Classification *ContentClassification
	Summary        string

	ElapsedSeconds float64
	ModelUsage     []ModelUsageRecord

	FinishedAt time.Time
}
