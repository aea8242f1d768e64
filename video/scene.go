package video

import "time"

// Shot is a contiguous run of visually similar frames inside a Scene
// (spec.md GLOSSARY).
type Shot struct {
	StartFrame int64
	EndFrame   int64
}

// Scene is derived strictly after all frames in [StartFrame, EndFrame) have
// been embedded (spec.md §3). Scenes partition a job's frame range into
// contiguous, non-overlapping ranges (spec.md §8 "Scene coverage"):
//
//	[boundary_0, boundary_1) [boundary_1, boundary_2) ... [boundary_n, last]
type Scene struct {
	JobID      string
	Ordinal    int
	StartFrame int64
	EndFrame   int64 // exclusive, except for the final scene which is inclusive of the last frame
	Duration   time.Duration

	Embedding []float32

	VisualDescriptors map[string]float64
	AudioDescriptors  map[string]float64
	MotionDescriptors map[string]float64

	Shots []Shot
}
