package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/catalystvision/core/video"
)

func vecA() []float32 { return []float32{1, 0, 0} }
func vecB() []float32 { return []float32{0.2, 0.98, 0} } // cosine(A,B) ≈ 0.2

func TestSceneBoundariesMatchSpecExample(t *testing.T) {
	frames := make([]video.Frame, 0, 180)
	for i := 0; i < 60; i++ {
		frames = append(frames, video.Frame{Number: int64(i), Embedding: vecA()})
	}
	for i := 60; i < 120; i++ {
		frames = append(frames, video.Frame{Number: int64(i), Embedding: vecB()})
	}
	for i := 120; i < 180; i++ {
		frames = append(frames, video.Frame{Number: int64(i), Embedding: vecA()})
	}

	boundaries := sceneBoundaries(frames)
	require.Equal(t, []int{0, 60, 120, 180}, boundaries)
}

func TestSceneCoverageIsContiguousPartition(t *testing.T) {
	frames := make([]video.Frame, 0, 90)
	for i := 0; i < 90; i++ {
		frames = append(frames, video.Frame{Number: int64(i), Embedding: vecA()})
	}
	boundaries := sceneBoundaries(frames)
	require.Equal(t, []int{0, 90}, boundaries) // too few frames to force any split
}
