package pipeline

import (
	"context"
	"time"

	"github.com/catalystvision/core/config"
	"github.com/catalystvision/core/video"
)

// detectScenes runs spec.md §4.6 step 6: a scene boundary is declared where
// cosine similarity between adjacent frame embeddings drops below
// sceneThreshold (0.7), subject to minSceneLength (30) and maxSceneLength
// (900) frames. Within each scene, a finer boundary at 0.85 and minimum 5
// frames defines shots. Scene coverage is a strict partition of
// [firstFrame, lastFrame] (spec.md §8).
func (o *Orchestrator) detectScenes(ctx context.Context, job *video.Job, out *stageOutcome) error {
	frames := out.frames
	if len(frames) == 0 {
		return nil
	}

	boundaries := sceneBoundaries(frames)
	scenes := make([]video.Scene, 0, len(boundaries)-1)
	for ord := 0; ord < len(boundaries)-1; ord++ {
		start := boundaries[ord]
		endExclusive := boundaries[ord+1]
		lastIdx := endExclusive - 1

		scene := video.Scene{
			JobID:      job.ID,
			Ordinal:    ord,
			StartFrame: frames[start].Number,
			Duration:   time.Duration((frames[lastIdx].PTS - frames[start].PTS) * float64(time.Second)),
			Shots:      shotBoundaries(frames[start:endExclusive]),
		}
		if ord == len(boundaries)-2 {
			scene.EndFrame = frames[lastIdx].Number // final scene is inclusive
		} else {
			scene.EndFrame = frames[endExclusive].Number
		}

		vectors := make([][]float32, 0, endExclusive-start)
		for _, f := range frames[start:endExclusive] {
			vectors = append(vectors, f.Embedding)
		}
		scene.Embedding = video.Aggregate(video.AggregateMean, vectors, nil)

		scenes = append(scenes, scene)
	}

	out.scenes = scenes
	return nil
}

// sceneBoundaries returns start indices of each scene plus a trailing
// sentinel equal to len(frames).
func sceneBoundaries(frames []video.Frame) []int {
	boundaries := []int{0}
	sinceLast := 0
	for i := 1; i < len(frames); i++ {
		sinceLast++
		sim := video.CosineSimilarity(frames[i-1].Embedding, frames[i].Embedding)
		forceSplit := sinceLast >= config.MaxSceneLength
		belowThreshold := sim < config.SceneThreshold && sinceLast >= config.MinSceneLength
		if belowThreshold || forceSplit {
			boundaries = append(boundaries, i)
			sinceLast = 0
		}
	}
	return append(boundaries, len(frames))
}

// shotBoundaries applies the same scanning rule within one scene at the
// finer shot threshold (0.85, minimum 5 frames).
func shotBoundaries(frames []video.Frame) []video.Shot {
	starts := []int{0}
	sinceLast := 0
	for i := 1; i < len(frames); i++ {
		sinceLast++
		sim := video.CosineSimilarity(frames[i-1].Embedding, frames[i].Embedding)
		if sim < config.ShotThreshold && sinceLast >= config.MinShotLength {
			starts = append(starts, i)
			sinceLast = 0
		}
	}
	starts = append(starts, len(frames))

	shots := make([]video.Shot, 0, len(starts)-1)
	for i := 0; i < len(starts)-1; i++ {
		start := starts[i]
		endExclusive := starts[i+1]
		lastIdx := endExclusive - 1
		shots = append(shots, video.Shot{
			StartFrame: frames[start].Number,
			EndFrame:   frames[lastIdx].Number,
		})
	}
	return shots
}
