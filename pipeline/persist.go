package pipeline

import (
	"context"
	"strconv"
	"time"

	"github.com/catalystvision/core/errors"
	"github.com/catalystvision/core/video"
)

// persist runs spec.md §4.6 step 9: write the result to JobStore, then
// upsert the aggregated video embedding and every scene embedding into the
// SimilarityIndex. Failure here is terminal and retriable.
func (o *Orchestrator) persist(ctx context.Context, job *video.Job, out *stageOutcome) (*video.ProcessingResult, error) {
	result := video.ProcessingResult{
		JobID:          job.ID,
		Metadata:       out.metadata,
		Frames:         out.frames,
		Audio:          out.audio,
		Scenes:         out.scenes,
		Classification: out.classification,
		Summary:        out.summary,
		ModelUsage:     out.usage,
		FinishedAt:     time.Now(),
	}
	if job.StartedAt != nil {
		result.ElapsedSeconds = result.FinishedAt.Sub(*job.StartedAt).Seconds()
	}

	if err := o.deps.Store.SaveResult(ctx, result); err != nil {
		return nil, errors.ExternalTransient("failed to save result", err)
	}
	if len(out.frames) > 0 {
		if err := o.deps.Store.SaveFrames(ctx, job.ID, out.frames); err != nil {
			return nil, errors.ExternalTransient("failed to save frames", err)
		}
	}
	if len(out.scenes) > 0 {
		if err := o.deps.Store.SaveScenes(ctx, job.ID, out.scenes); err != nil {
			return nil, errors.ExternalTransient("failed to save scenes", err)
		}
	}
	if out.audio != nil {
		if err := o.deps.Store.SaveAudioAnalysis(ctx, job.ID, *out.audio); err != nil {
			return nil, errors.ExternalTransient("failed to save audio analysis", err)
		}
	}
	if out.classification != nil {
		if err := o.deps.Store.SaveClassification(ctx, job.ID, *out.classification); err != nil {
			return nil, errors.ExternalTransient("failed to save classification", err)
		}
	}

	if err := o.persistEmbeddings(ctx, job, out); err != nil {
		return nil, err
	}

	return &result, nil
}

func (o *Orchestrator) persistEmbeddings(ctx context.Context, job *video.Job, out *stageOutcome) error {
	if len(out.frames) == 0 {
		return nil
	}

	vectors := make([][]float32, len(out.frames))
	weights := make([]float64, len(out.frames))
	for i, f := range out.frames {
		vectors[i] = f.Embedding
		weights[i] = confidenceOf(f)
	}
	videoVector := video.Aggregate(aggregationMethod(job.Options), vectors, weights)

	videoEmbedding := video.VideoEmbedding{
		ID:     job.ID,
		Vector: videoVector,
		Payload: video.VideoPayload{
			VideoID:     job.ID,
			DurationSec: out.metadata.DurationSeconds,
			ContentHash: video.ContentHash(videoVector),
		},
	}
	if err := o.deps.Index.UpsertVideo(ctx, videoEmbedding); err != nil {
		return errors.ExternalTransient("failed to upsert video embedding", err)
	}

	if len(out.scenes) == 0 {
		return nil
	}
	sceneEmbeddings := make([]video.SceneEmbedding, len(out.scenes))
	for i, scene := range out.scenes {
		sceneEmbeddings[i] = video.SceneEmbedding{
			ID:     sceneID(job.ID, scene.Ordinal),
			Vector: scene.Embedding,
			Payload: video.ScenePayload{
				VideoID:     job.ID,
				SceneID:     sceneID(job.ID, scene.Ordinal),
				Ordinal:     scene.Ordinal,
				StartFrame:  scene.StartFrame,
				EndFrame:    scene.EndFrame,
				DurationSec: scene.Duration.Seconds(),
				ContentHash: video.ContentHash(scene.Embedding),
			},
		}
	}
	if err := o.deps.Index.UpsertScenesBatch(ctx, sceneEmbeddings); err != nil {
		return errors.ExternalTransient("failed to upsert scene embeddings", err)
	}
	return nil
}

// aggregationMethod resolves job.Options.EmbeddingAggregation, defaulting to
// AggregateMean per spec.md §4.6 when the job doesn't select one.
func aggregationMethod(opts video.ProcessingOptions) video.AggregationMethod {
	if opts.EmbeddingAggregation == "" {
		return video.AggregateMean
	}
	return opts.EmbeddingAggregation
}

func confidenceOf(f video.Frame) float64 {
	if v, ok := f.Features["confidence"]; ok {
		return v
	}
	return 1
}

func sceneID(jobID string, ordinal int) string {
	return jobID + "-scene-" + strconv.Itoa(ordinal)
}
