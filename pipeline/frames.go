package pipeline

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/catalystvision/core/clients"
	"github.com/catalystvision/core/config"
	"github.com/catalystvision/core/errors"
	"github.com/catalystvision/core/eventbus"
	"github.com/catalystvision/core/log"
	"github.com/catalystvision/core/video"
)

// extractFrames runs spec.md §4.6 step 4: sample frames, call
// ModelService.vision on each, parse the response, and derive a per-frame
// embedding from the description.
func (o *Orchestrator) extractFrames(ctx context.Context, job *video.Job, out *stageOutcome) error {
	rawFrames, err := o.deps.Decoder.ExtractFrames(ctx, out.localPath, job.Options.FrameSamplingMode, job.Options.FrameSampleRate, job.Options.MaxFrames)
	if err != nil {
		return errors.ExternalTransient("frame extraction failed", err)
	}
	if len(rawFrames) == 0 {
		return nil
	}

	frames := make([]video.Frame, len(rawFrames))
	var mu sync.Mutex
	var usage []video.ModelUsageRecord

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.deps.frameConcurrency())

	for i, raw := range rawFrames {
		i, raw := i, raw
		g.Go(func() error {
			frame, record, err := o.processFrame(gctx, job, raw)
			if err != nil {
				return err
			}
			frames[i] = frame
			mu.Lock()
			usage = append(usage, record)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errors.ExternalPermanent("frame vision processing failed", err)
	}

	out.frames = frames
	out.usage = append(out.usage, usage...)
	return nil
}

func (o *Orchestrator) processFrame(ctx context.Context, job *video.Job, raw clients.FrameBytes) (video.Frame, video.ModelUsageRecord, error) {
	visionCtx, cancel := context.WithTimeout(ctx, config.VisionTimeout)
	defer cancel()

	resp, err := o.deps.Model.Vision(visionCtx, raw.Data, visionPrompt(job), 0)
	if err != nil {
		return video.Frame{}, video.ModelUsageRecord{}, err
	}
	analysis := parseFrameAnalysis(resp.Description)
	if analysis.Features == nil {
		analysis.Features = resp.Features
	}

	embedding, err := o.embed(ctx, job.ID, analysis.Description)
	if err != nil {
		return video.Frame{}, video.ModelUsageRecord{}, err
	}
	if len(embedding) != config.EmbeddingDimension {
		return video.Frame{}, video.ModelUsageRecord{}, errors.Invariant("unexpected embedding dimension", nil)
	}

	frame := video.Frame{
		JobID:       job.ID,
		Number:      raw.Number,
		PTS:         raw.PTS,
		Embedding:   embedding,
		Description: analysis.Description,
		Features:    analysis.Features,
		Objects:     analysis.Objects,
		Text:        analysis.Text,
	}

	o.publishFrameEvent(ctx, job.ID, raw.Number)
	log.LogCtx(ctx, "processed frame", "job", job.ID, "frame", raw.Number)

	return frame, video.ModelUsageRecord{Call: "vision+embedding"}, nil
}

// embed resolves a frame description's embedding, memoizing identical
// (text, kind) pairs within a job through o.deps.Cache (SPEC_FULL.md §C.2)
// so that visually repeated frames don't re-pay the ModelService round trip.
func (o *Orchestrator) embed(ctx context.Context, jobID, description string) ([]float32, error) {
	fetch := func() ([]float32, error) {
		embedCtx, embedCancel := context.WithTimeout(ctx, config.EmbeddingTimeout)
		defer embedCancel()
		return o.deps.Model.Embedding(embedCtx, description, clients.EmbeddingDocument)
	}

	if o.deps.Cache == nil {
		return fetch()
	}

	key := fmt.Sprintf("embedding:%s:%s:%s", jobID, clients.EmbeddingDocument, description)
	v, err := o.deps.Cache.GetOrCompute(key, config.EmbeddingCacheTTL, func() (any, error) {
		return fetch()
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

func visionPrompt(job *video.Job) string {
	if job.Options.CustomAnalysis != nil {
		return *job.Options.CustomAnalysis
	}
	return "Describe this video frame in detail, including objects and visible text."
}

func (o *Orchestrator) publishFrameEvent(ctx context.Context, jobID string, number int64) {
	payload, err := eventbus.MarshalFrameEvent(eventbus.FrameEvent{JobID: jobID, Number: number})
	if err != nil {
		return
	}
	o.deps.Bus.PublishLogged(ctx, jobID, eventbus.FrameStreamTopic(jobID), payload)
}
