// Package pipeline implements C6, the PipelineOrchestrator: the nine-stage
// job graph every job runs through (spec.md §4.6).
package pipeline

import (
	"context"
	"fmt"

	"github.com/catalystvision/core/cache"
	"github.com/catalystvision/core/clients"
	"github.com/catalystvision/core/config"
	"github.com/catalystvision/core/errors"
	"github.com/catalystvision/core/eventbus"
	"github.com/catalystvision/core/jobqueue"
	"github.com/catalystvision/core/log"
	"github.com/catalystvision/core/simidx"
	"github.com/catalystvision/core/video"
)

// Deps bundles every external collaborator the orchestrator drives.
type Deps struct {
	Decoder clients.MediaDecoder
	Model   clients.ModelService
	Store   clients.JobStore
	Index   *simidx.Index
	Bus     *eventbus.Bus
	Queue   *jobqueue.Queue

	// Cache memoizes ModelService.Embedding calls for identical (text, kind)
	// pairs within a job (SPEC_FULL.md §C.2); nil disables memoization.
	Cache *cache.Cacher

	// FrameConcurrency bounds parallel ModelService.vision calls per job
	// (spec.md §5); 0 uses the default of 4.
	FrameConcurrency int
}

func (d Deps) frameConcurrency() int {
	if d.FrameConcurrency <= 0 {
		return 4
	}
	return d.FrameConcurrency
}

// Orchestrator runs one job through the strict nine-stage graph (spec.md
// §4.6): Prepare, Validate, Metadata, Frames, Audio, Scenes, Classify,
// Summarize, Persist. No stage is ever skipped; a stage may be a no-op when
// its ProcessingOptions flag is disabled.
type Orchestrator struct {
	deps Deps
}

func New(deps Deps) *Orchestrator {
	return &Orchestrator{deps: deps}
}

// stageOutcome accumulates artifacts across stages so later stages (scenes,
// classify, summarize, persist) can consult earlier ones.
type stageOutcome struct {
	localPath string
	metadata  video.Metadata
	frames    []video.Frame
	audio     *video.AudioAnalysis
	scenes    []video.Scene
	classification *video.ContentClassification
	summary        string
	usage          []video.ModelUsageRecord
}

// Run drives job through every stage, honouring ctx for cooperative
// cancellation (spec.md §4.6 "consults a cancellation token between
// stages"). The caller (the worker loop) is responsible for calling
// JobQueue.Ack with the returned outcome.
func (o *Orchestrator) Run(ctx context.Context, job *video.Job) (*video.ProcessingResult, *video.JobError) {
	out := &stageOutcome{}

	if cancelled := o.checkCancelled(ctx, job); cancelled != nil {
		return nil, cancelled
	}

	if err := o.prepare(ctx, job, out); err != nil {
		return nil, o.fail(job, err)
	}
	o.progress(ctx, job, 1, "prepare", "resolved video source")

	if cancelled := o.checkCancelled(ctx, job); cancelled != nil {
		return nil, cancelled
	}

	if err := o.validate(ctx, job, out); err != nil {
		return nil, o.fail(job, err)
	}
	o.progress(ctx, job, 2, "validate", "validated decodable video")

	if err := o.extractMetadata(ctx, job, out); err != nil {
		return nil, o.fail(job, err)
	}
	o.progress(ctx, job, 3, "metadata", "extracted metadata")

	if cancelled := o.checkCancelled(ctx, job); cancelled != nil {
		return nil, cancelled
	}

	if job.Options.ExtractFrames {
		if err := o.extractFrames(ctx, job, out); err != nil {
			return nil, o.fail(job, err)
		}
	}
	o.progress(ctx, job, 4, "frames", fmt.Sprintf("processed %d frames", len(out.frames)))

	if job.Options.ExtractAudio {
		o.extractAudio(ctx, job, out) // non-fatal: warns and continues (spec.md §4.6)
	}
	o.progress(ctx, job, 5, "audio", "processed audio")

	if cancelled := o.checkCancelled(ctx, job); cancelled != nil {
		return nil, cancelled
	}

	if job.Options.DetectScenes {
		if err := o.detectScenes(ctx, job, out); err != nil {
			return nil, o.fail(job, err)
		}
	}
	o.progress(ctx, job, 6, "scenes", fmt.Sprintf("detected %d scenes", len(out.scenes)))

	if job.Options.ClassifyContent {
		o.classify(ctx, job, out) // non-fatal
	}
	o.progress(ctx, job, 7, "classify", "classified content")

	if job.Options.GenerateSummary {
		o.summarize(ctx, job, out) // non-fatal
	}
	o.progress(ctx, job, 8, "summarize", "generated summary")

	if cancelled := o.checkCancelled(ctx, job); cancelled != nil {
		return nil, cancelled
	}

	result, err := o.persist(ctx, job, out)
	if err != nil {
		return nil, o.fail(job, err)
	}
	o.progress(ctx, job, 9, "persist", "persisted result")

	return result, nil
}

func (o *Orchestrator) checkCancelled(ctx context.Context, job *video.Job) *video.JobError {
	select {
	case <-ctx.Done():
		log.Log(job.ID, "job cancelled", "stage", "cancellation-check")
		return &video.JobError{Code: string(errors.CodeCancelled), Message: "job was cancelled"}
	default:
		return nil
	}
}

func (o *Orchestrator) fail(job *video.Job, err error) *video.JobError {
	code, ok := errors.CodeOf(err)
	if !ok {
		code = errors.CodeExternalPermanent
	}
	log.LogError(job.ID, "pipeline stage failed", err, "code", string(code))
	return &video.JobError{Code: string(code), Message: err.Error()}
}

func (o *Orchestrator) progress(ctx context.Context, job *video.Job, anchorIndex int, stage, message string) {
	if anchorIndex < 0 || anchorIndex >= len(config.ProgressAnchors) {
		return
	}
	if err := o.deps.Queue.SetProgress(ctx, job.ID, config.ProgressAnchors[anchorIndex], stage, message); err != nil {
		log.LogError(job.ID, "failed to publish progress", err, "stage", stage)
	}
}
