package pipeline

import (
	"context"

	"github.com/catalystvision/core/config"
	"github.com/catalystvision/core/log"
	"github.com/catalystvision/core/video"
)

// classify runs spec.md §4.6 step 7. Failure here is non-fatal: the job
// continues with an empty classification artifact (spec.md §7).
func (o *Orchestrator) classify(ctx context.Context, job *video.Job, out *stageOutcome) {
	descriptions := frameDescriptions(out.frames)
	if out.audio != nil {
		descriptions = append(descriptions, out.audio.Transcript)
	}
	if len(descriptions) == 0 {
		return
	}

	classification, err := o.deps.Model.Classification(ctx, descriptions)
	if err != nil {
		log.LogError(job.ID, "classification failed, continuing without it", err)
		return
	}
	out.classification = &classification
	out.usage = append(out.usage, video.ModelUsageRecord{Call: "classification"})
}

// summarize runs spec.md §4.6 step 8: sample up to five frame descriptions
// uniformly, plus metadata and transcript, and submit to
// ModelService.synthesis. Non-fatal on failure.
func (o *Orchestrator) summarize(ctx context.Context, job *video.Job, out *stageOutcome) {
	sources := sampleUniform(frameDescriptions(out.frames), config.SummaryFrameCap)
	sources = append(sources, metadataBlurb(out.metadata))
	if out.audio != nil {
		sources = append(sources, out.audio.Transcript)
	}
	if len(sources) == 0 {
		return
	}

	summary, err := o.deps.Model.Synthesis(ctx, sources, "summary")
	if err != nil {
		log.LogError(job.ID, "summarization failed, continuing without it", err)
		return
	}
	out.summary = summary
	out.usage = append(out.usage, video.ModelUsageRecord{Call: "synthesis"})
}

func frameDescriptions(frames []video.Frame) []string {
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		if f.Description != "" {
			out = append(out, f.Description)
		}
	}
	return out
}

// sampleUniform picks up to n items spread evenly across the slice.
func sampleUniform(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	out := make([]string, 0, n)
	step := float64(len(items)) / float64(n)
	for i := 0; i < n; i++ {
		out = append(out, items[int(float64(i)*step)])
	}
	return out
}

func metadataBlurb(m video.Metadata) string {
	return string(m.QualityBucket) + " quality video"
}
