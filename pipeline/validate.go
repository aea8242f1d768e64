package pipeline

import (
	"context"

	"github.com/catalystvision/core/errors"
	"github.com/catalystvision/core/video"
)

// validate verifies the resolved file decodes as a video (spec.md §4.6
// step 2). Failure here is terminal and retriable by the queue.
func (o *Orchestrator) validate(ctx context.Context, job *video.Job, out *stageOutcome) error {
	if err := o.deps.Decoder.Validate(ctx, out.localPath); err != nil {
		return errors.ExternalTransient("media validation failed", err)
	}
	return nil
}

// extractMetadata fills duration/width/height/fps/codec/bitrate/audio
// properties and derives the quality bucket (spec.md §4.6 step 3).
func (o *Orchestrator) extractMetadata(ctx context.Context, job *video.Job, out *stageOutcome) error {
	meta, err := o.deps.Decoder.ExtractMetadata(ctx, out.localPath)
	if err != nil {
		return errors.ExternalTransient("metadata extraction failed", err)
	}
	meta.QualityBucket = video.BucketForMetadata(meta)
	out.metadata = meta
	return nil
}
