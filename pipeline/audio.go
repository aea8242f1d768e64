package pipeline

import (
	"context"

	"github.com/catalystvision/core/clients"
	"github.com/catalystvision/core/config"
	"github.com/catalystvision/core/log"
	"github.com/catalystvision/core/video"
)

// extractAudio runs spec.md §4.6 step 5. Failures here are non-fatal: the
// job continues without audio (spec.md §7 propagation policy).
func (o *Orchestrator) extractAudio(ctx context.Context, job *video.Job, out *stageOutcome) {
	audioPath, err := o.deps.Decoder.ExtractAudio(ctx, out.localPath)
	if err != nil {
		log.LogError(job.ID, "audio extraction failed, continuing without audio", err)
		return
	}
	if !job.Options.TranscribeAudio {
		return
	}

	transcribeCtx, cancel := context.WithTimeout(ctx, config.TranscriptionTimeout)
	defer cancel()

	analysis, err := o.deps.Model.Transcription(transcribeCtx, audioPath, clients.TranscriptionOptions{
		Diarize:         true,
		TargetLanguages: job.Options.TargetLanguages,
	})
	if err != nil {
		log.LogError(job.ID, "transcription failed, continuing without audio", err)
		return
	}
	out.audio = &analysis
	out.usage = append(out.usage, video.ModelUsageRecord{Call: "transcription"})
}
