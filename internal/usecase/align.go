package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/forPelevin/vodclips/internal/artifacts"
	"github.com/forPelevin/vodclips/internal/domain/subtitles"
	"github.com/forPelevin/vodclips/internal/failure"
	"github.com/forPelevin/vodclips/internal/logging"
	"github.com/forPelevin/vodclips/internal/types"
)

// alignClips renders and stores one SRT per clip, setting HasSRT and
// SRTObjectKey on success. It never fails; it returns how many clips got
// subtitles.
func (u Usecase) alignClips(ctx context.Context, log *slog.Logger, jobID string, clips []types.ClipMetadata) int {
	if len(clips) == 0 {
		return 0
	}
	tr, err := artifacts.LoadTranscript(ctx, u.d.Store, jobID)
	if err != nil {
		log.Warn("transcript unavailable; clips left without subtitles",
			logging.FieldEventType, "alignment_skipped",
			logging.Error(failure.Wrap(failure.ErrAlignment, StageSynthesize, "load transcript", "", err)))
		return 0
	}

	n := 0
	for i := range clips {
		c := &clips[i]
		c.HasSRT = false
		c.SRTObjectKey = ""

		srt := subtitles.ForClip(tr, c.StartTime, c.EndTime)
		key := artifacts.SRTKey(jobID, c.ClipIndex)
		if err := u.d.Store.Put(ctx, key, strings.NewReader(srt)); err != nil {
			log.Warn("subtitle generation failed",
				logging.FieldClipIndex, c.ClipIndex,
				logging.FieldEventType, "alignment_failed",
				logging.Error(failure.Wrap(failure.ErrAlignment, StageSynthesize, "persist srt", key, err)))
			continue
		}
		c.HasSRT = true
		c.SRTObjectKey = key
		n++
	}
	return n
}
