package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/forPelevin/vodclips/internal/artifacts"
	"github.com/forPelevin/vodclips/internal/domain/highlights"
	"github.com/forPelevin/vodclips/internal/failure"
	"github.com/forPelevin/vodclips/internal/logging"
	"github.com/forPelevin/vodclips/internal/types"
)

type SynthesizeInput struct {
	JobID    string
	TempDir  string
	MaxClips int
}

// Synthesize cuts one clip per ranked segment (up to MaxClips), persists the
// manifest, then aligns subtitles for every clip and persists the manifest
// again with the subtitle flags.
//
// The previous manifest is removed before encoding starts. Any failure after
// that leaves the job with no manifest and no clip objects; a subtitle
// failure only leaves that clip without subtitles. On success, clip and
// subtitle objects the new manifest does not list are removed.
func (u Usecase) Synthesize(ctx context.Context, in SynthesizeInput) (types.ClipManifest, error) {
	log := u.logger(in.JobID, StageSynthesize)

	analysis, err := artifacts.LoadAnalysis(ctx, u.d.Store, in.JobID)
	if err != nil {
		return types.ClipManifest{}, fmt.Errorf("%s: %w", StageSynthesize, err)
	}
	if err := artifacts.Require(ctx, u.d.Store, artifacts.VideoKey(in.JobID)); err != nil {
		return types.ClipManifest{}, fmt.Errorf("%s: %w", StageSynthesize, err)
	}
	segs := highlights.Truncate(analysis.TopSegments, in.MaxClips)

	if err := u.d.Store.Delete(ctx, artifacts.ManifestKey(in.JobID)); err != nil {
		return types.ClipManifest{}, fmt.Errorf("%s: remove previous manifest: %w", StageSynthesize, err)
	}

	clips, err := u.synthesizeClips(ctx, log, in, segs)
	if err != nil {
		u.rollback(ctx, log, in.JobID)
		return types.ClipManifest{}, err
	}

	m := types.ClipManifest{
		JobID:       in.JobID,
		ClipsCount:  len(clips),
		Clips:       clips,
		GeneratedAt: u.d.Now().UTC(),
	}
	for _, c := range clips {
		m.TotalSizeMB += c.FileSizeMB
	}
	if err := artifacts.SaveManifest(ctx, u.d.Store, m); err != nil {
		u.rollback(ctx, log, in.JobID)
		return types.ClipManifest{}, fmt.Errorf("%s: persist manifest: %w", StageSynthesize, err)
	}
	log.Info("clips synthesized", "clips", m.ClipsCount, "total_size_mb", m.TotalSizeMB)

	withSRT := u.alignClips(ctx, log, in.JobID, m.Clips)
	if err := artifacts.SaveManifest(ctx, u.d.Store, m); err != nil {
		u.rollback(ctx, log, in.JobID)
		return types.ClipManifest{}, fmt.Errorf("%s: persist manifest: %w", StageSynthesize, err)
	}
	log.Info("subtitles aligned", "with_srt", withSRT, "clips", m.ClipsCount)
	u.pruneStale(ctx, log, m)
	return m, nil
}

func (u Usecase) synthesizeClips(ctx context.Context, log *slog.Logger, in SynthesizeInput, segs []types.AudioSegment) ([]types.ClipMetadata, error) {
	clips := make([]types.ClipMetadata, 0, len(segs))
	if len(segs) == 0 {
		return clips, nil
	}

	dir, cleanup, err := workDir(in.TempDir, StageSynthesize)
	if err != nil {
		return nil, failure.Wrap(failure.ErrEncode, StageSynthesize, "prepare", "", err)
	}
	defer cleanup()

	video, drop, err := artifacts.Fetch(ctx, u.d.Store, artifacts.VideoKey(in.JobID), dir, "input-*.mp4")
	defer drop()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", StageSynthesize, err)
	}

	for i, seg := range segs {
		clip, err := u.encodeClip(ctx, in.JobID, video, dir, i, seg)
		if err != nil {
			return nil, err
		}
		clips = append(clips, clip)
		log.Info("clip generated", logging.FieldClipIndex, i, "file_size_mb", clip.FileSizeMB)
	}
	return clips, nil
}

func (u Usecase) encodeClip(ctx context.Context, jobID, video, dir string, index int, seg types.AudioSegment) (types.ClipMetadata, error) {
	op := fmt.Sprintf("clip %d", index)
	out := filepath.Join(dir, artifacts.ClipFilename(index))
	defer func() { _ = os.Remove(out) }()

	if err := u.d.Video.TrimClip(ctx, video, seconds(seg.StartTime), seconds(seg.Duration), out); err != nil {
		return types.ClipMetadata{}, failure.Wrap(failure.ErrEncode, StageSynthesize, op, "trim", err)
	}
	key := artifacts.ClipKey(jobID, index)
	size, err := artifacts.PutFile(ctx, u.d.Store, key, out)
	if err != nil {
		return types.ClipMetadata{}, failure.Wrap(failure.ErrEncode, StageSynthesize, op, "persist", err)
	}
	return types.ClipMetadata{
		ClipIndex:      index,
		Filename:       artifacts.ClipFilename(index),
		ObjectKey:      key,
		StartTime:      seg.StartTime,
		EndTime:        seg.EndTime,
		Duration:       seg.Duration,
		RMSScore:       seg.RMSScore,
		PeakAmplitude:  seg.PeakAmplitude,
		CompositeScore: seg.Score(),
		FileSizeMB:     megabytes(size),
	}, nil
}

// rollback removes the manifest and every clip object of jobID after a failed
// batch. Failures are logged only.
func (u Usecase) rollback(ctx context.Context, log *slog.Logger, jobID string) {
	ctx = context.WithoutCancel(ctx)
	u.deleteLogged(ctx, log, artifacts.ManifestKey(jobID))
	keys, err := u.d.Store.List(ctx, artifacts.ClipsPrefix(jobID))
	if err != nil {
		log.Warn("could not list clips of aborted batch", logging.Error(err))
		return
	}
	for _, key := range keys {
		u.deleteLogged(ctx, log, key)
	}
}

// pruneStale removes clip and subtitle objects left by an earlier run that m
// does not reference.
func (u Usecase) pruneStale(ctx context.Context, log *slog.Logger, m types.ClipManifest) {
	keep := make(map[string]bool, 2*len(m.Clips))
	for _, c := range m.Clips {
		keep[c.ObjectKey] = true
		if c.HasSRT {
			keep[c.SRTObjectKey] = true
		}
	}
	keys, err := u.d.Store.List(ctx, artifacts.ClipsPrefix(m.JobID))
	if err != nil {
		log.Warn("could not list clips for cleanup", logging.Error(err))
		return
	}
	for _, key := range keys {
		if !keep[key] {
			u.deleteLogged(ctx, log, key)
		}
	}
}

func (u Usecase) deleteLogged(ctx context.Context, log *slog.Logger, key string) {
	if err := u.d.Store.Delete(ctx, key); err != nil {
		log.Warn("could not remove object", "object_key", key, logging.Error(err))
	}
}
