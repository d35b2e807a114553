package usecase

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/forPelevin/vodclips/internal/artifacts"
	"github.com/forPelevin/vodclips/internal/failure"
	"github.com/forPelevin/vodclips/internal/logging"
	"github.com/forPelevin/vodclips/internal/ports"
)

type IngestInput struct {
	JobID     string
	SourceURL string
	Audio     ports.AudioFormat
	TempDir   string
}

type IngestResult struct {
	VideoKey       string
	AudioKey       string
	SourceDuration time.Duration
	VideoBytes     int64
	AudioBytes     int64
}

// Ingest downloads the source video, extracts its audio track and persists
// both. Either both artifacts exist afterwards or neither does.
func (u Usecase) Ingest(ctx context.Context, in IngestInput) (IngestResult, error) {
	log := u.logger(in.JobID, StageIngest)
	if in.SourceURL == "" {
		return IngestResult{}, failure.Wrap(failure.ErrIngest, StageIngest, "validate", "source url is empty", nil)
	}

	dir, cleanup, err := workDir(in.TempDir, StageIngest)
	if err != nil {
		return IngestResult{}, failure.Wrap(failure.ErrIngest, StageIngest, "prepare", "", err)
	}
	defer cleanup()

	videoPath := filepath.Join(dir, "input.mp4")
	audioPath := filepath.Join(dir, "audio.wav")

	log.Info("downloading source", "source_url", in.SourceURL)
	if err := u.d.Downloader.Download(ctx, in.SourceURL, videoPath); err != nil {
		return IngestResult{}, failure.Wrap(failure.ErrIngest, StageIngest, "download", "", err)
	}
	if err := u.d.Video.ExtractAudio(ctx, videoPath, audioPath, in.Audio); err != nil {
		return IngestResult{}, failure.Wrap(failure.ErrIngest, StageIngest, "extract audio", "", err)
	}

	res := IngestResult{VideoKey: artifacts.VideoKey(in.JobID), AudioKey: artifacts.AudioKey(in.JobID)}
	if d, err := u.d.Video.ProbeDuration(ctx, videoPath); err != nil {
		log.Warn("could not probe source duration", logging.Error(err))
	} else {
		res.SourceDuration = d
	}

	res.VideoBytes, err = artifacts.PutFile(ctx, u.d.Store, res.VideoKey, videoPath)
	if err != nil {
		return IngestResult{}, failure.Wrap(failure.ErrIngest, StageIngest, "persist video", "", err)
	}
	res.AudioBytes, err = artifacts.PutFile(ctx, u.d.Store, res.AudioKey, audioPath)
	if err != nil {
		if delErr := u.d.Store.Delete(context.WithoutCancel(ctx), res.VideoKey); delErr != nil {
			err = errors.Join(err, delErr)
		}
		return IngestResult{}, failure.Wrap(failure.ErrIngest, StageIngest, "persist audio", "", err)
	}

	log.Info("source ingested",
		"source_duration", res.SourceDuration,
		"video_mb", megabytes(res.VideoBytes),
		"audio_mb", megabytes(res.AudioBytes),
	)
	return res, nil
}
