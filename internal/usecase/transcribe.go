package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/forPelevin/vodclips/internal/artifacts"
	"github.com/forPelevin/vodclips/internal/failure"
)

type TranscribeInput struct {
	JobID   string
	TempDir string
}

type TranscribeResult struct {
	Key      string
	Segments int
	Language string
}

// Transcribe sends the job's audio to the transcription backend and persists
// the transcript.
func (u Usecase) Transcribe(ctx context.Context, in TranscribeInput) (TranscribeResult, error) {
	log := u.logger(in.JobID, StageTranscribe)

	dir, cleanup, err := workDir(in.TempDir, StageTranscribe)
	if err != nil {
		return TranscribeResult{}, failure.Transcription(nil, "prepare", err)
	}
	defer cleanup()

	wav, drop, err := artifacts.Fetch(ctx, u.d.Store, artifacts.AudioKey(in.JobID), dir, "audio-*.wav")
	defer drop()
	if err != nil {
		return TranscribeResult{}, fmt.Errorf("%s: %w", StageTranscribe, err)
	}

	log.Info("transcription started")
	tr, err := u.d.ASR.Transcribe(ctx, wav)
	if err != nil {
		if !errors.Is(err, failure.ErrTranscription) {
			err = failure.Transcription(nil, "transcribe", err)
		}
		return TranscribeResult{}, err
	}

	key := artifacts.TranscriptKey(in.JobID)
	if err := artifacts.SaveTranscript(ctx, u.d.Store, in.JobID, tr); err != nil {
		return TranscribeResult{}, fmt.Errorf("%s: persist transcript: %w", StageTranscribe, err)
	}
	log.Info("transcript stored", "segments", len(tr.Segments), "language", tr.Language)
	return TranscribeResult{Key: key, Segments: len(tr.Segments), Language: tr.Language}, nil
}
