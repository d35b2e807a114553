package usecase

import (
	"context"
	"fmt"

	"github.com/forPelevin/vodclips/internal/artifacts"
	"github.com/forPelevin/vodclips/internal/audio"
	"github.com/forPelevin/vodclips/internal/domain/highlights"
	"github.com/forPelevin/vodclips/internal/failure"
	"github.com/forPelevin/vodclips/internal/types"
)

type AnalyzeInput struct {
	JobID           string
	TempDir         string
	WindowSize      float64
	StepSize        float64
	EnergyThreshold float64
	TopN            int
}

// Analyze scores the job's audio, keeps the top N windows above the energy
// threshold and persists the result as the synthesis handoff.
func (u Usecase) Analyze(ctx context.Context, in AnalyzeInput) (types.AnalysisResult, error) {
	log := u.logger(in.JobID, StageAnalyze)
	started := u.d.Now()

	scorer := highlights.Scorer{WindowSize: in.WindowSize, StepSize: in.StepSize}
	if err := scorer.Validate(); err != nil {
		return types.AnalysisResult{}, failure.Wrap(failure.ErrAnalysis, StageAnalyze, "validate", "", err)
	}
	if in.EnergyThreshold < 0 {
		return types.AnalysisResult{}, failure.Wrap(failure.ErrAnalysis, StageAnalyze, "validate",
			fmt.Sprintf("energy threshold must be >= 0, got %v", in.EnergyThreshold), nil)
	}

	dir, cleanup, err := workDir(in.TempDir, StageAnalyze)
	if err != nil {
		return types.AnalysisResult{}, failure.Wrap(failure.ErrAnalysis, StageAnalyze, "prepare", "", err)
	}
	defer cleanup()

	wav, drop, err := artifacts.Fetch(ctx, u.d.Store, artifacts.AudioKey(in.JobID), dir, "audio-*.wav")
	defer drop()
	if err != nil {
		return types.AnalysisResult{}, fmt.Errorf("%s: %w", StageAnalyze, err)
	}

	samples, err := audio.DecodeFile(wav)
	if err != nil {
		return types.AnalysisResult{}, failure.Wrap(failure.ErrAnalysis, StageAnalyze, "decode audio", "", err)
	}
	drop()

	scored, err := scorer.Score(samples.Data, samples.SampleRate)
	if err != nil {
		return types.AnalysisResult{}, failure.Wrap(failure.ErrAnalysis, StageAnalyze, "score", "", err)
	}
	if scored.CentroidFallbacks > 0 {
		log.Warn("spectral centroid unavailable for some windows; recorded as 0",
			"windows", scored.CentroidFallbacks, "total", len(scored.Segments))
	}
	sel := highlights.Select(scored.Segments, in.EnergyThreshold, in.TopN)

	res := types.AnalysisResult{
		JobID:            in.JobID,
		TotalSegments:    sel.Total,
		FilteredSegments: sel.Filtered,
		TopSegmentsCount: len(sel.Top),
		TopSegments:      sel.Top,
		AnalysisDuration: u.d.Now().Sub(started).Seconds(),
		Parameters: types.AnalysisParameters{
			WindowSize:      in.WindowSize,
			StepSize:        in.StepSize,
			EnergyThreshold: in.EnergyThreshold,
		},
	}
	if err := artifacts.SaveAnalysis(ctx, u.d.Store, res); err != nil {
		return types.AnalysisResult{}, fmt.Errorf("%s: persist analysis: %w", StageAnalyze, err)
	}
	log.Info("analysis stored",
		"audio_seconds", samples.Duration(),
		"total_segments", res.TotalSegments,
		"filtered_segments", res.FilteredSegments,
		"top_segments", res.TopSegmentsCount,
	)
	return res, nil
}
