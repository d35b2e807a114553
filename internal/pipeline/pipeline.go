// Package pipeline sequences the job stages. The Orchestrator holds a per-job
// file lock while it runs, records every stage transition in the job store
// and stops at the first failure. Nothing is retried.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/gofrs/flock"

	"github.com/forPelevin/vodclips/internal/failure"
	"github.com/forPelevin/vodclips/internal/jobs"
	"github.com/forPelevin/vodclips/internal/logging"
	"github.com/forPelevin/vodclips/internal/ports"
	"github.com/forPelevin/vodclips/internal/types"
	"github.com/forPelevin/vodclips/internal/usecase"
)

// Stages is the set of stage operations the Orchestrator drives.
type Stages interface {
	Ingest(ctx context.Context, in usecase.IngestInput) (usecase.IngestResult, error)
	Transcribe(ctx context.Context, in usecase.TranscribeInput) (usecase.TranscribeResult, error)
	Analyze(ctx context.Context, in usecase.AnalyzeInput) (types.AnalysisResult, error)
	Synthesize(ctx context.Context, in usecase.SynthesizeInput) (types.ClipManifest, error)
}

var _ Stages = usecase.Usecase{}

// Order lists the stages of a full run.
var Order = []string{
	usecase.StageIngest,
	usecase.StageTranscribe,
	usecase.StageAnalyze,
	usecase.StageSynthesize,
}

// Params are the per-run settings handed to the stages.
type Params struct {
	Audio           ports.AudioFormat
	WindowSize      float64
	StepSize        float64
	EnergyThreshold float64
	TopN            int
	MaxClips        int
	TempDir         string
	LocksDir        string
}

type Request struct {
	JobID     string
	SourceURL string
}

// Result collects the outputs of the stages that ran.
type Result struct {
	JobID      string
	Ingest     *usecase.IngestResult
	Transcript *usecase.TranscribeResult
	Analysis   *types.AnalysisResult
	Manifest   *types.ClipManifest
}

type Orchestrator struct {
	stages Stages
	jobs   *jobs.Store
	params Params
	logger *slog.Logger
}

func NewOrchestrator(stages Stages, store *jobs.Store, params Params, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		stages: stages,
		jobs:   store,
		params: params,
		logger: logging.NewComponentLogger(logger, "orchestrator"),
	}
}

func (o *Orchestrator) Params() Params { return o.params }

// Run executes every stage in order. A failure stops the run and is returned
// as *StageError.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	return o.run(ctx, req, Order)
}

// RunStage executes a single stage against artifacts already in the store.
func (o *Orchestrator) RunStage(ctx context.Context, req Request, stage string) (*Result, error) {
	if !slices.Contains(Order, stage) {
		return nil, fmt.Errorf("unknown stage %q", stage)
	}
	return o.run(ctx, req, []string{stage})
}

func (o *Orchestrator) run(ctx context.Context, req Request, stages []string) (*Result, error) {
	if err := ValidateJobID(req.JobID); err != nil {
		return nil, err
	}
	unlock, err := o.lock(req.JobID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := o.jobs.Ensure(ctx, req.JobID, req.SourceURL); err != nil {
		return nil, fmt.Errorf("record job: %w", err)
	}
	defer o.removeJobTemp(req.JobID)

	res := &Result{JobID: req.JobID}
	for _, stage := range stages {
		final := stage == usecase.StageSynthesize
		if err := o.execute(ctx, req, stage, final, res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (o *Orchestrator) execute(ctx context.Context, req Request, stage string, final bool, res *Result) error {
	log := logging.WithJob(o.logger, req.JobID, stage)
	if err := o.jobs.StartStage(ctx, req.JobID, stage); err != nil {
		return &StageError{JobID: req.JobID, Stage: stage, Err: fmt.Errorf("record stage start: %w", err)}
	}

	start := time.Now()
	log.Info("stage started", slog.String(logging.FieldEventType, "stage_start"))

	if err := o.dispatch(ctx, req, stage, res); err != nil {
		kind := failure.KindOf(err)
		log.Error("stage failed",
			slog.String(logging.FieldEventType, "stage_failure"),
			slog.String("error_kind", kind),
			slog.Duration("stage_duration", time.Since(start)),
			logging.Error(err),
		)
		if ferr := o.jobs.Fail(context.WithoutCancel(ctx), req.JobID, stage, kind, err.Error()); ferr != nil {
			log.Error("failed to persist stage failure", logging.Error(ferr))
		}
		return &StageError{JobID: req.JobID, Stage: stage, Err: err}
	}

	if err := o.jobs.CompleteStage(ctx, req.JobID, final); err != nil {
		return &StageError{JobID: req.JobID, Stage: stage, Err: fmt.Errorf("record stage result: %w", err)}
	}
	log.Info("stage completed",
		slog.String(logging.FieldEventType, "stage_complete"),
		slog.Duration("stage_duration", time.Since(start)),
	)
	return nil
}

func (o *Orchestrator) dispatch(ctx context.Context, req Request, stage string, res *Result) error {
	tempDir := o.jobTemp(req.JobID)
	switch stage {
	case usecase.StageIngest:
		r, err := o.stages.Ingest(ctx, usecase.IngestInput{
			JobID:     req.JobID,
			SourceURL: req.SourceURL,
			Audio:     o.params.Audio,
			TempDir:   tempDir,
		})
		if err != nil {
			return err
		}
		res.Ingest = &r
	case usecase.StageTranscribe:
		r, err := o.stages.Transcribe(ctx, usecase.TranscribeInput{JobID: req.JobID, TempDir: tempDir})
		if err != nil {
			return err
		}
		res.Transcript = &r
	case usecase.StageAnalyze:
		r, err := o.stages.Analyze(ctx, usecase.AnalyzeInput{
			JobID:           req.JobID,
			TempDir:         tempDir,
			WindowSize:      o.params.WindowSize,
			StepSize:        o.params.StepSize,
			EnergyThreshold: o.params.EnergyThreshold,
			TopN:            o.params.TopN,
		})
		if err != nil {
			return err
		}
		res.Analysis = &r
	case usecase.StageSynthesize:
		m, err := o.stages.Synthesize(ctx, usecase.SynthesizeInput{
			JobID:    req.JobID,
			TempDir:  tempDir,
			MaxClips: o.params.MaxClips,
		})
		if err != nil {
			return err
		}
		res.Manifest = &m
		if err := o.jobs.SetClipsCount(ctx, req.JobID, m.ClipsCount); err != nil {
			return fmt.Errorf("record clips count: %w", err)
		}
	}
	return nil
}

// lock takes the job's lock file without blocking. A held lock means another
// process is running this job.
func (o *Orchestrator) lock(jobID string) (func(), error) {
	if err := os.MkdirAll(o.params.LocksDir, 0o755); err != nil {
		return nil, fmt.Errorf("create locks dir: %w", err)
	}
	fl := flock.New(filepath.Join(o.params.LocksDir, jobID+".lock"))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire job lock: %w", err)
	}
	if !ok {
		return nil, failure.Wrap(failure.ErrJobBusy, "", "lock", "job "+jobID+" is being processed by another run", nil)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			o.logger.Warn("failed to release job lock", slog.String(logging.FieldJobID, jobID), logging.Error(err))
		}
	}, nil
}

func (o *Orchestrator) jobTemp(jobID string) string {
	if o.params.TempDir == "" {
		return ""
	}
	return filepath.Join(o.params.TempDir, jobID)
}

// removeJobTemp drops the job's temp root once the stages have removed their
// own work dirs. A non-empty root is left for inspection.
func (o *Orchestrator) removeJobTemp(jobID string) {
	dir := o.jobTemp(jobID)
	if dir == "" {
		return
	}
	if err := os.Remove(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
		o.logger.Debug("job temp dir not removed", slog.String("dir", dir), logging.Error(err))
	}
}
