package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/forPelevin/vodclips/internal/config"
	"github.com/forPelevin/vodclips/internal/jobs"
	"github.com/forPelevin/vodclips/internal/logging"
	"github.com/forPelevin/vodclips/internal/ports"
	"github.com/forPelevin/vodclips/internal/ports/adapters/badgerstore"
	"github.com/forPelevin/vodclips/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/vodclips/internal/ports/adapters/fsstore"
	"github.com/forPelevin/vodclips/internal/ports/adapters/whispercpp"
	"github.com/forPelevin/vodclips/internal/ports/adapters/whisperhttp"
	"github.com/forPelevin/vodclips/internal/ports/adapters/ytdlp"
	"github.com/forPelevin/vodclips/internal/usecase"
)

// Transcriber is a transcription backend with a readiness gate.
type Transcriber interface {
	ports.ASR
	ports.ReadinessReporter
	Warmup(ctx context.Context) error
}

var (
	_ Transcriber = (*whisperhttp.Adapter)(nil)
	_ Transcriber = (*whispercpp.Adapter)(nil)
)

// App is a fully wired vodclips instance.
type App struct {
	Config       *config.Config
	Store        ports.BlobStore
	Jobs         *jobs.Store
	Video        *ffmpeg.Adapter
	Downloader   *ytdlp.Adapter
	Transcriber  Transcriber
	Orchestrator *Orchestrator
	Logger       *slog.Logger

	closers []func() error
}

// Build opens the store and job database named by cfg and wires the
// adapters into an Orchestrator. Close releases what Build opened.
func Build(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	app := &App{Config: cfg, Logger: logger}

	store, closeStore, err := OpenStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	app.Store = store
	app.closers = append(app.closers, closeStore)

	jobStore, err := jobs.Open(cfg.Paths.DBPath)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("open job database: %w", err)
	}
	app.Jobs = jobStore
	app.closers = append(app.closers, jobStore.Close)

	app.Video = ffmpeg.New(cfg.Tools.FFmpeg, cfg.Tools.FFprobe, ffmpeg.Encoding{
		VideoCodec: cfg.Clips.VideoCodec,
		AudioCodec: cfg.Clips.AudioCodec,
		Preset:     cfg.Clips.Preset,
		CRF:        cfg.Clips.CRF,
	})
	app.Downloader = ytdlp.New(cfg.Tools.YtDlp, cfg.Tools.YtDlpFormat)

	app.Transcriber, err = NewTranscriber(cfg, app.Video)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	uc := usecase.New(usecase.Deps{
		Store:      app.Store,
		Downloader: app.Downloader,
		Video:      app.Video,
		ASR:        app.Transcriber,
		Logger:     logger,
	})
	app.Orchestrator = NewOrchestrator(uc, jobStore, ParamsFromConfig(cfg), logger)
	return app, nil
}

// OpenStore opens the configured blob store backend.
func OpenStore(cfg *config.Config, logger *slog.Logger) (ports.BlobStore, func() error, error) {
	switch cfg.Store.Backend {
	case config.StoreBadger:
		s, err := badgerstore.New(filepath.Join(cfg.Store.Dir, "badger"), cfg.Store.Namespace, logging.NewComponentLogger(logger, "badgerstore"))
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.StoreFS, "":
		s, err := fsstore.New(cfg.Store.Dir, cfg.Store.Namespace)
		if err != nil {
			return nil, nil, err
		}
		return s, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// NewTranscriber builds the configured transcription backend.
func NewTranscriber(cfg *config.Config, resampler whispercpp.Resampler) (Transcriber, error) {
	switch cfg.Transcription.Backend {
	case config.TranscriberWhisperCPP:
		return whispercpp.New(cfg.Transcription.WhisperBin, cfg.Transcription.WhisperModel, cfg.Paths.TempDir, cfg.TranscriptionTimeout(), resampler), nil
	case config.TranscriberHTTP, "":
		return whisperhttp.New(cfg.Transcription.URL, cfg.Transcription.AllowedHosts, cfg.TranscriptionTimeout())
	default:
		return nil, fmt.Errorf("unknown transcription backend %q", cfg.Transcription.Backend)
	}
}

func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		Audio: ports.AudioFormat{
			SampleRate: cfg.Ingest.AudioSampleRate,
			Channels:   cfg.Ingest.AudioChannels,
		},
		WindowSize:      cfg.Analysis.WindowSize,
		StepSize:        cfg.Analysis.StepSize,
		EnergyThreshold: cfg.Analysis.EnergyThreshold,
		TopN:            cfg.Analysis.TopN,
		MaxClips:        cfg.Clips.MaxClips,
		TempDir:         cfg.Paths.TempDir,
		LocksDir:        cfg.LocksDir(),
	}
}

// WithParams returns an Orchestrator sharing o's stages and job store.
func (o *Orchestrator) WithParams(p Params) *Orchestrator {
	c := *o
	c.params = p
	return &c
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
