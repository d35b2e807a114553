// Package usecase implements the four job stages. Each stage reads its inputs
// from the blob store, works in a private temp directory that is removed on
// every exit path, and persists its outputs back to the store.
package usecase

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/forPelevin/vodclips/internal/logging"
	"github.com/forPelevin/vodclips/internal/ports"
)

// Stage names.
const (
	StageIngest     = "ingest"
	StageTranscribe = "transcribe"
	StageAnalyze    = "analyze"
	StageSynthesize = "synthesize"
)

type Deps struct {
	Store      ports.BlobStore
	Downloader ports.Downloader
	Video      ports.VideoTool
	ASR        ports.ASR
	Logger     *slog.Logger
	Now        func() time.Time
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase {
	if d.Logger == nil {
		d.Logger = logging.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return Usecase{d: d}
}

func (u Usecase) logger(jobID, stage string) *slog.Logger {
	return logging.WithJob(logging.NewComponentLogger(u.d.Logger, stage), jobID, stage)
}

// workDir creates a private directory under root (os.TempDir when empty).
// The returned cleanup removes it and everything inside.
func workDir(root, stage string) (string, func(), error) {
	if root != "" {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return "", func() {}, fmt.Errorf("create temp root: %w", err)
		}
	}
	dir, err := os.MkdirTemp(root, stage+"-*")
	if err != nil {
		return "", func() {}, fmt.Errorf("create work dir: %w", err)
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}

func seconds(f float64) time.Duration {
	return time.Duration(math.Round(f * float64(time.Second)))
}

func megabytes(n int64) float64 {
	return float64(n) / (1024 * 1024)
}
