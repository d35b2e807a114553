package ports

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/forPelevin/vodclips/internal/types"
)

// ErrNotFound is returned by BlobStore.Get for absent keys.
var ErrNotFound = errors.New("object not found")

// Downloader fetches a remote video to a local file.
type Downloader interface {
	Download(ctx context.Context, sourceURL, outPath string) error
}

type AudioFormat struct {
	SampleRate int
	Channels   int
}

type VideoTool interface {
	ExtractAudio(ctx context.Context, inVideo, outWav string, format AudioFormat) error
	TrimClip(ctx context.Context, inVideo string, start, duration time.Duration, outMP4 string) error
	ProbeDuration(ctx context.Context, inVideo string) (time.Duration, error)
}

type ASR interface {
	Transcribe(ctx context.Context, wavPath string) (types.Transcript, error)
}

// ReadinessReporter is implemented by collaborators that hold a heavyweight
// resource loaded on first use.
type ReadinessReporter interface {
	State() string
	Err() error
}

// BlobStore is a flat key/value object store. Keys use "/" separators.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
}

// Pinger is implemented by stores that can report their own health.
type Pinger interface {
	Ping(ctx context.Context) error
}
