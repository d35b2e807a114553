package whispercpp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/forPelevin/vodclips/internal/failure"
	"github.com/forPelevin/vodclips/internal/ports"
	"github.com/forPelevin/vodclips/internal/types"
	"github.com/forPelevin/vodclips/internal/warmup"
)

// Resampler converts arbitrary WAV input into whisper.cpp's 16 kHz mono format.
type Resampler interface {
	ExtractAudioMono16k(ctx context.Context, in, outWav string) error
}

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// DefaultTimeout bounds one transcription when New is given no timeout.
const DefaultTimeout = 1200 * time.Second

type Adapter struct {
	bin       string
	model     string
	tempDir   string
	timeout   time.Duration
	resampler Resampler
	run       runFunc
	ready     *warmup.Resource
}

var (
	_ ports.ASR               = (*Adapter)(nil)
	_ ports.ReadinessReporter = (*Adapter)(nil)
)

// New builds the adapter. timeout bounds resampling plus the whisper.cpp run;
// zero means DefaultTimeout.
func New(binPath, modelPath, tempDir string, timeout time.Duration, resampler Resampler) *Adapter {
	if binPath == "" {
		binPath = "whisper-cli"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	a := &Adapter{
		bin:       binPath,
		model:     modelPath,
		tempDir:   tempDir,
		timeout:   timeout,
		resampler: resampler,
		run:       combinedOutput,
	}
	a.ready = warmup.New("whisper.cpp model", a.checkModel)
	return a
}

func combinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

func (a *Adapter) checkModel(context.Context) error {
	if strings.TrimSpace(a.model) == "" {
		return errors.New("whisper model path is empty")
	}
	st, err := os.Stat(a.model)
	if err != nil {
		return fmt.Errorf("whisper model: %w", err)
	}
	if st.IsDir() {
		return fmt.Errorf("whisper model %s is a directory", a.model)
	}
	if _, err := exec.LookPath(a.bin); err != nil {
		return fmt.Errorf("whisper binary: %w", err)
	}
	return nil
}

func (a *Adapter) State() string { return a.ready.State() }
func (a *Adapter) Err() error { return a.ready.Err() }

// Warmup checks the model and binary ahead of the first request.
func (a *Adapter) Warmup(ctx context.Context) error { return a.ready.Ensure(ctx) }

func (a *Adapter) Transcribe(ctx context.Context, wavPath string) (types.Transcript, error) {
	if err := a.ready.Ensure(ctx); err != nil {
		return types.Transcript{}, failure.Transcription(failure.ErrServiceUnavailable, "load model", err)
	}

	workDir, err := os.MkdirTemp(a.tempDir, "whisper-*")
	if err != nil {
		return types.Transcript{}, failure.Transcription(nil, "create work dir", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	runCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	input := wavPath
	if a.resampler != nil {
		input = filepath.Join(workDir, "audio16k.wav")
		if err := a.resampler.ExtractAudioMono16k(runCtx, wavPath, input); err != nil {
			return types.Transcript{}, a.runError(ctx, runCtx, "resample", err)
		}
	}

	outPrefix := filepath.Join(workDir, "whisper")
	b, err := a.run(runCtx, a.bin,
		"-m", a.model,
		"-f", input,
		"-oj",
		"-of", outPrefix,
	)
	if err != nil {
		return types.Transcript{}, a.runError(ctx, runCtx, "whisper.cpp", fmt.Errorf("%w\n%s", err, string(b)))
	}

	jb, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return types.Transcript{}, failure.Transcription(nil, "read output", err)
	}
	tr, err := parseOutput(jb)
	if err != nil {
		return types.Transcript{}, failure.Transcription(nil, "decode output", err)
	}
	return tr, nil
}

// runError tells the adapter's own deadline apart from the caller giving up.
func (a *Adapter) runError(ctx, runCtx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return failure.Transcription(nil, op, errors.Join(ctx.Err(), err))
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return failure.Transcription(failure.ErrTimeout, op, fmt.Errorf("no result after %s: %w", a.timeout, err))
	}
	return failure.Transcription(nil, op, err)
}

type cppOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// parseOutput converts whisper.cpp's -oj document. Offsets are milliseconds.
func parseOutput(b []byte) (types.Transcript, error) {
	var out cppOutput
	if err := json.Unmarshal(b, &out); err != nil {
		return types.Transcript{}, err
	}
	tr := types.Transcript{Language: out.Result.Language, Segments: make([]types.Segment, 0, len(out.Transcription))}
	texts := make([]string, 0, len(out.Transcription))
	for _, s := range out.Transcription {
		text := strings.TrimSpace(s.Text)
		tr.Segments = append(tr.Segments, types.Segment{
			Start: float64(s.Offsets.From) / 1000,
			End:   float64(s.Offsets.To) / 1000,
			Text:  text,
		})
		if text != "" {
			texts = append(texts, text)
		}
	}
	tr.Text = strings.Join(texts, " ")
	return tr, nil
}
