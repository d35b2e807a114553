package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/forPelevin/vodclips/internal/ports"
)

// Encoding holds the clip encoder settings.
type Encoding struct {
	VideoCodec string
	AudioCodec string
	Preset     string
	CRF        int
}

func DefaultEncoding() Encoding {
	return Encoding{VideoCodec: "libx264", AudioCodec: "aac", Preset: "fast", CRF: 23}
}

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

type Adapter struct {
	ffmpeg  string
	ffprobe string
	enc     Encoding
	run     runFunc
}

var _ ports.VideoTool = (*Adapter)(nil)

func New(ffmpegPath, ffprobePath string, enc Encoding) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	def := DefaultEncoding()
	if enc.VideoCodec == "" {
		enc.VideoCodec = def.VideoCodec
	}
	if enc.AudioCodec == "" {
		enc.AudioCodec = def.AudioCodec
	}
	if enc.Preset == "" {
		enc.Preset = def.Preset
	}
	if enc.CRF <= 0 {
		enc.CRF = def.CRF
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath, enc: enc, run: combinedOutput}
}

func combinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// ExtractAudio writes an uncompressed 16-bit PCM WAV of the input's audio track.
func (a *Adapter) ExtractAudio(ctx context.Context, inVideo, outWav string, format ports.AudioFormat) error {
	b, err := a.run(ctx, a.ffmpeg,
		"-y",
		"-i", inVideo,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(format.SampleRate),
		"-ac", strconv.Itoa(format.Channels),
		outWav,
	)
	if err != nil {
		return fmt.Errorf("ffmpeg extract audio: %w\n%s", err, string(b))
	}
	return nil
}

// ExtractAudioMono16k prepares input for whisper.cpp, which expects 16 kHz mono.
func (a *Adapter) ExtractAudioMono16k(ctx context.Context, in, outWav string) error {
	b, err := a.run(ctx, a.ffmpeg,
		"-y",
		"-i", in,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		outWav,
	)
	if err != nil {
		return fmt.Errorf("ffmpeg resample audio: %w\n%s", err, string(b))
	}
	return nil
}

// TrimClip re-encodes [start, start+duration) of inVideo into outMP4.
func (a *Adapter) TrimClip(ctx context.Context, inVideo string, start, duration time.Duration, outMP4 string) error {
	b, err := a.run(ctx, a.ffmpeg,
		"-y",
		"-i", inVideo,
		"-ss", fmtSeconds(start),
		"-t", fmtSeconds(duration),
		"-c:v", a.enc.VideoCodec,
		"-c:a", a.enc.AudioCodec,
		"-preset", a.enc.Preset,
		"-crf", strconv.Itoa(a.enc.CRF),
		outMP4,
	)
	if err != nil {
		return fmt.Errorf("ffmpeg trim clip: %w\n%s", err, string(b))
	}
	return nil
}

func (a *Adapter) ProbeDuration(ctx context.Context, inVideo string) (time.Duration, error) {
	b, err := a.run(ctx, a.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inVideo,
	)
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w\n%s", err, string(b))
	}
	s := strings.TrimSpace(string(b))
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return time.Duration(sec * float64(time.Second)), nil
}

// Version returns the first line of "ffmpeg -version".
func (a *Adapter) Version(ctx context.Context) (string, error) {
	b, err := a.run(ctx, a.ffmpeg, "-version")
	if err != nil {
		return "", fmt.Errorf("ffmpeg -version: %w", err)
	}
	line, _, _ := strings.Cut(string(b), "\n")
	return strings.TrimSpace(line), nil
}

func fmtSeconds(d time.Duration) string {
	sec := float64(d) / float64(time.Second)
	return strconv.FormatFloat(sec, 'f', 3, 64)
}
