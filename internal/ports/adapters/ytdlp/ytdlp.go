package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/forPelevin/vodclips/internal/ports"
)

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

type Adapter struct {
	bin    string
	format string
	run    runFunc
}

var _ ports.Downloader = (*Adapter)(nil)

// New uses format "best" (a single pre-muxed file) when format is empty.
func New(binPath, format string) *Adapter {
	if binPath == "" {
		binPath = "yt-dlp"
	}
	if format == "" {
		format = "best"
	}
	return &Adapter{bin: binPath, format: format, run: combinedOutput}
}

func combinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

func (a *Adapter) Download(ctx context.Context, sourceURL, outPath string) error {
	if strings.TrimSpace(sourceURL) == "" {
		return errors.New("yt-dlp: empty source url")
	}
	b, err := a.run(ctx, a.bin,
		"--no-playlist",
		"--no-progress",
		"-f", a.format,
		"-o", outPath,
		sourceURL,
	)
	if err != nil {
		return fmt.Errorf("yt-dlp download failed: %w\n%s", err, lastLines(string(b), 20))
	}
	st, err := os.Stat(outPath)
	if err != nil {
		return fmt.Errorf("yt-dlp produced no file at %s: %w", outPath, err)
	}
	if st.Size() == 0 {
		return fmt.Errorf("yt-dlp produced an empty file at %s", outPath)
	}
	return nil
}

// Version runs "yt-dlp --version".
func (a *Adapter) Version(ctx context.Context) (string, error) {
	b, err := a.run(ctx, a.bin, "--version")
	if err != nil {
		return "", fmt.Errorf("yt-dlp --version: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
