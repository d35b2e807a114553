package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"

	"github.com/forPelevin/vodclips/internal/ports"
	"github.com/forPelevin/vodclips/internal/ports/adapters/fsstore"
	"github.com/forPelevin/vodclips/internal/types"
)

// testStore is a real filesystem store with injectable Put failures.
type testStore struct {
	*fsstore.Store
	mu      sync.Mutex
	failPut map[string]error
	deleted []string
}

func newTestStore(t *testing.T) *testStore {
	t.Helper()
	s, err := fsstore.New(t.TempDir(), "vods")
	if err != nil {
		t.Fatalf("fsstore: %v", err)
	}
	return &testStore{Store: s, failPut: map[string]error{}}
}

func (s *testStore) Put(ctx context.Context, key string, r io.Reader) error {
	s.mu.Lock()
	err, ok := s.failPut[key]
	s.mu.Unlock()
	if ok {
		return err
	}
	return s.Store.Put(ctx, key, r)
}

func (s *testStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	s.deleted = append(s.deleted, key)
	s.mu.Unlock()
	return s.Store.Delete(ctx, key)
}

func (s *testStore) has(t *testing.T, key string) bool {
	t.Helper()
	ok, err := s.Exists(context.Background(), key)
	if err != nil {
		t.Fatalf("exists %s: %v", key, err)
	}
	return ok
}

func (s *testStore) read(t *testing.T, key string) string {
	t.Helper()
	rc, err := s.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func (s *testStore) putString(t *testing.T, key, v string) {
	t.Helper()
	if err := s.Store.Put(context.Background(), key, strings.NewReader(v)); err != nil {
		t.Fatalf("put %s: %v", key, err)
	}
}

type fakeDownloader struct {
	err  error
	urls []string
}

func (f *fakeDownloader) Download(_ context.Context, sourceURL, outPath string) error {
	f.urls = append(f.urls, sourceURL)
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(outPath, []byte("source video"), 0o644)
}

type trimCall struct {
	start, duration time.Duration
}

type fakeVideoTool struct {
	extractErr error
	failClip   int // clip index whose trim fails; -1 for none
	clipBytes  int
	trims      []trimCall
	formats    []ports.AudioFormat
}

func newFakeVideoTool() *fakeVideoTool {
	return &fakeVideoTool{failClip: -1, clipBytes: 512 * 1024}
}

func (f *fakeVideoTool) ExtractAudio(_ context.Context, _, outWav string, format ports.AudioFormat) error {
	f.formats = append(f.formats, format)
	if f.extractErr != nil {
		return f.extractErr
	}
	return os.WriteFile(outWav, []byte("RIFF audio"), 0o644)
}

func (f *fakeVideoTool) TrimClip(_ context.Context, inVideo string, start, duration time.Duration, outMP4 string) error {
	if _, err := os.Stat(inVideo); err != nil {
		return fmt.Errorf("input video not available: %w", err)
	}
	f.trims = append(f.trims, trimCall{start: start, duration: duration})
	if f.failClip >= 0 && strings.HasSuffix(outMP4, fmt.Sprintf("clip_%02d.mp4", f.failClip)) {
		return errors.New("ffmpeg trim clip: exit status 1")
	}
	return os.WriteFile(outMP4, make([]byte, f.clipBytes), 0o644)
}

func (f *fakeVideoTool) ProbeDuration(context.Context, string) (time.Duration, error) {
	return 2 * time.Hour, nil
}

type fakeASR struct {
	tr    types.Transcript
	err   error
	calls int
}

func (f *fakeASR) Transcribe(_ context.Context, wavPath string) (types.Transcript, error) {
	f.calls++
	if _, err := os.Stat(wavPath); err != nil {
		return types.Transcript{}, err
	}
	return f.tr, f.err
}

// assertEmptyDir fails when a stage left files behind in its temp root.
func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("read %s: %v", dir, err)
	}
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("temp files left behind in %s: %v", dir, names)
	}
}

// writeWAV encodes a mono 16-bit WAV whose amplitude per second comes from amp.
func writeWAV(t *testing.T, sampleRate int, seconds int, amp func(sec int) float64) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "audio.wav")
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	total := sampleRate * seconds
	i := 0
	src := beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if i >= total {
			return 0, false
		}
		n := 0
		for ; n < len(samples) && i < total; n, i = n+1, i+1 {
			v := amp(i/sampleRate) * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate))
			samples[n] = [2]float64{v, v}
		}
		return n, true
	})
	format := beep.Format{SampleRate: beep.SampleRate(sampleRate), NumChannels: 1, Precision: 2}
	if err := wav.Encode(f, src, format); err != nil {
		t.Fatalf("encode wav: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return p
}

func ptr(v float64) *float64 { return &v }

func rankedSegment(start, composite float64) types.AudioSegment {
	return types.AudioSegment{
		StartTime: start, EndTime: start + 30, Duration: 30,
		RMSScore: composite, PeakAmplitude: composite, CompositeScore: ptr(composite),
	}
}

func analysisWith(jobID string, segs ...types.AudioSegment) types.AnalysisResult {
	return types.AnalysisResult{
		JobID: jobID, TotalSegments: len(segs), FilteredSegments: len(segs),
		TopSegmentsCount: len(segs), TopSegments: segs,
		Parameters: types.AnalysisParameters{WindowSize: 30, StepSize: 10, EnergyThreshold: 0.01},
	}
}
