package usecase

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/forPelevin/vodclips/internal/artifacts"
	"github.com/forPelevin/vodclips/internal/failure"
	"github.com/forPelevin/vodclips/internal/ports"
	"github.com/forPelevin/vodclips/internal/types"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	store *testStore
	dl    *fakeDownloader
	video *fakeVideoTool
	asr   *fakeASR
	tmp   string
	uc    Usecase
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store: newTestStore(t),
		dl:    &fakeDownloader{},
		video: newFakeVideoTool(),
		asr:   &fakeASR{},
		tmp:   filepath.Join(t.TempDir(), "work"),
	}
	h.uc = New(Deps{
		Store:      h.store,
		Downloader: h.dl,
		Video:      h.video,
		ASR:        h.asr,
		Now:        func() time.Time { return fixedNow },
	})
	return h
}

func TestIngest_PersistsVideoAndAudio(t *testing.T) {
	h := newHarness(t)
	res, err := h.uc.Ingest(context.Background(), IngestInput{
		JobID:     "job1",
		SourceURL: "https://www.twitch.tv/videos/123",
		Audio:     ports.AudioFormat{SampleRate: 44100, Channels: 2},
		TempDir:   h.tmp,
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.VideoKey != "job1/input.mp4" || res.AudioKey != "job1/audio.wav" {
		t.Fatalf("unexpected keys: %+v", res)
	}
	if res.SourceDuration != 2*time.Hour {
		t.Fatalf("duration = %v", res.SourceDuration)
	}
	if got := h.store.read(t, res.VideoKey); got != "source video" {
		t.Fatalf("video = %q", got)
	}
	if got := h.store.read(t, res.AudioKey); got != "RIFF audio" {
		t.Fatalf("audio = %q", got)
	}
	if h.video.formats[0] != (ports.AudioFormat{SampleRate: 44100, Channels: 2}) {
		t.Fatalf("audio format = %+v", h.video.formats[0])
	}
	assertEmptyDir(t, h.tmp)
}

func TestIngest_DownloadFailure(t *testing.T) {
	h := newHarness(t)
	h.dl.err = errors.New("yt-dlp download failed: exit status 1")
	_, err := h.uc.Ingest(context.Background(), IngestInput{JobID: "job1", SourceURL: "https://x", TempDir: h.tmp})
	if failure.KindOf(err) != failure.KindIngest {
		t.Fatalf("kind = %s, err = %v", failure.KindOf(err), err)
	}
	if h.store.has(t, "job1/input.mp4") {
		t.Fatal("video persisted despite failed download")
	}
	assertEmptyDir(t, h.tmp)
}

func TestIngest_AudioPersistFailureRemovesVideo(t *testing.T) {
	h := newHarness(t)
	h.store.failPut["job1/audio.wav"] = errors.New("disk full")

	_, err := h.uc.Ingest(context.Background(), IngestInput{JobID: "job1", SourceURL: "https://x", TempDir: h.tmp})
	if !errors.Is(err, failure.ErrIngest) {
		t.Fatalf("expected ingest failure, got %v", err)
	}
	if h.store.has(t, "job1/input.mp4") {
		t.Fatal("video left behind after partial ingest")
	}
	assertEmptyDir(t, h.tmp)
}

func TestTranscribe_MissingAudio(t *testing.T) {
	h := newHarness(t)
	_, err := h.uc.Transcribe(context.Background(), TranscribeInput{JobID: "job1", TempDir: h.tmp})
	if failure.KindOf(err) != failure.KindMissingArtifact {
		t.Fatalf("kind = %s, err = %v", failure.KindOf(err), err)
	}
	if h.asr.calls != 0 {
		t.Fatal("transcriber called without audio")
	}
}

func TestTranscribe_PersistsTranscript(t *testing.T) {
	h := newHarness(t)
	h.store.putString(t, artifacts.AudioKey("job1"), "RIFF audio")
	h.asr.tr = types.Transcript{
		Text:     "gg wp",
		Segments: []types.Segment{{Start: 1, End: 2, Text: "gg"}, {Start: 2, End: 3, Text: "wp"}},
	}

	res, err := h.uc.Transcribe(context.Background(), TranscribeInput{JobID: "job1", TempDir: h.tmp})
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if res.Key != "job1/transcript.json" || res.Segments != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	tr, err := artifacts.LoadTranscript(context.Background(), h.store, "job1")
	if err != nil {
		t.Fatal(err)
	}
	if tr.Text != "gg wp" || len(tr.Segments) != 2 {
		t.Fatalf("stored transcript = %+v", tr)
	}
	assertEmptyDir(t, h.tmp)
}

func TestTranscribe_FailureKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"plain error is tagged", errors.New("boom"), failure.KindTranscription},
		{"timeout kept", failure.Transcription(failure.ErrTimeout, "POST /transcribe", context.DeadlineExceeded), failure.KindTranscriptionTimeout},
		{"unavailable kept", failure.Transcription(failure.ErrServiceUnavailable, "POST /transcribe", errors.New("refused")), failure.KindTranscriptionUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.store.putString(t, artifacts.AudioKey("job1"), "RIFF audio")
			h.asr.err = tt.err

			_, err := h.uc.Transcribe(context.Background(), TranscribeInput{JobID: "job1", TempDir: h.tmp})
			if got := failure.KindOf(err); got != tt.want {
				t.Fatalf("kind = %s, want %s (err %v)", got, tt.want, err)
			}
			if h.store.has(t, "job1/transcript.json") {
				t.Fatal("transcript persisted after failure")
			}
			assertEmptyDir(t, h.tmp)
		})
	}
}

func TestAnalyze_RanksLoudWindows(t *testing.T) {
	h := newHarness(t)
	// quiet for the first 30 seconds, loud for the last 30
	wavPath := writeWAV(t, 8000, 60, func(sec int) float64 {
		if sec < 30 {
			return 0.001
		}
		return 0.5
	})
	if _, err := artifacts.PutFile(context.Background(), h.store, artifacts.AudioKey("job1"), wavPath); err != nil {
		t.Fatal(err)
	}

	res, err := h.uc.Analyze(context.Background(), AnalyzeInput{
		JobID: "job1", TempDir: h.tmp,
		WindowSize: 30, StepSize: 10, EnergyThreshold: 0.01, TopN: 2,
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if res.TotalSegments != 4 || res.FilteredSegments != 3 || res.TopSegmentsCount != 2 {
		t.Fatalf("counts = %d/%d/%d", res.TotalSegments, res.FilteredSegments, res.TopSegmentsCount)
	}
	if res.TopSegments[0].StartTime != 30 || res.TopSegments[1].StartTime != 20 {
		t.Fatalf("unexpected order: %v, %v", res.TopSegments[0].StartTime, res.TopSegments[1].StartTime)
	}
	for _, s := range res.TopSegments {
		if s.CompositeScore == nil || s.EndTime != s.StartTime+30 || s.Duration != 30 {
			t.Fatalf("bad segment: %+v", s)
		}
	}
	if c := res.TopSegments[0].SpectralCentroid; math.Abs(c-440) > 50 {
		t.Fatalf("centroid %v far from the 440 Hz tone", c)
	}

	stored, err := artifacts.LoadAnalysis(context.Background(), h.store, "job1")
	if err != nil {
		t.Fatalf("load stored analysis: %v", err)
	}
	if stored.TopSegmentsCount != 2 || stored.Parameters.WindowSize != 30 {
		t.Fatalf("stored analysis = %+v", stored)
	}
	assertEmptyDir(t, h.tmp)
}

func TestAnalyze_ShortAudioYieldsEmptyResult(t *testing.T) {
	h := newHarness(t)
	wavPath := writeWAV(t, 8000, 5, func(int) float64 { return 0.5 })
	if _, err := artifacts.PutFile(context.Background(), h.store, artifacts.AudioKey("job1"), wavPath); err != nil {
		t.Fatal(err)
	}
	res, err := h.uc.Analyze(context.Background(), AnalyzeInput{
		JobID: "job1", TempDir: h.tmp, WindowSize: 30, StepSize: 10, EnergyThreshold: 0.01, TopN: 20,
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if res.TotalSegments != 0 || len(res.TopSegments) != 0 || res.TopSegments == nil {
		t.Fatalf("expected empty non-nil result, got %+v", res)
	}
}

func TestAnalyze_MissingAudio(t *testing.T) {
	h := newHarness(t)
	_, err := h.uc.Analyze(context.Background(), AnalyzeInput{
		JobID: "job1", TempDir: h.tmp, WindowSize: 30, StepSize: 10, TopN: 20,
	})
	if failure.KindOf(err) != failure.KindMissingArtifact {
		t.Fatalf("kind = %s, err = %v", failure.KindOf(err), err)
	}
}

func TestAnalyze_InvalidWindow(t *testing.T) {
	h := newHarness(t)
	_, err := h.uc.Analyze(context.Background(), AnalyzeInput{JobID: "job1", WindowSize: 0, StepSize: 10})
	if failure.KindOf(err) != failure.KindAnalysis {
		t.Fatalf("kind = %s, err = %v", failure.KindOf(err), err)
	}
}

func seedSynthesis(t *testing.T, h *harness, segs ...types.AudioSegment) {
	t.Helper()
	h.store.putString(t, artifacts.VideoKey("job1"), "source video")
	if err := artifacts.SaveAnalysis(context.Background(), h.store, analysisWith("job1", segs...)); err != nil {
		t.Fatal(err)
	}
	if err := artifacts.SaveTranscript(context.Background(), h.store, "job1", types.Transcript{
		Segments: []types.Segment{
			{Start: 5, End: 9, Text: "before everything"},
			{Start: 65, End: 75, Text: "inside the top clip"},
			{Start: 125, End: 135, Text: "inside the second clip"},
		},
	}); err != nil {
		t.Fatal(err)
	}
}

func TestSynthesize_TruncatesToMaxClips(t *testing.T) {
	h := newHarness(t)
	seedSynthesis(t, h,
		rankedSegment(60, 0.9),
		rankedSegment(120, 0.8),
		rankedSegment(0, 0.7),
		rankedSegment(200, 0.6),
		rankedSegment(300, 0.5),
	)

	m, err := h.uc.Synthesize(context.Background(), SynthesizeInput{JobID: "job1", TempDir: h.tmp, MaxClips: 2})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if m.ClipsCount != 2 || len(m.Clips) != 2 {
		t.Fatalf("clips = %d", len(m.Clips))
	}
	for i, want := range []float64{60, 120} {
		c := m.Clips[i]
		if c.ClipIndex != i || c.StartTime != want || c.ObjectKey != artifacts.ClipKey("job1", i) {
			t.Fatalf("clip %d = %+v", i, c)
		}
		if !c.HasSRT || c.SRTObjectKey != artifacts.SRTKey("job1", i) {
			t.Fatalf("clip %d missing subtitles: %+v", i, c)
		}
		if c.FileSizeMB != 0.5 {
			t.Fatalf("clip %d size = %v", i, c.FileSizeMB)
		}
	}
	if m.Clips[0].CompositeScore != 0.9 || m.Clips[1].CompositeScore != 0.8 {
		t.Fatalf("scores not carried over: %+v", m.Clips)
	}
	if m.TotalSizeMB != 1.0 || !m.GeneratedAt.Equal(fixedNow) {
		t.Fatalf("manifest summary = %v %v", m.TotalSizeMB, m.GeneratedAt)
	}
	if h.video.trims[0] != (trimCall{start: 60 * time.Second, duration: 30 * time.Second}) {
		t.Fatalf("trim call = %+v", h.video.trims[0])
	}

	srt := h.store.read(t, artifacts.SRTKey("job1", 0))
	want := "1\n00:00:05,000 --> 00:00:15,000\ninside the top clip\n\n"
	if srt != want {
		t.Fatalf("srt = %q, want %q", srt, want)
	}

	stored, err := artifacts.LoadManifest(context.Background(), h.store, "job1")
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	if !stored.Clips[1].HasSRT || stored.ClipsCount != 2 {
		t.Fatalf("stored manifest lacks subtitle flags: %+v", stored)
	}
	assertEmptyDir(t, h.tmp)
}

func TestSynthesize_EncodeFailureAbortsBatch(t *testing.T) {
	h := newHarness(t)
	seedSynthesis(t, h, rankedSegment(60, 0.9), rankedSegment(120, 0.8), rankedSegment(0, 0.7))
	h.video.failClip = 1

	_, err := h.uc.Synthesize(context.Background(), SynthesizeInput{JobID: "job1", TempDir: h.tmp, MaxClips: 10})
	if failure.KindOf(err) != failure.KindEncode {
		t.Fatalf("kind = %s, err = %v", failure.KindOf(err), err)
	}
	if len(h.video.trims) != 2 {
		t.Fatalf("expected batch to stop at clip 1, got %d trims", len(h.video.trims))
	}
	if h.store.has(t, artifacts.ManifestKey("job1")) {
		t.Fatal("manifest written for an aborted batch")
	}
	keys, err := h.store.List(context.Background(), "job1/clips/")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 0 {
		t.Fatalf("orphan clips left: %v", keys)
	}
	assertEmptyDir(t, h.tmp)
}

func listClips(t *testing.T, h *harness, jobID string) []string {
	t.Helper()
	keys, err := h.store.List(context.Background(), artifacts.ClipsPrefix(jobID))
	if err != nil {
		t.Fatal(err)
	}
	return keys
}

func TestSynthesize_FailedRerunDropsPreviousOutputs(t *testing.T) {
	h := newHarness(t)
	seedSynthesis(t, h, rankedSegment(60, 0.9), rankedSegment(120, 0.8), rankedSegment(0, 0.7))
	in := SynthesizeInput{JobID: "job1", TempDir: h.tmp, MaxClips: 10}

	if _, err := h.uc.Synthesize(context.Background(), in); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if got := listClips(t, h, "job1"); len(got) != 6 {
		t.Fatalf("first run objects = %v", got)
	}

	h.video.failClip = 1
	_, err := h.uc.Synthesize(context.Background(), in)
	if failure.KindOf(err) != failure.KindEncode {
		t.Fatalf("kind = %s, err = %v", failure.KindOf(err), err)
	}
	if h.store.has(t, artifacts.ManifestKey("job1")) {
		t.Fatal("manifest of the previous run survived a failed batch")
	}
	if got := listClips(t, h, "job1"); len(got) != 0 {
		t.Fatalf("clip objects left after failed batch: %v", got)
	}
	assertEmptyDir(t, h.tmp)
}

func TestSynthesize_SmallerRerunRemovesStaleClips(t *testing.T) {
	h := newHarness(t)
	seedSynthesis(t, h, rankedSegment(60, 0.9), rankedSegment(120, 0.8), rankedSegment(0, 0.7))

	if _, err := h.uc.Synthesize(context.Background(), SynthesizeInput{JobID: "job1", TempDir: h.tmp, MaxClips: 3}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	m, err := h.uc.Synthesize(context.Background(), SynthesizeInput{JobID: "job1", TempDir: h.tmp, MaxClips: 1})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if m.ClipsCount != 1 {
		t.Fatalf("clips = %d", m.ClipsCount)
	}
	got := listClips(t, h, "job1")
	want := []string{artifacts.ClipKey("job1", 0), artifacts.SRTKey("job1", 0)}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("objects = %v, want %v", got, want)
	}
}

func TestSynthesize_ManifestFailureRemovesClips(t *testing.T) {
	h := newHarness(t)
	seedSynthesis(t, h, rankedSegment(60, 0.9), rankedSegment(120, 0.8))
	h.store.failPut[artifacts.ManifestKey("job1")] = errors.New("bucket unavailable")

	_, err := h.uc.Synthesize(context.Background(), SynthesizeInput{JobID: "job1", TempDir: h.tmp, MaxClips: 10})
	if err == nil || !strings.Contains(err.Error(), "persist manifest") {
		t.Fatalf("err = %v", err)
	}
	if h.store.has(t, artifacts.ManifestKey("job1")) {
		t.Fatal("manifest written")
	}
	if got := listClips(t, h, "job1"); len(got) != 0 {
		t.Fatalf("clip objects left: %v", got)
	}
}

func TestSynthesize_AlignmentFailureIsPerClip(t *testing.T) {
	h := newHarness(t)
	seedSynthesis(t, h, rankedSegment(60, 0.9), rankedSegment(120, 0.8), rankedSegment(0, 0.7))
	h.store.failPut[artifacts.SRTKey("job1", 2)] = errors.New("bucket unavailable")

	m, err := h.uc.Synthesize(context.Background(), SynthesizeInput{JobID: "job1", TempDir: h.tmp, MaxClips: 10})
	if err != nil {
		t.Fatalf("alignment failure must not abort synthesis: %v", err)
	}
	if m.ClipsCount != 3 {
		t.Fatalf("clips = %d", m.ClipsCount)
	}
	if !m.Clips[0].HasSRT || !m.Clips[1].HasSRT || m.Clips[2].HasSRT || m.Clips[2].SRTObjectKey != "" {
		t.Fatalf("unexpected subtitle flags: %+v", m.Clips)
	}
}

func TestSynthesize_EmptySubtitleTrackStillCounts(t *testing.T) {
	h := newHarness(t)
	seedSynthesis(t, h, rankedSegment(400, 0.9))

	m, err := h.uc.Synthesize(context.Background(), SynthesizeInput{JobID: "job1", TempDir: h.tmp, MaxClips: 10})
	if err != nil {
		t.Fatal(err)
	}
	if !m.Clips[0].HasSRT {
		t.Fatal("empty subtitle track should still be persisted")
	}
	if got := h.store.read(t, artifacts.SRTKey("job1", 0)); got != "" {
		t.Fatalf("srt = %q", got)
	}
}

func TestSynthesize_MissingTranscriptLeavesNoSubtitles(t *testing.T) {
	h := newHarness(t)
	seedSynthesis(t, h, rankedSegment(60, 0.9), rankedSegment(120, 0.8))
	if err := h.store.Store.Delete(context.Background(), artifacts.TranscriptKey("job1")); err != nil {
		t.Fatal(err)
	}

	m, err := h.uc.Synthesize(context.Background(), SynthesizeInput{JobID: "job1", TempDir: h.tmp, MaxClips: 10})
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range m.Clips {
		if c.HasSRT {
			t.Fatalf("clip %d has subtitles without a transcript", c.ClipIndex)
		}
	}
}

func TestSynthesize_MissingPrerequisites(t *testing.T) {
	t.Run("analysis", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.uc.Synthesize(context.Background(), SynthesizeInput{JobID: "job1", MaxClips: 10})
		if failure.KindOf(err) != failure.KindMissingArtifact {
			t.Fatalf("kind = %s, err = %v", failure.KindOf(err), err)
		}
	})
	t.Run("video", func(t *testing.T) {
		h := newHarness(t)
		if err := artifacts.SaveAnalysis(context.Background(), h.store, analysisWith("job1", rankedSegment(0, 0.5))); err != nil {
			t.Fatal(err)
		}
		_, err := h.uc.Synthesize(context.Background(), SynthesizeInput{JobID: "job1", MaxClips: 10})
		if failure.KindOf(err) != failure.KindMissingArtifact {
			t.Fatalf("kind = %s, err = %v", failure.KindOf(err), err)
		}
		if !strings.Contains(err.Error(), "job1/input.mp4") {
			t.Fatalf("error should name the missing key: %v", err)
		}
	})
	t.Run("invalid analysis", func(t *testing.T) {
		h := newHarness(t)
		h.store.putString(t, artifacts.AnalysisKey("job1"), `{"job_id":"job1"`)
		_, err := h.uc.Synthesize(context.Background(), SynthesizeInput{JobID: "job1", MaxClips: 10})
		if failure.KindOf(err) != failure.KindInvalidArtifact {
			t.Fatalf("kind = %s, err = %v", failure.KindOf(err), err)
		}
	})
}

func TestWorkDirCleanup(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "tmp")
	dir, cleanup, err := workDir(root, "ingest")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(filepath.Base(dir), "ingest-") {
		t.Fatalf("dir = %s", dir)
	}
	if err := os.WriteFile(filepath.Join(dir, "x"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	cleanup()
	assertEmptyDir(t, root)
}
