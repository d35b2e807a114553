package artifacts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forPelevin/vodclips/internal/failure"
	"github.com/forPelevin/vodclips/internal/ports/adapters/fsstore"
	"github.com/forPelevin/vodclips/internal/types"
)

func newStore(t *testing.T) *fsstore.Store {
	t.Helper()
	s, err := fsstore.New(t.TempDir(), "vods")
	require.NoError(t, err)
	return s
}

func score(v float64) *float64 { return &v }

func seg(start, composite float64) types.AudioSegment {
	return types.AudioSegment{
		StartTime: start, EndTime: start + 30, Duration: 30,
		RMSScore: 0.1, PeakAmplitude: 0.5, CompositeScore: score(composite),
	}
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "j/input.mp4", VideoKey("j"))
	assert.Equal(t, "j/audio.wav", AudioKey("j"))
	assert.Equal(t, "j/transcript.json", TranscriptKey("j"))
	assert.Equal(t, "j/audio_analysis.json", AnalysisKey("j"))
	assert.Equal(t, "j/clips_metadata.json", ManifestKey("j"))
	assert.Equal(t, "j/clips/clip_03.mp4", ClipKey("j", 3))
	assert.Equal(t, "j/clips/clip_12.srt", SRTKey("j", 12))
	assert.Equal(t, "j/clips/", ClipsPrefix("j"))
}

func TestLoadAnalysis_Missing(t *testing.T) {
	_, err := LoadAnalysis(context.Background(), newStore(t), "j")
	require.Error(t, err)
	assert.True(t, errors.Is(err, failure.ErrMissingArtifact))
	assert.Equal(t, failure.KindMissingArtifact, failure.KindOf(err))
}

func TestLoadAnalysis_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	in := types.AnalysisResult{
		JobID: "j", TotalSegments: 5, FilteredSegments: 3, TopSegmentsCount: 2,
		TopSegments: []types.AudioSegment{seg(20, 0.9), seg(0, 0.4)},
		Parameters:  types.AnalysisParameters{WindowSize: 30, StepSize: 10, EnergyThreshold: 0.01},
	}
	require.NoError(t, SaveAnalysis(ctx, s, in))

	out, err := LoadAnalysis(ctx, s, "j")
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestLoadAnalysis_Invalid(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", "{"},
		{"count mismatch", `{"job_id":"j","total_segments":2,"filtered_segments":2,"top_segments":3,"segments":[]}`},
		{"missing score", `{"job_id":"j","total_segments":1,"filtered_segments":1,"top_segments":1,"segments":[{"start_time":0,"end_time":30,"duration":30}]}`},
		{"filtered above total", `{"job_id":"j","total_segments":1,"filtered_segments":2,"top_segments":0,"segments":[]}`},
		{"unordered", `{"job_id":"j","total_segments":2,"filtered_segments":2,"top_segments":2,"segments":[` +
			`{"start_time":0,"end_time":30,"duration":30,"composite_score":0.1},` +
			`{"start_time":10,"end_time":40,"duration":30,"composite_score":0.5}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			require.NoError(t, s.Put(ctx, AnalysisKey("j"), strings.NewReader(tt.doc)))
			_, err := LoadAnalysis(ctx, s, "j")
			require.Error(t, err)
			assert.Equal(t, failure.KindInvalidArtifact, failure.KindOf(err), err.Error())
		})
	}
}

func TestValidate_UsesJSONNames(t *testing.T) {
	err := Validate(types.AnalysisResult{TopSegments: []types.AudioSegment{{}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job_id")
	assert.Contains(t, err.Error(), "composite_score")
}

func TestManifestRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	m := types.ClipManifest{
		JobID: "j", ClipsCount: 1, TotalSizeMB: 1.5,
		GeneratedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Clips: []types.ClipMetadata{{
			ClipIndex: 0, Filename: ClipFilename(0), ObjectKey: ClipKey("j", 0),
			StartTime: 10, EndTime: 40, Duration: 30, FileSizeMB: 1.5,
		}},
	}
	require.NoError(t, SaveManifest(ctx, s, m))
	got, err := LoadManifest(ctx, s, "j")
	require.NoError(t, err)
	assert.Equal(t, m, got)

	m.Clips[0].ClipIndex = 4
	require.NoError(t, SaveManifest(ctx, s, m))
	_, err = LoadManifest(ctx, s, "j")
	assert.True(t, errors.Is(err, failure.ErrInvalidArtifact))
}

func TestTranscriptRoundTripKeepsEmptySegments(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, SaveTranscript(ctx, s, "j", types.Transcript{Text: ""}))

	rc, err := s.Get(ctx, TranscriptKey("j"))
	require.NoError(t, err)
	b := make([]byte, 256)
	n, _ := rc.Read(b)
	_ = rc.Close()
	assert.Contains(t, string(b[:n]), `"segments": []`)

	tr, err := LoadTranscript(ctx, s, "j")
	require.NoError(t, err)
	assert.Empty(t, tr.Segments)
}

func TestFetchAndPutFile(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	dir := t.TempDir()

	src := filepath.Join(dir, "src.wav")
	require.NoError(t, os.WriteFile(src, []byte("RIFF...."), 0o644))
	size, err := PutFile(ctx, s, AudioKey("j"), src)
	require.NoError(t, err)
	assert.Equal(t, int64(8), size)

	p, cleanup, err := Fetch(ctx, s, AudioKey("j"), dir, "audio-*.wav")
	require.NoError(t, err)
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "RIFF....", string(b))

	cleanup()
	_, err = os.Stat(p)
	assert.True(t, os.IsNotExist(err))
}

func TestFetchMissing(t *testing.T) {
	_, cleanup, err := Fetch(context.Background(), newStore(t), VideoKey("j"), t.TempDir(), "v-*.mp4")
	cleanup()
	assert.True(t, errors.Is(err, failure.ErrMissingArtifact))
}

func TestRequire(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	assert.True(t, errors.Is(Require(ctx, s, AudioKey("j")), failure.ErrMissingArtifact))
	require.NoError(t, s.Put(ctx, AudioKey("j"), strings.NewReader("x")))
	assert.NoError(t, Require(ctx, s, AudioKey("j")))
}
