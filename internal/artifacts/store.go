// Package artifacts is the persistence contract between stages: the object
// key layout of a job and typed helpers that read and write its JSON
// documents and media files through a ports.BlobStore.
//
// Every reader maps an absent key to failure.ErrMissingArtifact and an
// undecodable or inconsistent document to failure.ErrInvalidArtifact.
package artifacts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/forPelevin/vodclips/internal/failure"
	"github.com/forPelevin/vodclips/internal/ports"
	"github.com/forPelevin/vodclips/internal/types"
)

// PutJSON stores v as indented JSON under key.
func PutJSON(ctx context.Context, s ports.BlobStore, key string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := s.Put(ctx, key, bytes.NewReader(b)); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// GetJSON decodes the object at key into v.
func GetJSON(ctx context.Context, s ports.BlobStore, key string, v any) error {
	rc, err := open(ctx, s, key)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	if err := json.NewDecoder(rc).Decode(v); err != nil {
		return failure.Wrap(failure.ErrInvalidArtifact, "", "decode", key, err)
	}
	return nil
}

// Require fails with ErrMissingArtifact when key is absent.
func Require(ctx context.Context, s ports.BlobStore, key string) error {
	ok, err := s.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("stat %s: %w", key, err)
	}
	if !ok {
		return failure.Wrap(failure.ErrMissingArtifact, "", "stat", key, nil)
	}
	return nil
}

// PutFile uploads a local file and returns its size in bytes.
func PutFile(ctx context.Context, s ports.BlobStore, key, localPath string) (int64, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if err := s.Put(ctx, key, f); err != nil {
		return 0, fmt.Errorf("put %s: %w", key, err)
	}
	return st.Size(), nil
}

// Fetch copies the object at key into a new temp file under dir. The returned
// cleanup removes the file and is safe to call on every path.
func Fetch(ctx context.Context, s ports.BlobStore, key, dir, pattern string) (string, func(), error) {
	noop := func() {}
	rc, err := open(ctx, s, key)
	if err != nil {
		return "", noop, err
	}
	defer func() { _ = rc.Close() }()

	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", noop, err
	}
	cleanup := func() { _ = os.Remove(f.Name()) }

	if _, err := io.Copy(f, rc); err != nil {
		_ = f.Close()
		cleanup()
		return "", noop, fmt.Errorf("download %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", noop, err
	}
	return f.Name(), cleanup, nil
}

func open(ctx context.Context, s ports.BlobStore, key string) (io.ReadCloser, error) {
	rc, err := s.Get(ctx, key)
	if errors.Is(err, ports.ErrNotFound) {
		return nil, failure.Wrap(failure.ErrMissingArtifact, "", "get", key, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return rc, nil
}

func LoadTranscript(ctx context.Context, s ports.BlobStore, jobID string) (types.Transcript, error) {
	var t types.Transcript
	key := TranscriptKey(jobID)
	if err := GetJSON(ctx, s, key, &t); err != nil {
		return types.Transcript{}, err
	}
	if err := Validate(t); err != nil {
		return types.Transcript{}, failure.Wrap(failure.ErrInvalidArtifact, "", "validate", key, err)
	}
	return t, nil
}

func SaveTranscript(ctx context.Context, s ports.BlobStore, jobID string, t types.Transcript) error {
	if t.Segments == nil {
		t.Segments = []types.Segment{}
	}
	return PutJSON(ctx, s, TranscriptKey(jobID), t)
}

// LoadAnalysis reads and checks J/audio_analysis.json.
func LoadAnalysis(ctx context.Context, s ports.BlobStore, jobID string) (types.AnalysisResult, error) {
	var a types.AnalysisResult
	key := AnalysisKey(jobID)
	if err := GetJSON(ctx, s, key, &a); err != nil {
		return types.AnalysisResult{}, err
	}
	if err := checkAnalysis(a); err != nil {
		return types.AnalysisResult{}, failure.Wrap(failure.ErrInvalidArtifact, "", "validate", key, err)
	}
	return a, nil
}

func SaveAnalysis(ctx context.Context, s ports.BlobStore, a types.AnalysisResult) error {
	if a.TopSegments == nil {
		a.TopSegments = []types.AudioSegment{}
	}
	return PutJSON(ctx, s, AnalysisKey(a.JobID), a)
}

// LoadManifest reads and checks J/clips_metadata.json.
func LoadManifest(ctx context.Context, s ports.BlobStore, jobID string) (types.ClipManifest, error) {
	var m types.ClipManifest
	key := ManifestKey(jobID)
	if err := GetJSON(ctx, s, key, &m); err != nil {
		return types.ClipManifest{}, err
	}
	if err := checkManifest(m); err != nil {
		return types.ClipManifest{}, failure.Wrap(failure.ErrInvalidArtifact, "", "validate", key, err)
	}
	return m, nil
}

func SaveManifest(ctx context.Context, s ports.BlobStore, m types.ClipManifest) error {
	if m.Clips == nil {
		m.Clips = []types.ClipMetadata{}
	}
	return PutJSON(ctx, s, ManifestKey(m.JobID), m)
}
