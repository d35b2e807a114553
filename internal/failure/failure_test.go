package failure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestWrap_KeepsMarkerAndCause(t *testing.T) {
	err := Wrap(ErrEncode, "synthesize", "trim clip 1", "ffmpeg exited", io.ErrUnexpectedEOF)
	if !errors.Is(err, ErrEncode) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected marker and cause to be reachable: %v", err)
	}
	want := "encode failure: synthesize: trim clip 1: ffmpeg exited: unexpected EOF"
	if err.Error() != want {
		t.Fatalf("message = %q, want %q", err.Error(), want)
	}
}

func TestWrap_NoDetail(t *testing.T) {
	err := Wrap(ErrIngest, " ", "", "", nil)
	if err.Error() != "ingest failure: stage failure" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"ingest", Wrap(ErrIngest, "ingest", "yt-dlp", "", errors.New("exit 1")), KindIngest},
		{"timeout", Transcription(ErrTimeout, "POST /transcribe", context.DeadlineExceeded), KindTranscriptionTimeout},
		{"unavailable", Transcription(ErrServiceUnavailable, "POST /transcribe", errors.New("503")), KindTranscriptionUnavailable},
		{"other transcription", Transcription(nil, "decode", errors.New("bad json")), KindTranscription},
		{"missing wins", Wrap(ErrAnalysis, "analyze", "", "", Wrap(ErrMissingArtifact, "", "get", "j/audio.wav", nil)), KindMissingArtifact},
		{"encode", fmt.Errorf("batch: %w", Wrap(ErrEncode, "synthesize", "", "", nil)), KindEncode},
		{"canceled", context.Canceled, KindCanceled},
		{"plain", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Fatalf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestTranscription_Message(t *testing.T) {
	err := Transcription(ErrTimeout, "POST /transcribe", context.DeadlineExceeded)
	if !strings.HasPrefix(err.Error(), "transcription failure: timeout: POST /transcribe") {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}
