// Package failure defines the error markers every stage tags its failures
// with, so the orchestrator can report the kind of a failure without parsing
// messages.
//
// Wrap keeps the underlying cause reachable through errors.Is / errors.As.
// Transcription sub-kinds are expressed by wrapping ErrTranscription together
// with ErrTimeout or ErrServiceUnavailable.
package failure

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrIngest             = errors.New("ingest failure")
	ErrTranscription      = errors.New("transcription failure")
	ErrTimeout            = errors.New("timeout")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrMissingArtifact    = errors.New("missing artifact")
	ErrInvalidArtifact    = errors.New("invalid artifact")
	ErrAnalysis           = errors.New("analysis failure")
	ErrEncode             = errors.New("encode failure")
	ErrAlignment          = errors.New("alignment failure")
	ErrJobBusy            = errors.New("job busy")
)

// Kind values reported against failed jobs.
const (
	KindIngest                   = "ingest"
	KindTranscription            = "transcription"
	KindTranscriptionTimeout     = "transcription_timeout"
	KindTranscriptionUnavailable = "transcription_unavailable"
	KindMissingArtifact          = "missing_artifact"
	KindInvalidArtifact          = "invalid_artifact"
	KindAnalysis                 = "analysis"
	KindEncode                   = "encode"
	KindAlignment                = "alignment"
	KindJobBusy                  = "job_busy"
	KindCanceled                 = "canceled"
	KindInternal                 = "internal"
)

// Wrap builds "marker: stage: operation: message: cause" while tagging the
// result with marker. A nil marker leaves the error untagged.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	switch {
	case marker == nil && err == nil:
		return errors.New(detail)
	case marker == nil:
		return fmt.Errorf("%s: %w", detail, err)
	case err == nil:
		return fmt.Errorf("%w: %s", marker, detail)
	default:
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
}

// Transcription tags err as a transcription failure of the given sub-kind.
// sub may be nil, ErrTimeout or ErrServiceUnavailable.
func Transcription(sub error, operation string, err error) error {
	if sub == nil {
		return Wrap(ErrTranscription, "transcribe", operation, "", err)
	}
	return fmt.Errorf("%w: %w", ErrTranscription, Wrap(sub, "", operation, "", err))
}

// KindOf classifies err. Missing artifacts win over the stage marker so a
// stage run without its prerequisite is reported as such.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrJobBusy):
		return KindJobBusy
	case errors.Is(err, ErrMissingArtifact):
		return KindMissingArtifact
	case errors.Is(err, ErrInvalidArtifact):
		return KindInvalidArtifact
	case errors.Is(err, ErrTranscription) && errors.Is(err, ErrTimeout):
		return KindTranscriptionTimeout
	case errors.Is(err, ErrTranscription) && errors.Is(err, ErrServiceUnavailable):
		return KindTranscriptionUnavailable
	case errors.Is(err, ErrTranscription):
		return KindTranscription
	case errors.Is(err, ErrIngest):
		return KindIngest
	case errors.Is(err, ErrAnalysis):
		return KindAnalysis
	case errors.Is(err, ErrEncode):
		return KindEncode
	case errors.Is(err, ErrAlignment):
		return KindAlignment
	case isCanceled(err):
		return KindCanceled
	default:
		return KindInternal
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "stage failure"
	}
	return strings.Join(parts, ": ")
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
