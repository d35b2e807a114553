package logging

import (
	"context"
	"log/slog"
)

// Standard structured logging keys.
const (
	FieldComponent = "component"
	FieldJobID     = "job_id"
	FieldStage     = "stage"
	FieldClipIndex = "clip_index"
	FieldEventType = "event_type"
)

// Error is the attribute every failure is logged under.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

func NewNop() *slog.Logger {
	return slog.New(NoopHandler{})
}

// NewComponentLogger tags logger with a component name. A nil logger becomes
// a no-op logger.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(slog.String(FieldComponent, component))
}

// WithJob tags logger with the job and, when set, the stage.
func WithJob(logger *slog.Logger, jobID, stage string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	args := []any{slog.String(FieldJobID, jobID)}
	if stage != "" {
		args = append(args, slog.String(FieldStage, stage))
	}
	return logger.With(args...)
}

// NoopHandler discards all log output.
type NoopHandler struct{}

func (NoopHandler) Enabled(context.Context, slog.Level) bool { return false }

func (NoopHandler) Handle(context.Context, slog.Record) error { return nil }

func (NoopHandler) WithAttrs([]slog.Attr) slog.Handler { return NoopHandler{} }

func (NoopHandler) WithGroup(string) slog.Handler { return NoopHandler{} }
