package jobs

import (
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of a job record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var (
	ErrNotFound          = errors.New("job not found")
	ErrInvalidTransition = errors.New("invalid job transition")
)

// Job is the persisted record of one pipeline run.
type Job struct {
	ID           string    `json:"job_id"`
	SourceURL    string    `json:"source_url,omitempty"`
	CurrentStage string    `json:"current_stage"`
	Status       Status    `json:"status"`
	FailedStage  string    `json:"failed_stage,omitempty"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error,omitempty"`
	ClipsCount   int       `json:"clips_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CanTransition reports whether a record in status from may move to to.
// Any record may start running again (a stale running record is left behind
// by a crashed process); only a running record may finish.
func CanTransition(from, to Status) bool {
	switch to {
	case StatusRunning:
		return true
	case StatusPending, StatusCompleted, StatusFailed:
		return from == StatusRunning
	default:
		return false
	}
}

func checkTransition(id string, from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, id, from, to)
	}
	return nil
}
