package pipeline

import "fmt"

// StageError reports the stage a job failed in. The wrapped error is the one
// the stage returned, unmodified.
type StageError struct {
	JobID string
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("job %s: stage %s: %v", e.JobID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
