package audiobook

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine-readable reason a run was aborted.
type ErrorKind string

const (
	ErrInvalidTopic           ErrorKind = "invalid_topic"
	ErrScriptGenerationFailed ErrorKind = "script_generation_failed"
	ErrEmptyScript            ErrorKind = "empty_script"
)

// PipelineError aborts a run. No Artifact is produced alongside it.
// Message is safe to show to callers; Err keeps the underlying cause.
type PipelineError struct {
	Kind    ErrorKind
	Stage   Stage
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// AsPipelineError unwraps err into a *PipelineError if it holds one.
func AsPipelineError(err error) (*PipelineError, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
