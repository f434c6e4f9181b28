package deployer

import (
	"errors"
	"fmt"
)

// StageError reports a deployment failure outside linking, naming the stage
// in flight and the last stage that completed.
type StageError struct {
	Stage         string
	LastCompleted string
	Err           error
}

func (e *StageError) Error() string {
	last := e.LastCompleted
	if last == "" {
		last = "none"
	}
	return fmt.Sprintf("stage %s failed (last completed: %s): %v", e.Stage, last, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// stageTracker follows the stages of one run for error reporting.
type stageTracker struct {
	rt      *Runtime
	current string
	last    string
}

func (t *stageTracker) begin(stage string) {
	t.current = stage
	t.rt.Progress.Begin(stage)
}

func (t *stageTracker) done(stage string) {
	t.last = stage
	t.current = ""
	t.rt.step(stage)
}

// wrap attaches the stage context to err. Linking failures already carry
// their step and are returned unchanged.
func (t *stageTracker) wrap(err error) error {
	if err == nil || t.current == "" {
		return err
	}
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return err
	}
	return &StageError{Stage: t.current, LastCompleted: t.last, Err: err}
}
