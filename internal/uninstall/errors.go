package uninstall

import (
	"fmt"
)

// StepFailedError is returned when a deletion step ends with errors; no later step is started.
type StepFailedError struct {
	Err        error
	StageOrder int
	Order      int
	Skipped    int
}

func (err StepFailedError) Error() string {
	msg := fmt.Sprintf("deletion step (%d,%d) failed", err.StageOrder, err.Order)

	if err.Skipped > 0 {
		msg += fmt.Sprintf(", %d stacks were not attempted", err.Skipped)
	}

	return msg + ": " + err.Err.Error()
}

func (err StepFailedError) Unwrap() error {
	return err.Err
}
