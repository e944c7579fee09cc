package stack

import (
	"fmt"
)

// TerminationProtectedError is returned when a stack has termination protection enabled and the run may not override it.
type TerminationProtectedError struct {
	StackName string
	AccountID string
	Region    string
}

func (err TerminationProtectedError) Error() string {
	return fmt.Sprintf("stack %s in account %s region %s has termination protection enabled; re-run with --override-termination-protection to delete it", err.StackName, err.AccountID, err.Region)
}

// DeleteRetriesExceededError is returned when a stack is still in DELETE_FAILED after every retry.
type DeleteRetriesExceededError struct {
	Err       error
	StackName string
	AccountID string
	Region    string
	Attempts  int
}

func (err DeleteRetriesExceededError) Error() string {
	return fmt.Sprintf("stack %s in account %s region %s could not be deleted after %d attempts: %v", err.StackName, err.AccountID, err.Region, err.Attempts, err.Err)
}

func (err DeleteRetriesExceededError) Unwrap() error {
	return err.Err
}

// DeleteTimeoutError is returned when a stack stays in DELETE_IN_PROGRESS for longer than the poll budget.
type DeleteTimeoutError struct {
	StackName string
	AccountID string
	Region    string
	Polls     int
}

func (err DeleteTimeoutError) Error() string {
	return fmt.Sprintf("timed out after %d polls waiting for stack %s in account %s region %s to be deleted", err.Polls, err.StackName, err.AccountID, err.Region)
}

// deleteFailedError is the retriable outcome of one delete attempt.
type deleteFailedError struct {
	StackName string
	Reason    string
}

func (err deleteFailedError) Error() string {
	return fmt.Sprintf("stack %s is DELETE_FAILED: %s", err.StackName, err.Reason)
}
