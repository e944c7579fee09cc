package scope

import (
	"fmt"
	"strings"
)

// ScopeConflictError is returned when zero or several scope selectors are given.
type ScopeConflictError struct {
	Reason    string
	Selectors []string
}

func (err ScopeConflictError) Error() string {
	if err.Reason != "" {
		return err.Reason
	}

	if len(err.Selectors) == 0 {
		return "one of --full-destroy, --delete-accelerator, --stage-name or --action-name is required"
	}

	return fmt.Sprintf("only one scope selector may be given, got %s", strings.Join(err.Selectors, ", "))
}

// InvalidStageNameError is returned when the stage to start from is not in the pipeline.
type InvalidStageNameError struct {
	Name  string
	Valid []string
}

func (err InvalidStageNameError) Error() string {
	return fmt.Sprintf("stage %q not found in pipeline, valid stages: %s", err.Name, strings.Join(err.Valid, ", "))
}

// InvalidActionNameError is returned when the action to start from is not in the pipeline.
type InvalidActionNameError struct {
	Name  string
	Valid []string
}

func (err InvalidActionNameError) Error() string {
	return fmt.Sprintf("action %q not found in pipeline, valid actions: %s", err.Name, strings.Join(err.Valid, ", "))
}
