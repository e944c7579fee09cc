package pipeline

import "fmt"

// PipelineNotFoundError is returned when the named pipeline does not exist in the account and region.
type PipelineNotFoundError struct {
	Name string
}

func (err PipelineNotFoundError) Error() string {
	return fmt.Sprintf("pipeline %q not found, check --pipeline-name and the region the teardown runs in", err.Name)
}
