// Package scope narrows the stack catalog down to what a teardown run deletes.
//
// Filtering never reorders: it removes leading entries (everything created before the selected
// stage or action) or drops the bootstrap category as a whole.
package scope

import (
	"strings"

	"github.com/gruntwork-io/lz-teardown/internal/errors"
	"github.com/gruntwork-io/lz-teardown/internal/pipeline"
)

// Mode is the scope selector a run was started with.
type Mode int

const (
	ModeNone Mode = iota
	ModeFullDestroy
	ModeDeleteAccelerator
	ModeFromStage
	ModeFromAction
)

func (mode Mode) String() string {
	switch mode {
	case ModeFullDestroy:
		return "full-destroy"
	case ModeDeleteAccelerator:
		return "delete-accelerator"
	case ModeFromStage:
		return "stage"
	case ModeFromAction:
		return "action"
	case ModeNone:
	}

	return "none"
}

// Filter is a validated scope.
type Filter struct {
	Stage                 string
	Action                string
	Mode                  Mode
	KeepPipelineAndConfig bool
	KeepData              bool
	KeepBootstraps        bool
}

// Selectors are the raw scope flags given by the operator.
type Selectors struct {
	Stage                 string
	Action                string
	FullDestroy           bool
	DeleteAccelerator     bool
	KeepPipelineAndConfig bool
	KeepData              bool
	KeepBootstraps        bool
}

// NewFilter validates that exactly one selector is set and that keep flags only accompany delete-accelerator.
func NewFilter(sel Selectors) (Filter, error) {
	var active []string

	if sel.FullDestroy {
		active = append(active, "--full-destroy")
	}

	if sel.DeleteAccelerator {
		active = append(active, "--delete-accelerator")
	}

	if sel.Stage != "" {
		active = append(active, "--stage-name")
	}

	if sel.Action != "" {
		active = append(active, "--action-name")
	}

	if len(active) != 1 {
		return Filter{}, errors.New(ScopeConflictError{Selectors: active})
	}

	if !sel.DeleteAccelerator && (sel.KeepPipelineAndConfig || sel.KeepData || sel.KeepBootstraps) {
		return Filter{}, errors.New(ScopeConflictError{
			Selectors: active,
			Reason:    "--keep-pipeline-and-config, --keep-data and --keep-bootstraps require --delete-accelerator",
		})
	}

	filter := Filter{
		Stage:                 sel.Stage,
		Action:                sel.Action,
		KeepPipelineAndConfig: sel.KeepPipelineAndConfig,
		KeepData:              sel.KeepData,
		KeepBootstraps:        sel.KeepBootstraps,
	}

	switch {
	case sel.FullDestroy:
		filter.Mode = ModeFullDestroy
	case sel.DeleteAccelerator:
		filter.Mode = ModeDeleteAccelerator
	case sel.Stage != "":
		filter.Mode = ModeFromStage
	default:
		filter.Mode = ModeFromAction
	}

	return filter, nil
}

// Partial returns true if the run deletes only the tail of the catalog.
func (filter Filter) Partial() bool {
	return filter.Mode == ModeFromStage || filter.Mode == ModeFromAction
}

// DeletesPipeline returns true if the pipeline stack is torn down after the landing zone stacks.
func (filter Filter) DeletesPipeline() bool {
	return filter.Mode == ModeFullDestroy || (filter.Mode == ModeDeleteAccelerator && !filter.KeepPipelineAndConfig)
}

// DeletesConfigRepository returns true if the configuration repository is removed.
func (filter Filter) DeletesConfigRepository() bool {
	return filter.Mode == ModeFullDestroy
}

// DeletesInstaller returns true if the one-time installer stack is removed.
func (filter Filter) DeletesInstaller() bool {
	return filter.Mode == ModeFullDestroy
}

// ReapsData returns true if retained data (buckets, logs, keys, vaults, tables) is removed.
func (filter Filter) ReapsData() bool {
	return !filter.KeepData
}

// Sweeps returns true if leftover log groups are swept across every account and region.
func (filter Filter) Sweeps() bool {
	return !filter.Partial() && !filter.KeepData
}

// Resolve narrows actions, kept in creation order, to the ones the filter selects.
func Resolve(actions []pipeline.StageAction, filter Filter) ([]pipeline.StageAction, error) {
	start := 0

	switch filter.Mode {
	case ModeFromStage:
		start = indexOf(actions, func(action pipeline.StageAction) bool {
			return strings.EqualFold(action.StageName, filter.Stage)
		})
		if start < 0 {
			return nil, errors.New(InvalidStageNameError{Name: filter.Stage, Valid: stageNames(actions)})
		}
	case ModeFromAction:
		start = indexOf(actions, func(action pipeline.StageAction) bool {
			return strings.EqualFold(action.Name, filter.Action) || strings.EqualFold(action.Stage, filter.Action)
		})
		if start < 0 {
			return nil, errors.New(InvalidActionNameError{Name: filter.Action, Valid: actionNames(actions)})
		}
	case ModeFullDestroy, ModeDeleteAccelerator:
	case ModeNone:
		return nil, errors.New(ScopeConflictError{})
	}

	resolved := make([]pipeline.StageAction, 0, len(actions)-start)

	for _, action := range actions[start:] {
		if action.Bootstrap && filter.KeepBootstraps {
			continue
		}

		resolved = append(resolved, action)
	}

	return resolved, nil
}

func indexOf(actions []pipeline.StageAction, match func(pipeline.StageAction) bool) int {
	for i, action := range actions {
		if match(action) {
			return i
		}
	}

	return -1
}

func stageNames(actions []pipeline.StageAction) []string {
	var names []string

	for i, action := range actions {
		if i == 0 || actions[i-1].StageName != action.StageName {
			names = append(names, action.StageName)
		}
	}

	return names
}

func actionNames(actions []pipeline.StageAction) []string {
	names := make([]string, 0, len(actions))

	for _, action := range actions {
		names = append(names, action.Name)
	}

	return names
}
