// Package options provides the set of options that configure a teardown run.
package options

import (
	"io"
	"os"
	"time"

	"github.com/gruntwork-io/lz-teardown/internal/awshelper"
	"github.com/gruntwork-io/lz-teardown/internal/errors"
	"github.com/gruntwork-io/lz-teardown/internal/plan"
	"github.com/gruntwork-io/lz-teardown/internal/scope"
	"github.com/gruntwork-io/lz-teardown/internal/stack"
	"github.com/gruntwork-io/lz-teardown/pkg/log"
	"github.com/gruntwork-io/lz-teardown/telemetry"
)

const (
	DefaultInstallerStackName = "AWSAccelerator-InstallerStack"
	DefaultRoleName           = "AWSControlTowerExecution"
	DefaultParallelism        = 8
	DefaultRegion             = awshelper.DefaultRegion

	defaultLogLevel = log.InfoLevel
)

// TeardownOptions represents options that configure the behavior of the teardown program.
type TeardownOptions struct {
	// Writer receives the plan preview and the run summary.
	Writer io.Writer
	// ErrWriter receives the logs.
	ErrWriter io.Writer

	Logger    log.Logger
	Telemetry *telemetry.Options

	// Filter is the validated scope, set by ValidateScope.
	Filter scope.Filter

	// Scope selectors as given on the command line.
	StageName   string
	ActionName  string
	FullDestroy bool

	DeleteAccelerator     bool
	KeepPipelineAndConfig bool
	KeepData              bool
	KeepBootstraps        bool

	InstallerStackName  string
	PipelineName        string
	Prefix              string
	Partition           string
	HomeRegion          string
	ManagementAccountID string
	RoleName            string
	RolePattern         string
	PlanFormat          string
	LogLevel            string
	LogFormat           string

	MaxRetries   int
	MaxPolls     int
	Parallelism  int
	RetrySleep   time.Duration
	PollInterval time.Duration

	OverrideTerminationProtection bool
	SkipLogSweep                  bool
	DryRun                        bool
	Debug                         bool
}

// NewTeardownOptions returns options with the default run settings, logging to stderr.
func NewTeardownOptions() *TeardownOptions {
	return NewTeardownOptionsWithWriters(os.Stdout, os.Stderr)
}

// NewTeardownOptionsWithWriters returns options with the default run settings.
func NewTeardownOptionsWithWriters(stdout, stderr io.Writer) *TeardownOptions {
	return &TeardownOptions{
		Writer:             stdout,
		ErrWriter:          stderr,
		Logger:             log.New(log.WithOutput(stderr), log.WithLevel(defaultLogLevel)),
		Telemetry:          &telemetry.Options{},
		InstallerStackName: DefaultInstallerStackName,
		Prefix:             plan.DefaultPrefix,
		HomeRegion:         DefaultRegion,
		RoleName:           DefaultRoleName,
		PlanFormat:         plan.FormatText,
		LogLevel:           defaultLogLevel.String(),
		LogFormat:          log.PrettyFormatName,
		MaxRetries:         stack.DefaultMaxRetries,
		MaxPolls:           stack.DefaultMaxPolls,
		Parallelism:        DefaultParallelism,
		RetrySleep:         stack.DefaultRetrySleep,
		PollInterval:       stack.DefaultPollInterval,
	}
}

// Clone returns a copy of the options. The logger is cloned so fields added to one copy do not leak.
func (opts *TeardownOptions) Clone() *TeardownOptions {
	newOpts := *opts

	if opts.Logger != nil {
		newOpts.Logger = opts.Logger.Clone()
	}

	if opts.Telemetry != nil {
		telemetryOpts := *opts.Telemetry
		newOpts.Telemetry = &telemetryOpts
	}

	return &newOpts
}

// Selectors returns the raw scope selectors.
func (opts *TeardownOptions) Selectors() scope.Selectors {
	return scope.Selectors{
		Stage:                 opts.StageName,
		Action:                opts.ActionName,
		FullDestroy:           opts.FullDestroy,
		DeleteAccelerator:     opts.DeleteAccelerator,
		KeepPipelineAndConfig: opts.KeepPipelineAndConfig,
		KeepData:              opts.KeepData,
		KeepBootstraps:        opts.KeepBootstraps,
	}
}

// ValidateScope checks that exactly one scope selector is set and stores the resulting filter.
// It must run before any AWS client is created.
func (opts *TeardownOptions) ValidateScope() error {
	filter, err := scope.NewFilter(opts.Selectors())
	if err != nil {
		return err
	}

	opts.Filter = filter

	return nil
}

// Validate checks the numeric run settings.
func (opts *TeardownOptions) Validate() error {
	if opts.MaxRetries < 0 {
		return errors.Errorf("max retries must not be negative, got %d", opts.MaxRetries)
	}

	if opts.MaxPolls <= 0 {
		return errors.Errorf("max polls must be positive, got %d", opts.MaxPolls)
	}

	if opts.Parallelism <= 0 {
		return errors.Errorf("parallelism must be positive, got %d", opts.Parallelism)
	}

	if opts.PlanFormat != plan.FormatText && opts.PlanFormat != plan.FormatJSON {
		return errors.Errorf("unsupported plan format %q", opts.PlanFormat)
	}

	return nil
}
