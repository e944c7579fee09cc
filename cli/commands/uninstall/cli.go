// Package uninstall provides the `uninstall` command, which tears down a landing zone in the reverse order the
// accelerator pipeline created it.
//
// Exactly one scope selector is required:
//
//	lz-teardown uninstall --full-destroy
//	lz-teardown uninstall --delete-accelerator --keep-pipeline-and-config --keep-data
//	lz-teardown uninstall --stage-name Deploy
//	lz-teardown uninstall --action-name Operations
//
// The selectors are validated before any AWS client is created.
package uninstall

import (
	"github.com/urfave/cli/v2"

	"github.com/gruntwork-io/lz-teardown/cli/flags"
	"github.com/gruntwork-io/lz-teardown/options"
)

const (
	CommandName = "uninstall"

	// Scope selectors.

	FullDestroyFlagName           = "full-destroy"
	DeleteAcceleratorFlagName     = "delete-accelerator"
	KeepPipelineAndConfigFlagName = "keep-pipeline-and-config"
	KeepDataFlagName              = "keep-data"
	KeepBootstrapsFlagName        = "keep-bootstraps"
	StageNameFlagName             = "stage-name"
	ActionNameFlagName            = "action-name"

	// Landing zone discovery.

	InstallerStackNameFlagName  = "installer-stack-name"
	PipelineNameFlagName        = "pipeline-name"
	PrefixFlagName              = "prefix"
	PartitionFlagName           = "partition"
	HomeRegionFlagName          = "home-region"
	ManagementAccountIDFlagName = "management-account-id"
	RoleNameFlagName            = "role-name"
	SkipLogSweepFlagName        = "skip-log-sweep"
	PlanFormatFlagName          = "plan-format"

	// Deletion behavior.

	RolePatternFlagName                   = "role-pattern"
	MaxRetriesFlagName                    = "max-retries"
	MaxPollsFlagName                      = "max-polls"
	PollIntervalFlagName                  = "poll-interval"
	RetrySleepFlagName                    = "retry-sleep"
	ParallelismFlagName                   = "parallelism"
	OverrideTerminationProtectionFlagName = "override-termination-protection"
	DryRunFlagName                        = "dry-run"
)

// NewFlags returns every flag of the uninstall command.
func NewFlags(opts *options.TeardownOptions, prefix flags.Prefix) []cli.Flag {
	result := NewScopeFlags(opts, prefix)
	result = append(result, NewDiscoveryFlags(opts, prefix)...)

	return append(result, NewDeletionFlags(opts, prefix)...)
}

// NewScopeFlags returns the mutually exclusive scope selectors and the keep-* flags of --delete-accelerator.
func NewScopeFlags(opts *options.TeardownOptions, prefix flags.Prefix) []cli.Flag {
	lztPrefix := prefix.Prepend(flags.LztPrefix)

	return []cli.Flag{
		&cli.BoolFlag{
			Name:        FullDestroyFlagName,
			EnvVars:     lztPrefix.EnvVars(FullDestroyFlagName),
			Destination: &opts.FullDestroy,
			Usage:       "Delete every stack, the pipeline, the configuration repository, the installer and the bootstrap stacks.",
		},
		&cli.BoolFlag{
			Name:        DeleteAcceleratorFlagName,
			EnvVars:     lztPrefix.EnvVars(DeleteAcceleratorFlagName),
			Destination: &opts.DeleteAccelerator,
			Usage:       "Delete every stack of the accelerator, optionally keeping the pipeline, the data or the bootstrap stacks.",
		},
		&cli.BoolFlag{
			Name:        KeepPipelineAndConfigFlagName,
			EnvVars:     lztPrefix.EnvVars(KeepPipelineAndConfigFlagName),
			Destination: &opts.KeepPipelineAndConfig,
			Usage:       "With --delete-accelerator, keep the pipeline stack and the configuration repository.",
		},
		&cli.BoolFlag{
			Name:        KeepDataFlagName,
			EnvVars:     lztPrefix.EnvVars(KeepDataFlagName),
			Destination: &opts.KeepData,
			Usage:       "With --delete-accelerator, keep retained buckets, log groups, keys, vaults and tables.",
		},
		&cli.BoolFlag{
			Name:        KeepBootstrapsFlagName,
			EnvVars:     lztPrefix.EnvVars(KeepBootstrapsFlagName),
			Destination: &opts.KeepBootstraps,
			Usage:       "With --delete-accelerator, keep the CDK bootstrap stacks.",
		},
		&cli.StringFlag{
			Name:        StageNameFlagName,
			EnvVars:     lztPrefix.EnvVars(StageNameFlagName),
			Destination: &opts.StageName,
			Usage:       "Delete the stacks of the named pipeline stage and of every stage after it.",
		},
		&cli.StringFlag{
			Name:        ActionNameFlagName,
			EnvVars:     lztPrefix.EnvVars(ActionNameFlagName),
			Destination: &opts.ActionName,
			Usage:       "Delete the stacks of the named pipeline action and of every action after it.",
		},
	}
}

// NewDiscoveryFlags returns the flags that locate the landing zone.
func NewDiscoveryFlags(opts *options.TeardownOptions, prefix flags.Prefix) []cli.Flag {
	lztPrefix := prefix.Prepend(flags.LztPrefix)

	return []cli.Flag{
		&cli.StringFlag{
			Name:        InstallerStackNameFlagName,
			EnvVars:     lztPrefix.EnvVars(InstallerStackNameFlagName),
			Destination: &opts.InstallerStackName,
			Value:       opts.InstallerStackName,
			Usage:       "Name of the installer stack removed by --full-destroy.",
		},
		&cli.StringFlag{
			Name:        PipelineNameFlagName,
			EnvVars:     lztPrefix.EnvVars(PipelineNameFlagName),
			Destination: &opts.PipelineName,
			Usage:       "Name of the accelerator pipeline. Defaults to <prefix>-Pipeline.",
		},
		&cli.StringFlag{
			Name:        PrefixFlagName,
			EnvVars:     lztPrefix.EnvVars(PrefixFlagName),
			Destination: &opts.Prefix,
			Value:       opts.Prefix,
			Usage:       "Prefix of every accelerator resource name.",
		},
		&cli.StringFlag{
			Name:        PartitionFlagName,
			EnvVars:     lztPrefix.EnvVars(PartitionFlagName),
			Destination: &opts.Partition,
			Usage:       "AWS partition of the role ARNs. Detected from the caller identity when empty.",
		},
		&cli.StringFlag{
			Name:        HomeRegionFlagName,
			EnvVars:     lztPrefix.EnvVars(HomeRegionFlagName),
			Destination: &opts.HomeRegion,
			Value:       opts.HomeRegion,
			Usage:       "Region the pipeline runs in.",
		},
		&cli.StringFlag{
			Name:        ManagementAccountIDFlagName,
			EnvVars:     lztPrefix.EnvVars(ManagementAccountIDFlagName),
			Destination: &opts.ManagementAccountID,
			Usage:       "Management account of the organization. Read from the bootstrap stage when empty.",
		},
		&cli.StringFlag{
			Name:        RoleNameFlagName,
			EnvVars:     lztPrefix.EnvVars(RoleNameFlagName),
			Destination: &opts.RoleName,
			Value:       opts.RoleName,
			Usage:       "Role assumed in member accounts when the global configuration does not name one.",
		},
		&cli.BoolFlag{
			Name:        SkipLogSweepFlagName,
			EnvVars:     lztPrefix.EnvVars(SkipLogSweepFlagName),
			Destination: &opts.SkipLogSweep,
			Usage:       "Do not sweep leftover log groups after the stacks are deleted.",
		},
		&cli.StringFlag{
			Name:        PlanFormatFlagName,
			EnvVars:     lztPrefix.EnvVars(PlanFormatFlagName),
			Destination: &opts.PlanFormat,
			Value:       opts.PlanFormat,
			Usage:       "Format of the plan preview: text or json.",
		},
	}
}

// NewDeletionFlags returns the flags that tune how stacks are deleted.
func NewDeletionFlags(opts *options.TeardownOptions, prefix flags.Prefix) []cli.Flag {
	lztPrefix := prefix.Prepend(flags.LztPrefix)

	return []cli.Flag{
		&cli.StringFlag{
			Name:        RolePatternFlagName,
			EnvVars:     lztPrefix.EnvVars(RolePatternFlagName),
			Destination: &opts.RolePattern,
			Usage:       "Regular expression of IAM role names whose policies are detached before their stack is deleted. Defaults to ^<prefix>-.",
		},
		&cli.IntFlag{
			Name:        MaxRetriesFlagName,
			EnvVars:     lztPrefix.EnvVars(MaxRetriesFlagName),
			Destination: &opts.MaxRetries,
			Value:       opts.MaxRetries,
			Usage:       "Number of times a failed stack delete is retried.",
		},
		&cli.IntFlag{
			Name:        MaxPollsFlagName,
			EnvVars:     lztPrefix.EnvVars(MaxPollsFlagName),
			Destination: &opts.MaxPolls,
			Value:       opts.MaxPolls,
			Usage:       "Number of status polls before a stack delete times out.",
		},
		&cli.DurationFlag{
			Name:        PollIntervalFlagName,
			EnvVars:     lztPrefix.EnvVars(PollIntervalFlagName),
			Destination: &opts.PollInterval,
			Value:       opts.PollInterval,
			Usage:       "Time between stack status polls.",
		},
		&cli.DurationFlag{
			Name:        RetrySleepFlagName,
			EnvVars:     lztPrefix.EnvVars(RetrySleepFlagName),
			Destination: &opts.RetrySleep,
			Value:       opts.RetrySleep,
			Usage:       "Time to wait before retrying a failed stack delete.",
		},
		&cli.IntFlag{
			Name:        ParallelismFlagName,
			EnvVars:     lztPrefix.EnvVars(ParallelismFlagName),
			Destination: &opts.Parallelism,
			Value:       opts.Parallelism,
			Usage:       "Number of stacks deleted at the same time within one step.",
		},
		&cli.BoolFlag{
			Name:        OverrideTerminationProtectionFlagName,
			EnvVars:     lztPrefix.EnvVars(OverrideTerminationProtectionFlagName),
			Destination: &opts.OverrideTerminationProtection,
			Usage:       "Disable termination protection instead of stopping at a protected stack.",
		},
		&cli.BoolFlag{
			Name:        DryRunFlagName,
			EnvVars:     lztPrefix.EnvVars(DryRunFlagName),
			Destination: &opts.DryRun,
			Usage:       "Print the plan and exit without deleting anything.",
		},
	}
}

// NewCommand returns the uninstall command.
func NewCommand(opts *options.TeardownOptions) *cli.Command {
	return &cli.Command{
		Name:      CommandName,
		Usage:     "Tear down the landing zone deployed by the accelerator pipeline.",
		UsageText: "lz-teardown uninstall (--full-destroy | --delete-accelerator [--keep-*] | --stage-name NAME | --action-name NAME) [options]",
		Flags:     NewFlags(opts, nil),
		Action: func(cliCtx *cli.Context) error {
			return Run(cliCtx.Context, opts.Logger, opts)
		},
	}
}
