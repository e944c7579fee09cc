package uninstall

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/gruntwork-io/lz-teardown/internal/awshelper"
	"github.com/gruntwork-io/lz-teardown/internal/errors"
	"github.com/gruntwork-io/lz-teardown/internal/uninstall"
	"github.com/gruntwork-io/lz-teardown/options"
	"github.com/gruntwork-io/lz-teardown/pkg/env"
	"github.com/gruntwork-io/lz-teardown/pkg/log"
)

// UsageExitCode is returned for invalid flags, before anything is read from AWS.
const UsageExitCode = 2

// Validate checks the scope selectors and the run settings.
func Validate(opts *options.TeardownOptions) error {
	if err := opts.ValidateScope(); err != nil {
		return errors.ErrorWithExitCode{Err: err, ExitCode: UsageExitCode}
	}

	if err := opts.Validate(); err != nil {
		return errors.ErrorWithExitCode{Err: err, ExitCode: UsageExitCode}
	}

	return nil
}

// Run validates opts, loads the AWS config of the caller and runs the teardown.
func Run(ctx context.Context, l log.Logger, opts *options.TeardownOptions) error {
	if err := Validate(opts); err != nil {
		return err
	}

	cfg, err := awshelper.NewAWSConfigBuilder().
		WithEnv(env.ParseEnvs(os.Environ())).
		WithRegion(opts.HomeRegion).
		Build(ctx, l)
	if err != nil {
		return err
	}

	return RunWithConfig(ctx, l, opts, cfg, awshelper.SDKClientFactory{})
}

// RunWithConfig runs the teardown from an already loaded config. The summary is printed whether or not the run failed.
//
//nolint:gocritic // hugeParam: aws.Config is passed by value throughout the SDK
func RunWithConfig(ctx context.Context, l log.Logger, opts *options.TeardownOptions, cfg aws.Config, factory awshelper.ClientFactory) error {
	if err := Validate(opts); err != nil {
		return err
	}

	coordinator, err := uninstall.NewCoordinator(cfg, factory, opts)
	if err != nil {
		return err
	}

	summary, err := coordinator.Run(ctx, l)

	if !opts.DryRun {
		if _, printErr := fmt.Fprintf(opts.Writer, "Teardown %s: %s\n", outcome(err), summary); printErr != nil {
			l.Debugf("Failed to print the summary: %v", printErr)
		}
	}

	return err
}

func outcome(err error) string {
	if err != nil {
		return "failed"
	}

	return "finished"
}
