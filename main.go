package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gruntwork-io/lz-teardown/cli"
	"github.com/gruntwork-io/lz-teardown/cli/flags"
	"github.com/gruntwork-io/lz-teardown/cli/flags/global"
	"github.com/gruntwork-io/lz-teardown/internal/errors"
	"github.com/gruntwork-io/lz-teardown/options"
	"github.com/gruntwork-io/lz-teardown/pkg/env"
	"github.com/gruntwork-io/lz-teardown/pkg/log"
)

// The main entrypoint for lz-teardown
func main() {
	opts := options.NewTeardownOptions()

	// Apply `LZT_LOG_LEVEL` right away so that flag parsing can already log at trace level.
	if levelName := env.GetStringEnv(flags.EnvVarsWithLztPrefix(global.LogLevelFlagName)[0], ""); levelName != "" {
		if err := opts.Logger.SetLevel(levelName); err != nil {
			opts.Logger.Error(err.Error())
			os.Exit(1)
		}
	}

	defer errors.Recover(checkForErrorsAndExit(opts.Logger))

	app := cli.NewApp(opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx = log.ContextWithLogger(ctx, opts.Logger)

	err := app.RunContext(ctx, os.Args)

	stop()

	checkForErrorsAndExit(opts.Logger)(err)
}

// If there is an error, display it in the console and exit with a non-zero exit code. Otherwise, exit 0.
func checkForErrorsAndExit(logger log.Logger) func(error) {
	return func(err error) {
		if err == nil {
			os.Exit(0)
		}

		if errors.IsContextCanceled(err) {
			logger.Warn("Teardown interrupted; stack deletions already issued continue in CloudFormation")
			os.Exit(1)
		}

		logger.Error(err.Error())

		if errStack := errors.ErrorStack(err); errStack != "" {
			logger.Debug(errStack)
		}

		exitCode := 1

		var exitErr errors.ErrorWithExitCode
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode
		}

		os.Exit(exitCode)
	}
}
