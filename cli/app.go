// Package cli configures the lz-teardown command line application.
package cli

import (
	"github.com/gruntwork-io/go-commons/version"
	"github.com/urfave/cli/v2"

	"github.com/gruntwork-io/lz-teardown/cli/commands"
	"github.com/gruntwork-io/lz-teardown/cli/flags/global"
	"github.com/gruntwork-io/lz-teardown/options"
	"github.com/gruntwork-io/lz-teardown/telemetry"
)

const AppName = "lz-teardown"

// NewApp creates the CLI app. Telemetry is set up before a command runs and flushed after it.
func NewApp(opts *options.TeardownOptions) *cli.App {
	app := &cli.App{
		Name:                 AppName,
		Usage:                "Tear down a landing zone deployed by the accelerator pipeline, in reverse creation order.",
		UsageText:            AppName + " [global options] <command> [options]",
		Version:              version.GetVersion(),
		Writer:               opts.Writer,
		ErrWriter:            opts.ErrWriter,
		Flags:                global.NewFlags(opts),
		Commands:             commands.New(opts),
		EnableBashCompletion: true,
	}

	var tlm *telemetry.Telemeter

	app.Before = func(cliCtx *cli.Context) error {
		if err := global.SetupLogger(cliCtx, opts); err != nil {
			return err
		}

		var err error

		tlm, err = telemetry.NewTelemeter(cliCtx.Context, AppName, app.Version, opts.Writer, opts.Telemetry)
		if err != nil {
			return err
		}

		cliCtx.Context = telemetry.ContextWithTelemeter(cliCtx.Context, tlm)

		return nil
	}

	app.After = func(cliCtx *cli.Context) error {
		return tlm.Shutdown(cliCtx.Context)
	}

	return app
}
