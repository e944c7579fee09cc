// Package plan provides the `plan` command, which prints what `uninstall` would delete and in which order.
package plan

import (
	"github.com/urfave/cli/v2"

	"github.com/gruntwork-io/lz-teardown/cli/commands/uninstall"
	"github.com/gruntwork-io/lz-teardown/cli/flags"
	"github.com/gruntwork-io/lz-teardown/options"
)

const CommandName = "plan"

// NewFlags returns the scope and discovery flags shared with the uninstall command.
func NewFlags(opts *options.TeardownOptions, prefix flags.Prefix) []cli.Flag {
	return append(uninstall.NewScopeFlags(opts, prefix), uninstall.NewDiscoveryFlags(opts, prefix)...)
}

// NewCommand returns the plan command.
func NewCommand(opts *options.TeardownOptions) *cli.Command {
	return &cli.Command{
		Name:  CommandName,
		Usage: "Print the stacks the uninstall command would delete, step by step, without deleting anything.",
		Flags: NewFlags(opts, nil),
		Action: func(cliCtx *cli.Context) error {
			return Run(cliCtx.Context, opts.Logger, opts)
		},
	}
}
