// Package commands lists the commands of the CLI.
package commands

import (
	"github.com/urfave/cli/v2"

	"github.com/gruntwork-io/lz-teardown/cli/commands/plan"
	"github.com/gruntwork-io/lz-teardown/cli/commands/uninstall"
	"github.com/gruntwork-io/lz-teardown/options"
)

// New returns the commands of the CLI.
func New(opts *options.TeardownOptions) []*cli.Command {
	return []*cli.Command{
		uninstall.NewCommand(opts),
		plan.NewCommand(opts),
	}
}
