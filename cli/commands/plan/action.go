package plan

import (
	"context"

	"github.com/gruntwork-io/lz-teardown/cli/commands/uninstall"
	"github.com/gruntwork-io/lz-teardown/options"
	"github.com/gruntwork-io/lz-teardown/pkg/log"
)

// Run renders the plan of the selected scope.
func Run(ctx context.Context, l log.Logger, opts *options.TeardownOptions) error {
	opts.DryRun = true

	return uninstall.Run(ctx, l, opts)
}
