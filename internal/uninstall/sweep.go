package uninstall

import (
	"context"
	"slices"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"golang.org/x/sync/errgroup"

	"github.com/gruntwork-io/lz-teardown/internal/awshelper"
	"github.com/gruntwork-io/lz-teardown/internal/errors"
	"github.com/gruntwork-io/lz-teardown/internal/organization"
	"github.com/gruntwork-io/lz-teardown/internal/plan"
	"github.com/gruntwork-io/lz-teardown/internal/reaper"
	"github.com/gruntwork-io/lz-teardown/pkg/log"
)

// sweep deletes the log groups left behind by the landing zone in every account and region.
// Failures are collected; one location failing does not stop the others.
func (c *Coordinator) sweep(ctx context.Context, l log.Logger, p *plan.Plan, state *RunState) error {
	accounts := organization.IDs(state.Accounts)

	for _, account := range []string{p.Management, p.Executing} {
		if account != "" && !slices.Contains(accounts, account) {
			accounts = append(accounts, account)
		}
	}

	l.Infof("Sweeping log groups in %d accounts and %d regions", len(accounts), len(p.Regions))

	var (
		g      errgroup.Group
		errs   *errors.MultiError
		errsMu sync.Mutex
	)

	g.SetLimit(c.opts.Parallelism)

	for _, account := range accounts {
		for _, region := range p.Regions {
			g.Go(func() error {
				ll := l.WithFields(log.Fields{log.FieldKeyAccount: account, log.FieldKeyRegion: region})

				if err := c.sweepLocation(ctx, ll, state, account, region, p.SweepPrefixes); err != nil {
					errsMu.Lock()
					errs = errs.Append(err)
					errsMu.Unlock()
				}

				return nil
			})
		}
	}

	_ = g.Wait()

	return errs.ErrorOrNil()
}

func (c *Coordinator) sweepLocation(ctx context.Context, l log.Logger, state *RunState, account, region string, prefixes []string) error {
	clients, err := c.clients(ctx, l, state, account, region)
	if err != nil {
		return err
	}

	names, err := ListLogGroups(ctx, clients.Logs, prefixes)
	if err != nil {
		return err
	}

	var errs *errors.MultiError

	for _, name := range names {
		if err := reaper.DeleteLogGroup(ctx, l, clients.Logs, name); err != nil {
			errs = errs.Append(err)
		}
	}

	return errs.ErrorOrNil()
}

// ListLogGroups returns the distinct names of the log groups matching any of the prefixes.
func ListLogGroups(ctx context.Context, client awshelper.DescribeLogGroupsAPI, prefixes []string) ([]string, error) {
	var names []string

	for _, prefix := range prefixes {
		paginator := cloudwatchlogs.NewDescribeLogGroupsPaginator(client, &cloudwatchlogs.DescribeLogGroupsInput{
			LogGroupNamePrefix: aws.String(prefix),
		})

		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return nil, errors.Errorf("failed to list log groups with prefix %s: %w", prefix, err)
			}

			for _, group := range page.LogGroups {
				name := aws.ToString(group.LogGroupName)
				if name != "" && !slices.Contains(names, name) {
					names = append(names, name)
				}
			}
		}
	}

	return names, nil
}
