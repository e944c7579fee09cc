// Package uninstall coordinates a teardown run: it builds the immutable deletion plan and executes it
// step by step, fanning out the deletions of one step across accounts and regions.
package uninstall

import (
	"context"
	"regexp"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/google/uuid"

	"github.com/gruntwork-io/lz-teardown/internal/awshelper"
	"github.com/gruntwork-io/lz-teardown/internal/broker"
	"github.com/gruntwork-io/lz-teardown/internal/errors"
	"github.com/gruntwork-io/lz-teardown/internal/reaper"
	"github.com/gruntwork-io/lz-teardown/internal/scope"
	"github.com/gruntwork-io/lz-teardown/internal/stack"
	"github.com/gruntwork-io/lz-teardown/options"
	"github.com/gruntwork-io/lz-teardown/pkg/log"
	"github.com/gruntwork-io/lz-teardown/telemetry"
)

const sessionPrefix = "lz-teardown-"

// Coordinator runs one teardown.
type Coordinator struct {
	opts    *options.TeardownOptions
	factory awshelper.ClientFactory
	broker  *broker.Broker
	engine  *stack.Engine
	reaper  *reaper.Reaper
	base    aws.Config
	// runID names the assumed-role sessions and the telemetry of this run.
	runID string
}

// NewCoordinator returns a coordinator calling AWS with the identity of base through factory.
//
//nolint:gocritic // hugeParam: aws.Config is passed by value throughout the SDK
func NewCoordinator(base aws.Config, factory awshelper.ClientFactory, opts *options.TeardownOptions) (*Coordinator, error) {
	rolePattern := opts.RolePattern
	if rolePattern == "" {
		rolePattern = "^" + regexp.QuoteMeta(opts.Prefix) + "-"
	}

	roleRegexp, err := regexp.Compile(rolePattern)
	if err != nil {
		return nil, errors.Errorf("invalid role pattern %q: %w", rolePattern, err)
	}

	runID := uuid.NewString()

	brokerOpts := []broker.Option{broker.WithSessionName(sessionPrefix + runID)}
	if opts.Partition != "" {
		brokerOpts = append(brokerOpts, broker.WithPartition(opts.Partition))
	}

	engine := stack.NewEngine()
	engine.RolePattern = roleRegexp
	engine.PollInterval = opts.PollInterval
	engine.MaxPolls = opts.MaxPolls
	engine.MaxRetries = opts.MaxRetries
	engine.RetrySleep = opts.RetrySleep
	engine.OverrideProtection = opts.OverrideTerminationProtection

	r := reaper.New()
	r.BucketRetrySleep = opts.RetrySleep

	return &Coordinator{
		opts:    opts,
		factory: factory,
		broker:  broker.New(base, factory, brokerOpts...),
		engine:  engine,
		reaper:  r,
		base:    base,
		runID:   runID,
	}, nil
}

// Run builds the plan and, unless this is a dry run, executes it. The summary is returned on failure too.
func (c *Coordinator) Run(ctx context.Context, l log.Logger) (Summary, error) {
	started := time.Now()

	if c.opts.Filter.Mode == scope.ModeNone {
		return Summary{}, errors.New(scope.ScopeConflictError{})
	}

	var summary Summary

	// Sessions of this run are not reused by a later one.
	defer c.broker.Reset()

	l.Infof("Starting teardown run %s with scope %s", c.runID, c.opts.Filter.Mode)

	err := telemetry.TelemeterFromContext(ctx).Collect(ctx, "uninstall", map[string]any{
		"run_id":  c.runID,
		"scope":   c.opts.Filter.Mode.String(),
		"dry_run": c.opts.DryRun,
	}, func(ctx context.Context) error {
		p, state, err := c.BuildPlan(ctx, l)
		if err != nil {
			return err
		}

		if c.opts.DryRun {
			return p.Render(c.opts.Writer, c.opts.PlanFormat)
		}

		defer func() {
			summary = state.Summary()
		}()

		return c.Execute(ctx, l, p, state)
	})

	if summary.Elapsed == 0 {
		summary.Elapsed = time.Since(started)
	}

	return summary, err
}

// roleFor returns the role assumed to reach accountID.
func (c *Coordinator) roleFor(state *RunState, accountID string) string {
	if state.Management != nil && accountID == state.Management.AccountID {
		return state.Management.AssumeRoleName
	}

	return state.MemberRoleName
}

func (c *Coordinator) clients(ctx context.Context, l log.Logger, state *RunState, accountID, region string) (*awshelper.Clients, error) {
	return c.broker.Clients(ctx, l, accountID, c.roleFor(state, accountID), region)
}
