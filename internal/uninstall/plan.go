package uninstall

import (
	"context"
	"time"

	"github.com/gruntwork-io/lz-teardown/internal/globalconfig"
	"github.com/gruntwork-io/lz-teardown/internal/organization"
	"github.com/gruntwork-io/lz-teardown/internal/pipeline"
	"github.com/gruntwork-io/lz-teardown/internal/plan"
	"github.com/gruntwork-io/lz-teardown/internal/scope"
	"github.com/gruntwork-io/lz-teardown/pkg/log"
)

// BuildPlan discovers the deployed landing zone and computes the deletion plan. Nothing is deleted.
func (c *Coordinator) BuildPlan(ctx context.Context, l log.Logger) (*plan.Plan, *RunState, error) {
	state := &RunState{Started: time.Now()}

	prefix := c.opts.Prefix
	if prefix == "" {
		prefix = plan.DefaultPrefix
	}

	pipelineName := c.opts.PipelineName
	if pipelineName == "" {
		pipelineName = plan.PipelineName(prefix)
	}

	homeRegion := c.opts.HomeRegion

	identity, err := c.broker.CallerIdentity(ctx)
	if err != nil {
		return nil, nil, err
	}

	state.CallerAccount = identity.AccountID

	controlCfg, err := c.broker.Config(ctx, l, identity.AccountID, "", homeRegion)
	if err != nil {
		return nil, nil, err
	}

	control := c.factory.ControlClients(controlCfg)

	l.Infof("Reading pipeline %s in %s", pipelineName, homeRegion)

	introspection, err := pipeline.Introspect(ctx, l, control.CodePipeline, pipelineName)
	if err != nil {
		return nil, nil, err
	}

	actions, err := scope.Resolve(introspection.Actions, c.opts.Filter)
	if err != nil {
		return nil, nil, err
	}

	managementAccount := c.opts.ManagementAccountID
	if managementAccount == "" {
		managementAccount = introspection.Bootstrap.ManagementAccountID
	}

	managementRole := introspection.Bootstrap.ManagementAccountRoleName
	if managementRole == "" {
		managementRole = c.opts.RoleName
	}

	mgmt, mgmtCfg, err := c.broker.ResolveManagement(ctx, l, managementAccount, managementRole, homeRegion)
	if err != nil {
		return nil, nil, err
	}

	state.Management = mgmt

	fetcher := &globalconfig.Fetcher{CodeCommit: control.CodeCommit, S3: control.S3}

	globalCfg, err := fetcher.Fetch(ctx, l, introspection.ConfigSource)
	if err != nil {
		return nil, nil, err
	}

	if globalCfg.HomeRegion != homeRegion {
		l.Warnf("Home region of %s is %s, the pipeline was read from %s", globalconfig.FileName, globalCfg.HomeRegion, homeRegion)
	}

	state.MemberRoleName = globalCfg.ManagementAccountAccessRole
	if state.MemberRoleName == "" {
		state.MemberRoleName = c.opts.RoleName
	}

	accounts, err := organization.ListAccounts(ctx, l, c.factory.ControlClients(mgmtCfg).Organizations)
	if err != nil {
		return nil, nil, err
	}

	state.Accounts = accounts

	p, err := plan.Build(&plan.Input{
		Prefix:             prefix,
		PipelineName:       pipelineName,
		ManagementAccount:  mgmt.AccountID,
		ExecutingAccount:   identity.AccountID,
		HomeRegion:         globalCfg.HomeRegion,
		InstallerStackName: c.opts.InstallerStackName,
		ConfigSource:       introspection.ConfigSource,
		Actions:            actions,
		Accounts:           accounts,
		Regions:            globalCfg.Regions(),
		Filter:             c.opts.Filter,
		External:           mgmt.External,
		SkipSweep:          c.opts.SkipLogSweep,
	})
	if err != nil {
		return nil, nil, err
	}

	l.Infof("Planned %d stacks in %d steps across %d accounts and %d regions", len(p.Entries()), len(p.Steps), len(p.Accounts), len(p.Regions))

	return p, state, nil
}
