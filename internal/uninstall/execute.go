package uninstall

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codecommit"

	"github.com/gruntwork-io/lz-teardown/internal/awshelper"
	"github.com/gruntwork-io/lz-teardown/internal/errors"
	"github.com/gruntwork-io/lz-teardown/internal/plan"
	"github.com/gruntwork-io/lz-teardown/internal/reaper"
	"github.com/gruntwork-io/lz-teardown/internal/stack"
	"github.com/gruntwork-io/lz-teardown/internal/worker"
	"github.com/gruntwork-io/lz-teardown/pkg/log"
	"github.com/gruntwork-io/lz-teardown/telemetry"
)

// Execute deletes everything the plan names. A step starts only after the previous one finished
// without errors; the pipeline, the config repository, the installer, the log sweep and the bootstrap
// stacks follow in that order.
func (c *Coordinator) Execute(ctx context.Context, l log.Logger, p *plan.Plan, state *RunState) error {
	tlm := telemetry.TelemeterFromContext(ctx)
	engine := c.engineFor(p)

	for i, step := range p.Steps {
		l.Infof("Step %d of %d: deleting %d stacks of stage order %d, order %d", i+1, len(p.Steps), len(step.Entries), step.StageOrder, step.Order)

		err := tlm.Collect(ctx, "step", map[string]any{
			"stage_order": step.StageOrder,
			"order":       step.Order,
			"stacks":      len(step.Entries),
		}, func(ctx context.Context) error {
			return c.runStep(ctx, l, p, state, engine, step)
		})
		if err != nil {
			return err
		}
	}

	if refs := state.TakeDeferred(); len(refs) > 0 {
		l.Infof("Reaping %d deferred resources", len(refs))

		if err := c.drainRefs(ctx, l, state, refs); err != nil {
			return err
		}
	}

	if p.PipelineStack != nil {
		if err := c.deleteEntry(ctx, l, p, state, engine, *p.PipelineStack); err != nil {
			return err
		}
	}

	if p.ConfigRepo != "" {
		if err := c.deleteConfigRepository(ctx, l, p, state); err != nil {
			return err
		}
	}

	if p.InstallerStack != nil {
		if err := c.deleteEntry(ctx, l, p, state, engine, *p.InstallerStack); err != nil {
			return err
		}
	}

	var errs *errors.MultiError

	if len(p.SweepPrefixes) > 0 {
		if err := c.sweep(ctx, l, p, state); err != nil {
			errs = errs.Append(err)
		}
	}

	if len(p.Bootstrap) > 0 {
		l.Infof("Deleting %d bootstrap stacks", len(p.Bootstrap))

		bootstrap := plan.Step{Entries: p.Bootstrap}
		if err := c.runStep(ctx, l, p, state, engine, bootstrap); err != nil {
			errs = errs.Append(err)
		}
	}

	return errs.ErrorOrNil()
}

// engineFor returns the engine of a run. When data is reaped, buckets blocking a delete are emptied before the retry.
func (c *Coordinator) engineFor(p *plan.Plan) *stack.Engine {
	engine := *c.engine

	if p.ReapData {
		engine.BeforeRetry = func(ctx context.Context, l log.Logger, target *stack.Target, refs []reaper.PersistentResourceRef) error {
			return c.reaper.Drain(ctx, l, target.Clients, refs)
		}
	}

	return &engine
}

// runStep deletes the entries of one step concurrently. A termination protected stack halts the pool so
// entries that have not started are skipped.
func (c *Coordinator) runStep(ctx context.Context, l log.Logger, p *plan.Plan, state *RunState, engine *stack.Engine, step plan.Step) error {
	pool := worker.NewWorkerPool(c.opts.Parallelism, worker.WithHaltOn(isTerminationProtected))

	for _, entry := range step.Entries {
		pool.Submit(ctx, func(ctx context.Context) error {
			return c.deleteEntry(ctx, l, p, state, engine, entry)
		})
	}

	err := pool.Wait()
	if err == nil {
		return nil
	}

	skipped := pool.Skipped()
	state.skipped.Add(int32(skipped)) //nolint:gosec

	if skipped > 0 {
		l.Errorf("Halted step (%d,%d): %d stacks were not attempted", step.StageOrder, step.Order, skipped)
	}

	return errors.New(StepFailedError{
		Err:        err,
		StageOrder: step.StageOrder,
		Order:      step.Order,
		Skipped:    skipped,
	})
}

// deleteEntry deletes one stack and reaps, or defers, its persistent resources.
func (c *Coordinator) deleteEntry(ctx context.Context, l log.Logger, p *plan.Plan, state *RunState, engine *stack.Engine, entry plan.PipelineStackEntry) error {
	if entry.Stage != "" {
		l = l.WithField(log.FieldKeyPrefix, "stage-"+entry.Stage)
	}

	clients, err := c.clients(ctx, l, state, entry.AccountID, entry.Region)
	if err != nil {
		state.failed.Add(1)
		return err
	}

	target := &stack.Target{
		Clients:   clients,
		StackName: entry.StackName,
		AccountID: entry.AccountID,
		Region:    entry.Region,
	}

	var result *stack.Result

	err = telemetry.TelemeterFromContext(ctx).Collect(ctx, "delete_stack", map[string]any{
		"stack":   entry.StackName,
		"account": entry.AccountID,
		"region":  entry.Region,
	}, func(ctx context.Context) error {
		var deleteErr error

		result, deleteErr = engine.Delete(ctx, l, target)

		return deleteErr
	})
	if err != nil {
		state.failed.Add(1)
		return err
	}

	if !result.State.Done() {
		state.failed.Add(1)
		return errors.Errorf("deletion of stack %s in %s/%s stopped in state %s", entry.StackName, entry.AccountID, entry.Region, result.State)
	}

	switch result.State { //nolint:exhaustive
	case stack.StateNotFound:
		state.notFound.Add(1)
	case stack.StateComplete:
		state.deleted.Add(1)
	}

	if !p.ReapData || len(result.Refs) == 0 {
		return nil
	}

	if entry.DeferReaping {
		l.Infof("Deferring %d resources of stack %s until every dependent stack is deleted", len(result.Refs), entry.StackName)
		state.Defer(result.Refs...)

		return nil
	}

	return c.reaper.Drain(ctx, l.WithFields(log.Fields{log.FieldKeyAccount: entry.AccountID, log.FieldKeyRegion: entry.Region}), clients, result.Refs)
}

// drainRefs reaps refs with the clients of their own account and region, keeping their order.
func (c *Coordinator) drainRefs(ctx context.Context, l log.Logger, state *RunState, refs []reaper.PersistentResourceRef) error {
	type location struct {
		account string
		region  string
	}

	var (
		order  []location
		groups = make(map[location][]reaper.PersistentResourceRef)
		errs   *errors.MultiError
	)

	for _, ref := range refs {
		loc := location{account: ref.AccountID, region: ref.Region}
		if _, ok := groups[loc]; !ok {
			order = append(order, loc)
		}

		groups[loc] = append(groups[loc], ref)
	}

	for _, loc := range order {
		clients, err := c.clients(ctx, l, state, loc.account, loc.region)
		if err != nil {
			errs = errs.Append(err)
			continue
		}

		ll := l.WithFields(log.Fields{log.FieldKeyAccount: loc.account, log.FieldKeyRegion: loc.region})
		if err := c.reaper.Drain(ctx, ll, clients, groups[loc]); err != nil {
			errs = errs.Append(err)
		}
	}

	return errs.ErrorOrNil()
}

// deleteConfigRepository removes the configuration repository of the pipeline. A missing repository is clean.
func (c *Coordinator) deleteConfigRepository(ctx context.Context, l log.Logger, p *plan.Plan, state *RunState) error {
	cfg, err := c.broker.Config(ctx, l, state.CallerAccount, "", p.HomeRegion)
	if err != nil {
		return err
	}

	client := c.factory.ControlClients(cfg).CodeCommit

	l.Infof("Deleting configuration repository %s", p.ConfigRepo)

	if _, err := client.DeleteRepository(ctx, &codecommit.DeleteRepositoryInput{RepositoryName: aws.String(p.ConfigRepo)}); err != nil {
		if awshelper.IsRepositoryNotFound(err) {
			l.Debugf("Configuration repository %s does not exist", p.ConfigRepo)
			return nil
		}

		return errors.Errorf("failed to delete configuration repository %s: %w", p.ConfigRepo, err)
	}

	l.Infof("Deleted configuration repository %s", p.ConfigRepo)

	return nil
}

func isTerminationProtected(err error) bool {
	var protectedErr stack.TerminationProtectedError
	return errors.As(err, &protectedErr)
}
