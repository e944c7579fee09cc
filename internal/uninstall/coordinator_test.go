package uninstall_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gruntwork-io/lz-teardown/internal/fakeaws"
	"github.com/gruntwork-io/lz-teardown/internal/pipeline"
	"github.com/gruntwork-io/lz-teardown/internal/plan"
	"github.com/gruntwork-io/lz-teardown/internal/scope"
	"github.com/gruntwork-io/lz-teardown/internal/stack"
	"github.com/gruntwork-io/lz-teardown/internal/uninstall"
	"github.com/gruntwork-io/lz-teardown/options"
)

func pipelineStack(account string) string {
	return fmt.Sprintf("%s-PipelineStack-%s-%s", prefix, account, homeRegion)
}

func TestFullDestroyDeletesInReverseCreationOrder(t *testing.T) {
	t.Parallel()

	lz := newLandingZone(t, mgmtAccount)
	c := lz.coordinator(t, newOptions(t, fullDestroy))
	ctx := context.Background()

	p, state, err := c.BuildPlan(ctx, logger())
	require.NoError(t, err)

	assert.Empty(t, lz.cloud.CallsTo("DeleteStack"), "building the plan deletes nothing")
	assert.Len(t, p.Entries(), len(managementStages)+len(memberStages)*len(allAccounts())*len(regions))
	assert.Len(t, p.Bootstrap, len(allAccounts())*len(regions))

	require.NoError(t, c.Execute(ctx, logger(), p, state))

	// Every stack of a step is gone before any stack of a later step is touched.
	for i := 1; i < len(p.Steps); i++ {
		var lastOfPrevious int

		for _, entry := range p.Steps[i-1].Entries {
			lastOfPrevious = max(lastOfPrevious, lz.cloud.LastCall("DescribeStacks", entry.StackName))
		}

		for _, entry := range p.Steps[i].Entries {
			assert.Greater(t, lz.cloud.FirstCall("DescribeStacks", entry.StackName), lastOfPrevious,
				"%s started before step %d finished", entry.StackName, i-1)
		}
	}

	for _, entry := range p.Entries() {
		assert.False(t, lz.cloud.StackExists(entry.AccountID, entry.Region, entry.StackName), entry.StackName)
	}

	for _, account := range allAccounts() {
		for _, region := range regions {
			assert.False(t, lz.cloud.BucketExists(account, region, bucketName(account, region)))
			assert.False(t, lz.cloud.LogGroupExists(account, region, "/lz/logging-"+region))
			assert.False(t, lz.cloud.LogGroupExists(account, region, "/aws/lambda/"+prefix+"-Handler"), "swept")
			assert.True(t, lz.cloud.LogGroupExists(account, region, "unrelated-group"))
			assert.False(t, lz.cloud.StackExists(account, region, prefix+"-CDKToolkit"))
		}
	}

	assert.False(t, lz.cloud.StackExists(mgmtAccount, homeRegion, pipelineStack(mgmtAccount)))
	assert.False(t, lz.cloud.StackExists(mgmtAccount, homeRegion, options.DefaultInstallerStackName))
	assert.False(t, lz.cloud.RepositoryExists(mgmtAccount, homeRegion, configRepo))

	// The pipeline goes after the landing zone, the installer after the repository, the bootstrap stacks last.
	lastEntry := lz.cloud.LastCall("DeleteStack", p.Steps[len(p.Steps)-1].Entries[0].StackName)
	pipelineDelete := lz.cloud.FirstCall("DeleteStack", pipelineStack(mgmtAccount))
	repoDelete := lz.cloud.FirstCall("DeleteRepository", configRepo)
	installerDelete := lz.cloud.FirstCall("DeleteStack", options.DefaultInstallerStackName)
	bootstrapDelete := lz.cloud.FirstCall("DeleteStack", prefix+"-CDKToolkit")

	assert.Less(t, lastEntry, pipelineDelete)
	assert.Less(t, pipelineDelete, repoDelete)
	assert.Less(t, repoDelete, installerDelete)
	assert.Less(t, installerDelete, bootstrapDelete)

	summary := state.Summary()
	assert.Equal(t, len(p.Entries())+len(p.Bootstrap)+2, summary.Deleted)
	assert.Zero(t, summary.Failed)

	// The teardown runs as the management account: nothing is assumed for it.
	for _, call := range lz.cloud.CallsTo("AssumeRole") {
		assert.NotContains(t, call.Target, mgmtAccount)
	}
}

func TestPrepareKeyReapingIsDeferred(t *testing.T) {
	t.Parallel()

	lz := newLandingZone(t, mgmtAccount)

	// Setup is declared before Prepare, so its stacks are deleted after the prepare stack and still
	// depend on the prepare key.
	stages := fakeaws.LandingZoneStages(mgmtAccount, roleName, configRepo)
	stages = slices.Insert(stages, 2, fakeaws.PipelineStage{Name: "Setup", Actions: []fakeaws.PipelineAction{fakeaws.DeployAction("Setup", 1, "setup")}})
	lz.cloud.AddPipeline(mgmtAccount, homeRegion, fakeaws.BuildPipeline(prefix+"-Pipeline", stages...))

	for _, account := range allAccounts() {
		for _, region := range regions {
			lz.cloud.AddStack(account, region, &fakeaws.Stack{Name: stackName("setup", account, region)})
		}
	}

	c := lz.coordinator(t, newOptions(t, fullDestroy))
	ctx := context.Background()

	p, state, err := c.BuildPlan(ctx, logger())
	require.NoError(t, err)

	require.NoError(t, c.Execute(ctx, logger(), p, state))

	prepareStack := stackName("prepare", mgmtAccount, homeRegion)
	scheduled := lz.cloud.FirstCall("ScheduleKeyDeletion", "prepare-key")
	require.GreaterOrEqual(t, scheduled, 0)

	for _, account := range allAccounts() {
		for _, region := range regions {
			setupStack := stackName("setup", account, region)

			assert.False(t, lz.cloud.StackExists(account, region, setupStack))
			assert.Less(t, lz.cloud.LastCall("DescribeStacks", prepareStack), lz.cloud.FirstCall("DeleteStack", setupStack), setupStack)
			assert.Greater(t, scheduled, lz.cloud.LastCall("DescribeStacks", setupStack), setupStack)
		}
	}

	for _, entry := range p.Entries() {
		assert.Greater(t, scheduled, lz.cloud.LastCall("DescribeStacks", entry.StackName), entry.StackName)
	}

	assert.Less(t, scheduled, lz.cloud.FirstCall("DeleteStack", pipelineStack(mgmtAccount)))
	assert.Equal(t, kmstypes.KeyStatePendingDeletion, lz.cloud.KeyState(mgmtAccount, homeRegion, "prepare-key"))
}

func TestSecondRunIsIdempotent(t *testing.T) {
	t.Parallel()

	lz := newLandingZone(t, mgmtAccount)
	opts := newOptions(t, func(opts *options.TeardownOptions) {
		opts.DeleteAccelerator = true
		opts.KeepPipelineAndConfig = true
	})

	summary, err := lz.coordinator(t, opts).Run(context.Background(), logger())
	require.NoError(t, err)
	assert.Positive(t, summary.Deleted)
	assert.Positive(t, summary.Elapsed)

	assert.True(t, lz.cloud.StackExists(mgmtAccount, homeRegion, pipelineStack(mgmtAccount)))
	assert.True(t, lz.cloud.RepositoryExists(mgmtAccount, homeRegion, configRepo))

	deletes := len(lz.cloud.CallsTo("DeleteStack"))

	summary, err = lz.coordinator(t, opts).Run(context.Background(), logger())
	require.NoError(t, err)

	assert.Zero(t, summary.Deleted)
	assert.Zero(t, summary.Failed)
	assert.Positive(t, summary.NotFound)
	assert.Len(t, lz.cloud.CallsTo("DeleteStack"), deletes)
}

func TestRunDropsSessionsWhenDone(t *testing.T) {
	t.Parallel()

	lz := newLandingZone(t, mgmtAccount)
	c := lz.coordinator(t, newOptions(t, func(opts *options.TeardownOptions) {
		opts.StageName = "Deploy"
	}))

	_, err := c.Run(context.Background(), logger())
	require.NoError(t, err)

	first := len(lz.cloud.CallsTo("AssumeRole"))
	require.Positive(t, first)

	_, err = c.Run(context.Background(), logger())
	require.NoError(t, err)

	assert.Greater(t, len(lz.cloud.CallsTo("AssumeRole")), first)
}

func TestScopeConflictMakesNoCalls(t *testing.T) {
	t.Parallel()

	lz := newLandingZone(t, mgmtAccount)

	opts := options.NewTeardownOptionsWithWriters(&bytes.Buffer{}, io.Discard)
	opts.FullDestroy = true
	opts.StageName = "Deploy"
	require.Error(t, opts.ValidateScope())

	_, err := lz.coordinator(t, opts).Run(context.Background(), logger())

	var conflictErr scope.ScopeConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Empty(t, lz.cloud.Calls())
}

func TestInvalidStageNameDeletesNothing(t *testing.T) {
	t.Parallel()

	lz := newLandingZone(t, mgmtAccount)
	opts := newOptions(t, func(opts *options.TeardownOptions) {
		opts.StageName = "NoSuchStage"
	})

	_, err := lz.coordinator(t, opts).Run(context.Background(), logger())

	var stageErr scope.InvalidStageNameError
	require.ErrorAs(t, err, &stageErr)
	assert.Contains(t, stageErr.Valid, "Deploy")
	assert.Empty(t, lz.cloud.CallsTo("DeleteStack"))
}

func TestPipelineNotFound(t *testing.T) {
	t.Parallel()

	lz := newLandingZone(t, mgmtAccount)
	opts := newOptions(t, func(opts *options.TeardownOptions) {
		opts.FullDestroy = true
		opts.PipelineName = "missing"
	})

	_, err := lz.coordinator(t, opts).Run(context.Background(), logger())

	var notFoundErr pipeline.PipelineNotFoundError
	require.ErrorAs(t, err, &notFoundErr)
	assert.Empty(t, lz.cloud.CallsTo("DeleteStack"))
}

func TestTerminationProtectionHaltsRun(t *testing.T) {
	t.Parallel()

	lz := newLandingZone(t, mgmtAccount)

	for _, account := range allAccounts() {
		for _, region := range regions {
			lz.cloud.Stacks[fakeaws.ScopedName(account, region, stackName("operations", account, region))].TerminationProtection = true
		}
	}

	opts := newOptions(t, func(opts *options.TeardownOptions) {
		opts.ActionName = "Operations"
		opts.Parallelism = 1
	})

	summary, err := lz.coordinator(t, opts).Run(context.Background(), logger())
	require.Error(t, err)

	var protectedErr stack.TerminationProtectedError
	require.ErrorAs(t, err, &protectedErr)

	var stepErr uninstall.StepFailedError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, len(allAccounts())*len(regions)-1, stepErr.Skipped)

	// Finalize ran first, then the network stacks that share the operations step.
	// The first protected stack halted the pool and no later step started.
	expected := []string{stackName("finalize", mgmtAccount, homeRegion)}
	for _, account := range allAccounts() {
		for _, region := range regions {
			expected = append(expected, stackName("network-vpc", account, region))
		}
	}

	assert.Equal(t, len(expected), summary.Deleted)
	assert.Equal(t, 1, summary.Failed)
	assert.ElementsMatch(t, expected, targets(lz.cloud.CallsTo("DeleteStack")))
	assert.Empty(t, lz.cloud.CallsTo("UpdateTerminationProtection"))

	for _, account := range allAccounts() {
		for _, region := range regions {
			assert.True(t, lz.cloud.StackExists(account, region, stackName("operations", account, region)))
		}
	}
}

func TestOverrideTerminationProtection(t *testing.T) {
	t.Parallel()

	lz := newLandingZone(t, mgmtAccount)
	protected := stackName("operations", memberAccounts[0], otherRegion)
	lz.cloud.Stacks[fakeaws.ScopedName(memberAccounts[0], otherRegion, protected)].TerminationProtection = true

	opts := newOptions(t, func(opts *options.TeardownOptions) {
		opts.ActionName = "Operations"
		opts.OverrideTerminationProtection = true
	})

	_, err := lz.coordinator(t, opts).Run(context.Background(), logger())
	require.NoError(t, err)

	assert.False(t, lz.cloud.StackExists(memberAccounts[0], otherRegion, protected))
	assert.Equal(t, 1, lz.cloud.CountCalls("UpdateTerminationProtection", protected))
}

func TestPartialScopeKeepsPipelineAndLogs(t *testing.T) {
	t.Parallel()

	lz := newLandingZone(t, mgmtAccount)
	opts := newOptions(t, func(opts *options.TeardownOptions) {
		opts.StageName = "Deploy"
	})

	_, err := lz.coordinator(t, opts).Run(context.Background(), logger())
	require.NoError(t, err)

	assert.False(t, lz.cloud.StackExists(memberAccounts[1], homeRegion, stackName("security", memberAccounts[1], homeRegion)))
	assert.True(t, lz.cloud.StackExists(memberAccounts[1], homeRegion, stackName("logging", memberAccounts[1], homeRegion)))
	assert.True(t, lz.cloud.StackExists(mgmtAccount, homeRegion, pipelineStack(mgmtAccount)))
	assert.True(t, lz.cloud.LogGroupExists(memberAccounts[1], homeRegion, "/aws/lambda/"+prefix+"-Handler"))
	assert.True(t, lz.cloud.StackExists(memberAccounts[1], homeRegion, prefix+"-CDKToolkit"))
	assert.Empty(t, lz.cloud.CallsTo("DescribeLogGroups"))
}

func TestKeepDataLeavesPersistentResources(t *testing.T) {
	t.Parallel()

	lz := newLandingZone(t, mgmtAccount)
	opts := newOptions(t, func(opts *options.TeardownOptions) {
		opts.DeleteAccelerator = true
		opts.KeepData = true
		opts.KeepBootstraps = true
	})

	_, err := lz.coordinator(t, opts).Run(context.Background(), logger())
	require.NoError(t, err)

	account := memberAccounts[0]

	assert.False(t, lz.cloud.StackExists(account, homeRegion, stackName("logging", account, homeRegion)))
	assert.True(t, lz.cloud.BucketExists(account, homeRegion, bucketName(account, homeRegion)))
	assert.True(t, lz.cloud.LogGroupExists(account, homeRegion, "/aws/lambda/"+prefix+"-Handler"))
	assert.Equal(t, kmstypes.KeyStateEnabled, lz.cloud.KeyState(mgmtAccount, homeRegion, "prepare-key"))
	assert.True(t, lz.cloud.StackExists(account, homeRegion, prefix+"-CDKToolkit"))
	assert.False(t, lz.cloud.StackExists(mgmtAccount, homeRegion, pipelineStack(mgmtAccount)))
	assert.True(t, lz.cloud.RepositoryExists(mgmtAccount, homeRegion, configRepo))
}

func TestExternalAccountAssumesManagementAndKeepsBootstrap(t *testing.T) {
	t.Parallel()

	lz := newLandingZone(t, externalAccount)

	summary, err := lz.coordinator(t, newOptions(t, fullDestroy)).Run(context.Background(), logger())
	require.NoError(t, err)
	assert.Zero(t, summary.Failed)

	assert.False(t, lz.cloud.StackExists(mgmtAccount, homeRegion, stackName("prepare", mgmtAccount, homeRegion)))
	assert.False(t, lz.cloud.StackExists(externalAccount, homeRegion, pipelineStack(externalAccount)))
	assert.False(t, lz.cloud.RepositoryExists(externalAccount, homeRegion, configRepo))

	for _, account := range allAccounts() {
		assert.True(t, lz.cloud.StackExists(account, homeRegion, prefix+"-CDKToolkit"), account)
	}

	assumed := targets(lz.cloud.CallsTo("AssumeRole"))
	assert.Contains(t, assumed, "arn:aws:iam::"+mgmtAccount+":role/"+roleName)
	assert.Contains(t, assumed, "arn:aws:iam::"+memberAccounts[0]+":role/"+roleName)
}

func TestAssumeRoleFailureFailsRun(t *testing.T) {
	t.Parallel()

	lz := newLandingZone(t, mgmtAccount)
	lz.cloud.AssumeErrs[memberAccounts[1]] = fmt.Errorf("access denied")

	summary, err := lz.coordinator(t, newOptions(t, fullDestroy)).Run(context.Background(), logger())
	require.Error(t, err)

	// The other accounts of the failing step were still deleted.
	first := stackName("operations", memberAccounts[0], homeRegion)
	assert.False(t, lz.cloud.StackExists(memberAccounts[0], homeRegion, first))
	assert.Positive(t, summary.Failed)
	assert.True(t, lz.cloud.StackExists(mgmtAccount, homeRegion, pipelineStack(mgmtAccount)))
}

func TestDryRunRendersPlan(t *testing.T) {
	t.Parallel()

	lz := newLandingZone(t, mgmtAccount)

	var out bytes.Buffer

	opts := newOptions(t, func(opts *options.TeardownOptions) {
		opts.FullDestroy = true
		opts.DryRun = true
		opts.PlanFormat = plan.FormatJSON
		opts.Writer = &out
	})

	_, err := lz.coordinator(t, opts).Run(context.Background(), logger())
	require.NoError(t, err)

	var rendered plan.Plan
	require.NoError(t, json.Unmarshal(out.Bytes(), &rendered))

	assert.Equal(t, mgmtAccount, rendered.Management)
	assert.NotEmpty(t, rendered.Steps)
	assert.Equal(t, configRepo, rendered.ConfigRepo)
	assert.Empty(t, lz.cloud.CallsTo("DeleteStack"))
	assert.Empty(t, lz.cloud.CallsTo("DeleteObjects"))
}

func TestListLogGroupsFollowsPages(t *testing.T) {
	t.Parallel()

	cloud := fakeaws.New(mgmtAccount)
	for i := range 5 {
		cloud.AddLogGroup(mgmtAccount, homeRegion, fmt.Sprintf("/aws/lambda/%s-fn-%d", prefix, i))
	}

	cloud.AddLogGroup(mgmtAccount, homeRegion, prefix+"-custom")
	cloud.AddLogGroup(mgmtAccount, homeRegion, "other")

	clients := cloud.Factory().Clients(aws.Config{Region: homeRegion})

	names, err := uninstall.ListLogGroups(context.Background(), clients.Logs, plan.SweepPrefixes(prefix))
	require.NoError(t, err)

	assert.Len(t, names, 6)
	assert.NotContains(t, names, "other")
}

func targets(calls []fakeaws.Call) []string {
	result := make([]string, 0, len(calls))
	for _, call := range calls {
		result = append(result, call.Target)
	}

	return result
}
