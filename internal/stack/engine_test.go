package stack_test

import (
	"context"
	"io"
	"regexp"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gruntwork-io/lz-teardown/internal/fakeaws"
	"github.com/gruntwork-io/lz-teardown/internal/reaper"
	"github.com/gruntwork-io/lz-teardown/internal/stack"
	"github.com/gruntwork-io/lz-teardown/pkg/log"
)

const (
	account   = "222222222222"
	region    = "eu-west-1"
	stackName = "AWSAccelerator-SecurityStack-222222222222-eu-west-1"
)

func newEngine() *stack.Engine {
	engine := stack.NewEngine()
	engine.PollInterval = 0
	engine.RetrySleep = 0
	engine.MaxPolls = 5
	engine.MaxRetries = 2

	return engine
}

func setup(t *testing.T) (*fakeaws.Cloud, *stack.Target, log.Logger) {
	t.Helper()

	cloud := fakeaws.New(account)
	target := &stack.Target{
		Clients:   cloud.Factory().Clients(aws.Config{Region: region}),
		StackName: stackName,
		AccountID: account,
		Region:    region,
	}

	return cloud, target, log.New(log.WithOutput(io.Discard))
}

func TestDeleteMissingStackIsSuccess(t *testing.T) {
	t.Parallel()

	cloud, target, l := setup(t)

	result, err := newEngine().Delete(context.Background(), l, target)
	require.NoError(t, err)

	assert.Equal(t, stack.StateNotFound, result.State)
	assert.Zero(t, cloud.CountCalls("DeleteStack", ""))
}

func TestDeleteStackCollectsRefs(t *testing.T) {
	t.Parallel()

	cloud, target, l := setup(t)
	cloud.AddStack(account, region, &fakeaws.Stack{
		Name:            stackName,
		InProgressPolls: 2,
		Resources: []cfntypes.StackResourceSummary{
			fakeaws.Resource("AWS::S3::Bucket", "Bucket", "bucket-1"),
			fakeaws.Resource("AWS::KMS::Key", "Key", "key-1"),
			fakeaws.Resource("AWS::SNS::Topic", "Topic", "topic"),
		},
	})

	result, err := newEngine().Delete(context.Background(), l, target)
	require.NoError(t, err)

	assert.Equal(t, stack.StateComplete, result.State)
	assert.Equal(t, 1, result.Attempts)
	assert.Len(t, result.Refs, 2)
	assert.False(t, cloud.StackExists(account, region, stackName))
	assert.Equal(t, 1, cloud.CountCalls("DeleteStack", stackName))

	// Inventory happens before the delete is issued.
	assert.Less(t, cloud.FirstCall("ListStackResources", stackName), cloud.FirstCall("DeleteStack", stackName))
}

func TestTerminationProtectionAbortsWithoutDelete(t *testing.T) {
	t.Parallel()

	cloud, target, l := setup(t)
	cloud.AddStack(account, region, &fakeaws.Stack{Name: stackName, TerminationProtection: true})

	result, err := newEngine().Delete(context.Background(), l, target)
	require.Error(t, err)

	var protectedErr stack.TerminationProtectedError
	require.ErrorAs(t, err, &protectedErr)
	assert.Equal(t, stackName, protectedErr.StackName)
	assert.Equal(t, stack.StateProtectedAbort, result.State)

	assert.Zero(t, cloud.CountCalls("DeleteStack", stackName))
	assert.Zero(t, cloud.CountCalls("UpdateTerminationProtection", stackName))
	assert.True(t, cloud.StackExists(account, region, stackName))
}

func TestTerminationProtectionOverride(t *testing.T) {
	t.Parallel()

	cloud, target, l := setup(t)
	cloud.AddStack(account, region, &fakeaws.Stack{Name: stackName, TerminationProtection: true})

	engine := newEngine()
	engine.OverrideProtection = true

	result, err := engine.Delete(context.Background(), l, target)
	require.NoError(t, err)

	assert.Equal(t, stack.StateComplete, result.State)
	assert.Less(t, cloud.FirstCall("UpdateTerminationProtection", stackName), cloud.FirstCall("DeleteStack", stackName))
}

func TestTerminationProtectionOverrideWaitsForUpdate(t *testing.T) {
	t.Parallel()

	cloud, target, l := setup(t)
	cloud.AddStack(account, region, &fakeaws.Stack{Name: stackName, TerminationProtection: true, ProtectionLagPolls: 2})

	engine := newEngine()
	engine.OverrideProtection = true

	result, err := engine.Delete(context.Background(), l, target)
	require.NoError(t, err)

	assert.Equal(t, stack.StateComplete, result.State)
	assert.True(t, result.State.Done())
	assert.Equal(t, 1, cloud.CountCalls("DeleteStack", stackName))
	assert.False(t, cloud.StackExists(account, region, stackName))
}

func TestTerminationProtectionOverrideGivesUp(t *testing.T) {
	t.Parallel()

	cloud, target, l := setup(t)
	cloud.AddStack(account, region, &fakeaws.Stack{Name: stackName, TerminationProtection: true, ProtectionLagPolls: 100})

	engine := newEngine()
	engine.OverrideProtection = true

	result, err := engine.Delete(context.Background(), l, target)
	require.Error(t, err)

	assert.Equal(t, stack.StateFatal, result.State)
	assert.Zero(t, cloud.CountCalls("DeleteStack", stackName))
	assert.True(t, cloud.StackExists(account, region, stackName))
}

func TestRetryCeilingFailsLoudly(t *testing.T) {
	t.Parallel()

	cloud, target, l := setup(t)
	cloud.AddStack(account, region, &fakeaws.Stack{Name: stackName, FailDeletes: 100})

	engine := newEngine()

	result, err := engine.Delete(context.Background(), l, target)
	require.Error(t, err)

	var retriesErr stack.DeleteRetriesExceededError
	require.ErrorAs(t, err, &retriesErr)
	assert.Equal(t, engine.MaxRetries+1, retriesErr.Attempts)

	assert.Equal(t, stack.StateFatal, result.State)
	assert.Equal(t, engine.MaxRetries+1, cloud.CountCalls("DeleteStack", stackName))
}

func TestRetrySucceedsWithinCeiling(t *testing.T) {
	t.Parallel()

	cloud, target, l := setup(t)
	cloud.AddStack(account, region, &fakeaws.Stack{Name: stackName, FailDeletes: 2})

	result, err := newEngine().Delete(context.Background(), l, target)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, 3, cloud.CountCalls("DeleteStack", stackName))
}

func TestDeleteTimeout(t *testing.T) {
	t.Parallel()

	cloud, target, l := setup(t)
	cloud.AddStack(account, region, &fakeaws.Stack{Name: stackName, InProgressPolls: 100})

	_, err := newEngine().Delete(context.Background(), l, target)
	require.Error(t, err)

	var timeoutErr stack.DeleteTimeoutError
	require.ErrorAs(t, err, &timeoutErr)

	// A timeout is not retried.
	assert.Equal(t, 1, cloud.CountCalls("DeleteStack", stackName))
}

func TestBlockingBucketDrainedBeforeRetry(t *testing.T) {
	t.Parallel()

	cloud, target, l := setup(t)
	cloud.AddBucket(account, region, "blocking-bucket", 5, 1)
	cloud.AddStack(account, region, &fakeaws.Stack{
		Name:           stackName,
		BlockingBucket: "blocking-bucket",
		Resources: []cfntypes.StackResourceSummary{
			fakeaws.Resource("AWS::S3::Bucket", "Bucket", "blocking-bucket"),
			fakeaws.Resource("AWS::Logs::LogGroup", "Logs", "/lz/logs"),
		},
	})

	r := reaper.New()
	r.BucketRetrySleep = 0

	var drained []reaper.PersistentResourceRef

	engine := newEngine()
	engine.BeforeRetry = func(ctx context.Context, l log.Logger, target *stack.Target, refs []reaper.PersistentResourceRef) error {
		drained = append(drained, refs...)
		return r.Drain(ctx, l, target.Clients, refs)
	}

	result, err := engine.Delete(context.Background(), l, target)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Attempts)
	require.Len(t, drained, 1)
	assert.Equal(t, reaper.KindS3, drained[0].Kind)
	assert.False(t, cloud.BucketExists(account, region, "blocking-bucket"))

	assert.Less(t, cloud.FirstCall("DeleteBucket", "blocking-bucket"), cloud.LastCall("DeleteStack", stackName))
}

func TestPreCleanupDetachesMatchingRoles(t *testing.T) {
	t.Parallel()

	cloud, target, l := setup(t)
	cloud.AddStack(account, region, &fakeaws.Stack{
		Name: stackName,
		Resources: []cfntypes.StackResourceSummary{
			fakeaws.Resource("AWS::IAM::Role", "Matching", "AWSAccelerator-SecurityRole"),
			fakeaws.Resource("AWS::IAM::Role", "Other", "custom-role"),
		},
	})

	matching := cloud.AddRole(account, "AWSAccelerator-SecurityRole", []string{"arn:aws:iam::aws:policy/ReadOnlyAccess"}, []string{"inline"})
	other := cloud.AddRole(account, "custom-role", []string{"arn:aws:iam::aws:policy/ReadOnlyAccess"}, nil)

	engine := newEngine()
	engine.RolePattern = regexp.MustCompile("^AWSAccelerator-")

	_, err := engine.Delete(context.Background(), l, target)
	require.NoError(t, err)

	assert.Empty(t, matching.AttachedPolicies)
	assert.Empty(t, matching.InlinePolicies)
	assert.Len(t, other.AttachedPolicies, 1)
	assert.Less(t, cloud.LastCall("DeleteRolePolicy", "AWSAccelerator-SecurityRole"), cloud.FirstCall("DeleteStack", stackName))
}

func TestPreCleanupToleratesMissingRole(t *testing.T) {
	t.Parallel()

	cloud, target, l := setup(t)

	require.NoError(t, stack.DetachRolePolicies(context.Background(), l, target.Clients.IAM, "gone"))
	assert.Equal(t, 1, cloud.CountCalls("ListAttachedRolePolicies", "gone"))
}

func TestStateNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "PROTECTED_ABORT", stack.StateProtectedAbort.String())
	assert.Equal(t, "UNKNOWN", stack.State(99).String())

	done := map[stack.State]bool{
		stack.StateNotFound:       true,
		stack.StateComplete:       true,
		stack.StateProtectedAbort: true,
		stack.StateFatal:          true,
	}

	for state := stack.StateNotFound; state <= stack.StateFatal; state++ {
		assert.Equal(t, done[state], state.Done(), state.String())
	}
}
