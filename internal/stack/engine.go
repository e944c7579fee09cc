// Package stack deletes one CloudFormation stack in one account and region: existence check, termination
// protection check, IAM pre-cleanup, delete, poll and bounded retry on DELETE_FAILED.
package stack

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"

	"github.com/gruntwork-io/lz-teardown/internal/awshelper"
	"github.com/gruntwork-io/lz-teardown/internal/errors"
	"github.com/gruntwork-io/lz-teardown/internal/reaper"
	"github.com/gruntwork-io/lz-teardown/pkg/log"
	"github.com/gruntwork-io/lz-teardown/util"
)

const (
	DefaultPollInterval = 15 * time.Second
	DefaultMaxPolls     = 240
	DefaultMaxRetries   = 3
	DefaultRetrySleep   = 30 * time.Second
)

// BeforeRetryFunc runs between a DELETE_FAILED attempt and the next delete with the refs that may block it.
type BeforeRetryFunc func(ctx context.Context, l log.Logger, target *Target, refs []reaper.PersistentResourceRef) error

// Target is one stack to delete with the clients of its account and region.
type Target struct {
	Clients   *awshelper.Clients
	StackName string
	AccountID string
	Region    string
}

func (target *Target) logger(l log.Logger) log.Logger {
	return l.WithFields(log.Fields{
		log.FieldKeyStack:   target.StackName,
		log.FieldKeyAccount: target.AccountID,
		log.FieldKeyRegion:  target.Region,
	})
}

// Result describes how a deletion ended.
type Result struct {
	// Refs are the persistent resources found in the stack before it was deleted.
	Refs     []reaper.PersistentResourceRef
	State    State
	Attempts int
}

// Engine runs the deletion state machine.
type Engine struct {
	// RolePattern selects the IAM roles of a stack whose policies are detached before the delete. Nil selects every role.
	RolePattern *regexp.Regexp
	BeforeRetry BeforeRetryFunc

	PollInterval       time.Duration
	MaxPolls           int
	MaxRetries         int
	RetrySleep         time.Duration
	OverrideProtection bool
}

// NewEngine returns an engine with the default poll and retry budget.
func NewEngine() *Engine {
	return &Engine{
		PollInterval: DefaultPollInterval,
		MaxPolls:     DefaultMaxPolls,
		MaxRetries:   DefaultMaxRetries,
		RetrySleep:   DefaultRetrySleep,
	}
}

// Delete deletes the target stack. A stack that does not exist is already deleted.
func (engine *Engine) Delete(ctx context.Context, l log.Logger, target *Target) (*Result, error) {
	l = target.logger(l)
	result := &Result{State: StateExists}
	cfn := target.Clients.CloudFormation

	stack, err := describeStack(ctx, cfn, target.StackName)
	if err != nil {
		result.State = StateFatal
		return result, err
	}

	if stack == nil || stack.StackStatus == cfntypes.StackStatusDeleteComplete {
		l.Debugf("Stack %s does not exist", target.StackName)

		result.State = StateNotFound

		return result, nil
	}

	result.State = StateTerminationCheck

	if aws.ToBool(stack.EnableTerminationProtection) {
		if !engine.OverrideProtection {
			l.Errorf("Stack %s has termination protection enabled", target.StackName)

			result.State = StateProtectedAbort

			return result, errors.New(TerminationProtectedError{
				StackName: target.StackName,
				AccountID: target.AccountID,
				Region:    target.Region,
			})
		}

		l.Warnf("Disabling termination protection of stack %s", target.StackName)

		if _, err := cfn.UpdateTerminationProtection(ctx, &cloudformation.UpdateTerminationProtectionInput{
			StackName:                   aws.String(target.StackName),
			EnableTerminationProtection: aws.Bool(false),
		}); err != nil {
			result.State = StateFatal
			return result, errors.Errorf("failed to disable termination protection of stack %s: %w", target.StackName, err)
		}

		if err := engine.waitForProtectionDisabled(ctx, l, target); err != nil {
			result.State = StateFatal
			return result, err
		}

		result.State = StateProtectedOverridden
	} else {
		result.State = StateUnprotected
	}

	resources, err := reaper.Inventory(ctx, cfn, target.StackName)
	if err != nil {
		result.State = StateFatal
		return result, err
	}

	result.Refs = reaper.Classify(target.StackName, target.AccountID, target.Region, resources)
	result.State = StatePreCleanup

	if err := engine.preCleanup(ctx, l, target, resources); err != nil {
		result.State = StateFatal
		return result, err
	}

	description := fmt.Sprintf("Delete stack %s in %s/%s", target.StackName, target.AccountID, target.Region)

	err = util.DoWithRetry(ctx, description, engine.MaxRetries, engine.RetrySleep, l, log.DebugLevel, func(ctx context.Context, attempt int) error {
		if attempt > 0 && engine.BeforeRetry != nil {
			if err := engine.BeforeRetry(ctx, l, target, reaper.Filter(result.Refs, reaper.KindS3)); err != nil {
				l.Warnf("Cleanup before retrying stack %s failed: %v", target.StackName, err)
			}
		}

		result.Attempts++

		return engine.deleteOnce(ctx, l, target, result)
	})
	if err != nil {
		result.State = StateFatal

		var maxRetriesErr util.MaxRetriesExceeded
		if errors.As(err, &maxRetriesErr) {
			return result, errors.New(DeleteRetriesExceededError{
				Err:       maxRetriesErr.Last,
				StackName: target.StackName,
				AccountID: target.AccountID,
				Region:    target.Region,
				Attempts:  result.Attempts,
			})
		}

		return result, err
	}

	result.State = StateComplete

	l.Infof("Deleted stack %s", target.StackName)

	return result, nil
}

// deleteOnce issues one delete and polls until the stack is gone or failed. A failed deletion is retriable,
// everything else ends the retry loop.
func (engine *Engine) deleteOnce(ctx context.Context, l log.Logger, target *Target, result *Result) error {
	cfn := target.Clients.CloudFormation

	l.Infof("Deleting stack %s (attempt %d)", target.StackName, result.Attempts)

	if _, err := cfn.DeleteStack(ctx, &cloudformation.DeleteStackInput{StackName: aws.String(target.StackName)}); err != nil {
		if awshelper.IsStackNotFound(err) {
			return nil
		}

		return util.FatalError{Underlying: errors.Errorf("failed to delete stack %s: %w", target.StackName, err)}
	}

	result.State = StateDeleteIssued

	for poll := 0; poll < engine.MaxPolls; poll++ {
		result.State = StatePolling

		stack, err := describeStack(ctx, cfn, target.StackName)
		if err != nil {
			return util.FatalError{Underlying: err}
		}

		if stack == nil {
			return nil
		}

		switch stack.StackStatus {
		case cfntypes.StackStatusDeleteComplete:
			return nil
		case cfntypes.StackStatusDeleteFailed:
			result.State = StateFailed
			reason := aws.ToString(stack.StackStatusReason)

			l.Warnf("Stack %s failed to delete: %s", target.StackName, reason)

			return deleteFailedError{StackName: target.StackName, Reason: reason}
		}

		l.Tracef("Stack %s is %s", target.StackName, stack.StackStatus)

		if err := sleep(ctx, engine.PollInterval); err != nil {
			return util.FatalError{Underlying: err}
		}
	}

	return util.FatalError{Underlying: errors.New(DeleteTimeoutError{
		StackName: target.StackName,
		AccountID: target.AccountID,
		Region:    target.Region,
		Polls:     engine.MaxPolls,
	})}
}

// waitForProtectionDisabled polls the stack until it no longer reports termination protection.
func (engine *Engine) waitForProtectionDisabled(ctx context.Context, l log.Logger, target *Target) error {
	for poll := 0; poll < engine.MaxPolls; poll++ {
		stack, err := describeStack(ctx, target.Clients.CloudFormation, target.StackName)
		if err != nil {
			return err
		}

		if stack == nil || !aws.ToBool(stack.EnableTerminationProtection) {
			l.Infof("Disabled termination protection of stack %s", target.StackName)
			return nil
		}

		l.Debugf("Waiting for termination protection of stack %s to be disabled", target.StackName)

		if err := sleep(ctx, engine.PollInterval); err != nil {
			return err
		}
	}

	return errors.Errorf("termination protection of stack %s is still enabled after %d polls", target.StackName, engine.MaxPolls)
}

func (engine *Engine) preCleanup(ctx context.Context, l log.Logger, target *Target, resources []cfntypes.StackResourceSummary) error {
	for _, resource := range resources {
		if aws.ToString(resource.ResourceType) != iamRoleResourceType {
			continue
		}

		roleName := aws.ToString(resource.PhysicalResourceId)
		if roleName == "" || (engine.RolePattern != nil && !engine.RolePattern.MatchString(roleName)) {
			continue
		}

		if err := DetachRolePolicies(ctx, l, target.Clients.IAM, roleName); err != nil {
			return err
		}
	}

	return nil
}

// describeStack returns nil when the stack does not exist.
func describeStack(ctx context.Context, client awshelper.DescribeStacksAPI, name string) (*cfntypes.Stack, error) {
	out, err := client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{StackName: aws.String(name)})
	if err != nil {
		if awshelper.IsStackNotFound(err) {
			return nil, nil
		}

		return nil, errors.Errorf("failed to describe stack %s: %w", name, err)
	}

	if len(out.Stacks) == 0 {
		return nil, nil
	}

	return &out.Stacks[0], nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return errors.New(ctx.Err())
	}
}
