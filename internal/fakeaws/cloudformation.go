package fakeaws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
)

// Stack is a fake CloudFormation stack.
type Stack struct {
	Name   string
	Status cfntypes.StackStatus

	Resources []cfntypes.StackResourceSummary

	// FailDeletes is the number of delete attempts that end in DELETE_FAILED.
	FailDeletes int
	// InProgressPolls is the number of describes answering DELETE_IN_PROGRESS after each delete.
	InProgressPolls int
	// BlockingBucket makes every delete fail while the bucket (same account and region) still exists.
	BlockingBucket string

	// ProtectionLagPolls is the number of describes still answering the previous termination protection
	// after an update.
	ProtectionLagPolls int

	TerminationProtection bool
	Deleted               bool

	pendingPolls        int
	protectionPolls     int
	protectionPending   bool
	requestedProtection bool
}

// AddStack registers a stack in CREATE_COMPLETE.
func (cloud *Cloud) AddStack(account, region string, stack *Stack) *Stack {
	cloud.mu.Lock()
	defer cloud.mu.Unlock()

	if stack.Status == "" {
		stack.Status = cfntypes.StackStatusCreateComplete
	}

	cloud.Stacks[ScopedName(account, region, stack.Name)] = stack

	return stack
}

// StackExists returns true if the stack is present and not deleted.
func (cloud *Cloud) StackExists(account, region, name string) bool {
	cloud.mu.Lock()
	defer cloud.mu.Unlock()

	stack, ok := cloud.Stacks[ScopedName(account, region, name)]

	return ok && !stack.Deleted
}

// Resource builds a stack resource summary.
func Resource(resourceType, logicalID, physicalID string) cfntypes.StackResourceSummary {
	return cfntypes.StackResourceSummary{
		ResourceType:       aws.String(resourceType),
		LogicalResourceId:  aws.String(logicalID),
		PhysicalResourceId: aws.String(physicalID),
		ResourceStatus:     cfntypes.ResourceStatusCreateComplete,
	}
}

type cloudFormationClient struct {
	*client
}

func (c *cloudFormationClient) stack(name string) (*Stack, error) {
	stack, ok := c.cloud.Stacks[c.key(name)]
	if !ok || stack.Deleted {
		return nil, apiError("ValidationError", "Stack with id %s does not exist", name)
	}

	return stack, nil
}

func (c *cloudFormationClient) DescribeStacks(_ context.Context, params *cloudformation.DescribeStacksInput, _ ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error) {
	name := aws.ToString(params.StackName)
	defer c.lock("cloudformation", "DescribeStacks", name)()

	stack, err := c.stack(name)
	if err != nil {
		return nil, err
	}

	if stack.protectionPending {
		if stack.protectionPolls > 0 {
			stack.protectionPolls--
		} else {
			stack.TerminationProtection = stack.requestedProtection
			stack.protectionPending = false
		}
	}

	if stack.Status == cfntypes.StackStatusDeleteInProgress {
		switch {
		case stack.pendingPolls > 0:
			stack.pendingPolls--
		case stack.FailDeletes > 0 || c.blocked(stack):
			if stack.FailDeletes > 0 {
				stack.FailDeletes--
			}

			stack.Status = cfntypes.StackStatusDeleteFailed
		default:
			stack.Status = cfntypes.StackStatusDeleteComplete
			stack.Deleted = true
		}
	}

	return &cloudformation.DescribeStacksOutput{
		Stacks: []cfntypes.Stack{{
			StackName:                   aws.String(stack.Name),
			StackStatus:                 stack.Status,
			StackStatusReason:           aws.String(string(stack.Status)),
			EnableTerminationProtection: aws.Bool(stack.TerminationProtection),
		}},
	}, nil
}

func (c *cloudFormationClient) blocked(stack *Stack) bool {
	if stack.BlockingBucket == "" {
		return false
	}

	_, ok := c.cloud.Buckets[c.key(stack.BlockingBucket)]

	return ok
}

func (c *cloudFormationClient) DeleteStack(_ context.Context, params *cloudformation.DeleteStackInput, _ ...func(*cloudformation.Options)) (*cloudformation.DeleteStackOutput, error) {
	name := aws.ToString(params.StackName)
	defer c.lock("cloudformation", "DeleteStack", name)()

	stack, ok := c.cloud.Stacks[c.key(name)]
	if !ok || stack.Deleted {
		return &cloudformation.DeleteStackOutput{}, nil
	}

	if stack.TerminationProtection {
		return nil, apiError("ValidationError", "Stack [%s] cannot be deleted while TerminationProtection is enabled", name)
	}

	stack.Status = cfntypes.StackStatusDeleteInProgress
	stack.pendingPolls = stack.InProgressPolls

	return &cloudformation.DeleteStackOutput{}, nil
}

func (c *cloudFormationClient) UpdateTerminationProtection(_ context.Context, params *cloudformation.UpdateTerminationProtectionInput, _ ...func(*cloudformation.Options)) (*cloudformation.UpdateTerminationProtectionOutput, error) {
	name := aws.ToString(params.StackName)
	defer c.lock("cloudformation", "UpdateTerminationProtection", name)()

	stack, err := c.stack(name)
	if err != nil {
		return nil, err
	}

	if stack.ProtectionLagPolls > 0 {
		stack.protectionPending = true
		stack.protectionPolls = stack.ProtectionLagPolls
		stack.requestedProtection = aws.ToBool(params.EnableTerminationProtection)
	} else {
		stack.TerminationProtection = aws.ToBool(params.EnableTerminationProtection)
	}

	return &cloudformation.UpdateTerminationProtectionOutput{StackId: aws.String(name)}, nil
}

func (c *cloudFormationClient) ListStackResources(_ context.Context, params *cloudformation.ListStackResourcesInput, _ ...func(*cloudformation.Options)) (*cloudformation.ListStackResourcesOutput, error) {
	name := aws.ToString(params.StackName)
	defer c.lock("cloudformation", "ListStackResources", name)()

	stack, err := c.stack(name)
	if err != nil {
		return nil, err
	}

	return &cloudformation.ListStackResourcesOutput{
		StackResourceSummaries: append([]cfntypes.StackResourceSummary(nil), stack.Resources...),
	}, nil
}
