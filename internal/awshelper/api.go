package awshelper

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/backup"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/codecommit"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Each interface below wraps exactly one SDK method so tests can fake the calls a component makes.

// CloudFormation

type DescribeStacksAPI interface {
	DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
}

type DeleteStackAPI interface {
	DeleteStack(ctx context.Context, params *cloudformation.DeleteStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DeleteStackOutput, error)
}

type UpdateTerminationProtectionAPI interface {
	UpdateTerminationProtection(ctx context.Context, params *cloudformation.UpdateTerminationProtectionInput, optFns ...func(*cloudformation.Options)) (*cloudformation.UpdateTerminationProtectionOutput, error)
}

type ListStackResourcesAPI interface {
	ListStackResources(ctx context.Context, params *cloudformation.ListStackResourcesInput, optFns ...func(*cloudformation.Options)) (*cloudformation.ListStackResourcesOutput, error)
}

// CloudFormationAPI is the stack-management surface used by the deletion engine.
type CloudFormationAPI interface {
	DescribeStacksAPI
	DeleteStackAPI
	UpdateTerminationProtectionAPI
	ListStackResourcesAPI
}

// S3

type ListObjectVersionsAPI interface {
	ListObjectVersions(ctx context.Context, params *s3.ListObjectVersionsInput, optFns ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error)
}

type DeleteObjectsAPI interface {
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

type DeleteBucketAPI interface {
	DeleteBucket(ctx context.Context, params *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error)
}

type GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3API is the object-store surface used by the bucket purge.
type S3API interface {
	ListObjectVersionsAPI
	DeleteObjectsAPI
	DeleteBucketAPI
}

// CloudWatch Logs

type DeleteLogGroupAPI interface {
	DeleteLogGroup(ctx context.Context, params *cloudwatchlogs.DeleteLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DeleteLogGroupOutput, error)
}

type DescribeLogGroupsAPI interface {
	DescribeLogGroups(ctx context.Context, params *cloudwatchlogs.DescribeLogGroupsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogGroupsOutput, error)
}

// LogsAPI is the log-management surface used by the reaper and the sweep.
type LogsAPI interface {
	DeleteLogGroupAPI
	DescribeLogGroupsAPI
}

// KMS

type DescribeKeyAPI interface {
	DescribeKey(ctx context.Context, params *kms.DescribeKeyInput, optFns ...func(*kms.Options)) (*kms.DescribeKeyOutput, error)
}

type DisableKeyAPI interface {
	DisableKey(ctx context.Context, params *kms.DisableKeyInput, optFns ...func(*kms.Options)) (*kms.DisableKeyOutput, error)
}

type ScheduleKeyDeletionAPI interface {
	ScheduleKeyDeletion(ctx context.Context, params *kms.ScheduleKeyDeletionInput, optFns ...func(*kms.Options)) (*kms.ScheduleKeyDeletionOutput, error)
}

// KMSAPI is the key-management surface used by the reaper.
type KMSAPI interface {
	DescribeKeyAPI
	DisableKeyAPI
	ScheduleKeyDeletionAPI
}

// Backup

type DeleteBackupVaultAPI interface {
	DeleteBackupVault(ctx context.Context, params *backup.DeleteBackupVaultInput, optFns ...func(*backup.Options)) (*backup.DeleteBackupVaultOutput, error)
}

// DynamoDB

type DeleteTableAPI interface {
	DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error)
}

// IAM

type ListAttachedRolePoliciesAPI interface {
	ListAttachedRolePolicies(ctx context.Context, params *iam.ListAttachedRolePoliciesInput, optFns ...func(*iam.Options)) (*iam.ListAttachedRolePoliciesOutput, error)
}

type DetachRolePolicyAPI interface {
	DetachRolePolicy(ctx context.Context, params *iam.DetachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.DetachRolePolicyOutput, error)
}

type ListRolePoliciesAPI interface {
	ListRolePolicies(ctx context.Context, params *iam.ListRolePoliciesInput, optFns ...func(*iam.Options)) (*iam.ListRolePoliciesOutput, error)
}

type DeleteRolePolicyAPI interface {
	DeleteRolePolicy(ctx context.Context, params *iam.DeleteRolePolicyInput, optFns ...func(*iam.Options)) (*iam.DeleteRolePolicyOutput, error)
}

// IAMAPI is the role-policy surface used by the pre-cleanup.
type IAMAPI interface {
	ListAttachedRolePoliciesAPI
	DetachRolePolicyAPI
	ListRolePoliciesAPI
	DeleteRolePolicyAPI
}

// STS

type AssumeRoleAPI interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

type GetCallerIdentityAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// STSAPI is the identity surface used by the credential broker.
type STSAPI interface {
	AssumeRoleAPI
	GetCallerIdentityAPI
}

// Organizations

type ListAccountsAPI interface {
	ListAccounts(ctx context.Context, params *organizations.ListAccountsInput, optFns ...func(*organizations.Options)) (*organizations.ListAccountsOutput, error)
}

// CodePipeline

type GetPipelineAPI interface {
	GetPipeline(ctx context.Context, params *codepipeline.GetPipelineInput, optFns ...func(*codepipeline.Options)) (*codepipeline.GetPipelineOutput, error)
}

// CodeCommit

type GetFileAPI interface {
	GetFile(ctx context.Context, params *codecommit.GetFileInput, optFns ...func(*codecommit.Options)) (*codecommit.GetFileOutput, error)
}

type DeleteRepositoryAPI interface {
	DeleteRepository(ctx context.Context, params *codecommit.DeleteRepositoryInput, optFns ...func(*codecommit.Options)) (*codecommit.DeleteRepositoryOutput, error)
}

var (
	_ CloudFormationAPI    = (*cloudformation.Client)(nil)
	_ S3API                = (*s3.Client)(nil)
	_ GetObjectAPI         = (*s3.Client)(nil)
	_ LogsAPI              = (*cloudwatchlogs.Client)(nil)
	_ KMSAPI               = (*kms.Client)(nil)
	_ DeleteBackupVaultAPI = (*backup.Client)(nil)
	_ DeleteTableAPI       = (*dynamodb.Client)(nil)
	_ IAMAPI               = (*iam.Client)(nil)
	_ STSAPI               = (*sts.Client)(nil)
	_ ListAccountsAPI      = (*organizations.Client)(nil)
	_ GetPipelineAPI       = (*codepipeline.Client)(nil)
	_ GetFileAPI           = (*codecommit.Client)(nil)
	_ DeleteRepositoryAPI  = (*codecommit.Client)(nil)
)
