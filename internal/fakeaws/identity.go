package fakeaws

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codecommit"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
	cptypes "github.com/aws/aws-sdk-go-v2/service/codepipeline/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	orgtypes "github.com/aws/aws-sdk-go-v2/service/organizations/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	ststypes "github.com/aws/aws-sdk-go-v2/service/sts/types"
)

// IAM

// Role is a fake IAM role.
type Role struct {
	AttachedPolicies []string
	InlinePolicies   []string
}

// AddRole registers a role with the given managed policy ARNs and inline policy names.
func (cloud *Cloud) AddRole(account, name string, attached, inline []string) *Role {
	cloud.mu.Lock()
	defer cloud.mu.Unlock()

	role := &Role{AttachedPolicies: attached, InlinePolicies: inline}
	cloud.Roles[GlobalKey(account, name)] = role

	return role
}

type iamClient struct {
	*client
}

func (c *iamClient) role(name string) (*Role, error) {
	role, ok := c.cloud.Roles[GlobalKey(c.scope.account, name)]
	if !ok {
		return nil, apiError("NoSuchEntity", "The role with name %s cannot be found.", name)
	}

	return role, nil
}

func (c *iamClient) ListAttachedRolePolicies(_ context.Context, params *iam.ListAttachedRolePoliciesInput, _ ...func(*iam.Options)) (*iam.ListAttachedRolePoliciesOutput, error) {
	name := aws.ToString(params.RoleName)
	defer c.lock("iam", "ListAttachedRolePolicies", name)()

	role, err := c.role(name)
	if err != nil {
		return nil, err
	}

	out := &iam.ListAttachedRolePoliciesOutput{}
	for _, arn := range role.AttachedPolicies {
		out.AttachedPolicies = append(out.AttachedPolicies, iamtypes.AttachedPolicy{PolicyArn: aws.String(arn)})
	}

	return out, nil
}

func (c *iamClient) DetachRolePolicy(_ context.Context, params *iam.DetachRolePolicyInput, _ ...func(*iam.Options)) (*iam.DetachRolePolicyOutput, error) {
	name := aws.ToString(params.RoleName)
	defer c.lock("iam", "DetachRolePolicy", name)()

	role, err := c.role(name)
	if err != nil {
		return nil, err
	}

	role.AttachedPolicies = without(role.AttachedPolicies, aws.ToString(params.PolicyArn))

	return &iam.DetachRolePolicyOutput{}, nil
}

func (c *iamClient) ListRolePolicies(_ context.Context, params *iam.ListRolePoliciesInput, _ ...func(*iam.Options)) (*iam.ListRolePoliciesOutput, error) {
	name := aws.ToString(params.RoleName)
	defer c.lock("iam", "ListRolePolicies", name)()

	role, err := c.role(name)
	if err != nil {
		return nil, err
	}

	return &iam.ListRolePoliciesOutput{PolicyNames: append([]string(nil), role.InlinePolicies...)}, nil
}

func (c *iamClient) DeleteRolePolicy(_ context.Context, params *iam.DeleteRolePolicyInput, _ ...func(*iam.Options)) (*iam.DeleteRolePolicyOutput, error) {
	name := aws.ToString(params.RoleName)
	defer c.lock("iam", "DeleteRolePolicy", name)()

	role, err := c.role(name)
	if err != nil {
		return nil, err
	}

	role.InlinePolicies = without(role.InlinePolicies, aws.ToString(params.PolicyName))

	return &iam.DeleteRolePolicyOutput{}, nil
}

func without(items []string, item string) []string {
	var out []string

	for _, it := range items {
		if it != item {
			out = append(out, it)
		}
	}

	return out
}

// STS

type stsClient struct {
	*client
}

// AssumeRole hands out credentials whose access key encodes the target account.
func (c *stsClient) AssumeRole(_ context.Context, params *sts.AssumeRoleInput, _ ...func(*sts.Options)) (*sts.AssumeRoleOutput, error) {
	roleARN := aws.ToString(params.RoleArn)
	defer c.lock("sts", "AssumeRole", roleARN)()

	account := accountFromRoleARN(roleARN)

	if err, ok := c.cloud.AssumeErrs[account]; ok {
		return nil, err
	}

	return &sts.AssumeRoleOutput{
		Credentials: &ststypes.Credentials{
			AccessKeyId:     aws.String(assumedKeyPrefix + account),
			SecretAccessKey: aws.String("secret"),
			SessionToken:    aws.String("token"),
			Expiration:      aws.Time(time.Now().Add(time.Duration(aws.ToInt32(params.DurationSeconds)) * time.Second)),
		},
	}, nil
}

func (c *stsClient) GetCallerIdentity(_ context.Context, _ *sts.GetCallerIdentityInput, _ ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	defer c.lock("sts", "GetCallerIdentity", "")()

	return &sts.GetCallerIdentityOutput{
		Account: aws.String(c.scope.account),
		Arn:     aws.String("arn:" + c.cloud.Partition + ":sts::" + c.scope.account + ":assumed-role/Admin/teardown"),
	}, nil
}

// accountFromRoleARN parses arn:partition:iam::account:role/name.
func accountFromRoleARN(arn string) string {
	var field, start int

	for i := range len(arn) {
		if arn[i] != ':' {
			continue
		}

		field++

		switch field {
		case 4:
			start = i + 1
		case 5:
			return arn[start:i]
		}
	}

	return ""
}

// Organizations

// Account is a fake organization member.
type Account struct {
	ID     string
	Name   string
	Status orgtypes.AccountStatus
}

type organizationsClient struct {
	*client
}

func (c *organizationsClient) ListAccounts(_ context.Context, params *organizations.ListAccountsInput, _ ...func(*organizations.Options)) (*organizations.ListAccountsOutput, error) {
	defer c.lock("organizations", "ListAccounts", aws.ToString(params.NextToken))()

	start := 0
	if token := aws.ToString(params.NextToken); token != "" {
		start, _ = strconv.Atoi(token)
	}

	end := min(start+c.cloud.OrgPageSize, len(c.cloud.Accounts))
	out := &organizations.ListAccountsOutput{}

	for _, account := range c.cloud.Accounts[start:end] {
		status := account.Status
		if status == "" {
			status = orgtypes.AccountStatusActive
		}

		out.Accounts = append(out.Accounts, orgtypes.Account{
			Id:     aws.String(account.ID),
			Name:   aws.String(account.Name),
			Status: status,
		})
	}

	if end < len(c.cloud.Accounts) {
		out.NextToken = aws.String(strconv.Itoa(end))
	}

	return out, nil
}

// CodePipeline

// Pipeline wraps a pipeline declaration.
type Pipeline struct {
	Declaration *cptypes.PipelineDeclaration
}

// AddPipeline registers a pipeline in the given account and region.
func (cloud *Cloud) AddPipeline(account, region string, decl *cptypes.PipelineDeclaration) {
	cloud.mu.Lock()
	defer cloud.mu.Unlock()

	cloud.Pipelines[ScopedName(account, region, aws.ToString(decl.Name))] = &Pipeline{Declaration: decl}
}

type codePipelineClient struct {
	*client
}

func (c *codePipelineClient) GetPipeline(_ context.Context, params *codepipeline.GetPipelineInput, _ ...func(*codepipeline.Options)) (*codepipeline.GetPipelineOutput, error) {
	name := aws.ToString(params.Name)
	defer c.lock("codepipeline", "GetPipeline", name)()

	pipeline, ok := c.cloud.Pipelines[c.key(name)]
	if !ok {
		return nil, apiError("PipelineNotFoundException", "Account '%s' does not have a pipeline with name '%s'", c.scope.account, name)
	}

	return &codepipeline.GetPipelineOutput{Pipeline: pipeline.Declaration}, nil
}

// CodeCommit

// AddRepository registers a repository holding the given files.
func (cloud *Cloud) AddRepository(account, region, name string, files map[string][]byte) {
	cloud.mu.Lock()
	defer cloud.mu.Unlock()

	cloud.Repos[ScopedName(account, region, name)] = true

	for path, body := range files {
		cloud.Files["codecommit://"+ScopedName(account, region, name)+"/"+path] = body
	}
}

// RepositoryExists returns true if the repository has not been deleted.
func (cloud *Cloud) RepositoryExists(account, region, name string) bool {
	cloud.mu.Lock()
	defer cloud.mu.Unlock()

	return cloud.Repos[ScopedName(account, region, name)]
}

type codeCommitClient struct {
	*client
}

func (c *codeCommitClient) GetFile(_ context.Context, params *codecommit.GetFileInput, _ ...func(*codecommit.Options)) (*codecommit.GetFileOutput, error) {
	repo := aws.ToString(params.RepositoryName)
	path := aws.ToString(params.FilePath)
	defer c.lock("codecommit", "GetFile", repo+"/"+path)()

	if !c.cloud.Repos[c.key(repo)] {
		return nil, apiError("RepositoryDoesNotExistException", "%s does not exist", repo)
	}

	body, ok := c.cloud.Files["codecommit://"+c.key(repo)+"/"+path]
	if !ok {
		return nil, apiError("FileDoesNotExistException", "%s does not exist", path)
	}

	return &codecommit.GetFileOutput{FileContent: body, FilePath: aws.String(path)}, nil
}

func (c *codeCommitClient) DeleteRepository(_ context.Context, params *codecommit.DeleteRepositoryInput, _ ...func(*codecommit.Options)) (*codecommit.DeleteRepositoryOutput, error) {
	repo := aws.ToString(params.RepositoryName)
	defer c.lock("codecommit", "DeleteRepository", repo)()

	if !c.cloud.Repos[c.key(repo)] {
		return &codecommit.DeleteRepositoryOutput{}, nil
	}

	delete(c.cloud.Repos, c.key(repo))

	return &codecommit.DeleteRepositoryOutput{RepositoryId: aws.String(repo)}, nil
}
