// Package fakeaws is an in-memory landing zone used by tests. It implements every narrow API
// interface of awshelper, scopes each client to the (account, region) its config resolves to and
// records every call in order.
package fakeaws

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/smithy-go"

	"github.com/gruntwork-io/lz-teardown/internal/awshelper"
)

const assumedKeyPrefix = "ASIAFAKE"

// Call is one recorded API call.
type Call struct {
	Service   string
	Operation string
	Account   string
	Region    string
	Target    string
	Seq       int
}

func (call Call) String() string {
	return fmt.Sprintf("%s:%s %s/%s %s", call.Service, call.Operation, call.Account, call.Region, call.Target)
}

// Cloud holds the state of every fake account and region.
type Cloud struct {
	Stacks     map[string]*Stack
	Buckets    map[string]*Bucket
	LogGroups  map[string]bool
	Keys       map[string]*Key
	Vaults     map[string]bool
	Tables     map[string]bool
	Roles      map[string]*Role
	Pipelines  map[string]*Pipeline
	Files      map[string][]byte
	Repos      map[string]bool
	AssumeErrs map[string]error

	CallerAccount string
	Partition     string
	Accounts      []Account

	// S3PageSize caps ListObjectVersions pages, OrgPageSize caps ListAccounts pages.
	S3PageSize  int
	OrgPageSize int

	calls []Call
	mu    sync.Mutex
}

// New returns an empty cloud where the caller runs in callerAccount.
func New(callerAccount string) *Cloud {
	return &Cloud{
		Stacks:        make(map[string]*Stack),
		Buckets:       make(map[string]*Bucket),
		LogGroups:     make(map[string]bool),
		Keys:          make(map[string]*Key),
		Vaults:        make(map[string]bool),
		Tables:        make(map[string]bool),
		Roles:         make(map[string]*Role),
		Pipelines:     make(map[string]*Pipeline),
		Files:         make(map[string][]byte),
		Repos:         make(map[string]bool),
		AssumeErrs:    make(map[string]error),
		CallerAccount: callerAccount,
		Partition:     "aws",
		S3PageSize:    1000,
		OrgPageSize:   20,
	}
}

// ScopedName joins the scope of a regional resource.
func ScopedName(account, region, name string) string {
	return account + "/" + region + "/" + name
}

// GlobalKey joins the scope of an account-wide resource such as an IAM role.
func GlobalKey(account, name string) string {
	return account + "/" + name
}

// Calls returns a copy of the recorded calls.
func (cloud *Cloud) Calls() []Call {
	cloud.mu.Lock()
	defer cloud.mu.Unlock()

	return append([]Call(nil), cloud.calls...)
}

// CallsTo returns the recorded calls of one operation.
func (cloud *Cloud) CallsTo(operation string) []Call {
	var calls []Call

	for _, call := range cloud.Calls() {
		if call.Operation == operation {
			calls = append(calls, call)
		}
	}

	return calls
}

// CountCalls returns how many times operation was called against target.
func (cloud *Cloud) CountCalls(operation, target string) int {
	var count int

	for _, call := range cloud.CallsTo(operation) {
		if target == "" || call.Target == target {
			count++
		}
	}

	return count
}

// FirstCall returns the sequence number of the first matching call, or -1.
func (cloud *Cloud) FirstCall(operation, target string) int {
	for _, call := range cloud.CallsTo(operation) {
		if call.Target == target {
			return call.Seq
		}
	}

	return -1
}

// LastCall returns the sequence number of the last matching call, or -1.
func (cloud *Cloud) LastCall(operation, target string) int {
	seq := -1

	for _, call := range cloud.CallsTo(operation) {
		if call.Target == target {
			seq = call.Seq
		}
	}

	return seq
}

// record must be called with the lock held.
func (cloud *Cloud) record(scope scope, service, operation, target string) {
	cloud.calls = append(cloud.calls, Call{
		Seq:       len(cloud.calls),
		Service:   service,
		Operation: operation,
		Account:   scope.account,
		Region:    scope.region,
		Target:    target,
	})
}

func apiError(code, format string, args ...any) error {
	return &smithy.GenericAPIError{Code: code, Message: fmt.Sprintf(format, args...)}
}

type scope struct {
	account string
	region  string
}

// Factory implements awshelper.ClientFactory over the cloud.
func (cloud *Cloud) Factory() awshelper.ClientFactory {
	return factory{cloud: cloud}
}

type factory struct {
	cloud *Cloud
}

//nolint:gocritic
func (f factory) scope(cfg aws.Config) scope {
	account := f.cloud.CallerAccount

	if cfg.Credentials != nil {
		if creds, err := cfg.Credentials.Retrieve(context.Background()); err == nil && strings.HasPrefix(creds.AccessKeyID, assumedKeyPrefix) {
			account = strings.TrimPrefix(creds.AccessKeyID, assumedKeyPrefix)
		}
	}

	return scope{account: account, region: cfg.Region}
}

//nolint:gocritic
func (f factory) Clients(cfg aws.Config) *awshelper.Clients {
	c := &client{cloud: f.cloud, scope: f.scope(cfg)}

	return &awshelper.Clients{
		CloudFormation: &cloudFormationClient{c},
		S3:             &s3Client{c},
		Logs:           &logsClient{c},
		KMS:            &kmsClient{c},
		Backup:         &backupClient{c},
		DynamoDB:       &dynamoDBClient{c},
		IAM:            &iamClient{c},
	}
}

//nolint:gocritic
func (f factory) ControlClients(cfg aws.Config) *awshelper.ControlClients {
	c := &client{cloud: f.cloud, scope: f.scope(cfg)}

	return &awshelper.ControlClients{
		STS:           &stsClient{c},
		Organizations: &organizationsClient{c},
		CodePipeline:  &codePipelineClient{c},
		CodeCommit:    &codeCommitClient{c},
		S3:            &s3Client{c},
	}
}

//nolint:gocritic
func (f factory) STS(cfg aws.Config) awshelper.STSAPI {
	return &stsClient{&client{cloud: f.cloud, scope: f.scope(cfg)}}
}

// client is the scoped base every fake service client embeds.
type client struct {
	cloud *Cloud
	scope scope
}

func (c *client) lock(service, operation, target string) func() {
	c.cloud.mu.Lock()
	c.cloud.record(c.scope, service, operation, target)

	return c.cloud.mu.Unlock
}

func (c *client) key(name string) string {
	return ScopedName(c.scope.account, c.scope.region, name)
}
