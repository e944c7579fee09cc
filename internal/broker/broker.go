// Package broker hands out credential-scoped AWS configs per (account, region).
//
// Nothing here touches the process environment: every config carries its own credentials, so a
// client built for one account can never pick up another account's identity.
package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/gruntwork-io/lz-teardown/internal/awshelper"
	"github.com/gruntwork-io/lz-teardown/internal/errors"
	"github.com/gruntwork-io/lz-teardown/pkg/log"
)

// expiryMargin is how long before expiry a cached session is considered stale.
const expiryMargin = 5 * time.Minute

// ManagementAccountContext identifies the home identity of the pipeline.
type ManagementAccountContext struct {
	Credentials    *awshelper.TemporaryCredentials
	AccountID      string
	AssumeRoleName string
	// External is true when the teardown runs from a delegated account and has to assume into management.
	External bool
}

// Broker assumes roles on behalf of the teardown and caches the resulting sessions.
type Broker struct {
	factory     awshelper.ClientFactory
	sessions    *xsync.MapOf[string, *awshelper.TemporaryCredentials]
	now         func() time.Time
	base        aws.Config
	caller      *awshelper.CallerIdentity
	partition   string
	sessionName string
	duration    time.Duration
	callerMu    sync.Mutex
}

// Option configures a Broker.
type Option func(*Broker)

func WithPartition(partition string) Option {
	return func(b *Broker) {
		b.partition = partition
	}
}

func WithSessionName(name string) Option {
	return func(b *Broker) {
		b.sessionName = name
	}
}

func WithSessionDuration(duration time.Duration) Option {
	return func(b *Broker) {
		b.duration = duration
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *Broker) {
		b.now = now
	}
}

// New returns a broker that assumes roles with the identity carried by base.
//
//nolint:gocritic // hugeParam: aws.Config is passed by value throughout the SDK
func New(base aws.Config, factory awshelper.ClientFactory, opts ...Option) *Broker {
	b := &Broker{
		factory:  factory,
		sessions: xsync.NewMapOf[string, *awshelper.TemporaryCredentials](),
		now:      time.Now,
		base:     base,
		duration: time.Duration(awshelper.DefaultAssumeRoleDuration) * time.Second,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// CallerIdentity returns the identity the teardown runs as.
func (b *Broker) CallerIdentity(ctx context.Context) (*awshelper.CallerIdentity, error) {
	b.callerMu.Lock()
	defer b.callerMu.Unlock()

	if b.caller != nil {
		return b.caller, nil
	}

	identity, err := awshelper.GetAWSCallerIdentity(ctx, b.factory.STS(b.base))
	if err != nil {
		return nil, err
	}

	if b.partition == "" {
		b.partition = identity.Partition
	}

	b.caller = identity

	return identity, nil
}

// Partition returns the partition used to format role ARNs.
func (b *Broker) Partition() string {
	if b.partition == "" {
		return "aws"
	}

	return b.partition
}

// Assume returns temporary credentials for roleName in accountID, reusing a live cached session.
func (b *Broker) Assume(ctx context.Context, l log.Logger, accountID, roleName, region string) (*awshelper.TemporaryCredentials, error) {
	key := sessionKey(accountID, roleName)

	if creds, ok := b.sessions.Load(key); ok && !creds.Expired(b.now(), expiryMargin) {
		return creds, nil
	}

	roleARN := awshelper.RoleARN(b.Partition(), accountID, roleName)

	l.Debugf("Assuming role %s", roleARN)

	base := b.base.Copy()
	if region != "" {
		base.Region = region
	}

	creds, err := awshelper.AssumeIamRole(ctx, b.factory.STS(base), awshelper.RoleOptions{
		RoleARN:     roleARN,
		SessionName: b.sessionName,
		Duration:    b.duration,
	})
	if err != nil {
		return nil, errors.New(AssumeRoleError{AccountID: accountID, RoleName: roleName, Region: region, Err: err})
	}

	b.sessions.Store(key, creds)

	return creds, nil
}

// Config returns an AWS config scoped to accountID and region. The caller's own account is served
// from the base identity, every other account through an assumed role.
func (b *Broker) Config(ctx context.Context, l log.Logger, accountID, roleName, region string) (aws.Config, error) {
	identity, err := b.CallerIdentity(ctx)
	if err != nil {
		return aws.Config{}, err
	}

	if accountID == identity.AccountID {
		cfg := b.base.Copy()
		cfg.Region = region

		return cfg, nil
	}

	creds, err := b.Assume(ctx, l, accountID, roleName, region)
	if err != nil {
		return aws.Config{}, err
	}

	return awshelper.NewAWSConfigBuilder().
		WithRegion(region).
		WithCredentials(creds).
		Build(ctx, l)
}

// Clients returns the client set for one (account, region) pair.
func (b *Broker) Clients(ctx context.Context, l log.Logger, accountID, roleName, region string) (*awshelper.Clients, error) {
	cfg, err := b.Config(ctx, l, accountID, roleName, region)
	if err != nil {
		return nil, err
	}

	return b.factory.Clients(cfg), nil
}

// ResolveManagement works out whether the teardown runs inside the management account. When it does
// not, the management role is assumed once and the returned config carries that session.
func (b *Broker) ResolveManagement(ctx context.Context, l log.Logger, accountID, roleName, region string) (*ManagementAccountContext, aws.Config, error) {
	identity, err := b.CallerIdentity(ctx)
	if err != nil {
		return nil, aws.Config{}, err
	}

	mgmt := &ManagementAccountContext{
		AccountID:      accountID,
		AssumeRoleName: roleName,
	}

	if accountID == "" || accountID == identity.AccountID {
		mgmt.AccountID = identity.AccountID

		cfg := b.base.Copy()
		cfg.Region = region

		return mgmt, cfg, nil
	}

	l.Infof("Running from external account %s, assuming %s in management account %s", identity.AccountID, roleName, accountID)

	creds, err := b.Assume(ctx, l, accountID, roleName, region)
	if err != nil {
		return nil, aws.Config{}, err
	}

	mgmt.External = true
	mgmt.Credentials = creds

	cfg, err := awshelper.NewAWSConfigBuilder().
		WithRegion(region).
		WithCredentials(creds).
		Build(ctx, l)
	if err != nil {
		return nil, aws.Config{}, err
	}

	return mgmt, cfg, nil
}

// Reset drops every cached session.
func (b *Broker) Reset() {
	b.sessions.Clear()
}

// Sessions returns the number of cached sessions.
func (b *Broker) Sessions() int {
	return b.sessions.Size()
}

func sessionKey(accountID, roleName string) string {
	return fmt.Sprintf("%s/%s", accountID, roleName)
}
