// Package awshelper provides helper functions for working with AWS services.
package awshelper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/gruntwork-io/go-commons/version"

	"github.com/gruntwork-io/lz-teardown/internal/errors"
	"github.com/gruntwork-io/lz-teardown/pkg/log"
)

const (
	// DefaultAssumeRoleDuration is the session length, in seconds, requested for every assumed role.
	DefaultAssumeRoleDuration = 3600

	// DefaultMaxAttempts bounds the SDK retryer for throttled and transient calls.
	DefaultMaxAttempts = 10

	// DefaultMaxBackoff caps the exponential backoff between SDK retries.
	DefaultMaxBackoff = 60 * time.Second

	DefaultRegion = "us-east-1"

	// Minimum ARN parts required for a valid ARN
	minARNParts = 5
)

// TemporaryCredentials is a credential set scoped to one assumed-role session.
type TemporaryCredentials struct {
	Expiration      time.Time
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// Provider returns a static provider serving these credentials.
func (creds *TemporaryCredentials) Provider() aws.CredentialsProvider {
	return credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken)
}

// Expired returns true if the session ends before now plus the given margin.
func (creds *TemporaryCredentials) Expired(now time.Time, margin time.Duration) bool {
	if creds.Expiration.IsZero() {
		return false
	}

	return !now.Add(margin).Before(creds.Expiration)
}

// AWSConfigBuilder builds an AWS config using the builder pattern.
// Use NewAWSConfigBuilder to create, chain With* methods for optional parameters, then call Build().
type AWSConfigBuilder struct {
	env         map[string]string
	creds       *TemporaryCredentials
	region      string
	maxAttempts int
	maxBackoff  time.Duration
}

// NewAWSConfigBuilder creates a new builder for AWS config.
func NewAWSConfigBuilder() *AWSConfigBuilder {
	return &AWSConfigBuilder{
		env:         make(map[string]string),
		maxAttempts: DefaultMaxAttempts,
		maxBackoff:  DefaultMaxBackoff,
	}
}

// WithEnv sets environment variables used for credential and region resolution.
func (b *AWSConfigBuilder) WithEnv(env map[string]string) *AWSConfigBuilder {
	b.env = env
	return b
}

// WithRegion pins the region of the resulting config.
func (b *AWSConfigBuilder) WithRegion(region string) *AWSConfigBuilder {
	b.region = region
	return b
}

// WithCredentials makes the config use the given assumed-role credentials instead of the default chain.
func (b *AWSConfigBuilder) WithCredentials(creds *TemporaryCredentials) *AWSConfigBuilder {
	b.creds = creds
	return b
}

// WithRetry overrides the SDK retryer bounds.
func (b *AWSConfigBuilder) WithRetry(maxAttempts int, maxBackoff time.Duration) *AWSConfigBuilder {
	b.maxAttempts = maxAttempts
	b.maxBackoff = maxBackoff

	return b
}

// Build creates the AWS config from the builder's configuration.
func (b *AWSConfigBuilder) Build(ctx context.Context, l log.Logger) (aws.Config, error) {
	var configOptions []func(*config.LoadOptions) error

	configOptions = append(configOptions, config.WithAppID("lz-teardown/"+version.GetVersion()))

	switch {
	case b.creds != nil:
		configOptions = append(configOptions, config.WithCredentialsProvider(b.creds.Provider()))
	case createCredentialsFromEnv(b.env) != nil:
		l.Debugf("Using AWS credentials from environment")

		configOptions = append(configOptions, config.WithCredentialsProvider(createCredentialsFromEnv(b.env)))
	}

	region := b.region
	if region == "" {
		region = getRegionFromEnv(b.env)
	}

	if region == "" {
		region = DefaultRegion
	}

	configOptions = append(configOptions, config.WithRegion(region))

	maxAttempts, maxBackoff := b.maxAttempts, b.maxBackoff

	configOptions = append(configOptions, config.WithRetryer(func() aws.Retryer {
		var retryer aws.Retryer = retry.NewStandard()

		if maxAttempts > 0 {
			retryer = retry.AddWithMaxAttempts(retryer, maxAttempts)
		}

		if maxBackoff > 0 {
			retryer = retry.AddWithMaxBackoffDelay(retryer, maxBackoff)
		}

		return retryer
	}))

	cfg, err := config.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return aws.Config{}, errors.Errorf("Error loading AWS config: %w", err)
	}

	return cfg, nil
}

// RoleOptions describes one role assumption.
type RoleOptions struct {
	RoleARN     string
	SessionName string
	Duration    time.Duration
}

// AssumeIamRole assumes an IAM role and returns the credentials.
func AssumeIamRole(ctx context.Context, client AssumeRoleAPI, opts RoleOptions) (*TemporaryCredentials, error) {
	sessionName := opts.SessionName
	if sessionName == "" {
		sessionName = DefaultSessionName()
	}

	duration := time.Duration(DefaultAssumeRoleDuration) * time.Second
	if opts.Duration > 0 {
		duration = opts.Duration
	}

	result, err := client.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(opts.RoleARN),
		RoleSessionName: aws.String(sessionName),
		DurationSeconds: aws.Int32(int32(duration.Seconds())),
	})
	if err != nil {
		return nil, errors.Errorf("Error assuming role %s: %w", opts.RoleARN, err)
	}

	if result.Credentials == nil {
		return nil, errors.Errorf("Empty credentials returned when assuming role %s", opts.RoleARN)
	}

	return &TemporaryCredentials{
		AccessKeyID:     aws.ToString(result.Credentials.AccessKeyId),
		SecretAccessKey: aws.ToString(result.Credentials.SecretAccessKey),
		SessionToken:    aws.ToString(result.Credentials.SessionToken),
		Expiration:      aws.ToTime(result.Credentials.Expiration),
	}, nil
}

// DefaultSessionName returns a unique role session name.
func DefaultSessionName() string {
	return fmt.Sprintf("lz-teardown-%d", time.Now().UTC().UnixNano())
}

// RoleARN formats the ARN of a role in the given account.
func RoleARN(partition, accountID, roleName string) string {
	if partition == "" {
		partition = "aws"
	}

	return fmt.Sprintf("arn:%s:iam::%s:role/%s", partition, accountID, roleName)
}

// CallerIdentity is the subset of sts:GetCallerIdentity the teardown relies on.
type CallerIdentity struct {
	AccountID string
	ARN       string
	Partition string
}

// GetAWSCallerIdentity gets the caller identity from AWS
func GetAWSCallerIdentity(ctx context.Context, client GetCallerIdentityAPI) (*CallerIdentity, error) {
	result, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, errors.Errorf("Error getting caller identity: %w", err)
	}

	arn := aws.ToString(result.Arn)

	partition, err := PartitionFromARN(arn)
	if err != nil {
		return nil, err
	}

	return &CallerIdentity{
		AccountID: aws.ToString(result.Account),
		ARN:       arn,
		Partition: partition,
	}, nil
}

// PartitionFromARN extracts the partition field of an ARN.
func PartitionFromARN(arn string) (string, error) {
	if arn == "" {
		return "", errors.New("Empty ARN returned from GetCallerIdentity")
	}

	// ARN format: arn:partition:service:region:account:resource
	parts := strings.Split(arn, ":")
	if len(parts) < minARNParts || parts[0] != "arn" {
		return "", errors.Errorf("Invalid ARN format: %s", arn)
	}

	return parts[1], nil
}

// getRegionFromEnv extracts region from environment variables.
func getRegionFromEnv(env map[string]string) string {
	if len(env) == 0 {
		return ""
	}

	if region := env["AWS_REGION"]; region != "" {
		return region
	}

	return env["AWS_DEFAULT_REGION"]
}

// createCredentialsFromEnv creates AWS credentials from environment variables.
func createCredentialsFromEnv(env map[string]string) aws.CredentialsProvider {
	if len(env) == 0 {
		return nil
	}

	accessKeyID := env["AWS_ACCESS_KEY_ID"]
	secretAccessKey := env["AWS_SECRET_ACCESS_KEY"]
	sessionToken := env["AWS_SESSION_TOKEN"]

	// If we don't have at least access key and secret key, return nil
	if accessKeyID == "" || secretAccessKey == "" {
		return nil
	}

	return credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, sessionToken)
}
