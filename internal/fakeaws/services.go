package fakeaws

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/backup"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwltypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
)

func newBody(body []byte) io.ReadCloser {
	return io.NopCloser(bytes.NewReader(body))
}

// CloudWatch Logs

// AddLogGroup registers a log group.
func (cloud *Cloud) AddLogGroup(account, region, name string) {
	cloud.mu.Lock()
	defer cloud.mu.Unlock()

	cloud.LogGroups[ScopedName(account, region, name)] = true
}

// LogGroupExists returns true if the log group has not been deleted.
func (cloud *Cloud) LogGroupExists(account, region, name string) bool {
	cloud.mu.Lock()
	defer cloud.mu.Unlock()

	return cloud.LogGroups[ScopedName(account, region, name)]
}

type logsClient struct {
	*client
}

func (c *logsClient) DeleteLogGroup(_ context.Context, params *cloudwatchlogs.DeleteLogGroupInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DeleteLogGroupOutput, error) {
	name := aws.ToString(params.LogGroupName)
	defer c.lock("logs", "DeleteLogGroup", name)()

	if !c.cloud.LogGroups[c.key(name)] {
		return nil, apiError("ResourceNotFoundException", "The specified log group does not exist.")
	}

	delete(c.cloud.LogGroups, c.key(name))

	return &cloudwatchlogs.DeleteLogGroupOutput{}, nil
}

// DescribeLogGroups pages one log group at a time to exercise pagination.
func (c *logsClient) DescribeLogGroups(_ context.Context, params *cloudwatchlogs.DescribeLogGroupsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogGroupsOutput, error) {
	prefix := aws.ToString(params.LogGroupNamePrefix)
	defer c.lock("logs", "DescribeLogGroups", prefix)()

	scopePrefix := c.key("")

	var names []string

	for key := range c.cloud.LogGroups {
		if name, ok := strings.CutPrefix(key, scopePrefix); ok && strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}

	sort.Strings(names)

	start := 0
	if token := aws.ToString(params.NextToken); token != "" {
		start, _ = strconv.Atoi(token)
	}

	out := &cloudwatchlogs.DescribeLogGroupsOutput{}

	if start < len(names) {
		out.LogGroups = []cwltypes.LogGroup{{LogGroupName: aws.String(names[start])}}

		if start+1 < len(names) {
			out.NextToken = aws.String(strconv.Itoa(start + 1))
		}
	}

	return out, nil
}

// KMS

// Key is a fake KMS key.
type Key struct {
	State         kmstypes.KeyState
	Manager       kmstypes.KeyManagerType
	PendingWindow int32
}

// AddKey registers an enabled customer managed key.
func (cloud *Cloud) AddKey(account, region, id string) *Key {
	cloud.mu.Lock()
	defer cloud.mu.Unlock()

	key := &Key{State: kmstypes.KeyStateEnabled, Manager: kmstypes.KeyManagerTypeCustomer}
	cloud.Keys[ScopedName(account, region, id)] = key

	return key
}

// KeyState returns the state of a key, or an empty state for an unknown key.
func (cloud *Cloud) KeyState(account, region, id string) kmstypes.KeyState {
	cloud.mu.Lock()
	defer cloud.mu.Unlock()

	if key, ok := cloud.Keys[ScopedName(account, region, id)]; ok {
		return key.State
	}

	return ""
}

type kmsClient struct {
	*client
}

func (c *kmsClient) get(id string) (*Key, error) {
	key, ok := c.cloud.Keys[c.key(id)]
	if !ok {
		return nil, apiError("NotFoundException", "Key '%s' does not exist", id)
	}

	return key, nil
}

func (c *kmsClient) DescribeKey(_ context.Context, params *kms.DescribeKeyInput, _ ...func(*kms.Options)) (*kms.DescribeKeyOutput, error) {
	id := aws.ToString(params.KeyId)
	defer c.lock("kms", "DescribeKey", id)()

	key, err := c.get(id)
	if err != nil {
		return nil, err
	}

	return &kms.DescribeKeyOutput{
		KeyMetadata: &kmstypes.KeyMetadata{
			KeyId:      aws.String(id),
			KeyState:   key.State,
			KeyManager: key.Manager,
		},
	}, nil
}

func (c *kmsClient) DisableKey(_ context.Context, params *kms.DisableKeyInput, _ ...func(*kms.Options)) (*kms.DisableKeyOutput, error) {
	id := aws.ToString(params.KeyId)
	defer c.lock("kms", "DisableKey", id)()

	key, err := c.get(id)
	if err != nil {
		return nil, err
	}

	if key.State == kmstypes.KeyStatePendingDeletion {
		return nil, apiError("KMSInvalidStateException", "%s is pending deletion", id)
	}

	key.State = kmstypes.KeyStateDisabled

	return &kms.DisableKeyOutput{}, nil
}

func (c *kmsClient) ScheduleKeyDeletion(_ context.Context, params *kms.ScheduleKeyDeletionInput, _ ...func(*kms.Options)) (*kms.ScheduleKeyDeletionOutput, error) {
	id := aws.ToString(params.KeyId)
	defer c.lock("kms", "ScheduleKeyDeletion", id)()

	key, err := c.get(id)
	if err != nil {
		return nil, err
	}

	if key.State == kmstypes.KeyStatePendingDeletion {
		return nil, apiError("KMSInvalidStateException", "%s is pending deletion", id)
	}

	key.State = kmstypes.KeyStatePendingDeletion
	key.PendingWindow = aws.ToInt32(params.PendingWindowInDays)

	return &kms.ScheduleKeyDeletionOutput{KeyId: aws.String(id), KeyState: key.State}, nil
}

// Backup

// AddVault registers a backup vault.
func (cloud *Cloud) AddVault(account, region, name string) {
	cloud.mu.Lock()
	defer cloud.mu.Unlock()

	cloud.Vaults[ScopedName(account, region, name)] = true
}

// VaultExists returns true if the vault has not been deleted.
func (cloud *Cloud) VaultExists(account, region, name string) bool {
	cloud.mu.Lock()
	defer cloud.mu.Unlock()

	return cloud.Vaults[ScopedName(account, region, name)]
}

type backupClient struct {
	*client
}

func (c *backupClient) DeleteBackupVault(_ context.Context, params *backup.DeleteBackupVaultInput, _ ...func(*backup.Options)) (*backup.DeleteBackupVaultOutput, error) {
	name := aws.ToString(params.BackupVaultName)
	defer c.lock("backup", "DeleteBackupVault", name)()

	if !c.cloud.Vaults[c.key(name)] {
		return nil, apiError("ResourceNotFoundException", "Backup vault %s does not exist", name)
	}

	delete(c.cloud.Vaults, c.key(name))

	return &backup.DeleteBackupVaultOutput{}, nil
}

// DynamoDB

// AddTable registers a table.
func (cloud *Cloud) AddTable(account, region, name string) {
	cloud.mu.Lock()
	defer cloud.mu.Unlock()

	cloud.Tables[ScopedName(account, region, name)] = true
}

// TableExists returns true if the table has not been deleted.
func (cloud *Cloud) TableExists(account, region, name string) bool {
	cloud.mu.Lock()
	defer cloud.mu.Unlock()

	return cloud.Tables[ScopedName(account, region, name)]
}

type dynamoDBClient struct {
	*client
}

func (c *dynamoDBClient) DeleteTable(_ context.Context, params *dynamodb.DeleteTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error) {
	name := aws.ToString(params.TableName)
	defer c.lock("dynamodb", "DeleteTable", name)()

	if !c.cloud.Tables[c.key(name)] {
		return nil, apiError("ResourceNotFoundException", "Requested resource not found: Table: %s not found", name)
	}

	delete(c.cloud.Tables, c.key(name))

	return &dynamodb.DeleteTableOutput{}, nil
}
