// Package reaper removes the resources a stack deletion leaves behind: versioned buckets, log groups,
// encryption keys, backup vaults and retained tables.
//
// Every primitive treats "already gone" as success so a teardown can be re-run after a partial attempt.
package reaper

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"

	"github.com/gruntwork-io/lz-teardown/internal/awshelper"
	"github.com/gruntwork-io/lz-teardown/internal/errors"
	"github.com/gruntwork-io/lz-teardown/pkg/log"
)

const (
	// DefaultKeyPendingWindowDays is the waiting period before a scheduled key is destroyed.
	DefaultKeyPendingWindowDays = 7

	// maxDeleteObjects is the DeleteObjects batch limit.
	maxDeleteObjects = 1000

	defaultBucketRetries    = 3
	defaultBucketRetrySleep = 5 * time.Second
)

// Kind is the type of a persistent resource.
type Kind string

const (
	KindS3       Kind = "S3"
	KindCWLogs   Kind = "CWLogs"
	KindKMS      Kind = "KMS"
	KindBackup   Kind = "Backup"
	KindDynamoDB Kind = "DynamoDB"
)

// AllKinds lists every kind in drain order. Keys go last so nothing encrypted with them is left behind.
var AllKinds = []Kind{KindS3, KindCWLogs, KindBackup, KindDynamoDB, KindKMS}

var resourceTypes = map[string]Kind{
	"AWS::S3::Bucket":            KindS3,
	"AWS::Logs::LogGroup":        KindCWLogs,
	"AWS::KMS::Key":              KindKMS,
	"AWS::Backup::BackupVault":   KindBackup,
	"AWS::DynamoDB::Table":       KindDynamoDB,
	"AWS::DynamoDB::GlobalTable": KindDynamoDB,
}

// PersistentResourceRef is a resource of a stack that must be removed explicitly.
type PersistentResourceRef struct {
	Kind       Kind
	StackName  string
	PhysicalID string
	AccountID  string
	Region     string
}

// Inventory lists the resources of a stack. A stack that does not exist has no resources.
func Inventory(ctx context.Context, client awshelper.ListStackResourcesAPI, stackName string) ([]cfntypes.StackResourceSummary, error) {
	var resources []cfntypes.StackResourceSummary

	paginator := cloudformation.NewListStackResourcesPaginator(client, &cloudformation.ListStackResourcesInput{
		StackName: aws.String(stackName),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			if awshelper.IsStackNotFound(err) {
				return nil, nil
			}

			return nil, errors.Errorf("Error listing resources of stack %s: %w", stackName, err)
		}

		resources = append(resources, page.StackResourceSummaries...)
	}

	return resources, nil
}

// Classify keeps the persistent resources of an inventory.
func Classify(stackName, accountID, region string, resources []cfntypes.StackResourceSummary) []PersistentResourceRef {
	var refs []PersistentResourceRef

	for _, resource := range resources {
		kind, ok := resourceTypes[aws.ToString(resource.ResourceType)]
		if !ok {
			continue
		}

		physicalID := aws.ToString(resource.PhysicalResourceId)
		if physicalID == "" {
			continue
		}

		refs = append(refs, PersistentResourceRef{
			Kind:       kind,
			StackName:  stackName,
			PhysicalID: physicalID,
			AccountID:  accountID,
			Region:     region,
		})
	}

	return refs
}

// Filter returns the refs of the given kinds, preserving order.
func Filter(refs []PersistentResourceRef, kinds ...Kind) []PersistentResourceRef {
	var result []PersistentResourceRef

	for _, ref := range refs {
		for _, kind := range kinds {
			if ref.Kind == kind {
				result = append(result, ref)
				break
			}
		}
	}

	return result
}

// Reaper drains persistent resources.
type Reaper struct {
	KeyPendingWindowDays int32
	BucketRetries        int
	BucketRetrySleep     time.Duration
}

// New returns a reaper with the default key window and bucket retries.
func New() *Reaper {
	return &Reaper{
		KeyPendingWindowDays: DefaultKeyPendingWindowDays,
		BucketRetries:        defaultBucketRetries,
		BucketRetrySleep:     defaultBucketRetrySleep,
	}
}

// Reap removes one resource with the clients of its account and region.
func (r *Reaper) Reap(ctx context.Context, l log.Logger, clients *awshelper.Clients, ref PersistentResourceRef) error {
	l = l.WithFields(log.Fields{log.FieldKeyStack: ref.StackName, "kind": string(ref.Kind)})

	switch ref.Kind {
	case KindS3:
		return r.PurgeBucket(ctx, l, clients.S3, ref.PhysicalID)
	case KindCWLogs:
		return DeleteLogGroup(ctx, l, clients.Logs, ref.PhysicalID)
	case KindKMS:
		return r.RetireKey(ctx, l, clients.KMS, ref.PhysicalID)
	case KindBackup:
		return DeleteBackupVault(ctx, l, clients.Backup, ref.PhysicalID)
	case KindDynamoDB:
		return DeleteTable(ctx, l, clients.DynamoDB, ref.PhysicalID)
	}

	return errors.Errorf("unknown persistent resource kind %q", ref.Kind)
}

// Drain reaps refs kind by kind in AllKinds order and returns every failure.
func (r *Reaper) Drain(ctx context.Context, l log.Logger, clients *awshelper.Clients, refs []PersistentResourceRef) error {
	var errs *errors.MultiError

	for _, kind := range AllKinds {
		for _, ref := range Filter(refs, kind) {
			if err := r.Reap(ctx, l, clients, ref); err != nil {
				errs = errs.Append(err)
			}
		}
	}

	return errs.ErrorOrNil()
}
