package reaper

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"

	"github.com/gruntwork-io/lz-teardown/internal/awshelper"
	"github.com/gruntwork-io/lz-teardown/internal/errors"
	"github.com/gruntwork-io/lz-teardown/pkg/log"
)

// RetireKey disables a customer managed key and schedules its deletion.
// Keys that are gone, AWS managed or already pending deletion are skipped.
func (r *Reaper) RetireKey(ctx context.Context, l log.Logger, client awshelper.KMSAPI, keyID string) error {
	l = l.WithField("key", keyID)

	desc, err := client.DescribeKey(ctx, &kms.DescribeKeyInput{KeyId: aws.String(keyID)})
	if err != nil {
		if awshelper.IsKMSNotFound(err) {
			l.Debugf("KMS key %s does not exist", keyID)
			return nil
		}

		return errors.Errorf("failed to describe key %s: %w", keyID, err)
	}

	meta := desc.KeyMetadata
	if meta == nil {
		return nil
	}

	if meta.KeyManager == kmstypes.KeyManagerTypeAws {
		l.Debugf("Skipping AWS managed key %s", keyID)
		return nil
	}

	switch meta.KeyState {
	case kmstypes.KeyStatePendingDeletion, kmstypes.KeyStatePendingReplicaDeletion:
		l.Infof("KMS key %s is already pending deletion", keyID)
		return nil
	case kmstypes.KeyStateEnabled:
		l.Infof("Disabling KMS key %s", keyID)

		if _, err := client.DisableKey(ctx, &kms.DisableKeyInput{KeyId: aws.String(keyID)}); err != nil && !awshelper.IsKMSInvalidState(err) {
			return errors.Errorf("failed to disable key %s: %w", keyID, err)
		}

		l.Infof("Disabled KMS key %s", keyID)
	}

	window := r.KeyPendingWindowDays
	if window == 0 {
		window = DefaultKeyPendingWindowDays
	}

	l.Infof("Scheduling deletion of KMS key %s", keyID)

	if _, err := client.ScheduleKeyDeletion(ctx, &kms.ScheduleKeyDeletionInput{
		KeyId:               aws.String(keyID),
		PendingWindowInDays: aws.Int32(window),
	}); err != nil {
		if awshelper.IsKMSInvalidState(err) || awshelper.IsKMSNotFound(err) {
			l.Infof("KMS key %s cannot be scheduled for deletion: %v", keyID, err)
			return nil
		}

		return errors.Errorf("failed to schedule deletion of key %s: %w", keyID, err)
	}

	l.Infof("Scheduled deletion of KMS key %s in %d days", keyID, window)

	return nil
}
