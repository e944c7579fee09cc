package reaper

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/backup"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/gruntwork-io/lz-teardown/internal/awshelper"
	"github.com/gruntwork-io/lz-teardown/internal/errors"
	"github.com/gruntwork-io/lz-teardown/pkg/log"
)

// DeleteLogGroup deletes a log group. A missing group is already clean.
func DeleteLogGroup(ctx context.Context, l log.Logger, client awshelper.DeleteLogGroupAPI, name string) error {
	l.Infof("Deleting log group %s", name)

	if _, err := client.DeleteLogGroup(ctx, &cloudwatchlogs.DeleteLogGroupInput{LogGroupName: aws.String(name)}); err != nil {
		if awshelper.IsResourceNotFound(err) {
			l.Debugf("Log group %s does not exist", name)
			return nil
		}

		return errors.Errorf("failed to delete log group %s: %w", name, err)
	}

	l.Infof("Deleted log group %s", name)

	return nil
}

// DeleteBackupVault deletes a backup vault. A missing vault is already clean.
func DeleteBackupVault(ctx context.Context, l log.Logger, client awshelper.DeleteBackupVaultAPI, name string) error {
	l.Infof("Deleting backup vault %s", name)

	if _, err := client.DeleteBackupVault(ctx, &backup.DeleteBackupVaultInput{BackupVaultName: aws.String(name)}); err != nil {
		if awshelper.IsResourceNotFound(err) {
			l.Debugf("Backup vault %s does not exist", name)
			return nil
		}

		return errors.Errorf("failed to delete backup vault %s: %w", name, err)
	}

	l.Infof("Deleted backup vault %s", name)

	return nil
}

// DeleteTable deletes a table. A missing table is already clean.
func DeleteTable(ctx context.Context, l log.Logger, client awshelper.DeleteTableAPI, name string) error {
	l.Infof("Deleting table %s", name)

	if _, err := client.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(name)}); err != nil {
		if awshelper.IsResourceNotFound(err) {
			l.Debugf("Table %s does not exist", name)
			return nil
		}

		return errors.Errorf("failed to delete table %s: %w", name, err)
	}

	l.Infof("Deleted table %s", name)

	return nil
}
