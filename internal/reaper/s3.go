package reaper

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/gruntwork-io/lz-teardown/internal/awshelper"
	"github.com/gruntwork-io/lz-teardown/internal/errors"
	"github.com/gruntwork-io/lz-teardown/pkg/log"
	"github.com/gruntwork-io/lz-teardown/util"
)

// PurgeBucket deletes every object version and delete marker, then the bucket itself.
// A bucket that is not found at any step is already clean.
func (r *Reaper) PurgeBucket(ctx context.Context, l log.Logger, client awshelper.S3API, bucket string) error {
	l = l.WithField("bucket", bucket)
	l.Infof("Purging S3 bucket %s", bucket)

	description := fmt.Sprintf("Delete S3 bucket %s with all versions", bucket)

	err := util.DoWithRetry(ctx, description, r.BucketRetries, r.BucketRetrySleep, l, log.DebugLevel, func(ctx context.Context, _ int) error {
		err := purgeBucket(ctx, l, client, bucket)
		if err == nil || awshelper.IsBucketNotFound(err) {
			return nil
		}

		// Objects written while the bucket was being emptied.
		if awshelper.IsErrorCode(err, "BucketNotEmpty") {
			return err
		}

		return util.FatalError{Underlying: err}
	})
	if err != nil {
		return err
	}

	l.Infof("Deleted S3 bucket %s", bucket)

	return nil
}

func purgeBucket(ctx context.Context, l log.Logger, client awshelper.S3API, bucket string) error {
	deleted, err := deleteAllVersions(ctx, l, client, bucket)
	if err != nil {
		return err
	}

	l.Debugf("Deleted %d object versions and delete markers from %s", deleted, bucket)

	if _, err := client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return errors.Errorf("failed to delete bucket %s: %w", bucket, err)
	}

	return nil
}

// deleteAllVersions lists the first page of versions and delete markers, deletes it and lists again
// until the bucket is empty.
func deleteAllVersions(ctx context.Context, l log.Logger, client awshelper.S3API, bucket string) (int, error) {
	var total int

	for {
		if err := ctx.Err(); err != nil {
			return total, errors.New(err)
		}

		res, err := client.ListObjectVersions(ctx, &s3.ListObjectVersionsInput{
			Bucket:  aws.String(bucket),
			MaxKeys: aws.Int32(maxDeleteObjects),
		})
		if err != nil {
			return total, errors.Errorf("failed to list version objects of %s: %w", bucket, err)
		}

		ids := make([]s3types.ObjectIdentifier, 0, len(res.Versions)+len(res.DeleteMarkers))

		for _, item := range res.DeleteMarkers {
			ids = append(ids, s3types.ObjectIdentifier{Key: item.Key, VersionId: item.VersionId})
		}

		for _, item := range res.Versions {
			ids = append(ids, s3types.ObjectIdentifier{Key: item.Key, VersionId: item.VersionId})
		}

		if len(ids) == 0 {
			return total, nil
		}

		for start := 0; start < len(ids); start += maxDeleteObjects {
			batch := ids[start:min(start+maxDeleteObjects, len(ids))]

			out, err := client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(bucket),
				Delete: &s3types.Delete{Objects: batch, Quiet: aws.Bool(true)},
			})
			if err != nil {
				return total, errors.Errorf("failed to delete objects of %s: %w", bucket, err)
			}

			if len(out.Errors) > 0 {
				first := out.Errors[0]

				return total, errors.Errorf("failed to delete %d objects of %s, first: %s %s", len(out.Errors), bucket, aws.ToString(first.Key), aws.ToString(first.Message))
			}

			total += len(batch)

			l.Tracef("Deleted batch of %d objects from %s", len(batch), bucket)
		}
	}
}
