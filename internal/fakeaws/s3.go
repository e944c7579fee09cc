package fakeaws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Object is one object version or delete marker.
type Object struct {
	Key          string
	VersionID    string
	DeleteMarker bool
}

// Bucket is a fake versioned bucket.
type Bucket struct {
	Objects []Object

	// DeleteBatches records the size of every DeleteObjects call.
	DeleteBatches []int
}

// AddBucket registers a bucket with the given number of versions and delete markers.
func (cloud *Cloud) AddBucket(account, region, name string, versions, markers int) *Bucket {
	cloud.mu.Lock()
	defer cloud.mu.Unlock()

	bucket := &Bucket{}

	for i := range versions {
		bucket.Objects = append(bucket.Objects, Object{Key: fmt.Sprintf("obj-%d", i), VersionID: fmt.Sprintf("v-%d", i)})
	}

	for i := range markers {
		bucket.Objects = append(bucket.Objects, Object{Key: fmt.Sprintf("obj-%d", i), VersionID: fmt.Sprintf("m-%d", i), DeleteMarker: true})
	}

	cloud.Buckets[ScopedName(account, region, name)] = bucket

	return bucket
}

// BucketExists returns true if the bucket has not been deleted.
func (cloud *Cloud) BucketExists(account, region, name string) bool {
	cloud.mu.Lock()
	defer cloud.mu.Unlock()

	_, ok := cloud.Buckets[ScopedName(account, region, name)]

	return ok
}

// PutFile stores an object readable with GetObject.
func (cloud *Cloud) PutFile(bucket, key string, body []byte) {
	cloud.mu.Lock()
	defer cloud.mu.Unlock()

	cloud.Files["s3://"+bucket+"/"+key] = body
}

type s3Client struct {
	*client
}

func (c *s3Client) bucket(name string) (*Bucket, error) {
	bucket, ok := c.cloud.Buckets[c.key(name)]
	if !ok {
		return nil, apiError("NoSuchBucket", "The specified bucket does not exist")
	}

	return bucket, nil
}

func (c *s3Client) ListObjectVersions(_ context.Context, params *s3.ListObjectVersionsInput, _ ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error) {
	name := aws.ToString(params.Bucket)
	defer c.lock("s3", "ListObjectVersions", name)()

	bucket, err := c.bucket(name)
	if err != nil {
		return nil, err
	}

	pageSize := c.cloud.S3PageSize
	if maxKeys := aws.ToInt32(params.MaxKeys); maxKeys > 0 && int(maxKeys) < pageSize {
		pageSize = int(maxKeys)
	}

	page := bucket.Objects
	if len(page) > pageSize {
		page = page[:pageSize]
	}

	out := &s3.ListObjectVersionsOutput{
		IsTruncated: aws.Bool(len(bucket.Objects) > len(page)),
	}

	for _, obj := range page {
		if obj.DeleteMarker {
			out.DeleteMarkers = append(out.DeleteMarkers, s3types.DeleteMarkerEntry{Key: aws.String(obj.Key), VersionId: aws.String(obj.VersionID)})
			continue
		}

		out.Versions = append(out.Versions, s3types.ObjectVersion{Key: aws.String(obj.Key), VersionId: aws.String(obj.VersionID)})
	}

	return out, nil
}

func (c *s3Client) DeleteObjects(_ context.Context, params *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	name := aws.ToString(params.Bucket)
	defer c.lock("s3", "DeleteObjects", name)()

	bucket, err := c.bucket(name)
	if err != nil {
		return nil, err
	}

	if len(params.Delete.Objects) > 1000 {
		return nil, apiError("MalformedXML", "too many objects")
	}

	remove := make(map[string]bool, len(params.Delete.Objects))
	for _, id := range params.Delete.Objects {
		remove[aws.ToString(id.Key)+"@"+aws.ToString(id.VersionId)] = true
	}

	kept := bucket.Objects[:0]

	for _, obj := range bucket.Objects {
		if !remove[obj.Key+"@"+obj.VersionID] {
			kept = append(kept, obj)
		}
	}

	bucket.Objects = kept
	bucket.DeleteBatches = append(bucket.DeleteBatches, len(params.Delete.Objects))

	return &s3.DeleteObjectsOutput{}, nil
}

func (c *s3Client) DeleteBucket(_ context.Context, params *s3.DeleteBucketInput, _ ...func(*s3.Options)) (*s3.DeleteBucketOutput, error) {
	name := aws.ToString(params.Bucket)
	defer c.lock("s3", "DeleteBucket", name)()

	bucket, err := c.bucket(name)
	if err != nil {
		return nil, err
	}

	if len(bucket.Objects) > 0 {
		return nil, apiError("BucketNotEmpty", "The bucket you tried to delete is not empty")
	}

	delete(c.cloud.Buckets, c.key(name))

	return &s3.DeleteBucketOutput{}, nil
}

func (c *s3Client) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	target := "s3://" + aws.ToString(params.Bucket) + "/" + aws.ToString(params.Key)
	defer c.lock("s3", "GetObject", target)()

	body, ok := c.cloud.Files[target]
	if !ok {
		return nil, apiError("NoSuchKey", "The specified key does not exist")
	}

	return &s3.GetObjectOutput{Body: newBody(body)}, nil
}
