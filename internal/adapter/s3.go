package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	serr "github.com/shelfstore/shelfstore/internal/errors"
)

// bucketMarkerPrefix is the hidden key prefix under which bucket existence
// markers are stored in the upstream bucket. Logical bucket names cannot be
// hidden, so marker keys can never collide with object keys.
const bucketMarkerPrefix = ".buckets/"

// S3API is the subset of the AWS S3 client used by the gateway adapter.
// It allows mocking in tests.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Adapter implements the Adapter contract by proxying to an upstream
// Amazon S3 bucket. All logical buckets share the single upstream bucket,
// namespaced by key prefix:
//
//	Objects:  {prefix}{bucket}/{key}
//	Markers:  {prefix}.buckets/{bucket}
//
// Bucket existence is tracked with zero-byte marker objects, since the
// upstream bucket has no native notion of the logical namespace. S3 offers
// no atomic create-if-absent, so two concurrent CreateBucket calls for the
// same name may both succeed; both outcomes leave exactly one marker.
//
// Credentials follow the standard AWS chain (env vars, shared config, IAM
// role) unless static credentials are supplied.
type S3Adapter struct {
	// Bucket is the upstream S3 bucket name.
	Bucket string
	// Region is the AWS region of the upstream bucket.
	Region string
	// Prefix is the key prefix namespacing all gateway data upstream.
	Prefix string
	client S3API
}

// S3Options configures the S3 gateway adapter.
type S3Options struct {
	// Bucket is the upstream S3 bucket name. Required.
	Bucket string
	// Region is the AWS region. Required.
	Region string
	// Prefix optionally namespaces all keys in the upstream bucket.
	Prefix string
	// EndpointURL optionally points at a custom S3-compatible endpoint.
	EndpointURL string
	// UsePathStyle forces path-style addressing, needed by most
	// S3-compatible servers.
	UsePathStyle bool
	// AccessKeyID and SecretAccessKey optionally override the default
	// AWS credential chain.
	AccessKeyID     string
	SecretAccessKey string
}

// NewS3 creates an S3Adapter from the given options and verifies the
// upstream bucket is reachable.
func NewS3(ctx context.Context, opts S3Options) (*S3Adapter, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, serr.Backend("", "", fmt.Errorf("loading AWS config: %w", err))
	}

	var s3Opts []func(*s3.Options)
	if opts.EndpointURL != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.EndpointURL)
		})
	}
	if opts.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(cfg, s3Opts...)

	a := &S3Adapter{
		Bucket: opts.Bucket,
		Region: opts.Region,
		Prefix: opts.Prefix,
		client: client,
	}

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(opts.Bucket),
	}); err != nil {
		return nil, serr.Backend("", "", fmt.Errorf("cannot access upstream S3 bucket %q: %w", opts.Bucket, err))
	}

	slog.Info("S3 gateway adapter initialized", "bucket", opts.Bucket, "region", opts.Region, "prefix", opts.Prefix)
	return a, nil
}

// NewS3WithClient creates an S3Adapter with a pre-configured client,
// primarily for tests with mocks.
func NewS3WithClient(bucket, region, prefix string, client S3API) *S3Adapter {
	return &S3Adapter{Bucket: bucket, Region: region, Prefix: prefix, client: client}
}

// objectKey maps a logical bucket/key to an upstream S3 key.
func (a *S3Adapter) objectKey(bucket, key string) string {
	return a.Prefix + bucket + "/" + key
}

// markerKey maps a logical bucket to its upstream existence-marker key.
func (a *S3Adapter) markerKey(bucket string) string {
	return a.Prefix + bucketMarkerPrefix + bucket
}

// CreateBucket writes the bucket's existence marker.
func (a *S3Adapter) CreateBucket(ctx context.Context, name string) error {
	if err := ValidateBucketName(name); err != nil {
		return err
	}

	marker := a.markerKey(name)
	_, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.Bucket),
		Key:    aws.String(marker),
	})
	if err == nil {
		return serr.AlreadyExists(name)
	}
	if !isS3NotFound(err) {
		return serr.Backend(name, "", fmt.Errorf("checking bucket marker: %w", err))
	}

	if _, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.Bucket),
		Key:           aws.String(marker),
		Body:          bytes.NewReader(nil),
		ContentLength: aws.Int64(0),
	}); err != nil {
		return serr.Backend(name, "", fmt.Errorf("writing bucket marker: %w", err))
	}
	return nil
}

// DeleteBucket removes the bucket's marker if no objects remain under its
// key prefix.
func (a *S3Adapter) DeleteBucket(ctx context.Context, name string) error {
	if err := ValidateBucketName(name); err != nil {
		return err
	}
	if err := a.requireBucket(ctx, name); err != nil {
		return err
	}

	resp, err := a.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(a.Bucket),
		Prefix:  aws.String(a.Prefix + name + "/"),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return serr.Backend(name, "", fmt.Errorf("listing bucket contents: %w", err))
	}
	if len(resp.Contents) > 0 {
		return serr.NotEmpty(name)
	}

	if _, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.Bucket),
		Key:    aws.String(a.markerKey(name)),
	}); err != nil {
		return serr.Backend(name, "", fmt.Errorf("deleting bucket marker: %w", err))
	}
	return nil
}

// GetBucket returns the bucket's metadata from its marker object.
func (a *S3Adapter) GetBucket(ctx context.Context, name string) (*BucketInfo, error) {
	if err := ValidateBucketName(name); err != nil {
		return nil, err
	}

	resp, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.Bucket),
		Key:    aws.String(a.markerKey(name)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, serr.NotFound(name, "")
		}
		return nil, serr.Backend(name, "", fmt.Errorf("checking bucket marker: %w", err))
	}

	info := &BucketInfo{Name: name}
	if resp.LastModified != nil {
		info.CreatedAt = resp.LastModified.UTC()
	}
	return info, nil
}

// ListBuckets lists every bucket marker under the marker prefix, following
// continuation tokens.
func (a *S3Adapter) ListBuckets(ctx context.Context) ([]BucketInfo, error) {
	markerPrefix := a.Prefix + bucketMarkerPrefix

	var buckets []BucketInfo
	var continuation *string
	for {
		resp, err := a.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(a.Bucket),
			Prefix:            aws.String(markerPrefix),
			ContinuationToken: continuation,
		})
		if err != nil {
			return nil, serr.Backend("", "", fmt.Errorf("listing bucket markers: %w", err))
		}

		for _, obj := range resp.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), markerPrefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			info := BucketInfo{Name: name}
			if obj.LastModified != nil {
				info.CreatedAt = obj.LastModified.UTC()
			}
			buckets = append(buckets, info)
		}

		if !aws.ToBool(resp.IsTruncated) {
			break
		}
		continuation = resp.NextContinuationToken
	}
	return buckets, nil
}

// BucketExists reports whether the bucket's marker is present.
func (a *S3Adapter) BucketExists(ctx context.Context, name string) (bool, error) {
	if err := ValidateBucketName(name); err != nil {
		return false, err
	}

	_, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.Bucket),
		Key:    aws.String(a.markerKey(name)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, serr.Backend(name, "", fmt.Errorf("checking bucket marker: %w", err))
	}
	return true, nil
}

// CreateObject uploads content to the upstream bucket. The ETag is computed
// locally rather than taken from the upstream response, which reports a
// different value when server-side encryption is enabled. Metadata is
// accepted but not persisted.
func (a *S3Adapter) CreateObject(ctx context.Context, bucket, key string, content []byte, metadata map[string]string) (*ObjectInfo, error) {
	if err := ValidateBucketName(bucket); err != nil {
		return nil, err
	}
	if err := ValidateObjectKey(bucket, key); err != nil {
		return nil, err
	}
	if err := a.requireBucket(ctx, bucket); err != nil {
		return nil, err
	}

	s3key := a.objectKey(bucket, key)
	if _, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.Bucket),
		Key:           aws.String(s3key),
		Body:          bytes.NewReader(content),
		ContentLength: aws.Int64(int64(len(content))),
	}); err != nil {
		return nil, serr.Backend(bucket, key, fmt.Errorf("uploading to S3: %w", err))
	}

	return &ObjectInfo{
		Name:         key,
		Size:         int64(len(content)),
		ETag:         computeETag(content),
		LastModified: time.Now().UTC(),
		URL:          "s3://" + a.Bucket + "/" + s3key,
	}, nil
}

// GetObject downloads the object's full content.
func (a *S3Adapter) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := ValidateBucketName(bucket); err != nil {
		return nil, err
	}
	if err := ValidateObjectKey(bucket, key); err != nil {
		return nil, err
	}

	resp, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.Bucket),
		Key:    aws.String(a.objectKey(bucket, key)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, serr.NotFound(bucket, key)
		}
		return nil, serr.Backend(bucket, key, fmt.Errorf("getting object from S3: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, serr.Backend(bucket, key, fmt.Errorf("reading object body: %w", err))
	}
	return data, nil
}

// DeleteObject removes the object. Upstream S3 deletes are idempotent, so a
// HeadObject check supplies the NotFound semantics the contract requires.
func (a *S3Adapter) DeleteObject(ctx context.Context, bucket, key string) error {
	if err := ValidateBucketName(bucket); err != nil {
		return err
	}
	if err := ValidateObjectKey(bucket, key); err != nil {
		return err
	}

	s3key := a.objectKey(bucket, key)
	if _, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.Bucket),
		Key:    aws.String(s3key),
	}); err != nil {
		if isS3NotFound(err) {
			return serr.NotFound(bucket, key)
		}
		return serr.Backend(bucket, key, fmt.Errorf("checking object existence in S3: %w", err))
	}

	if _, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.Bucket),
		Key:    aws.String(s3key),
	}); err != nil {
		return serr.Backend(bucket, key, fmt.Errorf("deleting object from S3: %w", err))
	}
	return nil
}

// CopyObject downloads the source and re-uploads it at the destination.
// A server-side copy would be cheaper but reports the upstream ETag, which
// may not be the content MD5; downloading keeps the returned checksum
// computed from the bytes that were actually copied.
func (a *S3Adapter) CopyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) (*ObjectInfo, error) {
	data, err := a.GetObject(ctx, srcBucket, srcKey)
	if err != nil {
		return nil, err
	}
	return a.CreateObject(ctx, dstBucket, dstKey, data, nil)
}

// ListObjects lists upstream keys under the bucket's prefix and downloads
// each matched object to recompute its ETag, keeping the O(total bytes)
// checksum-at-read behavior of the other backends.
func (a *S3Adapter) ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	if err := ValidateBucketName(bucket); err != nil {
		return nil, err
	}
	if err := a.requireBucket(ctx, bucket); err != nil {
		return nil, err
	}

	bucketPrefix := a.Prefix + bucket + "/"

	var infos []ObjectInfo
	var continuation *string
	for {
		resp, err := a.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(a.Bucket),
			Prefix:            aws.String(bucketPrefix + prefix),
			ContinuationToken: continuation,
		})
		if err != nil {
			return nil, serr.Backend(bucket, "", fmt.Errorf("listing objects in S3: %w", err))
		}

		for _, obj := range resp.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), bucketPrefix)
			if name == "" || isHiddenKey(name) {
				continue
			}

			data, err := a.GetObject(ctx, bucket, name)
			if err != nil {
				if serr.IsNotFound(err) {
					// Deleted between listing and read.
					continue
				}
				return nil, err
			}

			info := ObjectInfo{
				Name:   name,
				Prefix: prefix,
				Size:   int64(len(data)),
				ETag:   computeETag(data),
				URL:    "s3://" + a.Bucket + "/" + aws.ToString(obj.Key),
			}
			if obj.LastModified != nil {
				info.LastModified = obj.LastModified.UTC()
			}
			infos = append(infos, info)
		}

		if !aws.ToBool(resp.IsTruncated) {
			break
		}
		continuation = resp.NextContinuationToken
	}
	return infos, nil
}

// HealthCheck verifies the upstream bucket is reachable.
func (a *S3Adapter) HealthCheck(ctx context.Context) error {
	if _, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(a.Bucket),
	}); err != nil {
		return serr.Backend("", "", fmt.Errorf("heading upstream bucket: %w", err))
	}
	return nil
}

// requireBucket fails with NotFound unless the bucket's marker exists.
func (a *S3Adapter) requireBucket(ctx context.Context, bucket string) error {
	exists, err := a.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if !exists {
		return serr.NotFound(bucket, "")
	}
	return nil
}

// isHiddenKey reports whether any segment of a logical key is hidden.
// Hidden keys cannot be created through this adapter but may exist upstream
// from out-of-band writes; listing must not surface them.
func isHiddenKey(key string) bool {
	for _, seg := range strings.Split(key, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

// isS3NotFound checks whether an AWS error is a 404/NoSuchKey/NotFound.
func isS3NotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "404", "NoSuchBucket":
			return true
		}
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var respErr interface{ HTTPStatusCode() int }
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode() == 404
	}
	return false
}

// Ensure S3Adapter implements Adapter at compile time.
var _ Adapter = (*S3Adapter)(nil)
