// Package adapter defines the bucket/object storage contract and its backend
// implementations (local filesystem, in-memory, SQLite, S3 gateway).
package adapter

import (
	"context"
	"crypto/md5"
	"fmt"
	"time"
)

// BucketInfo describes a bucket. A bucket has no body, only identity and
// metadata; it is a namespace for objects.
type BucketInfo struct {
	// Name is the bucket's logical identity, unique within one adapter.
	Name string
	// CreatedAt is sourced from the backend's own metadata. Backends that
	// cannot report a creation time leave it at the zero value; the local
	// backend reports the directory's modification time, the closest
	// portable approximation.
	CreatedAt time.Time
}

// ObjectInfo describes an object within a bucket.
type ObjectInfo struct {
	// Name is the object's logical key. Keys may contain "/" and form a
	// hierarchical key space within the bucket.
	Name string
	// Prefix is the filter that was in effect when this info was produced
	// by a listing call. It is empty when the info came from a direct
	// create, copy, or get.
	Prefix string
	// Size is the byte length of the object's content.
	Size int64
	// ETag is the lowercase hex MD5 of the object's content at the moment
	// of the read that produced this info. It is never cached across calls.
	ETag string
	// LastModified is the object's modification timestamp.
	LastModified time.Time
	// URL is an optional backend-specific locator (file://, s3://).
	// Backends with no meaningful locator leave it empty.
	URL string
}

// Adapter is the contract every storage backend satisfies. Callers can swap
// backends transparently: each operation fails with the same typed error
// kinds (InvalidPath, AlreadyExists, NotFound, NotEmpty, Backend) under the
// same conditions regardless of the physical medium. Implementations must be
// safe for concurrent use; they perform no retries and hold no mutable state
// beyond their construction-time configuration.
type Adapter interface {
	// CreateBucket creates a new bucket. Fails with AlreadyExists if a
	// bucket of that name is present. When two concurrent creates race,
	// at most one bucket is created and the loser observes AlreadyExists.
	CreateBucket(ctx context.Context, name string) error

	// DeleteBucket removes an empty bucket. Fails with NotFound if absent
	// and NotEmpty if the bucket still contains any entry.
	DeleteBucket(ctx context.Context, name string) error

	// GetBucket returns the bucket's metadata, failing with NotFound if it
	// does not exist. Use BucketExists for a lookup that does not treat
	// absence as a failure.
	GetBucket(ctx context.Context, name string) (*BucketInfo, error)

	// ListBuckets returns every bucket known to the adapter, in backend
	// iteration order (not guaranteed sorted). Hidden entries are excluded.
	ListBuckets(ctx context.Context) ([]BucketInfo, error)

	// BucketExists reports whether the named bucket exists.
	BucketExists(ctx context.Context, name string) (bool, error)

	// CreateObject writes content under bucket/key, overwriting any
	// existing content at that key. The containing bucket must already
	// exist (buckets are never created implicitly). Metadata is accepted
	// for interface compatibility with richer backends; backends that
	// cannot persist it ignore it. Returns the object's size, ETag, and
	// modification time computed from the written bytes.
	CreateObject(ctx context.Context, bucket, key string, content []byte, metadata map[string]string) (*ObjectInfo, error)

	// GetObject returns the object's full byte content, failing with
	// NotFound if it is absent. Objects are read wholesale, not streamed,
	// which bounds practical object size to available memory.
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)

	// DeleteObject removes the object, failing with NotFound if absent.
	// Callers wanting idempotent deletes treat NotFound as success.
	DeleteObject(ctx context.Context, bucket, key string) error

	// CopyObject reads the source fully and writes it to the destination
	// with CreateObject overwrite semantics. Fails with NotFound if the
	// source (or the destination bucket) is absent. The returned ETag is
	// recomputed from the copied bytes, never carried over from the source.
	CopyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) (*ObjectInfo, error)

	// ListObjects returns info for every object in the bucket whose key
	// starts with prefix, compared as a raw byte prefix (no globbing). An
	// empty prefix matches everything. Fails with NotFound if the bucket
	// is absent. Each entry's ETag is recomputed by reading its content,
	// making this O(total bytes in bucket).
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)

	// HealthCheck verifies the backend is operational.
	HealthCheck(ctx context.Context) error
}

// computeETag returns the lowercase hex MD5 digest of data.
func computeETag(data []byte) string {
	h := md5.Sum(data)
	return fmt.Sprintf("%x", h[:])
}
