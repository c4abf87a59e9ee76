package adapter

import (
	"context"
	"strings"
	"sync"
	"time"

	serr "github.com/shelfstore/shelfstore/internal/errors"
)

// memObject holds the content and modification time of an in-memory object.
type memObject struct {
	data    []byte
	modTime time.Time
}

// MemoryAdapter implements the Adapter contract entirely in process memory.
// It applies the same name validation as the filesystem adapter so callers
// cannot observe a looser contract from a different backend. Unlike the
// filesystem adapter it guards its maps with a lock, which also makes its
// check-then-act sequences race-free; callers must not rely on that, since
// it is a property of this backend, not of the contract.
type MemoryAdapter struct {
	mu      sync.RWMutex
	buckets map[string]time.Time
	objects map[string]map[string]memObject
}

// NewMemory creates an empty MemoryAdapter.
func NewMemory() *MemoryAdapter {
	return &MemoryAdapter{
		buckets: make(map[string]time.Time),
		objects: make(map[string]map[string]memObject),
	}
}

// CreateBucket records a new bucket.
func (a *MemoryAdapter) CreateBucket(ctx context.Context, name string) error {
	if err := ValidateBucketName(name); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.buckets[name]; ok {
		return serr.AlreadyExists(name)
	}
	a.buckets[name] = time.Now().UTC()
	a.objects[name] = make(map[string]memObject)
	return nil
}

// DeleteBucket removes an empty bucket.
func (a *MemoryAdapter) DeleteBucket(ctx context.Context, name string) error {
	if err := ValidateBucketName(name); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.buckets[name]; !ok {
		return serr.NotFound(name, "")
	}
	if len(a.objects[name]) > 0 {
		return serr.NotEmpty(name)
	}
	delete(a.buckets, name)
	delete(a.objects, name)
	return nil
}

// GetBucket returns the bucket's metadata.
func (a *MemoryAdapter) GetBucket(ctx context.Context, name string) (*BucketInfo, error) {
	if err := ValidateBucketName(name); err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	created, ok := a.buckets[name]
	if !ok {
		return nil, serr.NotFound(name, "")
	}
	return &BucketInfo{Name: name, CreatedAt: created}, nil
}

// ListBuckets returns every bucket in map iteration order.
func (a *MemoryAdapter) ListBuckets(ctx context.Context) ([]BucketInfo, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var buckets []BucketInfo
	for name, created := range a.buckets {
		buckets = append(buckets, BucketInfo{Name: name, CreatedAt: created})
	}
	return buckets, nil
}

// BucketExists reports whether the bucket is present.
func (a *MemoryAdapter) BucketExists(ctx context.Context, name string) (bool, error) {
	if err := ValidateBucketName(name); err != nil {
		return false, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	_, ok := a.buckets[name]
	return ok, nil
}

// CreateObject stores a copy of content under bucket/key, overwriting any
// existing entry. Metadata is accepted but not persisted.
func (a *MemoryAdapter) CreateObject(ctx context.Context, bucket, key string, content []byte, metadata map[string]string) (*ObjectInfo, error) {
	if err := ValidateBucketName(bucket); err != nil {
		return nil, err
	}
	if err := ValidateObjectKey(bucket, key); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	objs, ok := a.objects[bucket]
	if !ok {
		return nil, serr.NotFound(bucket, "")
	}

	// Copy so the caller cannot mutate the stored bytes afterwards.
	data := make([]byte, len(content))
	copy(data, content)

	now := time.Now().UTC()
	objs[key] = memObject{data: data, modTime: now}

	return &ObjectInfo{
		Name:         key,
		Size:         int64(len(data)),
		ETag:         computeETag(data),
		LastModified: now,
	}, nil
}

// GetObject returns a copy of the object's content.
func (a *MemoryAdapter) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := ValidateBucketName(bucket); err != nil {
		return nil, err
	}
	if err := ValidateObjectKey(bucket, key); err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	obj, ok := a.objects[bucket][key]
	if !ok {
		return nil, serr.NotFound(bucket, key)
	}

	data := make([]byte, len(obj.data))
	copy(data, obj.data)
	return data, nil
}

// DeleteObject removes the object.
func (a *MemoryAdapter) DeleteObject(ctx context.Context, bucket, key string) error {
	if err := ValidateBucketName(bucket); err != nil {
		return err
	}
	if err := ValidateObjectKey(bucket, key); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.objects[bucket][key]; !ok {
		return serr.NotFound(bucket, key)
	}
	delete(a.objects[bucket], key)
	return nil
}

// CopyObject copies an object between addresses, recomputing the ETag from
// the copied bytes.
func (a *MemoryAdapter) CopyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) (*ObjectInfo, error) {
	data, err := a.GetObject(ctx, srcBucket, srcKey)
	if err != nil {
		return nil, err
	}
	return a.CreateObject(ctx, dstBucket, dstKey, data, nil)
}

// ListObjects returns info for every object whose key starts with prefix,
// in map iteration order. ETags are recomputed from the stored bytes at
// listing time, matching the contract's checksum-at-read behavior.
func (a *MemoryAdapter) ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	if err := ValidateBucketName(bucket); err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	objs, ok := a.objects[bucket]
	if !ok {
		return nil, serr.NotFound(bucket, "")
	}

	var infos []ObjectInfo
	for key, obj := range objs {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		infos = append(infos, ObjectInfo{
			Name:         key,
			Prefix:       prefix,
			Size:         int64(len(obj.data)),
			ETag:         computeETag(obj.data),
			LastModified: obj.modTime,
		})
	}
	return infos, nil
}

// HealthCheck always succeeds; there is no external dependency to verify.
func (a *MemoryAdapter) HealthCheck(ctx context.Context) error {
	return nil
}

// Ensure MemoryAdapter implements Adapter at compile time.
var _ Adapter = (*MemoryAdapter)(nil)
