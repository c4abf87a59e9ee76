package adapter

import (
	"context"
	"errors"
	"time"

	serr "github.com/shelfstore/shelfstore/internal/errors"
	"github.com/shelfstore/shelfstore/internal/metrics"
)

// instrumented wraps an Adapter and records a Prometheus counter and latency
// observation for every operation, labeled by backend identifier and
// operation name. The status label distinguishes success from each error
// kind so that caller mistakes and backend failures chart separately.
type instrumented struct {
	next    Adapter
	backend string
}

// Instrument returns an Adapter recording per-operation metrics for next.
// The backend label should identify the wrapped implementation ("local",
// "memory", "sqlite", "s3") or the configured adapter name.
func Instrument(next Adapter, backend string) Adapter {
	return &instrumented{next: next, backend: backend}
}

// observe records one completed operation.
func (a *instrumented) observe(op string, start time.Time, err error) {
	metrics.OperationsTotal.WithLabelValues(a.backend, op, statusLabel(err)).Inc()
	metrics.OperationDuration.WithLabelValues(a.backend, op).Observe(time.Since(start).Seconds())
}

// statusLabel maps an operation outcome to a low-cardinality label value.
func statusLabel(err error) string {
	if err == nil {
		return "success"
	}
	var storageErr *serr.StorageError
	if errors.As(err, &storageErr) {
		return string(storageErr.Kind)
	}
	return "error"
}

func (a *instrumented) CreateBucket(ctx context.Context, name string) error {
	start := time.Now()
	err := a.next.CreateBucket(ctx, name)
	a.observe("CreateBucket", start, err)
	return err
}

func (a *instrumented) DeleteBucket(ctx context.Context, name string) error {
	start := time.Now()
	err := a.next.DeleteBucket(ctx, name)
	a.observe("DeleteBucket", start, err)
	return err
}

func (a *instrumented) GetBucket(ctx context.Context, name string) (*BucketInfo, error) {
	start := time.Now()
	info, err := a.next.GetBucket(ctx, name)
	a.observe("GetBucket", start, err)
	return info, err
}

func (a *instrumented) ListBuckets(ctx context.Context) ([]BucketInfo, error) {
	start := time.Now()
	infos, err := a.next.ListBuckets(ctx)
	a.observe("ListBuckets", start, err)
	return infos, err
}

func (a *instrumented) BucketExists(ctx context.Context, name string) (bool, error) {
	start := time.Now()
	exists, err := a.next.BucketExists(ctx, name)
	a.observe("BucketExists", start, err)
	return exists, err
}

func (a *instrumented) CreateObject(ctx context.Context, bucket, key string, content []byte, metadata map[string]string) (*ObjectInfo, error) {
	start := time.Now()
	info, err := a.next.CreateObject(ctx, bucket, key, content, metadata)
	a.observe("CreateObject", start, err)
	if err == nil {
		metrics.ObjectSize.WithLabelValues(a.backend, "CreateObject").Observe(float64(len(content)))
		metrics.BytesWrittenTotal.WithLabelValues(a.backend).Add(float64(len(content)))
	}
	return info, err
}

func (a *instrumented) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	start := time.Now()
	data, err := a.next.GetObject(ctx, bucket, key)
	a.observe("GetObject", start, err)
	if err == nil {
		metrics.ObjectSize.WithLabelValues(a.backend, "GetObject").Observe(float64(len(data)))
		metrics.BytesReadTotal.WithLabelValues(a.backend).Add(float64(len(data)))
	}
	return data, err
}

func (a *instrumented) DeleteObject(ctx context.Context, bucket, key string) error {
	start := time.Now()
	err := a.next.DeleteObject(ctx, bucket, key)
	a.observe("DeleteObject", start, err)
	return err
}

func (a *instrumented) CopyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) (*ObjectInfo, error) {
	start := time.Now()
	info, err := a.next.CopyObject(ctx, srcBucket, srcKey, dstBucket, dstKey)
	a.observe("CopyObject", start, err)
	return info, err
}

func (a *instrumented) ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	start := time.Now()
	infos, err := a.next.ListObjects(ctx, bucket, prefix)
	a.observe("ListObjects", start, err)
	return infos, err
}

func (a *instrumented) HealthCheck(ctx context.Context) error {
	start := time.Now()
	err := a.next.HealthCheck(ctx)
	a.observe("HealthCheck", start, err)
	return err
}

// Ensure instrumented implements Adapter at compile time.
var _ Adapter = (*instrumented)(nil)
