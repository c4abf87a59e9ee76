// Package errors defines the typed storage error taxonomy used throughout
// shelfstore. Every adapter surfaces failures as one of five kinds so that
// callers can distinguish caller mistakes (InvalidPath, AlreadyExists,
// NotFound, NotEmpty) from backend I/O failures (Backend) without parsing
// error strings.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a storage error.
type Kind string

const (
	// KindInvalidPath means a bucket or object name is structurally invalid
	// or would resolve outside the adapter's root.
	KindInvalidPath Kind = "InvalidPath"
	// KindAlreadyExists means a create hit an occupied bucket location.
	KindAlreadyExists Kind = "AlreadyExists"
	// KindNotFound means the referenced bucket or object does not exist.
	KindNotFound Kind = "NotFound"
	// KindNotEmpty means a bucket delete was attempted while children remain.
	KindNotEmpty Kind = "NotEmpty"
	// KindBackend means an underlying I/O failure (permissions, disk full,
	// device error). The original cause is wrapped for diagnostics.
	KindBackend Kind = "Backend"
)

// StorageError is the error type returned by every adapter operation.
// Bucket and Key identify the logical address the operation touched; either
// may be empty depending on the operation.
type StorageError struct {
	Kind   Kind
	Bucket string
	Key    string
	// Err is the underlying cause, set for KindBackend and for kinds that
	// carry extra detail (e.g. which path segment was invalid).
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	addr := e.Bucket
	if e.Key != "" {
		addr = e.Bucket + "/" + e.Key
	}
	switch {
	case addr != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, addr, e.Err)
	case addr != "":
		return fmt.Sprintf("%s: %s", e.Kind, addr)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

// Unwrap returns the underlying cause, if any.
func (e *StorageError) Unwrap() error { return e.Err }

// Is reports whether target matches this error's kind, so that
// errors.Is(err, ErrNotFound) works regardless of the address fields.
func (e *StorageError) Is(target error) bool {
	t, ok := target.(*StorageError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel values for errors.Is matching. These carry only a kind; the
// constructors below produce errors with full address context.
var (
	ErrInvalidPath   = &StorageError{Kind: KindInvalidPath}
	ErrAlreadyExists = &StorageError{Kind: KindAlreadyExists}
	ErrNotFound      = &StorageError{Kind: KindNotFound}
	ErrNotEmpty      = &StorageError{Kind: KindNotEmpty}
	ErrBackend       = &StorageError{Kind: KindBackend}
)

// InvalidPath returns an InvalidPath error for the given address with a
// reason describing the structural violation.
func InvalidPath(bucket, key, reason string) *StorageError {
	return &StorageError{Kind: KindInvalidPath, Bucket: bucket, Key: key, Err: errors.New(reason)}
}

// AlreadyExists returns an AlreadyExists error for the given bucket.
func AlreadyExists(bucket string) *StorageError {
	return &StorageError{Kind: KindAlreadyExists, Bucket: bucket}
}

// NotFound returns a NotFound error for the given address. Key may be empty
// when the bucket itself is missing.
func NotFound(bucket, key string) *StorageError {
	return &StorageError{Kind: KindNotFound, Bucket: bucket, Key: key}
}

// NotEmpty returns a NotEmpty error for the given bucket.
func NotEmpty(bucket string) *StorageError {
	return &StorageError{Kind: KindNotEmpty, Bucket: bucket}
}

// Backend wraps an underlying I/O failure for the given address.
func Backend(bucket, key string, err error) *StorageError {
	return &StorageError{Kind: KindBackend, Bucket: bucket, Key: key, Err: err}
}

// IsInvalidPath reports whether err is an InvalidPath storage error.
func IsInvalidPath(err error) bool { return errors.Is(err, ErrInvalidPath) }

// IsAlreadyExists reports whether err is an AlreadyExists storage error.
func IsAlreadyExists(err error) bool { return errors.Is(err, ErrAlreadyExists) }

// IsNotFound reports whether err is a NotFound storage error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsNotEmpty reports whether err is a NotEmpty storage error.
func IsNotEmpty(err error) bool { return errors.Is(err, ErrNotEmpty) }

// IsBackend reports whether err is a Backend storage error.
func IsBackend(err error) bool { return errors.Is(err, ErrBackend) }
