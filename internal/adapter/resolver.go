package adapter

import (
	"path/filepath"
	"strings"

	serr "github.com/shelfstore/shelfstore/internal/errors"
)

// Resolver maps logical (bucket, key) addresses to physical paths under a
// fixed root directory. It is a pure function of its inputs plus the root:
// no I/O, deterministic, idempotent. Names containing parent-reference
// segments are rejected with InvalidPath rather than normalized away, so a
// resolved path can never escape the root.
type Resolver struct {
	root string
}

// NewResolver returns a Resolver rooted at the given directory. The caller
// is responsible for passing an absolute, cleaned path.
func NewResolver(root string) Resolver {
	return Resolver{root: root}
}

// Root returns the resolver's root directory.
func (r Resolver) Root() string { return r.root }

// BucketPath returns the physical directory path for a bucket.
func (r Resolver) BucketPath(bucket string) (string, error) {
	if err := ValidateBucketName(bucket); err != nil {
		return "", err
	}
	return filepath.Join(r.root, bucket), nil
}

// ObjectPath returns the physical file path for an object. An empty key is
// rejected; callers addressing the bucket itself use BucketPath.
func (r Resolver) ObjectPath(bucket, key string) (string, error) {
	if err := ValidateBucketName(bucket); err != nil {
		return "", err
	}
	if err := ValidateObjectKey(bucket, key); err != nil {
		return "", err
	}
	return filepath.Join(r.root, bucket, filepath.FromSlash(key)), nil
}

// ValidateBucketName checks that name is usable as a bucket identity: a
// single, non-hidden path component.
func ValidateBucketName(name string) error {
	switch {
	case name == "":
		return serr.InvalidPath(name, "", "bucket name is empty")
	case name == "." || name == "..":
		return serr.InvalidPath(name, "", "bucket name is a directory reference")
	case strings.ContainsAny(name, `/\`):
		return serr.InvalidPath(name, "", "bucket name contains a path separator")
	case strings.HasPrefix(name, "."):
		return serr.InvalidPath(name, "", "bucket name is hidden")
	}
	return nil
}

// ValidateObjectKey checks that key is usable as an object name. Keys may
// contain "/" to form a hierarchical key space; every segment must be
// non-empty, non-hidden, and must not be a directory reference. Hidden
// segments are reserved for adapter internals and would be invisible to
// listing.
func ValidateObjectKey(bucket, key string) error {
	if key == "" {
		return serr.InvalidPath(bucket, key, "object key is empty")
	}
	if strings.HasPrefix(key, "/") || strings.HasSuffix(key, "/") {
		return serr.InvalidPath(bucket, key, "object key starts or ends with a separator")
	}
	for _, seg := range strings.Split(key, "/") {
		switch {
		case seg == "":
			return serr.InvalidPath(bucket, key, "object key contains an empty segment")
		case seg == "." || seg == "..":
			return serr.InvalidPath(bucket, key, "object key contains a directory reference")
		case strings.Contains(seg, `\`):
			return serr.InvalidPath(bucket, key, "object key contains a backslash")
		case strings.HasPrefix(seg, "."):
			return serr.InvalidPath(bucket, key, "object key contains a hidden segment")
		}
	}
	return nil
}
