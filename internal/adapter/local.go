package adapter

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	serr "github.com/shelfstore/shelfstore/internal/errors"
)

// tmpDirName is the hidden directory under the root used for atomic object
// writes. Hidden entries are invisible to bucket listing, so it never
// appears as a bucket.
const tmpDirName = ".tmp"

// LocalAdapter implements the Adapter contract on the local filesystem.
// Buckets map to directories directly under the root and objects to files
// under their bucket directory. The adapter holds no mutable state: all
// state lives in the filesystem, and every metadata read re-queries it.
//
// No in-process lock coordinates concurrent callers. Check-then-act
// sequences (create-if-absent, delete-if-empty) rely on the atomicity of
// the final filesystem call: a racing CreateBucket loses on Mkdir's EEXIST
// and a racing DeleteBucket loses on Remove's ENOTEMPTY. What the
// filesystem itself guarantees under concurrency varies by platform.
type LocalAdapter struct {
	root          string
	createMissing bool
	dirMode       fs.FileMode
	resolver      Resolver
}

// NewLocal creates a LocalAdapter rooted at rootDir, resolved to an absolute
// path. If createMissing is true the root (and the hidden temp directory)
// are created on construction and again lazily by CreateBucket; otherwise a
// missing root is a construction failure. dirMode is the permission mode for
// newly created directories; zero means 0o755.
func NewLocal(rootDir string, createMissing bool, dirMode fs.FileMode) (*LocalAdapter, error) {
	if dirMode == 0 {
		dirMode = 0o755
	}
	root, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, serr.Backend("", "", fmt.Errorf("resolving root directory %q: %w", rootDir, err))
	}

	if createMissing {
		if err := os.MkdirAll(root, dirMode); err != nil {
			return nil, serr.Backend("", "", fmt.Errorf("creating root directory %q: %w", root, err))
		}
	} else {
		info, err := os.Stat(root)
		if err != nil {
			return nil, serr.Backend("", "", fmt.Errorf("validating root directory %q: %w", root, err))
		}
		if !info.IsDir() {
			return nil, serr.Backend("", "", fmt.Errorf("root path %q is not a directory", root))
		}
	}

	if err := os.MkdirAll(filepath.Join(root, tmpDirName), dirMode); err != nil {
		return nil, serr.Backend("", "", fmt.Errorf("creating temp directory: %w", err))
	}

	return &LocalAdapter{
		root:          root,
		createMissing: createMissing,
		dirMode:       dirMode,
		resolver:      NewResolver(root),
	}, nil
}

// Root returns the adapter's absolute root directory.
func (a *LocalAdapter) Root() string { return a.root }

// CleanTempFiles removes leftover files in the temp directory. Temp files
// only linger after a crash mid-write, so this runs on startup.
func (a *LocalAdapter) CleanTempFiles() error {
	tmpDir := filepath.Join(a.root, tmpDirName)
	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return serr.Backend("", "", fmt.Errorf("reading temp directory: %w", err))
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			os.Remove(filepath.Join(tmpDir, entry.Name()))
		}
	}
	return nil
}

// tempPath returns a unique path in the hidden temp directory.
func (a *LocalAdapter) tempPath() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return filepath.Join(a.root, tmpDirName, fmt.Sprintf("put-%032x", time.Now().UnixNano()))
	}
	return filepath.Join(a.root, tmpDirName, "put-"+hex.EncodeToString(b))
}

// CreateBucket creates the bucket directory. The existence check is not
// race-free; the Mkdir itself is, and a racing loser surfaces AlreadyExists.
func (a *LocalAdapter) CreateBucket(ctx context.Context, name string) error {
	path, err := a.resolver.BucketPath(name)
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil {
		return serr.AlreadyExists(name)
	} else if !os.IsNotExist(err) {
		return serr.Backend(name, "", fmt.Errorf("checking bucket directory: %w", err))
	}

	if a.createMissing {
		if err := os.MkdirAll(a.root, a.dirMode); err != nil {
			return serr.Backend(name, "", fmt.Errorf("creating root directory: %w", err))
		}
	}

	if err := os.Mkdir(path, a.dirMode); err != nil {
		if os.IsExist(err) {
			return serr.AlreadyExists(name)
		}
		return serr.Backend(name, "", fmt.Errorf("creating bucket directory: %w", err))
	}
	return nil
}

// DeleteBucket removes the bucket directory if it is empty. Any entry,
// hidden or not, counts as a child and blocks deletion.
func (a *LocalAdapter) DeleteBucket(ctx context.Context, name string) error {
	path, err := a.resolver.BucketPath(name)
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return serr.NotFound(name, "")
		}
		return serr.Backend(name, "", fmt.Errorf("reading bucket directory: %w", err))
	}
	if len(entries) > 0 {
		return serr.NotEmpty(name)
	}

	// os.Remove only removes empty directories; a writer racing the check
	// above makes it fail with ENOTEMPTY rather than destroying its data.
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return serr.NotFound(name, "")
		}
		if isNotEmpty(err) {
			return serr.NotEmpty(name)
		}
		return serr.Backend(name, "", fmt.Errorf("removing bucket directory: %w", err))
	}
	return nil
}

// GetBucket returns the bucket's metadata. CreatedAt is the directory's
// modification time; true creation time is not portably available.
func (a *LocalAdapter) GetBucket(ctx context.Context, name string) (*BucketInfo, error) {
	path, err := a.resolver.BucketPath(name)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, serr.NotFound(name, "")
		}
		return nil, serr.Backend(name, "", fmt.Errorf("stat bucket directory: %w", err))
	}
	if !info.IsDir() {
		// A stray file at the bucket path is not a bucket.
		return nil, serr.NotFound(name, "")
	}

	return &BucketInfo{Name: name, CreatedAt: info.ModTime()}, nil
}

// ListBuckets returns every non-hidden directory under the root, in
// directory iteration order.
func (a *LocalAdapter) ListBuckets(ctx context.Context) ([]BucketInfo, error) {
	entries, err := os.ReadDir(a.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, serr.Backend("", "", fmt.Errorf("reading root directory: %w", err))
	}

	var buckets []BucketInfo
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if os.IsNotExist(err) {
				// Removed between ReadDir and Info.
				continue
			}
			return nil, serr.Backend(entry.Name(), "", fmt.Errorf("stat bucket directory: %w", err))
		}
		buckets = append(buckets, BucketInfo{Name: entry.Name(), CreatedAt: info.ModTime()})
	}
	return buckets, nil
}

// BucketExists reports whether the bucket directory exists.
func (a *LocalAdapter) BucketExists(ctx context.Context, name string) (bool, error) {
	path, err := a.resolver.BucketPath(name)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, serr.Backend(name, "", fmt.Errorf("stat bucket directory: %w", err))
	}
	return info.IsDir(), nil
}

// CreateObject writes content to bucket/key using the atomic write pattern:
// write to a temp file, fsync, rename into place. Readers never observe a
// partially written object. Metadata is accepted for interface compatibility
// but not persisted; sidecar metadata storage is a richer backend's concern.
func (a *LocalAdapter) CreateObject(ctx context.Context, bucket, key string, content []byte, metadata map[string]string) (*ObjectInfo, error) {
	objPath, err := a.resolver.ObjectPath(bucket, key)
	if err != nil {
		return nil, err
	}

	if err := a.requireBucket(bucket); err != nil {
		return nil, err
	}

	// Nested keys need their intermediate directories.
	if err := os.MkdirAll(filepath.Dir(objPath), a.dirMode); err != nil {
		return nil, serr.Backend(bucket, key, fmt.Errorf("creating parent directories: %w", err))
	}

	tmpPath := a.tempPath()
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return nil, serr.Backend(bucket, key, fmt.Errorf("creating temp file: %w", err))
	}

	if _, err := tmpFile.Write(content); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return nil, serr.Backend(bucket, key, fmt.Errorf("writing object data: %w", err))
	}

	// Fsync before rename so the rename never publishes unsynced data.
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return nil, serr.Backend(bucket, key, fmt.Errorf("syncing temp file: %w", err))
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, serr.Backend(bucket, key, fmt.Errorf("closing temp file: %w", err))
	}

	if err := os.Rename(tmpPath, objPath); err != nil {
		os.Remove(tmpPath)
		return nil, serr.Backend(bucket, key, fmt.Errorf("renaming temp file into place: %w", err))
	}

	lastModified := time.Now().UTC()
	if info, err := os.Stat(objPath); err == nil {
		lastModified = info.ModTime()
	}

	return &ObjectInfo{
		Name:         key,
		Size:         int64(len(content)),
		ETag:         computeETag(content),
		LastModified: lastModified,
		URL:          "file://" + objPath,
	}, nil
}

// GetObject reads the object's full content.
func (a *LocalAdapter) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	objPath, err := a.resolver.ObjectPath(bucket, key)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(objPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, serr.NotFound(bucket, key)
		}
		return nil, serr.Backend(bucket, key, fmt.Errorf("stat object file: %w", err))
	}
	if info.IsDir() {
		// A directory at the key path is a key-space prefix, not an object.
		return nil, serr.NotFound(bucket, key)
	}

	data, err := os.ReadFile(objPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, serr.NotFound(bucket, key)
		}
		return nil, serr.Backend(bucket, key, fmt.Errorf("reading object file: %w", err))
	}
	return data, nil
}

// DeleteObject removes the object file and any emptied parent directories
// between it and the bucket root.
func (a *LocalAdapter) DeleteObject(ctx context.Context, bucket, key string) error {
	objPath, err := a.resolver.ObjectPath(bucket, key)
	if err != nil {
		return err
	}

	info, err := os.Stat(objPath)
	if err != nil {
		if os.IsNotExist(err) {
			return serr.NotFound(bucket, key)
		}
		return serr.Backend(bucket, key, fmt.Errorf("stat object file: %w", err))
	}
	if info.IsDir() {
		return serr.NotFound(bucket, key)
	}

	if err := os.Remove(objPath); err != nil {
		if os.IsNotExist(err) {
			return serr.NotFound(bucket, key)
		}
		return serr.Backend(bucket, key, fmt.Errorf("removing object file: %w", err))
	}

	bucketDir := filepath.Join(a.root, bucket)
	cleanEmptyParents(filepath.Dir(objPath), bucketDir)
	return nil
}

// CopyObject reads the source fully and writes it as a fresh create into
// the destination. The result's ETag comes from hashing the copied bytes,
// so a corrupted read can never propagate the source's stale checksum.
func (a *LocalAdapter) CopyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) (*ObjectInfo, error) {
	data, err := a.GetObject(ctx, srcBucket, srcKey)
	if err != nil {
		return nil, err
	}
	return a.CreateObject(ctx, dstBucket, dstKey, data, nil)
}

// ListObjects walks the bucket directory and returns info for every file
// whose logical key starts with prefix. Hidden files and directories are
// skipped. Each entry's content is read in full to recompute its ETag, so
// the cost is proportional to the total bytes under the bucket.
func (a *LocalAdapter) ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	bucketPath, err := a.resolver.BucketPath(bucket)
	if err != nil {
		return nil, err
	}
	if err := a.requireBucket(bucket); err != nil {
		return nil, err
	}

	var objects []ObjectInfo
	walkErr := filepath.WalkDir(bucketPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				// Removed mid-walk.
				return nil
			}
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && path != bucketPath {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(bucketPath, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if !strings.HasPrefix(name, prefix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}

		objects = append(objects, ObjectInfo{
			Name:         name,
			Prefix:       prefix,
			Size:         int64(len(data)),
			ETag:         computeETag(data),
			LastModified: info.ModTime(),
			URL:          "file://" + path,
		})
		return nil
	})
	if walkErr != nil {
		return nil, serr.Backend(bucket, "", fmt.Errorf("walking bucket directory: %w", walkErr))
	}
	return objects, nil
}

// HealthCheck verifies the root directory is accessible.
func (a *LocalAdapter) HealthCheck(ctx context.Context) error {
	if _, err := os.Stat(a.root); err != nil {
		return serr.Backend("", "", fmt.Errorf("stat root directory: %w", err))
	}
	return nil
}

// requireBucket fails with NotFound unless the bucket directory exists.
// Buckets are never created implicitly by object operations.
func (a *LocalAdapter) requireBucket(bucket string) error {
	info, err := os.Stat(filepath.Join(a.root, bucket))
	if err != nil {
		if os.IsNotExist(err) {
			return serr.NotFound(bucket, "")
		}
		return serr.Backend(bucket, "", fmt.Errorf("stat bucket directory: %w", err))
	}
	if !info.IsDir() {
		return serr.NotFound(bucket, "")
	}
	return nil
}

// cleanEmptyParents removes empty directories from dir up to (but not
// including) stopAt. Nested keys leave empty intermediate directories
// behind after deletion; an object listing must not observe them as
// phantom prefixes.
func cleanEmptyParents(dir, stopAt string) {
	dir = filepath.Clean(dir)
	stopAt = filepath.Clean(stopAt)

	for dir != stopAt && strings.HasPrefix(dir, stopAt) {
		if err := os.Remove(dir); err != nil {
			// Not empty or gone already; stop climbing.
			break
		}
		dir = filepath.Dir(dir)
	}
}

// isNotEmpty reports whether err is the filesystem's directory-not-empty
// error.
func isNotEmpty(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ENOTEMPTY || errno == syscall.EEXIST
	}
	return false
}

// Ensure LocalAdapter implements Adapter at compile time.
var _ Adapter = (*LocalAdapter)(nil)
