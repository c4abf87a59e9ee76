package adapter

import (
	"context"
	"fmt"
	"sync"
	"testing"

	serr "github.com/shelfstore/shelfstore/internal/errors"
)

func TestMemoryObjectLifecycle(t *testing.T) {
	a := NewMemory()
	ctx := context.Background()

	if err := a.CreateBucket(ctx, "photos"); err != nil {
		t.Fatalf("CreateBucket failed: %v", err)
	}

	content := []byte("TEST DATA")
	info, err := a.CreateObject(ctx, "photos", "a.png", content, nil)
	if err != nil {
		t.Fatalf("CreateObject failed: %v", err)
	}
	if info.Size != 9 {
		t.Errorf("Size = %d, want 9", info.Size)
	}
	if info.ETag != computeETag(content) {
		t.Errorf("ETag = %q, want content MD5", info.ETag)
	}

	data, err := a.GetObject(ctx, "photos", "a.png")
	if err != nil {
		t.Fatalf("GetObject failed: %v", err)
	}
	if string(data) != "TEST DATA" {
		t.Errorf("data = %q, want %q", string(data), "TEST DATA")
	}

	if err := a.DeleteObject(ctx, "photos", "a.png"); err != nil {
		t.Fatalf("DeleteObject failed: %v", err)
	}
	if _, err := a.GetObject(ctx, "photos", "a.png"); !serr.IsNotFound(err) {
		t.Errorf("GetObject after delete = %v, want NotFound", err)
	}
	if err := a.DeleteBucket(ctx, "photos"); err != nil {
		t.Fatalf("DeleteBucket failed: %v", err)
	}
}

func TestMemoryStoredBytesAreCopied(t *testing.T) {
	a := NewMemory()
	ctx := context.Background()

	if err := a.CreateBucket(ctx, "b"); err != nil {
		t.Fatalf("CreateBucket failed: %v", err)
	}

	content := []byte("immutable")
	if _, err := a.CreateObject(ctx, "b", "k", content, nil); err != nil {
		t.Fatalf("CreateObject failed: %v", err)
	}

	// Mutating the caller's slice must not affect the stored object.
	content[0] = 'X'

	data, err := a.GetObject(ctx, "b", "k")
	if err != nil {
		t.Fatalf("GetObject failed: %v", err)
	}
	if string(data) != "immutable" {
		t.Errorf("data = %q, want %q", string(data), "immutable")
	}

	// Mutating the returned slice must not affect a later read.
	data[0] = 'Y'
	again, err := a.GetObject(ctx, "b", "k")
	if err != nil {
		t.Fatalf("GetObject failed: %v", err)
	}
	if string(again) != "immutable" {
		t.Errorf("data = %q, want %q", string(again), "immutable")
	}
}

func TestMemorySameValidationAsFilesystem(t *testing.T) {
	a := NewMemory()
	ctx := context.Background()

	// The in-memory backend has no paths to escape, but callers must not
	// observe a looser contract than the filesystem backend.
	if err := a.CreateBucket(ctx, "a/b"); !serr.IsInvalidPath(err) {
		t.Errorf("CreateBucket = %v, want InvalidPath", err)
	}
	if err := a.CreateBucket(ctx, ".hidden"); !serr.IsInvalidPath(err) {
		t.Errorf("CreateBucket(.hidden) = %v, want InvalidPath", err)
	}

	if err := a.CreateBucket(ctx, "b"); err != nil {
		t.Fatalf("CreateBucket failed: %v", err)
	}
	if _, err := a.CreateObject(ctx, "b", "a/../b", []byte("x"), nil); !serr.IsInvalidPath(err) {
		t.Errorf("CreateObject = %v, want InvalidPath", err)
	}
}

func TestMemoryListObjectsPrefix(t *testing.T) {
	a := NewMemory()
	ctx := context.Background()

	if err := a.CreateBucket(ctx, "b"); err != nil {
		t.Fatalf("CreateBucket failed: %v", err)
	}
	for _, key := range []string{"logs/a", "logs/b", "data/c"} {
		if _, err := a.CreateObject(ctx, "b", key, []byte(key), nil); err != nil {
			t.Fatalf("CreateObject(%q) failed: %v", key, err)
		}
	}

	objects, err := a.ListObjects(ctx, "b", "logs/")
	if err != nil {
		t.Fatalf("ListObjects failed: %v", err)
	}
	if len(objects) != 2 {
		t.Errorf("len(objects) = %d, want 2", len(objects))
	}
	for _, obj := range objects {
		if obj.Prefix != "logs/" {
			t.Errorf("Prefix = %q, want %q", obj.Prefix, "logs/")
		}
	}
}

func TestMemoryConcurrentAccess(t *testing.T) {
	a := NewMemory()
	ctx := context.Background()

	if err := a.CreateBucket(ctx, "b"); err != nil {
		t.Fatalf("CreateBucket failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("obj-%d", i)
			if _, err := a.CreateObject(ctx, "b", key, []byte(key), nil); err != nil {
				t.Errorf("CreateObject(%q) failed: %v", key, err)
				return
			}
			if _, err := a.GetObject(ctx, "b", key); err != nil {
				t.Errorf("GetObject(%q) failed: %v", key, err)
			}
			if _, err := a.ListObjects(ctx, "b", ""); err != nil {
				t.Errorf("ListObjects failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	objects, err := a.ListObjects(ctx, "b", "")
	if err != nil {
		t.Fatalf("ListObjects failed: %v", err)
	}
	if len(objects) != 16 {
		t.Errorf("len(objects) = %d, want 16", len(objects))
	}
}

func TestMemoryConcurrentCreateBucket(t *testing.T) {
	a := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	var created, alreadyExists int
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := a.CreateBucket(ctx, "contested")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case serr.IsAlreadyExists(err):
				alreadyExists++
			default:
				t.Errorf("CreateBucket = %v, want nil or AlreadyExists", err)
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Errorf("created = %d, want exactly 1 winner", created)
	}
	if alreadyExists != 7 {
		t.Errorf("alreadyExists = %d, want 7", alreadyExists)
	}
}
