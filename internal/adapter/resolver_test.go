package adapter

import (
	"path/filepath"
	"strings"
	"testing"

	serr "github.com/shelfstore/shelfstore/internal/errors"
)

func TestValidateBucketName(t *testing.T) {
	valid := []string{"photos", "my-bucket", "bucket_2", "UPPER", "a"}
	for _, name := range valid {
		if err := ValidateBucketName(name); err != nil {
			t.Errorf("ValidateBucketName(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{"", ".", "..", "a/b", `a\b`, ".hidden", ".tmp"}
	for _, name := range invalid {
		err := ValidateBucketName(name)
		if err == nil {
			t.Errorf("ValidateBucketName(%q) should fail", name)
			continue
		}
		if !serr.IsInvalidPath(err) {
			t.Errorf("ValidateBucketName(%q) = %v, want InvalidPath", name, err)
		}
	}
}

func TestValidateObjectKey(t *testing.T) {
	valid := []string{"a.png", "path/to/file.txt", "file", "a-b_c.d", "deep/er/est/leaf"}
	for _, key := range valid {
		if err := ValidateObjectKey("bucket", key); err != nil {
			t.Errorf("ValidateObjectKey(%q) = %v, want nil", key, err)
		}
	}

	invalid := []string{
		"",
		"/leading",
		"trailing/",
		"a//b",
		"a/./b",
		"a/../b",
		"..",
		`a\b`,
		".hidden",
		"a/.hidden/b",
	}
	for _, key := range invalid {
		err := ValidateObjectKey("bucket", key)
		if err == nil {
			t.Errorf("ValidateObjectKey(%q) should fail", key)
			continue
		}
		if !serr.IsInvalidPath(err) {
			t.Errorf("ValidateObjectKey(%q) = %v, want InvalidPath", key, err)
		}
	}
}

func TestResolverBucketPath(t *testing.T) {
	r := NewResolver("/data/objects")

	got, err := r.BucketPath("photos")
	if err != nil {
		t.Fatalf("BucketPath failed: %v", err)
	}
	want := filepath.Join("/data/objects", "photos")
	if got != want {
		t.Errorf("BucketPath = %q, want %q", got, want)
	}

	if _, err := r.BucketPath("../escape"); err == nil {
		t.Error("BucketPath should reject a name with a separator")
	}
}

func TestResolverObjectPath(t *testing.T) {
	r := NewResolver("/data/objects")

	got, err := r.ObjectPath("photos", "albums/2026/a.png")
	if err != nil {
		t.Fatalf("ObjectPath failed: %v", err)
	}
	want := filepath.Join("/data/objects", "photos", "albums", "2026", "a.png")
	if got != want {
		t.Errorf("ObjectPath = %q, want %q", got, want)
	}
}

func TestResolverPathsStayUnderRoot(t *testing.T) {
	r := NewResolver("/data/objects")

	// Every address the resolver accepts must map under the root.
	cases := []struct{ bucket, key string }{
		{"b", "k"},
		{"b", "a/b/c"},
		{"bucket-name", "x.y"},
	}
	for _, tc := range cases {
		path, err := r.ObjectPath(tc.bucket, tc.key)
		if err != nil {
			t.Fatalf("ObjectPath(%q, %q) failed: %v", tc.bucket, tc.key, err)
		}
		if !strings.HasPrefix(path, r.Root()+string(filepath.Separator)) {
			t.Errorf("ObjectPath(%q, %q) = %q escapes root %q", tc.bucket, tc.key, path, r.Root())
		}
	}

	// Addresses that would escape are rejected, never normalized.
	if _, err := r.ObjectPath("b", "../../../etc/passwd"); err == nil {
		t.Error("ObjectPath should reject parent-reference segments")
	}
	if _, err := r.ObjectPath("..", "k"); err == nil {
		t.Error("ObjectPath should reject a parent-reference bucket")
	}
}

func TestResolverDeterministic(t *testing.T) {
	r := NewResolver("/data/objects")

	p1, err := r.ObjectPath("photos", "a.png")
	if err != nil {
		t.Fatalf("ObjectPath failed: %v", err)
	}
	p2, err := r.ObjectPath("photos", "a.png")
	if err != nil {
		t.Fatalf("ObjectPath failed: %v", err)
	}
	if p1 != p2 {
		t.Errorf("ObjectPath not deterministic: %q != %q", p1, p2)
	}
}
