package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shelfstore.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
  format: json
metrics:
  enabled: false
adapters:
  - name: primary
    backend: local
    local:
      root_dir: /var/lib/shelfstore
      create_missing: false
      dir_mode: "0750"
  - name: scratch
    backend: memory
  - name: archive
    backend: sqlite
    sqlite:
      path: /var/lib/shelfstore.db
  - name: upstream
    backend: s3
    s3:
      bucket: my-bucket
      region: eu-west-1
      prefix: ss/
      use_path_style: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want debug/json", cfg.Logging)
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = true, want false")
	}
	if len(cfg.Adapters) != 4 {
		t.Fatalf("len(Adapters) = %d, want 4", len(cfg.Adapters))
	}

	local := cfg.Adapters[0]
	if local.Name != "primary" || local.Backend != "local" {
		t.Errorf("adapter[0] = %+v, want primary/local", local)
	}
	if local.Local.RootDir != "/var/lib/shelfstore" {
		t.Errorf("RootDir = %q, want /var/lib/shelfstore", local.Local.RootDir)
	}
	if local.Local.CreateMissingOrDefault() {
		t.Error("CreateMissingOrDefault = true, want false")
	}
	mode, err := local.Local.ParseDirMode()
	if err != nil {
		t.Fatalf("ParseDirMode failed: %v", err)
	}
	if mode != 0o750 {
		t.Errorf("dir mode = %o, want 0750", mode)
	}

	s3 := cfg.Adapters[3]
	if s3.S3.Bucket != "my-bucket" || s3.S3.Region != "eu-west-1" || !s3.S3.UsePathStyle {
		t.Errorf("s3 config = %+v", s3.S3)
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
adapters:
  - name: main
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("Level = %q, want info", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Format = %q, want text", cfg.Logging.Format)
	}

	ac := cfg.Adapters[0]
	if ac.Backend != "local" {
		t.Errorf("Backend = %q, want local (default)", ac.Backend)
	}
	if ac.Local.RootDir != "./data/objects" {
		t.Errorf("RootDir = %q, want ./data/objects (default)", ac.Local.RootDir)
	}
	if !ac.Local.CreateMissingOrDefault() {
		t.Error("CreateMissingOrDefault = false, want true default")
	}
}

func TestLoadNoAdaptersGetsDefault(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: warn
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Adapters) != 1 {
		t.Fatalf("len(Adapters) = %d, want 1 default adapter", len(cfg.Adapters))
	}
	if cfg.Adapters[0].Name != "default" || cfg.Adapters[0].Backend != "local" {
		t.Errorf("default adapter = %+v", cfg.Adapters[0])
	}
}

func TestLoadMissingFileNoFallback(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "nope.yaml")); err == nil {
		t.Error("Load should fail when neither the file nor an example fallback exists")
	}
}

func TestLoadFallsBackToExample(t *testing.T) {
	dir := t.TempDir()
	example := filepath.Join(dir, "shelfstore.example.yaml")
	if err := os.WriteFile(example, []byte("adapters:\n  - name: from-example\n    backend: memory\n"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(filepath.Join(dir, "shelfstore.yaml"))
	if err != nil {
		t.Fatalf("Load (fallback) failed: %v", err)
	}
	if len(cfg.Adapters) != 1 || cfg.Adapters[0].Name != "from-example" {
		t.Errorf("adapters = %+v, want the example's adapter", cfg.Adapters)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unnamed adapter", "adapters:\n  - backend: memory\n"},
		{"duplicate names", "adapters:\n  - name: a\n    backend: memory\n  - name: a\n    backend: memory\n"},
		{"unknown backend", "adapters:\n  - name: a\n    backend: tape\n"},
		{"s3 missing bucket", "adapters:\n  - name: a\n    backend: s3\n    s3:\n      region: us-east-1\n"},
		{"s3 missing region", "adapters:\n  - name: a\n    backend: s3\n    s3:\n      bucket: b\n"},
		{"bad dir_mode", "adapters:\n  - name: a\n    backend: local\n    local:\n      dir_mode: \"xyz\"\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.content)
			if _, err := Load(path); err == nil {
				t.Errorf("Load should reject %s", tc.name)
			}
		})
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "adapters: [unclosed")
	if _, err := Load(path); err == nil {
		t.Error("Load should fail on malformed YAML")
	}
}

func TestParseDirModeEmpty(t *testing.T) {
	var lc LocalConfig
	mode, err := lc.ParseDirMode()
	if err != nil {
		t.Fatalf("ParseDirMode failed: %v", err)
	}
	if mode != 0 {
		t.Errorf("mode = %o, want 0 for empty dir_mode", mode)
	}
}
