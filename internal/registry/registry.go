// Package registry opens the configured set of storage adapters and serves
// lookups by identifier. It is the configuration-time backend selection: a
// generic storage facade resolves an adapter name here and then talks only
// through the Adapter contract.
package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/shelfstore/shelfstore/internal/adapter"
	"github.com/shelfstore/shelfstore/internal/config"
)

// Registry holds the opened adapters, keyed by their configured name.
// Adapters are constructed once at Open time and are immutable afterwards;
// the registry itself is safe for concurrent lookups.
type Registry struct {
	adapters map[string]adapter.Adapter
	closers  []io.Closer
}

// Open constructs every adapter named in the configuration. When metrics
// are enabled, each adapter is wrapped with operation instrumentation
// labeled by its configured name. On any construction failure the already
// opened adapters are closed and the error is returned.
func Open(ctx context.Context, cfg *config.Config) (*Registry, error) {
	r := &Registry{adapters: make(map[string]adapter.Adapter, len(cfg.Adapters))}

	for _, ac := range cfg.Adapters {
		a, closer, err := open(ctx, ac)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("opening adapter %q: %w", ac.Name, err)
		}
		if closer != nil {
			r.closers = append(r.closers, closer)
		}
		if cfg.Metrics.Enabled {
			a = adapter.Instrument(a, ac.Name)
		}
		r.adapters[ac.Name] = a
		slog.Info("Storage adapter opened", "name", ac.Name, "backend", ac.Backend)
	}
	return r, nil
}

// open constructs a single adapter from its configuration.
func open(ctx context.Context, ac config.AdapterConfig) (adapter.Adapter, io.Closer, error) {
	switch ac.Backend {
	case "local":
		dirMode, err := ac.Local.ParseDirMode()
		if err != nil {
			return nil, nil, err
		}
		local, err := adapter.NewLocal(ac.Local.RootDir, ac.Local.CreateMissingOrDefault(), dirMode)
		if err != nil {
			return nil, nil, err
		}
		// Temp files only linger after a crash mid-write.
		if err := local.CleanTempFiles(); err != nil {
			slog.Warn("Failed to clean temp files", "adapter", ac.Name, "error", err)
		}
		return local, nil, nil

	case "memory":
		return adapter.NewMemory(), nil, nil

	case "sqlite":
		sqlite, err := adapter.NewSQLite(ac.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return sqlite, sqlite, nil

	case "s3":
		s3a, err := adapter.NewS3(ctx, adapter.S3Options{
			Bucket:          ac.S3.Bucket,
			Region:          ac.S3.Region,
			Prefix:          ac.S3.Prefix,
			EndpointURL:     ac.S3.EndpointURL,
			UsePathStyle:    ac.S3.UsePathStyle,
			AccessKeyID:     ac.S3.AccessKeyID,
			SecretAccessKey: ac.S3.SecretAccessKey,
		})
		if err != nil {
			return nil, nil, err
		}
		return s3a, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend %q", ac.Backend)
	}
}

// Lookup returns the adapter registered under name.
func (r *Registry) Lookup(name string) (adapter.Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("no adapter named %q (have %v)", name, r.Names())
	}
	return a, nil
}

// Names returns the registered adapter names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every adapter that holds external resources.
func (r *Registry) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
