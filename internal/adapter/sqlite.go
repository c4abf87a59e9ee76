package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	serr "github.com/shelfstore/shelfstore/internal/errors"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// SQLiteAdapter implements the Adapter contract with buckets and object
// BLOBs stored in a SQLite database. Suitable for small-to-medium objects
// in single-node or embedded deployments. SQLite serializes writers, so the
// contract's check-then-act races collapse to transaction ordering here.
type SQLiteAdapter struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at dbPath, applies the
// performance PRAGMAs, and creates the schema.
func NewSQLite(dbPath string) (*SQLiteAdapter, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, serr.Backend("", "", fmt.Errorf("opening storage database: %w", err))
	}

	a := &SQLiteAdapter{db: db}
	if err := a.initDB(); err != nil {
		db.Close()
		return nil, serr.Backend("", "", fmt.Errorf("initializing storage database: %w", err))
	}
	return a, nil
}

// initDB applies PRAGMAs and creates the required tables.
func (a *SQLiteAdapter) initDB() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := a.db.Exec(p); err != nil {
			return fmt.Errorf("executing %q: %w", p, err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS buckets (
			name       TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS objects (
			bucket        TEXT NOT NULL,
			key           TEXT NOT NULL,
			data          BLOB NOT NULL,
			last_modified INTEGER NOT NULL,
			PRIMARY KEY (bucket, key)
		);
	`
	if _, err := a.db.Exec(schema); err != nil {
		return fmt.Errorf("creating storage schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (a *SQLiteAdapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// CreateBucket inserts the bucket row. The conditional insert is atomic, so
// concurrent creates for the same name resolve to exactly one row and the
// losers observe AlreadyExists.
func (a *SQLiteAdapter) CreateBucket(ctx context.Context, name string) error {
	if err := ValidateBucketName(name); err != nil {
		return err
	}

	res, err := a.db.ExecContext(ctx,
		`INSERT INTO buckets (name, created_at) VALUES (?, ?) ON CONFLICT (name) DO NOTHING`,
		name, time.Now().UTC().UnixNano(),
	)
	if err != nil {
		return serr.Backend(name, "", fmt.Errorf("inserting bucket row: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return serr.Backend(name, "", fmt.Errorf("checking bucket insert: %w", err))
	}
	if n == 0 {
		return serr.AlreadyExists(name)
	}
	return nil
}

// DeleteBucket removes the bucket row if no object rows reference it.
func (a *SQLiteAdapter) DeleteBucket(ctx context.Context, name string) error {
	if err := ValidateBucketName(name); err != nil {
		return err
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return serr.Backend(name, "", fmt.Errorf("beginning delete transaction: %w", err))
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM buckets WHERE name = ?`, name,
	).Scan(&exists); err != nil {
		return serr.Backend(name, "", fmt.Errorf("checking bucket row: %w", err))
	}
	if exists == 0 {
		return serr.NotFound(name, "")
	}

	var children int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM objects WHERE bucket = ?`, name,
	).Scan(&children); err != nil {
		return serr.Backend(name, "", fmt.Errorf("counting bucket objects: %w", err))
	}
	if children > 0 {
		return serr.NotEmpty(name)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM buckets WHERE name = ?`, name); err != nil {
		return serr.Backend(name, "", fmt.Errorf("deleting bucket row: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return serr.Backend(name, "", fmt.Errorf("committing bucket delete: %w", err))
	}
	return nil
}

// GetBucket returns the bucket's metadata.
func (a *SQLiteAdapter) GetBucket(ctx context.Context, name string) (*BucketInfo, error) {
	if err := ValidateBucketName(name); err != nil {
		return nil, err
	}

	var createdAt int64
	err := a.db.QueryRowContext(ctx,
		`SELECT created_at FROM buckets WHERE name = ?`, name,
	).Scan(&createdAt)
	if err == sql.ErrNoRows {
		return nil, serr.NotFound(name, "")
	}
	if err != nil {
		return nil, serr.Backend(name, "", fmt.Errorf("reading bucket row: %w", err))
	}
	return &BucketInfo{Name: name, CreatedAt: time.Unix(0, createdAt).UTC()}, nil
}

// ListBuckets returns every bucket in insertion order.
func (a *SQLiteAdapter) ListBuckets(ctx context.Context) ([]BucketInfo, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT name, created_at FROM buckets`)
	if err != nil {
		return nil, serr.Backend("", "", fmt.Errorf("querying bucket rows: %w", err))
	}
	defer rows.Close()

	var buckets []BucketInfo
	for rows.Next() {
		var name string
		var createdAt int64
		if err := rows.Scan(&name, &createdAt); err != nil {
			return nil, serr.Backend("", "", fmt.Errorf("scanning bucket row: %w", err))
		}
		buckets = append(buckets, BucketInfo{Name: name, CreatedAt: time.Unix(0, createdAt).UTC()})
	}
	if err := rows.Err(); err != nil {
		return nil, serr.Backend("", "", fmt.Errorf("iterating bucket rows: %w", err))
	}
	return buckets, nil
}

// BucketExists reports whether the bucket row is present.
func (a *SQLiteAdapter) BucketExists(ctx context.Context, name string) (bool, error) {
	if err := ValidateBucketName(name); err != nil {
		return false, err
	}

	var count int
	err := a.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM buckets WHERE name = ?`, name,
	).Scan(&count)
	if err != nil {
		return false, serr.Backend(name, "", fmt.Errorf("checking bucket row: %w", err))
	}
	return count > 0, nil
}

// CreateObject stores content as a BLOB, replacing any existing row at the
// same address. Metadata is accepted but not persisted.
func (a *SQLiteAdapter) CreateObject(ctx context.Context, bucket, key string, content []byte, metadata map[string]string) (*ObjectInfo, error) {
	if err := ValidateBucketName(bucket); err != nil {
		return nil, err
	}
	if err := ValidateObjectKey(bucket, key); err != nil {
		return nil, err
	}
	if err := a.requireBucket(ctx, bucket); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	_, err := a.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO objects (bucket, key, data, last_modified) VALUES (?, ?, ?, ?)`,
		bucket, key, content, now.UnixNano(),
	)
	if err != nil {
		return nil, serr.Backend(bucket, key, fmt.Errorf("inserting object row: %w", err))
	}

	return &ObjectInfo{
		Name:         key,
		Size:         int64(len(content)),
		ETag:         computeETag(content),
		LastModified: now,
	}, nil
}

// GetObject returns the object's content.
func (a *SQLiteAdapter) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := ValidateBucketName(bucket); err != nil {
		return nil, err
	}
	if err := ValidateObjectKey(bucket, key); err != nil {
		return nil, err
	}

	var data []byte
	err := a.db.QueryRowContext(ctx,
		`SELECT data FROM objects WHERE bucket = ? AND key = ?`,
		bucket, key,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, serr.NotFound(bucket, key)
	}
	if err != nil {
		return nil, serr.Backend(bucket, key, fmt.Errorf("reading object row: %w", err))
	}
	return data, nil
}

// DeleteObject removes the object row.
func (a *SQLiteAdapter) DeleteObject(ctx context.Context, bucket, key string) error {
	if err := ValidateBucketName(bucket); err != nil {
		return err
	}
	if err := ValidateObjectKey(bucket, key); err != nil {
		return err
	}

	res, err := a.db.ExecContext(ctx,
		`DELETE FROM objects WHERE bucket = ? AND key = ?`,
		bucket, key,
	)
	if err != nil {
		return serr.Backend(bucket, key, fmt.Errorf("deleting object row: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return serr.Backend(bucket, key, fmt.Errorf("checking object delete: %w", err))
	}
	if n == 0 {
		return serr.NotFound(bucket, key)
	}
	return nil
}

// CopyObject reads the source BLOB and writes it to the destination with
// create semantics, recomputing the ETag from the copied bytes.
func (a *SQLiteAdapter) CopyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) (*ObjectInfo, error) {
	data, err := a.GetObject(ctx, srcBucket, srcKey)
	if err != nil {
		return nil, err
	}
	return a.CreateObject(ctx, dstBucket, dstKey, data, nil)
}

// ListObjects returns info for every object whose key starts with prefix.
// The filter is applied in Go as a raw byte prefix rather than with SQL
// LIKE, which would need wildcard escaping. ETags are recomputed from each
// row's BLOB at listing time.
func (a *SQLiteAdapter) ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	if err := ValidateBucketName(bucket); err != nil {
		return nil, err
	}
	if err := a.requireBucket(ctx, bucket); err != nil {
		return nil, err
	}

	rows, err := a.db.QueryContext(ctx,
		`SELECT key, data, last_modified FROM objects WHERE bucket = ?`,
		bucket,
	)
	if err != nil {
		return nil, serr.Backend(bucket, "", fmt.Errorf("querying object rows: %w", err))
	}
	defer rows.Close()

	var infos []ObjectInfo
	for rows.Next() {
		var key string
		var data []byte
		var lastModified int64
		if err := rows.Scan(&key, &data, &lastModified); err != nil {
			return nil, serr.Backend(bucket, "", fmt.Errorf("scanning object row: %w", err))
		}
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		infos = append(infos, ObjectInfo{
			Name:         key,
			Prefix:       prefix,
			Size:         int64(len(data)),
			ETag:         computeETag(data),
			LastModified: time.Unix(0, lastModified).UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, serr.Backend(bucket, "", fmt.Errorf("iterating object rows: %w", err))
	}
	return infos, nil
}

// HealthCheck verifies the database is operational.
func (a *SQLiteAdapter) HealthCheck(ctx context.Context) error {
	var n int
	if err := a.db.QueryRowContext(ctx, `SELECT 1`).Scan(&n); err != nil {
		return serr.Backend("", "", fmt.Errorf("pinging storage database: %w", err))
	}
	return nil
}

// requireBucket fails with NotFound unless the bucket row exists.
func (a *SQLiteAdapter) requireBucket(ctx context.Context, bucket string) error {
	exists, err := a.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if !exists {
		return serr.NotFound(bucket, "")
	}
	return nil
}

// Ensure SQLiteAdapter implements Adapter at compile time.
var _ Adapter = (*SQLiteAdapter)(nil)
