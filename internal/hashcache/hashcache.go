// SPDX-License-Identifier: AGPL-3.0-or-later

// Package hashcache memoizes hashutil digests for regular files, keyed on path plus size and modification time, backed by SQLite
// (spec.md §4.1, expansion: "Hash memoization cache").
package hashcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/forjar-dev/forjar/internal/hashutil"
	"github.com/forjar-dev/forjar/internal/metrics"
	"github.com/forjar-dev/forjar/internal/paths"

	_ "modernc.org/sqlite"
)

const (
	sqliteDriverName = "sqlite"

	defaultBusyTimeout = 5 * time.Second
	defaultJournalMode = "WAL"
	defaultSynchronous = "NORMAL"

	defaultMaxEntries = 100_000
)

// errQuotaExceeded is returned internally when eviction cannot make room;
// callers never see it, since Cache always evicts before inserting.
var errQuotaExceeded = errors.New("hashcache: quota exceeded")

// Options controls how a Cache is opened.
type Options struct {
	// Dir is the base directory where the cache database file lives. If
	// empty, paths.CacheDir() is used.
	Dir string
	// MaxEntries bounds the number of memoized rows. Zero uses the default.
	MaxEntries int64
}

// Cache memoizes path -> digest lookups, invalidated on size/mtime change.
type Cache struct {
	sql        *sql.DB
	maxEntries int64
}

// Open initializes the hash cache database with required pragmas and
// schema, adapted from the teacher's core database bootstrap.
func Open(ctx context.Context, opts Options) (*Cache, error) {
	dir := opts.Dir
	if dir == "" {
		dir = paths.CacheDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("ensure cache dir: %w", err)
	}

	dbPath := filepath.Join(dir, "hashcache.db")
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", filepath.ToSlash(dbPath), int(defaultBusyTimeout/time.Millisecond))

	conn, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open hashcache db: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	maxEntries := opts.MaxEntries
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}

	statements := []string{
		fmt.Sprintf("PRAGMA journal_mode=%s;", defaultJournalMode),
		fmt.Sprintf("PRAGMA synchronous=%s;", defaultSynchronous),
		"PRAGMA foreign_keys=ON;",
	}
	for _, stmt := range statements {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("execute pragma %q: %w", stmt, err)
		}
	}

	if _, err := conn.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS digests (
	path TEXT PRIMARY KEY,
	size INTEGER NOT NULL,
	mtime_unixnano INTEGER NOT NULL,
	digest TEXT NOT NULL,
	accessed_at INTEGER NOT NULL
);`); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("apply hashcache migration: %w", err)
	}

	return &Cache{sql: conn, maxEntries: maxEntries}, nil
}

// Close shuts down the underlying SQLite connection.
func (c *Cache) Close() error {
	if c == nil || c.sql == nil {
		return nil
	}
	return c.sql.Close()
}

// File returns the memoized digest of path if its size and modification
// time still match the cached entry, recomputing and storing it via
// hashutil.File otherwise.
func (c *Cache) File(ctx context.Context, path string) (hashutil.Digest, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	if digest, ok, err := c.lookup(ctx, path, fi.Size(), fi.ModTime()); err != nil {
		return "", err
	} else if ok {
		metrics.HashCacheHitsTotal.WithLabelValues("hit").Inc()
		return digest, nil
	}
	metrics.HashCacheHitsTotal.WithLabelValues("miss").Inc()

	digest, err := hashutil.File(path)
	if err != nil {
		return "", err
	}
	if err := c.store(ctx, path, fi.Size(), fi.ModTime(), digest); err != nil {
		return "", err
	}
	return digest, nil
}

func (c *Cache) lookup(ctx context.Context, path string, size int64, mtime time.Time) (hashutil.Digest, bool, error) {
	var digest string
	var cachedSize, cachedMTime int64
	row := c.sql.QueryRowContext(ctx, `SELECT size, mtime_unixnano, digest FROM digests WHERE path = ?`, path)
	switch err := row.Scan(&cachedSize, &cachedMTime, &digest); {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("hashcache lookup %s: %w", path, err)
	}
	if cachedSize != size || cachedMTime != mtime.UnixNano() {
		return "", false, nil
	}
	if _, err := c.sql.ExecContext(ctx, `UPDATE digests SET accessed_at = ? WHERE path = ?`, time.Now().UTC().UnixNano(), path); err != nil {
		return "", false, fmt.Errorf("hashcache touch %s: %w", path, err)
	}
	return hashutil.Digest(digest), true, nil
}

func (c *Cache) store(ctx context.Context, path string, size int64, mtime time.Time, digest hashutil.Digest) error {
	tx, err := c.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("hashcache begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var count int64
	if err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM digests`).Scan(&count); err != nil {
		return fmt.Errorf("hashcache count: %w", err)
	}
	for count >= c.maxEntries {
		if evictErr := evictOldest(ctx, tx); evictErr != nil {
			if errors.Is(evictErr, errQuotaExceeded) {
				break
			}
			err = evictErr
			return err
		}
		count--
	}

	now := time.Now().UTC().UnixNano()
	if _, err = tx.ExecContext(ctx, `
INSERT INTO digests (path, size, mtime_unixnano, digest, accessed_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(path) DO UPDATE SET size = excluded.size, mtime_unixnano = excluded.mtime_unixnano,
	digest = excluded.digest, accessed_at = excluded.accessed_at
`, path, size, mtime.UnixNano(), string(digest), now); err != nil {
		return fmt.Errorf("hashcache store %s: %w", path, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("hashcache commit: %w", err)
	}
	return nil
}

func evictOldest(ctx context.Context, tx *sql.Tx) error {
	var path string
	err := tx.QueryRowContext(ctx, `SELECT path FROM digests ORDER BY accessed_at ASC LIMIT 1`).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return errQuotaExceeded
	}
	if err != nil {
		return fmt.Errorf("hashcache eviction lookup: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM digests WHERE path = ?`, path); err != nil {
		return fmt.Errorf("hashcache eviction delete %s: %w", path, err)
	}
	return nil
}

// Invalidate removes path's cached entry, if any.
func (c *Cache) Invalidate(ctx context.Context, path string) error {
	if _, err := c.sql.ExecContext(ctx, `DELETE FROM digests WHERE path = ?`, path); err != nil {
		return fmt.Errorf("hashcache invalidate %s: %w", path, err)
	}
	return nil
}
