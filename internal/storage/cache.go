package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hoanghai1803/spectrum/internal/cache"
)

// Get returns the cache entry for key, or cache.ErrMiss when none exists.
// A row whose timestamp cannot be parsed is returned with a zero CreatedAt,
// which cache.Lookup treats as corrupt.
func (s *Store) Get(ctx context.Context, key string) (cache.Entry, error) {
	var (
		e         cache.Entry
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT key, value, created_at FROM cache_entries WHERE key = ?`, key,
	).Scan(&e.Key, &e.Value, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return cache.Entry{}, cache.ErrMiss
		}
		return cache.Entry{}, fmt.Errorf("getting cache entry: %w", err)
	}
	e.CreatedAt = parseTime(createdAt)
	return e, nil
}

// Put inserts the entry or replaces the existing row with the same key.
func (s *Store) Put(ctx context.Context, e cache.Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (key, value, created_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			value      = excluded.value,
			created_at = excluded.created_at`,
		e.Key, e.Value, formatTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting cache entry: %w", err)
	}
	return nil
}

// Reset deletes every cache entry. Run history is kept.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("resetting cache: %w", err)
	}
	return nil
}

// Prune deletes entries written before olderThan and returns how many were
// removed.
func (s *Store) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE created_at < ?`, formatTime(olderThan))
	if err != nil {
		return 0, fmt.Errorf("pruning cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned rows: %w", err)
	}
	return n, nil
}

// CacheStats summarizes the cache table.
type CacheStats struct {
	Entries int
	Oldest  time.Time
	Newest  time.Time
}

// Stats returns the number of cache entries and their time span.
func (s *Store) Stats(ctx context.Context) (CacheStats, error) {
	var (
		st             CacheStats
		oldest, newest sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(created_at), MAX(created_at) FROM cache_entries`,
	).Scan(&st.Entries, &oldest, &newest)
	if err != nil {
		return CacheStats{}, fmt.Errorf("querying cache stats: %w", err)
	}
	if oldest.Valid {
		st.Oldest = parseTime(oldest.String)
	}
	if newest.Valid {
		st.Newest = parseTime(newest.String)
	}
	return st, nil
}

var (
	_ cache.Store    = (*Store)(nil)
	_ cache.Resetter = (*Store)(nil)
	_ cache.Pruner   = (*Store)(nil)
)
