// Package cache defines the key/value cache contract shared by the ingestion
// and summarization stages, together with TTL lookup helpers, content keys,
// and the in-memory and Redis backends. The SQLite backend lives in
// internal/storage.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"
)

// ErrMiss is returned by Store.Get when no entry exists for the key.
var ErrMiss = errors.New("cache miss")

// ErrCorrupt is returned when a stored entry cannot be decoded.
var ErrCorrupt = errors.New("corrupt cache entry")

// Entry is a single cached value. CreatedAt is the write time and drives
// expiry.
type Entry struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the minimal persistence contract. Put is an upsert where the last
// write wins.
type Store interface {
	Get(ctx context.Context, key string) (Entry, error)
	Put(ctx context.Context, e Entry) error
}

// Resetter is implemented by stores that can drop every entry.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Pruner is implemented by stores that can delete entries written before a
// cutoff. It returns the number of removed entries.
type Pruner interface {
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}

// Lookup returns the cached value for key when it exists and is younger than
// ttl at now. Absent, expired, unreadable and corrupt entries are all
// reported as a miss; Lookup never fails.
func Lookup(ctx context.Context, s Store, key string, ttl time.Duration, now time.Time) (string, bool) {
	if s == nil {
		return "", false
	}
	e, err := s.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			slog.Warn("cache read failed, treating as miss", "key", key, "error", err)
		}
		return "", false
	}
	if e.CreatedAt.IsZero() || e.Value == "" {
		slog.Warn("corrupt cache entry, treating as miss", "key", key)
		return "", false
	}
	if now.Sub(e.CreatedAt) >= ttl {
		return "", false
	}
	return e.Value, true
}

// Save writes value under key stamped with now. Failures are logged and
// otherwise ignored since a missing entry only costs a recomputation.
func Save(ctx context.Context, s Store, key, value string, now time.Time) {
	if s == nil || value == "" {
		return
	}
	if err := s.Put(ctx, Entry{Key: key, Value: value, CreatedAt: now}); err != nil {
		slog.Warn("cache write failed", "key", key, "error", err)
	}
}

// NormalizeURL lowercases scheme and host and strips fragments and trailing
// slashes so trivially different spellings share a cache key.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path != "/" {
		u.Path = strings.TrimRight(u.Path, "/")
	} else {
		u.Path = ""
	}
	u.RawPath = ""
	return u.String()
}

// Hash returns the hex-encoded SHA-256 of s.
func Hash(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// SetHash hashes a set of URLs independent of their order.
func SetHash(urls []string) string {
	norm := make([]string, len(urls))
	for i, u := range urls {
		norm[i] = NormalizeURL(u)
	}
	sort.Strings(norm)
	return Hash(strings.Join(norm, "\n"))
}

// TextKey is the key of an article's extracted body text.
func TextKey(articleURL string) string {
	return "text:" + Hash(NormalizeURL(articleURL))
}

// SummaryKey is the key of a story summary produced by method.
func SummaryKey(urls []string, method string) string {
	return "summary:" + SetHash(urls) + ":" + method
}

// RatingKey is the key of an LLM importance rating produced by model.
func RatingKey(urls []string, model string) string {
	return "rating:" + SetHash(urls) + ":" + model
}
