package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T, maxAge time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	r := NewRedisWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:", maxAge)
	t.Cleanup(func() { r.Close() })
	return r, mr
}

func TestRedis_Get(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 17, 6, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		raw     string
		wantErr error
		wantVal string
	}{
		{name: "absent", wantErr: ErrMiss},
		{name: "corrupt", raw: "{not json", wantErr: ErrCorrupt},
		{
			name:    "stored",
			raw:     fmt.Sprintf(`{"key":"k","value":"body","created_at":%q}`, now.Format(time.RFC3339)),
			wantVal: "body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, mr := newTestRedis(t, time.Hour)
			if tt.raw != "" {
				mr.Set("test:k", tt.raw)
			}

			got, err := r.Get(ctx, "k")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Get() error = %v, want %v", err, tt.wantErr)
				}
				if _, ok := Lookup(ctx, r, "k", time.Hour, now); ok {
					t.Error("Lookup() hit, want miss")
				}
				return
			}
			if err != nil {
				t.Fatalf("Get() error: %v", err)
			}
			if got.Value != tt.wantVal || !got.CreatedAt.Equal(now) {
				t.Errorf("Get() = %+v", got)
			}
		})
	}
}

func TestRedis_PutSetsExpiry(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t, 24*time.Hour)
	now := time.Now().UTC()

	if err := r.Put(ctx, Entry{Key: "article:abc", Value: "text", CreatedAt: now}); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if ttl := mr.TTL("test:article:abc"); ttl != 24*time.Hour {
		t.Errorf("TTL = %v, want 24h", ttl)
	}
	if got, ok := Lookup(ctx, r, "article:abc", time.Hour, now); !ok || got != "text" {
		t.Errorf("Lookup() = (%q, %v), want (text, true)", got, ok)
	}

	mr.FastForward(25 * time.Hour)
	if _, err := r.Get(ctx, "article:abc"); !errors.Is(err, ErrMiss) {
		t.Errorf("Get() after expiry error = %v, want ErrMiss", err)
	}
}

func TestRedis_ResetOnlyTouchesPrefix(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t, 0)

	// More than one DEL batch.
	for i := range 1203 {
		mr.Set(fmt.Sprintf("test:k%d", i), "{}")
	}
	mr.Set("other:keep", "x")

	if err := r.Reset(ctx); err != nil {
		t.Fatalf("Reset() error: %v", err)
	}
	keys := mr.Keys()
	if len(keys) != 1 || keys[0] != "other:keep" {
		t.Errorf("keys after Reset() = %d (%v...), want [other:keep]", len(keys), keys[:min(3, len(keys))])
	}
}
