package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"
)

func TestBackoffs(t *testing.T) {
	p := Policy{MaxAttempts: 4, BaseDelay: 600 * time.Millisecond, Multiplier: 2}
	got := p.Backoffs()
	want := []time.Duration{600 * time.Millisecond, 1200 * time.Millisecond, 2400 * time.Millisecond}
	if len(got) != len(want) {
		t.Fatalf("Backoffs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Backoffs()[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if b := (Policy{MaxAttempts: 1}).Backoffs(); len(b) != 0 {
		t.Errorf("single attempt Backoffs() = %v, want none", b)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("calling api: %w", context.DeadlineExceeded), true},
		{"canceled", context.Canceled, false},
		{"503", &HTTPError{StatusCode: 503}, true},
		{"429", &HTTPError{StatusCode: 429}, true},
		{"408", &HTTPError{StatusCode: 408}, true},
		{"401", &HTTPError{StatusCode: 401}, false},
		{"404", fmt.Errorf("fetch: %w", &HTTPError{StatusCode: 404}), false},
		{"connection refused", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, true},
		{"malformed", errors.New("invalid character '<' looking for beginning of value"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2}
	calls := 0
	err := p.Do(context.Background(), "test", func(context.Context) error {
		calls++
		if calls < 3 {
			return &HTTPError{StatusCode: 502}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: time.Millisecond}
	calls := 0
	err := p.Do(context.Background(), "test", func(context.Context) error {
		calls++
		return &HTTPError{StatusCode: 401}
	})
	var he *HTTPError
	if !errors.As(err, &he) || he.StatusCode != 401 {
		t.Fatalf("Do() error = %v, want 401 HTTPError", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}
	calls := 0
	err := p.Do(context.Background(), "test", func(context.Context) error {
		calls++
		return &HTTPError{StatusCode: 500}
	})
	if err == nil {
		t.Fatal("Do() succeeded, want error")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_AttemptTimeoutIsRetried(t *testing.T) {
	p := Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, AttemptTimeout: 10 * time.Millisecond}
	calls := 0
	err := p.Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		if calls == 1 {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestDo_ParentCancelNotRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 5, BaseDelay: time.Millisecond}
	calls := 0
	err := p.Do(ctx, "test", func(context.Context) error {
		calls++
		cancel()
		return &HTTPError{StatusCode: 503}
	})
	if err == nil {
		t.Fatal("Do() succeeded, want error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
