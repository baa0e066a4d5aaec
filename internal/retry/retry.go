// Package retry provides the backoff policy shared by every network call of
// the pipeline: feed fetches, page downloads, embedding batches and LLM
// summaries.
package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/eapache/go-resiliency/retrier"
)

// StatusError is implemented by errors that carry an HTTP status code.
type StatusError interface {
	error
	HTTPStatus() int
}

// HTTPError is a plain StatusError for callers that only have a response
// code.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return "unexpected status " + http.StatusText(e.StatusCode) + " from " + e.URL
}

func (e *HTTPError) HTTPStatus() int { return e.StatusCode }

// Policy describes how an operation is retried. The zero value runs the
// operation once without a per-attempt timeout.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the wait before the first retry.
	BaseDelay time.Duration
	// Multiplier scales the delay after every retry. Values below 1 are
	// treated as 1.
	Multiplier float64
	// Jitter randomizes each delay by up to this fraction, in [0,1].
	Jitter float64
	// AttemptTimeout bounds every single attempt. Zero disables it.
	AttemptTimeout time.Duration
	// Retryable decides whether an error is transient. Nil uses IsRetryable.
	Retryable func(error) bool
}

// Backoffs returns the delays between attempts.
func (p Policy) Backoffs() []time.Duration {
	n := p.MaxAttempts - 1
	if n <= 0 {
		return nil
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	out := make([]time.Duration, n)
	d := float64(p.BaseDelay)
	for i := range out {
		out[i] = time.Duration(d)
		d *= mult
	}
	return out
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// attempts are exhausted. Cancellation of ctx is never retried.
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	isRetryable := p.Retryable
	if isRetryable == nil {
		isRetryable = IsRetryable
	}

	r := retrier.New(p.Backoffs(), classifier{ctx: ctx, retryable: isRetryable})
	if p.Jitter > 0 {
		r.SetJitter(p.Jitter)
	}

	attempt := 0
	return r.RunCtx(ctx, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			slog.Debug("retrying", "op", op, "attempt", attempt)
		}
		if p.AttemptTimeout <= 0 {
			return fn(ctx)
		}
		attemptCtx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
		defer cancel()
		return fn(attemptCtx)
	})
}

type classifier struct {
	ctx       context.Context
	retryable func(error) bool
}

func (c classifier) Classify(err error) retrier.Action {
	switch {
	case err == nil:
		return retrier.Succeed
	case c.ctx.Err() != nil:
		return retrier.Fail
	case c.retryable(err):
		return retrier.Retry
	default:
		return retrier.Fail
	}
}

// IsRetryable reports whether err is transient: timeouts, connection
// failures, and HTTP 408, 429 and 5xx responses. Everything else, including
// other 4xx responses and decoding failures, is permanent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var se StatusError
	if errors.As(err, &se) {
		return RetryableStatus(se.HTTPStatus())
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF)
}

// RetryableStatus reports whether an HTTP status code is worth retrying.
func RetryableStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= 500
}
