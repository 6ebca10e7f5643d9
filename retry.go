package discogs

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"
)

// retryProvider wraps a Provider and retries transient failures (429,
// 502/503/504, connectivity errors) with exponential backoff. It sits
// below the failover ring: a hosted provider gets a couple of quick
// retries against itself before a failure ever reaches the rotation
// logic.
type retryProvider struct {
	inner       Provider
	maxAttempts int
	baseDelay   time.Duration
	logger      *slog.Logger
}

// RetryOption configures a retryProvider.
type RetryOption func(*retryProvider)

// RetryMaxAttempts sets the maximum number of attempts (default: 2).
func RetryMaxAttempts(n int) RetryOption {
	return func(r *retryProvider) { r.maxAttempts = n }
}

// RetryBaseDelay sets the initial backoff delay before the second attempt
// (default: 1s). Each subsequent delay doubles.
func RetryBaseDelay(d time.Duration) RetryOption {
	return func(r *retryProvider) { r.baseDelay = d }
}

// RetryLogger sets the structured logger for retry events. Retries log at
// WARN, exhaustion at ERROR. Default is a no-op logger.
func RetryLogger(l *slog.Logger) RetryOption {
	return func(r *retryProvider) { r.logger = l }
}

// WithRetry wraps p with automatic retry on transient errors. When the
// error carries a Retry-After duration, the delay is at least that long.
//
//	chatLLM = discogs.WithRetry(gemini.New(apiKey, model))
//	chatLLM = discogs.WithRetry(groq, discogs.RetryMaxAttempts(3))
func WithRetry(p Provider, opts ...RetryOption) Provider {
	r := &retryProvider{
		inner:       p,
		maxAttempts: 2,
		baseDelay:   time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = nopLogger
	}
	return r
}

// Name delegates to the inner provider.
func (r *retryProvider) Name() string { return r.inner.Name() }

// Chat implements Provider with retry.
func (r *retryProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	var last error
	for i := 0; i < r.maxAttempts; i++ {
		resp, err := r.inner.Chat(ctx, req)
		if err == nil || !IsTransient(err) {
			return resp, err
		}
		last = err
		if i < r.maxAttempts-1 {
			r.logger.Warn("retrying transient error",
				"provider", r.inner.Name(),
				"status", statusOf(err),
				"attempt", i+1,
				"max_attempts", r.maxAttempts)
			timer := time.NewTimer(retryDelay(r.baseDelay, i, err))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ChatResponse{}, ctx.Err()
			case <-timer.C:
			}
		}
	}
	r.logger.Error("all retry attempts exhausted",
		"provider", r.inner.Name(),
		"attempts", r.maxAttempts,
		"error", last)
	return ChatResponse{}, last
}

// statusOf extracts the HTTP status code from an ErrHTTP, or 0.
func statusOf(err error) int {
	var e *ErrHTTP
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// retryDelay computes the delay before retry attempt i: exponential
// backoff with jitter as a floor, the server's Retry-After as a minimum.
func retryDelay(base time.Duration, i int, err error) time.Duration {
	backoff := base << uint(i)
	backoff += time.Duration(rand.Int63n(int64(base)/2 + 1))
	var e *ErrHTTP
	if errors.As(err, &e) && e.RetryAfter > backoff {
		return e.RetryAfter
	}
	return backoff
}
