package discogs

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"syscall"
	"time"
)

// ErrConfig reports invalid or missing configuration detected at assembly
// time, before any request is served.
type ErrConfig struct {
	Reason string
}

func (e *ErrConfig) Error() string {
	return "config: " + e.Reason
}

// ErrLLM is a provider-level failure that is not a plain HTTP status error:
// malformed responses, safety blocks, empty candidates.
type ErrLLM struct {
	Provider string
	Message  string
}

func (e *ErrLLM) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// ErrHTTP is a non-2xx response from a provider or tool backend.
// RetryAfter is populated from the Retry-After header when present.
type ErrHTTP struct {
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// ParseRetryAfter parses a Retry-After header value: either delay seconds
// ("120") or an HTTP date. Returns 0 when absent or unparseable.
func ParseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// IsTransient reports whether err is worth retrying against the same
// backend: 429, 5xx, or a connectivity failure.
func IsTransient(err error) bool {
	var httpErr *ErrHTTP
	if errors.As(err, &httpErr) {
		return httpErr.Status == 429 || httpErr.Status == 502 || httpErr.Status == 503 || httpErr.Status == 504
	}
	return IsConnectivity(err)
}

// IsConnectivity reports whether err means the backend could not be
// reached at all: dial failures, resets, timeouts, truncated bodies.
// An HTTP status error is never a connectivity failure; the server
// answered, it just said no. Failover rotates only on connectivity
// errors, mirroring how an unreachable local model server should yield
// to a hosted one while a hosted 4xx/5xx should not burn the rotation.
func IsConnectivity(err error) bool {
	if err == nil {
		return false
	}
	var httpErr *ErrHTTP
	if errors.As(err, &httpErr) {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
