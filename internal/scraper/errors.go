package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
)

// FetchErrorKind classifies why a fetch attempt failed.
type FetchErrorKind string

const (
	// KindTimeout is a request that exceeded its deadline.
	KindTimeout FetchErrorKind = "timeout"
	// KindConnection covers refused, reset and unresolvable connections.
	KindConnection FetchErrorKind = "connection"
	// KindHTTPStatus is an unsuccessful status other than 403.
	KindHTTPStatus FetchErrorKind = "http_status"
	// KindForbidden is a 403; the board is blocking us and retrying will not help.
	KindForbidden FetchErrorKind = "forbidden"
	// KindUnexpected is any other transport failure.
	KindUnexpected FetchErrorKind = "unexpected"
	// KindCanceled means the caller's context ended the fetch.
	KindCanceled FetchErrorKind = "canceled"
)

// Retryable reports whether another attempt may succeed.
func (k FetchErrorKind) Retryable() bool {
	switch k {
	case KindForbidden, KindCanceled:
		return false
	default:
		return true
	}
}

// StatusError is returned by a PageGetter when the server answered with a non-success status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.Code, http.StatusText(e.Code))
}

// IsSuccessStatus reports whether a status counts as a successful fetch.
func IsSuccessStatus(code int) bool {
	return code >= 200 && code < 400
}

// FetchError is the terminal failure of a site fetch after the retry loop ends.
type FetchError struct {
	Site       string
	URL        string
	Kind       FetchErrorKind
	StatusCode int
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s (%s): %s status %d after %d attempt(s)", e.Site, e.URL, e.Kind, e.StatusCode, e.Attempts)
	}
	return fmt.Sprintf("fetch %s (%s): %s after %d attempt(s): %v", e.Site, e.URL, e.Kind, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the final failure kind was a transient one.
func (e *FetchError) Retryable() bool {
	return e.Kind.Retryable()
}

// Classify maps a single attempt's error onto a FetchErrorKind.
func Classify(err error) FetchErrorKind {
	if err == nil {
		return ""
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if statusErr.Code == http.StatusForbidden {
			return KindForbidden
		}
		return KindHTTPStatus
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindConnection
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindConnection
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return KindConnection
	}
	return KindUnexpected
}

func statusCodeOf(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code
	}
	return 0
}
