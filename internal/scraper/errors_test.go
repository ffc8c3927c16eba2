package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want FetchErrorKind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "forbidden", err: &StatusError{Code: 403}, want: KindForbidden},
		{name: "server error", err: &StatusError{Code: 503}, want: KindHTTPStatus},
		{name: "not found wrapped", err: fmt.Errorf("get: %w", &StatusError{Code: 404}), want: KindHTTPStatus},
		{name: "deadline", err: fmt.Errorf("get: %w", context.DeadlineExceeded), want: KindTimeout},
		{name: "net timeout", err: &url.Error{Op: "Get", URL: "https://a.test", Err: timeoutErr{}}, want: KindTimeout},
		{name: "canceled", err: fmt.Errorf("colly fetch canceled: %w", context.Canceled), want: KindCanceled},
		{name: "dial refused", err: &url.Error{Op: "Get", URL: "https://a.test", Err: &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}}, want: KindConnection},
		{name: "dns", err: &net.DNSError{Err: "no such host", Name: "a.test"}, want: KindConnection},
		{name: "reset", err: fmt.Errorf("read: %w", syscall.ECONNRESET), want: KindConnection},
		{name: "unexpected", err: errors.New("stopped after 10 redirects"), want: KindUnexpected},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestFetchErrorKindRetryable(t *testing.T) {
	t.Parallel()

	for _, k := range []FetchErrorKind{KindTimeout, KindConnection, KindHTTPStatus, KindUnexpected} {
		assert.True(t, k.Retryable(), k)
	}
	assert.False(t, KindForbidden.Retryable())
	assert.False(t, KindCanceled.Retryable())
}

func TestFetchErrorUnwrapAndMessage(t *testing.T) {
	t.Parallel()

	inner := &StatusError{Code: 403}
	err := &FetchError{Site: "Board", URL: "https://a.test", Kind: KindForbidden, StatusCode: 403, Attempts: 1, Err: inner}

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 403, statusErr.Code)
	assert.Contains(t, err.Error(), "forbidden status 403 after 1 attempt(s)")
	assert.True(t, IsForbidden(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, err.Retryable())
}

func TestIsSuccessStatus(t *testing.T) {
	t.Parallel()

	assert.True(t, IsSuccessStatus(200))
	assert.True(t, IsSuccessStatus(204))
	assert.True(t, IsSuccessStatus(304))
	assert.False(t, IsSuccessStatus(0))
	assert.False(t, IsSuccessStatus(404))
	assert.False(t, IsSuccessStatus(500))
}
