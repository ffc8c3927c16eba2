package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollyGetterReturnsBodyAndSendsHeaders(t *testing.T) {
	t.Parallel()

	received := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- r.Header.Clone()
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>listing</body></html>"))
	}))
	t.Cleanup(srv.Close)

	getter := NewCollyGetter(CollyConfig{UserAgent: "Mozilla/5.0 (JobScraper)", Timeout: time.Second})
	page, err := getter.Get(context.Background(), FetchRequest{
		Site:    "Local",
		URL:     srv.URL + "/jobs",
		Headers: http.Header{"Accept-Language": {"en"}},
	})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, string(page.Body), "listing")
	assert.Equal(t, srv.URL+"/jobs", page.URL)
	headers := <-received
	assert.Equal(t, "Mozilla/5.0 (JobScraper)", headers.Get("User-Agent"))
	assert.Equal(t, "en", headers.Get("Accept-Language"))
}

func TestCollyGetterReportsStatusErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   FetchErrorKind
	}{
		{status: http.StatusForbidden, want: KindForbidden},
		{status: http.StatusServiceUnavailable, want: KindHTTPStatus},
		{status: http.StatusNotFound, want: KindHTTPStatus},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte("blocked"))
			}))
			t.Cleanup(srv.Close)

			page, err := NewCollyGetter(CollyConfig{Timeout: time.Second}).
				Get(context.Background(), FetchRequest{Site: "Local", URL: srv.URL})

			var statusErr *StatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, tc.status, statusErr.Code)
			assert.Equal(t, tc.status, page.StatusCode)
			assert.Equal(t, tc.want, Classify(err))
		})
	}
}

func TestCollyGetterTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	_, err := NewCollyGetter(CollyConfig{}).
		Get(context.Background(), FetchRequest{Site: "Slow", URL: srv.URL, Timeout: 50 * time.Millisecond})

	require.Error(t, err)
	assert.Equal(t, KindTimeout, Classify(err))
}

func TestCollyGetterConnectionRefused(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := NewCollyGetter(CollyConfig{Timeout: time.Second}).
		Get(context.Background(), FetchRequest{Site: "Gone", URL: addr})

	require.Error(t, err)
	assert.Equal(t, KindConnection, Classify(err))
}

func TestCollyGetterCanceledContext(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	serverCanceled := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
			close(serverCanceled)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(func() {
		close(block)
		srv.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := NewCollyGetter(CollyConfig{Timeout: 5 * time.Second}).
		Get(ctx, FetchRequest{Site: "Hang", URL: srv.URL})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 2*time.Second, "cancellation must reach the transport")
	select {
	case <-serverCanceled:
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw the request canceled")
	}
}

type ctxKey struct{}

func TestCollyGetterBuildCollector(t *testing.T) {
	t.Parallel()

	g := NewCollyGetter(CollyConfig{UserAgent: "coverage-agent"})
	ctx := context.WithValue(context.Background(), ctxKey{}, "bound")
	collector := g.buildCollector(ctx, FetchRequest{URL: "https://example.com"})
	assert.Equal(t, "bound", collector.Context.Value(ctxKey{}))
	assert.Equal(t, "coverage-agent", collector.UserAgent)
	assert.True(t, collector.IgnoreRobotsTxt)
	assert.True(t, collector.AllowURLRevisit)
	assert.True(t, collector.ParseHTTPErrorResponse)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	g := NewCollyGetter(CollyConfig{})
	req := FetchRequest{URL: "https://example.com", Headers: http.Header{"X-Trace": {"yes"}}}
	var page Page
	var fetchErr error

	hooks := &stubHooks{}
	g.configureCollectorHooks(hooks, req, time.Now(), &page, &fetchErr)
	require.NotNil(t, hooks.onRequest)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	collyReq := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(collyReq)
	assert.Equal(t, "yes", collyReq.Headers.Get("X-Trace"))

	u, _ := url.Parse("https://example.com/jobs")
	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusAccepted,
		Body:       []byte("body"),
		Headers:    &http.Header{"Content-Type": {"text/html"}},
		Request:    &colly.Request{URL: u},
	})
	assert.Equal(t, http.StatusAccepted, page.StatusCode)
	assert.Equal(t, "https://example.com/jobs", page.URL)
	assert.Equal(t, "text/html", page.Headers.Get("Content-Type"))

	hooks.onError(nil, errors.New("boom"))
	assert.EqualError(t, fetchErr, "boom")
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback)   { s.onRequest = cb }
func (s *stubHooks) OnResponse(cb colly.ResponseCallback) { s.onResponse = cb }
func (s *stubHooks) OnError(cb colly.ErrorCallback)       { s.onError = cb }
