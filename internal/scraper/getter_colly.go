package scraper

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

const defaultRequestTimeout = 20 * time.Second

// CollyConfig controls collector behavior.
type CollyConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// CollyGetter performs single GET attempts with a fresh Colly collector each time.
type CollyGetter struct {
	cfg       CollyConfig
	transport http.RoundTripper
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// NewCollyGetter builds a CollyGetter sharing one pooled transport across attempts.
func NewCollyGetter(cfg CollyConfig) *CollyGetter {
	return &CollyGetter{
		cfg:       cfg,
		transport: newHTTPTransport(),
	}
}

var _ PageGetter = (*CollyGetter)(nil)

// Get executes one HTTP GET. Every status reaches the response hook; a
// non-success status comes back as *StatusError with the page attached.
func (g *CollyGetter) Get(ctx context.Context, req FetchRequest) (Page, error) {
	var (
		page     Page
		fetchErr error
	)
	start := time.Now()
	collector := g.buildCollector(ctx, req)
	g.configureCollectorHooks(collector, req, start, &page, &fetchErr)

	if err := g.runCollector(ctx, collector, req.URL, &fetchErr); err != nil {
		return Page{}, err
	}
	if !IsSuccessStatus(page.StatusCode) {
		return page, &StatusError{Code: page.StatusCode}
	}
	return page, nil
}

func (g *CollyGetter) buildCollector(ctx context.Context, req FetchRequest) *colly.Collector {
	opts := []colly.CollectorOption{
		colly.StdlibContext(ctx),
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.ParseHTTPErrorResponse(),
	}
	if g.cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(g.cfg.UserAgent))
	}
	collector := colly.NewCollector(opts...)

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = g.cfg.Timeout
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	collector.SetRequestTimeout(timeout)
	collector.WithTransport(g.transport)
	return collector
}

func (g *CollyGetter) configureCollectorHooks(
	hooks collectorHooks,
	req FetchRequest,
	start time.Time,
	page *Page,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		copyHeaders(req.Headers, r)
	})

	hooks.OnResponse(func(r *colly.Response) {
		*page = Page{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func (g *CollyGetter) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		// The request is bound to ctx, so Visit unwinds promptly; wait for it
		// so the hooks stop writing before Get returns.
		<-done
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

func copyHeaders(headers http.Header, r *colly.Request) {
	for key, values := range headers {
		r.Headers.Del(key)
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
