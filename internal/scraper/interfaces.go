package scraper

import (
	"context"
	"time"
)

// PageGetter performs exactly one GET attempt. Non-success statuses are
// reported as *StatusError alongside the page that carried them.
type PageGetter interface {
	Get(ctx context.Context, req FetchRequest) (Page, error)
}

// Fetcher returns a listing page or a *FetchError once retries are spent.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (Page, error)
}

// Sleeper waits between attempts.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Limiter paces requests per host.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}
