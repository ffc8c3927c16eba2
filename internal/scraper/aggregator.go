package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/devops-job-digest/internal/logging"
	"github.com/JakeFAU/devops-job-digest/internal/metrics"
	"github.com/JakeFAU/devops-job-digest/internal/sites"
)

// AggregatorOptions tunes a run across the registry.
type AggregatorOptions struct {
	// Concurrency is the number of sites scraped at once; 1 visits them in order.
	Concurrency int
	Timeout     time.Duration
	Headers     http.Header
}

// Aggregator drives the fetcher and extractor over every registered site.
type Aggregator struct {
	fetcher   Fetcher
	extractor *Extractor
	opts      AggregatorOptions
	logger    *zap.Logger
}

// NewAggregator builds an Aggregator.
func NewAggregator(fetcher Fetcher, extractor *Extractor, opts AggregatorOptions, logger *zap.Logger) *Aggregator {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Aggregator{
		fetcher:   fetcher,
		extractor: extractor,
		opts:      opts,
		logger:    logging.Component(logger, "aggregator"),
	}
}

// Run scrapes every site and returns postings in registry order, then
// extraction order within a site. A failing site is logged and contributes nothing.
func (a *Aggregator) Run(ctx context.Context, registry []sites.Site) Result {
	reports := make([]SiteReport, len(registry))
	postings := make([][]Posting, len(registry))

	// Site goroutines never return an error, so one site cannot cancel the others.
	var g errgroup.Group
	g.SetLimit(a.opts.Concurrency)
	for i, site := range registry {
		i, site := i, site
		g.Go(func() error {
			postings[i], reports[i] = a.scrapeSite(ctx, site)
			return nil
		})
	}
	_ = g.Wait()

	var result Result
	result.Sites = reports
	for _, p := range postings {
		result.Postings = append(result.Postings, p...)
	}

	a.logger.Info("aggregation finished",
		zap.Int("sites", len(registry)),
		zap.Int("sites_failed", result.FailedSites()),
		zap.Int("postings", len(result.Postings)),
	)
	return result
}

func (a *Aggregator) scrapeSite(ctx context.Context, site sites.Site) (found []Posting, report SiteReport) {
	report.Site = site
	defer func() {
		if rec := recover(); rec != nil {
			found = nil
			report.Postings = 0
			report.Err = fmt.Errorf("scrape %s panicked: %v", site.Name, rec)
			a.logger.Error("site scrape panicked, continuing", zap.String("site", site.Name), zap.Any("panic", rec))
		}
		metrics.ObserveSite(site.Name, report.Failed(), report.Postings)
	}()

	page, err := a.fetcher.Fetch(ctx, FetchRequest{
		Site:    site.Name,
		URL:     site.URL,
		Headers: a.opts.Headers,
		Timeout: a.opts.Timeout,
	})
	if err != nil {
		report.Err = err
		var fe *FetchError
		if errors.As(err, &fe) {
			report.Attempts = fe.Attempts
		}
		a.logger.Warn("site failed, continuing with next site",
			zap.String("site", site.Name),
			zap.Int("attempts", report.Attempts),
			zap.Error(err),
		)
		return nil, report
	}

	report.Attempts = page.Attempts
	found = a.extractor.Extract(site.Name, site.URL, string(page.Body))
	report.Postings = len(found)
	return found, report
}
