// Package app wires configuration into the long-lived services of a digest
// process and runs digests end to end.
package app

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/devops-job-digest/internal/clock/system"
	"github.com/JakeFAU/devops-job-digest/internal/config"
	"github.com/JakeFAU/devops-job-digest/internal/delivery"
	"github.com/JakeFAU/devops-job-digest/internal/digest"
	"github.com/JakeFAU/devops-job-digest/internal/id/uuid"
	"github.com/JakeFAU/devops-job-digest/internal/policy/ratelimit"
	"github.com/JakeFAU/devops-job-digest/internal/scraper"
	"github.com/JakeFAU/devops-job-digest/internal/storage/local"
)

// App holds the services built from one Config.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	renderer *digest.Renderer
	sender   delivery.Sender
	runner   *Runner
}

// Option customizes App construction.
type Option func(*options)

type options struct {
	sender delivery.Sender
}

// WithSender replaces the SMTP mailer.
func WithSender(s delivery.Sender) Option {
	return func(o *options) {
		o.sender = s
	}
}

// New builds the scrape pipeline, renderer, mailer and runner from cfg.
func New(cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	clk := system.New()
	policy := scraper.RetryPolicy{
		MaxAttempts: cfg.Scrape.MaxAttempts,
		Unit:        cfg.Scrape.BackoffUnit,
		MaxDelay:    cfg.Scrape.BackoffMax,
	}
	getter := scraper.NewCollyGetter(scraper.CollyConfig{
		UserAgent: cfg.Scrape.UserAgent,
		Timeout:   cfg.Scrape.RequestTimeout,
	})
	limiter := ratelimit.New(ratelimit.Config{
		RPS:   cfg.Scrape.RateLimitPerHost,
		Burst: cfg.Scrape.RateLimitBurst,
	})
	fetcher := scraper.NewRetryingFetcher(getter, policy, clk, logger, scraper.WithLimiter(limiter))
	extractor := scraper.NewExtractor(scraper.FilterRules{
		Keywords:       cfg.Filter.Keywords,
		RemoteTags:     cfg.Filter.RemoteTags,
		MaxTitleLength: cfg.Scrape.MaxTitleLength,
	}, logger)
	aggregator := scraper.NewAggregator(fetcher, extractor, scraper.AggregatorOptions{
		Concurrency: cfg.Scrape.Concurrency,
		Timeout:     cfg.Scrape.RequestTimeout,
		Headers:     toHeader(cfg.Scrape.Headers),
	}, logger)

	renderer, err := digest.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("build renderer: %w", err)
	}

	sender := o.sender
	if sender == nil {
		sender = delivery.New(delivery.Config{
			Host:     cfg.Delivery.SMTPHost,
			Port:     cfg.Delivery.SMTPPort,
			Username: cfg.Delivery.Username,
			Password: cfg.Delivery.APIKey,
			From:     cfg.Delivery.From,
			To:       cfg.Delivery.To,
		}, logger)
	}

	deps := RunnerDeps{
		Registry:      cfg.Sites,
		Scraper:       aggregator,
		Renderer:      renderer,
		Sender:        sender,
		SubjectPrefix: cfg.Digest.SubjectPrefix,
		Clock:         clk,
		IDs:           uuid.New(),
		Logger:        logger,
	}
	if cfg.Digest.ArchiveDir != "" {
		store, err := local.New(local.Config{BaseDir: cfg.Digest.ArchiveDir})
		if err != nil {
			return nil, fmt.Errorf("open digest archive: %w", err)
		}
		deps.Archive = store
	}

	for _, problem := range cfg.DeliveryProblems() {
		logger.Warn("delivery is misconfigured, digests will fail to send", zap.String("problem", problem))
	}

	logger.Info("application services initialized",
		zap.Int("sites", len(cfg.Sites)),
		zap.Int("concurrency", cfg.Scrape.Concurrency),
		zap.Bool("delivery_configured", sender.Configured()),
		zap.Bool("archive_enabled", deps.Archive != nil),
	)

	return &App{
		cfg:      cfg,
		logger:   logger,
		renderer: renderer,
		sender:   sender,
		runner:   NewRunner(deps),
	}, nil
}

// Runner returns the digest runner.
func (a *App) Runner() *Runner {
	return a.runner
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the root logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// SendTestDigest renders a fixed two-posting sample and sends it, so delivery
// settings can be checked without scraping.
func (a *App) SendTestDigest(ctx context.Context) error {
	if !a.sender.Configured() {
		return delivery.ErrMissingCredential
	}
	sample := []scraper.Posting{
		{Company: "Remotive", Title: "Senior DevOps Engineer - Worldwide Remote", Link: "https://remotive.com/remote-jobs/devops"},
		{Company: "WeWorkRemotely", Title: "Site Reliability Engineer - Work From Anywhere", Link: "https://weworkremotely.com/remote-jobs/search?term=devops"},
	}
	html, err := a.renderer.Render(sample, system.New().Now())
	if err != nil {
		return fmt.Errorf("render test digest: %w", err)
	}
	prefix := a.cfg.Digest.SubjectPrefix
	if prefix == "" {
		prefix = digest.DefaultSubjectPrefix
	}
	if err := a.sender.Send(ctx, prefix+" - TEST", html); err != nil {
		return fmt.Errorf("send test digest: %w", err)
	}
	a.logger.Info("test digest sent")
	return nil
}

// Close flushes the logger.
func (a *App) Close() {
	_ = a.logger.Sync() //nolint:errcheck // stderr sync returns EINVAL on linux
}

func toHeader(in map[string]string) http.Header {
	if len(in) == 0 {
		return nil
	}
	h := make(http.Header, len(in))
	for k, v := range in {
		h.Set(k, v)
	}
	return h
}
