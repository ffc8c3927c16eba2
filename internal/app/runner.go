package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/devops-job-digest/internal/delivery"
	"github.com/JakeFAU/devops-job-digest/internal/digest"
	"github.com/JakeFAU/devops-job-digest/internal/logging"
	"github.com/JakeFAU/devops-job-digest/internal/metrics"
	"github.com/JakeFAU/devops-job-digest/internal/scraper"
	"github.com/JakeFAU/devops-job-digest/internal/sites"
)

var (
	// ErrRunAborted wraps a fault recovered at the run boundary.
	ErrRunAborted = errors.New("digest run aborted")
	// ErrRunInProgress is returned when a run is requested while another is active.
	ErrRunInProgress = errors.New("digest run already in progress")
)

// DeliveryOutcome records what happened to the rendered digest.
type DeliveryOutcome string

// Delivery outcomes.
const (
	DeliverySent    DeliveryOutcome = "sent"
	DeliverySkipped DeliveryOutcome = "skipped"
	DeliveryFailed  DeliveryOutcome = "failed"
	DeliveryNone    DeliveryOutcome = "none"
)

// Scraper gathers postings from the registry.
type Scraper interface {
	Run(ctx context.Context, registry []sites.Site) scraper.Result
}

// Archiver stores a copy of each rendered digest.
type Archiver interface {
	Put(ctx context.Context, name string, data io.Reader) (string, error)
}

// Clock supplies the digest date.
type Clock interface {
	Now() time.Time
}

// IDGenerator creates run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Summary describes one finished run.
type Summary struct {
	RunID       string
	StartedAt   time.Time
	Postings    int
	SitesTotal  int
	SitesFailed int
	Subject     string
	Delivery    DeliveryOutcome
	ArchiveURI  string
	Duration    time.Duration
}

// RunnerDeps are the collaborators of a Runner. Sender and Archive may be nil.
type RunnerDeps struct {
	Registry      []sites.Site
	Scraper       Scraper
	Renderer      *digest.Renderer
	Sender        delivery.Sender
	Archive       Archiver
	SubjectPrefix string
	Clock         Clock
	IDs           IDGenerator
	Logger        *zap.Logger
}

// Runner executes digest runs one at a time.
type Runner struct {
	deps   RunnerDeps
	logger *zap.Logger
	mu     sync.Mutex
}

// NewRunner builds a Runner.
func NewRunner(deps RunnerDeps) *Runner {
	return &Runner{
		deps:   deps,
		logger: logging.Component(deps.Logger, "runner"),
	}
}

// Run scrapes, renders and delivers one digest. Delivery problems are logged
// and reported in the Summary, never returned. A panic is recovered and
// returned as ErrRunAborted.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	if !r.mu.TryLock() {
		return Summary{}, ErrRunInProgress
	}
	defer r.mu.Unlock()
	return r.run(ctx, r.newRunID())
}

// Trigger starts a run in the background and returns its ID.
func (r *Runner) Trigger(ctx context.Context) (string, error) {
	if !r.mu.TryLock() {
		return "", ErrRunInProgress
	}
	runID := r.newRunID()
	go func() {
		defer r.mu.Unlock()
		if _, err := r.run(ctx, runID); err != nil {
			r.logger.Error("triggered run failed", zap.String("run_id", runID), zap.Error(err))
		}
	}()
	return runID, nil
}

// Preview scrapes and renders without delivering or archiving.
func (r *Runner) Preview(ctx context.Context) (Summary, string, error) {
	if !r.mu.TryLock() {
		return Summary{}, "", ErrRunInProgress
	}
	defer r.mu.Unlock()

	runID := r.newRunID()
	var html string
	summary, err := r.guard(runID, func(s *Summary) error {
		var err error
		html, err = r.scrapeAndRender(ctx, s)
		return err
	})
	return summary, html, err
}

func (r *Runner) run(ctx context.Context, runID string) (Summary, error) {
	return r.guard(runID, func(s *Summary) error {
		html, err := r.scrapeAndRender(ctx, s)
		if err != nil {
			return err
		}
		if r.deps.Archive != nil {
			r.archive(ctx, s, html)
		}
		r.deliver(ctx, s, html)
		return nil
	})
}

// guard wraps a run body with the start/summary log lines, metrics and panic recovery.
func (r *Runner) guard(runID string, body func(*Summary) error) (summary Summary, err error) {
	summary = Summary{
		RunID:     runID,
		StartedAt: r.deps.Clock.Now(),
		Delivery:  DeliveryNone,
	}
	start := time.Now()
	log := r.logger.With(zap.String("run_id", runID))
	log.Info("digest run started", zap.Int("sites", len(r.deps.Registry)))

	defer func() {
		summary.Duration = time.Since(start)
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrRunAborted, rec)
			log.Error("digest run aborted by unexpected fault", zap.Any("panic", rec), zap.Stack("stack"))
			metrics.ObserveRun("aborted", summary.Postings, summary.Duration)
			return
		}
		if err != nil {
			log.Error("digest run failed", zap.Error(err))
			metrics.ObserveRun("failed", summary.Postings, summary.Duration)
			return
		}
		log.Info("scraping completed",
			zap.Int("postings", summary.Postings),
			zap.Int("sites", summary.SitesTotal),
			zap.Int("sites_failed", summary.SitesFailed),
			zap.String("delivery", string(summary.Delivery)),
			zap.Duration("duration", summary.Duration),
		)
		metrics.ObserveRun("completed", summary.Postings, summary.Duration)
	}()

	err = body(&summary)
	return summary, err
}

func (r *Runner) scrapeAndRender(ctx context.Context, s *Summary) (string, error) {
	result := r.deps.Scraper.Run(ctx, r.deps.Registry)
	s.Postings = len(result.Postings)
	s.SitesTotal = len(result.Sites)
	s.SitesFailed = result.FailedSites()
	s.Subject = digest.Subject(r.deps.SubjectPrefix, s.Postings)

	html, err := r.deps.Renderer.Render(result.Postings, s.StartedAt)
	if err != nil {
		return "", fmt.Errorf("render digest: %w", err)
	}
	return html, nil
}

func (r *Runner) deliver(ctx context.Context, s *Summary, html string) {
	log := r.logger.With(zap.String("run_id", s.RunID))
	defer func() { metrics.ObserveDelivery(string(s.Delivery)) }()

	if r.deps.Sender == nil || !r.deps.Sender.Configured() {
		s.Delivery = DeliverySkipped
		log.Warn("delivery credential not configured, skipping email delivery")
		return
	}
	if err := r.deps.Sender.Send(ctx, s.Subject, html); err != nil {
		s.Delivery = DeliveryFailed
		log.Error("digest delivery failed", zap.String("subject", s.Subject), zap.Error(err))
		log.Warn(delivery.FailureHint)
		return
	}
	s.Delivery = DeliverySent
	log.Info("digest sent", zap.String("subject", s.Subject))
}

func (r *Runner) archive(ctx context.Context, s *Summary, html string) {
	name := DigestFileName(s.StartedAt)
	uri, err := r.deps.Archive.Put(ctx, name, strings.NewReader(html))
	if err != nil {
		r.logger.Warn("archive digest failed", zap.String("run_id", s.RunID), zap.Error(err))
		return
	}
	s.ArchiveURI = uri
	r.logger.Info("digest archived", zap.String("run_id", s.RunID), zap.String("uri", uri))
}

func (r *Runner) newRunID() string {
	id, err := r.deps.IDs.NewID()
	if err != nil {
		r.logger.Warn("generate run id", zap.Error(err))
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return id
}

// DigestFileName names the archived digest for a run date.
func DigestFileName(t time.Time) string {
	return "digest-" + t.Format(time.DateOnly) + ".html"
}
