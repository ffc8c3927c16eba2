package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/devops-job-digest/internal/logging"
	"github.com/JakeFAU/devops-job-digest/internal/metrics"
)

type retryState int

const (
	stateAttempting retryState = iota
	stateBackoff
	stateSuccess
	stateExhausted
	stateForbidden
)

// RetryingFetcher wraps a PageGetter with the bounded retry loop.
type RetryingFetcher struct {
	getter  PageGetter
	policy  RetryPolicy
	sleeper Sleeper
	limiter Limiter
	logger  *zap.Logger
}

// FetcherOption customizes a RetryingFetcher.
type FetcherOption func(*RetryingFetcher)

// WithLimiter paces every attempt through l.
func WithLimiter(l Limiter) FetcherOption {
	return func(f *RetryingFetcher) {
		f.limiter = l
	}
}

// NewRetryingFetcher builds a RetryingFetcher.
func NewRetryingFetcher(getter PageGetter, policy RetryPolicy, sleeper Sleeper, logger *zap.Logger, opts ...FetcherOption) *RetryingFetcher {
	f := &RetryingFetcher{
		getter:  getter,
		policy:  policy,
		sleeper: sleeper,
		logger:  logging.Component(logger, "fetcher"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

var _ Fetcher = (*RetryingFetcher)(nil)

// Fetch runs the attempt loop for one site. A 403 ends it at once; other
// failures back off and retry until the policy's attempt ceiling.
func (f *RetryingFetcher) Fetch(ctx context.Context, req FetchRequest) (Page, error) {
	maxAttempts := f.policy.Attempts()
	start := time.Now()

	var (
		state    = stateAttempting
		attempts int
		page     Page
		lastErr  error
		lastKind FetchErrorKind
	)

	for {
		switch state {
		case stateAttempting:
			attempts++
			page, lastErr = f.attempt(ctx, req)
			if lastErr == nil {
				state = stateSuccess
				continue
			}
			lastKind = Classify(lastErr)
			if ctx.Err() != nil {
				lastKind = KindCanceled
			}
			metrics.ObserveFetchAttempt(req.Site, string(lastKind))
			f.logger.Warn("fetch attempt failed",
				zap.String("site", req.Site),
				zap.String("url", req.URL),
				zap.Int("attempt", attempts),
				zap.Int("max_attempts", maxAttempts),
				zap.String("kind", string(lastKind)),
				zap.Int("status", statusCodeOf(lastErr)),
				zap.Error(lastErr),
			)
			switch {
			case lastKind == KindForbidden:
				state = stateForbidden
			case !lastKind.Retryable(), attempts >= maxAttempts:
				state = stateExhausted
			default:
				state = stateBackoff
			}

		case stateBackoff:
			delay := f.policy.Backoff(attempts - 1)
			f.logger.Info("backing off before retry",
				zap.String("site", req.Site),
				zap.Int("next_attempt", attempts+1),
				zap.Duration("delay", delay),
			)
			if err := f.sleeper.Sleep(ctx, delay); err != nil {
				lastErr = err
				lastKind = KindCanceled
				state = stateExhausted
				continue
			}
			state = stateAttempting

		case stateSuccess:
			page.Attempts = attempts
			page.Duration = time.Since(start)
			metrics.ObserveFetchAttempt(req.Site, "success")
			f.logger.Info("fetch attempt succeeded",
				zap.String("site", req.Site),
				zap.Int("attempt", attempts),
				zap.Int("max_attempts", maxAttempts),
				zap.Int("status", page.StatusCode),
				zap.Int("bytes", len(page.Body)),
			)
			return page, nil

		case stateExhausted, stateForbidden:
			return Page{}, &FetchError{
				Site:       req.Site,
				URL:        req.URL,
				Kind:       lastKind,
				StatusCode: statusCodeOf(lastErr),
				Attempts:   attempts,
				Err:        lastErr,
			}
		}
	}
}

func (f *RetryingFetcher) attempt(ctx context.Context, req FetchRequest) (Page, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, req.URL); err != nil {
			return Page{}, err
		}
	}
	if err := ctx.Err(); err != nil {
		return Page{}, fmt.Errorf("fetch %s: %w", req.URL, err)
	}
	page, err := f.getter.Get(ctx, req)
	if err != nil {
		return Page{}, err
	}
	if !IsSuccessStatus(page.StatusCode) {
		return Page{}, &StatusError{Code: page.StatusCode}
	}
	return page, nil
}

// IsForbidden reports whether err is a fetch that ended on a 403.
func IsForbidden(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == KindForbidden
}
