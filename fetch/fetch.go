// Package fetch retrieves paginated raw page payloads from a
// creative-listing source, applying a minimum inter-request delay and a
// bounded retry policy for transient failures.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/firas-apify/apify-facebook-ads-intel/creative"
)

// Page is one raw payload from the source plus the continuation cursor
// for the next page. An empty cursor means the sequence has ended.
type Page struct {
	Payload []byte
	Cursor  string
}

// PageSource retrieves a single page for a query. An empty cursor
// requests the first page. Implementations classify failures as
// *TransientError or *FatalError.
type PageSource interface {
	NextPage(ctx context.Context, q creative.Query, cursor string) (*Page, error)
}

// Config holds fetcher pacing and retry settings.
type Config struct {
	// Minimum delay between successive page requests.
	MinInterval time.Duration
	// Maximum retry attempts for a transient failure on one page.
	MaxRetries int
	// Base backoff for the first retry; doubles per attempt.
	RetryBackoff time.Duration
	// Maximum pages per run. Zero means no cap.
	MaxPages int
}

// DefaultConfig returns conservative defaults: one request per two
// seconds, three retries starting at one second of backoff.
func DefaultConfig() *Config {
	return &Config{
		MinInterval:  2 * time.Second,
		MaxRetries:   3,
		RetryBackoff: time.Second,
		MaxPages:     50,
	}
}

// Fetcher drives a PageSource through a full pagination sequence.
type Fetcher struct {
	source  PageSource
	cfg     *Config
	limiter *rate.Limiter
}

// NewFetcher creates a fetcher over the given source.
func NewFetcher(source PageSource, cfg *Config) *Fetcher {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	interval := cfg.MinInterval
	if interval <= 0 {
		interval = time.Nanosecond
	}
	return &Fetcher{
		source:  source,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Fetch retrieves pages one at a time and sends each to out, stopping
// when the source returns an empty cursor, the page cap is reached, or
// the context is cancelled. The caller owns the channel and closes it
// after Fetch returns. Transient failures are retried with exponential
// backoff; fatal failures and exhausted retries end the sequence with an
// error.
func (f *Fetcher) Fetch(ctx context.Context, q creative.Query, out chan<- Page) error {
	cursor := ""
	for n := 0; f.cfg.MaxPages == 0 || n < f.cfg.MaxPages; n++ {
		page, err := f.fetchPage(ctx, q, cursor)
		if err != nil {
			return err
		}

		select {
		case out <- *page:
		case <-ctx.Done():
			return ctx.Err()
		}

		if page.Cursor == "" {
			return nil
		}
		cursor = page.Cursor
	}
	return nil
}

// fetchPage retrieves one page, waiting on the rate limiter before every
// attempt and backing off between retries of transient failures.
func (f *Fetcher) fetchPage(ctx context.Context, q creative.Query, cursor string) (*Page, error) {
	var lastErr error
	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := f.cfg.RetryBackoff << (attempt - 1)
			timer := time.NewTimer(backoff)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			}
		}

		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		page, err := f.source.NextPage(ctx, q, cursor)
		if err == nil {
			return page, nil
		}

		var transient *TransientError
		if !errors.As(err, &transient) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("giving up after %d retries: %w", f.cfg.MaxRetries, lastErr)
}
