// Package pipeline orchestrates a full extraction run: lock the state
// partition, fetch and extract pages concurrently, classify the run's
// records against the previous state, and commit output plus state.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/firas-apify/apify-facebook-ads-intel/classify"
	"github.com/firas-apify/apify-facebook-ads-intel/creative"
	"github.com/firas-apify/apify-facebook-ads-intel/dedupe"
	"github.com/firas-apify/apify-facebook-ads-intel/extract"
	"github.com/firas-apify/apify-facebook-ads-intel/fetch"
	"github.com/firas-apify/apify-facebook-ads-intel/sink"
)

// State is the slice of the seen store the pipeline needs directly.
// The sink holds its own write handle.
type State interface {
	Snapshot(partition string) (creative.Snapshot, error)
	AcquireLock(partition, holder string) error
	ReleaseLock(partition, holder string) error
}

// Committer persists a run's classified records.
type Committer interface {
	Commit(partition string, classified []dedupe.Classified) (*sink.CommitResult, error)
}

// Summary is the user-visible result of a completed run.
type Summary struct {
	RunID         uuid.UUID `json:"run_id"`
	Target        string    `json:"target"`
	Geo           string    `json:"geo"`
	PagesFetched  int       `json:"pages_fetched"`
	New           int       `json:"records_new"`
	Updated       int       `json:"records_updated"`
	Unchanged     int       `json:"records_unchanged"`
	ParseFailures int       `json:"records_parse_failed"`
	Started       time.Time `json:"started"`
	Finished      time.Time `json:"finished"`
}

// Config holds pipeline behavior toggles.
type Config struct {
	// Selectors used to extract creatives from page payloads.
	Selectors extract.Selectors
	// ClassifyAds enables the angle/hook/offer enrichment stage.
	ClassifyAds bool
}

// Pipeline runs extraction jobs one query at a time.
type Pipeline struct {
	fetcher *fetch.Fetcher
	state   State
	sink    Committer
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a pipeline. A nil logger falls back to slog's default.
func New(fetcher *fetch.Fetcher, state State, committer Committer, cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Selectors == (extract.Selectors{}) {
		cfg.Selectors = extract.DefaultSelectors()
	}
	return &Pipeline{
		fetcher: fetcher,
		state:   state,
		sink:    committer,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Run executes one extraction run for the query's partition. The
// extractor consumes page N while the fetcher requests page N+1; the
// change detector only runs once all records from the run are visible,
// because the duplicate-ID tie-break needs the full set. A cancelled or
// failed run commits nothing.
func (p *Pipeline) Run(ctx context.Context, q creative.Query) (*Summary, error) {
	runID := uuid.New()
	partition := q.Partition()
	logger := p.logger.With("run_id", runID.String(), "partition", partition)

	summary := &Summary{
		RunID:   runID,
		Target:  q.Target,
		Geo:     q.Geo,
		Started: p.now(),
	}

	if err := p.state.AcquireLock(partition, runID.String()); err != nil {
		return nil, fmt.Errorf("failed to lock partition: %w", err)
	}
	defer func() {
		if err := p.state.ReleaseLock(partition, runID.String()); err != nil {
			logger.Error("failed to release partition lock", "error", err)
		}
	}()

	snap, err := p.state.Snapshot(partition)
	if err != nil {
		return nil, fmt.Errorf("failed to load seen state: %w", err)
	}
	logger.Info("run starting", "previously_seen", len(snap))

	records, parseFailures, pagesFetched, err := p.collect(ctx, q, logger)
	if err != nil {
		return nil, err
	}
	summary.PagesFetched = pagesFetched
	summary.ParseFailures = parseFailures

	classified := dedupe.Classify(records, snap)

	result, err := p.sink.Commit(partition, classified)
	if err != nil {
		return nil, fmt.Errorf("commit failed: %w", err)
	}

	for _, c := range classified {
		switch c.Kind {
		case creative.ChangeNew:
			summary.New++
		case creative.ChangeUpdated:
			summary.Updated++
		default:
			summary.Unchanged++
		}
	}
	summary.Finished = p.now()

	logger.Info("run complete",
		"pages", summary.PagesFetched,
		"new", summary.New,
		"updated", summary.Updated,
		"unchanged", summary.Unchanged,
		"parse_failures", summary.ParseFailures,
		"rows_written", result.RowsWritten,
	)
	return summary, nil
}

// collect drains the fetcher while extracting each page as it arrives.
// Returns every record from the run, in fetch order.
func (p *Pipeline) collect(ctx context.Context, q creative.Query, logger *slog.Logger) ([]creative.Record, int, int, error) {
	pages := make(chan fetch.Page, 1)

	var fetchErr error
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(pages)
		fetchErr = p.fetcher.Fetch(ctx, q, pages)
	}()

	var records []creative.Record
	parseFailures := 0
	pagesFetched := 0

	for page := range pages {
		pagesFetched++
		recs, parseErrs, err := extract.Extract(page.Payload, p.cfg.Selectors, q, p.now())
		if err != nil {
			// Unreadable payload: count the page as one parse failure
			// and keep going, matching the per-entry tolerance policy.
			logger.Warn("failed to extract page", "page", pagesFetched, "error", err)
			parseFailures++
			continue
		}
		for _, parseErr := range parseErrs {
			logger.Warn("skipped malformed entry", "page", pagesFetched, "entry", parseErr.Index, "reason", parseErr.Reason)
		}
		parseFailures += len(parseErrs)

		if p.cfg.ClassifyAds {
			for i := range recs {
				classify.Enrich(&recs[i], p.now())
			}
		}
		records = append(records, recs...)
	}
	wg.Wait()

	if fetchErr != nil {
		return nil, 0, 0, fmt.Errorf("fetch failed: %w", fetchErr)
	}
	return records, parseFailures, pagesFetched, nil
}
