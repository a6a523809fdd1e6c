package fetch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firas-apify/apify-facebook-ads-intel/creative"
)

var testQuery = creative.Query{
	Target: "page123",
	Kind:   creative.TargetAdvertiser,
	Geo:    "US",
	Status: creative.StatusActive,
}

var testQueryKeyword = creative.Query{
	Target: "running shoes",
	Kind:   creative.TargetKeyword,
	Geo:    "US",
	Status: creative.StatusActive,
}

// fastConfig removes pacing so tests don't sleep.
func fastConfig() *Config {
	return &Config{
		MinInterval:  0,
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
		MaxPages:     0,
	}
}

// drain runs a fetch to completion and collects the pages.
func drain(t *testing.T, f *Fetcher, q creative.Query) ([]Page, error) {
	t.Helper()
	out := make(chan Page, 16)
	done := make(chan error, 1)
	go func() {
		done <- f.Fetch(context.Background(), q, out)
		close(out)
	}()

	var pages []Page
	for p := range out {
		pages = append(pages, p)
	}
	return pages, <-done
}

// flakySource fails a set number of times before delegating.
type flakySource struct {
	inner    PageSource
	failures int
	calls    int
	err      error
}

func (s *flakySource) NextPage(ctx context.Context, q creative.Query, cursor string) (*Page, error) {
	s.calls++
	if s.calls <= s.failures {
		return nil, s.err
	}
	return s.inner.NextPage(ctx, q, cursor)
}

// TestFetch_PaginationTerminates verifies a three-page source yields
// exactly three pages and stops at the empty cursor
func TestFetch_PaginationTerminates(t *testing.T) {
	source := NewStaticSource([]byte("page one"), []byte("page two"), []byte("page three"))
	f := NewFetcher(source, fastConfig())

	pages, err := drain(t, f, testQuery)
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, "page one", string(pages[0].Payload))
	assert.Equal(t, "page three", string(pages[2].Payload))
	assert.Empty(t, pages[2].Cursor, "final page carries no continuation cursor")
}

// TestFetch_MaxPagesCap verifies the page cap cuts the sequence short
func TestFetch_MaxPagesCap(t *testing.T) {
	source := NewStaticSource([]byte("a"), []byte("b"), []byte("c"))
	cfg := fastConfig()
	cfg.MaxPages = 2
	f := NewFetcher(source, cfg)

	pages, err := drain(t, f, testQuery)
	require.NoError(t, err)
	assert.Len(t, pages, 2)
}

// TestFetch_RetriesTransientErrors verifies transient failures are
// retried until the source recovers
func TestFetch_RetriesTransientErrors(t *testing.T) {
	source := &flakySource{
		inner:    NewStaticSource([]byte("eventually")),
		failures: 2,
		err:      &TransientError{Status: 503, Err: errors.New("service unavailable")},
	}
	f := NewFetcher(source, fastConfig())

	pages, err := drain(t, f, testQuery)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, 3, source.calls, "two failures plus one success")
}

// TestFetch_RetriesExhausted verifies a persistent transient failure
// surfaces after the retry cap
func TestFetch_RetriesExhausted(t *testing.T) {
	source := &flakySource{
		inner:    NewStaticSource([]byte("never reached")),
		failures: 100,
		err:      &TransientError{Status: 500, Err: errors.New("boom")},
	}
	cfg := fastConfig()
	cfg.MaxRetries = 2
	f := NewFetcher(source, cfg)

	_, err := drain(t, f, testQuery)
	require.Error(t, err)

	var transient *TransientError
	assert.ErrorAs(t, err, &transient)
	assert.Equal(t, 3, source.calls, "initial attempt plus two retries")
}

// TestFetch_FatalErrorNotRetried verifies fatal failures abort
// immediately without retries
func TestFetch_FatalErrorNotRetried(t *testing.T) {
	source := &flakySource{
		inner:    NewStaticSource([]byte("never reached")),
		failures: 100,
		err:      &FatalError{Status: 401, Err: errors.New("unauthorized")},
	}
	f := NewFetcher(source, fastConfig())

	_, err := drain(t, f, testQuery)
	require.Error(t, err)

	var fatal *FatalError
	assert.ErrorAs(t, err, &fatal)
	assert.Equal(t, 1, source.calls)
}

// TestFetch_Cancellation verifies cancelling the context stops the
// sequence between page fetches
func TestFetch_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := NewStaticSource([]byte("a"), []byte("b"))
	f := NewFetcher(source, fastConfig())

	out := make(chan Page, 16)
	err := f.Fetch(ctx, testQuery, out)
	assert.ErrorIs(t, err, context.Canceled)
}

// TestFetch_MinIntervalApplied verifies successive fetches respect the
// configured inter-request delay
func TestFetch_MinIntervalApplied(t *testing.T) {
	source := NewStaticSource([]byte("a"), []byte("b"), []byte("c"))
	cfg := fastConfig()
	cfg.MinInterval = 30 * time.Millisecond
	f := NewFetcher(source, cfg)

	start := time.Now()
	pages, err := drain(t, f, testQuery)
	require.NoError(t, err)
	require.Len(t, pages, 3)

	// First token is free; two more pages mean two waits.
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}
