package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/firas-apify/apify-facebook-ads-intel/creative"
)

// DefaultBaseURL is the ads library async search endpoint.
const DefaultBaseURL = "https://www.facebook.com/ads/library/async/search_ads/"

const defaultUserAgent = "adsintel/1.0 (ad creative monitoring)"

// HTTPSource fetches listing pages over HTTP. The endpoint returns a JSON
// envelope carrying the rendered result markup and a forward cursor.
type HTTPSource struct {
	client    *http.Client
	baseURL   string
	userAgent string
}

// HTTPOption configures an HTTPSource.
type HTTPOption func(*HTTPSource)

// WithBaseURL overrides the search endpoint, mainly for tests.
func WithBaseURL(u string) HTTPOption {
	return func(s *HTTPSource) { s.baseURL = u }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(s *HTTPSource) { s.userAgent = ua }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPSource) { s.client = c }
}

// NewHTTPSource creates a source against the ads library search endpoint.
func NewHTTPSource(opts ...HTTPOption) *HTTPSource {
	s := &HTTPSource{
		client:    &http.Client{Timeout: 30 * time.Second},
		baseURL:   DefaultBaseURL,
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// envelope is the wire shape of one search response.
type envelope struct {
	Payload       string `json:"payload"`
	ForwardCursor string `json:"forward_cursor"`
}

// searchURL builds the search request URL from the query and cursor.
func (s *HTTPSource) searchURL(q creative.Query, cursor string) string {
	params := url.Values{}
	params.Set("active_status", string(q.Status))
	params.Set("ad_type", "all")
	params.Set("country", q.Geo)
	params.Set("media_type", "all")

	switch q.Kind {
	case creative.TargetKeyword:
		params.Set("q", q.Target)
	default:
		params.Set("view_all_page_id", q.Target)
	}

	if q.StartDate != nil {
		params.Set("start_date[min]", q.StartDate.Format("2006-01-02"))
	}
	if q.EndDate != nil {
		params.Set("start_date[max]", q.EndDate.Format("2006-01-02"))
	}
	if cursor != "" {
		params.Set("forward_cursor", cursor)
	}

	return s.baseURL + "?" + params.Encode()
}

// NextPage fetches a single listing page. 5xx and throttling responses
// come back as *TransientError, other non-2xx responses as *FatalError.
func (s *HTTPSource) NextPage(ctx context.Context, q creative.Query, cursor string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.searchURL(q, cursor), nil)
	if err != nil {
		return nil, &FatalError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, &TransientError{Status: resp.StatusCode, Err: fmt.Errorf("source returned %s", resp.Status)}
	case resp.StatusCode >= 400:
		return nil, &FatalError{Status: resp.StatusCode, Err: fmt.Errorf("source returned %s", resp.Status)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &FatalError{Err: fmt.Errorf("failed to decode response envelope: %w", err)}
	}

	return &Page{
		Payload: []byte(env.Payload),
		Cursor:  env.ForwardCursor,
	}, nil
}
