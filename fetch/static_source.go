package fetch

import (
	"context"
	"strconv"

	"github.com/firas-apify/apify-facebook-ads-intel/creative"
)

// StaticSource serves a fixed sequence of pages from memory. Useful for
// tests and dry runs without touching the network.
type StaticSource struct {
	pages []Page
}

// NewStaticSource creates a source over the given payloads, one page per
// payload, with continuation cursors linking them in order.
func NewStaticSource(payloads ...[]byte) *StaticSource {
	pages := make([]Page, len(payloads))
	for i, payload := range payloads {
		cursor := ""
		if i < len(payloads)-1 {
			cursor = strconv.Itoa(i + 1)
		}
		pages[i] = Page{Payload: payload, Cursor: cursor}
	}
	return &StaticSource{pages: pages}
}

// NextPage returns the page the cursor points at. An unknown cursor is a
// fatal error, matching how the live endpoint rejects bad cursors.
func (s *StaticSource) NextPage(ctx context.Context, _ creative.Query, cursor string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 || n >= len(s.pages) {
			return nil, &FatalError{Err: errBadCursor}
		}
		idx = n
	}
	if len(s.pages) == 0 {
		return &Page{}, nil
	}
	page := s.pages[idx]
	return &page, nil
}
