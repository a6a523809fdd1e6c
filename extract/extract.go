// Package extract parses raw listing page payloads into normalized
// creative records. Extraction is a pure function of the payload: a
// malformed entry is skipped and reported, never fatal to the page.
package extract

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/firas-apify/apify-facebook-ads-intel/creative"
)

// Selectors defines how to locate creative fields inside a listing page.
type Selectors struct {
	Container   string `yaml:"container"`
	Body        string `yaml:"body"`
	Headline    string `yaml:"headline"`
	Description string `yaml:"description"`
	CTA         string `yaml:"cta"`
	Advertiser  string `yaml:"advertiser"`
	Date        string `yaml:"date"`
	Platform    string `yaml:"platform"`
	Impressions string `yaml:"impressions"`
	Spend       string `yaml:"spend"`
	Carousel    string `yaml:"carousel"`
}

// DefaultSelectors matches the ads library result markup.
func DefaultSelectors() Selectors {
	return Selectors{
		Container:   `[data-testid="ad_card"], [class*="ad-card"]`,
		Body:        `[class*="ad-body"], [class*="body"]`,
		Headline:    `h3, [class*="headline"]`,
		Description: `[class*="description"]`,
		CTA:         `a[class*="cta"], button[class*="cta"]`,
		Advertiser:  `[class*="page-name"]`,
		Date:        `[class*="date"]`,
		Platform:    `[class*="platform"]`,
		Impressions: `[class*="impressions"]`,
		Spend:       `[class*="spend"]`,
		Carousel:    `[class*="carousel"]`,
	}
}

// ParseError describes a single entry that could not be extracted.
// Collected per page and reported in the run summary, not fatal.
type ParseError struct {
	Index  int // position of the entry within its page
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("entry %d: %s", e.Index, e.Reason)
}

var startedRunningRe = regexp.MustCompile(`Started running on (.+)`)
var endedRunningRe = regexp.MustCompile(`Ended running on (.+)`)

// Date layouts the source is known to emit.
var dateLayouts = []string{
	"Jan 2, 2006",
	"January 2, 2006",
	"2006-01-02",
	"01/02/2006",
}

// Extract parses one page payload into creative records. Records get
// FirstSeen = LastSeen = now; the change detector restores FirstSeen for
// previously known creatives. The returned error indicates the whole
// payload was unreadable; per-entry failures land in the ParseError
// slice instead.
func Extract(payload []byte, sel Selectors, q creative.Query, now time.Time) ([]creative.Record, []ParseError, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(payload))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse page payload: %w", err)
	}

	var records []creative.Record
	var parseErrs []ParseError

	doc.Find(sel.Container).Each(func(i int, s *goquery.Selection) {
		rec, err := extractOne(s, sel, q, now)
		if err != nil {
			parseErrs = append(parseErrs, ParseError{Index: i, Reason: err.Error()})
			return
		}
		records = append(records, *rec)
	})

	return records, parseErrs, nil
}

// extractOne extracts a single ad container into a record.
func extractOne(s *goquery.Selection, sel Selectors, q creative.Query, now time.Time) (*creative.Record, error) {
	id, ok := s.Attr("data-ad-id")
	if !ok || id == "" {
		id, _ = s.Attr("id")
	}
	if id == "" {
		return nil, fmt.Errorf("missing creative ID")
	}

	rec := creative.Record{
		CreativeID: id,
		Geo:        q.Geo,
		IsActive:   true,
		FirstSeen:  now,
		LastSeen:   now,
	}

	rec.AdvertiserID, _ = s.Attr("data-page-id")
	if rec.AdvertiserID == "" && q.Kind == creative.TargetAdvertiser {
		rec.AdvertiserID = q.Target
	}
	rec.AdvertiserName = squash(s.Find(sel.Advertiser).First().Text())

	rec.AdText = squash(s.Find(sel.Body).First().Text())
	rec.Headline = squash(s.Find(sel.Headline).First().Text())
	rec.Description = squash(s.Find(sel.Description).First().Text())

	if cta := s.Find(sel.CTA).First(); cta.Length() > 0 {
		rec.CTA = squash(cta.Text())
		rec.CTALink, _ = cta.Attr("href")
	}
	// The landing page falls back to the CTA destination when the source
	// doesn't expose it separately.
	if landing, ok := s.Attr("data-landing-url"); ok && landing != "" {
		rec.LandingURL = landing
	} else {
		rec.LandingURL = rec.CTALink
	}

	extractMedia(s, sel, &rec)
	extractDates(s, sel, &rec)
	extractPlatforms(s, sel, &rec)

	rec.ImpressionsLower, rec.ImpressionsUpper = ParseRange(squash(s.Find(sel.Impressions).First().Text()))
	rec.SpendLower, rec.SpendUpper = ParseRange(squash(s.Find(sel.Spend).First().Text()))

	rec.ContentHash = rec.HashContent()
	return &rec, nil
}

// extractMedia detects the media type and collects media URLs. Carousel
// beats video beats image, matching how the source renders mixed cards.
func extractMedia(s *goquery.Selection, sel Selectors, rec *creative.Record) {
	videos := s.Find("video")
	images := s.Find(`img[src*="scontent"]`)
	carousel := s.Find(sel.Carousel)

	videos.Each(func(_ int, v *goquery.Selection) {
		if src, ok := v.Attr("src"); ok && src != "" {
			rec.MediaURLs = append(rec.MediaURLs, src)
		}
	})
	images.Each(func(_ int, img *goquery.Selection) {
		src, ok := img.Attr("src")
		if ok && src != "" && !strings.Contains(src, "emoji") {
			rec.MediaURLs = append(rec.MediaURLs, src)
		}
	})

	switch {
	case carousel.Length() > 0 || images.Length() > 1:
		rec.MediaType = creative.MediaCarousel
	case videos.Length() > 0:
		rec.MediaType = creative.MediaVideo
	case images.Length() > 0:
		rec.MediaType = creative.MediaImage
	default:
		rec.MediaType = creative.MediaUnknown
	}
}

// extractDates parses the running period and derives active status.
func extractDates(s *goquery.Selection, sel Selectors, rec *creative.Record) {
	s.Find(sel.Date).Each(func(_ int, d *goquery.Selection) {
		text := squash(d.Text())

		if m := startedRunningRe.FindStringSubmatch(text); m != nil {
			if t := ParseDate(strings.TrimSpace(m[1])); t != nil {
				rec.StartedRunning = t
			}
		}
		if m := endedRunningRe.FindStringSubmatch(text); m != nil {
			if t := ParseDate(strings.TrimSpace(m[1])); t != nil {
				rec.EndedRunning = t
				rec.IsActive = false
			}
		}
	})
}

// extractPlatforms collects the platforms the creative runs on.
func extractPlatforms(s *goquery.Selection, sel Selectors, rec *creative.Record) {
	text := s.Find(sel.Platform).Text()
	for _, platform := range []string{"Facebook", "Instagram", "Messenger", "Audience Network"} {
		if strings.Contains(text, platform) {
			rec.Platforms = append(rec.Platforms, platform)
		}
	}
}

// ParseDate tries each known source date layout in turn. Returns nil
// when no layout matches.
func ParseDate(text string) *time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return &t
		}
	}
	return nil
}

var rangeRe = regexp.MustCompile(`(?i)([\d,.]+[KMB]?)\s*[-–]\s*([\d,.]+[KMB]?)`)

// ParseRange parses bound pairs like "1K - 5K" or "10K–50K" into lower
// and upper values. Returns zeros when the text holds no range.
func ParseRange(text string) (int, int) {
	m := rangeRe.FindStringSubmatch(text)
	if m == nil {
		return 0, 0
	}
	return parseAbbrevNumber(m[1]), parseAbbrevNumber(m[2])
}

// parseAbbrevNumber parses "5", "1.5K", "2M", "1B" style numbers.
func parseAbbrevNumber(s string) int {
	s = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "K"):
		mult, s = 1e3, strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		mult, s = 1e6, strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "B"):
		mult, s = 1e9, strings.TrimSuffix(s, "B")
	}
	var n float64
	if _, err := fmt.Sscanf(s, "%f", &n); err != nil {
		return 0
	}
	return int(n * mult)
}

// squash normalizes whitespace: runs of spaces and newlines collapse to
// single spaces.
func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
