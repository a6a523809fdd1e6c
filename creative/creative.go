// Package creative defines the data model shared by the extraction
// pipeline: queries, extracted ad creative records, change kinds, and the
// previously-seen state snapshot the change detector compares against.
package creative

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Status filters which ads a query matches.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusAll      Status = "all"
)

// TargetKind says how a query's target string should be interpreted.
type TargetKind string

const (
	TargetAdvertiser TargetKind = "advertiser" // target is a page ID
	TargetKeyword    TargetKind = "keyword"    // target is a search term
)

// MediaType classifies the media in an ad creative.
type MediaType string

const (
	MediaImage    MediaType = "image"
	MediaVideo    MediaType = "video"
	MediaCarousel MediaType = "carousel"
	MediaUnknown  MediaType = "unknown"
)

// ChangeKind describes how a record relates to the previous run's state.
type ChangeKind string

const (
	ChangeNew       ChangeKind = "NEW"
	ChangeUpdated   ChangeKind = "UPDATED"
	ChangeUnchanged ChangeKind = "UNCHANGED"
)

// Angle is the classified messaging angle of an ad.
type Angle string

const (
	AngleProblemSolution Angle = "problem_solution"
	AngleTestimonial     Angle = "testimonial"
	AngleComparison      Angle = "comparison"
	AngleUrgency         Angle = "urgency"
	AngleEducational     Angle = "educational"
	AngleLifestyle       Angle = "lifestyle"
	AngleDiscount        Angle = "discount"
	AngleNewProduct      Angle = "new_product"
	AngleUnknown         Angle = "unknown"
)

// Hook is the classified opening style of an ad.
type Hook string

const (
	HookQuestion    Hook = "question"
	HookStatistic   Hook = "statistic"
	HookBoldClaim   Hook = "bold_claim"
	HookStory       Hook = "story"
	HookSocialProof Hook = "social_proof"
	HookPainPoint   Hook = "pain_point"
	HookBenefit     Hook = "benefit"
	HookUnknown     Hook = "unknown"
)

// Offer is the classified offer type in an ad.
type Offer string

const (
	OfferPercentageOff Offer = "percentage_off"
	OfferFixedDiscount Offer = "fixed_discount"
	OfferFreeShipping  Offer = "free_shipping"
	OfferBOGO          Offer = "bogo"
	OfferFreeTrial     Offer = "free_trial"
	OfferLimitedTime   Offer = "limited_time"
	OfferNone          Offer = "no_offer"
	OfferUnknown       Offer = "unknown"
)

// Query is the immutable input to a single pipeline run. One run covers
// exactly one (target, geo) partition.
type Query struct {
	Target    string     `json:"target"`
	Kind      TargetKind `json:"kind"`
	Geo       string     `json:"geo"`
	Status    Status     `json:"status"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// Partition returns the state partition key for this query. At most one
// run may hold the partition's advisory lock at a time.
func (q Query) Partition() string {
	return q.Target + "/" + q.Geo
}

// Record is a single normalized ad creative extracted from the source.
type Record struct {
	CreativeID       string     `json:"creative_id"`
	AdvertiserID     string     `json:"advertiser_id,omitempty"`
	AdvertiserName   string     `json:"advertiser_name,omitempty"`
	AdText           string     `json:"ad_text,omitempty"`
	Headline         string     `json:"headline,omitempty"`
	Description      string     `json:"description,omitempty"`
	CTA              string     `json:"cta,omitempty"`
	CTALink          string     `json:"cta_link,omitempty"`
	LandingURL       string     `json:"landing_url,omitempty"`
	MediaType        MediaType  `json:"media_type"`
	MediaURLs        []string   `json:"media_urls,omitempty"`
	Platforms        []string   `json:"platforms,omitempty"`
	IsActive         bool       `json:"is_active"`
	StartedRunning   *time.Time `json:"started_running,omitempty"`
	EndedRunning     *time.Time `json:"ended_running,omitempty"`
	ImpressionsLower int        `json:"impressions_lower,omitempty"`
	ImpressionsUpper int        `json:"impressions_upper,omitempty"`
	SpendLower       int        `json:"spend_lower,omitempty"`
	SpendUpper       int        `json:"spend_upper,omitempty"`
	Geo              string     `json:"geo"`
	FirstSeen        time.Time  `json:"first_seen"`
	LastSeen         time.Time  `json:"last_seen"`
	ContentHash      string     `json:"content_hash"`

	// Classification enrichment, empty when classification is disabled.
	Angle       Angle `json:"ad_angle,omitempty"`
	Hook        Hook  `json:"hook_style,omitempty"`
	Offer       Offer `json:"offer_type,omitempty"`
	DaysRunning int   `json:"days_running,omitempty"`
}

// HashContent computes the digest over the fields that define "content
// changed": ad text, media type, CTA, and landing URL. Timestamps and
// derived metadata are deliberately excluded, so an edit to the creative
// changes the hash while a re-scrape of the same creative does not.
func (r *Record) HashContent() string {
	h := sha256.New()
	for _, field := range []string{r.AdText, string(r.MediaType), r.CTA, r.LandingURL} {
		h.Write([]byte(field))
		h.Write([]byte{0x1f}) // unit separator so field boundaries can't collide
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SeenEntry is the persisted per-creative state from a previous run.
type SeenEntry struct {
	ContentHash string
	FirstSeen   time.Time
	LastSeen    time.Time
}

// Snapshot is the previously-seen state for one partition, keyed by
// creative ID. Read once at the start of a run and never mutated mid-run.
type Snapshot map[string]SeenEntry
