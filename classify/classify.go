// Package classify tags creative records with messaging angle, hook
// style, and offer type based on text analysis. Classification is an
// optional enrichment stage; the pipeline runs fine without it.
package classify

import (
	"regexp"
	"strings"
	"time"

	"github.com/firas-apify/apify-facebook-ads-intel/creative"
)

type patternSet struct {
	patterns []*regexp.Regexp
}

func newPatternSet(exprs ...string) patternSet {
	ps := patternSet{patterns: make([]*regexp.Regexp, 0, len(exprs))}
	for _, expr := range exprs {
		ps.patterns = append(ps.patterns, regexp.MustCompile(expr))
	}
	return ps
}

// matches counts how many patterns hit the text.
func (ps patternSet) matches(text string) int {
	n := 0
	for _, p := range ps.patterns {
		if p.MatchString(text) {
			n++
		}
	}
	return n
}

func (ps patternSet) anyMatch(text string) bool {
	for _, p := range ps.patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// Angle tables are scored: the angle with the most pattern hits wins.
// Order breaks ties, so it is fixed here rather than map-iterated.
var anglePatterns = []struct {
	angle creative.Angle
	set   patternSet
}{
	{creative.AngleProblemSolution, newPatternSet(
		`tired of`, `struggling with`, `finally\s+a\s+solution`,
		`say goodbye to`, `no more`, `stop\s+\w+ing`,
	)},
	{creative.AngleTestimonial, newPatternSet(
		`customer\s+reviews?`, `what\s+\w+\s+are\s+saying`, `loved\s+by`,
		`rated\s+\d+`, `★+`, `\d+\s+reviews?`,
	)},
	{creative.AngleComparison, newPatternSet(
		`vs\.?`, `compared\s+to`, `unlike\s+other`, `better\s+than`, `why\s+choose`,
	)},
	{creative.AngleUrgency, newPatternSet(
		`limited\s+time`, `ends?\s+soon`, `last\s+chance`, `only\s+\d+\s+left`,
		`hurry`, `don'?t\s+miss`, `act\s+now`,
	)},
	{creative.AngleEducational, newPatternSet(
		`how\s+to`, `learn\s+`, `discover\s+`, `guide`, `tips?\s+`, `secrets?\s+`,
	)},
	{creative.AngleLifestyle, newPatternSet(
		`lifestyle`, `live\s+your`, `dream\s+`, `experience\s+`, `journey`,
	)},
	{creative.AngleDiscount, newPatternSet(
		`\d+%\s*off`, `save\s+\$?\d+`, `discount`, `sale\b`, `deal\b`,
	)},
	{creative.AngleNewProduct, newPatternSet(
		`new\s+`, `introducing`, `just\s+launched`, `now\s+available`, `announcing`,
	)},
}

// Hook tables are first-match-wins over the opening sentence.
var hookPatterns = []struct {
	hook creative.Hook
	set  patternSet
}{
	{creative.HookQuestion, newPatternSet(
		`^[^.!]*\?`, `^(do|are|is|have|can|will|what|why|how|when|where)\s`,
	)},
	{creative.HookStatistic, newPatternSet(
		`^\d+%`, `^\d+\s+(out\s+of|in)`, `^studies?\s+show`,
	)},
	{creative.HookBoldClaim, newPatternSet(
		`^the\s+(best|only|#1|number\s+one)`, `^guaranteed`, `^proven`,
	)},
	{creative.HookStory, newPatternSet(
		`^(i|we|my)\s+`, `^when\s+i`, `^last\s+(week|month|year)`,
	)},
	{creative.HookSocialProof, newPatternSet(
		`^\d+[k+]?\s+(people|customers|users)`, `^join\s+\d+`,
	)},
	{creative.HookPainPoint, newPatternSet(
		`^tired\s+of`, `^frustrated`, `^sick\s+of`, `^struggling`,
	)},
	{creative.HookBenefit, newPatternSet(
		`^get\s+`, `^achieve\s+`, `^unlock\s+`, `^transform\s+`,
	)},
}

// Offer tables are first-match-wins over the full text.
var offerPatterns = []struct {
	offer creative.Offer
	set   patternSet
}{
	{creative.OfferPercentageOff, newPatternSet(`\d+%\s*(off|discount)`)},
	{creative.OfferFixedDiscount, newPatternSet(`\$\d+\s*off`, `save\s+\$\d+`)},
	{creative.OfferFreeShipping, newPatternSet(`free\s+shipping`, `free\s+delivery`)},
	{creative.OfferBOGO, newPatternSet(`buy\s+\d+\s+get\s+\d+`, `bogo`, `buy\s+one\s+get\s+one`)},
	{creative.OfferFreeTrial, newPatternSet(`free\s+trial`, `try\s+(it\s+)?free`, `\d+[\s-]day\s+trial`)},
	{creative.OfferLimitedTime, newPatternSet(`limited\s+time`, `today\s+only`, `ends?\s+(tonight|today|soon)`)},
}

// Angle classifies the primary messaging angle of the ad text.
func Angle(text string) creative.Angle {
	if text == "" {
		return creative.AngleUnknown
	}
	text = strings.ToLower(text)

	best := creative.AngleUnknown
	bestScore := 0
	for _, entry := range anglePatterns {
		if score := entry.set.matches(text); score > bestScore {
			best = entry.angle
			bestScore = score
		}
	}
	return best
}

var sentenceSplitRe = regexp.MustCompile(`[.!?]`)

// Hook classifies the opening style of the ad, looking only at the
// first sentence of the first line.
func Hook(text string) creative.Hook {
	if text == "" {
		return creative.HookUnknown
	}

	firstLine, _, _ := strings.Cut(text, "\n")
	firstSentence := strings.TrimSpace(sentenceSplitRe.Split(firstLine, 2)[0])
	lower := strings.ToLower(firstSentence)

	for _, entry := range hookPatterns {
		if entry.set.anyMatch(lower) {
			return entry.hook
		}
	}
	return creative.HookUnknown
}

// Offer classifies the type of offer in the ad. Text with no matching
// offer pattern classifies as "no_offer" rather than unknown.
func Offer(text string) creative.Offer {
	if text == "" {
		return creative.OfferUnknown
	}
	text = strings.ToLower(text)

	for _, entry := range offerPatterns {
		if entry.set.anyMatch(text) {
			return entry.offer
		}
	}
	return creative.OfferNone
}

// Enrich applies all classifications to a record and computes how long
// the creative has been running. The combined ad text, headline, and
// description feed the classifiers.
func Enrich(rec *creative.Record, today time.Time) {
	parts := make([]string, 0, 3)
	for _, part := range []string{rec.AdText, rec.Headline, rec.Description} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	text := strings.Join(parts, " ")

	rec.Angle = Angle(text)
	rec.Hook = Hook(text)
	rec.Offer = Offer(text)

	if rec.StartedRunning != nil {
		end := today
		if rec.EndedRunning != nil {
			end = *rec.EndedRunning
		}
		rec.DaysRunning = int(end.Sub(*rec.StartedRunning).Hours() / 24)
	}
}
