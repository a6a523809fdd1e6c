package classify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/firas-apify/apify-facebook-ads-intel/creative"
)

// TestAngle classifies representative ad copy into messaging angles
func TestAngle(t *testing.T) {
	cases := []struct {
		text string
		want creative.Angle
	}{
		{"Tired of struggling with messy cables? Say goodbye to tangled wires!", creative.AngleProblemSolution},
		{"★★★★★ 5000+ customer reviews! See what people are saying about us.", creative.AngleTestimonial},
		{"Limited time offer! Only 5 left in stock. Don't miss out!", creative.AngleUrgency},
		{"Save 50% off on all items! Biggest sale of the year.", creative.AngleDiscount},
		{"", creative.AngleUnknown},
		{"zzz qqq xxx", creative.AngleUnknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Angle(tc.text), "text: %q", tc.text)
	}
}

// TestHook classifies opening styles from the first sentence
func TestHook(t *testing.T) {
	cases := []struct {
		text string
		want creative.Hook
	}{
		{"Are you ready to transform your business?", creative.HookQuestion},
		{"87% of marketers say this changed their ROI", creative.HookStatistic},
		{"Tired of wasting money on ads that don't convert?", creative.HookPainPoint},
		{"Get fit in 30 days", creative.HookBenefit},
		{"", creative.HookUnknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Hook(tc.text), "text: %q", tc.text)
	}
}

// TestHook_OnlyFirstSentenceCounts verifies hook classification ignores
// everything after the opening sentence
func TestHook_OnlyFirstSentenceCounts(t *testing.T) {
	text := "Our product is great. Are you ready to buy?"
	assert.NotEqual(t, creative.HookQuestion, Hook(text))
}

// TestOffer classifies offer types, with no-match meaning no offer
func TestOffer(t *testing.T) {
	cases := []struct {
		text string
		want creative.Offer
	}{
		{"Get 25% off your first order with code SAVE25", creative.OfferPercentageOff},
		{"Free shipping on all orders over $50", creative.OfferFreeShipping},
		{"Start your 14-day free trial today", creative.OfferFreeTrial},
		{"Buy one get one on all socks", creative.OfferBOGO},
		{"Discover our new collection of premium products", creative.OfferNone},
		{"", creative.OfferUnknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Offer(tc.text), "text: %q", tc.text)
	}
}

// TestEnrich verifies classification lands on the record and days
// running is derived from the run period
func TestEnrich(t *testing.T) {
	today := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	started := today.AddDate(0, 0, -30)

	rec := creative.Record{
		AdText:         "Tired of bad products? Try ours!",
		StartedRunning: &started,
	}
	Enrich(&rec, today)

	assert.Equal(t, creative.AngleProblemSolution, rec.Angle)
	assert.Equal(t, 30, rec.DaysRunning)
	assert.NotEmpty(t, rec.Hook)
	assert.NotEmpty(t, rec.Offer)
}

// TestEnrich_EndedAd verifies days running stops at the end date
func TestEnrich_EndedAd(t *testing.T) {
	today := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	started := today.AddDate(0, 0, -60)
	ended := today.AddDate(0, 0, -50)

	rec := creative.Record{
		AdText:         "Some ad",
		StartedRunning: &started,
		EndedRunning:   &ended,
	}
	Enrich(&rec, today)

	assert.Equal(t, 10, rec.DaysRunning)
}
