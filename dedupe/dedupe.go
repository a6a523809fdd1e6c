// Package dedupe compares a run's extracted records against the
// previously-seen state and classifies each as new, updated, or
// unchanged. Pure and idempotent: the same input always yields the same
// classification.
package dedupe

import "github.com/firas-apify/apify-facebook-ads-intel/creative"

// Classified pairs a record with its change kind.
type Classified struct {
	Record creative.Record
	Kind   creative.ChangeKind
}

// Classify assigns a change kind to every record by looking its creative
// ID up in the snapshot. Previously known records keep their original
// FirstSeen; LastSeen stays at extraction time so a creative that keeps
// running never looks stale.
//
// When the source returns the same creative ID on more than one page of
// a run, the later occurrence in fetch order wins and earlier ones are
// dropped. Pagination is forward-only, so later means fresher.
func Classify(records []creative.Record, snap creative.Snapshot) []Classified {
	deduped := lastOccurrences(records)

	out := make([]Classified, 0, len(deduped))
	for _, rec := range deduped {
		prev, known := snap[rec.CreativeID]
		switch {
		case !known:
			out = append(out, Classified{Record: rec, Kind: creative.ChangeNew})
		case prev.ContentHash != rec.ContentHash:
			rec.FirstSeen = prev.FirstSeen
			out = append(out, Classified{Record: rec, Kind: creative.ChangeUpdated})
		default:
			rec.FirstSeen = prev.FirstSeen
			out = append(out, Classified{Record: rec, Kind: creative.ChangeUnchanged})
		}
	}
	return out
}

// lastOccurrences drops all but the final occurrence of each creative
// ID, preserving the position of that final occurrence.
func lastOccurrences(records []creative.Record) []creative.Record {
	seen := make(map[string]struct{}, len(records))
	kept := make([]creative.Record, 0, len(records))

	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		if _, dup := seen[rec.CreativeID]; dup {
			continue
		}
		seen[rec.CreativeID] = struct{}{}
		kept = append(kept, rec)
	}

	// Reverse back into fetch order.
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return kept
}

// Entries builds the state entries a successful commit upserts. The
// store merges them into the existing partition, so the persisted state
// becomes the union of old and new.
func Entries(classified []Classified) creative.Snapshot {
	entries := make(creative.Snapshot, len(classified))
	for _, c := range classified {
		entries[c.Record.CreativeID] = creative.SeenEntry{
			ContentHash: c.Record.ContentHash,
			FirstSeen:   c.Record.FirstSeen,
			LastSeen:    c.Record.LastSeen,
		}
	}
	return entries
}
