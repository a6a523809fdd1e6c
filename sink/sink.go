// Package sink persists a run's classified records: every record is
// appended to the NDJSON output, then the seen state is updated in one
// transaction. A state failure after a successful output write surfaces
// as PartialCommitError so the caller knows to force a rerun.
package sink

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/firas-apify/apify-facebook-ads-intel/creative"
	"github.com/firas-apify/apify-facebook-ads-intel/dedupe"
)

// PartialCommitError reports that the output write succeeded but the
// state update failed, leaving output and state inconsistent until the
// run is repeated.
type PartialCommitError struct {
	Err error
}

func (e *PartialCommitError) Error() string {
	return fmt.Sprintf("output written but state update failed, rerun required: %v", e.Err)
}

func (e *PartialCommitError) Unwrap() error { return e.Err }

// StateWriter is the slice of the seen store the sink needs.
type StateWriter interface {
	PutAll(partition string, entries creative.Snapshot) error
}

// Row is one output line: the record plus its change kind.
type Row struct {
	Change creative.ChangeKind `json:"change"`
	creative.Record
}

// CommitResult summarizes a successful commit.
type CommitResult struct {
	RowsWritten  int
	StateUpdated int
}

// Sink appends classified records to an NDJSON file and upserts the
// partition's seen state.
type Sink struct {
	path  string
	state StateWriter
}

// New creates a sink writing to the given output path.
func New(path string, state StateWriter) *Sink {
	return &Sink{path: path, state: state}
}

// Commit writes all classified records to the output and then replaces
// the partition's seen entries with the union of old and new. Output
// failures abort before any state is touched; state failures after the
// output is durable surface as *PartialCommitError.
func (s *Sink) Commit(partition string, classified []dedupe.Classified) (*CommitResult, error) {
	if err := s.writeRows(classified); err != nil {
		return nil, fmt.Errorf("failed to write output: %w", err)
	}

	entries := dedupe.Entries(classified)
	if err := s.state.PutAll(partition, entries); err != nil {
		return nil, &PartialCommitError{Err: err}
	}

	return &CommitResult{
		RowsWritten:  len(classified),
		StateUpdated: len(entries),
	}, nil
}

// writeRows appends one NDJSON row per record and syncs the file before
// reporting success.
func (s *Sink) writeRows(classified []dedupe.Classified) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}

	enc := json.NewEncoder(f)
	for _, c := range classified {
		row := Row{Change: c.Kind, Record: c.Record}
		if err := enc.Encode(row); err != nil {
			f.Close()
			return fmt.Errorf("failed to encode record %s: %w", c.Record.CreativeID, err)
		}
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync output file: %w", err)
	}
	return f.Close()
}
