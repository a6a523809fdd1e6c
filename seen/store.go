// Package seen persists the per-partition record of previously observed
// creatives using SQLite. The store exposes a narrow surface (snapshot,
// transactional upsert, advisory partition lock) so the backend stays
// swappable without touching pipeline logic.
package seen

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/firas-apify/apify-facebook-ads-intel/creative"
)

// Custom errors for state operations
var (
	ErrPartitionLocked = errors.New("partition is locked by another run")
	ErrNotLockHolder   = errors.New("lock is held by a different run")
)

// DefaultLockTTL is how long a partition lock stays valid before a new
// run may take it over. Covers crashed runs that never released.
const DefaultLockTTL = 2 * time.Hour

// Store manages seen-state and run locks in a SQLite database.
type Store struct {
	db      *sql.DB
	lockTTL time.Duration
}

// NewStore opens (creating if needed) the state database at the given
// path.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, lockTTL: DefaultLockTTL}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the state tables if they don't exist.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS seen_creatives (
		partition_key TEXT NOT NULL,
		creative_id TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		first_seen TEXT NOT NULL,
		last_seen TEXT NOT NULL,
		PRIMARY KEY (partition_key, creative_id)
	);

	CREATE TABLE IF NOT EXISTS run_locks (
		partition_key TEXT PRIMARY KEY,
		holder TEXT NOT NULL,
		acquired_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SetLockTTL overrides how long a partition lock stays valid.
func (s *Store) SetLockTTL(ttl time.Duration) {
	s.lockTTL = ttl
}

// Snapshot loads the previously-seen state for one partition.
func (s *Store) Snapshot(partition string) (creative.Snapshot, error) {
	rows, err := s.db.Query(
		"SELECT creative_id, content_hash, first_seen, last_seen FROM seen_creatives WHERE partition_key = ?",
		partition,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query seen state: %w", err)
	}
	defer rows.Close()

	snap := make(creative.Snapshot)
	for rows.Next() {
		var id, hash, firstSeen, lastSeen string
		if err := rows.Scan(&id, &hash, &firstSeen, &lastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan seen state row: %w", err)
		}

		first, err := time.Parse(time.RFC3339Nano, firstSeen)
		if err != nil {
			return nil, fmt.Errorf("failed to parse first_seen for %s: %w", id, err)
		}
		last, err := time.Parse(time.RFC3339Nano, lastSeen)
		if err != nil {
			return nil, fmt.Errorf("failed to parse last_seen for %s: %w", id, err)
		}

		snap[id] = creative.SeenEntry{
			ContentHash: hash,
			FirstSeen:   first,
			LastSeen:    last,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read seen state: %w", err)
	}

	return snap, nil
}

// PutAll upserts entries into a partition within a single transaction.
// All entries land or none do.
func (s *Store) PutAll(partition string, entries creative.Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		"INSERT OR REPLACE INTO seen_creatives (partition_key, creative_id, content_hash, first_seen, last_seen) VALUES (?, ?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for id, entry := range entries {
		_, err := stmt.Exec(
			partition,
			id,
			entry.ContentHash,
			entry.FirstSeen.UTC().Format(time.RFC3339Nano),
			entry.LastSeen.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert creative %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seen state: %w", err)
	}
	return nil
}

// AcquireLock takes the advisory lock for a partition on behalf of the
// given holder (typically a run ID). Returns ErrPartitionLocked while
// another holder's lock is still within its TTL; expired locks are taken
// over.
func (s *Store) AcquireLock(partition, holder string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existingHolder, acquiredAt string
	err = tx.QueryRow(
		"SELECT holder, acquired_at FROM run_locks WHERE partition_key = ?",
		partition,
	).Scan(&existingHolder, &acquiredAt)

	switch {
	case err == sql.ErrNoRows:
		// Free to take.
	case err != nil:
		return fmt.Errorf("failed to query lock: %w", err)
	default:
		at, parseErr := time.Parse(time.RFC3339Nano, acquiredAt)
		if parseErr == nil && time.Since(at) < s.lockTTL {
			return fmt.Errorf("%w (holder %s)", ErrPartitionLocked, existingHolder)
		}
		// Lock expired or unreadable: take it over.
	}

	_, err = tx.Exec(
		"INSERT OR REPLACE INTO run_locks (partition_key, holder, acquired_at) VALUES (?, ?, ?)",
		partition, holder, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to write lock: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit lock: %w", err)
	}
	return nil
}

// ReleaseLock releases the partition lock if it is still held by the
// given holder.
func (s *Store) ReleaseLock(partition, holder string) error {
	res, err := s.db.Exec(
		"DELETE FROM run_locks WHERE partition_key = ? AND holder = ?",
		partition, holder,
	)
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check lock release: %w", err)
	}
	if n == 0 {
		return ErrNotLockHolder
	}
	return nil
}
