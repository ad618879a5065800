package db

import (
	"fmt"
	"time"
)

// JournalEntry records a board write that could not be persisted.
type JournalEntry struct {
	ID         int64
	ProjectID  int64
	EntityKind string
	EntityID   int64
	Attempts   int
	LastError  string
	FailedAt   time.Time
}

// RecordSyncFailure appends an entry to the sync journal.
func (db *DB) RecordSyncFailure(e JournalEntry) error {
	if e.FailedAt.IsZero() {
		e.FailedAt = time.Now()
	}
	_, err := db.Exec(`
		INSERT INTO sync_journal (project_id, entity_kind, entity_id, attempts, last_error, failed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ProjectID, e.EntityKind, e.EntityID, e.Attempts, e.LastError, e.FailedAt.UTC())
	if err != nil {
		return fmt.Errorf("db.RecordSyncFailure: %w", err)
	}
	return nil
}

// SyncFailures returns the newest limit journal entries, newest first.
// A limit <= 0 returns everything.
func (db *DB) SyncFailures(limit int) ([]JournalEntry, error) {
	query := `
		SELECT id, project_id, entity_kind, entity_id, attempts, last_error, failed_at
		FROM sync_journal ORDER BY failed_at DESC, id DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("db.SyncFailures: %w", err)
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.EntityKind, &e.EntityID, &e.Attempts, &e.LastError, &e.FailedAt); err != nil {
			return nil, fmt.Errorf("db.SyncFailures: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ClearSyncJournal deletes every journal entry.
func (db *DB) ClearSyncJournal() error {
	_, err := db.Exec("DELETE FROM sync_journal")
	return err
}
