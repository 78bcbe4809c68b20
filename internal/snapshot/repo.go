// Package snapshot persists the workflow state as a single versioned JSON
// slot in SQLite, with an audit event recorded alongside each write.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"catreview/internal/domain"
	"catreview/internal/events"
)

// Key is the slot name of the preparation workflow snapshot.
const Key = "preparation_state"

var ErrNotFound = errors.New("not found")

type Repo struct {
	DB     *sql.DB
	Events events.Writer
	Now    func() time.Time
}

func (r Repo) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Load reads a snapshot slot. Returns ErrNotFound when the slot is empty and
// a wrapped error when the stored payload does not parse.
func (r Repo) Load(ctx context.Context, key string) (domain.Snapshot, error) {
	var (
		version int
		payload string
	)
	err := r.DB.QueryRowContext(ctx, `SELECT version,payload_json FROM snapshots WHERE key=?`, key).Scan(&version, &payload)
	if err == sql.ErrNoRows {
		return domain.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return domain.Snapshot{}, err
	}
	var snap domain.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	snap.Version = version
	return snap, nil
}

// Save upserts the slot and appends one audit event in the same transaction.
func (r Repo) Save(ctx context.Context, key string, snap domain.Snapshot, evtType string, stepID int, lever string, initiativeID int, payload events.EventPayload) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", key, err)
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	updatedAt := r.now().UTC().Format(time.RFC3339)
	_, err = tx.ExecContext(ctx, `INSERT INTO snapshots(key,version,payload_json,updated_at) VALUES (?,?,?,?)
		ON CONFLICT(key) DO UPDATE SET version=excluded.version, payload_json=excluded.payload_json, updated_at=excluded.updated_at`,
		key, snap.Version, string(data), updatedAt)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", key, err)
	}
	if evtType != "" {
		if err := r.Events.Append(ctx, tx, evtType, stepID, lever, initiativeID, payload); err != nil {
			return fmt.Errorf("append event %s: %w", evtType, err)
		}
	}
	return tx.Commit()
}

// Delete clears the slot. Missing slots are not an error.
func (r Repo) Delete(ctx context.Context, key string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM snapshots WHERE key=?`, key)
	return err
}
