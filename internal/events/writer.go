package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"catreview/internal/domain"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

// Append records one workflow event inside the caller's transaction.
// Zero stepID/initiativeID and empty lever are stored as NULL.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType string, stepID int, lever string, initiativeID int, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,step_id,lever,initiative_id,payload_json) VALUES (?,?,?,?,?,?)`,
		ts, evtType, nullableInt(stepID), nullableStr(lever), nullableInt(initiativeID), string(data))
	return err
}

// Recent returns the newest events first, capped at limit.
func (w Writer) Recent(ctx context.Context, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := w.DB.QueryContext(ctx, `SELECT id,ts,type,COALESCE(step_id,0),COALESCE(lever,''),COALESCE(initiative_id,0),payload_json FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.StepID, &e.Lever, &e.InitiativeID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// EventsAfter returns up to limit events with id greater than afterID, in
// insertion order. Used by webhook delivery cursors.
func (w Writer) EventsAfter(ctx context.Context, limit int, afterID int64) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := w.DB.QueryContext(ctx, `SELECT id,ts,type,COALESCE(step_id,0),COALESCE(lever,''),COALESCE(initiative_id,0),payload_json FROM events WHERE id > ? ORDER BY id ASC LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.StepID, &e.Lever, &e.InitiativeID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestEventID returns the highest event id, or zero for an empty log.
func (w Writer) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	err := w.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events`).Scan(&id)
	return id, err
}

func nullableStr(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableInt(v int) any {
	if v == 0 {
		return nil
	}
	return v
}
