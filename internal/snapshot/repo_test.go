package snapshot_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"catreview/internal/db"
	"catreview/internal/domain"
	"catreview/internal/events"
	"catreview/internal/migrate"
	"catreview/internal/snapshot"
)

func newRepo(t *testing.T) (snapshot.Repo, *sql.DB) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	now := func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }
	return snapshot.Repo{DB: conn, Events: events.Writer{DB: conn, Now: now}, Now: now}, conn
}

func TestLoadMissingSlot(t *testing.T) {
	repo, _ := newRepo(t)
	_, err := repo.Load(context.Background(), snapshot.Key)
	if err != snapshot.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	snap := domain.Snapshot{
		Version:          domain.SnapshotVersion,
		CurrentStepID:    3,
		StartDate:        "2024-03-15",
		Initiatives:      []domain.Initiative{{ID: 1000, Description: "тест"}},
		NextInitiativeID: 1001,
		InitiativeSteps:  map[int]int{1000: 3},
	}
	if err := repo.Save(ctx, snapshot.Key, snap, "step.enter", 3, "", 0, nil); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := repo.Load(ctx, snapshot.Key)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.CurrentStepID != 3 || got.NextInitiativeID != 1001 {
		t.Fatalf("round trip: %+v", got)
	}
	if len(got.Initiatives) != 1 || got.Initiatives[0].Description != "тест" {
		t.Fatalf("initiatives: %+v", got.Initiatives)
	}
	if got.InitiativeSteps[1000] != 3 {
		t.Fatalf("step map: %v", got.InitiativeSteps)
	}
}

func TestSaveAppendsEvent(t *testing.T) {
	repo, conn := newRepo(t)
	ctx := context.Background()
	snap := domain.Snapshot{Version: domain.SnapshotVersion}
	if err := repo.Save(ctx, snapshot.Key, snap, "workflow.reset", 0, "", 0, nil); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.Save(ctx, snapshot.Key, snap, "", 0, "", 0, nil); err != nil {
		t.Fatalf("save without event: %v", err)
	}
	var count int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&count); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one event, got %d", count)
	}
}

func TestCorruptSlot(t *testing.T) {
	repo, conn := newRepo(t)
	ctx := context.Background()
	if _, err := conn.Exec(`INSERT INTO snapshots(key,version,payload_json,updated_at) VALUES (?,?,?,?)`,
		snapshot.Key, domain.SnapshotVersion, "{not json", "2024-03-15T12:00:00Z"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := repo.Load(ctx, snapshot.Key); err == nil || err == snapshot.ErrNotFound {
		t.Fatalf("corrupt payload should surface a decode error, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	if err := repo.Save(ctx, snapshot.Key, domain.Snapshot{Version: domain.SnapshotVersion}, "", 0, "", 0, nil); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.Delete(ctx, snapshot.Key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Load(ctx, snapshot.Key); err != snapshot.ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	// deleting a missing slot is fine
	if err := repo.Delete(ctx, snapshot.Key); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}
