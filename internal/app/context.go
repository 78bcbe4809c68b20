// Package app wires the workspace together: database, migrations, config,
// catalog and the workflow store.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"catreview/internal/catalog"
	"catreview/internal/config"
	"catreview/internal/db"
	"catreview/internal/events"
	"catreview/internal/migrate"
	"catreview/internal/prep"
	"catreview/internal/seed"
	"catreview/internal/snapshot"
)

// App is the assembled runtime for one workspace.
type App struct {
	DB      *sql.DB
	Config  *config.Config
	Catalog *catalog.Catalog
	Store   *prep.Store
	Events  events.Writer
	Log     *zap.Logger
}

// Open builds the full runtime: opens the database, applies migrations,
// loads config and catalog and restores the workflow store. When the config
// enables auto-seeding the bundled fixture is merged in.
func Open(ctx context.Context, workspace string, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cfg, err := config.Load(workspace)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	cat, err := catalog.Load()
	if err != nil {
		conn.Close()
		return nil, err
	}

	writer := events.Writer{DB: conn}
	repo := snapshot.Repo{DB: conn, Events: writer}
	store := prep.New(ctx, repo, cat, log)

	if cfg.Seed.Auto {
		tasks, err := seed.Tasks()
		if err != nil {
			conn.Close()
			return nil, err
		}
		store.SeedFromTasks(ctx, tasks)
	}

	return &App{
		DB:      conn,
		Config:  cfg,
		Catalog: cat,
		Store:   store,
		Events:  writer,
		Log:     log,
	}, nil
}

// Close releases the database handle.
func (a *App) Close() error {
	return a.DB.Close()
}
