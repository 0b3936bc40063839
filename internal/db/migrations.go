package db

import (
	"fmt"
	"time"

	"github.com/JSH-Team/mediabatch/internal/utils/logger"

	"github.com/pocketbase/dbx"
)

type migration struct {
	name string
	up   []string
}

var migrations = []migration{
	{
		name: "001_items",
		up: []string{
			`CREATE TABLE items (
				id          TEXT PRIMARY KEY NOT NULL,
				name        TEXT NOT NULL,
				source_path TEXT NOT NULL,
				source_hash TEXT NOT NULL DEFAULT '',
				length      REAL NOT NULL DEFAULT 0,
				selected    INTEGER NOT NULL DEFAULT 0,
				locked      INTEGER NOT NULL DEFAULT 0,
				created_at  INTEGER NOT NULL
			)`,
			`CREATE INDEX idx_items_source_hash ON items (source_hash)`,
		},
	},
	{
		name: "002_undo_blocks",
		up: []string{
			`CREATE TABLE undo_blocks (
				id        TEXT PRIMARY KEY NOT NULL,
				project   TEXT NOT NULL,
				label     TEXT NOT NULL DEFAULT '',
				state     TEXT NOT NULL,
				opened_at INTEGER NOT NULL,
				closed_at INTEGER NOT NULL DEFAULT 0
			)`,
		},
	},
	{
		name: "003_takes_markers",
		up: []string{
			`CREATE TABLE takes (
				id          TEXT PRIMARY KEY NOT NULL,
				item_id     TEXT NOT NULL REFERENCES items (id) ON DELETE CASCADE,
				name        TEXT NOT NULL,
				source_path TEXT NOT NULL,
				active      INTEGER NOT NULL DEFAULT 0,
				undo_block  TEXT NOT NULL DEFAULT '',
				created_at  INTEGER NOT NULL
			)`,
			`CREATE INDEX idx_takes_item ON takes (item_id)`,
			`CREATE TABLE markers (
				id         TEXT PRIMARY KEY NOT NULL,
				item_id    TEXT NOT NULL REFERENCES items (id) ON DELETE CASCADE,
				position   REAL NOT NULL,
				label      TEXT NOT NULL DEFAULT '',
				undo_block TEXT NOT NULL DEFAULT '',
				removed_by TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE INDEX idx_markers_item ON markers (item_id, removed_by)`,
		},
	},
	{
		name: "004_selection_order",
		up: []string{
			`ALTER TABLE items ADD COLUMN selection_order INTEGER NOT NULL DEFAULT 0`,
		},
	},
}

// RunMigrations applies every migration not yet recorded in _migrations.
func RunMigrations(db *dbx.DB) error {
	if _, err := db.NewQuery(`CREATE TABLE IF NOT EXISTS _migrations (
		name       TEXT PRIMARY KEY NOT NULL,
		applied_at INTEGER NOT NULL
	)`).Execute(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var applied []string
	if err := db.Select("name").From("_migrations").Column(&applied); err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}
	done := make(map[string]bool, len(applied))
	for _, name := range applied {
		done[name] = true
	}

	for _, m := range migrations {
		if done[m.name] {
			continue
		}
		err := db.Transactional(func(tx *dbx.Tx) error {
			for _, stmt := range m.up {
				if _, err := tx.NewQuery(stmt).Execute(); err != nil {
					return err
				}
			}
			_, err := tx.Insert("_migrations", dbx.Params{
				"name":       m.name,
				"applied_at": time.Now().UnixMilli(),
			}).Execute()
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %s failed: %w", m.name, err)
		}
		logger.Debug("Applied migration %s", m.name)
	}
	return nil
}
