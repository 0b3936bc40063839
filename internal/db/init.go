package db

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/JSH-Team/mediabatch/internal/utils/logger"

	"github.com/pocketbase/dbx"
	_ "modernc.org/sqlite"
)

const pragmas = "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=synchronous(NORMAL)"

// Open opens (or creates) the project database at path and brings its schema
// up to date.
func Open(path string) (*dbx.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create project directory: %w", err)
		}
	}

	db, err := dbx.Open("sqlite", path+pragmas)
	if err != nil {
		return nil, fmt.Errorf("failed to open project %s: %w", path, err)
	}

	// SQLite has a single writer; the project is only touched from the tick
	// goroutine and the CLI.
	db.DB().SetMaxOpenConns(1)
	db.DB().SetMaxIdleConns(1)

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("Opened project %s", path)
	return db, nil
}
