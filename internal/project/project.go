package project

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/JSH-Team/mediabatch/internal/batch"
	"github.com/JSH-Team/mediabatch/internal/db"

	"github.com/pocketbase/dbx"
)

// Project is a project file on disk. It implements batch.Host. A Project is
// not safe for concurrent use; the batch only touches it from Tick.
type Project struct {
	db   *dbx.DB
	path string
	name string

	openBlock string
}

var _ batch.Host = (*Project)(nil)

// Open opens the project at path, creating it when missing. An undo block
// that is still open belongs to a batch in another process, or to one that
// was killed; RecoverInterrupted closes it.
func Open(path string) (*Project, error) {
	conn, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	return &Project{
		db:   conn,
		path: path,
		name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
	}, nil
}

func (p *Project) Close() error {
	return p.db.Close()
}

// Name identifies the project in undo blocks.
func (p *Project) Name() string {
	return p.name
}

func (p *Project) Path() string {
	return p.path
}

func (p *Project) HardwareParallelismHint() int {
	return runtime.NumCPU()
}

// ProjectOf returns the project owning item. A project file holds a single
// project so this is always Name.
func (p *Project) ProjectOf(batch.ItemRef) string {
	return p.name
}

// LockItem marks the item as in flight. Locking an already locked item fails
// with ErrItemLocked.
func (p *Project) LockItem(item batch.ItemRef) error {
	res, err := p.db.Update("items",
		dbx.Params{"locked": true},
		dbx.HashExp{"id": string(item), "locked": false},
	).Execute()
	if err != nil {
		return fmt.Errorf("failed to lock item %s: %w", item, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	if _, err := p.Item(string(item)); err != nil {
		return err
	}
	return ErrItemLocked
}

func (p *Project) UnlockItem(item batch.ItemRef) error {
	res, err := p.db.Update("items",
		dbx.Params{"locked": false},
		dbx.HashExp{"id": string(item), "locked": true},
	).Execute()
	if err != nil {
		return fmt.Errorf("failed to unlock item %s: %w", item, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	if _, err := p.Item(string(item)); err != nil {
		return err
	}
	return ErrItemNotLocked
}

// ResetLocks clears every item lock, for projects left locked by a killed
// process. It returns how many items were unlocked.
func (p *Project) ResetLocks() (int, error) {
	res, err := p.db.Update("items", dbx.Params{"locked": false}, dbx.HashExp{"locked": true}).Execute()
	if err != nil {
		return 0, fmt.Errorf("failed to reset locks: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
