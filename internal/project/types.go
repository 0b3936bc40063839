package project

import (
	"errors"
	"time"
)

var (
	ErrItemNotFound  = errors.New("item not found")
	ErrItemLocked    = errors.New("item is locked by a running batch")
	ErrItemNotLocked = errors.New("item is not locked")
	ErrDuplicateItem = errors.New("source is already in the project")
	ErrUndoOpen      = errors.New("an undo block is already open")
	ErrNoUndoOpen    = errors.New("no undo block is open")
	ErrNothingToUndo = errors.New("nothing to undo")
)

// Undo block states
const (
	UndoOpen     = "open"
	UndoClosed   = "closed"
	UndoReverted = "reverted"
)

// Item is one media item on the timeline.
type Item struct {
	ID             string  `db:"id"`
	Name           string  `db:"name"`
	SourcePath     string  `db:"source_path"`
	SourceHash     string  `db:"source_hash"`
	Length         float64 `db:"length"`
	Selected       bool    `db:"selected"`
	SelectionOrder int64   `db:"selection_order"` // 0 sorts by import order
	Locked         bool    `db:"locked"`
	CreatedAt      int64   `db:"created_at"`
}

func (i Item) Created() time.Time { return time.UnixMilli(i.CreatedAt) }

// Take is one audio source of an item. Exactly one take per item is active.
type Take struct {
	ID         string `db:"id"`
	ItemID     string `db:"item_id"`
	Name       string `db:"name"`
	SourcePath string `db:"source_path"`
	Active     bool   `db:"active"`
	UndoBlock  string `db:"undo_block"`
	CreatedAt  int64  `db:"created_at"`
}

// Marker is a slice point, in seconds from the item start.
type Marker struct {
	ID        string  `db:"id"`
	ItemID    string  `db:"item_id"`
	Position  float64 `db:"position"`
	Label     string  `db:"label"`
	UndoBlock string  `db:"undo_block"`
	RemovedBy string  `db:"removed_by"`
}

type UndoBlock struct {
	ID       string `db:"id"`
	Project  string `db:"project"`
	Label    string `db:"label"`
	State    string `db:"state"`
	OpenedAt int64  `db:"opened_at"`
	ClosedAt int64  `db:"closed_at"`
}
