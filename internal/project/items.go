package project

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/JSH-Team/mediabatch/internal/audio"
	"github.com/JSH-Team/mediabatch/internal/batch"
	"github.com/JSH-Team/mediabatch/internal/utils/filesystem"
	"github.com/JSH-Team/mediabatch/internal/utils/hash"

	"github.com/google/uuid"
	"github.com/pocketbase/dbx"
)

// AddItem imports a WAV file as a new item with one active take. A file whose
// content is already in the project returns the existing item and
// ErrDuplicateItem.
func (p *Project) AddItem(path string) (Item, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Item{}, err
	}

	sum, err := hash.File(abs)
	if err != nil {
		return Item{}, fmt.Errorf("failed to hash %s: %w", abs, err)
	}

	var existing Item
	err = p.db.Select("*").From("items").Where(dbx.HashExp{"source_hash": sum}).One(&existing)
	if err == nil {
		return existing, ErrDuplicateItem
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Item{}, fmt.Errorf("failed to look up %s: %w", abs, err)
	}

	buf, err := audio.ReadFile(abs)
	if err != nil {
		return Item{}, err
	}

	item := Item{
		ID:         uuid.NewString(),
		Name:       filesystem.CleanPath(filesystem.Stem(abs)),
		SourcePath: abs,
		SourceHash: sum,
		Length:     buf.Duration(),
		CreatedAt:  now(),
	}

	err = p.db.Transactional(func(tx *dbx.Tx) error {
		if _, err := tx.Insert("items", dbx.Params{
			"id":          item.ID,
			"name":        item.Name,
			"source_path": item.SourcePath,
			"source_hash": item.SourceHash,
			"length":      item.Length,
			"selected":    false,
			"locked":      false,
			"created_at":  item.CreatedAt,
		}).Execute(); err != nil {
			return err
		}
		_, err := tx.Insert("takes", dbx.Params{
			"id":          uuid.NewString(),
			"item_id":     item.ID,
			"name":        item.Name,
			"source_path": item.SourcePath,
			"active":      true,
			"undo_block":  "",
			"created_at":  item.CreatedAt,
		}).Execute()
		return err
	})
	if err != nil {
		return Item{}, fmt.Errorf("failed to add item %s: %w", abs, err)
	}
	return item, nil
}

// Items returns every item in import order.
func (p *Project) Items() ([]Item, error) {
	var items []Item
	err := p.db.Select("*").From("items").OrderBy("created_at", "rowid").All(&items)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

func (p *Project) Item(id string) (Item, error) {
	var item Item
	err := p.db.Select("*").From("items").Where(dbx.HashExp{"id": id}).One(&item)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	if err != nil {
		return Item{}, fmt.Errorf("failed to load item %s: %w", id, err)
	}
	return item, nil
}

// Select marks ids as selected. With exclusive set every other item is
// deselected first.
func (p *Project) Select(ids []string, exclusive bool) error {
	return p.db.Transactional(func(tx *dbx.Tx) error {
		if exclusive {
			if _, err := tx.Update("items", dbx.Params{"selected": false, "selection_order": 0}, nil).Execute(); err != nil {
				return err
			}
		}

		var last int64
		if err := tx.Select("COALESCE(MAX(selection_order), 0)").From("items").Where(dbx.HashExp{"selected": true}).Row(&last); err != nil {
			return err
		}
		for _, id := range ids {
			last++
			res, err := tx.Update("items",
				dbx.Params{"selected": true, "selection_order": last},
				dbx.NewExp("id = {:id} AND selected = 0", dbx.Params{"id": id}),
			).Execute()
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n == 1 {
				continue
			}
			// Already selected items keep their place.
			var exists int
			if err := tx.Select("COUNT(*)").From("items").Where(dbx.HashExp{"id": id}).Row(&exists); err != nil {
				return err
			}
			if exists == 0 {
				return fmt.Errorf("%w: %s", ErrItemNotFound, id)
			}
		}
		return nil
	})
}

func (p *Project) SelectAll() error {
	_, err := p.db.Update("items", dbx.Params{"selected": true}, nil).Execute()
	return err
}

// SelectedItems returns the selection in the order it was made. Items
// selected with SelectAll follow in import order.
func (p *Project) SelectedItems() ([]batch.ItemRef, error) {
	var ids []string
	err := p.db.Select("id").From("items").
		Where(dbx.HashExp{"selected": true}).
		OrderBy("(selection_order = 0)", "selection_order", "created_at", "rowid").
		Column(&ids)
	if err != nil {
		return nil, fmt.Errorf("failed to read selection: %w", err)
	}
	refs := make([]batch.ItemRef, len(ids))
	for i, id := range ids {
		refs[i] = batch.ItemRef(id)
	}
	return refs, nil
}

// Markers returns the live markers of an item ordered by position.
func (p *Project) Markers(id string) ([]Marker, error) {
	var markers []Marker
	err := p.db.Select("*").From("markers").
		Where(dbx.HashExp{"item_id": id, "removed_by": ""}).
		OrderBy("position").
		All(&markers)
	if err != nil {
		return nil, fmt.Errorf("failed to list markers of %s: %w", id, err)
	}
	return markers, nil
}

// Takes returns an item's takes, oldest first.
func (p *Project) Takes(id string) ([]Take, error) {
	var takes []Take
	err := p.db.Select("*").From("takes").
		Where(dbx.HashExp{"item_id": id}).
		OrderBy("created_at", "rowid").
		All(&takes)
	if err != nil {
		return nil, fmt.Errorf("failed to list takes of %s: %w", id, err)
	}
	return takes, nil
}

// ActiveSource returns the file path of the item's active take.
func (p *Project) ActiveSource(id string) (string, error) {
	var path string
	err := p.db.Select("source_path").From("takes").
		Where(dbx.HashExp{"item_id": id, "active": true}).
		Row(&path)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := p.Item(id); err != nil {
			return "", err
		}
		return "", fmt.Errorf("item %s has no active take", id)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read active take of %s: %w", id, err)
	}
	return path, nil
}

func now() int64 {
	return time.Now().UnixMilli()
}
