package project

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/pocketbase/dbx"
)

// ReplaceMarkers swaps the live markers of an item for positions. Inside an
// undo block the old markers are hidden rather than deleted so the block can
// be reverted.
func (p *Project) ReplaceMarkers(itemID string, markers []Marker) error {
	if _, err := p.Item(itemID); err != nil {
		return err
	}

	sorted := append([]Marker(nil), markers...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })

	return p.db.Transactional(func(tx *dbx.Tx) error {
		live := dbx.HashExp{"item_id": itemID, "removed_by": ""}
		if p.openBlock != "" {
			if _, err := tx.Update("markers", dbx.Params{"removed_by": p.openBlock}, live).Execute(); err != nil {
				return fmt.Errorf("failed to hide markers of %s: %w", itemID, err)
			}
		} else {
			if _, err := tx.Delete("markers", live).Execute(); err != nil {
				return fmt.Errorf("failed to delete markers of %s: %w", itemID, err)
			}
		}

		for _, m := range sorted {
			if _, err := tx.Insert("markers", dbx.Params{
				"id":         uuid.NewString(),
				"item_id":    itemID,
				"position":   m.Position,
				"label":      m.Label,
				"undo_block": p.openBlock,
				"removed_by": "",
			}).Execute(); err != nil {
				return fmt.Errorf("failed to add marker to %s: %w", itemID, err)
			}
		}
		return nil
	})
}

// AddTake appends a take to an item and makes it the active one.
func (p *Project) AddTake(itemID, name, path string) (Take, error) {
	if _, err := p.Item(itemID); err != nil {
		return Take{}, err
	}

	take := Take{
		ID:         uuid.NewString(),
		ItemID:     itemID,
		Name:       name,
		SourcePath: path,
		Active:     true,
		UndoBlock:  p.openBlock,
		CreatedAt:  now(),
	}

	err := p.db.Transactional(func(tx *dbx.Tx) error {
		if _, err := tx.Update("takes", dbx.Params{"active": false}, dbx.HashExp{"item_id": itemID}).Execute(); err != nil {
			return err
		}
		_, err := tx.Insert("takes", dbx.Params{
			"id":          take.ID,
			"item_id":     take.ItemID,
			"name":        take.Name,
			"source_path": take.SourcePath,
			"active":      true,
			"undo_block":  take.UndoBlock,
			"created_at":  take.CreatedAt,
		}).Execute()
		return err
	})
	if err != nil {
		return Take{}, fmt.Errorf("failed to add take to %s: %w", itemID, err)
	}
	return take, nil
}
