package project

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/JSH-Team/mediabatch/internal/utils/logger"

	"github.com/google/uuid"
	"github.com/pocketbase/dbx"
)

// BeginUndo opens an undo block. Every marker and take change made until
// EndUndo belongs to it.
func (p *Project) BeginUndo(project string) error {
	if project != p.name {
		return fmt.Errorf("unknown project %q", project)
	}
	if p.openBlock != "" {
		return ErrUndoOpen
	}
	if err := p.ensureNoOpenBlock(); err != nil {
		return err
	}

	id := uuid.NewString()
	_, err := p.db.Insert("undo_blocks", dbx.Params{
		"id":        id,
		"project":   project,
		"label":     "",
		"state":     UndoOpen,
		"opened_at": now(),
		"closed_at": 0,
	}).Execute()
	if err != nil {
		return fmt.Errorf("failed to open undo block: %w", err)
	}

	p.openBlock = id
	logger.Debug("Opened undo block %s", id)
	return nil
}

// EndUndo closes the open block under label.
func (p *Project) EndUndo(project, label string) error {
	if project != p.name {
		return fmt.Errorf("unknown project %q", project)
	}
	if p.openBlock == "" {
		return ErrNoUndoOpen
	}

	id := p.openBlock
	p.openBlock = ""
	res, err := p.db.Update("undo_blocks", dbx.Params{
		"label":     label,
		"state":     UndoClosed,
		"closed_at": now(),
	}, dbx.HashExp{"id": id, "state": UndoOpen}).Execute()
	if err != nil {
		return fmt.Errorf("failed to close undo block %q: %w", label, err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		// Closed by RecoverInterrupted while the batch was still running.
		return fmt.Errorf("undo block %s for %q: %w", id, label, ErrNoUndoOpen)
	}
	logger.Debug("Closed undo block %s as %q", id, label)
	return nil
}

// ensureNoOpenBlock fails with ErrUndoOpen while any process has a block open
// in this project file.
func (p *Project) ensureNoOpenBlock() error {
	var n int
	err := p.db.Select("COUNT(*)").From("undo_blocks").Where(dbx.HashExp{"state": UndoOpen}).Row(&n)
	if err != nil {
		return fmt.Errorf("failed to read undo blocks: %w", err)
	}
	if n > 0 {
		return ErrUndoOpen
	}
	return nil
}

// RecoverInterrupted closes undo blocks left open by a batch that was killed,
// labelling them "interrupted batch" so their edits can still be undone. It
// must not run while a batch is in progress. It returns how many blocks were
// closed.
func (p *Project) RecoverInterrupted() (int, error) {
	res, err := p.db.Update("undo_blocks", dbx.Params{
		"state":     UndoClosed,
		"label":     "interrupted batch",
		"closed_at": now(),
	}, dbx.HashExp{"state": UndoOpen}).Execute()
	if err != nil {
		return 0, fmt.Errorf("failed to close interrupted undo blocks: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		logger.Warn("Closed %d undo blocks left open by an interrupted batch", n)
	}
	return int(n), nil
}

// UndoHistory lists closed and reverted blocks, newest first.
func (p *Project) UndoHistory() ([]UndoBlock, error) {
	var blocks []UndoBlock
	err := p.db.Select("*").From("undo_blocks").
		Where(dbx.NewExp("state != {:open}", dbx.Params{"open": UndoOpen})).
		OrderBy("opened_at DESC", "rowid DESC").
		All(&blocks)
	if err != nil {
		return nil, fmt.Errorf("failed to read undo history: %w", err)
	}
	return blocks, nil
}

// Undo reverts the most recent closed block and returns its label. It
// refuses while any block is open, in this process or another.
func (p *Project) Undo() (string, error) {
	if p.openBlock != "" {
		return "", ErrUndoOpen
	}
	if err := p.ensureNoOpenBlock(); err != nil {
		return "", err
	}

	var block UndoBlock
	err := p.db.Select("*").From("undo_blocks").
		Where(dbx.HashExp{"state": UndoClosed}).
		OrderBy("closed_at DESC", "rowid DESC").
		Limit(1).
		One(&block)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNothingToUndo
	}
	if err != nil {
		return "", fmt.Errorf("failed to find undo block: %w", err)
	}

	err = p.db.Transactional(func(tx *dbx.Tx) error {
		if _, err := tx.Delete("markers", dbx.HashExp{"undo_block": block.ID}).Execute(); err != nil {
			return err
		}
		if _, err := tx.Update("markers", dbx.Params{"removed_by": ""}, dbx.HashExp{"removed_by": block.ID}).Execute(); err != nil {
			return err
		}

		var touched []string
		if err := tx.Select("item_id").Distinct(true).From("takes").
			Where(dbx.HashExp{"undo_block": block.ID}).
			Column(&touched); err != nil {
			return err
		}
		if _, err := tx.Delete("takes", dbx.HashExp{"undo_block": block.ID}).Execute(); err != nil {
			return err
		}
		for _, itemID := range touched {
			if err := reactivateNewestTake(tx, itemID); err != nil {
				return err
			}
		}

		_, err := tx.Update("undo_blocks", dbx.Params{"state": UndoReverted}, dbx.HashExp{"id": block.ID}).Execute()
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to undo %q: %w", block.Label, err)
	}

	logger.Info("Undid %q", block.Label)
	return block.Label, nil
}

func reactivateNewestTake(tx *dbx.Tx, itemID string) error {
	var newest string
	err := tx.Select("id").From("takes").
		Where(dbx.HashExp{"item_id": itemID}).
		OrderBy("created_at DESC", "rowid DESC").
		Limit(1).
		Row(&newest)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := tx.Update("takes", dbx.Params{"active": false}, dbx.HashExp{"item_id": itemID}).Execute(); err != nil {
		return err
	}
	_, err = tx.Update("takes", dbx.Params{"active": true}, dbx.HashExp{"id": newest}).Execute()
	return err
}
