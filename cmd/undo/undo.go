package undo

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JSH-Team/mediabatch/internal/config"
	"github.com/JSH-Team/mediabatch/internal/project"

	"github.com/spf13/cobra"
)

var listFlag bool

var UndoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Revert the most recent batch",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := project.Open(config.ProjectPath)
		if err != nil {
			return err
		}
		defer p.Close()

		if listFlag {
			return printHistory(p)
		}

		label, err := p.Undo()
		if errors.Is(err, project.ErrNothingToUndo) {
			fmt.Println("Nothing to undo")
			return nil
		}
		if errors.Is(err, project.ErrUndoOpen) {
			return fmt.Errorf("%w: a batch is still running on this project (after a crash run 'mediabatch items unlock')", err)
		}
		if err != nil {
			return err
		}
		fmt.Printf("Undid: %s\n", label)
		return nil
	},
}

func printHistory(p *project.Project) error {
	blocks, err := p.UndoHistory()
	if err != nil {
		return err
	}
	if len(blocks) == 0 {
		fmt.Println("No history")
		return nil
	}

	fmt.Printf("%-20s %-9s %s\n", "CLOSED", "STATE", "LABEL")
	fmt.Println(strings.Repeat("-", 70))
	for _, b := range blocks {
		closed := time.UnixMilli(b.ClosedAt).Format("2006-01-02 15:04:05")
		fmt.Printf("%-20s %-9s %s\n", closed, b.State, b.Label)
	}
	return nil
}

func init() {
	UndoCmd.Flags().BoolVarP(&listFlag, "list", "l", false, "Show the undo history instead")
}
