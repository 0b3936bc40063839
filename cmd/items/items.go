package items

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JSH-Team/mediabatch/internal/config"
	"github.com/JSH-Team/mediabatch/internal/project"
	"github.com/JSH-Team/mediabatch/internal/utils/logger"

	"github.com/spf13/cobra"
)

var (
	selectAllFlag bool
	addToSelFlag  bool
)

func openProject() (*project.Project, error) {
	return project.Open(config.ProjectPath)
}

func listItems() error {
	p, err := openProject()
	if err != nil {
		return err
	}
	defer p.Close()

	items, err := p.Items()
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("No items in project")
		return nil
	}

	// Print table header
	fmt.Printf("%-36s %-3s %-24s %-9s %-7s %-5s %-16s %s\n", "ID", "SEL", "NAME", "LENGTH", "MARKERS", "TAKES", "ADDED", "SOURCE")
	fmt.Println(strings.Repeat("-", 127))

	for _, item := range items {
		markers, err := p.Markers(item.ID)
		if err != nil {
			return err
		}
		takes, err := p.Takes(item.ID)
		if err != nil {
			return err
		}
		source, err := p.ActiveSource(item.ID)
		if err != nil {
			source = "-"
		}

		sel := ""
		if item.Selected {
			sel = "*"
		}
		if item.Locked {
			sel += "L"
		}
		fmt.Printf("%-36s %-3s %-24s %-9s %-7d %-5d %-16s %s\n",
			item.ID, sel, truncate(item.Name, 24), formatLength(item.Length), len(markers), len(takes),
			item.Created().Format("2006-01-02 15:04"), source)
	}
	return nil
}

func addItems(paths []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	defer p.Close()

	added := 0
	for _, path := range paths {
		item, err := p.AddItem(path)
		switch {
		case errors.Is(err, project.ErrDuplicateItem):
			logger.Warn("Skipping %s: already in the project as %s", path, item.ID)
		case err != nil:
			logger.Error("Failed to add %s: %v", path, err)
		default:
			added++
			fmt.Printf("%s %s\n", item.ID, item.Name)
		}
	}
	logger.Info("Added %d of %d files to %s", added, len(paths), p.Name())
	return nil
}

func selectItems(ids []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	defer p.Close()

	if selectAllFlag {
		return p.SelectAll()
	}
	return p.Select(ids, !addToSelFlag)
}

func listMarkers(id string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	defer p.Close()

	if _, err := p.Item(id); err != nil {
		return err
	}
	markers, err := p.Markers(id)
	if err != nil {
		return err
	}
	for _, m := range markers {
		fmt.Printf("%10.4f  %s\n", m.Position, m.Label)
	}
	return nil
}

func unlockItems() error {
	p, err := openProject()
	if err != nil {
		return err
	}
	defer p.Close()

	n, err := p.ResetLocks()
	if err != nil {
		return err
	}
	blocks, err := p.RecoverInterrupted()
	if err != nil {
		return err
	}
	logger.Info("Unlocked %d items, closed %d interrupted undo blocks", n, blocks)
	return nil
}

func formatLength(seconds float64) string {
	minutes := int(seconds) / 60
	return fmt.Sprintf("%d:%06.3f", minutes, seconds-float64(minutes*60))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "~"
}

var ItemsCmd = &cobra.Command{
	Use:   "items",
	Short: "Manage project items",
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List items with their markers and takes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listItems()
	},
}

var addCmd = &cobra.Command{
	Use:   "add <file.wav>...",
	Short: "Import WAV files as new items",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return addItems(args)
	},
}

var selectCmd = &cobra.Command{
	Use:   "select [id]...",
	Short: "Set the item selection",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !selectAllFlag && len(args) == 0 {
			return fmt.Errorf("give item ids or --all")
		}
		return selectItems(args)
	},
}

var markersCmd = &cobra.Command{
	Use:   "markers <id>",
	Short: "Print an item's markers in seconds",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return listMarkers(args[0])
	},
}

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Release item locks and undo blocks left behind by a killed batch",
	Long: `Release item locks and close undo blocks left behind by a killed batch.
The closed blocks are labelled "interrupted batch" and can be undone.
Do not run this while a batch is in progress.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return unlockItems()
	},
}

func init() {
	selectCmd.Flags().BoolVarP(&selectAllFlag, "all", "a", false, "Select every item")
	selectCmd.Flags().BoolVar(&addToSelFlag, "add", false, "Add to the current selection instead of replacing it")

	ItemsCmd.AddCommand(listCmd, addCmd, selectCmd, markersCmd, unlockCmd)
}
