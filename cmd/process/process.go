package process

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JSH-Team/mediabatch/internal/batch"
	"github.com/JSH-Team/mediabatch/internal/config"
	"github.com/JSH-Team/mediabatch/internal/project"
	"github.com/JSH-Team/mediabatch/internal/utils/logger"
	"github.com/JSH-Team/mediabatch/internal/workers"
	"github.com/JSH-Team/mediabatch/internal/workers/analysis"

	"github.com/spf13/cobra"
)

var (
	selectAll  bool
	itemIDs    []string
	maxJobs    int
	noProgress bool
)

var ProcessCmd = &cobra.Command{
	Use:   "process <algorithm>",
	Short: "Run an analysis over the selected items",
	Long: `Run an analysis over the selected items of the project.

Algorithms: ` + algorithmNames() + `

Results are written as markers or new takes and the whole batch is recorded
as one undo step. Ctrl-C cancels the batch; finished items keep their results.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		alg, err := batch.ParseAlgorithm(args[0])
		if err != nil {
			return err
		}

		p, err := project.Open(config.ProjectPath)
		if err != nil {
			return err
		}
		defer p.Close()

		switch {
		case selectAll:
			err = p.SelectAll()
		case len(itemIDs) > 0:
			err = p.Select(itemIDs, true)
		}
		if err != nil {
			return err
		}

		selected, err := p.SelectedItems()
		if err != nil {
			return err
		}

		limit := jobLimit(maxJobs)
		pool := newAnalysisPool(limit)
		if err := pool.Start(); err != nil {
			return err
		}
		defer pool.Stop()

		var display batch.Display
		if !noProgress {
			display = newBarDisplay(alg)
		}

		factory := analysis.NewFactory(p, pool, config.GlobalConfig.Algorithms)
		scheduler := batch.NewScheduler(p, factory, limit, display)

		if err := scheduler.Start(selected, alg); err != nil {
			if errors.Is(err, project.ErrUndoOpen) {
				return fmt.Errorf("%w: another batch is running on this project (after a crash run 'mediabatch items unlock')", err)
			}
			return err
		}

		report := batch.Drive(cmd.Context(), scheduler, config.TickInterval)
		printReport(report)
		if report.Cancelled {
			return fmt.Errorf("%s batch cancelled", alg)
		}
		return nil
	},
}

func jobLimit(flag int) int {
	if flag > 0 {
		return flag
	}
	return config.MaxConcurrentJobs
}

// newAnalysisPool sizes the queue so that limit active jobs always fit, even
// when every worker is busy.
func newAnalysisPool(limit int) *workers.Pool {
	return workers.NewPool("analysis", config.AnalysisWorkers, max(config.AnalysisQueueSize, limit))
}

func printReport(r batch.Report) {
	status := "done"
	if r.Cancelled {
		status = "cancelled"
	}
	fmt.Printf("%s %s: %d items in %v\n", r.Algorithm, status, r.Total, r.Duration.Round(time.Millisecond))
	fmt.Printf("  succeeded: %d\n", r.Succeeded)
	fmt.Printf("  no result: %d\n", r.Failed)
	fmt.Printf("  skipped:   %d\n", r.Dropped)
	if r.Cancelled {
		fmt.Printf("  discarded: %d\n", r.Discarded)
	}
	logger.Debug("Batch report: %+v", r)
}

func algorithmNames() string {
	names := make([]string, 0, len(batch.Algorithms()))
	for _, alg := range batch.Algorithms() {
		names = append(names, alg.String())
	}
	return strings.Join(names, ", ")
}

func init() {
	ProcessCmd.Flags().BoolVarP(&selectAll, "all", "a", false, "Select every item before processing")
	ProcessCmd.Flags().StringSliceVarP(&itemIDs, "items", "i", nil, "Process only these item ids, in the order given")
	ProcessCmd.Flags().IntVarP(&maxJobs, "jobs", "j", 0, "Maximum concurrent jobs (defaults to the configured value)")
	ProcessCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Do not draw a progress bar")
}
