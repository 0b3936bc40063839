package process

import (
	"fmt"
	"os"
	"time"

	"github.com/JSH-Team/mediabatch/internal/batch"

	"github.com/schollz/progressbar/v3"
)

const barSteps = 1000

// barDisplay renders batch progress on stderr.
type barDisplay struct {
	alg batch.Algorithm
	bar *progressbar.ProgressBar
}

var _ batch.Display = (*barDisplay)(nil)

func newBarDisplay(alg batch.Algorithm) *barDisplay {
	return &barDisplay{alg: alg}
}

func (d *barDisplay) SetBatchRunning(running bool) {
	if running {
		d.bar = progressbar.NewOptions(barSteps,
			progressbar.OptionSetDescription(fmt.Sprintf("Processing %s", d.alg)),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetWidth(10),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprint(os.Stderr, "\n")
			}),
			progressbar.OptionFullWidth(),
		)
		d.bar.RenderBlank()
		return
	}
	if d.bar == nil {
		return
	}
	// A cancelled batch stops short of 100%; leave the bar where it is.
	if !d.bar.IsFinished() {
		d.bar.Exit()
		fmt.Fprint(os.Stderr, "\n")
	}
	d.bar = nil
}

func (d *barDisplay) SetProgress(progress float64) {
	if d.bar == nil {
		return
	}
	d.bar.Set(int(progress * barSteps))
}
