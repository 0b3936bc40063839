package batch

import (
	"context"
	"time"

	"go.uber.org/ratelimit"
)

// DefaultTickInterval is the cadence of the host idle callback.
const DefaultTickInterval = 30 * time.Millisecond

// Drive plays the host idle callback: it ticks s on a fixed cadence from the
// calling goroutine until the batch is idle, then returns its report.
// Cancelling ctx requests cancellation, which takes effect on the next tick.
func Drive(ctx context.Context, s *Scheduler, interval time.Duration) Report {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	rl := ratelimit.New(1, ratelimit.Per(interval), ratelimit.WithoutSlack)

	cancelled := false
	for s.Running() {
		rl.Take()
		if !cancelled && ctx.Err() != nil {
			cancelled = true
			s.RequestCancel()
		}
		s.Tick()
	}
	return s.LastReport()
}
