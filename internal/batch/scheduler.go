package batch

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/JSH-Team/mediabatch/internal/utils/logger"
)

// DefaultMaxConcurrency caps the number of simultaneously active jobs
// regardless of how many cores the host reports.
const DefaultMaxConcurrency = 4

// State of the scheduler.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCancelling
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCancelling:
		return "cancelling"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Report summarises a batch once it returned to idle.
type Report struct {
	Algorithm Algorithm
	Total     int
	Succeeded int
	Failed    int
	Dropped   int
	Discarded int // pending, active or unfinalized when the batch was cancelled
	Cancelled bool
	StartedAt time.Time
	Duration  time.Duration
}

// Snapshot is a read-only view of the batch collections.
type Snapshot struct {
	State      State
	Algorithm  Algorithm
	Limit      int
	Total      int
	Completed  int
	Progress   float64
	Pending    []ItemRef
	Active     []ItemRef
	Finalizing []ItemRef
}

// Scheduler runs one batch at a time as a cooperative state machine. It owns
// no goroutines: every step happens inside Tick, which the host calls on a
// fixed cadence from the one goroutine allowed to touch project state.
type Scheduler struct {
	host           Host
	factory        TaskFactory
	display        Display
	maxConcurrency int

	running         bool
	cancelRequested atomic.Bool

	algorithm    Algorithm
	limit        int
	pending      []ItemRef
	active       []*Job
	finalization []*Job

	total     int
	completed int
	report    Report
	last      Report
	progress  Progress

	undoProject string
	undoOpen    bool
}

// NewScheduler returns an idle scheduler. maxConcurrency <= 0 selects
// DefaultMaxConcurrency; a nil display discards progress updates.
func NewScheduler(host Host, factory TaskFactory, maxConcurrency int, display Display) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	if display == nil {
		display = nopDisplay{}
	}
	return &Scheduler{
		host:           host,
		factory:        factory,
		display:        display,
		maxConcurrency: maxConcurrency,
	}
}

// Start begins a batch over items with the given algorithm. It leaves the
// scheduler idle and opens no undo block when the selection is empty, no
// algorithm is configured, or the undo block cannot be opened.
func (s *Scheduler) Start(items []ItemRef, alg Algorithm) error {
	if s.running {
		return ErrBatchRunning
	}
	if len(items) == 0 {
		return ErrEmptySelection
	}
	if alg == AlgorithmNone {
		return ErrNoAlgorithm
	}

	pending := make([]ItemRef, 0, len(items))
	seen := make(map[ItemRef]struct{}, len(items))
	for _, item := range items {
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		pending = append(pending, item)
	}

	project := s.host.ProjectOf(pending[0])
	if err := s.host.BeginUndo(project); err != nil {
		return fmt.Errorf("failed to open undo block: %w", err)
	}

	s.undoProject = project
	s.undoOpen = true
	s.running = true
	s.cancelRequested.Store(false)

	s.algorithm = alg
	s.limit = s.concurrencyLimit()
	s.pending = pending
	s.active = nil
	s.finalization = nil
	s.total = len(pending)
	s.completed = 0
	s.progress.Reset(s.total)
	s.report = Report{
		Algorithm: alg,
		Total:     s.total,
		StartedAt: time.Now(),
	}

	s.display.SetBatchRunning(true)
	s.display.SetProgress(0)

	logger.Info("Starting %s batch: %d items, %d concurrent", alg, s.total, s.limit)
	return nil
}

func (s *Scheduler) concurrencyLimit() int {
	limit := s.host.HardwareParallelismHint()
	if limit < 1 {
		limit = 1
	}
	if limit > s.maxConcurrency {
		limit = s.maxConcurrency
	}
	return limit
}

// RequestCancel asks for the running batch to be abandoned. Nothing is touched
// until the next Tick.
func (s *Scheduler) RequestCancel() {
	if !s.running {
		return
	}
	if !s.cancelRequested.Swap(true) {
		logger.Info("Cancellation requested for %s batch", s.algorithm)
	}
}

// Abort cancels the running batch immediately. Used when the host goes away
// mid-batch.
func (s *Scheduler) Abort() {
	s.RequestCancel()
	s.Tick()
}

// Tick advances the batch by one step and always returns promptly. A panic
// from a task or the factory abandons the batch as if it had been cancelled.
func (s *Scheduler) Tick() {
	if !s.running {
		return
	}
	defer s.recoverTick()

	if s.cancelRequested.Load() {
		s.cancel()
		return
	}

	// Harvest first so freed slots are visible to the top-up below.
	stillActive := s.active[:0]
	for _, job := range s.active {
		if job.IsFinished() {
			s.finalization = append(s.finalization, job)
			continue
		}
		stillActive = append(stillActive, job)
	}
	clearTail(s.active, len(stillActive))
	s.active = stillActive

	for len(s.active) < s.limit && len(s.pending) > 0 {
		// Popped only after promote so a panicking factory leaves it pending.
		s.promote(s.pending[0])
		s.pending = s.pending[1:]
	}

	if len(s.finalization) > 0 {
		job := s.finalization[0]
		s.finalization[0] = nil
		s.finalization = s.finalization[1:]
		s.finalize(job)
	}

	s.display.SetProgress(s.updateProgress())

	if len(s.pending) == 0 && len(s.active) == 0 && len(s.finalization) == 0 {
		s.finish(false)
	}
}

func (s *Scheduler) promote(item ItemRef) {
	task, ok := s.factory.Create(s.algorithm, item)
	if !ok || task == nil {
		logger.Warn("No %s task for item %s, skipping", s.algorithm, item)
		s.drop()
		return
	}

	job := newJob(item, task, s.host)
	if !job.Start() {
		logger.Warn("Failed to start %s on item %s, skipping", s.algorithm, item)
		s.drop()
		return
	}

	logger.Debug("Started %s on item %s (%d/%d active)", s.algorithm, item, len(s.active)+1, s.limit)
	s.active = append(s.active, job)
}

func (s *Scheduler) drop() {
	s.completed++
	s.report.Dropped++
}

// finalize applies one job's results. A panicking task only fails its own item.
func (s *Scheduler) finalize(job *Job) {
	s.completed++

	ok := false
	func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Finalizing item %s panicked: %v", job.Item(), r)
				ok = false
			}
		}()
		ok = job.Finalize()
	}()

	if ok {
		s.report.Succeeded++
		logger.Debug("Finalized item %s", job.Item())
		return
	}
	s.report.Failed++
	logger.Warn("Item %s produced no %s results", job.Item(), s.algorithm)
}

func (s *Scheduler) cancel() {
	// Finished but unfinalized jobs lose their results; their locks still go.
	// A harvest cut short by a panic can leave a job in both collections.
	jobs := make(map[*Job]struct{}, len(s.active)+len(s.finalization))
	for _, set := range [][]*Job{s.active, s.finalization} {
		for _, job := range set {
			if _, seen := jobs[job]; seen {
				continue
			}
			jobs[job] = struct{}{}
			s.cancelJob(job)
		}
	}

	s.report.Discarded = len(s.pending) + len(jobs)

	s.pending = nil
	s.active = nil
	s.finalization = nil

	s.finish(true)
}

func (s *Scheduler) cancelJob(job *Job) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Cancelling item %s panicked: %v", job.Item(), r)
		}
	}()
	job.Cancel()
}

func (s *Scheduler) recoverTick() {
	r := recover()
	if r == nil {
		return
	}
	logger.Error("%s batch panicked, abandoning it: %v", s.algorithm, r)
	if s.running {
		s.cancel()
	}
}

func (s *Scheduler) finish(cancelled bool) {
	label := fmt.Sprintf("%s: process batch", s.algorithm)
	if cancelled {
		label += " (cancelled)"
	}
	s.closeUndo(label)

	s.running = false
	s.cancelRequested.Store(false)

	s.report.Cancelled = cancelled
	s.report.Duration = time.Since(s.report.StartedAt)
	s.last = s.report

	s.display.SetBatchRunning(false)

	if cancelled {
		logger.Info("Cancelled %s batch after %v (%d discarded)", s.algorithm, s.report.Duration.Round(time.Millisecond), s.report.Discarded)
		return
	}
	logger.Info("Finished %s batch in %v: %d succeeded, %d failed, %d skipped",
		s.algorithm, s.report.Duration.Round(time.Millisecond), s.report.Succeeded, s.report.Failed, s.report.Dropped)
}

func (s *Scheduler) closeUndo(label string) {
	if !s.undoOpen {
		return
	}
	s.undoOpen = false
	if err := s.host.EndUndo(s.undoProject, label); err != nil {
		logger.Error("Failed to close undo block %q: %v", label, err)
	}
	s.undoProject = ""
}

func (s *Scheduler) updateProgress() float64 {
	active := make([]float64, len(s.active))
	for i, job := range s.active {
		active[i] = job.Progress()
	}
	return s.progress.Update(active, len(s.finalization), s.completed)
}

// State returns the current state. A running batch with a pending cancel
// request reports StateCancelling.
func (s *Scheduler) State() State {
	switch {
	case !s.running:
		return StateIdle
	case s.cancelRequested.Load():
		return StateCancelling
	}
	return StateRunning
}

// Running reports whether a batch is in progress.
func (s *Scheduler) Running() bool {
	return s.running
}

// Limit returns the concurrency limit of the current or last batch.
func (s *Scheduler) Limit() int {
	return s.limit
}

// LastReport returns the report of the most recently finished batch.
func (s *Scheduler) LastReport() Report {
	return s.last
}

// Snapshot copies the current batch collections.
func (s *Scheduler) Snapshot() Snapshot {
	snap := Snapshot{
		State:      s.State(),
		Algorithm:  s.algorithm,
		Limit:      s.limit,
		Total:      s.total,
		Completed:  s.completed,
		Progress:   s.progress.Value(),
		Pending:    append([]ItemRef(nil), s.pending...),
		Active:     make([]ItemRef, 0, len(s.active)),
		Finalizing: make([]ItemRef, 0, len(s.finalization)),
	}
	for _, job := range s.active {
		snap.Active = append(snap.Active, job.Item())
	}
	for _, job := range s.finalization {
		snap.Finalizing = append(snap.Finalizing, job.Item())
	}
	return snap
}

func clearTail(jobs []*Job, from int) {
	for i := from; i < len(jobs); i++ {
		jobs[i] = nil
	}
}
