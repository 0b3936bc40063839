package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JSH-Team/mediabatch/internal/audio"
	"github.com/JSH-Team/mediabatch/internal/batch"
	"github.com/JSH-Team/mediabatch/internal/project"
	"github.com/JSH-Team/mediabatch/internal/storage"
	"github.com/JSH-Team/mediabatch/internal/utils/logger"
	"github.com/JSH-Team/mediabatch/internal/workers"
)

// Editor is the part of a project an analysis reads from and writes to.
type Editor interface {
	Item(id string) (project.Item, error)
	ActiveSource(id string) (string, error)
	ReplaceMarkers(id string, markers []project.Marker) error
	AddTake(id, name, path string) (project.Take, error)
}

// Task runs one analysis for one item on the analysis pool. Everything but
// the processing itself happens on the tick goroutine.
type Task struct {
	alg     batch.Algorithm
	item    batch.ItemRef
	source  string
	editor  Editor
	pool    *workers.Pool
	process processFunc

	ctx    context.Context
	cancel context.CancelFunc

	progress progress
	finished atomic.Bool

	mu     sync.Mutex
	result *Result
	err    error
}

var _ batch.Task = (*Task)(nil)

func newTask(alg batch.Algorithm, item batch.ItemRef, source string, editor Editor, pool *workers.Pool, process processFunc) *Task {
	ctx, cancel := context.WithCancel(pool.Context())
	return &Task{
		alg:     alg,
		item:    item,
		source:  source,
		editor:  editor,
		pool:    pool,
		process: process,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start queues the analysis. It fails when the pool is stopped or full.
func (t *Task) Start() bool {
	err := t.pool.Submit(workers.Job{
		Name: fmt.Sprintf("%s %s", t.alg, t.item),
		Run:  t.run,
	})
	if err != nil {
		logger.Warn("Could not queue %s for item %s: %v", t.alg, t.item, err)
		t.cancel()
		return false
	}
	return true
}

func (t *Task) run(_ context.Context) {
	defer t.cancel()
	startTime := time.Now()
	result, err := t.analyze()

	t.mu.Lock()
	t.result, t.err = result, err
	t.mu.Unlock()

	switch {
	case err == nil:
		t.progress.set(1)
		logger.Debug("%s on item %s finished in %v", t.alg, t.item, time.Since(startTime))
	case errors.Is(err, context.Canceled):
		logger.Debug("%s on item %s cancelled", t.alg, t.item)
	default:
		logger.Error("%s on item %s failed: %v", t.alg, t.item, err)
	}
	t.finished.Store(true)
}

func (t *Task) analyze() (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("analysis panicked: %v", r)
		}
	}()

	if err := t.ctx.Err(); err != nil {
		return nil, err
	}
	buf, err := audio.ReadFile(t.source)
	if err != nil {
		return nil, err
	}
	return t.process(t.ctx, buf, &t.progress)
}

func (t *Task) IsFinished() bool {
	return t.finished.Load()
}

func (t *Task) Progress() float64 {
	return t.progress.get()
}

// Finalize writes the results into the project. It returns false without
// touching the project when the analysis failed, was cancelled, found
// nothing, or item is not the task's own item.
func (t *Task) Finalize(item batch.ItemRef) bool {
	if item != t.item {
		logger.Error("%s task for item %s asked to finalize item %s", t.alg, t.item, item)
		return false
	}
	if !t.finished.Load() {
		return false
	}

	t.mu.Lock()
	result, err := t.result, t.err
	t.mu.Unlock()
	if err != nil || result == nil {
		return false
	}

	id := string(item)
	if t.alg.CreatesTakes() {
		return t.applyTakes(id, result.Takes)
	}
	return t.applyMarkers(id, result.Markers)
}

func (t *Task) applyMarkers(id string, slices []Slice) bool {
	if len(slices) == 0 {
		logger.Info("%s found no slices in item %s", t.alg, id)
		return false
	}
	markers := make([]project.Marker, len(slices))
	for i, s := range slices {
		markers[i] = project.Marker{Position: s.Position, Label: s.Label}
	}
	if err := t.editor.ReplaceMarkers(id, markers); err != nil {
		logger.Error("Failed to write %d markers to item %s: %v", len(markers), id, err)
		return false
	}
	return true
}

func (t *Task) applyTakes(id string, takes []RenderedTake) bool {
	if len(takes) == 0 {
		return false
	}
	item, err := t.editor.Item(id)
	if err != nil {
		logger.Error("Item %s disappeared before its takes were written: %v", id, err)
		return false
	}

	for _, take := range takes {
		path, err := storage.SaveTake(t.source, take.Suffix, take.Buffer)
		if err != nil {
			logger.Error("%v", err)
			return false
		}
		if _, err := t.editor.AddTake(id, item.Name+" "+take.Suffix, path); err != nil {
			logger.Error("Failed to add take %s to item %s: %v", path, id, err)
			return false
		}
	}
	return true
}

// Cancel stops the analysis. A queued task still runs, sees the cancelled
// context and finishes immediately.
func (t *Task) Cancel() {
	t.cancel()
}
