package batch

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptySelection = errors.New("no items selected")
	ErrNoAlgorithm    = errors.New("no algorithm configured")
	ErrBatchRunning   = errors.New("a batch is already running")
)

// ItemRef is an opaque handle to a project item. The scheduler only compares
// refs and hands them back to the host, the task and the factory.
type ItemRef string

// Algorithm selects which analysis a batch runs. The zero value means no
// algorithm is configured.
type Algorithm int

const (
	AlgorithmNone Algorithm = iota
	NoveltySlice
	OnsetSlice
	TransientSlice
	AmpGate
	HPSS
	NMF
	Transients
)

var algorithmNames = map[Algorithm]string{
	AlgorithmNone:  "none",
	NoveltySlice:   "novelty-slice",
	OnsetSlice:     "onset-slice",
	TransientSlice: "transient-slice",
	AmpGate:        "amp-gate",
	HPSS:           "hpss",
	NMF:            "nmf",
	Transients:     "transients",
}

func (a Algorithm) String() string {
	if name, ok := algorithmNames[a]; ok {
		return name
	}
	return fmt.Sprintf("algorithm(%d)", int(a))
}

// CreatesTakes reports whether results are written as new takes rather than markers.
func (a Algorithm) CreatesTakes() bool {
	switch a {
	case HPSS, NMF, Transients:
		return true
	}
	return false
}

// Algorithms returns every selectable algorithm in menu order.
func Algorithms() []Algorithm {
	return []Algorithm{NoveltySlice, OnsetSlice, TransientSlice, AmpGate, HPSS, NMF, Transients}
}

// ParseAlgorithm resolves a CLI name such as "onset-slice". Underscores and
// case are ignored.
func ParseAlgorithm(name string) (Algorithm, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
	for alg, n := range algorithmNames {
		if alg != AlgorithmNone && n == normalized {
			return alg, nil
		}
	}
	return AlgorithmNone, fmt.Errorf("unknown algorithm %q", name)
}

// Task is one asynchronous unit of analysis bound to a single item.
//
// Start must return promptly; the work continues in the background and is
// observed through IsFinished and Progress. A task whose processing fails must
// still report finished. Finalize runs on the tick goroutine and performs every
// project mutation for the item; it returns false when there was nothing to
// apply. Cancel is best effort and may be called after the task finished.
type Task interface {
	Start() bool
	IsFinished() bool
	Progress() float64
	Finalize(item ItemRef) bool
	Cancel()
}

// TaskFactory builds the task for one (algorithm, item) pair. It returns false
// when the item cannot be processed with that algorithm.
type TaskFactory interface {
	Create(alg Algorithm, item ItemRef) (Task, bool)
}

// Locker guards an item against concurrent edits while it is in flight.
type Locker interface {
	LockItem(item ItemRef) error
	UnlockItem(item ItemRef) error
}

// Host is the set of project operations the scheduler needs.
type Host interface {
	Locker
	HardwareParallelismHint() int
	ProjectOf(item ItemRef) string
	BeginUndo(project string) error
	EndUndo(project, label string) error
}

// Display receives the batch progress and the running signal that gates the
// cancel affordance.
type Display interface {
	SetProgress(progress float64)
	SetBatchRunning(running bool)
}

type nopDisplay struct{}

func (nopDisplay) SetProgress(float64) {}
func (nopDisplay) SetBatchRunning(bool) {}
