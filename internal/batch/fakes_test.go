package batch

import (
	"errors"
	"fmt"
)

type undoCall struct {
	project string
	label   string
}

type fakeHost struct {
	hint       int
	beginErr   error
	lockErr    map[ItemRef]error
	locked     map[ItemRef]bool
	lockCalls  map[ItemRef]int
	unlockCall map[ItemRef]int
	begins     []string
	ends       []undoCall
}

func newFakeHost(hint int) *fakeHost {
	return &fakeHost{
		hint:       hint,
		lockErr:    map[ItemRef]error{},
		locked:     map[ItemRef]bool{},
		lockCalls:  map[ItemRef]int{},
		unlockCall: map[ItemRef]int{},
	}
}

func (h *fakeHost) HardwareParallelismHint() int { return h.hint }

func (h *fakeHost) ProjectOf(item ItemRef) string { return "project-of-" + string(item) }

func (h *fakeHost) BeginUndo(project string) error {
	if h.beginErr != nil {
		return h.beginErr
	}
	h.begins = append(h.begins, project)
	return nil
}

func (h *fakeHost) EndUndo(project, label string) error {
	h.ends = append(h.ends, undoCall{project: project, label: label})
	return nil
}

func (h *fakeHost) LockItem(item ItemRef) error {
	if err := h.lockErr[item]; err != nil {
		return err
	}
	if h.locked[item] {
		return fmt.Errorf("item %s already locked", item)
	}
	h.locked[item] = true
	h.lockCalls[item]++
	return nil
}

func (h *fakeHost) UnlockItem(item ItemRef) error {
	if !h.locked[item] {
		return errors.New("not locked")
	}
	h.locked[item] = false
	h.unlockCall[item]++
	return nil
}

func (h *fakeHost) lockedCount() int {
	n := 0
	for _, v := range h.locked {
		if v {
			n++
		}
	}
	return n
}

type fakeTask struct {
	startOK    bool
	finalizeOK bool
	panics     bool

	startPanics    bool
	finishedPanics bool
	cancelPanics   bool

	finished bool
	progress float64

	starts    int
	finalizes int
	cancels   int
	finalized ItemRef
}

func (t *fakeTask) Start() bool {
	t.starts++
	if t.startPanics {
		panic("start exploded")
	}
	return t.startOK
}

func (t *fakeTask) IsFinished() bool {
	if t.finishedPanics {
		panic("status exploded")
	}
	return t.finished
}

func (t *fakeTask) Progress() float64 { return t.progress }

func (t *fakeTask) Finalize(item ItemRef) bool {
	t.finalizes++
	t.finalized = item
	if t.panics {
		panic("finalize exploded")
	}
	return t.finalizeOK
}

func (t *fakeTask) Cancel() {
	t.cancels++
	if t.cancelPanics {
		panic("cancel exploded")
	}
}

type fakeFactory struct {
	tasks   map[ItemRef]*fakeTask
	refuse  map[ItemRef]bool
	explode map[ItemRef]bool
	created []ItemRef
	algs    []Algorithm
}

func newFakeFactory(items ...ItemRef) *fakeFactory {
	f := &fakeFactory{
		tasks:  map[ItemRef]*fakeTask{},
		refuse:  map[ItemRef]bool{},
		explode: map[ItemRef]bool{},
	}
	for _, item := range items {
		f.tasks[item] = &fakeTask{startOK: true, finalizeOK: true}
	}
	return f
}

func (f *fakeFactory) Create(alg Algorithm, item ItemRef) (Task, bool) {
	f.algs = append(f.algs, alg)
	if f.explode[item] {
		panic("factory exploded")
	}
	if f.refuse[item] {
		return nil, false
	}
	task, ok := f.tasks[item]
	if !ok {
		return nil, false
	}
	f.created = append(f.created, item)
	return task, true
}

type fakeDisplay struct {
	progress []float64
	running  []bool
}

func (d *fakeDisplay) SetProgress(p float64) { d.progress = append(d.progress, p) }

func (d *fakeDisplay) SetBatchRunning(r bool) { d.running = append(d.running, r) }

func items(n int) []ItemRef {
	out := make([]ItemRef, n)
	for i := range out {
		out[i] = ItemRef(fmt.Sprintf("item%d", i+1))
	}
	return out
}
