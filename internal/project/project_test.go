package project

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/JSH-Team/mediabatch/internal/audio"
	"github.com/JSH-Team/mediabatch/internal/batch"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestProject(t *testing.T) *Project {
	t.Helper()
	p, err := Open(filepath.Join(t.TempDir(), "session.mbp"))
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

// writeTone writes a short distinct WAV so every call hashes differently.
func writeTone(t *testing.T, name string, seed float32) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	data := make([]float32, 4410)
	for i := range data {
		data[i] = seed * float32(i%100) / 100
	}
	require.NoError(t, audio.WriteFile(path, &audio.Buffer{SampleRate: 44100, Channels: 1, Data: data}))
	return path
}

func addItems(t *testing.T, p *Project, n int) []Item {
	t.Helper()
	items := make([]Item, n)
	for i := range items {
		item, err := p.AddItem(writeTone(t, fmt.Sprintf("Take %d.wav", i+1), float32(i+1)/10))
		require.NoError(t, err)
		items[i] = item
	}
	return items
}

func TestAddItem(t *testing.T) {
	p := openTestProject(t)
	path := writeTone(t, "Kick Drum.wav", 0.5)

	item, err := p.AddItem(path)
	require.NoError(t, err)
	assert.Equal(t, "Kick_Drum", item.Name)
	assert.InDelta(t, 0.1, item.Length, 1e-9)
	assert.Len(t, item.SourceHash, 64)

	src, err := p.ActiveSource(item.ID)
	require.NoError(t, err)
	assert.Equal(t, path, src)

	dup, err := p.AddItem(path)
	assert.ErrorIs(t, err, ErrDuplicateItem)
	assert.Equal(t, item.ID, dup.ID)

	items, err := p.Items()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.WithinDuration(t, time.Now(), items[0].Created(), time.Minute)
}

func TestItemNotFound(t *testing.T) {
	p := openTestProject(t)

	_, err := p.Item("nope")
	assert.ErrorIs(t, err, ErrItemNotFound)
	_, err = p.ActiveSource("nope")
	assert.ErrorIs(t, err, ErrItemNotFound)
	assert.ErrorIs(t, p.LockItem("nope"), ErrItemNotFound)
	assert.ErrorIs(t, p.Select([]string{"nope"}, false), ErrItemNotFound)
}

func TestSelection(t *testing.T) {
	p := openTestProject(t)
	items := addItems(t, p, 3)

	sel, err := p.SelectedItems()
	require.NoError(t, err)
	assert.Empty(t, sel)

	require.NoError(t, p.Select([]string{items[2].ID, items[0].ID}, false))
	sel, err = p.SelectedItems()
	require.NoError(t, err)
	assert.Equal(t, []batch.ItemRef{batch.ItemRef(items[2].ID), batch.ItemRef(items[0].ID)}, sel)

	// Adding keeps earlier picks in place.
	require.NoError(t, p.Select([]string{items[0].ID, items[1].ID}, false))
	sel, err = p.SelectedItems()
	require.NoError(t, err)
	assert.Equal(t, []batch.ItemRef{batch.ItemRef(items[2].ID), batch.ItemRef(items[0].ID), batch.ItemRef(items[1].ID)}, sel)

	require.NoError(t, p.Select([]string{items[1].ID}, true))
	sel, err = p.SelectedItems()
	require.NoError(t, err)
	assert.Equal(t, []batch.ItemRef{batch.ItemRef(items[1].ID)}, sel)

	require.NoError(t, p.SelectAll())
	sel, err = p.SelectedItems()
	require.NoError(t, err)
	assert.Equal(t, []batch.ItemRef{batch.ItemRef(items[1].ID), batch.ItemRef(items[0].ID), batch.ItemRef(items[2].ID)}, sel)
}

func TestItemLocks(t *testing.T) {
	p := openTestProject(t)
	item := addItems(t, p, 1)[0]
	ref := batch.ItemRef(item.ID)

	require.NoError(t, p.LockItem(ref))
	assert.ErrorIs(t, p.LockItem(ref), ErrItemLocked)

	loaded, err := p.Item(item.ID)
	require.NoError(t, err)
	assert.True(t, loaded.Locked)

	require.NoError(t, p.UnlockItem(ref))
	assert.ErrorIs(t, p.UnlockItem(ref), ErrItemNotLocked)

	require.NoError(t, p.LockItem(ref))
	n, err := p.ResetLocks()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, p.LockItem(ref))
}

func TestUndoBlockPairing(t *testing.T) {
	p := openTestProject(t)

	assert.Error(t, p.BeginUndo("other"))
	assert.ErrorIs(t, p.EndUndo(p.Name(), "x"), ErrNoUndoOpen)

	require.NoError(t, p.BeginUndo(p.Name()))
	assert.ErrorIs(t, p.BeginUndo(p.Name()), ErrUndoOpen)
	_, err := p.Undo()
	assert.ErrorIs(t, err, ErrUndoOpen)
	require.NoError(t, p.EndUndo(p.Name(), "onset-slice: process batch"))

	history, err := p.UndoHistory()
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, UndoClosed, history[0].State)
	assert.Equal(t, "onset-slice: process batch", history[0].Label)
}

func TestUndoRevertsMarkersAndTakes(t *testing.T) {
	p := openTestProject(t)
	items := addItems(t, p, 2)
	a, b := items[0], items[1]
	original, err := p.ActiveSource(b.ID)
	require.NoError(t, err)

	// Edits outside a block are permanent.
	require.NoError(t, p.ReplaceMarkers(a.ID, []Marker{{Position: 0.5, Label: "manual"}}))

	require.NoError(t, p.BeginUndo(p.Name()))
	require.NoError(t, p.ReplaceMarkers(a.ID, []Marker{{Position: 0.3}, {Position: 0.1}}))
	_, err = p.AddTake(b.ID, "b transients", "/tmp/b_transients.wav")
	require.NoError(t, err)
	require.NoError(t, p.EndUndo(p.Name(), "transients: process batch"))

	markers, err := p.Markers(a.ID)
	require.NoError(t, err)
	require.Len(t, markers, 2)
	assert.Equal(t, 0.1, markers[0].Position)
	src, err := p.ActiveSource(b.ID)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/b_transients.wav", src)

	label, err := p.Undo()
	require.NoError(t, err)
	assert.Equal(t, "transients: process batch", label)

	markers, err = p.Markers(a.ID)
	require.NoError(t, err)
	require.Len(t, markers, 1)
	assert.Equal(t, "manual", markers[0].Label)

	src, err = p.ActiveSource(b.ID)
	require.NoError(t, err)
	assert.Equal(t, original, src)
	takes, err := p.Takes(b.ID)
	require.NoError(t, err)
	assert.Len(t, takes, 1)

	_, err = p.Undo()
	assert.ErrorIs(t, err, ErrNothingToUndo)
}

func TestOpenLeavesRunningBatchAlone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.mbp")
	running, err := Open(path)
	require.NoError(t, err)
	defer running.Close()
	items := addItems(t, running, 1)
	require.NoError(t, running.BeginUndo(running.Name()))

	other, err := Open(path)
	require.NoError(t, err)
	defer other.Close()

	history, err := other.UndoHistory()
	require.NoError(t, err)
	assert.Empty(t, history)
	_, err = other.Undo()
	assert.ErrorIs(t, err, ErrUndoOpen)
	assert.ErrorIs(t, other.BeginUndo(other.Name()), ErrUndoOpen)

	require.NoError(t, running.ReplaceMarkers(items[0].ID, []Marker{{Position: 0.05}}))
	require.NoError(t, running.EndUndo(running.Name(), "onset-slice: process batch"))

	label, err := other.Undo()
	require.NoError(t, err)
	assert.Equal(t, "onset-slice: process batch", label)
	markers, err := other.Markers(items[0].ID)
	require.NoError(t, err)
	assert.Empty(t, markers)
}

func TestRecoverInterrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crashed.mbp")
	p, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, p.BeginUndo(p.Name()))
	require.NoError(t, p.Close())

	p, err = Open(path)
	require.NoError(t, err)
	defer p.Close()
	assert.ErrorIs(t, p.BeginUndo(p.Name()), ErrUndoOpen)

	n, err := p.RecoverInterrupted()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	history, err := p.UndoHistory()
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, UndoClosed, history[0].State)
	assert.Equal(t, "interrupted batch", history[0].Label)
	require.NoError(t, p.BeginUndo(p.Name()))

	n, err = p.RecoverInterrupted()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.ErrorIs(t, p.EndUndo(p.Name(), "late"), ErrNoUndoOpen)
}

func TestProjectHostsScheduler(t *testing.T) {
	p := openTestProject(t)
	items := addItems(t, p, 3)
	refs := make([]batch.ItemRef, len(items))
	for i, item := range items {
		refs[i] = batch.ItemRef(item.ID)
	}

	factory := markerFactory{project: p}
	s := batch.NewScheduler(p, factory, 2, nil)
	require.NoError(t, s.Start(refs, batch.OnsetSlice))
	for i := 0; s.Running() && i < 20; i++ {
		s.Tick()
	}

	report := s.LastReport()
	assert.Equal(t, 3, report.Succeeded)
	for _, item := range items {
		markers, err := p.Markers(item.ID)
		require.NoError(t, err)
		assert.Len(t, markers, 1)
		loaded, err := p.Item(item.ID)
		require.NoError(t, err)
		assert.False(t, loaded.Locked)
	}

	label, err := p.Undo()
	require.NoError(t, err)
	assert.Equal(t, "onset-slice: process batch", label)
	markers, err := p.Markers(items[0].ID)
	require.NoError(t, err)
	assert.Empty(t, markers)
}

// markerFactory builds tasks that finish immediately and add one marker.
type markerFactory struct {
	project *Project
}

func (f markerFactory) Create(alg batch.Algorithm, item batch.ItemRef) (batch.Task, bool) {
	return &markerTask{project: f.project}, true
}

type markerTask struct {
	project *Project
}

func (t *markerTask) Start() bool { return true }
func (t *markerTask) IsFinished() bool { return true }
func (t *markerTask) Progress() float64 { return 1 }
func (t *markerTask) Cancel() {}
func (t *markerTask) Finalize(item batch.ItemRef) bool {
	return t.project.ReplaceMarkers(string(item), []Marker{{Position: 0.05}}) == nil
}
