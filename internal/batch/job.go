package batch

import (
	"github.com/JSH-Team/mediabatch/internal/utils/logger"
)

// Job pairs one Task with its target item and owns the item lock for the
// task's lifetime. A Job is never reused.
type Job struct {
	task   Task
	item   ItemRef
	locker Locker

	locked bool
}

func newJob(item ItemRef, task Task, locker Locker) *Job {
	return &Job{
		task:   task,
		item:   item,
		locker: locker,
	}
}

// Item returns the job's target item.
func (j *Job) Item() ItemRef {
	return j.item
}

// Start locks the item and starts the task. On false, or a panic from the
// task, the item is unlocked again and the job must be discarded.
func (j *Job) Start() (started bool) {
	if err := j.locker.LockItem(j.item); err != nil {
		logger.Warn("Item %s could not be locked: %v", j.item, err)
		return false
	}
	j.locked = true

	defer func() {
		if !started {
			j.release()
		}
	}()
	return j.task.Start()
}

func (j *Job) IsFinished() bool {
	return j.task.IsFinished()
}

// Progress returns the task's own estimate clamped to [0,1].
func (j *Job) Progress() float64 {
	return clamp01(j.task.Progress())
}

// Finalize applies the task results. The lock is released even if the task
// panics; the panic is left to the caller.
func (j *Job) Finalize() bool {
	defer j.release()
	return j.task.Finalize(j.item)
}

// Cancel aborts the task and releases the item lock. It is safe on a task that
// already finished.
func (j *Job) Cancel() {
	defer j.release()
	j.task.Cancel()
}

// release drops the item lock at most once.
func (j *Job) release() {
	if !j.locked {
		return
	}
	j.locked = false
	if err := j.locker.UnlockItem(j.item); err != nil {
		logger.Error("Failed to unlock item %s: %v", j.item, err)
	}
}
