// Package pending implements the delayed-completion grace window: the
// short delay after a task is marked complete during which it keeps its
// place in the list and the completion can still be undone.
package pending

import (
	"sync"
	"time"
)

// Tracker holds at most one pending task at a time. Completing a second
// task supersedes the first one's grace window without completing it
// early. All methods are safe for concurrent use; the timer callback
// runs on its own goroutine.
type Tracker struct {
	mu        sync.Mutex
	delay     time.Duration
	taskID    string
	timer     *time.Timer
	gen       uint64
	onElapsed func(taskID string)
}

// NewTracker creates a tracker with the given grace delay. onElapsed is
// invoked, outside the tracker's lock, when a window runs out
// uninterrupted; it may be nil.
func NewTracker(delay time.Duration, onElapsed func(taskID string)) *Tracker {
	return &Tracker{
		delay:     delay,
		onElapsed: onElapsed,
	}
}

// Start opens a grace window for the given task, cancelling any window
// still open for another (or the same) task.
func (tr *Tracker) Start(taskID string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	tr.stopLocked()
	tr.taskID = taskID
	tr.gen++
	gen := tr.gen
	tr.timer = time.AfterFunc(tr.delay, func() {
		tr.elapse(taskID, gen)
	})
}

// Cancel closes the window for the given task before it runs out.
// It reports whether that task was actually pending.
func (tr *Tracker) Cancel(taskID string) bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if tr.taskID != taskID || tr.timer == nil {
		return false
	}
	tr.stopLocked()
	return true
}

// Pending reports whether the given task is inside an open grace window.
func (tr *Tracker) Pending(taskID string) bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.timer != nil && tr.taskID == taskID
}

// Stop releases any open window without invoking the elapsed callback.
// Used on teardown so the timer never fires against stale state.
func (tr *Tracker) Stop() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.stopLocked()
}

func (tr *Tracker) stopLocked() {
	if tr.timer != nil {
		tr.timer.Stop()
		tr.timer = nil
	}
	tr.taskID = ""
}

func (tr *Tracker) elapse(taskID string, gen uint64) {
	tr.mu.Lock()
	// A Start or Cancel that raced the timer wins.
	if tr.gen != gen || tr.taskID != taskID || tr.timer == nil {
		tr.mu.Unlock()
		return
	}
	tr.stopLocked()
	onElapsed := tr.onElapsed
	tr.mu.Unlock()

	if onElapsed != nil {
		onElapsed(taskID)
	}
}
