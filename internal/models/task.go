package models

import "time"

// Subtask is an independently toggleable checklist item inside a task.
type Subtask struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

type Task struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id,omitempty"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
	// CompletedAt is non-nil iff Completed is true.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	// DueDate is a calendar date in the form "2006-01-02".
	// An empty string means the task has no deadline.
	DueDate  string    `json:"due_date,omitempty"`
	Subtasks []Subtask `json:"subtasks,omitempty"`
	// SyncedAt marks the last successful mirror to the remote store.
	// Nil until first sync; treated as the epoch when comparing.
	SyncedAt *time.Time `json:"synced_at,omitempty"`
	// LastNotificationDate is the calendar date of the last reminder
	// sent for this task, preventing duplicate same-day reminders.
	LastNotificationDate string `json:"last_notification_date,omitempty"`
}

// SetCompleted flips the completion flag and keeps
// CompletedAt consistent with it.
func (t *Task) SetCompleted(completed bool, now time.Time) {
	t.Completed = completed
	if completed {
		t.CompletedAt = &now
	} else {
		t.CompletedAt = nil
	}
}

// Progress returns the number of completed subtasks and the total.
// The ratio is always derived, never stored.
func (t *Task) Progress() (done, total int) {
	for _, st := range t.Subtasks {
		if st.Completed {
			done++
		}
	}
	return done, len(t.Subtasks)
}

// Tombstone records a task deletion so that reconciliation can
// distinguish "deleted here" from "never existed here" and does
// not resurrect a deleted task from a stale snapshot.
type Tombstone struct {
	TaskID    string    `json:"task_id"`
	UserID    string    `json:"user_id,omitempty"`
	DeletedAt time.Time `json:"deleted_at"`
}
