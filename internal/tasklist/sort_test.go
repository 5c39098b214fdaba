package tasklist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Nifargo/todo-app-server/internal/models"
)

func TestSort_CompletedSinkToBottom(t *testing.T) {
	tasks := []models.Task{
		task("done", "done", "", true, now),
		task("open", "open", "", false, now.Add(-time.Hour)),
	}

	Sort(tasks, now, nil)
	require.Equal(t, []string{"open", "done"}, ids(tasks))
}

func TestSort_OverdueFirst(t *testing.T) {
	tasks := []models.Task{
		task("today", "due today", "2026-03-15", false, now),
		task("overdue", "due yesterday", "2026-03-14", false, now.Add(-time.Hour)),
		task("dateless", "no deadline", "", false, now),
	}

	Sort(tasks, now, nil)
	require.Equal(t, []string{"overdue", "today", "dateless"}, ids(tasks))
}

func TestSort_DueDateAscendingThenNewestFirst(t *testing.T) {
	tasks := []models.Task{
		task("later", "later", "2026-03-20", false, now),
		task("sooner", "sooner", "2026-03-16", false, now),
		task("old-dateless", "old", "", false, now.Add(-2*time.Hour)),
		task("new-dateless", "new", "", false, now),
	}

	Sort(tasks, now, nil)
	require.Equal(t, []string{"sooner", "later", "new-dateless", "old-dateless"}, ids(tasks))
}

func TestSort_PendingTaskKeepsPosition(t *testing.T) {
	pendingTask := task("pending", "just completed", "2026-03-16", false, now)
	pendingTask.SetCompleted(true, now)

	tasks := []models.Task{
		pendingTask,
		task("open", "still open", "2026-03-18", false, now),
		task("done", "long done", "", true, now),
	}

	isPending := func(id string) bool { return id == "pending" }

	Sort(tasks, now, isPending)
	// The pending task sorts as if incomplete: due-date ascending
	// keeps it ahead of the later open task, and only the other
	// completed task sinks.
	require.Equal(t, []string{"pending", "open", "done"}, ids(tasks))

	// Once the grace window elapses the normal rule takes over.
	Sort(tasks, now, nil)
	require.Equal(t, []string{"open", "pending", "done"}, ids(tasks))
}

func TestSort_PendingOverdueTaskKeepsPosition(t *testing.T) {
	pendingTask := task("a", "was overdue", "2026-03-10", false, now)
	pendingTask.SetCompleted(true, now)

	tasks := []models.Task{
		pendingTask,
		task("c", "also overdue", "2026-03-14", false, now),
		task("d", "due tomorrow", "2026-03-16", false, now),
	}

	isPending := func(id string) bool { return id == "a" }

	// The task was at the head of the overdue group before completion
	// and stays there while the grace window is open.
	Sort(tasks, now, isPending)
	require.Equal(t, []string{"a", "c", "d"}, ids(tasks))

	// After the window it sinks like any completed task.
	Sort(tasks, now, nil)
	require.Equal(t, []string{"c", "d", "a"}, ids(tasks))
}

func TestSort_OverduePairInvariant(t *testing.T) {
	tasks := []models.Task{
		task("b", "not overdue", "2026-03-17", false, now),
		task("done", "completed", "2026-03-01", true, now),
		task("a", "overdue", "2026-03-10", false, now),
	}

	Sort(tasks, now, nil)

	pos := make(map[string]int, len(tasks))
	for i, tk := range tasks {
		pos[tk.ID] = i
	}
	require.Less(t, pos["a"], pos["b"])
	require.Less(t, pos["a"], pos["done"])
}

func TestSort_Stable(t *testing.T) {
	created := now.Add(-time.Hour)
	tasks := []models.Task{
		task("first", "tie one", "2026-03-16", false, created),
		task("second", "tie two", "2026-03-16", false, created),
	}

	Sort(tasks, now, nil)
	require.Equal(t, []string{"first", "second"}, ids(tasks))
}
