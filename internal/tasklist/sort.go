package tasklist

import (
	"sort"
	"time"

	"github.com/Nifargo/todo-app-server/internal/models"
)

// Sort orders tasks in place with the display ordering:
//
//  1. incomplete before completed, except that a task inside the
//     completion grace window keeps sorting as if still incomplete;
//  2. among incomplete tasks, overdue before non-overdue;
//  3. tasks with a due date before tasks without one;
//  4. due date ascending when both have one;
//  5. creation time descending as the final tie-break.
//
// The sort is stable, so tasks tied on every key keep their input order.
func Sort(tasks []models.Task, now time.Time, isPending func(id string) bool) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return less(tasks[i], tasks[j], now, isPending)
	})
}

func less(a, b models.Task, now time.Time, isPending func(id string) bool) bool {
	doneA := sinksToBottom(a, isPending)
	doneB := sinksToBottom(b, isPending)
	if doneA != doneB {
		return !doneA
	}

	// Overdue follows the sink state, not the raw completion flag, so
	// a pending task stays in the overdue group it occupied before it
	// was completed.
	today := Date(now)
	overdueA := !doneA && a.DueDate != "" && a.DueDate < today
	overdueB := !doneB && b.DueDate != "" && b.DueDate < today
	if overdueA != overdueB {
		return overdueA
	}

	hasDueA := a.DueDate != ""
	hasDueB := b.DueDate != ""
	if hasDueA != hasDueB {
		return hasDueA
	}
	if hasDueA && hasDueB && a.DueDate != b.DueDate {
		return a.DueDate < b.DueDate
	}

	return a.CreatedAt.After(b.CreatedAt)
}

// sinksToBottom reports whether the completed-to-bottom rule applies.
// Presentation diverges from persisted state only here: a completed
// task still inside the grace window stays in its old position.
func sinksToBottom(t models.Task, isPending func(id string) bool) bool {
	if !t.Completed {
		return false
	}
	return isPending == nil || !isPending(t.ID)
}
