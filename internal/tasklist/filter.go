// Package tasklist implements the view projection and reconciliation
// rules for a user's task collection: filtering by due-date windows,
// search, deterministic multi-key ordering and last-write-wins merging
// of snapshots coming from other devices.
package tasklist

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Nifargo/todo-app-server/internal/models"
)

// DateLayout is the calendar-date form used for due dates and
// notification stamps. ISO dates compare correctly as strings.
const DateLayout = "2006-01-02"

// SearchMinLength is the minimum search string length, in characters,
// that narrows the list. Shorter strings impose no filtering.
const SearchMinLength = 3

type Filter string

const (
	FilterAll       Filter = "all"
	FilterToday     Filter = "today"
	FilterMonth     Filter = "month"
	FilterCompleted Filter = "completed"
)

// ParseFilter maps a query-string value onto a Filter.
// An empty value means FilterAll.
func ParseFilter(s string) (Filter, error) {
	switch Filter(s) {
	case "":
		return FilterAll, nil
	case FilterAll, FilterToday, FilterMonth, FilterCompleted:
		return Filter(s), nil
	}
	return "", fmt.Errorf("unknown filter: %q", s)
}

// Date formats the calendar date of t.
func Date(t time.Time) string {
	return t.Format(DateLayout)
}

// endOfMonth returns the last calendar date of now's month.
// Day 0 of the next month normalizes to it.
func endOfMonth(now time.Time) string {
	last := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, now.Location())
	return last.Format(DateLayout)
}

// Overdue reports whether the task is incomplete and due strictly
// before the calendar date of now. A task without a due date is
// never overdue.
func Overdue(t models.Task, now time.Time) bool {
	return t.DueDate != "" && !t.Completed && t.DueDate < Date(now)
}

// matches applies the filter-mode predicate alone. The today and month
// windows are date-only: a completed task due today still matches them,
// and only the completed-sinks-to-bottom ordering applies.
func matches(t models.Task, filter Filter, today, monthEnd string) bool {
	switch filter {
	case FilterToday:
		return t.DueDate == today
	case FilterMonth:
		return t.DueDate != "" && t.DueDate >= today && t.DueDate <= monthEnd
	case FilterCompleted:
		return t.Completed
	}
	return true
}

// Apply projects the full collection into the subset and order for the
// active view. The input is never mutated; the same input always yields
// the same output. isPending reports whether a task is inside the
// completion grace window and may be nil.
func Apply(tasks []models.Task, filter Filter, search string, now time.Time, isPending func(id string) bool) []models.Task {
	today := Date(now)
	monthEnd := endOfMonth(now)

	search = strings.ToLower(strings.TrimSpace(search))
	searching := utf8.RuneCountInString(search) >= SearchMinLength

	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if !matches(t, filter, today, monthEnd) {
			continue
		}
		if searching && !strings.Contains(strings.ToLower(t.Text), search) {
			continue
		}
		out = append(out, t)
	}

	Sort(out, now, isPending)
	return out
}
