package tasklist

import (
	"time"

	"github.com/Nifargo/todo-app-server/internal/models"
)

// Merge reconciles a remote snapshot into the local collection, keyed
// by task id. A remote task replaces its local counterpart only when
// its SyncedAt is strictly greater; remote-only tasks are appended.
// Resolution is whole-record and silent: concurrent edits to different
// fields on two devices lose one of the edits entirely.
//
// Neither input is mutated.
func Merge(local, remote []models.Task) []models.Task {
	merged := make([]models.Task, len(local))
	copy(merged, local)

	index := make(map[string]int, len(merged))
	for i, t := range merged {
		index[t.ID] = i
	}

	for _, rt := range remote {
		i, ok := index[rt.ID]
		if !ok {
			index[rt.ID] = len(merged)
			merged = append(merged, rt)
			continue
		}
		if syncedAt(rt).After(syncedAt(merged[i])) {
			merged[i] = rt
		}
	}
	return merged
}

// MergeWithTombstones merges like Merge but drops, from both sides,
// any task whose id carries a tombstone newer than the task's own
// SyncedAt. This keeps a delete on one device from being undone by a
// stale snapshot from another, while still letting a genuinely newer
// edit win over the delete.
func MergeWithTombstones(local, remote []models.Task, tombstones []models.Tombstone) []models.Task {
	if len(tombstones) == 0 {
		return Merge(local, remote)
	}

	deleted := make(map[string]time.Time, len(tombstones))
	for _, ts := range tombstones {
		if prev, ok := deleted[ts.TaskID]; !ok || ts.DeletedAt.After(prev) {
			deleted[ts.TaskID] = ts.DeletedAt
		}
	}

	keep := func(t models.Task) bool {
		at, ok := deleted[t.ID]
		return !ok || syncedAt(t).After(at)
	}

	live := func(tasks []models.Task) []models.Task {
		out := make([]models.Task, 0, len(tasks))
		for _, t := range tasks {
			if keep(t) {
				out = append(out, t)
			}
		}
		return out
	}

	return Merge(live(local), live(remote))
}

func syncedAt(t models.Task) time.Time {
	if t.SyncedAt == nil {
		return time.Time{}
	}
	return *t.SyncedAt
}
