package tasklist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Nifargo/todo-app-server/internal/models"
)

func synced(t models.Task, at time.Time) models.Task {
	t.SyncedAt = &at
	return t
}

func TestMerge_LastWriteWins(t *testing.T) {
	t1 := now.Add(-time.Hour)
	t2 := now

	local := []models.Task{synced(task("a", "local edit", "", false, now), t1)}

	t.Run("remote newer wins", func(t *testing.T) {
		remote := []models.Task{synced(task("a", "remote edit", "", false, now), t2)}
		merged := Merge(local, remote)
		require.Len(t, merged, 1)
		require.Equal(t, "remote edit", merged[0].Text)
	})

	t.Run("remote older loses", func(t *testing.T) {
		remote := []models.Task{synced(task("a", "remote edit", "", false, now), t1.Add(-time.Minute))}
		merged := Merge(local, remote)
		require.Equal(t, "local edit", merged[0].Text)
	})

	t.Run("equal timestamps keep local", func(t *testing.T) {
		remote := []models.Task{synced(task("a", "remote edit", "", false, now), t1)}
		merged := Merge(local, remote)
		require.Equal(t, "local edit", merged[0].Text)
	})
}

func TestMerge_NilSyncedAtIsEpoch(t *testing.T) {
	local := []models.Task{task("a", "never synced", "", false, now)}
	remote := []models.Task{synced(task("a", "synced once", "", false, now), now)}

	merged := Merge(local, remote)
	require.Equal(t, "synced once", merged[0].Text)

	// Both unsynced: local stays.
	merged = Merge(local, []models.Task{task("a", "also never synced", "", false, now)})
	require.Equal(t, "never synced", merged[0].Text)
}

func TestMerge_RemoteOnlyAppended(t *testing.T) {
	local := []models.Task{task("a", "mine", "", false, now)}
	remote := []models.Task{
		task("b", "from another device", "", false, now),
		task("a", "mine too", "", false, now),
	}

	merged := Merge(local, remote)
	require.Equal(t, []string{"a", "b"}, ids(merged))
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	local := []models.Task{synced(task("a", "local", "", false, now), now.Add(-time.Hour))}
	remote := []models.Task{
		synced(task("a", "remote", "", false, now), now),
		task("b", "new", "", false, now),
	}

	Merge(local, remote)
	require.Equal(t, "local", local[0].Text)
	require.Len(t, local, 1)
}

func TestMergeWithTombstones_SuppressesResurrection(t *testing.T) {
	deletedAt := now
	staleSync := now.Add(-time.Hour)

	local := []models.Task{task("keep", "still here", "", false, now)}
	remote := []models.Task{
		synced(task("deleted", "zombie", "", false, now), staleSync),
		task("keep", "still here", "", false, now),
	}
	tombs := []models.Tombstone{{TaskID: "deleted", DeletedAt: deletedAt}}

	merged := MergeWithTombstones(local, remote, tombs)
	require.Equal(t, []string{"keep"}, ids(merged))
}

func TestMergeWithTombstones_NewerEditBeatsDelete(t *testing.T) {
	deletedAt := now.Add(-time.Hour)

	remote := []models.Task{synced(task("a", "edited after delete", "", false, now), now)}
	tombs := []models.Tombstone{{TaskID: "a", DeletedAt: deletedAt}}

	merged := MergeWithTombstones(nil, remote, tombs)
	require.Equal(t, []string{"a"}, ids(merged))
}
