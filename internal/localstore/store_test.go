package localstore

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Nifargo/todo-app-server/internal/models"
)

func newTestStore() *Store {
	return NewStore(zerolog.Nop(), NewMemoryKV())
}

func TestStore_EmptyGuestHasNoTasks(t *testing.T) {
	s := newTestStore()

	tasks, err := s.Tasks(context.Background(), "g1")
	require.NoError(t, err)
	require.Empty(t, tasks)
}

func TestStore_SaveAndLoadRoundTrip(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	created := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	in := []models.Task{
		{
			ID:        "t1",
			Text:      "buy milk",
			DueDate:   "2026-03-16",
			CreatedAt: created,
			Subtasks: []models.Subtask{
				{ID: "s1", Text: "check fridge", Completed: true},
			},
		},
	}

	require.NoError(t, s.SaveTasks(ctx, "g1", in))

	out, err := s.Tasks(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "buy milk", out[0].Text)
	require.Equal(t, "2026-03-16", out[0].DueDate)
	require.True(t, out[0].CreatedAt.Equal(created))
	require.Len(t, out[0].Subtasks, 1)

	// Collections are isolated per guest.
	other, err := s.Tasks(ctx, "g2")
	require.NoError(t, err)
	require.Empty(t, other)
}

func TestStore_MergeRemoteWritesThrough(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	older := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	require.NoError(t, s.SaveTasks(ctx, "g1", []models.Task{
		{ID: "t1", Text: "local edit", SyncedAt: &older},
	}))

	merged, err := s.MergeRemote(ctx, "g1", []models.Task{
		{ID: "t1", Text: "remote edit", SyncedAt: &newer},
		{ID: "t2", Text: "remote only"},
	})
	require.NoError(t, err)
	require.Len(t, merged, 2)
	require.Equal(t, "remote edit", merged[0].Text)

	// The merge result was persisted, not just returned.
	reloaded, err := s.Tasks(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, reloaded, 2)
	require.Equal(t, "remote edit", reloaded[0].Text)
	require.Equal(t, "remote only", reloaded[1].Text)
	require.True(t, reloaded[0].SyncedAt.Equal(newer))
}
