package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Nifargo/todo-app-server/internal/models"
	"github.com/Nifargo/todo-app-server/internal/tasklist"
)

// Store holds one task collection per guest id, serialized as JSON.
type Store struct {
	logger zerolog.Logger
	kv     KV
}

func NewStore(logger zerolog.Logger, kv KV) *Store {
	return &Store{
		logger: logger,
		kv:     kv,
	}
}

func tasksKey(guestID string) string {
	return "guest:" + guestID + ":tasks"
}

// Tasks loads a guest's collection. A guest that has never saved
// anything gets an empty collection, not an error.
func (s *Store) Tasks(ctx context.Context, guestID string) ([]models.Task, error) {
	raw, err := s.kv.Get(ctx, tasksKey(guestID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return []models.Task{}, nil
		}
		s.logger.Error().
			Err(err).
			Str("guest_id", guestID).
			Msg("failed to load guest tasks")
		return nil, err
	}

	var tasks []models.Task
	err = json.Unmarshal([]byte(raw), &tasks)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("guest_id", guestID).
			Msg("failed to decode guest tasks")
		return nil, fmt.Errorf("failed to decode guest tasks: %w", err)
	}
	return tasks, nil
}

// SaveTasks overwrites a guest's collection.
func (s *Store) SaveTasks(ctx context.Context, guestID string, tasks []models.Task) error {
	raw, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("failed to encode guest tasks: %w", err)
	}

	err = s.kv.Set(ctx, tasksKey(guestID), string(raw))
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("guest_id", guestID).
			Msg("failed to save guest tasks")
		return err
	}
	s.logger.Debug().
		Str("guest_id", guestID).
		Int("count", len(tasks)).
		Msg("saved guest tasks")
	return nil
}

// MergeRemote reconciles a remote snapshot into the guest collection
// with last-write-wins and writes the result straight back.
func (s *Store) MergeRemote(ctx context.Context, guestID string, remote []models.Task) ([]models.Task, error) {
	local, err := s.Tasks(ctx, guestID)
	if err != nil {
		return nil, err
	}

	merged := tasklist.Merge(local, remote)
	err = s.SaveTasks(ctx, guestID, merged)
	if err != nil {
		return nil, err
	}
	return merged, nil
}
