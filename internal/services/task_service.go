package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/Nifargo/todo-app-server/internal/models"
	"github.com/Nifargo/todo-app-server/internal/tasklist"
)

type taskServiceImpl struct {
	logger zerolog.Logger
	pgPool *pgxpool.Pool
}

func NewTaskService(
	logger zerolog.Logger,
	pgPool *pgxpool.Pool,
) TaskService {
	return &taskServiceImpl{
		logger: logger,
		pgPool: pgPool,
	}
}

const taskColumns = `id,
       user_id,
       text,
       completed,
       completed_at,
       created_at,
       due_date,
       subtasks,
       synced_at,
       last_notification_date`

type taskRow struct {
	dueDate              *time.Time
	subtasksRaw          []byte
	lastNotificationDate *time.Time
}

func (r *taskRow) dest(task *models.Task) []any {
	return []any{
		&task.ID,
		&task.UserID,
		&task.Text,
		&task.Completed,
		&task.CompletedAt,
		&task.CreatedAt,
		&r.dueDate,
		&r.subtasksRaw,
		&task.SyncedAt,
		&r.lastNotificationDate,
	}
}

func (r *taskRow) apply(task *models.Task) error {
	if r.dueDate != nil {
		task.DueDate = r.dueDate.Format(tasklist.DateLayout)
	}
	if r.lastNotificationDate != nil {
		task.LastNotificationDate = r.lastNotificationDate.Format(tasklist.DateLayout)
	}
	if len(r.subtasksRaw) > 0 {
		err := json.Unmarshal(r.subtasksRaw, &task.Subtasks)
		if err != nil {
			return fmt.Errorf("failed to decode subtasks: %w", err)
		}
	}
	return nil
}

// parseDate validates a "2006-01-02" string. Empty means no deadline.
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(tasklist.DateLayout, s)
	if err != nil {
		return nil, ErrInvalidDueDate
	}
	return &t, nil
}

func subtasksJSON(subtasks []models.Subtask) ([]byte, error) {
	if subtasks == nil {
		subtasks = []models.Subtask{}
	}
	return json.Marshal(subtasks)
}

func (s *taskServiceImpl) CreateTask(ctx context.Context, params CreateTaskParams) (*models.Task, error) {
	if strings.TrimSpace(params.Text) == "" {
		return nil, ErrEmptyTaskText
	}

	dueDate, err := parseDate(params.DueDate)
	if err != nil {
		s.logger.Error().
			Str("due_date", params.DueDate).
			Msg("invalid due date")
		return nil, err
	}

	taskUUID, err := uuid.NewV7()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to generate task uuid")
		return nil, err
	}

	task := &models.Task{
		ID:        taskUUID.String(),
		UserID:    params.UserID,
		Text:      params.Text,
		DueDate:   params.DueDate,
		Subtasks:  params.Subtasks,
		CreatedAt: time.Now(),
	}

	subtasksRaw, err := subtasksJSON(task.Subtasks)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to encode subtasks")
		return nil, err
	}

	const insertTaskQuery = `
INSERT INTO tasks (id,
                   user_id,
                   text,
                   completed,
                   due_date,
                   subtasks,
                   created_at)
VALUES ($1, $2, $3, FALSE, $4, $5, $6)
`
	_, err = s.pgPool.Exec(
		ctx,
		insertTaskQuery,
		task.ID,
		task.UserID,
		task.Text,
		dueDate,
		subtasksRaw,
		task.CreatedAt,
	)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to insert task")
		return nil, err
	}
	s.logger.Debug().
		Str("task_id", task.ID).
		Msg("inserted task")

	s.logger.Info().
		Str("task_id", task.ID).
		Str("user_id", task.UserID).
		Msg("created task")
	return task, nil
}

func (s *taskServiceImpl) GetTasksByUserID(ctx context.Context, userID string) ([]models.Task, error) {
	const selectTasksByUserIDQuery = `
SELECT ` + taskColumns + `
FROM tasks
WHERE user_id = $1
ORDER BY created_at DESC
`
	rows, err := s.pgPool.Query(
		ctx,
		selectTasksByUserIDQuery,
		userID,
	)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("user_id", userID).
			Msg("failed to select tasks by user id")
		return nil, err
	}
	defer rows.Close()

	tasks, err := collectTasks(rows)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("user_id", userID).
			Msg("failed to scan tasks")
		return nil, err
	}
	s.logger.Debug().
		Int("count", len(tasks)).
		Str("user_id", userID).
		Msg("selected tasks by user id")
	return tasks, nil
}

func collectTasks(rows pgx.Rows) ([]models.Task, error) {
	tasks := make([]models.Task, 0, 32)
	for rows.Next() {
		var (
			task models.Task
			row  taskRow
		)
		err := rows.Scan(row.dest(&task)...)
		if err != nil {
			return nil, err
		}
		err = row.apply(&task)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func (s *taskServiceImpl) getTask(ctx context.Context, q interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}, userID, taskID string,
) (*models.Task, error) {
	const selectTaskQuery = `
SELECT ` + taskColumns + `
FROM tasks
WHERE id = $1 AND user_id = $2
`
	var (
		task models.Task
		row  taskRow
	)
	err := q.QueryRow(
		ctx,
		selectTaskQuery,
		taskID,
		userID,
	).Scan(row.dest(&task)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}

	err = row.apply(&task)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *taskServiceImpl) UpdateTask(ctx context.Context, params UpdateTaskParams) (*models.Task, error) {
	task, err := s.getTask(ctx, s.pgPool, params.UserID, params.ID)
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			s.logger.Error().
				Str("task_id", params.ID).
				Str("user_id", params.UserID).
				Msg("task not found")
			return nil, err
		}
		s.logger.Error().
			Err(err).
			Str("task_id", params.ID).
			Msg("failed to select task")
		return nil, err
	}

	if params.Text != nil {
		if strings.TrimSpace(*params.Text) == "" {
			return nil, ErrEmptyTaskText
		}
		task.Text = *params.Text
	}
	if params.DueDate != nil {
		_, err = parseDate(*params.DueDate)
		if err != nil {
			return nil, err
		}
		task.DueDate = *params.DueDate
	}
	if params.Subtasks != nil {
		task.Subtasks = *params.Subtasks
	}

	err = s.storeTaskFields(ctx, task)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("task_id", task.ID).
			Msg("failed to update task")
		return nil, err
	}

	s.logger.Info().
		Str("task_id", task.ID).
		Str("user_id", task.UserID).
		Msg("updated task")
	return task, nil
}

func (s *taskServiceImpl) storeTaskFields(ctx context.Context, task *models.Task) error {
	dueDate, err := parseDate(task.DueDate)
	if err != nil {
		return err
	}
	subtasksRaw, err := subtasksJSON(task.Subtasks)
	if err != nil {
		return err
	}

	const updateTaskQuery = `
UPDATE tasks
SET text = $1,
    due_date = $2,
    subtasks = $3
WHERE id = $4 AND user_id = $5
`
	_, err = s.pgPool.Exec(
		ctx,
		updateTaskQuery,
		task.Text,
		dueDate,
		subtasksRaw,
		task.ID,
		task.UserID,
	)
	return err
}

func (s *taskServiceImpl) SetTaskCompleted(ctx context.Context, userID, taskID string, completed bool) (*models.Task, error) {
	task := &models.Task{
		ID:     taskID,
		UserID: userID,
	}
	task.SetCompleted(completed, time.Now())

	const updateTaskCompletedQuery = `
UPDATE tasks
SET completed = $1,
    completed_at = $2
WHERE id = $3 AND user_id = $4
RETURNING text, created_at, due_date, subtasks, synced_at, last_notification_date
`
	var row taskRow
	err := s.pgPool.QueryRow(
		ctx,
		updateTaskCompletedQuery,
		task.Completed,
		task.CompletedAt,
		task.ID,
		task.UserID,
	).Scan(
		&task.Text,
		&task.CreatedAt,
		&row.dueDate,
		&row.subtasksRaw,
		&task.SyncedAt,
		&row.lastNotificationDate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Error().
				Str("task_id", taskID).
				Str("user_id", userID).
				Msg("task not found")
			return nil, ErrTaskNotFound
		}

		s.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to update task completion")
		return nil, err
	}

	err = row.apply(task)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("task_id", task.ID).
		Str("user_id", task.UserID).
		Bool("completed", task.Completed).
		Msg("updated task completion")
	return task, nil
}

func (s *taskServiceImpl) ToggleSubtask(ctx context.Context, userID, taskID, subtaskID string) (*models.Task, error) {
	tx, err := s.pgPool.Begin(ctx)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to begin transaction")
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const selectSubtasksQuery = `
SELECT subtasks
FROM tasks
WHERE id = $1 AND user_id = $2
FOR UPDATE
`
	var subtasksRaw []byte
	err = tx.QueryRow(
		ctx,
		selectSubtasksQuery,
		taskID,
		userID,
	).Scan(&subtasksRaw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Error().
				Str("task_id", taskID).
				Str("user_id", userID).
				Msg("task not found")
			return nil, ErrTaskNotFound
		}

		s.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to select subtasks")
		return nil, err
	}

	var subtasks []models.Subtask
	if len(subtasksRaw) > 0 {
		err = json.Unmarshal(subtasksRaw, &subtasks)
		if err != nil {
			s.logger.Error().
				Err(err).
				Str("task_id", taskID).
				Msg("failed to decode subtasks")
			return nil, err
		}
	}

	found := false
	for i := range subtasks {
		if subtasks[i].ID == subtaskID {
			subtasks[i].Completed = !subtasks[i].Completed
			found = true
			break
		}
	}
	if !found {
		s.logger.Error().
			Str("task_id", taskID).
			Str("subtask_id", subtaskID).
			Msg("subtask not found")
		return nil, ErrSubtaskNotFound
	}

	subtasksRaw, err = subtasksJSON(subtasks)
	if err != nil {
		return nil, err
	}

	const updateSubtasksQuery = `
UPDATE tasks
SET subtasks = $1
WHERE id = $2 AND user_id = $3
`
	_, err = tx.Exec(
		ctx,
		updateSubtasksQuery,
		subtasksRaw,
		taskID,
		userID,
	)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to update subtasks")
		return nil, err
	}

	task, err := s.getTask(ctx, tx, userID, taskID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to reload task")
		return nil, err
	}

	err = tx.Commit(ctx)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to commit transaction")
		return nil, err
	}

	s.logger.Info().
		Str("task_id", taskID).
		Str("subtask_id", subtaskID).
		Msg("toggled subtask")
	return task, nil
}

func (s *taskServiceImpl) DeleteTask(ctx context.Context, userID, taskID string) error {
	tx, err := s.pgPool.Begin(ctx)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to begin transaction")
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const deleteTaskQuery = `
DELETE FROM tasks
WHERE id = $1 AND user_id = $2
`
	tag, err := tx.Exec(
		ctx,
		deleteTaskQuery,
		taskID,
		userID,
	)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to delete task")
		return err
	}
	if tag.RowsAffected() == 0 {
		s.logger.Error().
			Str("task_id", taskID).
			Str("user_id", userID).
			Msg("task not found")
		return ErrTaskNotFound
	}

	const insertTombstoneQuery = `
INSERT INTO task_tombstones (task_id, user_id, deleted_at)
VALUES ($1, $2, $3)
ON CONFLICT (task_id) DO UPDATE SET deleted_at = EXCLUDED.deleted_at
`
	_, err = tx.Exec(
		ctx,
		insertTombstoneQuery,
		taskID,
		userID,
		time.Now(),
	)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to insert tombstone")
		return err
	}

	err = tx.Commit(ctx)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to commit transaction")
		return err
	}

	s.logger.Info().
		Str("task_id", taskID).
		Str("user_id", userID).
		Msg("deleted task")
	return nil
}

func (s *taskServiceImpl) SyncTasks(ctx context.Context, userID string, clientTasks []models.Task) ([]models.Task, error) {
	serverTasks, err := s.GetTasksByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	const selectTombstonesQuery = `
SELECT task_id, deleted_at
FROM task_tombstones
WHERE user_id = $1
`
	rows, err := s.pgPool.Query(
		ctx,
		selectTombstonesQuery,
		userID,
	)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("user_id", userID).
			Msg("failed to select tombstones")
		return nil, err
	}
	defer rows.Close()

	var tombstones []models.Tombstone
	for rows.Next() {
		ts := models.Tombstone{UserID: userID}
		err = rows.Scan(&ts.TaskID, &ts.DeletedAt)
		if err != nil {
			s.logger.Error().
				Err(err).
				Msg("failed to scan tombstone")
			return nil, err
		}
		tombstones = append(tombstones, ts)
	}
	err = rows.Err()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to iterate over tombstones")
		return nil, err
	}

	merged := tasklist.MergeWithTombstones(clientTasks, serverTasks, tombstones)

	tx, err := s.pgPool.Begin(ctx)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to begin transaction")
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const upsertTaskQuery = `
INSERT INTO tasks (id,
                   user_id,
                   text,
                   completed,
                   completed_at,
                   due_date,
                   subtasks,
                   synced_at,
                   created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE
SET text = EXCLUDED.text,
    completed = EXCLUDED.completed,
    completed_at = EXCLUDED.completed_at,
    due_date = EXCLUDED.due_date,
    subtasks = EXCLUDED.subtasks,
    synced_at = EXCLUDED.synced_at
`
	now := time.Now()
	for i := range merged {
		task := &merged[i]
		task.UserID = userID
		task.SyncedAt = &now

		dueDate, err := parseDate(task.DueDate)
		if err != nil {
			s.logger.Error().
				Str("task_id", task.ID).
				Str("due_date", task.DueDate).
				Msg("invalid due date in snapshot")
			return nil, err
		}
		subtasksRaw, err := subtasksJSON(task.Subtasks)
		if err != nil {
			return nil, err
		}
		if task.CreatedAt.IsZero() {
			task.CreatedAt = now
		}

		_, err = tx.Exec(
			ctx,
			upsertTaskQuery,
			task.ID,
			task.UserID,
			task.Text,
			task.Completed,
			task.CompletedAt,
			dueDate,
			subtasksRaw,
			task.SyncedAt,
			task.CreatedAt,
		)
		if err != nil {
			s.logger.Error().
				Err(err).
				Str("task_id", task.ID).
				Msg("failed to upsert task")
			return nil, err
		}
	}

	err = tx.Commit(ctx)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to commit transaction")
		return nil, err
	}

	s.logger.Info().
		Str("user_id", userID).
		Int("client", len(clientTasks)).
		Int("server", len(serverTasks)).
		Int("merged", len(merged)).
		Msg("synced tasks")
	return merged, nil
}

func (s *taskServiceImpl) GetOpenTasks(ctx context.Context) ([]models.Task, error) {
	const selectOpenTasksQuery = `
SELECT ` + taskColumns + `
FROM tasks
WHERE completed = FALSE AND due_date IS NOT NULL
ORDER BY user_id, due_date
`
	rows, err := s.pgPool.Query(ctx, selectOpenTasksQuery)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to select open tasks")
		return nil, err
	}
	defer rows.Close()

	tasks, err := collectTasks(rows)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to scan open tasks")
		return nil, err
	}
	s.logger.Debug().
		Int("count", len(tasks)).
		Msg("selected open tasks")
	return tasks, nil
}

func (s *taskServiceImpl) StampNotified(ctx context.Context, userID string, taskIDs []string, date string) error {
	if len(taskIDs) == 0 {
		return nil
	}

	stamp, err := parseDate(date)
	if err != nil {
		return err
	}

	const stampNotifiedQuery = `
UPDATE tasks
SET last_notification_date = $1
WHERE user_id = $2 AND id = ANY($3)
`
	tag, err := s.pgPool.Exec(
		ctx,
		stampNotifiedQuery,
		stamp,
		userID,
		taskIDs,
	)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("user_id", userID).
			Msg("failed to stamp notified tasks")
		return err
	}
	s.logger.Debug().
		Str("user_id", userID).
		Str("date", date).
		Int64("affected", tag.RowsAffected()).
		Msg("stamped notified tasks")
	return nil
}

func (s *taskServiceImpl) PurgeCompleted(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	const purgeCompletedQuery = `
DELETE FROM tasks
WHERE completed = TRUE AND completed_at < $1
`
	tag, err := s.pgPool.Exec(
		ctx,
		purgeCompletedQuery,
		cutoff,
	)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to purge completed tasks")
		return 0, err
	}

	purged := tag.RowsAffected()
	if purged > 0 {
		s.logger.Info().
			Int64("count", purged).
			Time("cutoff", cutoff).
			Msg("purged completed tasks")
	}
	return purged, nil
}

func (s *taskServiceImpl) WatchTasks(ctx context.Context, userID string, fn func(event TaskEvent)) error {
	conn, err := s.pgPool.Acquire(ctx)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to acquire connection")
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, "LISTEN task_events")
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to listen for task events")
		return err
	}

	s.logger.Debug().
		Str("user_id", userID).
		Msg("watching tasks")

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				// Normal teardown: the caller unsubscribed.
				return nil
			}
			s.logger.Error().
				Err(err).
				Msg("failed to wait for notification")
			return err
		}

		var event TaskEvent
		err = json.Unmarshal([]byte(notification.Payload), &event)
		if err != nil {
			s.logger.Error().
				Err(err).
				Str("payload", notification.Payload).
				Msg("failed to decode task event")
			continue
		}
		if event.UserID != userID {
			continue
		}
		fn(event)
	}
}
