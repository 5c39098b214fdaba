package v1

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Nifargo/todo-app-server/internal/models"
	"github.com/Nifargo/todo-app-server/internal/services"
	"github.com/Nifargo/todo-app-server/internal/tasklist"
)

type taskResponse struct {
	ID                string           `json:"id"`
	Text              string           `json:"text"`
	Completed         bool             `json:"completed"`
	CompletedAt       *time.Time       `json:"completed_at,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	DueDate           string           `json:"due_date,omitempty"`
	Subtasks          []models.Subtask `json:"subtasks,omitempty"`
	SyncedAt          *time.Time       `json:"synced_at,omitempty"`
	Overdue           bool             `json:"overdue"`
	Pending           bool             `json:"pending,omitempty"`
	CompletedSubtasks int              `json:"completed_subtasks"`
	TotalSubtasks     int              `json:"total_subtasks"`
}

func (h *handlerImpl) newTaskResponse(task *models.Task, now time.Time) taskResponse {
	done, total := task.Progress()
	return taskResponse{
		ID:                task.ID,
		Text:              task.Text,
		Completed:         task.Completed,
		CompletedAt:       task.CompletedAt,
		CreatedAt:         task.CreatedAt,
		DueDate:           task.DueDate,
		Subtasks:          task.Subtasks,
		SyncedAt:          task.SyncedAt,
		Overdue:           tasklist.Overdue(*task, now),
		Pending:           h.pending.Pending(task.ID),
		CompletedSubtasks: done,
		TotalSubtasks:     total,
	}
}

type subtaskPayload struct {
	ID        string `json:"id"`
	Text      string `json:"text" binding:"required,max=255"`
	Completed bool   `json:"completed"`
}

func newSubtasks(payloads []subtaskPayload) []models.Subtask {
	if len(payloads) == 0 {
		return nil
	}
	subtasks := make([]models.Subtask, len(payloads))
	for i, p := range payloads {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		subtasks[i] = models.Subtask{
			ID:        p.ID,
			Text:      p.Text,
			Completed: p.Completed,
		}
	}
	return subtasks
}

type createTaskRequest struct {
	Text     string           `json:"text" binding:"required,max=1024"`
	DueDate  string           `json:"due_date,omitempty"`
	Subtasks []subtaskPayload `json:"subtasks,omitempty" binding:"omitempty,dive"`
}

func (h *handlerImpl) HandleCreateTask(c *gin.Context) {
	userID, ok := h.mustGetUserID(c)
	if !ok {
		return
	}

	var req createTaskRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind json")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	task, err := h.tasks.CreateTask(c, services.CreateTaskParams{
		UserID:   userID,
		Text:     req.Text,
		DueDate:  req.DueDate,
		Subtasks: newSubtasks(req.Subtasks),
	})
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to create task")
		switch {
		case errors.Is(err, services.ErrEmptyTaskText):
			abort(c, newBadRequestError(services.ErrEmptyTaskText.Error()))
		case errors.Is(err, services.ErrInvalidDueDate):
			abort(c, newBadRequestError(services.ErrInvalidDueDate.Error()))
		default:
			abort(c, newStatusTextError(http.StatusInternalServerError))
		}
		return
	}

	c.JSON(http.StatusCreated, h.newTaskResponse(task, time.Now()))
}

func (h *handlerImpl) HandleGetTasks(c *gin.Context) {
	userID, ok := h.mustGetUserID(c)
	if !ok {
		return
	}

	filter, err := tasklist.ParseFilter(c.Query("filter"))
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("invalid filter")
		abort(c, newBadRequestError(err.Error()))
		return
	}
	search := c.Query("search")

	tasks, err := h.tasks.GetTasksByUserID(c, userID)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to fetch tasks")
		abort(c, newStatusTextError(http.StatusInternalServerError))
		return
	}

	now := time.Now()
	visible := tasklist.Apply(tasks, filter, search, now, h.pending.Pending)

	response := make([]taskResponse, len(visible))
	for i := range visible {
		response[i] = h.newTaskResponse(&visible[i], now)
	}
	c.JSON(http.StatusOK, response)
}

type updateTaskRequest struct {
	Text     *string           `json:"text,omitempty" binding:"omitempty,max=1024"`
	DueDate  *string           `json:"due_date,omitempty"`
	Subtasks *[]subtaskPayload `json:"subtasks,omitempty" binding:"omitempty,dive"`
}

func (h *handlerImpl) HandleUpdateTask(c *gin.Context) {
	userID, ok := h.mustGetUserID(c)
	if !ok {
		return
	}

	taskID := c.Param("id")
	if taskID == "" {
		abort(c, newBadRequestError("no task id provided"))
		return
	}

	var req updateTaskRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind json")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	params := services.UpdateTaskParams{
		ID:      taskID,
		UserID:  userID,
		Text:    req.Text,
		DueDate: req.DueDate,
	}
	if req.Subtasks != nil {
		subtasks := newSubtasks(*req.Subtasks)
		params.Subtasks = &subtasks
	}

	task, err := h.tasks.UpdateTask(c, params)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to update task")
		switch {
		case errors.Is(err, services.ErrTaskNotFound):
			abort(c, newNotFoundError(services.ErrTaskNotFound.Error()))
		case errors.Is(err, services.ErrEmptyTaskText):
			abort(c, newBadRequestError(services.ErrEmptyTaskText.Error()))
		case errors.Is(err, services.ErrInvalidDueDate):
			abort(c, newBadRequestError(services.ErrInvalidDueDate.Error()))
		default:
			abort(c, newStatusTextError(http.StatusInternalServerError))
		}
		return
	}

	c.JSON(http.StatusOK, h.newTaskResponse(task, time.Now()))
}

type setTaskCompletedRequest struct {
	Completed *bool `json:"completed" binding:"required"`
}

func (h *handlerImpl) HandleSetTaskCompleted(c *gin.Context) {
	userID, ok := h.mustGetUserID(c)
	if !ok {
		return
	}

	taskID := c.Param("id")
	if taskID == "" {
		abort(c, newBadRequestError("no task id provided"))
		return
	}

	var req setTaskCompletedRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind json")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}
	completed := *req.Completed

	task, err := h.tasks.SetTaskCompleted(c, userID, taskID, completed)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to update task completion")
		switch {
		case errors.Is(err, services.ErrTaskNotFound):
			abort(c, newNotFoundError(services.ErrTaskNotFound.Error()))
		default:
			abort(c, newStatusTextError(http.StatusInternalServerError))
		}
		return
	}

	// Completing a task opens the undo grace window, during which it
	// keeps its list position; re-opening it closes any window.
	if completed {
		h.pending.Start(taskID)
	} else {
		h.pending.Cancel(taskID)
	}

	c.JSON(http.StatusOK, h.newTaskResponse(task, time.Now()))
}

func (h *handlerImpl) HandleUndoTaskCompletion(c *gin.Context) {
	userID, ok := h.mustGetUserID(c)
	if !ok {
		return
	}

	taskID := c.Param("id")
	if taskID == "" {
		abort(c, newBadRequestError("no task id provided"))
		return
	}

	if !h.pending.Pending(taskID) {
		h.logger.Warn().
			Str("task_id", taskID).
			Msg("no pending completion to undo")
		abort(c, newConflictError("no pending completion to undo"))
		return
	}

	// Ownership is checked by the store call; the window is only
	// consumed once the caller is confirmed as the task's owner.
	task, err := h.tasks.SetTaskCompleted(c, userID, taskID, false)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to undo task completion")
		switch {
		case errors.Is(err, services.ErrTaskNotFound):
			abort(c, newNotFoundError(services.ErrTaskNotFound.Error()))
		default:
			abort(c, newStatusTextError(http.StatusInternalServerError))
		}
		return
	}

	h.pending.Cancel(taskID)
	c.JSON(http.StatusOK, h.newTaskResponse(task, time.Now()))
}

func (h *handlerImpl) HandleToggleSubtask(c *gin.Context) {
	userID, ok := h.mustGetUserID(c)
	if !ok {
		return
	}

	taskID := c.Param("id")
	subtaskID := c.Param("subtaskId")
	if taskID == "" || subtaskID == "" {
		abort(c, newBadRequestError("no task or subtask id provided"))
		return
	}

	task, err := h.tasks.ToggleSubtask(c, userID, taskID, subtaskID)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to toggle subtask")
		switch {
		case errors.Is(err, services.ErrTaskNotFound):
			abort(c, newNotFoundError(services.ErrTaskNotFound.Error()))
		case errors.Is(err, services.ErrSubtaskNotFound):
			abort(c, newNotFoundError(services.ErrSubtaskNotFound.Error()))
		default:
			abort(c, newStatusTextError(http.StatusInternalServerError))
		}
		return
	}

	c.JSON(http.StatusOK, h.newTaskResponse(task, time.Now()))
}

func (h *handlerImpl) HandleDeleteTask(c *gin.Context) {
	userID, ok := h.mustGetUserID(c)
	if !ok {
		return
	}

	taskID := c.Param("id")
	if taskID == "" {
		abort(c, newBadRequestError("no task id provided"))
		return
	}

	err := h.tasks.DeleteTask(c, userID, taskID)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to delete task")
		switch {
		case errors.Is(err, services.ErrTaskNotFound):
			abort(c, newNotFoundError(services.ErrTaskNotFound.Error()))
		default:
			abort(c, newStatusTextError(http.StatusInternalServerError))
		}
		return
	}

	h.pending.Cancel(taskID)
	c.Status(http.StatusNoContent)
}

type syncTasksRequest struct {
	Tasks []models.Task `json:"tasks"`
}

func (h *handlerImpl) HandleSyncTasks(c *gin.Context) {
	userID, ok := h.mustGetUserID(c)
	if !ok {
		return
	}

	var req syncTasksRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind json")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	merged, err := h.tasks.SyncTasks(c, userID, req.Tasks)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to sync tasks")
		switch {
		case errors.Is(err, services.ErrInvalidDueDate):
			abort(c, newBadRequestError(services.ErrInvalidDueDate.Error()))
		default:
			abort(c, newStatusTextError(http.StatusInternalServerError))
		}
		return
	}

	now := time.Now()
	response := make([]taskResponse, len(merged))
	for i := range merged {
		response[i] = h.newTaskResponse(&merged[i], now)
	}
	c.JSON(http.StatusOK, response)
}

// HandleWatchTasks streams live task change events over SSE until the
// client disconnects.
func (h *handlerImpl) HandleWatchTasks(c *gin.Context) {
	userID, ok := h.mustGetUserID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	events := make(chan services.TaskEvent, 16)

	go func() {
		err := h.tasks.WatchTasks(ctx, userID, func(event services.TaskEvent) {
			select {
			case events <- event:
			case <-ctx.Done():
			}
		})
		if err != nil {
			h.logger.Error().
				Err(err).
				Str("user_id", userID).
				Msg("task watch ended")
		}
		close(events)
	}()

	c.Stream(func(io.Writer) bool {
		select {
		case event, open := <-events:
			if !open {
				return false
			}
			c.SSEvent("task", event)
			return true
		case <-ctx.Done():
			return false
		}
	})
}
