package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Nifargo/todo-app-server/internal/localstore"
	"github.com/Nifargo/todo-app-server/internal/models"
	"github.com/Nifargo/todo-app-server/internal/pending"
	"github.com/Nifargo/todo-app-server/internal/services"
	"github.com/Nifargo/todo-app-server/internal/tasklist"
)

const testUserID = "user-1"

type taskServiceMock struct {
	mock.Mock
}

func (m *taskServiceMock) CreateTask(ctx context.Context, params services.CreateTaskParams) (*models.Task, error) {
	args := m.Called(ctx, params)

	var task *models.Task
	if value := args.Get(0); value != nil {
		task = value.(*models.Task)
	}
	return task, args.Error(1)
}

func (m *taskServiceMock) GetTasksByUserID(ctx context.Context, userID string) ([]models.Task, error) {
	args := m.Called(ctx, userID)

	var tasks []models.Task
	if value := args.Get(0); value != nil {
		tasks = value.([]models.Task)
	}
	return tasks, args.Error(1)
}

func (m *taskServiceMock) UpdateTask(ctx context.Context, params services.UpdateTaskParams) (*models.Task, error) {
	args := m.Called(ctx, params)

	var task *models.Task
	if value := args.Get(0); value != nil {
		task = value.(*models.Task)
	}
	return task, args.Error(1)
}

func (m *taskServiceMock) SetTaskCompleted(ctx context.Context, userID, taskID string, completed bool) (*models.Task, error) {
	args := m.Called(ctx, userID, taskID, completed)

	var task *models.Task
	if value := args.Get(0); value != nil {
		task = value.(*models.Task)
	}
	return task, args.Error(1)
}

func (m *taskServiceMock) ToggleSubtask(ctx context.Context, userID, taskID, subtaskID string) (*models.Task, error) {
	args := m.Called(ctx, userID, taskID, subtaskID)

	var task *models.Task
	if value := args.Get(0); value != nil {
		task = value.(*models.Task)
	}
	return task, args.Error(1)
}

func (m *taskServiceMock) DeleteTask(ctx context.Context, userID, taskID string) error {
	args := m.Called(ctx, userID, taskID)
	return args.Error(0)
}

func (m *taskServiceMock) SyncTasks(ctx context.Context, userID string, clientTasks []models.Task) ([]models.Task, error) {
	args := m.Called(ctx, userID, clientTasks)

	var tasks []models.Task
	if value := args.Get(0); value != nil {
		tasks = value.([]models.Task)
	}
	return tasks, args.Error(1)
}

func (m *taskServiceMock) GetOpenTasks(ctx context.Context) ([]models.Task, error) {
	args := m.Called(ctx)

	var tasks []models.Task
	if value := args.Get(0); value != nil {
		tasks = value.([]models.Task)
	}
	return tasks, args.Error(1)
}

func (m *taskServiceMock) StampNotified(ctx context.Context, userID string, taskIDs []string, date string) error {
	args := m.Called(ctx, userID, taskIDs, date)
	return args.Error(0)
}

func (m *taskServiceMock) PurgeCompleted(ctx context.Context, olderThan time.Duration) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

func (m *taskServiceMock) WatchTasks(ctx context.Context, userID string, fn func(event services.TaskEvent)) error {
	args := m.Called(ctx, userID, fn)
	return args.Error(0)
}

func newTestHandler(tasks services.TaskService) (*handlerImpl, *pending.Tracker) {
	tracker := pending.NewTracker(time.Minute, nil)
	h := &handlerImpl{
		logger:  zerolog.Nop(),
		tasks:   tasks,
		guest:   localstore.NewStore(zerolog.Nop(), localstore.NewMemoryKV()),
		pending: tracker,
	}
	return h, tracker
}

func authStub(c *gin.Context) {
	c.Set(userIDCtxKey, testUserID)
	c.Next()
}

func newTestRouter(h *handlerImpl) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	taskRouter := router.Group("/api/v1/tasks", authStub)
	taskRouter.GET("", h.HandleGetTasks)
	taskRouter.POST("", h.HandleCreateTask)
	taskRouter.POST("/sync", h.HandleSyncTasks)
	taskRouter.PATCH("/:id", h.HandleUpdateTask)
	taskRouter.PUT("/:id/completed", h.HandleSetTaskCompleted)
	taskRouter.POST("/:id/undo", h.HandleUndoTaskCompletion)
	taskRouter.PUT("/:id/subtasks/:subtaskId/toggle", h.HandleToggleSubtask)
	taskRouter.DELETE("/:id", h.HandleDeleteTask)

	guestRouter := router.Group("/api/v1/guest")
	guestRouter.GET("/tasks", h.HandleGetGuestTasks)
	guestRouter.PUT("/tasks", h.HandlePutGuestTasks)

	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleGetTasks_FiltersAndSorts(t *testing.T) {
	today := time.Now().Format(tasklist.DateLayout)
	yesterday := time.Now().AddDate(0, 0, -1).Format(tasklist.DateLayout)

	serviceMock := new(taskServiceMock)
	serviceMock.On("GetTasksByUserID", mock.Anything, testUserID).Return(
		[]models.Task{
			{ID: "a", UserID: testUserID, Text: "due today", DueDate: today},
			{ID: "b", UserID: testUserID, Text: "overdue", DueDate: yesterday},
			{ID: "c", UserID: testUserID, Text: "no due date"},
		},
		nil,
	).Once()

	h, tracker := newTestHandler(serviceMock)
	defer tracker.Stop()
	router := newTestRouter(h)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []taskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 3)

	// Overdue first, then dated, then undated.
	require.Equal(t, "b", got[0].ID)
	require.True(t, got[0].Overdue)
	require.Equal(t, "a", got[1].ID)
	require.Equal(t, "c", got[2].ID)
	serviceMock.AssertExpectations(t)
}

func TestHandleGetTasks_TodayFilter(t *testing.T) {
	today := time.Now().Format(tasklist.DateLayout)
	tomorrow := time.Now().AddDate(0, 0, 1).Format(tasklist.DateLayout)

	serviceMock := new(taskServiceMock)
	serviceMock.On("GetTasksByUserID", mock.Anything, testUserID).Return(
		[]models.Task{
			{ID: "a", UserID: testUserID, Text: "due today", DueDate: today},
			{ID: "b", UserID: testUserID, Text: "due tomorrow", DueDate: tomorrow},
		},
		nil,
	).Once()

	h, tracker := newTestHandler(serviceMock)
	defer tracker.Stop()
	router := newTestRouter(h)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/tasks?filter=today", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []taskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	require.Equal(t, "a", got[0].ID)
	serviceMock.AssertExpectations(t)
}

func TestHandleGetTasks_InvalidFilter(t *testing.T) {
	serviceMock := new(taskServiceMock)

	h, tracker := newTestHandler(serviceMock)
	defer tracker.Stop()
	router := newTestRouter(h)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/tasks?filter=bogus", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	serviceMock.AssertExpectations(t)
}

func TestHandleCreateTask_Success(t *testing.T) {
	created := &models.Task{
		ID:        "task-1",
		UserID:    testUserID,
		Text:      "write report",
		CreatedAt: time.Now(),
	}

	serviceMock := new(taskServiceMock)
	serviceMock.On("CreateTask", mock.Anything, mock.MatchedBy(func(params services.CreateTaskParams) bool {
		return params.UserID == testUserID && params.Text == "write report"
	})).Return(created, nil).Once()

	h, tracker := newTestHandler(serviceMock)
	defer tracker.Stop()
	router := newTestRouter(h)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/tasks", gin.H{"text": "write report"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var got taskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "task-1", got.ID)
	require.Equal(t, "write report", got.Text)
	require.False(t, got.Completed)
	serviceMock.AssertExpectations(t)
}

func TestHandleCreateTask_EmptyText(t *testing.T) {
	serviceMock := new(taskServiceMock)

	h, tracker := newTestHandler(serviceMock)
	defer tracker.Stop()
	router := newTestRouter(h)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/tasks", gin.H{"text": ""})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	serviceMock.AssertExpectations(t)
}

func TestHandleCreateTask_InvalidDueDate(t *testing.T) {
	serviceMock := new(taskServiceMock)
	serviceMock.On("CreateTask", mock.Anything, mock.Anything).
		Return(nil, services.ErrInvalidDueDate).Once()

	h, tracker := newTestHandler(serviceMock)
	defer tracker.Stop()
	router := newTestRouter(h)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/tasks", gin.H{
		"text":     "bad date",
		"due_date": "2026-13-40",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	serviceMock.AssertExpectations(t)
}

func TestHandleSetTaskCompleted_OpensGraceWindow(t *testing.T) {
	now := time.Now()
	completed := &models.Task{
		ID:          "task-1",
		UserID:      testUserID,
		Text:        "done",
		Completed:   true,
		CompletedAt: &now,
		CreatedAt:   now,
	}

	serviceMock := new(taskServiceMock)
	serviceMock.On("SetTaskCompleted", mock.Anything, testUserID, "task-1", true).
		Return(completed, nil).Once()

	h, tracker := newTestHandler(serviceMock)
	defer tracker.Stop()
	router := newTestRouter(h)

	rec := doJSON(t, router, http.MethodPut, "/api/v1/tasks/task-1/completed", gin.H{"completed": true})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, tracker.Pending("task-1"))

	var got taskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.True(t, got.Completed)
	require.True(t, got.Pending)
	serviceMock.AssertExpectations(t)
}

func TestHandleUndoTaskCompletion_WithinWindow(t *testing.T) {
	reopened := &models.Task{
		ID:        "task-1",
		UserID:    testUserID,
		Text:      "back again",
		CreatedAt: time.Now(),
	}

	serviceMock := new(taskServiceMock)
	serviceMock.On("SetTaskCompleted", mock.Anything, testUserID, "task-1", false).
		Return(reopened, nil).Once()

	h, tracker := newTestHandler(serviceMock)
	defer tracker.Stop()
	router := newTestRouter(h)

	tracker.Start("task-1")

	rec := doJSON(t, router, http.MethodPost, "/api/v1/tasks/task-1/undo", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, tracker.Pending("task-1"))

	var got taskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.False(t, got.Completed)
	serviceMock.AssertExpectations(t)
}

func TestHandleUndoTaskCompletion_NotOwnerKeepsWindow(t *testing.T) {
	serviceMock := new(taskServiceMock)
	serviceMock.On("SetTaskCompleted", mock.Anything, testUserID, "task-1", false).
		Return(nil, services.ErrTaskNotFound).Once()

	h, tracker := newTestHandler(serviceMock)
	defer tracker.Stop()
	router := newTestRouter(h)

	tracker.Start("task-1")

	rec := doJSON(t, router, http.MethodPost, "/api/v1/tasks/task-1/undo", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	// A request that fails the ownership check must not consume the
	// owner's grace window.
	require.True(t, tracker.Pending("task-1"))
	serviceMock.AssertExpectations(t)
}

func TestHandleUndoTaskCompletion_NoWindow(t *testing.T) {
	serviceMock := new(taskServiceMock)

	h, tracker := newTestHandler(serviceMock)
	defer tracker.Stop()
	router := newTestRouter(h)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/tasks/task-1/undo", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	serviceMock.AssertExpectations(t)
}

func TestHandleDeleteTask_NotFound(t *testing.T) {
	serviceMock := new(taskServiceMock)
	serviceMock.On("DeleteTask", mock.Anything, testUserID, "missing").
		Return(services.ErrTaskNotFound).Once()

	h, tracker := newTestHandler(serviceMock)
	defer tracker.Stop()
	router := newTestRouter(h)

	rec := doJSON(t, router, http.MethodDelete, "/api/v1/tasks/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	serviceMock.AssertExpectations(t)
}

func TestHandleDeleteTask_CancelsGraceWindow(t *testing.T) {
	serviceMock := new(taskServiceMock)
	serviceMock.On("DeleteTask", mock.Anything, testUserID, "task-1").
		Return(nil).Once()

	h, tracker := newTestHandler(serviceMock)
	defer tracker.Stop()
	router := newTestRouter(h)

	tracker.Start("task-1")

	rec := doJSON(t, router, http.MethodDelete, "/api/v1/tasks/task-1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.False(t, tracker.Pending("task-1"))
	serviceMock.AssertExpectations(t)
}

func TestHandleSyncTasks_ReturnsMerged(t *testing.T) {
	syncedAt := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	merged := []models.Task{
		{ID: "a", UserID: testUserID, Text: "from device", SyncedAt: &syncedAt},
		{ID: "b", UserID: testUserID, Text: "from server", SyncedAt: &syncedAt},
	}

	serviceMock := new(taskServiceMock)
	serviceMock.On("SyncTasks", mock.Anything, testUserID, mock.MatchedBy(func(tasks []models.Task) bool {
		return len(tasks) == 1 && tasks[0].ID == "a"
	})).Return(merged, nil).Once()

	h, tracker := newTestHandler(serviceMock)
	defer tracker.Stop()
	router := newTestRouter(h)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/tasks/sync", gin.H{
		"tasks": []gin.H{{"id": "a", "text": "from device"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var got []taskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	serviceMock.AssertExpectations(t)
}

func TestGuestTasks_RoundTrip(t *testing.T) {
	h, tracker := newTestHandler(new(taskServiceMock))
	defer tracker.Stop()
	router := newTestRouter(h)

	// A fresh guest has an empty collection.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/guest/tasks", nil)
	req.Header.Set(guestIDHeader, "guest-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var empty struct {
		Tasks []models.Task `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &empty))
	require.Empty(t, empty.Tasks)

	// Save a snapshot and read it back.
	raw, err := json.Marshal(gin.H{"tasks": []gin.H{{"id": "a", "text": "buy milk"}}})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodPut, "/api/v1/guest/tasks", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(guestIDHeader, "guest-1")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/guest/tasks", nil)
	req.Header.Set(guestIDHeader, "guest-1")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var saved struct {
		Tasks []models.Task `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	require.Len(t, saved.Tasks, 1)
	require.Equal(t, "buy milk", saved.Tasks[0].Text)
}

func TestGuestTasks_MissingHeader(t *testing.T) {
	h, tracker := newTestHandler(new(taskServiceMock))
	defer tracker.Stop()
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/guest/tasks", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

var _ services.TaskService = (*taskServiceMock)(nil)

var errBoom = errors.New("boom")

func TestHandleGetTasks_ServiceError(t *testing.T) {
	serviceMock := new(taskServiceMock)
	serviceMock.On("GetTasksByUserID", mock.Anything, testUserID).Return(nil, errBoom).Once()

	h, tracker := newTestHandler(serviceMock)
	defer tracker.Stop()
	router := newTestRouter(h)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/tasks", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	serviceMock.AssertExpectations(t)
}
