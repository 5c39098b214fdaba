package services

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Nifargo/todo-app-server/internal/models"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUserAlreadyExists    = errors.New("user already exists")
	ErrUserPasswordMismatch = errors.New("user password mismatch")
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionExpired       = errors.New("session expired")
	ErrTaskNotFound         = errors.New("task not found")
	ErrEmptyTaskText        = errors.New("task text must not be empty")
	ErrInvalidDueDate       = errors.New("invalid due date")
	ErrSubtaskNotFound      = errors.New("subtask not found")
	ErrNoteNotFound         = errors.New("note not found")
	ErrInvalidTimezone      = errors.New("invalid timezone")
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

type AuthService interface {
	// Login authenticates the user by email and password.
	//
	// It deletes all sessions with the same user ID and creates
	// a new session and generates a new JWT token pair.
	//
	// It returns ErrUserNotFound if the user with the given
	// email doesn't exist or ErrUserPasswordMismatch if the
	// given password doesn't match the user's password.
	Login(ctx context.Context, params LoginParams) (*LoginResult, error)

	// Refresh updates the session with the given refresh token.
	//
	// It returns ErrSessionNotFound if the session with the
	// given refresh token doesn't exist or ErrSessionExpired
	// if the session is expired.
	Refresh(ctx context.Context, params RefreshParams) (*LoginResult, error)

	// Register a user with the given email and password.
	//
	// It hashes the password, generates a unique ID and creates a
	// session with the given fingerprint and a fresh JWT token pair.
	//
	// It returns ErrUserAlreadyExists if the user
	// with the given email already exists.
	Register(ctx context.Context, params LoginParams) (*LoginResult, error)

	// Logout invalidates all sessions with the given user ID.
	Logout(ctx context.Context, userID string) error

	// ParseJWTToken parses the given JWT token and returns the registered
	// claims or jwt.ErrTokenExpired if the token is expired.
	ParseJWTToken(token string) (*jwt.RegisteredClaims, error)
}

type SessionService interface {
	GetSessionByID(ctx context.Context, sessionID string) (*models.Session, error)
}

type TaskService interface {
	// CreateTask inserts a new task owned by params.UserID. The text
	// must be non-empty and the due date, when given, a valid
	// calendar date.
	CreateTask(ctx context.Context, params CreateTaskParams) (*models.Task, error)

	// GetTasksByUserID returns the user's full collection, newest
	// first. An empty collection is not an error.
	GetTasksByUserID(ctx context.Context, userID string) ([]models.Task, error)

	// UpdateTask applies the non-nil fields of params to the task.
	UpdateTask(ctx context.Context, params UpdateTaskParams) (*models.Task, error)

	// SetTaskCompleted flips the completion flag, keeping the
	// completed-at timestamp consistent with it.
	SetTaskCompleted(ctx context.Context, userID, taskID string, completed bool) (*models.Task, error)

	// ToggleSubtask flips one subtask's completion flag.
	ToggleSubtask(ctx context.Context, userID, taskID, subtaskID string) (*models.Task, error)

	// DeleteTask removes the task and records a tombstone so a later
	// sync cannot resurrect it from a stale device snapshot.
	DeleteTask(ctx context.Context, userID, taskID string) error

	// SyncTasks reconciles a device's snapshot with the stored
	// collection using last-write-wins on synced-at, honoring
	// tombstones, persists the winners and returns the merged
	// collection with fresh synced-at stamps.
	SyncTasks(ctx context.Context, userID string, clientTasks []models.Task) ([]models.Task, error)

	// GetOpenTasks returns every incomplete task with a due date,
	// across all users. Used by the notification dispatcher.
	GetOpenTasks(ctx context.Context) ([]models.Task, error)

	// StampNotified records date as the last notification date of the
	// given tasks so a second dispatcher run on the same day does not
	// re-notify for them.
	StampNotified(ctx context.Context, userID string, taskIDs []string, date string) error

	// PurgeCompleted deletes tasks completed more than olderThan ago
	// and returns how many were removed.
	PurgeCompleted(ctx context.Context, olderThan time.Duration) (int64, error)

	// WatchTasks invokes fn for every change to the user's tasks until
	// ctx is cancelled. Cancelling ctx is the unsubscribe.
	WatchTasks(ctx context.Context, userID string, fn func(event TaskEvent)) error
}

type NoteService interface {
	// CreateNote inserts a note; the title is derived from the first
	// line of the content.
	CreateNote(ctx context.Context, params CreateNoteParams) (*models.Note, error)

	// GetNotesByUserID returns the notes the user owns plus the ones
	// shared with the user's email.
	GetNotesByUserID(ctx context.Context, userID string) ([]models.Note, error)

	// UpdateNote replaces the content and re-derives the title.
	UpdateNote(ctx context.Context, params UpdateNoteParams) (*models.Note, error)

	// DeleteNote removes a note. Only the owner may delete it.
	DeleteNote(ctx context.Context, userID, noteID string) error

	// ShareNote adds a collaborator by email. It returns
	// ErrUserNotFound if no user has that email.
	ShareNote(ctx context.Context, userID, noteID, email string) (*models.Note, error)
}

type SettingsService interface {
	// GetSettings returns the stored settings or the defaults
	// (notifications off, UTC) when the user never saved any.
	GetSettings(ctx context.Context, userID string) (*models.UserSettings, error)

	// PutSettings upserts the settings. The timezone must be a valid
	// IANA zone name.
	PutSettings(ctx context.Context, settings models.UserSettings) error

	// GetAllSettings returns every user's settings. Used by the
	// notification dispatcher.
	GetAllSettings(ctx context.Context) ([]models.UserSettings, error)
}

type SubscriptionService interface {
	// RegisterSubscription upserts a push delivery endpoint for the
	// user, keyed by the endpoint URL.
	RegisterSubscription(ctx context.Context, params RegisterSubscriptionParams) (*models.PushSubscription, error)

	// DeleteUserSubscription prunes one of the user's own endpoints.
	// It returns ErrSubscriptionNotFound when no endpoint with that id
	// belongs to the user.
	DeleteUserSubscription(ctx context.Context, userID, subscriptionID string) error

	// DeleteSubscription prunes one endpoint regardless of owner.
	// Used by the dispatcher when a push service reports an endpoint
	// gone.
	DeleteSubscription(ctx context.Context, subscriptionID string) error

	GetSubscriptionsByUserID(ctx context.Context, userID string) ([]models.PushSubscription, error)

	// GetAllSubscriptions returns every registered endpoint. Used by
	// the notification dispatcher.
	GetAllSubscriptions(ctx context.Context) ([]models.PushSubscription, error)
}

type LoginParams struct {
	Email       string
	Password    string
	Fingerprint string
}

type LoginResult struct {
	UserID                string
	SessionID             string
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
}

type RefreshParams struct {
	RefreshToken string
	Fingerprint  string
}

type CreateTaskParams struct {
	UserID   string
	Text     string
	DueDate  string
	Subtasks []models.Subtask
}

type UpdateTaskParams struct {
	ID       string
	UserID   string
	Text     *string
	DueDate  *string
	Subtasks *[]models.Subtask
}

type CreateNoteParams struct {
	UserID  string
	Content string
}

type UpdateNoteParams struct {
	ID      string
	UserID  string
	Content string
}

type RegisterSubscriptionParams struct {
	UserID   string
	Endpoint string
	P256dh   string
	Auth     string
}

// TaskEvent is one live-update notification from WatchTasks.
type TaskEvent struct {
	Op     string `json:"op"`
	TaskID string `json:"task_id"`
	UserID string `json:"user_id"`
}
