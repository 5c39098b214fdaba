package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Nifargo/todo-app-server/internal/localstore"
	"github.com/Nifargo/todo-app-server/internal/pending"
	"github.com/Nifargo/todo-app-server/internal/services"
)

type Handler interface {
	HandleLogin(c *gin.Context)
	HandleRefresh(c *gin.Context)
	HandleRegister(c *gin.Context)
	HandleLogout(c *gin.Context)
	HandleAuthMiddleware(c *gin.Context)

	HandleCreateTask(c *gin.Context)
	HandleGetTasks(c *gin.Context)
	HandleUpdateTask(c *gin.Context)
	HandleSetTaskCompleted(c *gin.Context)
	HandleUndoTaskCompletion(c *gin.Context)
	HandleToggleSubtask(c *gin.Context)
	HandleDeleteTask(c *gin.Context)
	HandleSyncTasks(c *gin.Context)
	HandleWatchTasks(c *gin.Context)

	HandleGetNotes(c *gin.Context)
	HandleCreateNote(c *gin.Context)
	HandleUpdateNote(c *gin.Context)
	HandleShareNote(c *gin.Context)
	HandleDeleteNote(c *gin.Context)

	HandleGetSettings(c *gin.Context)
	HandlePutSettings(c *gin.Context)

	HandleRegisterSubscription(c *gin.Context)
	HandleGetSubscriptions(c *gin.Context)
	HandleDeleteSubscription(c *gin.Context)

	HandleGetGuestTasks(c *gin.Context)
	HandlePutGuestTasks(c *gin.Context)
}

type handlerImpl struct {
	logger        zerolog.Logger
	auth          services.AuthService
	sessions      services.SessionService
	tasks         services.TaskService
	notes         services.NoteService
	settings      services.SettingsService
	subscriptions services.SubscriptionService
	guest         *localstore.Store
	pending       *pending.Tracker
}

func New(
	logger zerolog.Logger,
	authService services.AuthService,
	sessionService services.SessionService,
	taskService services.TaskService,
	noteService services.NoteService,
	settingsService services.SettingsService,
	subscriptionService services.SubscriptionService,
	guestStore *localstore.Store,
	pendingTracker *pending.Tracker,
) Handler {
	return &handlerImpl{
		logger:        logger,
		auth:          authService,
		sessions:      sessionService,
		tasks:         taskService,
		notes:         noteService,
		settings:      settingsService,
		subscriptions: subscriptionService,
		guest:         guestStore,
		pending:       pendingTracker,
	}
}

func (h *handlerImpl) mustGetUserID(c *gin.Context) (string, bool) {
	userID, ok := getStringFromContext(c, userIDCtxKey)
	if !ok || userID == "" {
		h.logger.Error().Msg("no user id found in context")
		c.AbortWithStatus(http.StatusUnauthorized)
		return "", false
	}
	return userID, true
}
