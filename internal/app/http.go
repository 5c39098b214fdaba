package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/Nifargo/todo-app-server/internal/config"
	"github.com/Nifargo/todo-app-server/internal/delivery/http/v1"
	"github.com/Nifargo/todo-app-server/internal/localstore"
	"github.com/Nifargo/todo-app-server/internal/pending"
	"github.com/Nifargo/todo-app-server/internal/services"
)

func MustListenAndServeHTTP() {
	cfg := config.Global()
	if cfg.Env != config.EnvLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	httpCfg := cfg.HTTP

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	tracker := pending.NewTracker(cfg.Tasks.GraceDelay, func(taskID string) {
		globalLogger.Debug().
			Str("task_id", taskID).
			Msg("completion grace window elapsed")
	})
	defer tracker.Stop()

	registerRoutes(router, tracker)

	server := &http.Server{
		Addr:    net.JoinHostPort(httpCfg.Host, httpCfg.Port),
		Handler: router,
	}

	go func() {
		globalLogger.Info().
			Str("host", httpCfg.Host).
			Str("port", httpCfg.Port).
			Msg("setting up http server")
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			globalLogger.Error().
				Err(err).
				Msg("failed to listen and serve http")
			panic(err)
		}
	}()

	// Wait for the interrupt signal to gracefully
	// shut down the server with a timeout of 5 seconds.
	quit := make(chan os.Signal, 1)
	// kill (no params) by default sends syscall.SIGTERM
	// kill -2 is syscall.SIGINT
	// kill -9 is syscall.SIGKILL but can't be caught, so don't need to add it
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	globalLogger.Info().
		Msg("shutting down http server")

	ctx, cancel := context.WithTimeout(context.Background(), httpCfg.ShutdownTimeout)
	defer cancel()

	err := server.Shutdown(ctx)
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to shutdown http server")
		panic(err)
	}
	globalLogger.Info().Msg("shut down http server")
}

func registerRoutes(router gin.IRouter, tracker *pending.Tracker) {
	jwtCfg := config.Global().JWT

	authService := services.NewAuthService(
		globalLogger,
		globalPostgresPool,
		jwtCfg.Issuer,
		[]byte(jwtCfg.SigningKey),
		jwtCfg.AccessTokenTTL,
		jwtCfg.RefreshTokenTTL,
	)
	sessionService := services.NewSessionService(globalLogger, globalPostgresPool)
	taskService := services.NewTaskService(globalLogger, globalPostgresPool)
	noteService := services.NewNoteService(globalLogger, globalPostgresPool)
	settingsService := services.NewSettingsService(globalLogger, globalPostgresPool)
	subscriptionService := services.NewSubscriptionService(globalLogger, globalPostgresPool)
	guestStore := localstore.NewStore(globalLogger, localstore.NewRedisKV(globalRedisClient))

	v1Handler := v1.New(
		globalLogger,
		authService,
		sessionService,
		taskService,
		noteService,
		settingsService,
		subscriptionService,
		guestStore,
		tracker,
	)
	router = router.Group("/api/v1")

	authRouter := router.Group("/auth")
	authRouter.POST("/login", v1Handler.HandleLogin)
	authRouter.POST("/refresh", v1Handler.HandleRefresh)
	authRouter.POST("/register", v1Handler.HandleRegister)
	authRouter.POST("/logout", v1Handler.HandleAuthMiddleware, v1Handler.HandleLogout)

	taskRouter := router.Group("/tasks", v1Handler.HandleAuthMiddleware)
	taskRouter.GET("", v1Handler.HandleGetTasks)
	taskRouter.POST("", v1Handler.HandleCreateTask)
	taskRouter.POST("/sync", v1Handler.HandleSyncTasks)
	taskRouter.GET("/watch", v1Handler.HandleWatchTasks)
	taskRouter.PATCH("/:id", v1Handler.HandleUpdateTask)
	taskRouter.PUT("/:id/completed", v1Handler.HandleSetTaskCompleted)
	taskRouter.POST("/:id/undo", v1Handler.HandleUndoTaskCompletion)
	taskRouter.PUT("/:id/subtasks/:subtaskId/toggle", v1Handler.HandleToggleSubtask)
	taskRouter.DELETE("/:id", v1Handler.HandleDeleteTask)

	noteRouter := router.Group("/notes", v1Handler.HandleAuthMiddleware)
	noteRouter.GET("", v1Handler.HandleGetNotes)
	noteRouter.POST("", v1Handler.HandleCreateNote)
	noteRouter.PUT("/:id", v1Handler.HandleUpdateNote)
	noteRouter.POST("/:id/share", v1Handler.HandleShareNote)
	noteRouter.DELETE("/:id", v1Handler.HandleDeleteNote)

	settingsRouter := router.Group("/settings", v1Handler.HandleAuthMiddleware)
	settingsRouter.GET("", v1Handler.HandleGetSettings)
	settingsRouter.PUT("", v1Handler.HandlePutSettings)

	subscriptionRouter := router.Group("/subscriptions", v1Handler.HandleAuthMiddleware)
	subscriptionRouter.POST("", v1Handler.HandleRegisterSubscription)
	subscriptionRouter.GET("", v1Handler.HandleGetSubscriptions)
	subscriptionRouter.DELETE("/:id", v1Handler.HandleDeleteSubscription)

	guestRouter := router.Group("/guest")
	guestRouter.GET("/tasks", v1Handler.HandleGetGuestTasks)
	guestRouter.PUT("/tasks", v1Handler.HandlePutGuestTasks)
}
