package app

import (
	"context"
	"time"

	"github.com/Nifargo/todo-app-server/internal/config"
	"github.com/Nifargo/todo-app-server/internal/services"
)

var purgeStop chan struct{}

// StartPurgeWorker periodically removes tasks that have been completed
// for longer than the configured maximum age.
func StartPurgeWorker() {
	cfg := config.Global().Tasks
	taskService := services.NewTaskService(globalLogger, globalPostgresPool)

	purgeStop = make(chan struct{})
	go func() {
		ticker := time.NewTicker(cfg.PurgeInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				_, err := taskService.PurgeCompleted(context.Background(), cfg.PurgeMaxAge)
				if err != nil {
					globalLogger.Error().
						Err(err).
						Msg("purge pass failed")
				}
			case <-purgeStop:
				return
			}
		}
	}()

	globalLogger.Info().
		Dur("interval", cfg.PurgeInterval).
		Dur("max_age", cfg.PurgeMaxAge).
		Msg("started purge worker")
}

func StopPurgeWorker() {
	close(purgeStop)
	globalLogger.Info().Msg("stopped purge worker")
}
