package app

import (
	"context"

	"github.com/Nifargo/todo-app-server/internal/config"
	"github.com/Nifargo/todo-app-server/internal/dispatcher"
	"github.com/Nifargo/todo-app-server/internal/push"
	"github.com/Nifargo/todo-app-server/internal/services"
)

// MustRunDispatcher performs one reminder dispatch pass. A top-level
// failure panics so the scheduled invocation exits non-zero and
// operators are alerted.
func MustRunDispatcher() {
	pushCfg := config.Global().Push
	if pushCfg.VAPIDPublicKey == "" || pushCfg.VAPIDPrivateKey == "" {
		globalLogger.Error().Msg("VAPID keys are not configured")
		panic("VAPID keys are not configured")
	}

	gateway := push.NewWebPushGateway(
		globalLogger,
		pushCfg.Subscriber,
		pushCfg.VAPIDPublicKey,
		pushCfg.VAPIDPrivateKey,
		pushCfg.TTL,
	)

	d := dispatcher.New(
		globalLogger,
		services.NewTaskService(globalLogger, globalPostgresPool),
		services.NewSettingsService(globalLogger, globalPostgresPool),
		services.NewSubscriptionService(globalLogger, globalPostgresPool),
		gateway,
	)

	err := d.Run(context.Background())
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("dispatch pass failed")
		panic(err)
	}
}
