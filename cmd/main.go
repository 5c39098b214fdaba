package main

import "github.com/Nifargo/todo-app-server/internal/app"

func main() {
	app.InitDefaultLogger()
	app.MustReadEnv()
	app.MustInitApplicationLogger()

	app.MustConnectPostgres()
	defer app.DisconnectPostgres()

	app.MustConnectRedis()
	defer app.DisconnectRedis()

	app.StartPurgeWorker()
	defer app.StopPurgeWorker()

	app.MustListenAndServeHTTP()
}
