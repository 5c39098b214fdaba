// The dispatcher runs one reminder pass and exits. It is meant to be
// invoked by a scheduler (cron or similar) with the store and push
// gateway credentials supplied through the environment.
package main

import "github.com/Nifargo/todo-app-server/internal/app"

func main() {
	app.InitDefaultLogger()
	app.MustReadEnv()
	app.MustInitApplicationLogger()

	app.MustConnectPostgres()
	defer app.DisconnectPostgres()

	app.MustRunDispatcher()
}
