package app

import (
	"fmt"

	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/kdsgrill/kdsgrill/cmd/kds-server/app/options"
	"github.com/kdsgrill/kdsgrill/pkg/app"
)

const (
	commandName = "kds-server"
	commandDesc = `The KDS server photographs paper tickets on the grill rail, turns each
capture into an order and keeps every kitchen station in sync over
WebSockets. Stations change order status, remove finished orders and
request captures; every change is broadcast to all of them.`
)

func NewApp() *app.App {
	opts := options.NewServerOptions()
	application := app.NewApp(
		commandName,
		"Launch the kitchen display server",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithRunFunc(run(opts)),
	)
	return application
}

func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		ctx := genericapiserver.SetupSignalContext()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		server, err := cfg.NewKDSServer()
		if err != nil {
			return fmt.Errorf("failed to create kds server: %w", err)
		}

		return server.Run(ctx)
	}
}
