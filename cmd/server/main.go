// Command server runs the Pathway HTTP API and its gRPC health endpoint.
package main

import (
	"context"
	"os"

	"github.com/pathwayfr/pathway/internal/logging"
	"github.com/pathwayfr/pathway/internal/server"
	"github.com/pathwayfr/pathway/internal/server/config"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()
	log := logging.NewJSONLogger(os.Stderr, cfg.LogLevel)

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Error(ctx, "startup failed", "error", err)
		os.Exit(1)
	}

	app.Run(ctx)

	if err := app.Close(); err != nil {
		log.Error(ctx, "shutdown", "error", err)
		os.Exit(1)
	}
}
