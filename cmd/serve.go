package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/blue-creative/db-rb/internal/server"
	"github.com/blue-creative/db-rb/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the HTTP API until interrupted. The catalog stays locked while serving.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig()
	if err != nil {
		return err
	}
	cfg := config.Server
	if host := cmd.String("host"); host != "" {
		cfg.Host = host
	}
	if port := cmd.Int("port"); port > 0 {
		cfg.Port = int(port)
	}

	engine, release, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer release()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg, engine, shared.WithLogger(r.logger, "component", "server"))
	r.writePlain("→ Serving catalog on http://%s (Ctrl+C to stop)\n", srv.Addr())
	return srv.ListenAndServe(ctx)
}
