// Command server runs the Artifortress HTTP API (C10): the repo, upload,
// publish, policy, and admin routes of spec.md §6.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/sremani/Artifortress-sub001/internal/bootstrap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	svc, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("building service: %v", err)
	}
	defer svc.Conn.Close()

	app := svc.HTTPApp()

	go func() {
		<-ctx.Done()
		svc.Logger.Info("shutting down http server")

		if err := app.ShutdownWithContext(context.Background()); err != nil {
			svc.Logger.Errorf("http server shutdown: %v", err)
		}
	}()

	svc.Logger.Infof("listening on %s", cfg.ServerAddress)

	if err := app.Listen(cfg.ServerAddress); err != nil {
		svc.Logger.Errorf("http server stopped: %v", err)
	}

	_ = svc.Logger.Sync()
}
