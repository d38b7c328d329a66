// Command worker runs Artifortress's background loops: the outbox producer
// and search-job consumer sweeps (C7) and the periodic GC sweep (C8).
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/sremani/Artifortress-sub001/internal/bootstrap"
	"github.com/sremani/Artifortress-sub001/internal/platform/mruntime"
	"github.com/sremani/Artifortress-sub001/internal/services/lifecycle"
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

	go svc.Outbox.Run(ctx)

	go mruntime.RunTicker(ctx, svc.Logger, "lifecycle.gc", cfg.GCInterval, func(ctx context.Context) error {
		result, err := svc.Lifecycle.Run(ctx, "", lifecycle.GCRequest{
			RetentionGraceHours: cfg.GCRetentionGraceHours,
			BatchSize:           cfg.GCBatchSize,
		})
		if err != nil {
			return err
		}

		svc.Logger.Infof("gc sweep: deletedVersions=%d deletedBlobs=%d", result.DeletedVersionCount, result.DeletedBlobCount)

		return nil
	})

	svc.Logger.Info("worker started")

	<-ctx.Done()
	svc.Logger.Info("worker shutting down")
	_ = svc.Logger.Sync()
}
