// Package mruntime provides the small graceful-shutdown-aware loop the two
// background sweepers (outbox producer, search job consumer) run on.
package mruntime

import (
	"context"
	"time"

	"github.com/sremani/Artifortress-sub001/internal/platform/mlog"
)

// RunTicker calls fn every interval until ctx is cancelled. fn errors are
// logged and swallowed — a single failed sweep must not stop the loop.
func RunTicker(ctx context.Context, logger mlog.Logger, name string, interval time.Duration, fn func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Infof("%s: stopping", name)
			return
		case <-ticker.C:
			if err := fn(ctx); err != nil {
				logger.Errorf("%s: sweep failed: %v", name, err)
			}
		}
	}
}
