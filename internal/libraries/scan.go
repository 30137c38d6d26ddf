package libraries

import (
	"context"
	"log/slog"
	"time"

	"jellybridge/internal/logging"
)

// ScanStatus is the scheduled-task poll WaitForScan needs. Implemented
// by jellyfin.Client.
type ScanStatus interface {
	LibraryScanRunning(ctx context.Context) (bool, error)
}

// WaitForScan blocks until the destination's media library scan finishes,
// polling at the given interval. The first poll waits one interval so a
// scan just kicked off by a library creation has time to register as
// running. Returns the context's error on cancellation.
func WaitForScan(ctx context.Context, status ScanStatus, interval time.Duration, logger *slog.Logger) error {
	log := logging.NewComponentLogger(logger, "libraries")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		running, err := status.LibraryScanRunning(ctx)
		if err != nil {
			return err
		}
		if !running {
			log.Info("library scan finished")
			return nil
		}
		log.Debug("library scan still running", logging.Duration("poll_interval", interval))
	}
}
