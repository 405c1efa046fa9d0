package fetcher

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// StartBackgroundRefresh runs one refresh immediately and then on a
// fixed period until the context is cancelled. A failed cycle never
// stops the schedule.
func StartBackgroundRefresh(ctx context.Context, f *Fetcher, interval time.Duration) {
	log.Info("Starting initial feed fetch")
	if err := f.RefreshAll(ctx); err != nil {
		log.WithFields(log.Fields{"error": err}).Error("Initial feed fetch failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Stopping background refresh")
			return
		case <-ticker.C:
			log.Info("Starting scheduled feed refresh")
			if err := f.RefreshAll(ctx); err != nil {
				log.WithFields(log.Fields{"error": err}).Error("Scheduled feed refresh failed")
			}
		}
	}
}
