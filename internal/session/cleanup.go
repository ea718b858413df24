package session

import (
	"context"
	"log/slog"
	"time"
)

// EvictCallback is called for every session removed by the sweeper,
// letting the caller close any live connection for it.
type EvictCallback func(sessionID string)

// StartSweeper runs a background goroutine that periodically evicts
// sessions idle longer than ttl. It stops when ctx is cancelled.
func StartSweeper(ctx context.Context, store *Store, ttl, interval time.Duration, onEvict EvictCallback) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("session sweeper started", "ttl", ttl, "interval", interval)

		for {
			select {
			case <-ticker.C:
				evicted := store.EvictIdle(ttl)
				if len(evicted) == 0 {
					continue
				}
				slog.Info("session sweeper evicted idle sessions", "count", len(evicted))
				if onEvict != nil {
					for _, id := range evicted {
						onEvict(id)
					}
				}
			case <-ctx.Done():
				slog.Info("session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
