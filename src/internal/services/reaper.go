package services

import (
	"context"
	"log"
	"time"

	"github.com/reelgen/reelgen/src/internal/ports"
)

// ExpiryReaper enforces the 7-day retention window: expired sessions have
// their stored artifacts deleted and the record removed.
type ExpiryReaper struct {
	sessions ports.SessionRepository
	store    ports.ObjectStore
	interval time.Duration
}

func NewExpiryReaper(sessions ports.SessionRepository, store ports.ObjectStore, interval time.Duration) *ExpiryReaper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &ExpiryReaper{sessions: sessions, store: store, interval: interval}
}

func (r *ExpiryReaper) Start(ctx context.Context) {
	log.Printf("[Reaper] Starting expiry reaper (interval: %s)", r.interval)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.ReapExpired(ctx)
		}
	}
}

func (r *ExpiryReaper) ReapExpired(ctx context.Context) {
	expired, err := r.sessions.ListExpired(ctx, time.Now())
	if err != nil {
		log.Printf("[Reaper] Failed to list expired sessions: %v", err)
		return
	}

	for _, session := range expired {
		log.Printf("[Reaper] Session %s expired at %s, deleting...", session.SessionID, session.ExpiresAt)

		failed := false
		for _, key := range session.ArtifactKeys() {
			if err := r.store.Delete(ctx, key); err != nil {
				log.Printf("[Reaper] Failed to delete artifact %s: %v", key, err)
				failed = true
			}
		}
		if failed {
			// Leave the record in place so the next sweep retries.
			continue
		}

		if err := r.sessions.Delete(ctx, session.SessionID); err != nil {
			log.Printf("[Reaper] Failed to delete session %s: %v", session.SessionID, err)
			continue
		}
		log.Printf("[Reaper] Session %s and its artifacts removed", session.SessionID)
	}
}
