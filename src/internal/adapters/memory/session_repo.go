package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/reelgen/reelgen/src/internal/domain"
)

// InMemorySessionRepo mirrors the postgres adapter's semantics, including
// the compare-and-swap transitions and the monotonic progress guard, so
// tests exercise the same contract the server runs against.
type InMemorySessionRepo struct {
	sessions map[string]domain.Session
	mu       sync.RWMutex
}

func NewSessionRepo() *InMemorySessionRepo {
	return &InMemorySessionRepo{
		sessions: make(map[string]domain.Session),
	}
}

func (r *InMemorySessionRepo) GetBySessionID(ctx context.Context, sessionID string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &s, nil
}

func (r *InMemorySessionRepo) ListByUser(ctx context.Context, userID string) ([]domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sessions []domain.Session
	for _, s := range r.sessions {
		if s.UserID == userID {
			sessions = append(sessions, s)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

func (r *InMemorySessionRepo) Save(ctx context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[s.SessionID] = *s
	return nil
}

func (r *InMemorySessionRepo) UpdatePlan(ctx context.Context, sessionID, plan string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	now := time.Now()
	s.Plan = plan
	s.ModifiedAt = &now
	r.sessions[sessionID] = s
	return nil
}

func (r *InMemorySessionRepo) TryMarkQueued(ctx context.Context, sessionID, approvedPlan string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if !s.Status.CanStartGeneration() {
		return domain.ErrGenerationActive
	}
	eta := 300
	s.Status = domain.StatusQueued
	s.ApprovedPlan = approvedPlan
	s.Progress = 0
	s.EstimatedTimeRemaining = &eta
	s.Error = ""
	r.sessions[sessionID] = s
	return nil
}

func (r *InMemorySessionRepo) CASStatus(ctx context.Context, sessionID string, from, to domain.GenerationStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return false, domain.ErrSessionNotFound
	}
	if s.Status != from {
		return false, nil
	}
	s.Status = to
	r.sessions[sessionID] = s
	return true, nil
}

func (r *InMemorySessionRepo) UpdateProgress(ctx context.Context, sessionID string, progress float64, etaSeconds int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok || s.Status != domain.StatusProcessing {
		return domain.ErrSessionNotFound
	}
	if progress > s.Progress {
		s.Progress = progress
	}
	s.EstimatedTimeRemaining = &etaSeconds
	r.sessions[sessionID] = s
	return nil
}

func (r *InMemorySessionRepo) CompleteGeneration(ctx context.Context, sessionID, videoURL string, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok || s.Status != domain.StatusProcessing {
		return domain.ErrSessionNotFound
	}
	zero := 0
	s.Status = domain.StatusCompleted
	s.Progress = 100
	s.EstimatedTimeRemaining = &zero
	s.VideoURL = videoURL
	s.CompletedAt = &completedAt
	s.ExpiresAt = completedAt.Add(domain.SessionTTL)
	s.Error = ""
	r.sessions[sessionID] = s
	return nil
}

func (r *InMemorySessionRepo) FailGeneration(ctx context.Context, sessionID, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok || (s.Status != domain.StatusQueued && s.Status != domain.StatusProcessing) {
		return domain.ErrSessionNotFound
	}
	s.Status = domain.StatusFailed
	s.Error = errMsg
	r.sessions[sessionID] = s
	return nil
}

func (r *InMemorySessionRepo) ListExpired(ctx context.Context, now time.Time) ([]domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var expired []domain.Session
	for _, s := range r.sessions {
		if s.Expired(now) {
			expired = append(expired, s)
		}
	}
	return expired, nil
}

func (r *InMemorySessionRepo) Delete(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID)
	return nil
}
