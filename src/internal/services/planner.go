package services

import (
	"context"
	"fmt"
	"log"

	"github.com/reelgen/reelgen/src/internal/ports"
)

// Planner handles chat-style plan revisions. The prior plan is replaced
// outright; no version history is kept.
type Planner struct {
	sessions ports.SessionRepository
	reviser  ports.PlanReviser
}

func NewPlanner(sessions ports.SessionRepository, reviser ports.PlanReviser) *Planner {
	return &Planner{sessions: sessions, reviser: reviser}
}

func (p *Planner) ModifyPlan(ctx context.Context, sessionID, request string) (string, error) {
	session, err := p.sessions.GetBySessionID(ctx, sessionID)
	if err != nil {
		return "", err
	}

	revised, err := p.reviser.RevisePlan(ctx, session.Analysis, session.Plan, request)
	if err != nil {
		return "", err
	}

	if err := p.sessions.UpdatePlan(ctx, sessionID, revised); err != nil {
		return "", fmt.Errorf("failed to store revised plan: %w", err)
	}

	log.Printf("[Planner] Plan for session %s revised (%d chars)", sessionID, len(revised))
	return revised, nil
}
