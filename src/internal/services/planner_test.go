package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelgen/reelgen/src/internal/adapters/memory"
	"github.com/reelgen/reelgen/src/internal/domain"
)

type stubReviser struct {
	revised string
	err     error

	gotAnalysis string
	gotPlan     string
	gotRequest  string
}

func (r *stubReviser) RevisePlan(ctx context.Context, analysis, plan, request string) (string, error) {
	r.gotAnalysis = analysis
	r.gotPlan = plan
	r.gotRequest = request
	return r.revised, r.err
}

func TestModifyPlanReplacesStoredPlan(t *testing.T) {
	repo := memory.NewSessionRepo()
	require.NoError(t, repo.Save(context.Background(), &domain.Session{
		SessionID: "s1",
		Analysis:  "upbeat cooking short",
		Plan:      "original plan",
		Status:    domain.StatusAnalyzed,
		CreatedAt: time.Now(),
	}))

	reviser := &stubReviser{revised: "revised plan"}
	planner := NewPlanner(repo, reviser)

	revised, err := planner.ModifyPlan(context.Background(), "s1", "make it funnier")
	require.NoError(t, err)
	assert.Equal(t, "revised plan", revised)

	assert.Equal(t, "upbeat cooking short", reviser.gotAnalysis)
	assert.Equal(t, "original plan", reviser.gotPlan)
	assert.Equal(t, "make it funnier", reviser.gotRequest)

	session, err := repo.GetBySessionID(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "revised plan", session.Plan)
	assert.NotNil(t, session.ModifiedAt)
}

func TestModifyPlanUnknownSession(t *testing.T) {
	planner := NewPlanner(memory.NewSessionRepo(), &stubReviser{revised: "x"})

	_, err := planner.ModifyPlan(context.Background(), "nope", "anything")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestModifyPlanReviserFailureLeavesPlanIntact(t *testing.T) {
	repo := memory.NewSessionRepo()
	require.NoError(t, repo.Save(context.Background(), &domain.Session{
		SessionID: "s1",
		Plan:      "original plan",
		Status:    domain.StatusAnalyzed,
	}))

	planner := NewPlanner(repo, &stubReviser{err: errors.New("model unavailable")})

	_, err := planner.ModifyPlan(context.Background(), "s1", "tweak it")
	require.Error(t, err)

	session, err := repo.GetBySessionID(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "original plan", session.Plan)
}
