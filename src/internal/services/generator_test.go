package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelgen/reelgen/src/internal/adapters/memory"
	"github.com/reelgen/reelgen/src/internal/domain"
	"github.com/reelgen/reelgen/src/internal/ports"
)

func newAnalyzedSession(t *testing.T, repo ports.SessionRepository, sessionID string) {
	t.Helper()
	require.NoError(t, repo.Save(context.Background(), &domain.Session{
		SessionID: sessionID,
		UserID:    "u1",
		Plan:      "plan",
		Status:    domain.StatusAnalyzed,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(domain.SessionTTL),
	}))
}

func waitForStatus(t *testing.T, repo ports.SessionRepository, sessionID string, want domain.GenerationStatus) *domain.Session {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		session, err := repo.GetBySessionID(context.Background(), sessionID)
		require.NoError(t, err)
		if session.Status == want {
			return session
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session %s never reached status %s", sessionID, want)
	return nil
}

func TestSimulatedGenerationCompletes(t *testing.T) {
	repo := memory.NewSessionRepo()
	store := memory.NewObjectStore("http://test")
	newAnalyzedSession(t, repo, "s1")

	gen := NewGenerator(repo, store, nil, nil, time.Millisecond)
	require.NoError(t, gen.Start(context.Background(), "s1", "approved plan"))

	session := waitForStatus(t, repo, "s1", domain.StatusCompleted)
	assert.Equal(t, float64(100), session.Progress)
	assert.Equal(t, "approved plan", session.ApprovedPlan)
	assert.Contains(t, session.VideoURL, "s1.mp4")
	assert.NotNil(t, session.CompletedAt)
	require.NotNil(t, session.EstimatedTimeRemaining)
	assert.Equal(t, 0, *session.EstimatedTimeRemaining)

	// Retention restarts from completion.
	assert.WithinDuration(t, session.CompletedAt.Add(domain.SessionTTL), session.ExpiresAt, time.Second)
}

func TestStartRejectsEmptyPlan(t *testing.T) {
	repo := memory.NewSessionRepo()
	newAnalyzedSession(t, repo, "s1")

	gen := NewGenerator(repo, memory.NewObjectStore("http://test"), nil, nil, time.Millisecond)
	err := gen.Start(context.Background(), "s1", "   ")
	require.Error(t, err)

	session, err := repo.GetBySessionID(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAnalyzed, session.Status)
}

func TestStartRejectsDuplicate(t *testing.T) {
	repo := memory.NewSessionRepo()
	newAnalyzedSession(t, repo, "s1")

	// A long tick keeps the first job in flight while the second Start runs.
	gen := NewGenerator(repo, memory.NewObjectStore("http://test"), nil, nil, time.Minute)
	require.NoError(t, gen.Start(context.Background(), "s1", "plan"))

	err := gen.Start(context.Background(), "s1", "plan")
	assert.ErrorIs(t, err, domain.ErrGenerationActive)
}

func TestStartUnknownSession(t *testing.T) {
	gen := NewGenerator(memory.NewSessionRepo(), memory.NewObjectStore("http://test"), nil, nil, time.Millisecond)
	err := gen.Start(context.Background(), "missing", "plan")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

type failingVideoGen struct{}

func (failingVideoGen) Generate(ctx context.Context, plan string) (io.ReadCloser, error) {
	return nil, errors.New("render farm unavailable")
}

func TestGenerationFailureIsRecordedAndRetryable(t *testing.T) {
	repo := memory.NewSessionRepo()
	store := memory.NewObjectStore("http://test")
	newAnalyzedSession(t, repo, "s1")

	gen := NewGenerator(repo, store, failingVideoGen{}, nil, time.Millisecond)
	require.NoError(t, gen.Start(context.Background(), "s1", "plan"))

	session := waitForStatus(t, repo, "s1", domain.StatusFailed)
	assert.Contains(t, session.Error, "render farm unavailable")

	// A failed session may be resubmitted.
	require.NoError(t, gen.Start(context.Background(), "s1", "plan"))
}

type stubVideoGen struct {
	payload string
}

func (g stubVideoGen) Generate(ctx context.Context, plan string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(g.payload)), nil
}

type stubSpeech struct {
	gotText string
}

func (s *stubSpeech) Synthesize(ctx context.Context, text string) ([]byte, error) {
	s.gotText = text
	return []byte("mp3-bytes"), nil
}

func TestRealPipelineStoresVideoAndNarration(t *testing.T) {
	repo := memory.NewSessionRepo()
	store := memory.NewObjectStore("http://test")
	newAnalyzedSession(t, repo, "s1")

	speech := &stubSpeech{}
	gen := NewGenerator(repo, store, stubVideoGen{payload: "fake-video"}, speech, time.Millisecond)
	require.NoError(t, gen.Start(context.Background(), "s1", "approved plan"))

	session := waitForStatus(t, repo, "s1", domain.StatusCompleted)
	assert.True(t, store.Has(domain.GeneratedVideoKey("s1")))
	assert.True(t, store.Has(domain.NarrationKey("s1")))
	assert.Equal(t, store.URL(domain.GeneratedVideoKey("s1")), session.VideoURL)
	assert.Equal(t, "approved plan", speech.gotText)
}

func TestCompletedSessionCannotRestart(t *testing.T) {
	repo := memory.NewSessionRepo()
	newAnalyzedSession(t, repo, "s1")

	gen := NewGenerator(repo, memory.NewObjectStore("http://test"), stubVideoGen{payload: "v"}, nil, time.Millisecond)
	require.NoError(t, gen.Start(context.Background(), "s1", "plan"))
	waitForStatus(t, repo, "s1", domain.StatusCompleted)

	err := gen.Start(context.Background(), "s1", "plan")
	assert.ErrorIs(t, err, domain.ErrGenerationActive)
}

func TestProgressNeverRegresses(t *testing.T) {
	repo := memory.NewSessionRepo()
	newAnalyzedSession(t, repo, "s1")
	ctx := context.Background()

	require.NoError(t, repo.TryMarkQueued(ctx, "s1", "plan"))
	claimed, err := repo.CASStatus(ctx, "s1", domain.StatusQueued, domain.StatusProcessing)
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, repo.UpdateProgress(ctx, "s1", 60, 120))
	require.NoError(t, repo.UpdateProgress(ctx, "s1", 30, 200))

	session, err := repo.GetBySessionID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, float64(60), session.Progress)
}
