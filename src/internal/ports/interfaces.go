package ports

import (
	"context"
	"io"
	"time"

	"github.com/reelgen/reelgen/src/internal/domain"
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Save(ctx context.Context, user *domain.User) error
}

type SessionRepository interface {
	GetBySessionID(ctx context.Context, sessionID string) (*domain.Session, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Session, error)
	Save(ctx context.Context, session *domain.Session) error
	UpdatePlan(ctx context.Context, sessionID, plan string) error

	// TryMarkQueued atomically moves the session to "queued" and records
	// the approved plan, but only from a state where generation may start.
	// Returns domain.ErrGenerationActive when a job already owns the session.
	TryMarkQueued(ctx context.Context, sessionID, approvedPlan string) error

	// CASStatus performs a compare-and-swap on the status field. The
	// returned bool is false when the session was not in `from`.
	CASStatus(ctx context.Context, sessionID string, from, to domain.GenerationStatus) (bool, error)

	// UpdateProgress records progress and the ETA in seconds. Progress is
	// monotonically non-decreasing; stale writes are absorbed, not applied.
	UpdateProgress(ctx context.Context, sessionID string, progress float64, etaSeconds int) error

	CompleteGeneration(ctx context.Context, sessionID, videoURL string, completedAt time.Time) error
	FailGeneration(ctx context.Context, sessionID, errMsg string) error

	ListExpired(ctx context.Context, now time.Time) ([]domain.Session, error)
	Delete(ctx context.Context, sessionID string) error
}

type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	URL(key string) string
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// AnalysisStrategy is one way of obtaining analysis/plan text from the AI
// collaborator. The upload path tries an ordered list of these.
type AnalysisStrategy interface {
	Name() string
	Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error)
}

// PlanReviser produces a revised plan from the prior plan plus a free-text
// modification request. No fallback chain exists on this path.
type PlanReviser interface {
	RevisePlan(ctx context.Context, analysis, plan, request string) (string, error)
}

type VideoGenerator interface {
	Generate(ctx context.Context, plan string) (io.ReadCloser, error)
}

type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
