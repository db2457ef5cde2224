package domain

import "time"

type GenerationStatus string

const (
	// StatusAnalyzed is the state a session is born in: artifacts stored,
	// analysis and plan produced, generation not yet requested.
	StatusAnalyzed   GenerationStatus = "analyzed"
	StatusQueued     GenerationStatus = "queued"
	StatusProcessing GenerationStatus = "processing"
	StatusCompleted  GenerationStatus = "completed"
	StatusFailed     GenerationStatus = "failed"
)

// IsTerminal reports whether no further transitions may occur.
// Note: "failed" is terminal for a running job, but a failed session
// may be re-submitted for generation (see CanStartGeneration).
func (s GenerationStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanStartGeneration reports whether a generation job may be started
// from this state. Queued and processing sessions already own a job;
// completed sessions already produced their one output video.
func (s GenerationStatus) CanStartGeneration() bool {
	return s == StatusAnalyzed || s == StatusFailed
}

// SessionTTL is how long a session and its artifacts are retained.
const SessionTTL = 7 * 24 * time.Hour

// Session is one upload-through-generation cycle owned by a user.
type Session struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`

	// Stored artifact locations. Video is required, the rest optional.
	SampleVideoURL    string `json:"sample_video_path"`
	CharacterImageURL string `json:"character_image_path,omitempty"`
	AudioURL          string `json:"audio_path,omitempty"`

	Analysis string `json:"analysis"`
	Plan     string `json:"plan"`

	Status                 GenerationStatus `json:"status"`
	Progress               float64          `json:"progress"`
	EstimatedTimeRemaining *int             `json:"estimated_time_remaining,omitempty"`
	ApprovedPlan           string           `json:"approved_plan,omitempty"`
	VideoURL               string           `json:"video_url,omitempty"`
	Error                  string           `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	ModifiedAt  *time.Time `json:"modified_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ExpiresAt   time.Time  `json:"expires_at"`
}

// Expired reports whether the session is past its retention window.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// AnalysisRequest carries local paths of the uploaded artifacts for the
// AI collaborator. Paths point at the temp copies, not object storage.
type AnalysisRequest struct {
	VideoPath          string
	CharacterImagePath string
	AudioPath          string
}

// AnalysisResult is the free-text output of a successful analysis call.
type AnalysisResult struct {
	Analysis string `json:"analysis"`
	Plan     string `json:"plan"`
}
