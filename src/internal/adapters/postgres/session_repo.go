package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"github.com/reelgen/reelgen/src/internal/domain"
)

type PostgresSessionRepo struct {
	db *sql.DB
}

func NewConnection(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

func NewSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

func (r *PostgresSessionRepo) InitSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			session_id VARCHAR(255) PRIMARY KEY,
			id VARCHAR(255) NOT NULL,
			user_id VARCHAR(255) NOT NULL,
			sample_video_url TEXT NOT NULL,
			character_image_url TEXT,
			audio_url TEXT,
			analysis TEXT NOT NULL,
			plan TEXT NOT NULL,
			status VARCHAR(50) NOT NULL, -- analyzed, queued, processing, completed, failed
			progress FLOAT DEFAULT 0,
			estimated_time_remaining INT,
			approved_plan TEXT,
			video_url TEXT,
			error TEXT,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			modified_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ,
			expires_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions (user_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_sessions_expiry ON sessions (expires_at);
	`)
	return err
}

const sessionColumns = `
	session_id, id, user_id, sample_video_url, character_image_url, audio_url,
	analysis, plan, status, progress, estimated_time_remaining,
	approved_plan, video_url, error,
	created_at, modified_at, completed_at, expires_at
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	s := &domain.Session{}
	var characterImage, audio, approvedPlan, videoURL, errMsg sql.NullString
	var eta sql.NullInt64
	var statusStr string
	var modifiedAt, completedAt sql.NullTime

	err := row.Scan(
		&s.SessionID, &s.ID, &s.UserID, &s.SampleVideoURL, &characterImage, &audio,
		&s.Analysis, &s.Plan, &statusStr, &s.Progress, &eta,
		&approvedPlan, &videoURL, &errMsg,
		&s.CreatedAt, &modifiedAt, &completedAt, &s.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	s.CharacterImageURL = characterImage.String
	s.AudioURL = audio.String
	s.ApprovedPlan = approvedPlan.String
	s.VideoURL = videoURL.String
	s.Error = errMsg.String
	s.Status = domain.GenerationStatus(statusStr)
	if eta.Valid {
		v := int(eta.Int64)
		s.EstimatedTimeRemaining = &v
	}
	if modifiedAt.Valid {
		t := modifiedAt.Time
		s.ModifiedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		s.CompletedAt = &t
	}
	return s, nil
}

func (r *PostgresSessionRepo) GetBySessionID(ctx context.Context, sessionID string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE session_id = $1`, sessionID)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *PostgresSessionRepo) ListByUser(ctx context.Context, userID string) ([]domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

func (r *PostgresSessionRepo) Save(ctx context.Context, s *domain.Session) error {
	var eta sql.NullInt64
	if s.EstimatedTimeRemaining != nil {
		eta = sql.NullInt64{Int64: int64(*s.EstimatedTimeRemaining), Valid: true}
	}
	query := `
		INSERT INTO sessions (
			session_id, id, user_id, sample_video_url, character_image_url, audio_url,
			analysis, plan, status, progress, estimated_time_remaining,
			approved_plan, video_url, error, created_at, expires_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16
		)
		ON CONFLICT (session_id) DO UPDATE SET
			analysis = EXCLUDED.analysis,
			plan = EXCLUDED.plan,
			status = EXCLUDED.status,
			progress = EXCLUDED.progress,
			estimated_time_remaining = EXCLUDED.estimated_time_remaining;
	`
	_, err := r.db.ExecContext(ctx, query,
		s.SessionID, s.ID, s.UserID, s.SampleVideoURL, s.CharacterImageURL, s.AudioURL,
		s.Analysis, s.Plan, string(s.Status), s.Progress, eta,
		s.ApprovedPlan, s.VideoURL, s.Error, s.CreatedAt, s.ExpiresAt,
	)
	return err
}

func (r *PostgresSessionRepo) UpdatePlan(ctx context.Context, sessionID, plan string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET plan = $2, modified_at = NOW() WHERE session_id = $1`,
		sessionID, plan)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PostgresSessionRepo) TryMarkQueued(ctx context.Context, sessionID, approvedPlan string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			status = 'queued',
			approved_plan = $2,
			progress = 0,
			estimated_time_remaining = 300,
			error = ''
		WHERE session_id = $1 AND status IN ('analyzed', 'failed')
	`, sessionID, approvedPlan)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 1 {
		return nil
	}

	// CAS lost: either the session doesn't exist or a job already owns it.
	if _, err := r.GetBySessionID(ctx, sessionID); err != nil {
		return err
	}
	return domain.ErrGenerationActive
}

func (r *PostgresSessionRepo) CASStatus(ctx context.Context, sessionID string, from, to domain.GenerationStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET status = $3 WHERE session_id = $1 AND status = $2`,
		sessionID, string(from), string(to))
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *PostgresSessionRepo) UpdateProgress(ctx context.Context, sessionID string, progress float64, etaSeconds int) error {
	// GREATEST absorbs stale writes so polls never observe progress going
	// backwards while the session is processing.
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			progress = GREATEST(progress, $2),
			estimated_time_remaining = $3
		WHERE session_id = $1 AND status = 'processing'
	`, sessionID, progress, etaSeconds)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PostgresSessionRepo) CompleteGeneration(ctx context.Context, sessionID, videoURL string, completedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			status = 'completed',
			progress = 100,
			estimated_time_remaining = 0,
			video_url = $2,
			completed_at = $3,
			expires_at = $4,
			error = ''
		WHERE session_id = $1 AND status = 'processing'
	`, sessionID, videoURL, completedAt, completedAt.Add(domain.SessionTTL))
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PostgresSessionRepo) FailGeneration(ctx context.Context, sessionID, errMsg string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			status = 'failed',
			error = $2
		WHERE session_id = $1 AND status IN ('queued', 'processing')
	`, sessionID, errMsg)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PostgresSessionRepo) ListExpired(ctx context.Context, now time.Time) ([]domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE expires_at < $1`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

func (r *PostgresSessionRepo) Delete(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = $1`, sessionID)
	return err
}

func requireRow(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}
