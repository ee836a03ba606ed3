package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"videobot/internal/domain"
)

// Store implements domain.Store on PostgreSQL. Every public method runs as
// one transaction: reads-then-writes commit together or roll back, and no
// transaction is held open across calls.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a job/session store backed by the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const jobColumns = `id, user_id, chat_id, photos, prompt, status, provider_job_id, artifact_path, error_message, created_at, completed_at`

// CreateJob inserts a pending job and upserts the session to generating in
// the same transaction. The caller must not assume the job exists when an
// error is returned.
func (s *Store) CreateJob(ctx context.Context, userID, chatID int64, photos []string, prompt string) (int64, error) {
	photosJSON, err := marshalPhotos(photos)
	if err != nil {
		return 0, err
	}

	var jobID int64
	err = s.withTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
INSERT INTO jobs (user_id, chat_id, photos, prompt, status)
VALUES ($1, $2, $3, $4, 'pending')
RETURNING id;
`, userID, chatID, photosJSON, prompt)
		if err := row.Scan(&jobID); err != nil {
			return fmt.Errorf("insert job: %w", err)
		}

		_, err := tx.Exec(ctx, `
INSERT INTO user_sessions (user_id, state, photos, current_prompt, last_job_id, updated_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (user_id) DO UPDATE SET
	state = EXCLUDED.state,
	photos = EXCLUDED.photos,
	current_prompt = EXCLUDED.current_prompt,
	last_job_id = EXCLUDED.last_job_id,
	version = user_sessions.version + 1,
	updated_at = now();
`, userID, domain.SessionStateGenerating, photosJSON, prompt, jobID)
		if err != nil {
			return fmt.Errorf("upsert session: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return jobID, nil
}

// GetJob fetches a job by id.
func (s *Store) GetJob(ctx context.Context, jobID int64) (*domain.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1;`, jobID)
	return scanJob(row)
}

// GetUserJobs returns the user's jobs newest first, capped at limit.
func (s *Store) GetUserJobs(ctx context.Context, userID int64, limit int) ([]domain.Job, error) {
	rows, err := s.pool.Query(ctx, `
SELECT `+jobColumns+`
FROM jobs
WHERE user_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2;
`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJobs(rows)
}

// UpdateJobStatus applies a validated status transition. The current row is
// locked while the transition table is consulted, so concurrent writers
// cannot race a job out of a terminal state.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID int64, status domain.JobStatus, update domain.StatusUpdate) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		var current domain.JobStatus
		row := tx.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1 FOR UPDATE;`, jobID)
		if err := row.Scan(&current); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrNotFound
			}
			return err
		}
		if !domain.CanTransition(current, status) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current, status)
		}

		_, err := tx.Exec(ctx, `
UPDATE jobs
SET status = $2,
    provider_job_id = COALESCE($3, provider_job_id),
    artifact_path = COALESCE($4, artifact_path),
    error_message = COALESCE($5, error_message),
    completed_at = CASE WHEN $2 = 'completed' THEN now() ELSE completed_at END
WHERE id = $1;
`, jobID, status, update.ProviderJobID, update.ArtifactPath, update.ErrorMessage)
		return err
	})
}

// GetPendingJobs lists jobs still pending, oldest first. Meant for an
// out-of-process worker to recover jobs stranded by a crash.
func (s *Store) GetPendingJobs(ctx context.Context) ([]domain.Job, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+jobColumns+` FROM jobs WHERE status = 'pending' ORDER BY id;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJobs(rows)
}

// CountJobsByStatus returns job totals grouped by status.
func (s *Store) CountJobsByStatus(ctx context.Context) (map[domain.JobStatus]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, count(*) FROM jobs GROUP BY status;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.JobStatus]int)
	for rows.Next() {
		var status domain.JobStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// GetUserSession fetches the user's session row.
func (s *Store) GetUserSession(ctx context.Context, userID int64) (*domain.Session, error) {
	row := s.pool.QueryRow(ctx, `
SELECT user_id, state, photos, current_prompt, last_job_id, version, updated_at
FROM user_sessions
WHERE user_id = $1;
`, userID)

	var sess domain.Session
	var photosJSON []byte
	if err := row.Scan(&sess.UserID, &sess.State, &photosJSON, &sess.CurrentPrompt, &sess.LastJobID, &sess.Version, &sess.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(photosJSON, &sess.Photos); err != nil {
		return nil, fmt.Errorf("decode session photos: %w", err)
	}
	return &sess, nil
}

// UpdateUserState partially updates the session, inserting a row when none
// exists. The stored version must match the one the caller read; a stale
// version fails with domain.ErrConflict so two racing prompt submissions
// cannot both win.
func (s *Store) UpdateUserState(ctx context.Context, userID int64, state domain.SessionState, version int64, update domain.SessionUpdate) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		var current int64
		row := tx.QueryRow(ctx, `SELECT version FROM user_sessions WHERE user_id = $1 FOR UPDATE;`, userID)
		err := row.Scan(&current)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return insertSession(ctx, tx, userID, state, update)
		case err != nil:
			return err
		}

		if version != current {
			return fmt.Errorf("%w: have %d, want %d", domain.ErrConflict, version, current)
		}

		var photosJSON []byte
		if update.Photos != nil {
			photosJSON, err = marshalPhotos(*update.Photos)
			if err != nil {
				return err
			}
		}
		_, err = tx.Exec(ctx, `
UPDATE user_sessions
SET state = $2,
    photos = COALESCE($3, photos),
    current_prompt = COALESCE($4, current_prompt),
    last_job_id = COALESCE($5, last_job_id),
    version = version + 1,
    updated_at = now()
WHERE user_id = $1;
`, userID, state, photosJSON, update.CurrentPrompt, update.LastJobID)
		return err
	})
}

// ClearUserSession deletes the session row entirely (failure path).
func (s *Store) ClearUserSession(ctx context.Context, userID int64) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `DELETE FROM user_sessions WHERE user_id = $1;`, userID)
		return err
	})
}

// ResetUserGenerationState returns the session to idle while keeping
// last_job_id (success path).
func (s *Store) ResetUserGenerationState(ctx context.Context, userID int64) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
UPDATE user_sessions
SET state = 'idle',
    photos = '[]',
    current_prompt = '',
    version = version + 1,
    updated_at = now()
WHERE user_id = $1;
`, userID)
		return err
	})
}

func insertSession(ctx context.Context, tx pgx.Tx, userID int64, state domain.SessionState, update domain.SessionUpdate) error {
	photos := []string{}
	if update.Photos != nil {
		photos = *update.Photos
	}
	photosJSON, err := marshalPhotos(photos)
	if err != nil {
		return err
	}
	prompt := ""
	if update.CurrentPrompt != nil {
		prompt = *update.CurrentPrompt
	}
	_, err = tx.Exec(ctx, `
INSERT INTO user_sessions (user_id, state, photos, current_prompt, last_job_id, updated_at)
VALUES ($1, $2, $3, $4, $5, now());
`, userID, state, photosJSON, prompt, update.LastJobID)
	return err
}

func (s *Store) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func marshalPhotos(photos []string) ([]byte, error) {
	if photos == nil {
		photos = []string{}
	}
	b, err := json.Marshal(photos)
	if err != nil {
		return nil, fmt.Errorf("encode photos: %w", err)
	}
	return b, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var job domain.Job
	var photosJSON []byte
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.ChatID,
		&photosJSON,
		&job.Prompt,
		&job.Status,
		&job.ProviderJobID,
		&job.ArtifactPath,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.CompletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(photosJSON, &job.Photos); err != nil {
		return nil, fmt.Errorf("decode job photos: %w", err)
	}
	return &job, nil
}

func collectJobs(rows pgx.Rows) ([]domain.Job, error) {
	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

var _ domain.Store = (*Store)(nil)
