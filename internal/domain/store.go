package domain

import "context"

// Store defines persistence for jobs and user sessions. Every method is
// independently atomic: implementations run each call inside a single
// transaction, so a crash between two calls never leaves a half-written
// record behind.
type Store interface {
	// CreateJob inserts a pending job and, in the same transaction, upserts
	// the user's session to the generating state pointing at the new job.
	CreateJob(ctx context.Context, userID, chatID int64, photos []string, prompt string) (int64, error)
	GetJob(ctx context.Context, jobID int64) (*Job, error)
	// GetUserJobs returns the user's jobs newest first, capped at limit.
	GetUserJobs(ctx context.Context, userID int64, limit int) ([]Job, error)
	// UpdateJobStatus applies a validated status transition. Moving out of a
	// terminal state fails with ErrInvalidTransition.
	UpdateJobStatus(ctx context.Context, jobID int64, status JobStatus, update StatusUpdate) error
	// GetPendingJobs lists jobs still in the pending state, oldest first.
	GetPendingJobs(ctx context.Context) ([]Job, error)
	CountJobsByStatus(ctx context.Context) (map[JobStatus]int, error)

	GetUserSession(ctx context.Context, userID int64) (*Session, error)
	// UpdateUserState partially updates (or inserts) the user's session.
	// version must match the stored row; a stale version fails with
	// ErrConflict. Pass 0 when inserting.
	UpdateUserState(ctx context.Context, userID int64, state SessionState, version int64, update SessionUpdate) error
	ClearUserSession(ctx context.Context, userID int64) error
	// ResetUserGenerationState returns the session to idle while keeping
	// last_job_id, so /status can report the finished job once more.
	ResetUserGenerationState(ctx context.Context, userID int64) error
}
