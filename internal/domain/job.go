package domain

import "time"

// JobStatus enumerates generation job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusGenerating JobStatus = "generating"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions are permitted.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusGenerating, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// transitions is the closed state machine for job statuses. Terminal states
// have no outgoing edges.
var transitions = map[JobStatus][]JobStatus{
	JobStatusPending:    {JobStatusGenerating, JobStatusProcessing, JobStatusCompleted, JobStatusFailed},
	JobStatusGenerating: {JobStatusProcessing, JobStatusCompleted, JobStatusFailed},
	JobStatusProcessing: {JobStatusCompleted, JobStatusFailed},
}

// CanTransition reports whether moving from -> to is a legal status change.
// Re-asserting the current status is allowed for non-terminal states.
func CanTransition(from, to JobStatus) bool {
	if from.Terminal() {
		return false
	}
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Job is one end-to-end video generation attempt. Photos and Prompt are
// immutable after creation; only the status fields may change, and only
// toward a terminal state.
type Job struct {
	ID            int64
	UserID        int64
	ChatID        int64
	Photos        []string
	Prompt        string
	Status        JobStatus
	ProviderJobID string
	ArtifactPath  string
	ErrorMessage  string
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

// StatusUpdate carries the optional columns of a status transition. Nil
// fields leave the stored values untouched. ErrorMessage is accepted on the
// completed path as well; it is stored as a non-fatal warning there.
type StatusUpdate struct {
	ProviderJobID *string
	ArtifactPath  *string
	ErrorMessage  *string
}
