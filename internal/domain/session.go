package domain

import "time"

// SessionState enumerates intake flow states for a user.
type SessionState string

const (
	SessionStateIdle           SessionState = "idle"
	SessionStateAwaitingPrompt SessionState = "awaiting_prompt"
	SessionStateGenerating     SessionState = "generating"
)

// Session tracks a user's in-progress intake between /generate and job
// creation. At most one row exists per user. Version increments on every
// write; writers must present the version they last read.
type Session struct {
	UserID        int64
	State         SessionState
	Photos        []string
	CurrentPrompt string
	LastJobID     *int64
	Version       int64
	UpdatedAt     time.Time
}

// SessionUpdate carries the optional columns of a partial session update.
// Nil fields leave the stored values untouched.
type SessionUpdate struct {
	Photos        *[]string
	CurrentPrompt *string
	LastJobID     *int64
}
