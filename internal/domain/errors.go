package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("session version conflict")
	ErrInvalidTransition = errors.New("invalid job status transition")
	ErrInvalidStatus     = errors.New("unknown job status")
)
