package seedance

import "context"

// Status is the provider-side lifecycle of a generation job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Request captures the inputs of one video generation.
type Request struct {
	Prompt     string
	Images     []string // local photo paths, 1-4 entries
	Resolution string   // defaults to DefaultResolution
	Duration   int      // seconds, 0 means provider default
	Seed       *int
}

// Result is the normalized outcome of a generation attempt. Provider-caused
// failures are reported here with StatusFailed, never as Go errors; the
// only error a Generator returns is context cancellation.
type Result struct {
	JobID        string
	Status       Status
	ArtifactPath string // local path of the downloaded video, set on completed
	ErrorMessage string
	Progress     int // 0-100
}

// Generator is the contract shared by the live and simulated backends.
type Generator interface {
	// GenerateVideo submits the request and blocks until a terminal result
	// or the poll ceiling is reached.
	GenerateVideo(ctx context.Context, req Request) (*Result, error)
	// JobStatus fetches the current provider-side state of a job.
	JobStatus(ctx context.Context, jobID string) (*Result, error)
	// CancelJob asks the provider to abandon a pending or processing job.
	CancelJob(ctx context.Context, jobID string) (bool, error)
}

// DefaultResolution is used when the request does not specify one.
const DefaultResolution = "1080p"

func failedResult(jobID, msg string) *Result {
	return &Result{JobID: jobID, Status: StatusFailed, ErrorMessage: msg}
}
