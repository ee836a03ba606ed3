package seedance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"videobot/internal/storage"
)

// Mock is the simulated backend. It fabricates a job id, waits a short
// fixed delay and writes a descriptive placeholder artifact so the rest of
// the pipeline can be exercised without provider access. It never fails
// and never reports partial progress.
type Mock struct {
	store *storage.FileStore
	delay time.Duration
}

// MockOptions configures the simulated backend.
type MockOptions struct {
	VideoStore *storage.FileStore
	// Delay is the fixed simulated processing time. It is deliberately
	// decoupled from real generation time to keep interactive latency low.
	Delay time.Duration
}

const defaultMockDelay = time.Second

// NewMock constructs the simulated backend.
func NewMock(opts MockOptions) (*Mock, error) {
	if opts.VideoStore == nil {
		return nil, fmt.Errorf("seedance: video store is required")
	}
	delay := opts.Delay
	if delay <= 0 {
		delay = defaultMockDelay
	}
	return &Mock{store: opts.VideoStore, delay: delay}, nil
}

// GenerateVideo fabricates a completed result with a placeholder artifact.
func (m *Mock) GenerateVideo(ctx context.Context, req Request) (*Result, error) {
	jobID := mockJobID()

	select {
	case <-time.After(m.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	placeholder := fmt.Sprintf(`MOCK VIDEO PLACEHOLDER
====================
Job ID: %s
Prompt: %s
Images: %d
Status: ready (mock mode)

To enable real video generation set MOCK_MODE=false and configure
SEEDANCE_API_KEY. This placeholder represents where the generated video
would be stored.
`, jobID, req.Prompt, len(req.Images))

	path, err := m.store.Write(ctx, jobID+".mock", []byte(placeholder))
	if err != nil {
		return nil, err
	}

	return &Result{
		JobID:        jobID,
		Status:       StatusCompleted,
		ArtifactPath: path,
		Progress:     100,
	}, nil
}

// JobStatus always reports completed; the simulated backend has no
// in-flight jobs to observe.
func (m *Mock) JobStatus(ctx context.Context, jobID string) (*Result, error) {
	return &Result{JobID: jobID, Status: StatusCompleted, Progress: 100}, nil
}

// CancelJob always succeeds.
func (m *Mock) CancelJob(ctx context.Context, jobID string) (bool, error) {
	return true, nil
}

func mockJobID() string {
	return "mock_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

var _ Generator = (*Mock)(nil)
