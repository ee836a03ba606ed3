package bot

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"videobot/internal/domain"
	"videobot/internal/seedance"
)

func TestHandleResetClearsPhotosAndSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.bot.handlePhoto(ctx, photoMessage(1, 10))
	env.bot.handlePhoto(ctx, photoMessage(1, 10))

	session, err := env.store.GetUserSession(ctx, 1)
	if err != nil {
		t.Fatalf("GetUserSession: %v", err)
	}
	paths := session.Photos
	if len(paths) != 2 {
		t.Fatalf("setup: photos = %d, want 2", len(paths))
	}

	env.bot.handleReset(ctx, textMessage(1, 10, "/reset"))

	for _, path := range paths {
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("photo %s should be deleted, stat err = %v", path, err)
		}
	}
	session, err = env.store.GetUserSession(ctx, 1)
	if err != nil {
		t.Fatalf("GetUserSession after reset: %v", err)
	}
	if session.State != domain.SessionStateIdle || len(session.Photos) != 0 {
		t.Fatalf("session after reset = %+v, want idle with no photos", session)
	}
	if !env.sender.contains("Generation cancelled and cleared") {
		t.Fatalf("expected reset confirmation, got %q", env.sender.lastMessage())
	}
}

// A /reset issued while a generation is running must cancel the in-flight
// call and leave the job failed, without disturbing the reset session.
func TestResetCancelsInFlightGeneration(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.bot.handlePhoto(ctx, photoMessage(1, 10))
	env.gen.block = make(chan struct{}) // generation hangs until cancelled

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		env.bot.handlePrompt(ctx, textMessage(1, 10, "Dancing in a futuristic city at night"))
	}()

	// Wait for the generation to register itself before cancelling.
	deadline := time.Now().Add(2 * time.Second)
	for {
		env.bot.inflight.mu.Lock()
		_, running := env.bot.inflight.cancels[1]
		env.bot.inflight.mu.Unlock()
		if running {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("generation never registered in-flight")
		}
		time.Sleep(5 * time.Millisecond)
	}

	env.bot.handleReset(ctx, textMessage(1, 10, "/reset"))
	wg.Wait()

	job, err := env.store.GetJob(ctx, 1)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("job status after cancel = %q, want %q", job.Status, domain.JobStatusFailed)
	}
	if job.ErrorMessage != "cancelled by user" {
		t.Fatalf("error message = %q, want %q", job.ErrorMessage, "cancelled by user")
	}

	session, err := env.store.GetUserSession(ctx, 1)
	if err != nil {
		t.Fatalf("GetUserSession: %v", err)
	}
	if session.State != domain.SessionStateIdle {
		t.Fatalf("session after cancel = %q, want %q", session.State, domain.SessionStateIdle)
	}
}

func TestHandleStatsAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.store.CreateJob(ctx, 1, 10, nil, "Dancing in a futuristic city"); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	env.bot.handleStats(ctx, textMessage(1, 10, "/stats"))
	if len(env.sender.messages) != 0 {
		t.Fatalf("non-admin got a stats reply: %q", env.sender.lastMessage())
	}

	env.bot.handleStats(ctx, textMessage(env.bot.cfg.AdminUserID, 10, "/stats"))
	if !env.sender.contains("Job Stats") {
		t.Fatalf("admin should get stats, got %q", env.sender.lastMessage())
	}
	if !env.sender.contains("pending: 1") {
		t.Fatalf("expected pending count in stats, got %q", env.sender.lastMessage())
	}
}

func TestHandleStartResetsState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.bot.handlePhoto(ctx, photoMessage(1, 10))
	env.bot.handleStart(ctx, textMessage(1, 10, "/start"))

	session, err := env.store.GetUserSession(ctx, 1)
	if err != nil {
		t.Fatalf("GetUserSession: %v", err)
	}
	if session.State != domain.SessionStateIdle {
		t.Fatalf("state after /start = %q, want %q", session.State, domain.SessionStateIdle)
	}
	if !env.sender.contains("Seedance Bot") {
		t.Fatalf("expected welcome message")
	}
}

func TestGenerationErrorClearsSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.bot.handlePhoto(ctx, photoMessage(1, 10))

	env.gen.err = errors.New("provider connection refused")
	env.gen.result = &seedance.Result{}

	env.bot.handlePrompt(ctx, textMessage(1, 10, "Dancing in a futuristic city at night"))

	job, err := env.store.GetJob(ctx, 1)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("job status = %q, want %q", job.Status, domain.JobStatusFailed)
	}
	if _, err := env.store.GetUserSession(ctx, 1); err == nil {
		t.Fatalf("session should be cleared after a generation error")
	}
}
