package bot

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"videobot/internal/domain"
)

func TestHandleStatusIdle(t *testing.T) {
	env := newTestEnv(t)
	env.bot.handleStatus(context.Background(), textMessage(1, 10, "/status"))

	if !env.sender.contains("No active generation") {
		t.Fatalf("expected idle status, got %q", env.sender.lastMessage())
	}
}

func TestHandleStatusInProgress(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	jobID, err := env.store.CreateJob(ctx, 1, 10, []string{"p1", "p2"}, "Dancing in a futuristic city at night")
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := env.store.UpdateJobStatus(ctx, jobID, domain.JobStatusGenerating, domain.StatusUpdate{}); err != nil {
		t.Fatalf("UpdateJobStatus: %v", err)
	}

	env.bot.handleStatus(ctx, textMessage(1, 10, "/status"))

	msg := env.sender.lastMessage()
	if !strings.Contains(msg, "🎬") {
		t.Fatalf("expected generating emoji in %q", msg)
	}
	if !strings.Contains(msg, "*Status:* Generating") {
		t.Fatalf("expected title-cased status in %q", msg)
	}
	if !strings.Contains(msg, "Photos: 2") {
		t.Fatalf("expected photo count in %q", msg)
	}
}

func TestHandleStatusCompletedResetsSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	jobID, err := env.store.CreateJob(ctx, 1, 10, []string{"p1"}, "Dancing in a futuristic city at night")
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := env.store.UpdateJobStatus(ctx, jobID, domain.JobStatusGenerating, domain.StatusUpdate{}); err != nil {
		t.Fatalf("to generating: %v", err)
	}
	if err := env.store.UpdateJobStatus(ctx, jobID, domain.JobStatusCompleted, domain.StatusUpdate{}); err != nil {
		t.Fatalf("to completed: %v", err)
	}

	env.bot.handleStatus(ctx, textMessage(1, 10, "/status"))

	if !env.sender.contains("Last Generation Complete") {
		t.Fatalf("expected completion status, got %q", env.sender.lastMessage())
	}
	session, err := env.store.GetUserSession(ctx, 1)
	if err != nil {
		t.Fatalf("GetUserSession: %v", err)
	}
	if session.State != domain.SessionStateIdle {
		t.Fatalf("state after completed status = %q, want %q", session.State, domain.SessionStateIdle)
	}
}

func TestHandleStatusFailedClearsSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	jobID, err := env.store.CreateJob(ctx, 1, 10, []string{"p1"}, "Dancing in a futuristic city at night")
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	errMsg := "backend exploded"
	if err := env.store.UpdateJobStatus(ctx, jobID, domain.JobStatusFailed, domain.StatusUpdate{ErrorMessage: &errMsg}); err != nil {
		t.Fatalf("to failed: %v", err)
	}

	env.bot.handleStatus(ctx, textMessage(1, 10, "/status"))

	if !env.sender.contains("Last Generation Failed") {
		t.Fatalf("expected failure status, got %q", env.sender.lastMessage())
	}
	if !env.sender.contains("backend exploded") {
		t.Fatalf("expected stored error message in status output")
	}
	if _, err := env.store.GetUserSession(ctx, 1); err == nil {
		t.Fatalf("session should be cleared after failed status")
	}
}

func TestHandleHistoryOrderAndLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < historyLimit+2; i++ {
		if _, err := env.store.CreateJob(ctx, 1, 10, nil, fmt.Sprintf("prompt number %d for history", i)); err != nil {
			t.Fatalf("CreateJob %d: %v", i, err)
		}
	}

	env.bot.handleHistory(ctx, textMessage(1, 10, "/history"))

	msg := env.sender.lastMessage()
	if got := strings.Count(msg, "Job #"); got != historyLimit {
		t.Fatalf("history shows %d jobs, want %d", got, historyLimit)
	}
	// Newest first: the most recent job leads, the two oldest are cut.
	first := strings.Index(msg, fmt.Sprintf("Job #%d", historyLimit+2))
	if first < 0 {
		t.Fatalf("newest job missing from history:\n%s", msg)
	}
	if strings.Contains(msg, "Job #1*") || strings.Contains(msg, "Job #2*") {
		t.Fatalf("oldest jobs should be cut from history:\n%s", msg)
	}
}

func TestHandleHistoryEmpty(t *testing.T) {
	env := newTestEnv(t)
	env.bot.handleHistory(context.Background(), textMessage(1, 10, "/history"))

	if !env.sender.contains("No previous generations") {
		t.Fatalf("expected empty history message, got %q", env.sender.lastMessage())
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		s    string
		max  int
		want string
	}{
		{"short", 30, "short"},
		{strings.Repeat("a", 30), 30, strings.Repeat("a", 30)},
		{strings.Repeat("a", 31), 30, strings.Repeat("a", 30) + "..."},
		{strings.Repeat("é", 31), 30, strings.Repeat("é", 30) + "..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.s, tt.max); got != tt.want {
			t.Fatalf("truncate(%q, %d) = %q, want %q", tt.s, tt.max, got, tt.want)
		}
	}
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		progress int
		want     string
	}{
		{0, strings.Repeat("░", 20)},
		{50, strings.Repeat("█", 10) + strings.Repeat("░", 10)},
		{100, strings.Repeat("█", 20)},
		{-5, strings.Repeat("░", 20)},
		{140, strings.Repeat("█", 20)},
	}
	for _, tt := range tests {
		if got := progressBar(tt.progress); got != tt.want {
			t.Fatalf("progressBar(%d) = %q, want %q", tt.progress, got, tt.want)
		}
	}
}

func TestFormatJobDetails(t *testing.T) {
	created := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	done := created.Add(2 * time.Minute)
	job := &domain.Job{
		ID:            7,
		Status:        domain.JobStatusCompleted,
		ProviderJobID: "prov-7",
		CreatedAt:     created,
		CompletedAt:   &done,
	}

	got := formatJobDetails(job)
	for _, want := range []string{
		"*Status:* Completed",
		"*Job ID:* `prov-7`",
		"*Started:* 2025-03-14 09:30",
		"*Completed:* 2025-03-14 09:32",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("details missing %q:\n%s", want, got)
		}
	}
}
