package bot

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

func TestDeliverArtifactSendsVideo(t *testing.T) {
	env := newTestEnv(t)
	path, err := env.bot.videos.Write(context.Background(), "clip.mp4", []byte("video"))
	if err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	env.bot.deliverArtifact(10, path, "caption")

	if len(env.sender.videos) != 1 || env.sender.videos[0] != path {
		t.Fatalf("videos sent = %v, want [%s]", env.sender.videos, path)
	}
}

func TestDeliverArtifactMissingFile(t *testing.T) {
	env := newTestEnv(t)
	env.bot.deliverArtifact(10, env.bot.videos.BasePath()+"/gone.mp4", "caption")

	if len(env.sender.videos) != 0 {
		t.Fatalf("no video should be sent for a missing file")
	}
	if !env.sender.contains("Video file not found") {
		t.Fatalf("expected missing-file message, got %q", env.sender.lastMessage())
	}
}

func TestDeliverArtifactTooLarge(t *testing.T) {
	env := newTestEnv(t)
	path, err := env.bot.videos.Write(context.Background(), "big.mp4", make([]byte, maxVideoBytes+1))
	if err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	env.bot.deliverArtifact(10, path, "caption")

	if len(env.sender.videos) != 0 {
		t.Fatalf("oversized video must not be sent")
	}
	if !env.sender.contains("too large for Telegram") {
		t.Fatalf("expected size-limit message, got %q", env.sender.lastMessage())
	}
}

func TestDeliverArtifactSendFailure(t *testing.T) {
	env := newTestEnv(t)
	path, err := env.bot.videos.Write(context.Background(), "clip.mp4", []byte("video"))
	if err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	env.sender.sendErr = fmt.Errorf("telegram: 502")

	env.bot.deliverArtifact(10, path, "caption")

	if !env.sender.contains("couldn't send it") {
		t.Fatalf("expected send-failure message, got %q", env.sender.lastMessage())
	}
}

func TestDeliverMockArtifact(t *testing.T) {
	env := newTestEnv(t)
	content := "Generated video placeholder\nPrompt: " + strings.Repeat("x", 600)
	path, err := env.bot.videos.Write(context.Background(), "job.mock", []byte(content))
	if err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	env.bot.deliverArtifact(10, path, "caption")

	if len(env.sender.videos) != 0 {
		t.Fatalf("mock artifact must not be sent as a video")
	}
	msg := env.sender.lastMessage()
	if !strings.Contains(msg, "MOCK MODE") {
		t.Fatalf("expected mock-mode banner in %q", msg)
	}
	if !strings.Contains(msg, content[:mockExcerptLength]+"...") {
		t.Fatalf("expected truncated excerpt in reply")
	}
}
