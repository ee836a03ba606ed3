package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"videobot/internal/domain"
	"videobot/internal/seedance"
)

const (
	minPromptLength = 10
	maxPromptLength = 500
)

// promptStoplist rejects prompts that are technically long enough after
// trimming but carry no usable description.
var promptStoplist = map[string]struct{}{
	"a": {}, "i": {}, "me": {}, "test": {},
}

// ValidatePrompt checks a prompt and returns a user-facing rejection reason,
// or "" when the prompt is acceptable. Checks run in order; the first
// failure wins.
func ValidatePrompt(prompt string) string {
	if prompt == "" {
		return "Please enter a prompt describing your video."
	}
	n := utf8.RuneCountInString(prompt)
	if n < minPromptLength {
		return fmt.Sprintf(
			"Prompt is too short (%d chars). Please describe your video in at least %d characters.",
			n, minPromptLength)
	}
	if n > maxPromptLength {
		return fmt.Sprintf(
			"Prompt is too long (%d chars). Please keep it under %d characters.",
			n, maxPromptLength)
	}
	if _, generic := promptStoplist[strings.TrimSpace(prompt)]; generic {
		return "Please provide a more detailed prompt."
	}
	return ""
}

// handlePrompt validates the prompt, creates the job and runs the
// generation synchronously within this handler.
func (b *Bot) handlePrompt(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID
	prompt := strings.TrimSpace(msg.Text)

	session, err := b.store.GetUserSession(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			b.reply(chatID, "Please start a new generation with /generate first.")
			return
		}
		b.log.Error().Err(err).Int64("user_id", userID).Msg("bot: load session failed")
		b.reply(chatID, "⚠️ An error occurred. Please try again or use /reset.")
		return
	}

	if len(session.Photos) == 0 {
		b.reply(chatID, "I need photos first! Please send 1-4 reference photos using /generate.")
		return
	}

	if reason := ValidatePrompt(prompt); reason != "" {
		b.reply(chatID, "❌ "+reason)
		return
	}

	// Stage the prompt with the session version we read: a second prompt
	// racing this one fails here with a conflict instead of creating a
	// second job against the same session.
	err = b.store.UpdateUserState(ctx, userID, domain.SessionStateGenerating, session.Version, domain.SessionUpdate{CurrentPrompt: &prompt})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			b.reply(chatID, "⚠️ A generation is already being started for you. Use /status to check it.")
			return
		}
		b.log.Error().Err(err).Int64("user_id", userID).Msg("bot: stage prompt failed")
		b.reply(chatID, "⚠️ An error occurred. Please try again or use /reset.")
		return
	}

	jobID, err := b.store.CreateJob(ctx, userID, chatID, session.Photos, prompt)
	if err != nil {
		b.log.Error().Err(err).Int64("user_id", userID).Msg("bot: create job failed")
		b.reply(chatID, "⚠️ An error occurred. Please try again or use /reset.")
		return
	}

	b.runGeneration(ctx, jobID, userID, chatID, session.Photos, prompt)
}

// runGeneration drives one job through the generation client and delivers
// the outcome. The per-user cancellable context lets /reset stop the poll
// loop between polls.
func (b *Bot) runGeneration(ctx context.Context, jobID, userID, chatID int64, photos []string, prompt string) {
	genCtx, cancel := context.WithTimeout(ctx, b.cfg.GenerationTimeout)
	b.inflight.Add(userID, cancel)
	defer func() {
		b.inflight.Remove(userID)
		cancel()
	}()

	b.replyMarkdown(chatID, "🎬 *Starting video generation...*\n\n⏳ Preparing your images and prompt...\nThis may take 2-3 minutes.")

	if err := b.store.UpdateJobStatus(ctx, jobID, domain.JobStatusGenerating, domain.StatusUpdate{}); err != nil {
		b.log.Error().Err(err).Int64("job_id", jobID).Msg("bot: mark job generating failed")
	}

	go b.sendProgressUpdates(genCtx, chatID)

	result, err := b.gen.GenerateVideo(genCtx, seedance.Request{
		Prompt:     prompt,
		Images:     photos,
		Resolution: seedance.DefaultResolution,
	})
	if err != nil {
		b.finishWithError(ctx, jobID, userID, chatID, err)
		return
	}

	if result.Status == seedance.StatusCompleted {
		b.finishCompleted(ctx, jobID, userID, chatID, result)
		return
	}
	b.finishFailed(ctx, jobID, userID, chatID, result.ErrorMessage)
}

func (b *Bot) finishCompleted(ctx context.Context, jobID, userID, chatID int64, result *seedance.Result) {
	err := b.store.UpdateJobStatus(ctx, jobID, domain.JobStatusCompleted, domain.StatusUpdate{
		ProviderJobID: &result.JobID,
		ArtifactPath:  &result.ArtifactPath,
	})
	if err != nil {
		b.log.Error().Err(err).Int64("job_id", jobID).Msg("bot: mark job completed failed")
	}

	b.replyMarkdown(chatID, "✅ *Video generated successfully!*\n\nYour video is ready. Sending it now...")
	b.deliverArtifact(chatID, result.ArtifactPath, "🎬 Your AI-generated video!")
	b.replyMarkdown(chatID, "🎉 *Done!* Your AI-generated video has been sent!\n\nUse /generate to create another video, or /templates for ideas.")

	if err := b.store.ResetUserGenerationState(ctx, userID); err != nil {
		b.log.Error().Err(err).Int64("user_id", userID).Msg("bot: reset after success failed")
	}
}

func (b *Bot) finishFailed(ctx context.Context, jobID, userID, chatID int64, errMsg string) {
	if errMsg == "" {
		errMsg = "unknown error"
	}
	err := b.store.UpdateJobStatus(ctx, jobID, domain.JobStatusFailed, domain.StatusUpdate{ErrorMessage: &errMsg})
	if err != nil {
		b.log.Error().Err(err).Int64("job_id", jobID).Msg("bot: mark job failed failed")
	}
	if err := b.store.ClearUserSession(ctx, userID); err != nil {
		b.log.Error().Err(err).Int64("user_id", userID).Msg("bot: clear session failed")
	}
	b.replyMarkdown(chatID, "❌ *Generation failed*\n\n"+errMsg)
}

// sendProgressUpdates posts an estimated progress bar every status update
// interval until the generation context ends. The estimate is elapsed time
// against the generation timeout; the provider does not expose progress
// until the job terminates.
func (b *Bot) sendProgressUpdates(ctx context.Context, chatID int64) {
	if b.cfg.StatusUpdateInterval <= 0 {
		return
	}
	ticker := time.NewTicker(b.cfg.StatusUpdateInterval)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			progress := int(time.Since(start) * 100 / b.cfg.GenerationTimeout)
			if progress > 95 {
				progress = 95
			}
			b.replyMarkdown(chatID, fmt.Sprintf(
				"🎬 *Generating Your Video*\n\n%s %d%%\n\n⏳ AI is working on your video. This typically takes 2-3 minutes...",
				progressBar(progress), progress))
		}
	}
}

// finishWithError handles Go-level errors from the generation client:
// cancellation via /reset, the generation timeout, or unexpected failures.
func (b *Bot) finishWithError(ctx context.Context, jobID, userID, chatID int64, genErr error) {
	switch {
	case errors.Is(genErr, context.Canceled):
		// /reset already cleaned the session; just close out the job.
		msg := "cancelled by user"
		if err := b.store.UpdateJobStatus(ctx, jobID, domain.JobStatusFailed, domain.StatusUpdate{ErrorMessage: &msg}); err != nil {
			b.log.Error().Err(err).Int64("job_id", jobID).Msg("bot: mark cancelled job failed")
		}
		return
	case errors.Is(genErr, context.DeadlineExceeded):
		b.finishFailed(ctx, jobID, userID, chatID, "generation timed out")
		return
	}

	b.log.Error().Err(genErr).Int64("job_id", jobID).Msg("bot: generation error")
	msg := genErr.Error()
	if err := b.store.UpdateJobStatus(ctx, jobID, domain.JobStatusFailed, domain.StatusUpdate{ErrorMessage: &msg}); err != nil {
		b.log.Error().Err(err).Int64("job_id", jobID).Msg("bot: mark job failed failed")
	}
	if err := b.store.ClearUserSession(ctx, userID); err != nil {
		b.log.Error().Err(err).Int64("user_id", userID).Msg("bot: clear session failed")
	}
	b.reply(chatID, "⚠️ An error occurred. Please try again or use /reset.")
}
