package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"videobot/internal/domain"
	"videobot/internal/templates"
)

const welcomeText = `👋 Hello!

I'm *Seedance Bot*, and I can generate AI videos from your photos! 🎬

Here's what I can do:
• Send me 1-4 photos of yourself
• Describe the video you want
• I'll create an AI-generated video!

*Commands:*
• /generate - Start a new video generation
• /templates - See prompt ideas
• /status - Check current generation
• /history - See your previous generations
• /help - Show this help message

🔒 *Privacy:* Your photos are used only for video generation and are not stored beyond the process.`

const helpText = `📚 *Seedance Bot Help*

*Getting Started:*
1. Use /generate to start
2. Send 1-4 photos of yourself
3. Describe your video with a prompt
4. Wait 2-3 minutes for generation

*Tips for Best Results:*
• Use clear, well-lit photos
• Include your full body if you want full-body motion
• Be specific in your prompt (location, mood, actions)

*Commands:*
• /generate - Start over
• /templates - Browse prompt ideas
• /status - Check progress
• /history - View past generations
• /reset - Cancel current generation

*Privacy:* Photos are temporary and deleted after video generation.`

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	b.replyMarkdown(msg.Chat.ID, welcomeText)

	if err := b.store.ResetUserGenerationState(ctx, msg.From.ID); err != nil {
		b.log.Error().Err(err).Int64("user_id", msg.From.ID).Msg("bot: reset on /start failed")
	}
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) {
	b.replyMarkdown(msg.Chat.ID, helpText)
}

func (b *Bot) handleGenerate(ctx context.Context, msg *tgbotapi.Message) {
	if err := b.store.ResetUserGenerationState(ctx, msg.From.ID); err != nil {
		b.log.Error().Err(err).Int64("user_id", msg.From.ID).Msg("bot: reset on /generate failed")
	}

	text := fmt.Sprintf(`📸 *Send me 1-4 photos of yourself*

These photos will be used as reference for the AI video generation. For best results:
• Use clear, well-lit photos
• Include various angles if possible
• Avoid heavy filters or edits

You can send %d photo(s) maximum.`, b.cfg.MaxPhotos)

	b.replyMarkdown(msg.Chat.ID, text)
}

func (b *Bot) handleTemplates(msg *tgbotapi.Message) {
	b.replyMarkdown(msg.Chat.ID, templates.FormatList())
}

// handleReset serves /reset and /cancel: cancels any in-flight generation,
// deletes the user's stored photos and returns the session to idle.
func (b *Bot) handleReset(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID

	if b.inflight.Cancel(userID) {
		b.log.Info().Int64("user_id", userID).Msg("bot: cancelled in-flight generation")
	}

	b.clearUserPhotos(ctx, userID)

	if err := b.store.ResetUserGenerationState(ctx, userID); err != nil {
		b.log.Error().Err(err).Int64("user_id", userID).Msg("bot: reset session failed")
	}

	b.replyMarkdown(msg.Chat.ID, "🔄 *Generation cancelled and cleared.*\n\nUse /generate to start fresh!")
}

// handleStats is the admin-only overview of the job table.
func (b *Bot) handleStats(ctx context.Context, msg *tgbotapi.Message) {
	if b.cfg.AdminUserID == 0 || msg.From.ID != b.cfg.AdminUserID {
		return
	}

	counts, err := b.store.CountJobsByStatus(ctx)
	if err != nil {
		b.log.Error().Err(err).Msg("bot: count jobs failed")
		b.reply(msg.Chat.ID, "⚠️ Could not load job stats.")
		return
	}

	var sb strings.Builder
	sb.WriteString("📈 *Job Stats*\n")
	total := 0
	for _, status := range []domain.JobStatus{
		domain.JobStatusPending,
		domain.JobStatusGenerating,
		domain.JobStatusProcessing,
		domain.JobStatusCompleted,
		domain.JobStatusFailed,
	} {
		n := counts[status]
		total += n
		sb.WriteString(fmt.Sprintf("\n%s %s: %d", statusEmoji(status), status, n))
	}
	sb.WriteString(fmt.Sprintf("\n\nTotal: %d", total))
	b.replyMarkdown(msg.Chat.ID, sb.String())
}

// clearUserPhotos removes the user's photo files referenced by the session.
func (b *Bot) clearUserPhotos(ctx context.Context, userID int64) {
	session, err := b.store.GetUserSession(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			b.log.Error().Err(err).Int64("user_id", userID).Msg("bot: load session for cleanup failed")
		}
		return
	}
	for _, path := range session.Photos {
		if err := b.photos.Remove(path); err != nil {
			b.log.Warn().Err(err).Str("path", path).Msg("bot: remove photo failed")
		}
	}
}
