package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"videobot/internal/domain"
)

const (
	historyLimit        = 10
	historyPromptWidth  = 30
	statusPromptWidth   = 100
	progressBarWidth    = 20
	historyTimeLayout   = "Jan 02, 15:04"
	timestampTimeLayout = "2006-01-02 15:04"
)

var statusTitle = cases.Title(language.English)

// handleStatus reports the user's current generation, in priority order:
// no session or idle, no job yet, job missing, then the job's own status.
// Showing a terminal status has the documented side effects: completed
// resets the session, failed clears it.
func (b *Bot) handleStatus(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	session, err := b.store.GetUserSession(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		b.log.Error().Err(err).Int64("user_id", userID).Msg("bot: load session failed")
		b.reply(chatID, "⚠️ An error occurred. Please try again or use /reset.")
		return
	}

	if session == nil || session.State == domain.SessionStateIdle {
		b.replyMarkdown(chatID, "📊 *Your Status*\n\nNo active generation. Use /generate to start creating videos!")
		return
	}

	if session.LastJobID == nil {
		b.replyMarkdown(chatID, "📊 *Your Status*\n\nPreparing to generate... Use /generate to start!")
		return
	}

	job, err := b.store.GetJob(ctx, *session.LastJobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			b.replyMarkdown(chatID, "📊 *Your Status*\n\nJob not found. Try /generate again.")
			return
		}
		b.log.Error().Err(err).Int64("job_id", *session.LastJobID).Msg("bot: load job failed")
		b.reply(chatID, "⚠️ An error occurred. Please try again or use /reset.")
		return
	}

	details := formatJobDetails(job)

	switch job.Status {
	case domain.JobStatusCompleted:
		if err := b.store.ResetUserGenerationState(ctx, userID); err != nil {
			b.log.Error().Err(err).Int64("user_id", userID).Msg("bot: reset after status failed")
		}
		b.replyMarkdown(chatID, "✅ *Last Generation Complete!*\n\n"+details+"\n\nUse /generate to create another video!")
	case domain.JobStatusFailed:
		if err := b.store.ClearUserSession(ctx, userID); err != nil {
			b.log.Error().Err(err).Int64("user_id", userID).Msg("bot: clear after status failed")
		}
		b.replyMarkdown(chatID, "❌ *Last Generation Failed*\n\n"+details+"\n\nTry /generate again with a different prompt or photos.")
	default:
		b.replyMarkdown(chatID, fmt.Sprintf(
			"📊 *Generation Status*\n\n%s %s\n\n📸 Photos: %d\n📝 Prompt: %s\n\n⏳ Please wait while your video is being generated...",
			statusEmoji(job.Status), details, len(job.Photos), truncate(job.Prompt, statusPromptWidth)))
	}
}

// handleHistory lists the user's ten most recent jobs, newest first.
func (b *Bot) handleHistory(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	jobs, err := b.store.GetUserJobs(ctx, userID, historyLimit)
	if err != nil {
		b.log.Error().Err(err).Int64("user_id", userID).Msg("bot: load history failed")
		b.reply(chatID, "⚠️ An error occurred. Please try again or use /reset.")
		return
	}

	if len(jobs) == 0 {
		b.replyMarkdown(chatID, "📋 *Generation History*\n\nNo previous generations. Use /generate to create your first video!")
		return
	}

	var sb strings.Builder
	sb.WriteString("📋 *Your Recent Generations*\n")
	for _, job := range jobs {
		sb.WriteString(fmt.Sprintf(
			"\n%s *Job #%d* - %s\n   📝 %s\n",
			statusEmoji(job.Status),
			job.ID,
			job.CreatedAt.Format(historyTimeLayout),
			truncate(job.Prompt, historyPromptWidth)))
	}
	b.replyMarkdown(chatID, sb.String())
}

func formatJobDetails(job *domain.Job) string {
	lines := []string{"*Status:* " + statusTitle.String(string(job.Status))}

	if job.ProviderJobID != "" {
		lines = append(lines, "*Job ID:* `"+job.ProviderJobID+"`")
	}
	if job.ErrorMessage != "" {
		lines = append(lines, "*Error:* "+job.ErrorMessage)
	}
	lines = append(lines, "*Started:* "+job.CreatedAt.Format(timestampTimeLayout))
	if job.CompletedAt != nil {
		lines = append(lines, "*Completed:* "+job.CompletedAt.Format(timestampTimeLayout))
	}
	return strings.Join(lines, "\n")
}

func statusEmoji(status domain.JobStatus) string {
	switch status {
	case domain.JobStatusPending:
		return "⏳"
	case domain.JobStatusGenerating:
		return "🎬"
	case domain.JobStatusProcessing:
		return "🔄"
	case domain.JobStatusCompleted:
		return "✅"
	case domain.JobStatusFailed:
		return "❌"
	}
	return "❓"
}

// progressBar renders a fixed-width text bar for a 0-100 progress value.
func progressBar(progress int) string {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	filled := progress * progressBarWidth / 100
	return strings.Repeat("█", filled) + strings.Repeat("░", progressBarWidth-filled)
}

// truncate shortens s to at most max runes, appending an ellipsis when it
// was cut.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
