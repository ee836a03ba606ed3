package bot

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// maxVideoBytes is the transport ceiling for bot video uploads (50 MiB).
const maxVideoBytes = 50 * 1024 * 1024

const mockExcerptLength = 500

// deliverArtifact ships a generated video to the chat. Missing and
// oversized files each get a specific message; a transport send failure is
// caught and reported generically. The job itself stays completed in all of
// these cases — only delivery failed.
func (b *Bot) deliverArtifact(chatID int64, path, caption string) {
	if strings.HasSuffix(path, ".mock") {
		b.deliverMockArtifact(chatID, path)
		return
	}

	size, err := b.videos.Size(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			b.reply(chatID, "⚠️ Video file not found. It may have been deleted or moved.")
			return
		}
		b.log.Error().Err(err).Str("path", path).Msg("bot: stat video failed")
		b.reply(chatID, "⚠️ Could not send the video. Please try again.")
		return
	}

	if size > maxVideoBytes {
		b.reply(chatID, "⚠️ Generated video is too large for Telegram (>50MB). Please try again with a shorter video or different settings.")
		return
	}

	if err := b.sender.SendVideo(chatID, path, caption); err != nil {
		b.log.Error().Err(err).Str("path", path).Msg("bot: send video failed")
		b.reply(chatID, "⚠️ Video generated but couldn't send it. Please try again.")
	}
}

// deliverMockArtifact announces a simulated result: the placeholder is a
// text file, so an excerpt is sent instead of a video upload.
func (b *Bot) deliverMockArtifact(chatID int64, path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		b.log.Error().Err(err).Str("path", path).Msg("bot: read mock artifact failed")
		b.reply(chatID, "⚠️ Video file not found. It may have been deleted or moved.")
		return
	}

	excerpt := string(content)
	if len(excerpt) > mockExcerptLength {
		excerpt = excerpt[:mockExcerptLength] + "..."
	}

	b.replyMarkdown(chatID, fmt.Sprintf(
		"🎬 *Your video is ready!*\n\n⚠️ *MOCK MODE* ⚠️\nThe bot is currently in test mode.\n\n"+
			"*To get real videos:* set `MOCK_MODE=false` and configure your Seedance API key.\n\n"+
			"*Your prompt was received and would generate:*\n📄 %s", excerpt))
}
