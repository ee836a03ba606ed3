package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"videobot/internal/domain"
)

// handlePhoto ingests one reference image per message: compressed photos at
// their highest resolution, or image documents. Album messages arrive one
// photo at a time and are each processed individually up to the maximum.
func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	session, err := b.store.GetUserSession(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		b.log.Error().Err(err).Int64("user_id", userID).Msg("bot: load session failed")
		b.reply(chatID, "⚠️ An error occurred. Please try again or use /reset.")
		return
	}

	var current []string
	var version int64
	if session != nil {
		current = session.Photos
		version = session.Version
	}

	if len(current) >= b.cfg.MaxPhotos {
		b.reply(chatID, fmt.Sprintf(
			"⚠️ You already have %d photos. Please send your prompt first, or use /reset to start over.",
			len(current)))
		return
	}

	fileID := photoFileID(msg)
	if fileID == "" {
		b.reply(chatID, "❌ Could not process the image. Please try again.")
		return
	}

	path, err := b.savePhoto(ctx, userID, fileID)
	if err != nil {
		b.log.Error().Err(err).Int64("user_id", userID).Msg("bot: save photo failed")
		b.reply(chatID, "❌ Could not process the image. Please try again.")
		return
	}

	all := append(append([]string(nil), current...), path)
	err = b.store.UpdateUserState(ctx, userID, domain.SessionStateAwaitingPrompt, version, domain.SessionUpdate{Photos: &all})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			b.photos.Remove(path)
			b.reply(chatID, "⚠️ Your session changed while I was saving the photo. Please send it again.")
			return
		}
		b.log.Error().Err(err).Int64("user_id", userID).Msg("bot: update session failed")
		b.reply(chatID, "⚠️ An error occurred. Please try again or use /reset.")
		return
	}

	remaining := b.cfg.MaxPhotos - len(all)
	if remaining > 0 {
		b.reply(chatID, fmt.Sprintf(
			"✅ Photo saved! (%d/%d)\n\nYou can send %d more photo(s), or send your prompt now.",
			len(all), b.cfg.MaxPhotos, remaining))
		return
	}
	b.reply(chatID, "✅ All photos received! 📸\n\n"+
		"Now send me a prompt describing the video you want to create.\n\n"+
		"Examples:\n"+
		"• 'Dancing in a futuristic city at night'\n"+
		"• 'Walking through Paris in the rain'\n\n"+
		"Use /templates to see more ideas!")
}

// savePhoto downloads the transport file into the photo store and returns
// the stored path.
func (b *Bot) savePhoto(ctx context.Context, userID int64, fileID string) (string, error) {
	var buf bytes.Buffer
	if err := b.fetcher.Download(ctx, fileID, &buf); err != nil {
		return "", err
	}
	key := fmt.Sprintf("%d_%s.jpg", userID, uuid.NewString())
	return b.photos.Write(ctx, key, buf.Bytes())
}

// photoFileID selects the highest-resolution size of a compressed photo, or
// the document file for images sent as files.
func photoFileID(msg *tgbotapi.Message) string {
	if len(msg.Photo) > 0 {
		return msg.Photo[len(msg.Photo)-1].FileID
	}
	if isImageDocument(msg) {
		return msg.Document.FileID
	}
	return ""
}
