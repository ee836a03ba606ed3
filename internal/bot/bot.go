// Package bot implements the conversational front-end: photo intake, prompt
// validation, generation kickoff, status reporting and artifact delivery.
package bot

import (
	"context"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"videobot/internal/domain"
	"videobot/internal/infra"
	"videobot/internal/seedance"
	"videobot/internal/storage"
)

// Bot wires the intake, status and delivery flows to the chat transport.
type Bot struct {
	cfg     *infra.Config
	log     infra.Logger
	store   domain.Store
	gen     seedance.Generator
	photos  *storage.FileStore
	videos  *storage.FileStore
	sender  Sender
	fetcher FileFetcher

	inflight *inflightRegistry

	limiterMu sync.Mutex
	limiters  map[int64]*rate.Limiter
}

// New constructs the bot. All collaborators are injected; the bot reads no
// ambient state.
func New(cfg *infra.Config, log infra.Logger, store domain.Store, gen seedance.Generator, photos, videos *storage.FileStore, sender Sender, fetcher FileFetcher) *Bot {
	return &Bot{
		cfg:      cfg,
		log:      log,
		store:    store,
		gen:      gen,
		photos:   photos,
		videos:   videos,
		sender:   sender,
		fetcher:  fetcher,
		inflight: newInflightRegistry(),
		limiters: make(map[int64]*rate.Limiter),
	}
}

// Run consumes updates until the channel closes or ctx is cancelled. Each
// update is handled in its own goroutine; per-user ordering is a social
// contract, not a mechanical one.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Interface("panic", r).Int64("user_id", msg.From.ID).Msg("bot: handler panicked")
			b.reply(msg.Chat.ID, "⚠️ An error occurred. Please try again or use /reset.")
		}
	}()

	if !b.allow(msg.Chat.ID) {
		b.log.Debug().Int64("chat_id", msg.Chat.ID).Msg("bot: update dropped by rate limiter")
		return
	}

	switch {
	case msg.IsCommand():
		b.handleCommand(ctx, msg)
	case len(msg.Photo) > 0 || isImageDocument(msg):
		b.handlePhoto(ctx, msg)
	case strings.TrimSpace(msg.Text) != "":
		b.handlePrompt(ctx, msg)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.handleStart(ctx, msg)
	case "help":
		b.handleHelp(msg)
	case "generate":
		b.handleGenerate(ctx, msg)
	case "templates":
		b.handleTemplates(msg)
	case "status":
		b.handleStatus(ctx, msg)
	case "history":
		b.handleHistory(ctx, msg)
	case "reset", "cancel":
		b.handleReset(ctx, msg)
	case "stats":
		b.handleStats(ctx, msg)
	}
}

// allow applies the per-chat rate limiter: one update per second sustained
// with a burst of five.
func (b *Bot) allow(chatID int64) bool {
	b.limiterMu.Lock()
	limiter, ok := b.limiters[chatID]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(1), 5)
		b.limiters[chatID] = limiter
	}
	b.limiterMu.Unlock()
	return limiter.Allow()
}

func (b *Bot) reply(chatID int64, text string) {
	if err := b.sender.SendMessage(chatID, text); err != nil {
		b.log.Error().Err(err).Int64("chat_id", chatID).Msg("bot: send message failed")
	}
}

func (b *Bot) replyMarkdown(chatID int64, text string) {
	if err := b.sender.SendMarkdown(chatID, text); err != nil {
		b.log.Error().Err(err).Int64("chat_id", chatID).Msg("bot: send message failed")
	}
}

func isImageDocument(msg *tgbotapi.Message) bool {
	return msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/")
}
