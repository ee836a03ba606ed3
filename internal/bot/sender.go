package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the outbound half of the chat transport. Flows depend on this
// contract rather than on the Telegram client so they can be exercised with
// fakes.
type Sender interface {
	SendMessage(chatID int64, text string) error
	// SendMarkdown sends text with Markdown parsing enabled.
	SendMarkdown(chatID int64, text string) error
	// SendVideo uploads the file at path with a caption.
	SendVideo(chatID int64, path, caption string) error
}

// FileFetcher downloads a transport-hosted file (a user's photo) into dst.
type FileFetcher interface {
	Download(ctx context.Context, fileID string, dst io.Writer) error
}

// TelegramTransport adapts tgbotapi to the Sender and FileFetcher contracts.
type TelegramTransport struct {
	api        *tgbotapi.BotAPI
	httpClient *http.Client
}

// NewTelegramTransport wraps an authorized Telegram client.
func NewTelegramTransport(api *tgbotapi.BotAPI) *TelegramTransport {
	return &TelegramTransport{api: api, httpClient: &http.Client{}}
}

func (t *TelegramTransport) SendMessage(chatID int64, text string) error {
	_, err := t.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (t *TelegramTransport) SendMarkdown(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true
	_, err := t.api.Send(msg)
	return err
}

func (t *TelegramTransport) SendVideo(chatID int64, path, caption string) error {
	video := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(path))
	video.Caption = caption
	_, err := t.api.Send(video)
	return err
}

// Download resolves the file id against the Bot API and streams its content
// into dst.
func (t *TelegramTransport) Download(ctx context.Context, fileID string, dst io.Writer) error {
	file, err := t.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return fmt.Errorf("resolve file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(t.api.Token), nil)
	if err != nil {
		return err
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch file: status %d", resp.StatusCode)
	}
	if _, err := io.Copy(dst, resp.Body); err != nil {
		return fmt.Errorf("copy file: %w", err)
	}
	return nil
}

var (
	_ Sender      = (*TelegramTransport)(nil)
	_ FileFetcher = (*TelegramTransport)(nil)
)
