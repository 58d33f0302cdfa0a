package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/sukalov/lyricstudio/internal/logger"
)

// maxDownload bounds voice notes and beats pulled from Telegram.
const maxDownload = 20 << 20

// API is the part of the Telegram client the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

type HandlerFunc func(b *Bot, update tgbotapi.Update) error

// Handlers routes updates. Callback data of the form "prefix:arg" is routed
// by prefix when there is no exact match.
type Handlers struct {
	Commands  map[string]HandlerFunc
	Messages  []HandlerFunc
	Callbacks map[string]HandlerFunc
}

// Bot represents a configurable Telegram bot
type Bot struct {
	Client     API
	updateChan tgbotapi.UpdatesChannel
	stopChan   chan struct{}
	name       string
	username   string
	http       *http.Client
	mu         sync.Mutex
}

// New creates a new bot instance
func New(name, token string) (*Bot, error) {
	botClient, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s bot: %w", name, err)
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updateChan := botClient.GetUpdatesChan(updateConfig)

	b := NewWithAPI(name, botClient)
	b.updateChan = updateChan
	b.username = botClient.Self.UserName
	return b, nil
}

// NewWithAPI wraps an existing client. Without an update channel Start
// only waits for Stop; updates can be fed through ProcessUpdate.
func NewWithAPI(name string, api API) *Bot {
	return &Bot{
		Client:   api,
		stopChan: make(chan struct{}, 1),
		name:     name,
		http:     &http.Client{Timeout: 60 * time.Second},
	}
}

// Start processes updates until ctx is done or Stop is called.
func (b *Bot) Start(ctx context.Context, h Handlers) {
	logger.Info(fmt.Sprintf("[%s] authorized on account %s", b.name, b.username))

	for {
		select {
		case update, ok := <-b.updateChan:
			if !ok {
				return
			}
			go b.ProcessUpdate(update, h)
		case <-b.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// ProcessUpdate runs the handler matching update.
func (b *Bot) ProcessUpdate(update tgbotapi.Update, h Handlers) {
	if update.Message != nil && update.Message.IsCommand() {
		if handler, exists := h.Commands[update.Message.Command()]; exists {
			if err := handler(b, update); err != nil {
				logger.Error(fmt.Sprintf("[%s] command /%s failed: %v", b.name, update.Message.Command(), err))
			}
			return
		}
	}

	if update.CallbackQuery != nil {
		if handler, exists := callbackHandler(h.Callbacks, update.CallbackQuery.Data); exists {
			if err := handler(b, update); err != nil {
				logger.Error(fmt.Sprintf("[%s] callback %q failed: %v", b.name, update.CallbackQuery.Data, err))
			}
			b.answerCallback(update.CallbackQuery.ID)
			return
		}
	}

	for _, handler := range h.Messages {
		if err := handler(b, update); err != nil {
			logger.Error(fmt.Sprintf("[%s] message handler failed: %v", b.name, err))
		}
	}
}

func callbackHandler(handlers map[string]HandlerFunc, data string) (HandlerFunc, bool) {
	if handler, ok := handlers[data]; ok {
		return handler, true
	}
	prefix, _, found := strings.Cut(data, ":")
	if !found {
		return nil, false
	}
	handler, ok := handlers[prefix]
	return handler, ok
}

// CallbackArg returns what follows the first ":" in callback data.
func CallbackArg(data string) string {
	_, arg, _ := strings.Cut(data, ":")
	return arg
}

// Stop halts the bot
func (b *Bot) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	select {
	case b.stopChan <- struct{}{}:
	default:
	}
}

func (b *Bot) answerCallback(id string) {
	if _, err := b.Client.Request(tgbotapi.NewCallback(id, "")); err != nil {
		logger.Debug(fmt.Sprintf("[%s] failed to answer callback: %v", b.name, err))
	}
}

func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := b.Client.Send(msg)
	return err
}

func (b *Bot) SendMessageWithMarkdown(chatID int64, text string, disableLinks bool) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = disableLinks
	_, err := b.Client.Send(msg)
	return err
}

func (b *Bot) SendMessageWithButtons(chatID int64, text string, markup tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	_, err := b.Client.Send(msg)
	return err
}

// DownloadFile fetches an uploaded file by its Telegram file id.
func (b *Bot) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.Client.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file %s: %w", fileID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download file %s: http status %d", fileID, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownload+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", fileID, err)
	}
	if len(data) > maxDownload {
		return nil, fmt.Errorf("file %s is larger than %d bytes", fileID, maxDownload)
	}
	return data, nil
}
