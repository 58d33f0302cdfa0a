package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/sukalov/lyricstudio/internal/utils"
	"github.com/sukalov/lyricstudio/internal/utils/e"
)

var (
	ChannelID int64
	once      sync.Once
	mu        sync.RWMutex
	botClient BotClient
	local     = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
)

// BotClient forwards log lines to a chat.
type BotClient interface {
	SendMessage(chatID int64, text string) error
}

// Init registers client as a remote sink for LOG_CHANNEL_ID. Local logging
// works without it.
func Init(client BotClient) error {
	var initErr error
	once.Do(func() {
		env, err := utils.LoadEnv([]string{"LOG_CHANNEL_ID"})
		if err != nil {
			initErr = fmt.Errorf("failed to load LOG_CHANNEL_ID: %w", err)
			return
		}

		id, err := strconv.ParseInt(env["LOG_CHANNEL_ID"], 10, 64)
		if err != nil {
			initErr = fmt.Errorf("failed to parse LOG_CHANNEL_ID: %w", err)
			return
		}

		mu.Lock()
		ChannelID = id
		botClient = client
		mu.Unlock()
	})

	return initErr
}

// SetLevel changes the minimum level of the local stderr handler.
func SetLevel(level slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	local = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func Info(message string) {
	emit(slog.LevelInfo, "ℹ️ INFO", message)
}

func Error(message string) {
	emit(slog.LevelError, "❌ ERROR", message)
}

func Debug(message string) {
	emit(slog.LevelDebug, "🔍 DEBUG", message)
}

func Success(message string) {
	emit(slog.LevelInfo, "✅ SUCCESS", message)
}

func emit(level slog.Level, prefix, message string) {
	mu.RLock()
	l := local
	client := botClient
	channel := ChannelID
	mu.RUnlock()

	l.Log(context.Background(), level, message)

	// debug noise stays local
	if client == nil || level == slog.LevelDebug {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	logMessage := fmt.Sprintf("[%s] %s\n%s", timestamp, prefix, message)

	go func() {
		if err := client.SendMessage(channel, logMessage); err != nil {
			l.Warn("failed to send log to channel", "error", err)
		}
	}()
}

// LogWithErr logs message at info level when err is nil, otherwise at error
// level, and returns the wrapped error.
func LogWithErr(message string, err error) error {
	if err == nil {
		Info(message)
		return nil
	}

	Error(fmt.Sprintf("%s\nError: %v", message, err))

	return e.Wrap(message, err)
}
