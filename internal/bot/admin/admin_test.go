package admin

import (
	"context"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/sukalov/lyricstudio/internal/bot"
	"github.com/sukalov/lyricstudio/internal/generation"
	"github.com/sukalov/lyricstudio/internal/studio"
	"github.com/sukalov/lyricstudio/internal/users"
)

type fakeAPI struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg.Text)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetFileDirectURL(string) (string, error) {
	return "", nil
}

func (f *fakeAPI) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}

type noopGenerator struct{}

func (noopGenerator) SuggestLyrics(context.Context, generation.SuggestionRequest) ([]generation.Suggestion, error) {
	return nil, nil
}

func (noopGenerator) SuggestRhymes(context.Context, generation.RhymeRequest) ([]string, error) {
	return nil, nil
}

func (noopGenerator) AnalyzeInstrumental(context.Context, generation.Audio) (*generation.InstrumentalMetadata, error) {
	return nil, nil
}

func command(b *bot.Bot, h bot.Handlers, username, text string) {
	b.ProcessUpdate(tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: 1},
		From:     &tgbotapi.User{ID: 1, UserName: username},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
	}}, h)
}

func tap(b *bot.Bot, h bot.Handlers, username, data string) {
	b.ProcessUpdate(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb",
		Data: data,
		From: &tgbotapi.User{ID: 1, UserName: username},
	}}, h)
}

func TestSessionsAndCloseAll(t *testing.T) {
	opts := studio.DefaultOptions()
	manager := studio.NewManager(noopGenerator{}, opts)
	t.Cleanup(manager.CloseAll)
	if _, err := manager.Open("tg-7", "two words", studio.DefaultProfile()); err != nil {
		t.Fatal(err)
	}

	chats := users.NewManager()
	chats.Put(users.ChatState{ChatID: 8, Stage: users.StageCalibrating})

	api := &fakeAPI{}
	b := bot.NewWithAPI("admin", api)
	var h bot.Handlers
	SetupHandlers(&h, manager, chats, []string{"@boss"})

	command(b, h, "stranger", "/sessions")
	if got := api.last(); got != "you are not an admin" {
		t.Fatalf("unexpected reply %q", got)
	}

	command(b, h, "boss", "/sessions")
	got := api.last()
	for _, want := range []string{"open sessions: 1, chats: 1 (1 onboarding)", "tg-7", "words: 2"} {
		if !strings.Contains(got, want) {
			t.Errorf("listing %q does not contain %q", got, want)
		}
	}

	command(b, h, "boss", "/close_sessions")
	tap(b, h, "boss", "abort_close_sessions")
	if got := api.last(); got != "ok, cancelled" {
		t.Fatalf("unexpected reply %q", got)
	}
	tap(b, h, "boss", "confirm_close_sessions")
	if got := api.last(); got != "that button doesn't work anymore" {
		t.Fatalf("unexpected reply %q", got)
	}

	command(b, h, "boss", "/close_sessions")
	tap(b, h, "boss", "confirm_close_sessions")
	if got := api.last(); got != "closed 1 sessions" {
		t.Fatalf("unexpected reply %q", got)
	}
	if ids := manager.IDs(); len(ids) != 0 {
		t.Errorf("expected no sessions, got %v", ids)
	}
}
