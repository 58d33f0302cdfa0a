package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/sukalov/lyricstudio/internal/bot"
	"github.com/sukalov/lyricstudio/internal/db"
	"github.com/sukalov/lyricstudio/internal/generation"
	"github.com/sukalov/lyricstudio/internal/studio"
	"github.com/sukalov/lyricstudio/internal/users"
)

const chatID = 42

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.MessageConfig
	filesURL string
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetFileDirectURL(fileID string) (string, error) {
	return f.filesURL + "/" + fileID, nil
}

func (f *fakeAPI) messages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgbotapi.MessageConfig(nil), f.sent...)
}

func (f *fakeAPI) last() tgbotapi.MessageConfig {
	msgs := f.messages()
	if len(msgs) == 0 {
		return tgbotapi.MessageConfig{}
	}
	return msgs[len(msgs)-1]
}

// waitFor polls until a sent message contains substr.
func (f *fakeAPI) waitFor(t *testing.T, substr string) tgbotapi.MessageConfig {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, msg := range f.messages() {
			if strings.Contains(msg.Text, substr) {
				return msg
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no message containing %q, got %d messages", substr, len(f.messages()))
	return tgbotapi.MessageConfig{}
}

type fakeService struct{}

func (fakeService) SuggestLyrics(context.Context, generation.SuggestionRequest) ([]generation.Suggestion, error) {
	return []generation.Suggestion{
		{Text: "smoke in the room", Category: generation.CategoryFlow, MatchScore: 90, Rating: 4},
		{Text: "we never stop", Category: generation.CategoryHook, MatchScore: 80, Rating: 3},
	}, nil
}

func (fakeService) SuggestRhymes(_ context.Context, req generation.RhymeRequest) ([]string, error) {
	return []string{"desire", "higher", "wire"}, nil
}

func (fakeService) AnalyzeInstrumental(context.Context, generation.Audio) (*generation.InstrumentalMetadata, error) {
	bpm := 140
	return &generation.InstrumentalMetadata{BPM: &bpm, VibeTags: []string{"Trap"}}, nil
}

func (fakeService) AnalyzeCadence(context.Context, generation.Audio) (*generation.CadenceAnalysis, error) {
	return &generation.CadenceAnalysis{RhymeScore: 61, FlowScore: 62, EnergyScore: 63, BPM: 100, Feedback: "tight"}, nil
}

type harness struct {
	api      *fakeAPI
	bot      *bot.Bot
	handlers bot.Handlers
	manager  *studio.Manager
	store    *db.Store
	chats    *users.Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "audio bytes")
	}))
	t.Cleanup(files.Close)

	store, err := db.Open(context.Background(), ":memory:", "")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	opts := studio.DefaultOptions()
	opts.SuggestDelay = time.Hour
	opts.RhymeDelay = time.Hour
	manager := studio.NewManager(fakeService{}, opts)
	t.Cleanup(manager.CloseAll)

	api := &fakeAPI{filesURL: files.URL}
	b := bot.NewWithAPI("test", api)
	chats := users.NewManager()

	h := &harness{api: api, bot: b, manager: manager, store: store, chats: chats}
	h.handlers = SetupHandlers(b, Deps{
		Manager: manager,
		Cadence: fakeService{},
		Store:   store,
		Chats:   chats,
	})
	return h
}

func (h *harness) command(text string) {
	cmd, _, _ := strings.Cut(text, " ")
	h.bot.ProcessUpdate(tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: chatID},
		From:     &tgbotapi.User{ID: chatID, UserName: "writer", FirstName: "Lil"},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}}, h.handlers)
}

func (h *harness) message(m tgbotapi.Message) {
	m.Chat = &tgbotapi.Chat{ID: chatID}
	m.From = &tgbotapi.User{ID: chatID, UserName: "writer"}
	h.bot.ProcessUpdate(tgbotapi.Update{Message: &m}, h.handlers)
}

func (h *harness) tap(data string) {
	h.bot.ProcessUpdate(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		Data:    data,
		From:    &tgbotapi.User{ID: chatID, UserName: "writer"},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}},
	}}, h.handlers)
}

func (h *harness) onboard(t *testing.T) *studio.Session {
	t.Helper()
	h.command("/start")
	h.tap("genre:RAP")
	h.command("/skip")

	sess, ok := h.manager.Get(SessionID(chatID))
	if !ok {
		t.Fatal("expected an open session after onboarding")
	}
	return sess
}

func buttons(msg tgbotapi.MessageConfig) []tgbotapi.InlineKeyboardButton {
	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok {
		return nil
	}
	var all []tgbotapi.InlineKeyboardButton
	for _, row := range markup.InlineKeyboard {
		all = append(all, row...)
	}
	return all
}

func TestOnboardingWithVoiceNote(t *testing.T) {
	h := newHarness(t)

	h.command("/start")
	if got := len(buttons(h.api.last())); got != len(generation.Genres) {
		t.Fatalf("expected %d genre buttons, got %d", len(generation.Genres), got)
	}

	h.message(tgbotapi.Message{Text: "hello"})
	h.api.waitFor(t, "pick a genre")

	h.tap("genre:RAP")
	if st, _ := h.chats.Get(chatID); st.Stage != users.StageCalibrating || st.Genre != generation.GenreRap {
		t.Fatalf("unexpected chat state %+v", st)
	}

	h.message(tgbotapi.Message{Voice: &tgbotapi.Voice{FileID: "take", MimeType: "audio/ogg"}})
	h.api.waitFor(t, "rhyme 61%")

	w, err := h.store.GetProfile(context.Background(), SessionID(chatID))
	if err != nil {
		t.Fatal(err)
	}
	if w.Profile.Genre != generation.GenreRap || w.Profile.RhymeScore != 61 || w.Profile.BPM != 100 {
		t.Errorf("unexpected stored profile %+v", w.Profile)
	}
	if st, _ := h.chats.Get(chatID); st.Stage != users.StageWriting {
		t.Errorf("expected writing stage, got %s", st.Stage)
	}
	if _, ok := h.manager.Get(SessionID(chatID)); !ok {
		t.Error("expected an open session")
	}
}

func TestSkipKeepsZeroScores(t *testing.T) {
	h := newHarness(t)
	h.onboard(t)

	w, err := h.store.GetProfile(context.Background(), SessionID(chatID))
	if err != nil {
		t.Fatal(err)
	}
	if w.Profile.RhymeScore != 0 || w.Profile.BPM != studio.DefaultProfile().BPM {
		t.Errorf("unexpected profile after skip %+v", w.Profile)
	}
}

func TestLinesAndRhymes(t *testing.T) {
	h := newHarness(t)
	sess := h.onboard(t)

	h.message(tgbotapi.Message{Text: "my heart is on fire"})
	h.message(tgbotapi.Message{Text: "burning up the night"})
	if got := sess.Snapshot().Lyrics; got != "my heart is on fire\nburning up the night" {
		t.Fatalf("unexpected lyrics %q", got)
	}

	h.command("/rhymes fire")
	msg := h.api.waitFor(t, `rhymes for "fire"`)
	if got := len(buttons(msg)); got != 3 {
		t.Fatalf("expected 3 rhyme buttons, got %d", got)
	}

	h.tap("rhyme:1")
	h.api.waitFor(t, "my heart is on higher")
	if got := sess.Snapshot().Lyrics; got != "my heart is on higher\nburning up the night" {
		t.Errorf("unexpected lyrics after apply %q", got)
	}

	h.command("/rhymes moon")
	h.api.waitFor(t, `"moon" is not in your lyrics`)

	h.tap("rhyme:7")
	h.api.waitFor(t, "doesn't work anymore")
}

func TestSuggestAndInsert(t *testing.T) {
	h := newHarness(t)
	sess := h.onboard(t)

	h.message(tgbotapi.Message{Text: "short"})
	h.command("/suggest")
	h.api.waitFor(t, "write a bit more")

	h.message(tgbotapi.Message{Text: "lights go down in the city"})
	h.command("/suggest")
	msg := h.api.waitFor(t, "1. smoke in the room")
	if got := len(buttons(msg)); got != 2 {
		t.Fatalf("expected 2 insert buttons, got %d", got)
	}

	h.tap("insert:1")
	want := "short\nlights go down in the city\nwe never stop"
	if got := sess.Snapshot().Lyrics; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestClearConfirmAndAbort(t *testing.T) {
	h := newHarness(t)
	sess := h.onboard(t)
	h.message(tgbotapi.Message{Text: "keep this line"})

	h.command("/clear")
	h.tap("clear:abort")
	h.api.waitFor(t, "ok, kept it")
	if sess.Snapshot().Lyrics == "" {
		t.Fatal("abort must keep the lyrics")
	}

	h.tap("clear:confirm")
	h.api.waitFor(t, "that button doesn't work anymore")

	h.command("/clear")
	h.tap("clear:confirm")
	h.api.waitFor(t, "page wiped")
	if got := sess.Snapshot().Lyrics; got != "" {
		t.Errorf("expected an empty page, got %q", got)
	}
}

func TestBeatUpload(t *testing.T) {
	h := newHarness(t)
	sess := h.onboard(t)

	h.command("/beat")
	if st, _ := h.chats.Get(chatID); st.Stage != users.StageAwaitingBeat {
		t.Fatalf("expected awaiting beat, got %s", st.Stage)
	}

	h.message(tgbotapi.Message{Audio: &tgbotapi.Audio{FileID: "beat", MimeType: "audio/mpeg"}})
	h.api.waitFor(t, "beat locked in: 140 bpm · Trap")
	if meta := sess.Snapshot().Context.Instrumental; meta == nil || *meta.BPM != 140 {
		t.Fatalf("unexpected instrumental %+v", meta)
	}

	h.command("/beat off")
	if sess.Snapshot().Context.Instrumental != nil {
		t.Error("expected the instrumental to be removed")
	}
}

func TestTogglesPersistProfile(t *testing.T) {
	h := newHarness(t)
	sess := h.onboard(t)

	h.command("/auto")
	h.command("/persona")
	if st := sess.Snapshot(); st.AutoSuggest || !st.Context.Persona {
		t.Fatalf("unexpected session settings auto=%t persona=%t", st.AutoSuggest, st.Context.Persona)
	}

	w, err := h.store.GetProfile(context.Background(), SessionID(chatID))
	if err != nil {
		t.Fatal(err)
	}
	if w.Profile.AutoSuggest || !w.Profile.ArtistMode {
		t.Errorf("unexpected stored profile %+v", w.Profile)
	}
}

func TestSessionReopensFromProfile(t *testing.T) {
	h := newHarness(t)
	h.onboard(t)

	// simulate a restart: sessions and chat states are gone, profiles stay
	h.manager.CloseAll()
	h.chats.Delete(chatID)

	h.message(tgbotapi.Message{Text: "back at it again"})
	sess, ok := h.manager.Get(SessionID(chatID))
	if !ok {
		t.Fatal("expected the session to be reopened")
	}
	if got := sess.Snapshot().Lyrics; got != "back at it again" {
		t.Errorf("unexpected lyrics %q", got)
	}
}

func TestWithoutSession(t *testing.T) {
	h := newHarness(t)

	h.command("/lyrics")
	h.api.waitFor(t, "send /start")
}

func TestConcurrentLinesAllLand(t *testing.T) {
	h := newHarness(t)
	sess := h.onboard(t)

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h.message(tgbotapi.Message{Text: fmt.Sprintf("line %d", i)})
		}(i)
	}
	wg.Wait()

	lines := strings.Split(sess.Snapshot().Lyrics, "\n")
	if len(lines) != n {
		t.Fatalf("sent %d lines, buffer holds %d", n, len(lines))
	}
	seen := make(map[string]bool, n)
	for _, line := range lines {
		seen[line] = true
	}
	for i := 0; i < n; i++ {
		if !seen[fmt.Sprintf("line %d", i)] {
			t.Errorf("line %d is missing", i)
		}
	}
}

func TestLastOccurrence(t *testing.T) {
	tests := []struct {
		text, word string
		want       studio.Range
		found      bool
	}{
		{"fire and fire", "fire", studio.Range{Start: 9, End: 13}, true},
		{"Fire starter", "fire", studio.Range{Start: 0, End: 4}, true},
		{"firefly", "fire", studio.Range{}, false},
		{"campfire", "fire", studio.Range{}, false},
		{"fire, campfire", "fire", studio.Range{Start: 0, End: 4}, true},
	}

	for _, tt := range tests {
		got, found := lastOccurrence(tt.text, tt.word)
		if found != tt.found || got != tt.want {
			t.Errorf("lastOccurrence(%q, %q) = %v, %t; want %v, %t", tt.text, tt.word, got, found, tt.want, tt.found)
		}
	}
}

func TestChatIDOf(t *testing.T) {
	if id, ok := chatIDOf(SessionID(-100123)); !ok || id != -100123 {
		t.Errorf("round trip failed: %d %t", id, ok)
	}
	if _, ok := chatIDOf("3f2b8a1c-uuid"); ok {
		t.Error("api sessions must not map to chats")
	}
}
