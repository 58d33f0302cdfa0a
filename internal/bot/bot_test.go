package bot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeAPI struct {
	fileURL  string
	answered int
}

func (f *fakeAPI) Send(tgbotapi.Chattable) (tgbotapi.Message, error) {
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.answered++
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetFileDirectURL(string) (string, error) {
	return f.fileURL, nil
}

func TestCallbackRouting(t *testing.T) {
	var got []string
	record := func(name string) HandlerFunc {
		return func(_ *Bot, update tgbotapi.Update) error {
			got = append(got, name+"="+CallbackArg(update.CallbackQuery.Data))
			return nil
		}
	}
	h := Handlers{Callbacks: map[string]HandlerFunc{
		"rhyme":         record("rhyme"),
		"confirm_clear": record("confirm"),
	}}

	api := &fakeAPI{}
	b := NewWithAPI("test", api)
	for _, data := range []string{"rhyme:3", "confirm_clear", "unknown:1"} {
		b.ProcessUpdate(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{ID: "1", Data: data}}, h)
	}

	if strings.Join(got, ",") != "rhyme=3,confirm=" {
		t.Errorf("routed %v", got)
	}
	if api.answered != 2 {
		t.Errorf("expected 2 answered callbacks, got %d", api.answered)
	}
}

func TestCommandFallsThroughToMessages(t *testing.T) {
	var commands, messages int
	h := Handlers{
		Commands: map[string]HandlerFunc{"help": func(*Bot, tgbotapi.Update) error { commands++; return nil }},
		Messages: []HandlerFunc{func(*Bot, tgbotapi.Update) error { messages++; return nil }},
	}
	b := NewWithAPI("test", &fakeAPI{})

	for _, text := range []string{"/help", "/nope", "a line"} {
		msg := &tgbotapi.Message{Text: text, Chat: &tgbotapi.Chat{ID: 1}}
		if strings.HasPrefix(text, "/") {
			msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}}
		}
		b.ProcessUpdate(tgbotapi.Update{Message: msg}, h)
	}

	if commands != 1 || messages != 2 {
		t.Errorf("commands = %d, messages = %d", commands, messages)
	}
}

func TestDownloadFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("voice"))
	}))
	defer srv.Close()

	api := &fakeAPI{fileURL: srv.URL + "/voice.ogg"}
	b := NewWithAPI("test", api)

	data, err := b.DownloadFile(context.Background(), "voice")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "voice" {
		t.Errorf("got %q", data)
	}

	api.fileURL = srv.URL + "/missing"
	if _, err := b.DownloadFile(context.Background(), "missing"); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestStartStops(t *testing.T) {
	b := NewWithAPI("test", &fakeAPI{})
	done := make(chan struct{})
	go func() {
		b.Start(context.Background(), Handlers{})
		close(done)
	}()
	b.Stop()
	<-done
}
