package logger

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordingClient struct {
	mu       sync.Mutex
	messages []string
	done     chan struct{}
}

func (c *recordingClient) SendMessage(chatID int64, text string) error {
	c.mu.Lock()
	c.messages = append(c.messages, text)
	c.mu.Unlock()
	c.done <- struct{}{}
	return nil
}

func TestLogWithErr(t *testing.T) {
	if err := LogWithErr("fine", nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	cause := errors.New("boom")
	err := LogWithErr("fetching rhymes", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	if !strings.Contains(err.Error(), "fetching rhymes") {
		t.Errorf("message missing from %q", err.Error())
	}
}

func TestRemoteSinkSkipsDebug(t *testing.T) {
	t.Setenv("LOG_CHANNEL_ID", "-100123")
	client := &recordingClient{done: make(chan struct{}, 4)}
	if err := Init(client); err != nil {
		t.Fatalf("init: %v", err)
	}
	if ChannelID != -100123 {
		t.Fatalf("channel id = %d", ChannelID)
	}

	Debug("local only")
	Error("remote too")

	select {
	case <-client.done:
	case <-time.After(time.Second):
		t.Fatal("remote sink was not called")
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.messages) != 1 {
		t.Fatalf("got %d remote messages, want 1", len(client.messages))
	}
	if !strings.Contains(client.messages[0], "❌ ERROR") || !strings.Contains(client.messages[0], "remote too") {
		t.Errorf("unexpected message %q", client.messages[0])
	}
}
