package stats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sukalov/lyricstudio/internal/db"
	"github.com/sukalov/lyricstudio/internal/studio"
)

func openStore(t *testing.T) *db.Store {
	t.Helper()
	s, err := db.Open(context.Background(), ":memory:", "")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBuildWithoutProfile(t *testing.T) {
	store := openStore(t)
	now := time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC) // a Sunday

	d, err := Build(context.Background(), store, "nobody", now)
	if err != nil {
		t.Fatal(err)
	}
	if d.Profile != studio.DefaultProfile() {
		t.Errorf("profile = %+v", d.Profile)
	}
	if len(d.Cards) != 4 || d.Cards[3].Label != "Session BPM" || d.Cards[3].Value != "90" {
		t.Errorf("cards = %+v", d.Cards)
	}
	if len(d.Progression) != 7 || d.Progression[0].Name != "Mon" || d.Progression[6].Name != "Sun" {
		t.Errorf("progression = %+v", d.Progression)
	}
}

func TestRecorderFeedsDashboard(t *testing.T) {
	store := openStore(t)
	now := time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)

	p := studio.DefaultProfile().WithCadence(studio.SimulatedCadence)
	if err := store.SaveProfile(context.Background(), "writer-1", "mc", p); err != nil {
		t.Fatal(err)
	}

	r := NewRecorder(store, 16)
	r.now = func() time.Time { return now }
	r.Bind("session-1", "writer-1")

	r.Listen(studio.Event{Kind: studio.EventRhymeApplied, SessionID: "session-1", Text: "love"})
	r.Listen(studio.Event{Kind: studio.EventRhymeApplied, SessionID: "session-1", Text: "above"})
	r.Listen(studio.Event{Kind: studio.EventSuggestionInserted, SessionID: "session-1", Text: "new line"})
	r.Listen(studio.Event{Kind: studio.EventSuggestionsUpdated, SessionID: "session-1"})
	r.Listen(studio.Event{Kind: studio.EventSuggestionsUpdated, SessionID: "session-1", Failed: true})
	r.Listen(studio.Event{Kind: studio.EventCursor, SessionID: "session-1"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Run(ctx)

	d, err := Build(context.Background(), store, "writer-1", now)
	if err != nil {
		t.Fatal(err)
	}
	today := d.Progression[6]
	if today.Rhymes != 2 || today.Suggestions != 1 || today.Fetches != 1 {
		t.Errorf("today = %+v", today)
	}
	if d.Cards[0].Value != "88%" || d.Cards[3].Value != "94" {
		t.Errorf("cards = %+v", d.Cards)
	}

	text := d.Text()
	if !strings.Contains(text, "rhyme score: 88%") || !strings.Contains(text, "Sun ▇▇▇······· 2 / 1") {
		t.Errorf("text = %s", text)
	}
}

func TestRecorderDropsWhenFull(t *testing.T) {
	r := NewRecorder(nil, 1)
	r.Listen(studio.Event{Kind: studio.EventRhymeApplied, SessionID: "s"})
	r.Listen(studio.Event{Kind: studio.EventRhymeApplied, SessionID: "s"})
	if len(r.queue) != 1 {
		t.Errorf("queue length = %d, want 1", len(r.queue))
	}
}

type slowStore struct {
	mu      sync.Mutex
	details []string
	closed  bool
}

func (s *slowStore) RecordEvent(_ context.Context, _ string, _ db.EventKind, detail string, _ time.Time) error {
	time.Sleep(time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("sql: database is closed")
	}
	s.details = append(s.details, detail)
	return nil
}

func (s *slowStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func TestRecorderFlushesBeforeDone(t *testing.T) {
	store := &slowStore{}
	r := NewRecorder(store, 64)

	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)

	for i := 0; i < 50; i++ {
		r.Listen(studio.Event{Kind: studio.EventRhymeApplied, SessionID: "s", Text: fmt.Sprintf("rhyme %d", i)})
	}
	cancel()

	select {
	case <-r.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("recorder did not finish")
	}
	store.Close()

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.details) != 50 {
		t.Errorf("stored %d records, want 50", len(store.details))
	}
}
