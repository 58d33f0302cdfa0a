package studio

import (
	"testing"

	"github.com/sukalov/lyricstudio/internal/generation"
)

func newTestState(lyrics string) State {
	return NewState(lyrics, RequestContext{Genre: generation.GenreRap}, true)
}

func TestRhymeApplied(t *testing.T) {
	s := newTestState("I feel it in my core tonight").SelectionChanged(Cursor(18))
	if s.Focus == nil || s.Focus.Word != "core" || s.Focus.Range != (Range{16, 20}) {
		t.Fatalf("focus = %+v", s.Focus)
	}

	next, cursor, ok := s.RhymeApplied("love")
	if !ok {
		t.Fatal("expected rhyme to apply")
	}
	if next.Lyrics != "I feel it in my love tonight" {
		t.Errorf("lyrics = %q", next.Lyrics)
	}
	if next.Focus == nil || next.Focus.Range != (Range{16, 20}) || next.Focus.Word != "love" {
		t.Errorf("focus = %+v", next.Focus)
	}
	if cursor != 20 {
		t.Errorf("cursor = %d, want 20", cursor)
	}
	if s.Lyrics != "I feel it in my core tonight" {
		t.Error("receiver was modified")
	}

	// the same slot can be replaced again without reselecting
	again, cursor, ok := next.RhymeApplied("soul on fire")
	if !ok {
		t.Fatal("expected second rhyme to apply")
	}
	if again.Lyrics != "I feel it in my soul on fire tonight" {
		t.Errorf("lyrics = %q", again.Lyrics)
	}
	if again.Focus.Range != (Range{16, 28}) || cursor != 28 {
		t.Errorf("focus = %+v cursor = %d", again.Focus, cursor)
	}
}

func TestRhymeAppliedWithoutFocus(t *testing.T) {
	s := newTestState("hello   world").SelectionChanged(Cursor(6))
	if s.Focus != nil {
		t.Fatalf("expected no focus, got %+v", s.Focus)
	}
	next, _, ok := s.RhymeApplied("yellow")
	if ok || next.Lyrics != s.Lyrics {
		t.Errorf("expected no-op, got ok=%v lyrics=%q", ok, next.Lyrics)
	}
}

func TestRhymeAppliedStaleRange(t *testing.T) {
	s := newTestState("short line")
	s.Focus = &Focus{Word: "ghost", Range: Range{20, 25}}

	next, _, ok := s.RhymeApplied("host")
	if ok {
		t.Fatal("stale range must be discarded")
	}
	if next.Lyrics != "short line" {
		t.Errorf("lyrics changed: %q", next.Lyrics)
	}
}

func TestSuggestionInserted(t *testing.T) {
	tests := []struct {
		name   string
		lyrics string
		text   string
		want   string
	}{
		{name: "adds line break", lyrics: "line one", text: "line two", want: "line one\nline two"},
		{name: "empty buffer", lyrics: "", text: "first", want: "first"},
		{name: "already on new line", lyrics: "verse\n", text: "hook", want: "verse\nhook"},
		{name: "crlf counts as a break", lyrics: "verse\r\n", text: "hook", want: "verse\r\nhook"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, cursor := newTestState(tt.lyrics).SuggestionInserted(tt.text)
			if got.Lyrics != tt.want {
				t.Errorf("lyrics = %q, want %q", got.Lyrics, tt.want)
			}
			if cursor != len([]rune(tt.want)) || got.Selection != Cursor(cursor) {
				t.Errorf("cursor = %d selection = %+v", cursor, got.Selection)
			}
		})
	}
}

func TestSuggestionInsertedTwiceIsNotDeduplicated(t *testing.T) {
	s := newTestState("line one")
	s, _ = s.SuggestionInserted("echo")
	s, _ = s.SuggestionInserted("echo")
	if s.Lyrics != "line one\necho\necho" {
		t.Errorf("lyrics = %q", s.Lyrics)
	}
}

func TestFetchSequencing(t *testing.T) {
	s := newTestState("some lyrics here")

	s, first := s.SuggestionsDispatched()
	s, second := s.SuggestionsDispatched()
	if s.SuggestionStatus != StatusPending {
		t.Fatalf("status = %s", s.SuggestionStatus)
	}

	fresh := []generation.Suggestion{{Text: "fresh", Category: generation.CategoryHook, MatchScore: 90, Rating: 5}}
	stale := []generation.Suggestion{{Text: "stale", Category: generation.CategoryFlow, MatchScore: 10, Rating: 1}}

	s, applied := s.SuggestionsFulfilled(second, fresh)
	if !applied || s.SuggestionStatus != StatusIdle {
		t.Fatalf("latest response not applied")
	}
	s, applied = s.SuggestionsFulfilled(first, stale)
	if applied || s.Suggestions[0].Text != "fresh" {
		t.Errorf("stale response overwrote newer results: %+v", s.Suggestions)
	}
	s, applied = s.SuggestionsFailed(first)
	if applied || len(s.Suggestions) != 1 {
		t.Errorf("stale failure cleared newer results")
	}

	s, third := s.SuggestionsDispatched()
	s, applied = s.SuggestionsFailed(third)
	if !applied || len(s.Suggestions) != 0 || s.Suggestions == nil {
		t.Errorf("failure should leave an empty list, got %#v", s.Suggestions)
	}
}

func TestRhymesClearedInvalidatesInFlight(t *testing.T) {
	s := newTestState("sky")
	s, seq := s.RhymesDispatched()
	s = s.RhymesCleared()

	s, applied := s.RhymesFulfilled(seq, []string{"high"})
	if applied || len(s.Rhymes) != 0 {
		t.Errorf("response for a cleared focus was applied: %v", s.Rhymes)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	bpm := 100
	s := newTestState("night light")
	s.Context.Instrumental = &generation.InstrumentalMetadata{BPM: &bpm, VibeTags: []string{"Dark"}}
	s.Rhymes = []string{"bright"}

	c := s.Clone()
	c.Rhymes[0] = "changed"
	*c.Context.Instrumental.BPM = 1
	c.Focus.Word = "x"

	if s.Rhymes[0] != "bright" || *s.Context.Instrumental.BPM != 100 || s.Focus.Word != "light" {
		t.Error("clone shares mutable data with original")
	}
}
