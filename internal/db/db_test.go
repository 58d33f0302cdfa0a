package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sukalov/lyricstudio/internal/generation"
	"github.com/sukalov/lyricstudio/internal/studio"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:", "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestProfileRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.GetProfile(ctx, "42"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing writer: err = %v", err)
	}

	p := studio.DefaultProfile().WithCadence(studio.SimulatedCadence)
	p.Genre = generation.GenreRnB
	p.ArtistMode = true
	if err := s.SaveProfile(ctx, "42", "mc test", p); err != nil {
		t.Fatal(err)
	}

	w, err := s.GetProfile(ctx, "42")
	if err != nil {
		t.Fatal(err)
	}
	if w.Name != "mc test" || w.Profile != p {
		t.Errorf("writer = %+v, want profile %+v", w, p)
	}

	p.AutoSuggest = false
	p.BPM = 120
	if err := s.SaveProfile(ctx, "42", "renamed", p); err != nil {
		t.Fatal(err)
	}
	w, err = s.GetProfile(ctx, "42")
	if err != nil {
		t.Fatal(err)
	}
	if w.Name != "renamed" || w.Profile.AutoSuggest || w.Profile.BPM != 120 {
		t.Errorf("update not applied: %+v", w)
	}
}

func TestWeeklyActivity(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	record := func(writer string, kind EventKind, at time.Time) {
		t.Helper()
		if err := s.RecordEvent(ctx, writer, kind, "", at); err != nil {
			t.Fatal(err)
		}
	}

	record("w", EventRhymeApplied, now)
	record("w", EventRhymeApplied, now.Add(-time.Hour))
	record("w", EventSuggestionInserted, now.AddDate(0, 0, -6))
	record("w", EventSuggestionsFetched, now.AddDate(0, 0, -2))
	record("w", EventRhymeApplied, now.AddDate(0, 0, -7))
	record("other", EventRhymeApplied, now)

	days, err := s.WeeklyActivity(ctx, "w", now)
	if err != nil {
		t.Fatal(err)
	}
	if len(days) != 7 {
		t.Fatalf("days = %d, want 7", len(days))
	}
	if !days[0].Day.Equal(time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("first day = %v", days[0].Day)
	}
	if days[6].Rhymes != 2 {
		t.Errorf("today rhymes = %d, want 2", days[6].Rhymes)
	}
	if days[0].Suggestions != 1 || days[0].Rhymes != 0 {
		t.Errorf("oldest day = %+v", days[0])
	}
	if days[4].Fetches != 1 {
		t.Errorf("fetches two days ago = %d", days[4].Fetches)
	}
}
