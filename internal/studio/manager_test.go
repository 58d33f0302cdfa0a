package studio

import (
	"testing"

	"github.com/sukalov/lyricstudio/internal/generation"
)

func TestManager(t *testing.T) {
	m := NewManager(&fakeGenerator{}, testOptions())
	defer m.CloseAll()

	var seen []EventKind
	m.OnEvent(func(ev Event) { seen = append(seen, ev.Kind) })

	profile := DefaultProfile()
	profile.Genre = generation.GenrePop
	profile.AutoSuggest = false

	s, err := m.Open("b", "hello there", profile)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Open("b", "", profile); err == nil {
		t.Error("opening a duplicate id should fail")
	}

	snap := s.Snapshot()
	if snap.Context.Genre != generation.GenrePop || snap.AutoSuggest || snap.FocusWord() != "there" {
		t.Errorf("state = %+v", snap)
	}

	if got := m.GetOrOpen("b", profile); got != s {
		t.Error("GetOrOpen returned a different session")
	}
	a := m.GetOrOpen("a", DefaultProfile())
	if a == nil || a.Snapshot().Lyrics != "" {
		t.Fatal("GetOrOpen did not open an empty session")
	}

	if ids := m.IDs(); len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("ids = %v", ids)
	}

	s.SetPersona(true)
	if len(seen) != 1 || seen[0] != EventSettingsChanged {
		t.Errorf("listener saw %v", seen)
	}

	if !m.Close("b") {
		t.Error("close reported missing session")
	}
	if m.Close("b") {
		t.Error("second close should report false")
	}
	if _, ok := m.Get("b"); ok {
		t.Error("closed session still registered")
	}
	if err := s.Edit("x", Cursor(1)); err == nil {
		t.Error("closed session accepted an edit")
	}
}
