package studio

import (
	"strings"
	"unicode/utf8"

	"github.com/sukalov/lyricstudio/internal/generation"
)

type FetchStatus string

const (
	StatusIdle    FetchStatus = "idle"
	StatusPending FetchStatus = "pending"
)

// RequestContext travels with every fetch.
type RequestContext struct {
	Genre        generation.Genre                 `json:"genre"`
	Instrumental *generation.InstrumentalMetadata `json:"instrumental,omitempty"`
	Persona      bool                             `json:"persona"`
}

// State is everything an editor session knows. Transitions are pure: each
// returns a new State and leaves the receiver untouched. Result lists are
// only ever replaced, never modified in place, so copies may share them.
type State struct {
	Lyrics           string                  `json:"lyrics"`
	Selection        Selection               `json:"selection"`
	Focus            *Focus                  `json:"focus,omitempty"`
	Suggestions      []generation.Suggestion `json:"suggestions"`
	Rhymes           []string                `json:"rhymes"`
	SuggestionStatus FetchStatus             `json:"suggestionStatus"`
	RhymeStatus      FetchStatus             `json:"rhymeStatus"`
	Context          RequestContext          `json:"context"`
	AutoSuggest      bool                    `json:"autoSuggest"`

	// latest issued request per controller; older responses are stale
	suggestionSeq uint64
	rhymeSeq      uint64
}

func NewState(lyrics string, ctx RequestContext, autoSuggest bool) State {
	s := State{
		Suggestions:      []generation.Suggestion{},
		Rhymes:           []string{},
		SuggestionStatus: StatusIdle,
		RhymeStatus:      StatusIdle,
		Context:          ctx,
		AutoSuggest:      autoSuggest,
	}
	return s.TextChanged(lyrics, Cursor(utf8.RuneCountInString(lyrics)))
}

// TextChanged replaces the buffer and re-detects focus at sel.
func (s State) TextChanged(text string, sel Selection) State {
	s.Lyrics = text
	return s.SelectionChanged(sel)
}

func (s State) SelectionChanged(sel Selection) State {
	s.Selection = sel.clamp(utf8.RuneCountInString(s.Lyrics))
	if f, ok := DetectFocus(s.Lyrics, s.Selection); ok {
		s.Focus = &f
	} else {
		s.Focus = nil
	}
	return s
}

// validFocus returns the focus if its range still fits the buffer.
func (s State) validFocus() *Focus {
	if s.Focus == nil {
		return nil
	}
	r := s.Focus.Range
	if r.Start < 0 || r.Start > r.End || r.End > utf8.RuneCountInString(s.Lyrics) {
		return nil
	}
	return s.Focus
}

func (s State) SuggestionsDispatched() (State, uint64) {
	s.suggestionSeq++
	s.SuggestionStatus = StatusPending
	return s, s.suggestionSeq
}

// SuggestionsFulfilled applies items if seq is the latest request. The
// second result reports whether anything was applied.
func (s State) SuggestionsFulfilled(seq uint64, items []generation.Suggestion) (State, bool) {
	if seq != s.suggestionSeq {
		return s, false
	}
	if items == nil {
		items = []generation.Suggestion{}
	}
	s.Suggestions = items
	s.SuggestionStatus = StatusIdle
	return s, true
}

func (s State) SuggestionsFailed(seq uint64) (State, bool) {
	return s.SuggestionsFulfilled(seq, nil)
}

func (s State) RhymesDispatched() (State, uint64) {
	s.rhymeSeq++
	s.RhymeStatus = StatusPending
	return s, s.rhymeSeq
}

func (s State) RhymesFulfilled(seq uint64, items []string) (State, bool) {
	if seq != s.rhymeSeq {
		return s, false
	}
	if items == nil {
		items = []string{}
	}
	s.Rhymes = items
	s.RhymeStatus = StatusIdle
	return s, true
}

func (s State) RhymesFailed(seq uint64) (State, bool) {
	return s.RhymesFulfilled(seq, nil)
}

// RhymesCleared empties the candidates and invalidates any request in
// flight.
func (s State) RhymesCleared() State {
	s.rhymeSeq++
	s.Rhymes = []string{}
	s.RhymeStatus = StatusIdle
	return s
}

// RhymeApplied swaps the focused word for candidate and moves focus onto the
// inserted text. It returns the cursor offset the surface should move to
// once it shows the new buffer. Without a valid focus nothing changes.
func (s State) RhymeApplied(candidate string) (State, int, bool) {
	f := s.validFocus()
	if f == nil {
		return s, 0, false
	}

	runes := []rune(s.Lyrics)
	replacement := []rune(candidate)

	out := make([]rune, 0, len(runes)-f.Range.Len()+len(replacement))
	out = append(out, runes[:f.Range.Start]...)
	out = append(out, replacement...)
	out = append(out, runes[f.Range.End:]...)

	end := f.Range.Start + len(replacement)
	s.Lyrics = string(out)
	s.Focus = &Focus{Word: candidate, Range: Range{Start: f.Range.Start, End: end}}
	s.Selection = Cursor(end)
	return s, end, true
}

// SuggestionInserted appends text on its own line and returns the cursor
// offset at the new end of the buffer.
func (s State) SuggestionInserted(text string) (State, int) {
	return s.LineAppended(text)
}

// LineAppended adds text as is when the buffer is empty or ends with a line
// break, and after a "\n" otherwise.
func (s State) LineAppended(text string) (State, int) {
	if s.Lyrics == "" || strings.HasSuffix(s.Lyrics, "\n") {
		s.Lyrics += text
	} else {
		s.Lyrics += "\n" + text
	}
	end := utf8.RuneCountInString(s.Lyrics)
	return s.SelectionChanged(Cursor(end)), end
}

// Clone returns a copy that shares nothing mutable with s.
func (s State) Clone() State {
	c := s
	if s.Focus != nil {
		f := *s.Focus
		c.Focus = &f
	}
	c.Suggestions = append([]generation.Suggestion{}, s.Suggestions...)
	c.Rhymes = append([]string{}, s.Rhymes...)
	c.Context.Instrumental = cloneInstrumental(s.Context.Instrumental)
	return c
}

// FocusWord returns the focused word, or "" when there is none.
func (s State) FocusWord() string {
	if f := s.validFocus(); f != nil {
		return f.Word
	}
	return ""
}

func cloneInstrumental(m *generation.InstrumentalMetadata) *generation.InstrumentalMetadata {
	if m == nil {
		return nil
	}
	c := *m
	if m.BPM != nil {
		bpm := *m.BPM
		c.BPM = &bpm
	}
	if m.Key != nil {
		key := *m.Key
		c.Key = &key
	}
	if m.EnergyLevel != nil {
		energy := *m.EnergyLevel
		c.EnergyLevel = &energy
	}
	c.VibeTags = append([]string{}, m.VibeTags...)
	return &c
}
