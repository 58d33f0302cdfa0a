package studio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sukalov/lyricstudio/internal/generation"
	"github.com/sukalov/lyricstudio/internal/logger"
)

var ErrSessionClosed = errors.New("session closed")

// Generator is the part of the generation collaborator a session needs.
type Generator interface {
	SuggestLyrics(ctx context.Context, req generation.SuggestionRequest) ([]generation.Suggestion, error)
	SuggestRhymes(ctx context.Context, req generation.RhymeRequest) ([]string, error)
	AnalyzeInstrumental(ctx context.Context, audio generation.Audio) (*generation.InstrumentalMetadata, error)
}

type Options struct {
	SuggestDelay       time.Duration
	RhymeDelay         time.Duration
	MinSuggestLength   int
	MinRhymeWordLength int
	ContextRadius      int
	// RequestTimeout bounds each collaborator call; zero leaves it to the
	// collaborator.
	RequestTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		SuggestDelay:       2500 * time.Millisecond,
		RhymeDelay:         400 * time.Millisecond,
		MinSuggestLength:   10,
		MinRhymeWordLength: 2,
		ContextRadius:      100,
	}
}

type EventKind string

const (
	EventLyricsChanged       EventKind = "lyrics_changed"
	EventFocusChanged        EventKind = "focus_changed"
	EventCursor              EventKind = "cursor"
	EventSuggestionsPending  EventKind = "suggestions_pending"
	EventSuggestionsUpdated  EventKind = "suggestions_updated"
	EventRhymesPending       EventKind = "rhymes_pending"
	EventRhymesUpdated       EventKind = "rhymes_updated"
	EventRhymeApplied        EventKind = "rhyme_applied"
	EventSuggestionInserted  EventKind = "suggestion_inserted"
	EventInstrumentalChanged EventKind = "instrumental_changed"
	EventSettingsChanged     EventKind = "settings_changed"
)

// Event is published after every transition. Cursor is set on EventCursor,
// Text carries the applied rhyme or inserted suggestion.
type Event struct {
	Kind      EventKind `json:"kind"`
	SessionID string    `json:"sessionId"`
	State     State     `json:"state"`
	Cursor    *int      `json:"cursor,omitempty"`
	Text      string    `json:"text,omitempty"`
	Failed    bool      `json:"failed,omitempty"`
	// Seq increases by one per event of a session, in transition order.
	Seq uint64 `json:"seq"`
}

type Listener func(Event)

// Session is one editor: a lyric buffer with its focus and the two fetch
// controllers. All transitions are serialized by mu; collaborator calls run
// outside of it.
type Session struct {
	id   string
	gen  Generator
	opts Options

	ctx    context.Context
	cancel context.CancelFunc

	suggestDebounce *Debouncer
	rhymeDebounce   *Debouncer

	mu        sync.Mutex
	state     State
	closed    bool
	listeners map[int]Listener
	nextLID   int

	// events wait in outbox in transition order until one flush delivers them
	outbox   []Event
	eventSeq uint64
	flushing bool
}

func NewSession(id string, gen Generator, opts Options, initial State) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:              id,
		gen:             gen,
		opts:            opts,
		ctx:             ctx,
		cancel:          cancel,
		suggestDebounce: NewDebouncer(opts.SuggestDelay),
		rhymeDebounce:   NewDebouncer(opts.RhymeDelay),
		state:           initial,
		listeners:       make(map[int]Listener),
	}
}

func (s *Session) ID() string {
	return s.id
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Current returns the state as a lyrics_changed event carrying the Seq of
// the last event published. Events with a Seq at or below it are older.
func (s *Session) Current() Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev := s.eventLocked(EventLyricsChanged)
	ev.Seq = s.eventSeq
	return ev
}

// Subscribe registers l for every future event and returns a func that
// removes it.
func (s *Session) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextLID
	s.nextLID++
	s.listeners[id] = l

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Close stops pending timers and drops any response still in flight.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.suggestDebounce.Cancel()
	s.rhymeDebounce.Cancel()
	s.cancel()
}

// Edit handles a text change reported by the editing surface.
func (s *Session) Edit(text string, sel Selection) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}

	prev := s.state
	s.state = s.state.TextChanged(text, sel)

	events := []Event{s.eventLocked(EventLyricsChanged)}
	events = append(events, s.afterFocusLocked(prev.Focus)...)
	if s.state.AutoSuggest && text != prev.Lyrics {
		s.scheduleSuggestionsLocked()
	}
	s.publishLocked(events...)
	s.mu.Unlock()

	s.flush()
	return nil
}

// Select handles a cursor move, click or selection change.
func (s *Session) Select(sel Selection) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}

	prev := s.state
	s.state = s.state.SelectionChanged(sel)
	events := s.afterFocusLocked(prev.Focus)
	s.publishLocked(events...)
	s.mu.Unlock()

	s.flush()
	return nil
}

// RequestSuggestions is the manual trigger. It skips the quiet period and
// reports whether a request went out.
func (s *Session) RequestSuggestions() bool {
	s.suggestDebounce.Cancel()
	return s.dispatchSuggestions()
}

// RequestRhymes fetches candidates for the current focus word right away.
// It reports false when there is no focus word of usable length.
func (s *Session) RequestRhymes() bool {
	s.rhymeDebounce.Cancel()
	return s.dispatchRhymes(true)
}

// ApplyRhyme replaces the focused word with candidate. It is a no-op
// without focus.
func (s *Session) ApplyRhyme(candidate string) (int, bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, false
	}

	prev := s.state
	next, cursor, ok := s.state.RhymeApplied(candidate)
	if !ok {
		s.mu.Unlock()
		logger.Debug(fmt.Sprintf("session %s: rhyme %q applied without focus, ignoring", s.id, candidate))
		return 0, false
	}
	s.state = next

	events := []Event{s.eventLocked(EventLyricsChanged)}
	applied := s.eventLocked(EventRhymeApplied)
	applied.Text = candidate
	events = append(events, applied)
	events = append(events, s.afterFocusLocked(prev.Focus)...)
	if s.state.AutoSuggest {
		s.scheduleSuggestionsLocked()
	}
	// the cursor goes last, once the new buffer has been published
	events = append(events, s.cursorEventLocked(cursor))
	s.publishLocked(events...)
	s.mu.Unlock()

	s.flush()
	return cursor, true
}

// InsertSuggestion appends text to the buffer on a new line.
func (s *Session) InsertSuggestion(text string) (int, error) {
	return s.appendLine(text, true)
}

// AppendLine adds a typed line at the end of the buffer, on its own line,
// and moves the cursor after it. Concurrent appends all land.
func (s *Session) AppendLine(text string) (int, error) {
	return s.appendLine(text, false)
}

func (s *Session) appendLine(text string, suggestion bool) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrSessionClosed
	}

	prev := s.state
	var cursor int
	s.state, cursor = s.state.LineAppended(text)

	events := []Event{s.eventLocked(EventLyricsChanged)}
	if suggestion {
		inserted := s.eventLocked(EventSuggestionInserted)
		inserted.Text = text
		events = append(events, inserted)
	}
	events = append(events, s.afterFocusLocked(prev.Focus)...)
	if s.state.AutoSuggest {
		s.scheduleSuggestionsLocked()
	}
	events = append(events, s.cursorEventLocked(cursor))
	s.publishLocked(events...)
	s.mu.Unlock()

	s.flush()
	return cursor, nil
}

func (s *Session) SetGenre(g generation.Genre) {
	s.updateSettings(func(st *State) { st.Context.Genre = g })
}

func (s *Session) SetPersona(on bool) {
	s.updateSettings(func(st *State) { st.Context.Persona = on })
}

// SetAutoSuggest toggles debounced suggestions. Turning it off drops a
// pending, unfired trigger.
func (s *Session) SetAutoSuggest(on bool) {
	if !on {
		s.suggestDebounce.Cancel()
	}
	s.updateSettings(func(st *State) { st.AutoSuggest = on })
}

func (s *Session) updateSettings(apply func(*State)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	apply(&s.state)
	ev := s.eventLocked(EventSettingsChanged)
	s.publishLocked(ev)
	s.mu.Unlock()

	s.flush()
}

// SetInstrumental replaces the beat metadata used as fetch context; nil
// removes it.
func (s *Session) SetInstrumental(meta *generation.InstrumentalMetadata) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.state.Context.Instrumental = cloneInstrumental(meta)
	ev := s.eventLocked(EventInstrumentalChanged)
	s.publishLocked(ev)
	s.mu.Unlock()

	s.flush()
}

// AnalyzeInstrumental sends the uploaded beat to the collaborator and, on
// success, makes the result the session's instrumental metadata. On failure
// the previous metadata is kept.
func (s *Session) AnalyzeInstrumental(ctx context.Context, audio generation.Audio) (*generation.InstrumentalMetadata, error) {
	meta, err := s.gen.AnalyzeInstrumental(ctx, audio)
	if err != nil {
		logger.Error(fmt.Sprintf("session %s: instrumental analysis failed\nMIME: %s\nSize: %d bytes\nError: %v", s.id, audio.MIMEType, len(audio.Data), err))
		return nil, err
	}
	if meta == nil {
		return nil, fmt.Errorf("instrumental analysis: %w", generation.ErrMalformed)
	}
	s.SetInstrumental(meta)
	return meta, nil
}

// afterFocusLocked reacts to a possible focus change: a new word of usable
// length schedules a rhyme fetch, anything else clears the candidates
// right away.
func (s *Session) afterFocusLocked(prev *Focus) []Event {
	if sameFocus(prev, s.state.Focus) {
		return nil
	}
	events := []Event{s.eventLocked(EventFocusChanged)}

	if focusWord(prev) == focusWord(s.state.Focus) {
		return events
	}

	word := s.state.FocusWord()
	if utf8.RuneCountInString(word) < s.opts.MinRhymeWordLength {
		s.rhymeDebounce.Cancel()
		hadRhymes := len(s.state.Rhymes) > 0 || s.state.RhymeStatus == StatusPending
		s.state = s.state.RhymesCleared()
		if hadRhymes {
			events = append(events, s.eventLocked(EventRhymesUpdated))
		}
		return events
	}

	// timer callbacks have their own goroutine, fetch in place
	s.rhymeDebounce.Schedule(func() { s.dispatchRhymes(false) })
	return events
}

func (s *Session) scheduleSuggestionsLocked() {
	s.suggestDebounce.Schedule(func() { s.dispatchSuggestions() })
}

func (s *Session) dispatchSuggestions() bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	if utf8.RuneCountInString(strings.TrimSpace(s.state.Lyrics)) < s.opts.MinSuggestLength {
		s.mu.Unlock()
		return false
	}

	var seq uint64
	s.state, seq = s.state.SuggestionsDispatched()
	req := generation.SuggestionRequest{
		Context:      s.state.Lyrics,
		Genre:        s.state.Context.Genre,
		Instrumental: cloneInstrumental(s.state.Context.Instrumental),
		Persona:      s.state.Context.Persona,
	}
	ev := s.eventLocked(EventSuggestionsPending)
	s.publishLocked(ev)
	s.mu.Unlock()

	s.flush()
	go s.fetchSuggestions(seq, req)
	return true
}

func (s *Session) fetchSuggestions(seq uint64, req generation.SuggestionRequest) {
	ctx, cancel := s.requestContext()
	defer cancel()

	items, err := s.gen.SuggestLyrics(ctx, req)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	var applied bool
	if err != nil {
		s.state, applied = s.state.SuggestionsFailed(seq)
	} else {
		s.state, applied = s.state.SuggestionsFulfilled(seq, items)
	}
	if !applied {
		s.mu.Unlock()
		logger.Debug(fmt.Sprintf("session %s: dropping stale suggestions response #%d", s.id, seq))
		return
	}
	ev := s.eventLocked(EventSuggestionsUpdated)
	ev.Failed = err != nil
	s.publishLocked(ev)
	s.mu.Unlock()

	if err != nil {
		logger.Error(fmt.Sprintf("session %s: lyric suggestions failed\nError: %v", s.id, err))
	}
	s.flush()
}

func (s *Session) dispatchRhymes(async bool) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	f := s.state.validFocus()
	if f == nil || utf8.RuneCountInString(f.Word) < s.opts.MinRhymeWordLength {
		s.mu.Unlock()
		return false
	}

	var seq uint64
	s.state, seq = s.state.RhymesDispatched()
	req := generation.RhymeRequest{
		Word:    f.Word,
		Genre:   s.state.Context.Genre,
		Context: contextWindow(s.state.Lyrics, f.Range, s.opts.ContextRadius),
	}
	if meta := s.state.Context.Instrumental; meta != nil && meta.BPM != nil {
		bpm := *meta.BPM
		req.BPM = &bpm
	}
	ev := s.eventLocked(EventRhymesPending)
	s.publishLocked(ev)
	s.mu.Unlock()

	s.flush()
	if async {
		go s.fetchRhymes(seq, req)
	} else {
		s.fetchRhymes(seq, req)
	}
	return true
}

func (s *Session) fetchRhymes(seq uint64, req generation.RhymeRequest) {
	ctx, cancel := s.requestContext()
	defer cancel()

	rhymes, err := s.gen.SuggestRhymes(ctx, req)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	var applied bool
	if err != nil {
		s.state, applied = s.state.RhymesFailed(seq)
	} else {
		s.state, applied = s.state.RhymesFulfilled(seq, rhymes)
	}
	if !applied {
		s.mu.Unlock()
		logger.Debug(fmt.Sprintf("session %s: dropping stale rhymes for %q", s.id, req.Word))
		return
	}
	ev := s.eventLocked(EventRhymesUpdated)
	ev.Failed = err != nil
	s.publishLocked(ev)
	s.mu.Unlock()

	if err != nil {
		logger.Error(fmt.Sprintf("session %s: rhyme suggestions for %q failed\nError: %v", s.id, req.Word, err))
	}
	s.flush()
}

func (s *Session) requestContext() (context.Context, context.CancelFunc) {
	if s.opts.RequestTimeout > 0 {
		return context.WithTimeout(s.ctx, s.opts.RequestTimeout)
	}
	return context.WithCancel(s.ctx)
}

func (s *Session) eventLocked(kind EventKind) Event {
	return Event{Kind: kind, SessionID: s.id, State: s.state.Clone()}
}

func (s *Session) cursorEventLocked(cursor int) Event {
	ev := s.eventLocked(EventCursor)
	ev.Cursor = &cursor
	return ev
}

// publishLocked queues events behind everything published before them.
func (s *Session) publishLocked(events ...Event) {
	for _, ev := range events {
		s.eventSeq++
		ev.Seq = s.eventSeq
		s.outbox = append(s.outbox, ev)
	}
}

// flush delivers queued events in order. Only one goroutine delivers at a
// time; a flush that finds another in progress leaves its events to it, so
// listeners never see an older state after a newer one. Listeners may call
// back into the session.
func (s *Session) flush() {
	s.mu.Lock()
	if s.flushing {
		s.mu.Unlock()
		return
	}
	s.flushing = true

	for len(s.outbox) > 0 {
		batch := s.outbox
		s.outbox = nil
		listeners := make([]Listener, 0, len(s.listeners))
		for _, l := range s.listeners {
			listeners = append(listeners, l)
		}
		s.mu.Unlock()

		for _, ev := range batch {
			for _, l := range listeners {
				l(ev)
			}
		}

		s.mu.Lock()
	}

	s.flushing = false
	s.mu.Unlock()
}

func sameFocus(a, b *Focus) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func focusWord(f *Focus) string {
	if f == nil {
		return ""
	}
	return f.Word
}
