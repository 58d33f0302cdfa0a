package users

import (
	"sync"
	"time"

	"github.com/sukalov/lyricstudio/internal/generation"
)

type Stage string

const (
	StageChoosingGenre Stage = "choosing_genre"
	StageCalibrating   Stage = "calibrating"
	StageWriting       Stage = "writing"
	StageAwaitingBeat  Stage = "awaiting_beat"
)

// ChatState is where a writer is in the chat flow, plus the result lists
// last shown to them so button taps resolve against what they saw.
type ChatState struct {
	ChatID    int64            `json:"chat_id"`
	Username  string           `json:"username"`
	TgName    string           `json:"tg_name"`
	Stage     Stage            `json:"stage"`
	Genre     generation.Genre `json:"genre"`
	TimeAdded time.Time        `json:"time_added"`

	ShownRhymes      []string `json:"shown_rhymes"`
	ShownSuggestions []string `json:"shown_suggestions"`

	// the next result of each kind is pushed to the chat
	WantRhymes      bool `json:"want_rhymes"`
	WantSuggestions bool `json:"want_suggestions"`

	ClearInProgress bool `json:"clear_in_progress"`
}

// Manager keeps chat states keyed by chat id.
type Manager struct {
	mu     sync.RWMutex
	states map[int64]ChatState
}

func NewManager() *Manager {
	return &Manager{states: make(map[int64]ChatState)}
}

func (m *Manager) Get(chatID int64) (ChatState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.states[chatID]
	return st, ok
}

// Put stores st, replacing any previous state of the chat.
func (m *Manager) Put(st ChatState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if st.TimeAdded.IsZero() {
		st.TimeAdded = time.Now()
	}
	m.states[st.ChatID] = st
}

// Update applies fn to the state of chatID under the lock. It reports false
// when the chat has no state.
func (m *Manager) Update(chatID int64, fn func(*ChatState)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[chatID]
	if !ok {
		return false
	}
	fn(&st)
	m.states[chatID] = st
	return true
}

func (m *Manager) Delete(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, chatID)
}

// InStage returns the chats currently in stage.
func (m *Manager) InStage(stage Stage) []ChatState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ChatState
	for _, st := range m.states {
		if st.Stage == stage {
			out = append(out, st)
		}
	}
	return out
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.states)
}
