package stats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sukalov/lyricstudio/internal/db"
	"github.com/sukalov/lyricstudio/internal/logger"
	"github.com/sukalov/lyricstudio/internal/studio"
)

type EventStore interface {
	RecordEvent(ctx context.Context, writerID string, kind db.EventKind, detail string, at time.Time) error
}

type record struct {
	writerID string
	kind     db.EventKind
	detail   string
	at       time.Time
}

// Recorder turns studio events into stored activity. Listen never blocks
// the session: records are queued and written by Run, and dropped when
// the queue is full.
type Recorder struct {
	store EventStore
	queue chan record
	now   func() time.Time
	done  chan struct{}

	mu      sync.RWMutex
	writers map[string]string
}

func NewRecorder(store EventStore, buffer int) *Recorder {
	return &Recorder{
		store:   store,
		queue:   make(chan record, buffer),
		now:     time.Now,
		done:    make(chan struct{}),
		writers: make(map[string]string),
	}
}

// Bind attributes the events of a session to a writer. Unbound sessions
// are attributed to their own id.
func (r *Recorder) Bind(sessionID, writerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writers[sessionID] = writerID
}

func (r *Recorder) Unbind(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.writers, sessionID)
}

func (r *Recorder) writerOf(sessionID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if w, ok := r.writers[sessionID]; ok {
		return w
	}
	return sessionID
}

// Listen is a studio.Listener.
func (r *Recorder) Listen(ev studio.Event) {
	var kind db.EventKind
	switch ev.Kind {
	case studio.EventRhymeApplied:
		kind = db.EventRhymeApplied
	case studio.EventSuggestionInserted:
		kind = db.EventSuggestionInserted
	case studio.EventSuggestionsUpdated:
		if ev.Failed {
			return
		}
		kind = db.EventSuggestionsFetched
	default:
		return
	}

	rec := record{writerID: r.writerOf(ev.SessionID), kind: kind, detail: ev.Text, at: r.now()}
	select {
	case r.queue <- rec:
	default:
		logger.Error(fmt.Sprintf("stats queue full, dropping %s for %s", kind, rec.writerID))
	}
}

// Run writes queued records until ctx is done, then flushes what is left
// and closes Done. It must be called once.
func (r *Recorder) Run(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case rec := <-r.queue:
			r.write(ctx, rec)
		case <-ctx.Done():
			for {
				select {
				case rec := <-r.queue:
					r.write(ctx, rec)
				default:
					return
				}
			}
		}
	}
}

// Done is closed once Run has flushed the queue; the store may be closed
// after that.
func (r *Recorder) Done() <-chan struct{} {
	return r.done
}

func (r *Recorder) write(ctx context.Context, rec record) {
	if err := r.store.RecordEvent(context.WithoutCancel(ctx), rec.writerID, rec.kind, rec.detail, rec.at); err != nil {
		logger.Error(fmt.Sprintf("failed to record studio activity\nWriter: %s\nError: %v", rec.writerID, err))
	}
}
