package generation

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zeebo/blake3"

	"github.com/sukalov/lyricstudio/internal/logger"
)

// Store is a JSON key-value store with expiry.
type Store interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Forget(ctx context.Context, keys ...string) error
}

// Cached answers repeated rhyme and instrumental requests from store. Store
// failures are logged and the request falls through to next; only non-empty
// successes are stored. Lyric suggestions and cadence takes always reach
// next.
type Cached struct {
	next  Service
	store Store
	ttl   time.Duration
}

func NewCached(next Service, store Store, ttl time.Duration) *Cached {
	return &Cached{next: next, store: store, ttl: ttl}
}

// SuggestLyrics is never cached: asking again for the same buffer must
// bring new lines.
func (c *Cached) SuggestLyrics(ctx context.Context, req SuggestionRequest) ([]Suggestion, error) {
	return c.next.SuggestLyrics(ctx, req)
}

func (c *Cached) SuggestRhymes(ctx context.Context, req RhymeRequest) ([]string, error) {
	key := cacheKey("rhymes", req)
	var cached []string
	if c.lookup(ctx, key, &cached) {
		return cached, nil
	}

	res, err := c.next.SuggestRhymes(ctx, req)
	if err == nil && len(res) > 0 {
		c.save(ctx, key, res)
	}
	return res, err
}

func (c *Cached) AnalyzeInstrumental(ctx context.Context, audio Audio) (*InstrumentalMetadata, error) {
	key := audioKey("instrumental", audio)
	var cached InstrumentalMetadata
	if c.lookup(ctx, key, &cached) {
		return &cached, nil
	}

	res, err := c.next.AnalyzeInstrumental(ctx, audio)
	if err == nil && res != nil {
		c.save(ctx, key, res)
	}
	return res, err
}

// AnalyzeCadence is never cached: every take is a new performance.
func (c *Cached) AnalyzeCadence(ctx context.Context, audio Audio) (*CadenceAnalysis, error) {
	return c.next.AnalyzeCadence(ctx, audio)
}

// ForgetInstrumental drops the stored analysis of audio so the next
// AnalyzeInstrumental asks again.
func (c *Cached) ForgetInstrumental(ctx context.Context, audio Audio) error {
	key := audioKey("instrumental", audio)
	if err := c.store.Forget(ctx, key); err != nil {
		return fmt.Errorf("failed to forget %s: %w", key, err)
	}
	return nil
}

func (c *Cached) lookup(ctx context.Context, key string, dst any) bool {
	found, err := c.store.GetJSON(ctx, key, dst)
	if err != nil {
		logger.Error(fmt.Sprintf("generation cache read failed\nKey: %s\nError: %v", key, err))
		return false
	}
	if found {
		logger.Debug(fmt.Sprintf("generation cache hit: %s", key))
	}
	return found
}

func (c *Cached) save(ctx context.Context, key string, value any) {
	if err := c.store.SetJSON(ctx, key, value, c.ttl); err != nil {
		logger.Error(fmt.Sprintf("generation cache write failed\nKey: %s\nError: %v", key, err))
	}
}

func cacheKey(kind string, req any) string {
	payload, _ := json.Marshal(req)
	sum := blake3.Sum256(payload)
	return "lyricstudio:" + kind + ":" + hex.EncodeToString(sum[:])
}

func audioKey(kind string, audio Audio) string {
	h := blake3.New()
	h.Write([]byte(audio.MIMEType))
	h.Write([]byte{0})
	h.Write(audio.Data)
	return "lyricstudio:" + kind + ":" + hex.EncodeToString(h.Sum(nil))
}
