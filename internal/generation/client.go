package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Engine runs one completion and returns the raw text of the answer.
type Engine interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
	Name() string
}

// Client builds prompts for the studio and parses what the engine returns.
type Client struct {
	engine Engine
}

func NewClient(engine Engine) *Client {
	return &Client{engine: engine}
}

type wireSuggestion struct {
	Text   string  `json:"text"`
	Type   string  `json:"type"`
	Score  float64 `json:"score"`
	Rating float64 `json:"rating"`
}

type wireInstrumental struct {
	BPM    *float64 `json:"bpm"`
	Key    *string  `json:"key"`
	Energy *float64 `json:"energy"`
	Vibe   []string `json:"vibe"`
}

type wireCadence struct {
	RhymeScore  float64 `json:"rhymeScore"`
	FlowScore   float64 `json:"flowScore"`
	EnergyScore float64 `json:"energyScore"`
	BPM         float64 `json:"bpm"`
	Feedback    string  `json:"feedback"`
}

// SuggestLyrics asks for ranked continuations of the lyric buffer. Order is
// kept as returned.
func (c *Client) SuggestLyrics(ctx context.Context, req SuggestionRequest) ([]Suggestion, error) {
	raw, err := c.engine.Complete(ctx, Prompt{Text: suggestionPrompt(req), Shape: ShapeSuggestions})
	if err != nil {
		return nil, fmt.Errorf("%s: lyric suggestions: %w", c.engine.Name(), err)
	}

	var wire []wireSuggestion
	if err := decodeList(raw, &wire, "suggestions"); err != nil {
		return nil, err
	}

	suggestions := make([]Suggestion, 0, len(wire))
	for _, w := range wire {
		if strings.TrimSpace(w.Text) == "" {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			Text:       w.Text,
			Category:   Category(strings.ToLower(strings.TrimSpace(w.Type))),
			MatchScore: clamp(w.Score, 0, 100),
			Rating:     clamp(w.Rating, 1, 5),
		})
	}
	return suggestions, nil
}

// SuggestRhymes asks for rhyme candidates. Duplicates are preserved.
func (c *Client) SuggestRhymes(ctx context.Context, req RhymeRequest) ([]string, error) {
	if len([]rune(req.Word)) < 2 {
		return []string{}, nil
	}

	raw, err := c.engine.Complete(ctx, Prompt{Text: rhymePrompt(req), Shape: ShapeRhymes})
	if err != nil {
		return nil, fmt.Errorf("%s: rhyme suggestions: %w", c.engine.Name(), err)
	}

	var rhymes []string
	if err := decodeList(raw, &rhymes, "rhymes"); err != nil {
		return nil, err
	}
	return rhymes, nil
}

func (c *Client) AnalyzeInstrumental(ctx context.Context, audio Audio) (*InstrumentalMetadata, error) {
	raw, err := c.engine.Complete(ctx, Prompt{Text: instrumentalPrompt, Audio: &audio, Shape: ShapeInstrumental})
	if err != nil {
		return nil, fmt.Errorf("%s: instrumental analysis: %w", c.engine.Name(), err)
	}

	var wire wireInstrumental
	if err := json.Unmarshal([]byte(stripFence(raw)), &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	meta := &InstrumentalMetadata{VibeTags: wire.Vibe}
	if meta.VibeTags == nil {
		meta.VibeTags = []string{}
	}
	if wire.BPM != nil && *wire.BPM > 0 {
		bpm := int(math.Round(*wire.BPM))
		meta.BPM = &bpm
	}
	if wire.Key != nil && strings.TrimSpace(*wire.Key) != "" {
		key := strings.TrimSpace(*wire.Key)
		meta.Key = &key
	}
	if wire.Energy != nil {
		energy := clamp(*wire.Energy, 0, 100)
		meta.EnergyLevel = &energy
	}
	return meta, nil
}

func (c *Client) AnalyzeCadence(ctx context.Context, audio Audio) (*CadenceAnalysis, error) {
	raw, err := c.engine.Complete(ctx, Prompt{Text: cadencePrompt, Audio: &audio, Shape: ShapeCadence})
	if err != nil {
		return nil, fmt.Errorf("%s: cadence analysis: %w", c.engine.Name(), err)
	}

	var wire wireCadence
	if err := json.Unmarshal([]byte(stripFence(raw)), &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return &CadenceAnalysis{
		RhymeScore:  clamp(wire.RhymeScore, 0, 100),
		FlowScore:   clamp(wire.FlowScore, 0, 100),
		EnergyScore: clamp(wire.EnergyScore, 0, 100),
		BPM:         int(math.Round(wire.BPM)),
		Feedback:    wire.Feedback,
	}, nil
}

// decodeList accepts either a bare JSON array or an object wrapping the
// array under field. Local models in JSON mode tend to do the latter.
func decodeList(raw string, dst any, field string) error {
	body := []byte(stripFence(raw))

	if err := json.Unmarshal(body, dst); err == nil {
		return nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	inner, ok := wrapped[field]
	if !ok {
		return fmt.Errorf("%w: no %q array in response", ErrMalformed, field)
	}
	if err := json.Unmarshal(inner, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func clamp(v float64, lo, hi int) int {
	n := int(math.Round(v))
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
