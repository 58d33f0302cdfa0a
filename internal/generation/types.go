package generation

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrMalformed is returned when the collaborator answers with something
	// that does not parse as the expected shape.
	ErrMalformed = errors.New("malformed generation response")
	// ErrUnsupported is returned by engines that cannot handle a prompt,
	// e.g. audio on a text-only backend.
	ErrUnsupported = errors.New("unsupported by generation engine")
)

// Genre is the writing style selected during onboarding.
type Genre string

const (
	GenreRap    Genre = "RAP"
	GenrePop    Genre = "POP"
	GenreRnB    Genre = "RNB"
	GenreCustom Genre = "CUSTOM"
)

type GenreInfo struct {
	ID          Genre
	Title       string
	Description string
}

var Genres = []GenreInfo{
	{ID: GenreRap, Title: "Rap / Hip-Hop", Description: "Complex rhymes, heavy bass, aggressive flows."},
	{ID: GenrePop, Title: "Pop", Description: "Catchy hooks, bright melodies, polished vibes."},
	{ID: GenreRnB, Title: "R&B / Soul", Description: "Smooth melodies, emotional depth, silky vibes."},
	{ID: GenreCustom, Title: "Custom Artist", Description: "Train AI on your specific artist reference."},
}

func ParseGenre(s string) (Genre, bool) {
	g := Genre(strings.ToUpper(strings.TrimSpace(s)))
	for _, info := range Genres {
		if info.ID == g {
			return g, true
		}
	}
	return "", false
}

// Category tags a lyric suggestion.
type Category string

const (
	CategoryRhyme     Category = "rhyme"
	CategoryFlow      Category = "flow"
	CategoryMetaphor  Category = "metaphor"
	CategoryPunchline Category = "punchline"
	CategoryHook      Category = "hook"
)

// Suggestion is one ranked lyric continuation. Values are produced by the
// collaborator and never mutated locally.
type Suggestion struct {
	Text       string   `json:"text"`
	Category   Category `json:"category"`
	MatchScore int      `json:"matchScore"`
	Rating     int      `json:"rating"`
}

// InstrumentalMetadata describes the uploaded beat. Nil fields are unknown.
type InstrumentalMetadata struct {
	BPM         *int     `json:"bpm"`
	Key         *string  `json:"key"`
	EnergyLevel *int     `json:"energyLevel"`
	VibeTags    []string `json:"vibeTags"`
}

type CadenceAnalysis struct {
	RhymeScore  int    `json:"rhymeScore"`
	FlowScore   int    `json:"flowScore"`
	EnergyScore int    `json:"energyScore"`
	BPM         int    `json:"bpm"`
	Feedback    string `json:"feedback"`
}

// Audio is a raw audio payload with its MIME type.
type Audio struct {
	Data     []byte
	MIMEType string
}

type SuggestionRequest struct {
	Context      string
	Genre        Genre
	Instrumental *InstrumentalMetadata
	Persona      bool
}

type RhymeRequest struct {
	Word    string
	Genre   Genre
	Context string
	BPM     *int
}

// Service is the full collaborator surface.
type Service interface {
	SuggestLyrics(ctx context.Context, req SuggestionRequest) ([]Suggestion, error)
	SuggestRhymes(ctx context.Context, req RhymeRequest) ([]string, error)
	AnalyzeInstrumental(ctx context.Context, audio Audio) (*InstrumentalMetadata, error)
	AnalyzeCadence(ctx context.Context, audio Audio) (*CadenceAnalysis, error)
}
