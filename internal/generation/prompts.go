package generation

import (
	"fmt"
	"strings"
)

// Shape names the JSON layout a prompt expects back. Engines that support
// response schemas translate it into one.
type Shape int

const (
	ShapeSuggestions Shape = iota
	ShapeRhymes
	ShapeInstrumental
	ShapeCadence
)

func (s Shape) String() string {
	switch s {
	case ShapeSuggestions:
		return "suggestions"
	case ShapeRhymes:
		return "rhymes"
	case ShapeInstrumental:
		return "instrumental"
	case ShapeCadence:
		return "cadence"
	}
	return fmt.Sprintf("shape(%d)", int(s))
}

// Prompt is a single completion request.
type Prompt struct {
	Text  string
	Audio *Audio
	Shape Shape
}

const defaultTempo = 90

func suggestionPrompt(req SuggestionRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Act as a world-class %s songwriter.\n", req.Genre)

	tempo := defaultTempo
	if meta := req.Instrumental; meta != nil {
		if meta.BPM != nil {
			tempo = *meta.BPM
			fmt.Fprintf(&b, "The track tempo is %d BPM. ", *meta.BPM)
		}
		if meta.Key != nil && *meta.Key != "" {
			fmt.Fprintf(&b, "The musical key is %s. ", *meta.Key)
		}
		if meta.EnergyLevel != nil {
			fmt.Fprintf(&b, "The beat energy is %d out of 100. ", *meta.EnergyLevel)
		}
		if len(meta.VibeTags) > 0 {
			fmt.Fprintf(&b, "The beat feels %s. ", strings.Join(meta.VibeTags, ", "))
		}
		b.WriteString("\n")
	}
	if req.Persona {
		b.WriteString("Write in artist mode: a signature persona, bold word choice, maximum stylistic intensity.\n")
	}

	fmt.Fprintf(&b, "Based on the current context: %q, generate 5 unique lyric suggestions.\n", req.Context)
	b.WriteString("Provide varied types: rhyme completions, flow improvements, deep metaphors, powerful punchlines, or catchy hooks.\n")
	fmt.Fprintf(&b, "Maintain the artistic vibe of a modern top-tier artist. Ensure the rhythm of the suggestions fits the %d BPM tempo.\n", tempo)
	b.WriteString(`Return a JSON array of objects with fields "text", "type" (one of rhyme, flow, metaphor, punchline, hook), "score" (match score out of 100) and "rating" (1-5 stars).`)
	return b.String()
}

func rhymePrompt(req RhymeRequest) string {
	tempo := "standard"
	if req.BPM != nil {
		tempo = fmt.Sprintf("%d BPM", *req.BPM)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Act as an award-winning %s lyricist.\n", req.Genre)
	fmt.Fprintf(&b, "The user is writing %s lyrics and needs rhymes for the word: %q.\n", req.Genre, req.Word)
	fmt.Fprintf(&b, "Tempo: %s.\n", tempo)
	fmt.Fprintf(&b, "Context: %q\n\n", req.Context)
	b.WriteString("Task: Provide 12-16 rhyme suggestions that are stylistically and contextually relevant.\n")
	fmt.Fprintf(&b, "For %s, favor rhymes that fit a professional songwriting standard.\n", req.Genre)
	b.WriteString("Return ONLY a JSON array of strings.")
	return b.String()
}

const instrumentalPrompt = `Analyze this instrumental audio track precisely.
Extract:
1. BPM (Beats Per Minute) - provide a single integer.
2. Musical Key (e.g., "G Minor", "C# Major") - be specific.
3. Energy Level (Scale 1-100).
4. Vibe Tags (e.g., "Melodic", "Dark", "Aggressive", "Soulful") - exactly 4.

Return the analysis as a JSON object with fields "bpm", "key", "energy" and "vibe".`

const cadencePrompt = `Analyze the flow, rhyme density, and energy of this vocal performance.
Return a JSON object with numeric fields "rhymeScore", "flowScore", "energyScore" (0-100) and "bpm", plus a short "feedback" string.`
