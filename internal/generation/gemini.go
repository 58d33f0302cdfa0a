package generation

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-3-flash-preview"

// GeminiEngine talks to the Gemini API with JSON response schemas.
type GeminiEngine struct {
	client *genai.Client
	model  string
}

func NewGeminiEngine(ctx context.Context, apiKey, model string) (*GeminiEngine, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &GeminiEngine{client: client, model: model}, nil
}

func (g *GeminiEngine) Name() string {
	return "gemini/" + g.model
}

func (g *GeminiEngine) Complete(ctx context.Context, prompt Prompt) (string, error) {
	var parts []*genai.Part
	if prompt.Audio != nil {
		parts = append(parts, genai.NewPartFromBytes(prompt.Audio.Data, prompt.Audio.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(prompt.Text))

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema(prompt.Shape),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

func responseSchema(shape Shape) *genai.Schema {
	switch shape {
	case ShapeSuggestions:
		return &genai.Schema{
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"text":   {Type: genai.TypeString},
					"type":   {Type: genai.TypeString, Description: "One of: rhyme, flow, metaphor, punchline, hook"},
					"score":  {Type: genai.TypeNumber, Description: "Match score out of 100"},
					"rating": {Type: genai.TypeNumber, Description: "Star rating 1-5"},
				},
				Required: []string{"text", "type", "score", "rating"},
			},
		}
	case ShapeRhymes:
		return &genai.Schema{
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeString},
		}
	case ShapeInstrumental:
		return &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"bpm":    {Type: genai.TypeNumber},
				"key":    {Type: genai.TypeString},
				"energy": {Type: genai.TypeNumber},
				"vibe":   {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			},
			Required: []string{"bpm", "key", "energy", "vibe"},
		}
	case ShapeCadence:
		return &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"rhymeScore":  {Type: genai.TypeNumber},
				"flowScore":   {Type: genai.TypeNumber},
				"energyScore": {Type: genai.TypeNumber},
				"bpm":         {Type: genai.TypeNumber},
				"feedback":    {Type: genai.TypeString},
			},
			Required: []string{"rhymeScore", "flowScore", "energyScore", "bpm", "feedback"},
		}
	}
	return nil
}
