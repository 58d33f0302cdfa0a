package studio

import (
	"context"
	"fmt"

	"github.com/sukalov/lyricstudio/internal/generation"
	"github.com/sukalov/lyricstudio/internal/logger"
)

const DefaultBPM = 90

// Profile is what onboarding and voice calibration learn about a writer.
type Profile struct {
	Genre       generation.Genre `json:"genre"`
	RhymeScore  int              `json:"rhymeScore"`
	FlowScore   int              `json:"flowScore"`
	EnergyScore int              `json:"energyScore"`
	BPM         int              `json:"bpm"`
	ArtistMode  bool             `json:"artistMode"`
	AutoSuggest bool             `json:"autoSuggest"`
}

func DefaultProfile() Profile {
	return Profile{
		Genre:       generation.GenreRap,
		BPM:         DefaultBPM,
		AutoSuggest: true,
	}
}

// RequestContext derives the fetch context for a new session.
func (p Profile) RequestContext() RequestContext {
	return RequestContext{Genre: p.Genre, Persona: p.ArtistMode}
}

func (p Profile) WithCadence(c generation.CadenceAnalysis) Profile {
	p.RhymeScore = c.RhymeScore
	p.FlowScore = c.FlowScore
	p.EnergyScore = c.EnergyScore
	if c.BPM > 0 {
		p.BPM = c.BPM
	}
	return p
}

// SimulatedCadence is what calibration reports when there is no take to
// analyze or the analysis fails.
var SimulatedCadence = generation.CadenceAnalysis{
	RhymeScore:  88,
	FlowScore:   92,
	EnergyScore: 85,
	BPM:         94,
	Feedback:    "Calibrated from reference cadence.",
}

type CadenceAnalyzer interface {
	AnalyzeCadence(ctx context.Context, audio generation.Audio) (*generation.CadenceAnalysis, error)
}

// Calibrate scores a recorded take. It never fails: a missing take or a
// collaborator error falls back to SimulatedCadence.
func Calibrate(ctx context.Context, analyzer CadenceAnalyzer, take *generation.Audio) generation.CadenceAnalysis {
	if take == nil || len(take.Data) == 0 || analyzer == nil {
		return SimulatedCadence
	}

	res, err := analyzer.AnalyzeCadence(ctx, *take)
	if err != nil || res == nil {
		logger.Error(fmt.Sprintf("cadence calibration failed, using reference scores\nMIME: %s\nError: %v", take.MIMEType, err))
		return SimulatedCadence
	}
	return *res
}
