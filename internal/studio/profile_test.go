package studio

import (
	"context"
	"errors"
	"testing"

	"github.com/sukalov/lyricstudio/internal/generation"
)

type fakeCadence struct {
	res *generation.CadenceAnalysis
	err error
}

func (f fakeCadence) AnalyzeCadence(context.Context, generation.Audio) (*generation.CadenceAnalysis, error) {
	return f.res, f.err
}

func TestCalibrate(t *testing.T) {
	take := &generation.Audio{Data: []byte("take"), MIMEType: "audio/ogg"}
	measured := &generation.CadenceAnalysis{RhymeScore: 70, FlowScore: 60, EnergyScore: 50, BPM: 101, Feedback: "tighten the second bar"}

	tests := []struct {
		name     string
		analyzer CadenceAnalyzer
		take     *generation.Audio
		want     generation.CadenceAnalysis
	}{
		{name: "measured", analyzer: fakeCadence{res: measured}, take: take, want: *measured},
		{name: "no take", analyzer: fakeCadence{res: measured}, take: nil, want: SimulatedCadence},
		{name: "empty take", analyzer: fakeCadence{res: measured}, take: &generation.Audio{}, want: SimulatedCadence},
		{name: "analyzer error", analyzer: fakeCadence{err: errors.New("boom")}, take: take, want: SimulatedCadence},
		{name: "no analyzer", analyzer: nil, take: take, want: SimulatedCadence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Calibrate(context.Background(), tt.analyzer, tt.take); got != tt.want {
				t.Errorf("Calibrate() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestProfileWithCadence(t *testing.T) {
	p := DefaultProfile()
	if p.BPM != 90 || p.Genre != generation.GenreRap || !p.AutoSuggest {
		t.Fatalf("default profile = %+v", p)
	}

	p = p.WithCadence(SimulatedCadence)
	if p.RhymeScore != 88 || p.FlowScore != 92 || p.EnergyScore != 85 || p.BPM != 94 {
		t.Errorf("profile = %+v", p)
	}

	p = p.WithCadence(generation.CadenceAnalysis{RhymeScore: 10})
	if p.BPM != 94 {
		t.Errorf("zero bpm overwrote the session tempo: %d", p.BPM)
	}

	p.ArtistMode = true
	p.Genre = generation.GenreRnB
	ctx := p.RequestContext()
	if ctx.Genre != generation.GenreRnB || !ctx.Persona || ctx.Instrumental != nil {
		t.Errorf("request context = %+v", ctx)
	}
}
