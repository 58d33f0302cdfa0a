package stats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sukalov/lyricstudio/internal/db"
	"github.com/sukalov/lyricstudio/internal/studio"
)

type Source interface {
	GetProfile(ctx context.Context, id string) (db.Writer, error)
	WeeklyActivity(ctx context.Context, writerID string, now time.Time) ([]db.DayActivity, error)
}

type Card struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type Day struct {
	Name        string `json:"name"`
	Date        string `json:"date"`
	Rhymes      int    `json:"rhymes"`
	Suggestions int    `json:"suggestions"`
	Fetches     int    `json:"fetches"`
}

type Dashboard struct {
	WriterID    string         `json:"writerId"`
	Profile     studio.Profile `json:"profile"`
	Cards       []Card         `json:"cards"`
	Progression []Day          `json:"progression"`
}

// Build assembles the analytics dashboard of a writer. Writers without a
// stored profile get the default one.
func Build(ctx context.Context, src Source, writerID string, now time.Time) (Dashboard, error) {
	profile := studio.DefaultProfile()
	w, err := src.GetProfile(ctx, writerID)
	switch {
	case err == nil:
		profile = w.Profile
	case !errors.Is(err, db.ErrNotFound):
		return Dashboard{}, fmt.Errorf("failed to load profile: %w", err)
	}

	days, err := src.WeeklyActivity(ctx, writerID, now)
	if err != nil {
		return Dashboard{}, fmt.Errorf("failed to load activity: %w", err)
	}

	d := Dashboard{
		WriterID: writerID,
		Profile:  profile,
		Cards: []Card{
			{Label: "Rhyme Score", Value: fmt.Sprintf("%d%%", profile.RhymeScore)},
			{Label: "Flow Match", Value: fmt.Sprintf("%d%%", profile.FlowScore)},
			{Label: "Energy Peak", Value: fmt.Sprintf("%d%%", profile.EnergyScore)},
			{Label: "Session BPM", Value: fmt.Sprintf("%d", profile.BPM)},
		},
		Progression: make([]Day, 0, len(days)),
	}
	for _, day := range days {
		d.Progression = append(d.Progression, Day{
			Name:        day.Day.Format("Mon"),
			Date:        day.Day.Format(time.DateOnly),
			Rhymes:      day.Rhymes,
			Suggestions: day.Suggestions,
			Fetches:     day.Fetches,
		})
	}
	return d, nil
}

// Text renders the dashboard for chat surfaces.
func (d Dashboard) Text() string {
	var b strings.Builder
	b.WriteString("📊 studio analytics\n\n")
	for _, c := range d.Cards {
		fmt.Fprintf(&b, "%s: %s\n", strings.ToLower(c.Label), c.Value)
	}

	b.WriteString("\nlast 7 days (rhymes / lines)\n")
	for _, day := range d.Progression {
		fmt.Fprintf(&b, "%s %s %d / %d\n", day.Name, bar(day.Rhymes+day.Suggestions), day.Rhymes, day.Suggestions)
	}
	return b.String()
}

func bar(n int) string {
	if n > 10 {
		n = 10
	}
	return strings.Repeat("▇", n) + strings.Repeat("·", 10-n)
}
