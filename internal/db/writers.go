package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sukalov/lyricstudio/internal/generation"
	"github.com/sukalov/lyricstudio/internal/studio"
)

// Writer is a stored profile.
type Writer struct {
	ID        string
	Name      string
	Profile   studio.Profile
	UpdatedAt time.Time
}

// SaveProfile inserts or replaces the profile of writer id.
func (s *Store) SaveProfile(ctx context.Context, id, name string, p studio.Profile) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		INSERT INTO writers (
			id, name, genre, rhyme_score, flow_score, energy_score,
			bpm, artist_mode, auto_suggest, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			genre = excluded.genre,
			rhyme_score = excluded.rhyme_score,
			flow_score = excluded.flow_score,
			energy_score = excluded.energy_score,
			bpm = excluded.bpm,
			artist_mode = excluded.artist_mode,
			auto_suggest = excluded.auto_suggest,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		id,
		name,
		string(p.Genre),
		p.RhymeScore,
		p.FlowScore,
		p.EnergyScore,
		p.BPM,
		boolToInt(p.ArtistMode),
		boolToInt(p.AutoSuggest),
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save profile for %s: %w", id, err)
	}
	return nil
}

// GetProfile returns ErrNotFound for writers who never finished onboarding.
func (s *Store) GetProfile(ctx context.Context, id string) (Writer, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var (
		w                       Writer
		genre                   string
		artistMode, autoSuggest int
		updatedAt               int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, genre, rhyme_score, flow_score, energy_score,
			bpm, artist_mode, auto_suggest, updated_at
		FROM writers WHERE id = ?`, id).Scan(
		&w.ID,
		&w.Name,
		&genre,
		&w.Profile.RhymeScore,
		&w.Profile.FlowScore,
		&w.Profile.EnergyScore,
		&w.Profile.BPM,
		&artistMode,
		&autoSuggest,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Writer{}, ErrNotFound
	}
	if err != nil {
		return Writer{}, fmt.Errorf("failed to load profile for %s: %w", id, err)
	}

	w.Profile.Genre = generation.Genre(genre)
	w.Profile.ArtistMode = artistMode != 0
	w.Profile.AutoSuggest = autoSuggest != 0
	w.UpdatedAt = time.Unix(updatedAt, 0)
	return w, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
