package db

import (
	"context"
	"fmt"
	"time"
)

type EventKind string

const (
	EventRhymeApplied       EventKind = "rhyme_applied"
	EventSuggestionInserted EventKind = "suggestion_inserted"
	EventSuggestionsFetched EventKind = "suggestions_fetched"
)

// DayActivity counts one calendar day of studio work.
type DayActivity struct {
	Day         time.Time
	Rhymes      int
	Suggestions int
	Fetches     int
}

func (s *Store) RecordEvent(ctx context.Context, writerID string, kind EventKind, detail string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO studio_events (writer_id, kind, detail, created_at) VALUES (?, ?, ?, ?)`,
		writerID, string(kind), detail, at.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record %s for %s: %w", kind, writerID, err)
	}
	return nil
}

// WeeklyActivity returns seven days of activity ending with the day of now,
// oldest first. Days are cut in now's location.
func (s *Store) WeeklyActivity(ctx context.Context, writerID string, now time.Time) ([]DayActivity, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	start := today.AddDate(0, 0, -6)

	days := make([]DayActivity, 7)
	for i := range days {
		days[i].Day = start.AddDate(0, 0, i)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, created_at FROM studio_events WHERE writer_id = ? AND created_at >= ? AND created_at < ?`,
		writerID, start.Unix(), today.AddDate(0, 0, 1).Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity for %s: %w", writerID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind string
			at   int64
		)
		if err := rows.Scan(&kind, &at); err != nil {
			return nil, fmt.Errorf("failed to scan activity row: %w", err)
		}

		ty, tm, td := time.Unix(at, 0).In(now.Location()).Date()
		day := time.Date(ty, tm, td, 0, 0, 0, 0, now.Location())
		i := int(day.Sub(start).Hours()+12) / 24
		if i < 0 || i >= len(days) {
			continue
		}

		switch EventKind(kind) {
		case EventRhymeApplied:
			days[i].Rhymes++
		case EventSuggestionInserted:
			days[i].Suggestions++
		case EventSuggestionsFetched:
			days[i].Fetches++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read activity rows: %w", err)
	}
	return days, nil
}
