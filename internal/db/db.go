package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"

	"github.com/sukalov/lyricstudio/internal/utils/e"
)

var ErrNotFound = errors.New("not found")

// Store keeps writer profiles and studio activity. Editor sessions are
// never written here.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS writers (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL DEFAULT '',
	genre        TEXT NOT NULL,
	rhyme_score  INTEGER NOT NULL DEFAULT 0,
	flow_score   INTEGER NOT NULL DEFAULT 0,
	energy_score INTEGER NOT NULL DEFAULT 0,
	bpm          INTEGER NOT NULL DEFAULT 90,
	artist_mode  INTEGER NOT NULL DEFAULT 0,
	auto_suggest INTEGER NOT NULL DEFAULT 1,
	updated_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS studio_events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	writer_id  TEXT NOT NULL,
	kind       TEXT NOT NULL,
	detail     TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_studio_events_writer ON studio_events (writer_id, created_at);
`

// Open connects to url. file: and :memory: urls use the embedded SQLite
// driver, anything else goes to libsql with the auth token attached.
func Open(ctx context.Context, url, authToken string) (*Store, error) {
	driver, dsn := "libsql", url
	if isLocal(url) {
		driver = "sqlite"
	} else if authToken != "" {
		dsn = fmt.Sprintf("%s?authToken=%s", url, authToken)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db %s: %w", url, err)
	}

	if driver == "sqlite" {
		// one connection so :memory: databases are shared
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(25)
		conn.SetMaxIdleConns(25)
		conn.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: conn}
	if err := s.migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func isLocal(url string) bool {
	return url == ":memory:" || strings.HasPrefix(url, "file:")
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return e.WrapIfErr("failed to close stats db", s.db.Close())
}
