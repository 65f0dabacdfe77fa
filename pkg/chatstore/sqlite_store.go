// Package chatstore is the SQLite implementation of the chat persistence
// gateway, used for local history and offline operation. It has no streaming
// side; AddEvent answers with an empty stream.
package chatstore

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/atlasguide/atlas-go/pkg/chat"
	"github.com/atlasguide/atlas-go/pkg/chatwire"
)

type SQLiteEventStore struct {
	db *sql.DB
}

var _ chat.Gateway = &SQLiteEventStore{}

func NewSQLiteEventStore(dsn string) (*SQLiteEventStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite event store: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	s := &SQLiteEventStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// SQLiteEventDSNForFile builds the store DSN for a database file path.
func SQLiteEventDSNForFile(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("sqlite event store: empty path")
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path), nil
}

func (s *SQLiteEventStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteEventStore) migrate() error {
	if s == nil || s.db == nil {
		return errors.New("sqlite event store: db is nil")
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chat_events (
			id TEXT NOT NULL PRIMARY KEY,
			type TEXT NOT NULL,
			text TEXT NOT NULL DEFAULT '',
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS chat_events_by_created_at ON chat_events(created_at_ms);`,
	}
	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return errors.Wrap(err, "sqlite event store: migrate")
		}
	}
	return nil
}

// AddEvent appends one chat event. Re-submitting an already-stored event id
// is a no-op, which backs the engine's duplicate-terminal-event guard.
func (s *SQLiteEventStore) AddEvent(ctx context.Context, ev chatwire.ChatEvent) (io.ReadCloser, error) {
	if strings.TrimSpace(ev.ID) == "" {
		return nil, errors.New("sqlite event store: event id is empty")
	}
	if ev.Type != chatwire.EventChatSent && ev.Type != chatwire.EventChatReceived {
		return nil, errors.Errorf("sqlite event store: unrecognized event type %q", ev.Type)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_events (id, type, text, created_at_ms)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		ev.ID, ev.Type, ev.Text, ev.CreatedAtMs,
	)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite event store: insert chat event")
	}
	return io.NopCloser(strings.NewReader("")), nil
}

// ChatEventsInOrder returns all stored events, oldest first. Ties on the
// timestamp fall back to insertion order.
func (s *SQLiteEventStore) ChatEventsInOrder(ctx context.Context) ([]chatwire.ChatEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, text, created_at_ms
		FROM chat_events
		ORDER BY created_at_ms ASC, rowid ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite event store: query chat events")
	}
	defer func() { _ = rows.Close() }()

	var events []chatwire.ChatEvent
	for rows.Next() {
		var ev chatwire.ChatEvent
		if err := rows.Scan(&ev.ID, &ev.Type, &ev.Text, &ev.CreatedAtMs); err != nil {
			return nil, errors.Wrap(err, "sqlite event store: scan chat event")
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sqlite event store: iterate chat events")
	}
	return events, nil
}
