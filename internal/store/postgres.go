package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
)

const pgEventsChannel = "record_events"

// PostgresStore keeps records in a single path-keyed jsonb table and uses
// LISTEN/NOTIFY for change delivery. It is the backend of choice when a
// Redis instance is not available but Postgres already is.
type PostgresStore struct {
	db  *sql.DB
	dsn string
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	s := &PostgresStore{db: db, dsn: dsn}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema() error {
	query := `
		CREATE TABLE IF NOT EXISTS records (
			path TEXT PRIMARY KEY,
			value JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_records_prefix ON records (path text_pattern_ops);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to ensure records schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Read(ctx context.Context, path string, out interface{}) error {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM records WHERE path = $1`, path).Scan(&raw)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return readErr(path, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return readErr(path, err)
	}
	return nil
}

func (s *PostgresStore) Write(ctx context.Context, path string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return writeErr(path, err)
	}
	query := `
		INSERT INTO records (path, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (path) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	if _, err := s.db.ExecContext(ctx, query, path, raw); err != nil {
		return writeErr(path, err)
	}
	s.notify(ctx, Event{Path: path, Value: raw})
	return nil
}

func (s *PostgresStore) Merge(ctx context.Context, path string, fields map[string]interface{}) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return writeErr(path, err)
	}
	query := `
		INSERT INTO records (path, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (path) DO UPDATE SET value = records.value || EXCLUDED.value, updated_at = NOW()
		RETURNING value
	`
	var merged []byte
	if err := s.db.QueryRowContext(ctx, query, path, raw).Scan(&merged); err != nil {
		return writeErr(path, err)
	}
	s.notify(ctx, Event{Path: path, Value: merged})
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE path = $1`, path); err != nil {
		return writeErr(path, err)
	}
	s.notify(ctx, Event{Path: path, Deleted: true})
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, prefix string, value interface{}) (string, error) {
	key := NewChildKey()
	if err := s.Write(ctx, Join(prefix, key), value); err != nil {
		return "", err
	}
	return key, nil
}

func (s *PostgresStore) List(ctx context.Context, prefix string, fn func(path string, raw []byte) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, value FROM records WHERE path LIKE $1 ORDER BY path`, prefix+"/%")
	if err != nil {
		return readErr(prefix, err)
	}
	defer rows.Close()

	for rows.Next() {
		var path string
		var raw []byte
		if err := rows.Scan(&path, &raw); err != nil {
			return readErr(prefix, err)
		}
		if err := fn(path, raw); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *PostgresStore) Subscribe(ctx context.Context, prefix string) (<-chan Event, func(), error) {
	listener := pq.NewListener(s.dsn, 10*time.Second, time.Minute, nil)
	if err := listener.Listen(pgEventsChannel); err != nil {
		listener.Close()
		return nil, nil, readErr(prefix, err)
	}

	out := make(chan Event, 64)
	done := make(chan struct{})

	go func() {
		defer close(out)
		defer listener.Close()

		_ = s.List(ctx, prefix, func(path string, raw []byte) error {
			select {
			case out <- Event{Path: path, Value: raw}:
				return nil
			case <-done:
				return ctx.Err()
			case <-ctx.Done():
				return ctx.Err()
			}
		})

		for {
			select {
			case n := <-listener.Notify:
				if n == nil {
					continue // reconnect signal
				}
				var ev Event
				if err := json.Unmarshal([]byte(n.Extra), &ev); err != nil {
					continue
				}
				if !strings.HasPrefix(ev.Path, prefix+"/") {
					continue
				}
				select {
				case out <- ev:
				case <-done:
					return
				case <-ctx.Done():
					return
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() { close(done) })
	}
	return out, cancel, nil
}

func (s *PostgresStore) notify(ctx context.Context, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_, _ = s.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, pgEventsChannel, string(data))
}
