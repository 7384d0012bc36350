package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists event records in PostgreSQL. Records are stored as
// JSONB so the invitation-page shape can evolve without migrations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	s := &PostgresStore{pool: pool}
	if err := s.seed(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			data JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) seed(ctx context.Context) error {
	seed := SeedEvent()
	data, err := json.Marshal(seed)
	if err != nil {
		return fmt.Errorf("marshal seed event: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO events (id, data) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
		seed.ID, data,
	)
	if err != nil {
		return fmt.Errorf("seed event: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Event, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM events WHERE id=$1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return Event{}, ErrNotFound
	}
	if err != nil {
		return Event{}, fmt.Errorf("query event: %w", err)
	}

	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}

func (s *PostgresStore) Update(ctx context.Context, id string, patch Patch) (Event, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Event{}, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback(ctx)

	var data []byte
	err = tx.QueryRow(ctx, `SELECT data FROM events WHERE id=$1 FOR UPDATE`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return Event{}, ErrNotFound
	}
	if err != nil {
		return Event{}, fmt.Errorf("lock event: %w", err)
	}

	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	patch.apply(&ev)

	updated, err := json.Marshal(ev)
	if err != nil {
		return Event{}, fmt.Errorf("encode event: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE events SET data=$2, updated_at=$3 WHERE id=$1`, id, updated, time.Now().UTC()); err != nil {
		return Event{}, fmt.Errorf("update event: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Event{}, fmt.Errorf("commit update: %w", err)
	}
	return ev, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
