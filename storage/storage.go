// Package storage persists finished duels to Postgres. Persistence is
// optional: with no database configured every operation is a no-op.
package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS duel_history (
	id UUID PRIMARY KEY,
	played_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	room_token TEXT NOT NULL,
	p1_username TEXT NOT NULL,
	p1_character TEXT NOT NULL,
	p2_username TEXT NOT NULL,
	p2_character TEXT NOT NULL,
	turns INT NOT NULL,
	result TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_duel_history_p1 ON duel_history(p1_username);
CREATE INDEX IF NOT EXISTS idx_duel_history_p2 ON duel_history(p2_username);
`

// DuelRecord is one finished duel.
type DuelRecord struct {
	ID          string    `json:"id"`
	PlayedAt    time.Time `json:"played_at"`
	RoomToken   string    `json:"room_token"`
	P1Username  string    `json:"p1_username"`
	P1Character string    `json:"p1_character"`
	P2Username  string    `json:"p2_username"`
	P2Character string    `json:"p2_character"`
	Turns       int       `json:"turns"`
	Result      string    `json:"result"`
}

// Store persists and retrieves duel history.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to Postgres and ensures the duel_history table
// exists. If databaseURL is empty, NewStore returns (nil, nil) and no
// persistence occurs.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, err
	}
	slog.Info("connected to Postgres", "tag", "storage")
	return &Store{pool: pool}, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// RecordDuel inserts one finished duel.
func (s *Store) RecordDuel(ctx context.Context, roomToken, p1User, p1Char, p2User, p2Char string, turns int, result string) error {
	if s == nil || s.pool == nil {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO duel_history (id, room_token, p1_username, p1_character, p2_username, p2_character, turns, result)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.NewString(), roomToken, p1User, p1Char, p2User, p2Char, turns, result)
	return err
}

// ListByUsername returns a user's duels, newest first.
func (s *Store) ListByUsername(ctx context.Context, username string) ([]DuelRecord, error) {
	if s == nil || s.pool == nil {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, played_at, room_token, p1_username, p1_character, p2_username, p2_character, turns, result
		FROM duel_history
		WHERE p1_username = $1 OR p2_username = $1
		ORDER BY played_at DESC
		LIMIT 100`, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []DuelRecord
	for rows.Next() {
		var rec DuelRecord
		if err := rows.Scan(&rec.ID, &rec.PlayedAt, &rec.RoomToken, &rec.P1Username, &rec.P1Character,
			&rec.P2Username, &rec.P2Character, &rec.Turns, &rec.Result); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
