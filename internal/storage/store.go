package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"varulv/internal/domain"
)

// Store caches the parsed vote events of each thread
type Store struct {
	db *sql.DB
}

// New returns a Store bound to an open database
func New(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Store{db: db}, nil
}

// SaveThread replaces the cached events of a thread
func (s *Store) SaveThread(ctx context.Context, slug string, pages int, events []domain.VoteEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save thread: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM votes WHERE slug = ?;`, slug); err != nil {
		return fmt.Errorf("save thread: clear votes: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO threads (slug, pages, loaded_at) VALUES (?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET pages = excluded.pages, loaded_at = excluded.loaded_at;`,
		slug, pages, now)
	if err != nil {
		return fmt.Errorf("save thread: upsert thread: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO votes (slug, seq, voter, target, post_id, ts_raw) VALUES (?, ?, ?, ?, ?, ?);`)
	if err != nil {
		return fmt.Errorf("save thread: prepare: %w", err)
	}
	defer stmt.Close()

	for i, e := range events {
		if _, err := stmt.ExecContext(ctx, slug, i, string(e.Voter), string(e.Target), e.PostID, e.Timestamp.Raw); err != nil {
			return fmt.Errorf("save thread: insert vote %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save thread: commit: %w", err)
	}
	return nil
}

// LoadThread returns the cached events of a thread in their original order.
// It returns domain.ErrCacheMiss when nothing is cached for the slug or the
// cached copy was read from a different number of pages.
func (s *Store) LoadThread(ctx context.Context, slug string, pages int) ([]domain.VoteEvent, error) {
	var cachedPages int
	err := s.db.QueryRowContext(ctx, `SELECT pages FROM threads WHERE slug = ?;`, slug).Scan(&cachedPages)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("load thread: %w", err)
	}
	if cachedPages != pages {
		return nil, domain.ErrCacheMiss
	}

	rows, err := s.db.QueryContext(ctx, `SELECT voter, target, post_id, ts_raw FROM votes WHERE slug = ? ORDER BY seq;`, slug)
	if err != nil {
		return nil, fmt.Errorf("load thread: query votes: %w", err)
	}
	defer rows.Close()

	events := make([]domain.VoteEvent, 0)
	for rows.Next() {
		var voter, target, postID, raw string
		if err := rows.Scan(&voter, &target, &postID, &raw); err != nil {
			return nil, fmt.Errorf("load thread: scan vote: %w", err)
		}
		events = append(events, domain.VoteEvent{
			Voter:     domain.PlayerID(voter),
			Target:    domain.PlayerID(target),
			PostID:    postID,
			Timestamp: domain.ParseTimestamp(raw),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load thread: iterate votes: %w", err)
	}
	return events, nil
}

// DeleteThread drops a thread from the cache
func (s *Store) DeleteThread(ctx context.Context, slug string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM threads WHERE slug = ?;`, slug); err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	return nil
}
