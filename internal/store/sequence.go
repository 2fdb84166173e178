package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// LastSequence returns the highest bus sequence saved, or 0 if none was.
func (s *SQLite) LastSequence(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `SELECT last_sequence FROM bus_state WHERE id = 1`).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("last sequence: %w", err)
	}
	return seq, nil
}

// SaveSequence records seq as the last issued bus sequence. A value lower
// than the stored one is ignored, so the saved sequence never goes back.
func (s *SQLite) SaveSequence(ctx context.Context, seq int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bus_state (id, last_sequence) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET last_sequence = max(last_sequence, excluded.last_sequence)
	`, seq)
	if err != nil {
		return fmt.Errorf("save sequence: %w", err)
	}
	return nil
}
