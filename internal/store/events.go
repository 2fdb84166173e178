package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/huddle/internal/model"
)

const eventColumns = `id, organization_id, title, start_ns, end_ns, assignees, version, created_by, created_at_ns, updated_at_ns`

// InsertEvent stores a new event and its assignee index rows in one
// transaction. Returns model.ErrOverlap if an assignee is already booked.
func (s *SQLite) InsertEvent(ctx context.Context, e model.Event) error {
	if err := checkTimes("insert event", e.Start, e.End, e.CreatedAt, e.UpdatedAt); err != nil {
		return err
	}
	assigneesJSON, err := marshalAssignees(e.Assignees)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert event: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := checkOverlap(ctx, tx, e); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.OrganizationID,
		e.Title,
		toNanos(e.Start),
		toNanos(e.End),
		assigneesJSON,
		e.Version,
		e.CreatedBy,
		toNanos(e.CreatedAt),
		toNanos(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	if err := writeAssignees(ctx, tx, e); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert event: commit: %w", err)
	}
	return nil
}

// ReplaceEvent overwrites an event if its stored version is prevVersion.
// Returns model.ErrStaleWrite on a version mismatch (or missing row) and
// model.ErrOverlap if the new interval double-books an assignee.
func (s *SQLite) ReplaceEvent(ctx context.Context, e model.Event, prevVersion int64) error {
	if err := checkTimes("replace event", e.Start, e.End, e.UpdatedAt); err != nil {
		return err
	}
	assigneesJSON, err := marshalAssignees(e.Assignees)
	if err != nil {
		return fmt.Errorf("replace event: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace event: begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE events
		SET title = ?, start_ns = ?, end_ns = ?, assignees = ?, version = ?, updated_at_ns = ?
		WHERE id = ? AND version = ?
	`,
		e.Title,
		toNanos(e.Start),
		toNanos(e.End),
		assigneesJSON,
		e.Version,
		toNanos(e.UpdatedAt),
		e.ID,
		prevVersion,
	)
	if err != nil {
		return fmt.Errorf("replace event: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("replace event: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.ErrStaleWrite
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM event_assignees WHERE event_id = ?`, e.ID); err != nil {
		return fmt.Errorf("replace event: clear assignees: %w", err)
	}
	if err := checkOverlap(ctx, tx, e); err != nil {
		return err
	}
	if err := writeAssignees(ctx, tx, e); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace event: commit: %w", err)
	}
	return nil
}

// DeleteEvent removes an event if its stored version is version.
// Assignee rows cascade. Returns model.ErrStaleWrite otherwise.
func (s *SQLite) DeleteEvent(ctx context.Context, id string, version int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ? AND version = ?`, id, version)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete event: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.ErrStaleWrite
	}
	return nil
}

// GetEvent retrieves a single event by ID.
func (s *SQLite) GetEvent(ctx context.Context, id string) (model.Event, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, false, nil
	}
	if err != nil {
		return model.Event{}, false, err
	}
	return e, true, nil
}

// ListEvents returns the events matching f, ordered by start then id.
// Returns an empty slice (not nil) when nothing matches.
func (s *SQLite) ListEvents(ctx context.Context, f model.EventFilter) ([]model.Event, error) {
	var (
		where = []string{"organization_id = ?"}
		args  = []any{f.OrganizationID}
	)
	if f.From != nil {
		where = append(where, "end_ns > ?")
		args = append(args, boundNanos(*f.From))
	}
	if f.To != nil {
		where = append(where, "start_ns < ?")
		args = append(args, boundNanos(*f.To))
	}
	if f.ExcludeID != "" {
		where = append(where, "id <> ?")
		args = append(args, f.ExcludeID)
	}
	if len(f.Assignees) > 0 {
		where = append(where, `EXISTS (
			SELECT 1 FROM event_assignees a
			WHERE a.event_id = events.id AND a.user_id IN (`+placeholders(len(f.Assignees))+`)
		)`)
		for _, u := range f.Assignees {
			args = append(args, u)
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY start_ns ASC, id COLLATE BINARY ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []model.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// checkOverlap returns model.ErrOverlap if another event of e's organization
// overlaps e and shares an assignee.
func checkOverlap(ctx context.Context, q queryer, e model.Event) error {
	if len(e.Assignees) == 0 {
		return nil
	}
	args := []any{e.OrganizationID, toNanos(e.End), toNanos(e.Start), e.ID}
	for _, u := range e.Assignees {
		args = append(args, u)
	}

	var clash string
	err := q.QueryRowContext(ctx, `
		SELECT event_id FROM event_assignees
		WHERE organization_id = ? AND start_ns < ? AND end_ns > ? AND event_id <> ?
		AND user_id IN (`+placeholders(len(e.Assignees))+`)
		LIMIT 1
	`, args...).Scan(&clash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("check overlap: %w", err)
	}
	return fmt.Errorf("%w: event %s", model.ErrOverlap, clash)
}

func writeAssignees(ctx context.Context, tx *sql.Tx, e model.Event) error {
	for _, u := range e.Assignees {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO event_assignees (event_id, organization_id, user_id, start_ns, end_ns)
			VALUES (?, ?, ?, ?, ?)
		`, e.ID, e.OrganizationID, u, toNanos(e.Start), toNanos(e.End))
		if err != nil {
			return fmt.Errorf("write assignee %s: %w", u, err)
		}
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(r rowScanner) (model.Event, error) {
	var (
		e                                    model.Event
		startNs, endNs, createdNs, updatedNs int64
		assigneesJSON                        string
	)
	err := r.Scan(
		&e.ID,
		&e.OrganizationID,
		&e.Title,
		&startNs,
		&endNs,
		&assigneesJSON,
		&e.Version,
		&e.CreatedBy,
		&createdNs,
		&updatedNs,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Event{}, err
		}
		return model.Event{}, fmt.Errorf("scan event: %w", err)
	}

	assignees, err := unmarshalAssignees(assigneesJSON)
	if err != nil {
		return model.Event{}, err
	}
	e.Assignees = assignees
	e.Start = fromNanos(startNs)
	e.End = fromNanos(endNs)
	e.CreatedAt = fromNanos(createdNs)
	e.UpdatedAt = fromNanos(updatedNs)
	return e, nil
}
