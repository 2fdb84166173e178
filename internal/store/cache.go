package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/huddle/internal/model"
)

const cacheColumns = `organization_id, user_id, range_start_ns, range_end_ns, busy, fetched_at_ns`

// PutRecord replaces the cache record for (organization, user) in a single
// UPSERT. The whole busy list lives in one column, so the replace is atomic.
func (s *SQLite) PutRecord(ctx context.Context, rec model.CacheRecord) error {
	if err := checkTimes("put cache record", rec.RangeStart, rec.RangeEnd, rec.FetchedAt); err != nil {
		return err
	}
	busyJSON, err := marshalBusy(rec.Busy)
	if err != nil {
		return fmt.Errorf("put cache record: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO availability_cache (`+cacheColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(organization_id, user_id) DO UPDATE SET
			range_start_ns = excluded.range_start_ns,
			range_end_ns   = excluded.range_end_ns,
			busy           = excluded.busy,
			fetched_at_ns  = excluded.fetched_at_ns
	`,
		rec.OrganizationID,
		rec.UserID,
		toNanos(rec.RangeStart),
		toNanos(rec.RangeEnd),
		busyJSON,
		toNanos(rec.FetchedAt),
	)
	if err != nil {
		return fmt.Errorf("put cache record: %w", err)
	}
	return nil
}

// GetRecord retrieves the record for (organization, user).
func (s *SQLite) GetRecord(ctx context.Context, orgID, userID string) (model.CacheRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+cacheColumns+`
		FROM availability_cache
		WHERE organization_id = ? AND user_id = ?
	`, orgID, userID)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CacheRecord{}, false, nil
	}
	if err != nil {
		return model.CacheRecord{}, false, err
	}
	return rec, true, nil
}

// ListRecords returns the organization's records, optionally restricted to
// userIDs, ordered by user. Returns an empty slice (not nil) if none match.
func (s *SQLite) ListRecords(ctx context.Context, orgID string, userIDs []string) ([]model.CacheRecord, error) {
	query := `SELECT ` + cacheColumns + ` FROM availability_cache WHERE organization_id = ?`
	args := []any{orgID}
	if len(userIDs) > 0 {
		query += ` AND user_id IN (` + placeholders(len(userIDs)) + `)`
		for _, u := range userIDs {
			args = append(args, u)
		}
	}
	query += ` ORDER BY user_id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cache records: %w", err)
	}
	defer rows.Close()

	records := []model.CacheRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cache records: %w", err)
	}
	return records, nil
}

// DeleteRecords removes the record for (organization, user), or every record
// of the organization when userID is empty. Returns the number removed.
func (s *SQLite) DeleteRecords(ctx context.Context, orgID, userID string) (int64, error) {
	query := `DELETE FROM availability_cache WHERE organization_id = ?`
	args := []any{orgID}
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete cache records: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete cache records: rows affected: %w", err)
	}
	return n, nil
}

func scanRecord(r rowScanner) (model.CacheRecord, error) {
	var (
		rec                       model.CacheRecord
		startNs, endNs, fetchedNs int64
		busyJSON                  string
	)
	err := r.Scan(&rec.OrganizationID, &rec.UserID, &startNs, &endNs, &busyJSON, &fetchedNs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.CacheRecord{}, err
		}
		return model.CacheRecord{}, fmt.Errorf("scan cache record: %w", err)
	}

	busy, err := unmarshalBusy(busyJSON)
	if err != nil {
		return model.CacheRecord{}, err
	}
	rec.Busy = busy
	rec.RangeStart = fromNanos(startNs)
	rec.RangeEnd = fromNanos(endNs)
	rec.FetchedAt = fromNanos(fetchedNs)
	return rec, nil
}
