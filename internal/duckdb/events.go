package duckdb

import (
	"fmt"
	"time"

	"github.com/tinytelemetry/hookwatch/internal/model"
)

const insertEventSQL = `INSERT OR IGNORE INTO events (
	delivery_id, type, event_type, action, message, author,
	branch, from_branch, to_branch, repository, pr_number, received_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// InsertEvents stores a batch of events in one transaction and returns how
// many were new. Events whose delivery id is already stored are skipped, so a
// GitHub redelivery never produces a duplicate line in the feed.
func (s *Store) InsertEvents(events []*model.Event) (int64, error) {
	if len(events) == 0 {
		return 0, nil
	}

	ctx, cancel := s.queryContext()
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("duckdb: begin insert: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insertEventSQL)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("duckdb: prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, ev := range events {
		if ev == nil {
			continue
		}
		if ev.DeliveryID == "" {
			_ = tx.Rollback()
			return 0, fmt.Errorf("duckdb: event without delivery id")
		}
		at := ev.ReceivedAt
		if at.IsZero() {
			at = time.Now()
		}
		res, err := stmt.ExecContext(ctx,
			ev.DeliveryID, ev.Type, ev.GitHubName, ev.Action, ev.Message, ev.Author,
			ev.Branch, ev.FromBranch, ev.ToBranch, ev.Repository, ev.PRNumber, at.UTC(),
		)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("duckdb: insert event %s: %w", ev.DeliveryID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += n
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("duckdb: commit insert: %w", err)
	}
	return inserted, nil
}

// RecentEvents returns up to q.Limit events, newest first. Events received
// at the same instant keep their arrival order.
func (s *Store) RecentEvents(q model.EventQuery) ([]model.Event, error) {
	if q.Limit <= 0 {
		return []model.Event{}, nil
	}

	ctx, cancel := s.queryContext()
	defer cancel()

	query := `SELECT delivery_id, type, event_type, action, message, author,
		branch, from_branch, to_branch, repository, pr_number, received_at
	FROM events`
	args := []any{}
	if q.Type != "" {
		query += ` WHERE type = ?`
		args = append(args, q.Type)
	}
	query += ` ORDER BY received_at DESC, seq DESC LIMIT ?`
	args = append(args, q.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("duckdb: recent events: %w", err)
	}
	defer rows.Close()

	events := make([]model.Event, 0, q.Limit)
	for rows.Next() {
		var ev model.Event
		if err := rows.Scan(
			&ev.DeliveryID, &ev.Type, &ev.GitHubName, &ev.Action, &ev.Message, &ev.Author,
			&ev.Branch, &ev.FromBranch, &ev.ToBranch, &ev.Repository, &ev.PRNumber, &ev.ReceivedAt,
		); err != nil {
			return nil, fmt.Errorf("duckdb: scan event: %w", err)
		}
		ev.ReceivedAt = ev.ReceivedAt.UTC()
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("duckdb: recent events: %w", err)
	}
	return events, nil
}

// EventSummary returns event counts grouped by type, largest first.
func (s *Store) EventSummary() ([]model.TypeCount, error) {
	ctx, cancel := s.queryContext()
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT type, COUNT(*) AS cnt FROM events GROUP BY type ORDER BY cnt DESC, type ASC`)
	if err != nil {
		return nil, fmt.Errorf("duckdb: event summary: %w", err)
	}
	defer rows.Close()

	summary := []model.TypeCount{}
	for rows.Next() {
		var tc model.TypeCount
		if err := rows.Scan(&tc.Type, &tc.Count); err != nil {
			return nil, fmt.Errorf("duckdb: scan summary: %w", err)
		}
		summary = append(summary, tc)
	}
	return summary, rows.Err()
}

// TotalEventCount returns the number of stored events.
func (s *Store) TotalEventCount() (int64, error) {
	ctx, cancel := s.queryContext()
	defer cancel()

	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("duckdb: count events: %w", err)
	}
	return n, nil
}

// DeleteBefore removes events received before cutoff and returns how many
// rows were deleted.
func (s *Store) DeleteBefore(cutoff time.Time) (int64, error) {
	ctx, cancel := s.queryContext()
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE received_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("duckdb: delete expired events: %w", err)
	}
	return res.RowsAffected()
}
