package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/models"
)

// AppendHistory adds an entry to the collection timeline.
func (s *Store) AppendHistory(ctx context.Context, e *models.CollectionHistoryEntry) error {
	_, err := s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO collection_history
			(id, client, action_taken, note, next_action_date, amount_due, days_overdue, actor, ts)
			VALUES (`+placeholders(9)+`)`),
		e.ID, e.Client, e.ActionTaken, nullString(e.Note), datePtrValue(e.NextActionDate),
		e.AmountDue.String(), e.DaysOverdue, nullString(e.User), unixNano(e.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}
	return nil
}

// ListHistory returns entries for a client, or for everyone when client is
// empty, oldest first.
func (s *Store) ListHistory(ctx context.Context, client string) ([]models.CollectionHistoryEntry, error) {
	w := &where{}
	if client != "" {
		w.eq("client", client)
	}
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT id, client, action_taken, note, next_action_date, amount_due, days_overdue, actor, ts
			FROM collection_history`+w.String()+` ORDER BY ts, id`), w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var entries []models.CollectionHistoryEntry
	for rows.Next() {
		var (
			e          models.CollectionHistoryEntry
			note, next sql.NullString
			amount     string
			actor      sql.NullString
			ts         int64
		)
		if err := rows.Scan(&e.ID, &e.Client, &e.ActionTaken, &note, &next, &amount,
			&e.DaysOverdue, &actor, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		if e.NextActionDate, err = parseDatePtr(next); err != nil {
			return nil, err
		}
		if e.AmountDue, err = parseMoney(amount); err != nil {
			return nil, err
		}
		e.Note = note.String
		e.User = actor.String
		e.Timestamp = fromUnixNano(ts)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}
	return entries, nil
}

// AppendAudit adds an audit log entry.
func (s *Store) AppendAudit(ctx context.Context, e *models.AuditEntry) error {
	_, err := s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO audit_log (id, actor, action, client, details, amount, ts)
			VALUES (`+placeholders(7)+`)`),
		e.ID, nullString(e.User), e.Action, nullString(e.Client), nullString(e.Details),
		e.Amount.String(), unixNano(e.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// ListAudit returns up to limit entries, newest first.
func (s *Store) ListAudit(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT id, actor, action, client, details, amount, ts
			FROM audit_log ORDER BY ts DESC, id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit log: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var (
			e                      models.AuditEntry
			actor, client, details sql.NullString
			amount                 string
			ts                     int64
		)
		if err := rows.Scan(&e.ID, &actor, &e.Action, &client, &details, &amount, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if e.Amount, err = parseMoney(amount); err != nil {
			return nil, err
		}
		e.User = actor.String
		e.Client = client.String
		e.Details = details.String
		e.Timestamp = fromUnixNano(ts)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit log: %w", err)
	}
	return entries, nil
}
