package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/models"
	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/storage"
)

const settlementColumns = `id, client, original_amount, agreed_amount, installment_count, frequency,
	first_installment_date, created_at, created_by, status, negotiated_title_ids`

// InsertSettlement persists a new settlement.
func (s *Store) InsertSettlement(ctx context.Context, settlement *models.Settlement) error {
	ids, err := json.Marshal(settlement.NegotiatedTitleIDs)
	if err != nil {
		return fmt.Errorf("failed to encode negotiated ids: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		s.rebind("INSERT INTO settlements ("+settlementColumns+") VALUES ("+placeholders(11)+")"),
		settlement.ID, settlement.Client, settlement.OriginalAmount.String(), settlement.AgreedAmount.String(),
		settlement.InstallmentCount, string(settlement.Frequency), models.FormatDate(settlement.FirstInstallmentDate),
		unixNano(settlement.CreatedAt), nullString(settlement.CreatedBy), string(settlement.Status), string(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to insert settlement: %w", err)
	}
	return nil
}

// GetSettlement retrieves a settlement by ID.
func (s *Store) GetSettlement(ctx context.Context, id string) (*models.Settlement, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind("SELECT "+settlementColumns+" FROM settlements WHERE id = ?"), id)
	settlement, err := scanSettlement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("settlement %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return settlement, nil
}

// ListSettlements retrieves settlements matching the filter, newest first.
func (s *Store) ListSettlements(ctx context.Context, filter storage.SettlementFilter) ([]*models.Settlement, error) {
	w := &where{}
	if filter.Client != "" {
		w.eq("client", filter.Client)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		w.in("status", statuses)
	}

	rows, err := s.db.QueryContext(ctx,
		s.rebind("SELECT "+settlementColumns+" FROM settlements"+w.String()+" ORDER BY created_at DESC, id"), w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	defer rows.Close()

	var settlements []*models.Settlement
	for rows.Next() {
		settlement, err := scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		settlements = append(settlements, settlement)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlements: %w", err)
	}
	return settlements, nil
}

// UpdateSettlement applies the patch to one settlement.
func (s *Store) UpdateSettlement(ctx context.Context, id string, patch storage.SettlementPatch) error {
	if patch.Status == nil {
		return nil
	}
	res, err := s.db.ExecContext(ctx,
		s.rebind("UPDATE settlements SET status = ? WHERE id = ?"), string(*patch.Status), id)
	if err != nil {
		return fmt.Errorf("failed to update settlement: %w", err)
	}
	return requireRow(res, id)
}

// DeleteSettlement removes a settlement by ID.
func (s *Store) DeleteSettlement(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM settlements WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("failed to delete settlement: %w", err)
	}
	return requireRow(res, id)
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("settlement %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func scanSettlement(row scanner) (*models.Settlement, error) {
	var (
		st              models.Settlement
		original, agree string
		frequency       string
		firstDate       string
		createdAt       int64
		createdBy       sql.NullString
		status, ids     string
	)
	err := row.Scan(&st.ID, &st.Client, &original, &agree, &st.InstallmentCount, &frequency,
		&firstDate, &createdAt, &createdBy, &status, &ids)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan settlement: %w", err)
	}

	if st.OriginalAmount, err = parseMoney(original); err != nil {
		return nil, err
	}
	if st.AgreedAmount, err = parseMoney(agree); err != nil {
		return nil, err
	}
	if st.FirstInstallmentDate, err = time.Parse(models.DateLayout, firstDate); err != nil {
		return nil, fmt.Errorf("invalid stored date %q: %w", firstDate, err)
	}
	if err := json.Unmarshal([]byte(ids), &st.NegotiatedTitleIDs); err != nil {
		return nil, fmt.Errorf("failed to decode negotiated ids: %w", err)
	}
	st.Frequency = models.Frequency(frequency)
	st.CreatedAt = fromUnixNano(createdAt)
	st.CreatedBy = createdBy.String
	st.Status = models.SettlementStatus(status)
	return &st, nil
}
