package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/models"
	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/storage"
)

const payableColumns = `id, supplier, issue_date, due_date, liquidation_date, face_value, balance,
	status, document_number, category, payment_method, paid_amount`

// ListPayables selects payables matching the filter, ordered by due date.
// Long id lists are queried in chunks.
func (s *Store) ListPayables(ctx context.Context, filter storage.PayableFilter) ([]*models.PayableTitle, error) {
	chunks := idChunks(filter.IDs)
	var payables []*models.PayableTitle
	for _, ids := range chunks {
		f := filter
		f.IDs = ids
		part, err := s.listPayables(ctx, f)
		if err != nil {
			return nil, err
		}
		payables = append(payables, part...)
	}
	if len(chunks) > 1 {
		slices.SortFunc(payables, func(a, b *models.PayableTitle) int {
			return byDueDate(a.DueDate, a.ID, b.DueDate, b.ID)
		})
	}
	return payables, nil
}

func (s *Store) listPayables(ctx context.Context, filter storage.PayableFilter) ([]*models.PayableTitle, error) {
	w := &where{}
	w.in("id", filter.IDs)
	if filter.Supplier != "" {
		w.eq("supplier", filter.Supplier)
	}

	rows, err := s.db.QueryContext(ctx,
		s.rebind("SELECT "+payableColumns+" FROM payables"+w.String()+" ORDER BY due_date, id"), w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payables: %w", err)
	}
	defer rows.Close()

	var payables []*models.PayableTitle
	for rows.Next() {
		p, err := scanPayable(rows)
		if err != nil {
			return nil, err
		}
		payables = append(payables, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payables: %w", err)
	}
	return payables, nil
}

// UpsertPayables writes payables keyed by id in one transaction.
func (s *Store) UpsertPayables(ctx context.Context, rows []*models.PayableTitle) error {
	if len(rows) == 0 {
		return nil
	}
	query := s.rebind("INSERT INTO payables (" + payableColumns + ") VALUES (" + placeholders(12) + `)
		ON CONFLICT(id) DO UPDATE SET
		supplier = excluded.supplier,
		issue_date = excluded.issue_date,
		due_date = excluded.due_date,
		liquidation_date = excluded.liquidation_date,
		face_value = excluded.face_value,
		balance = excluded.balance,
		status = excluded.status,
		document_number = excluded.document_number,
		category = excluded.category,
		payment_method = excluded.payment_method,
		paid_amount = excluded.paid_amount`)

	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare payable write: %w", err)
		}
		defer stmt.Close()

		for _, p := range rows {
			_, err := stmt.ExecContext(ctx,
				p.ID, p.Supplier, dateValue(p.IssueDate), dateValue(p.DueDate), datePtrValue(p.LiquidationDate),
				p.FaceValue.String(), p.Balance.String(), string(p.Status),
				nullString(p.DocumentNumber), nullString(p.Category), nullString(p.PaymentMethod),
				p.PaidAmount.String(),
			)
			if err != nil {
				return fmt.Errorf("failed to write payable %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

func scanPayable(row scanner) (*models.PayableTitle, error) {
	var (
		p                     models.PayableTitle
		issue, due, liq       sql.NullString
		face, balance, paid   string
		status                string
		doc, category, method sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Supplier, &issue, &due, &liq, &face, &balance,
		&status, &doc, &category, &method, &paid); err != nil {
		return nil, fmt.Errorf("failed to scan payable: %w", err)
	}

	var err error
	if p.IssueDate, err = parseDate(issue); err != nil {
		return nil, err
	}
	if p.DueDate, err = parseDate(due); err != nil {
		return nil, err
	}
	if p.LiquidationDate, err = parseDatePtr(liq); err != nil {
		return nil, err
	}
	if p.FaceValue, err = parseMoney(face); err != nil {
		return nil, err
	}
	if p.Balance, err = parseMoney(balance); err != nil {
		return nil, err
	}
	if p.PaidAmount, err = parseMoney(paid); err != nil {
		return nil, err
	}
	p.Status = models.TitleStatus(status)
	p.DocumentNumber = doc.String
	p.Category = category.String
	p.PaymentMethod = method.String
	return &p, nil
}
