package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/models"
	"github.com/joaojoaojoao11/NZERP---LOGS-AND-FINANC-sub001/internal/storage"
)

const receivableColumns = `id, client, issue_date, due_date, liquidation_date, face_value, balance,
	status, collection_state, document_number, category, payment_method, origin,
	settlement_id, received_amount, receipt_method`

const receivableUpsert = ` ON CONFLICT(id) DO UPDATE SET
	client = excluded.client,
	issue_date = excluded.issue_date,
	due_date = excluded.due_date,
	liquidation_date = excluded.liquidation_date,
	face_value = excluded.face_value,
	balance = excluded.balance,
	status = excluded.status,
	collection_state = excluded.collection_state,
	document_number = excluded.document_number,
	category = excluded.category,
	payment_method = excluded.payment_method,
	origin = excluded.origin,
	settlement_id = excluded.settlement_id,
	received_amount = excluded.received_amount,
	receipt_method = excluded.receipt_method`

func receivableArgs(t *models.ReceivableTitle) []any {
	return []any{
		t.ID, t.Client, dateValue(t.IssueDate), dateValue(t.DueDate), datePtrValue(t.LiquidationDate),
		t.FaceValue.String(), t.Balance.String(),
		string(t.Status), nullString(string(t.CollectionState)), nullString(t.DocumentNumber),
		nullString(t.Category), nullString(t.PaymentMethod), string(t.Origin),
		nullString(t.SettlementID), t.ReceivedAmount.String(), nullString(t.ReceiptMethod),
	}
}

func scanReceivable(row scanner) (*models.ReceivableTitle, error) {
	var (
		t                                 models.ReceivableTitle
		issue, due, liq                   sql.NullString
		face, balance, received           string
		status, origin                    string
		state, doc, category, method, sid sql.NullString
		receiptMethod                     sql.NullString
	)
	if err := row.Scan(&t.ID, &t.Client, &issue, &due, &liq, &face, &balance,
		&status, &state, &doc, &category, &method, &origin,
		&sid, &received, &receiptMethod); err != nil {
		return nil, fmt.Errorf("failed to scan receivable: %w", err)
	}

	var err error
	if t.IssueDate, err = parseDate(issue); err != nil {
		return nil, err
	}
	if t.DueDate, err = parseDate(due); err != nil {
		return nil, err
	}
	if t.LiquidationDate, err = parseDatePtr(liq); err != nil {
		return nil, err
	}
	if t.FaceValue, err = parseMoney(face); err != nil {
		return nil, err
	}
	if t.Balance, err = parseMoney(balance); err != nil {
		return nil, err
	}
	if t.ReceivedAmount, err = parseMoney(received); err != nil {
		return nil, err
	}
	t.Status = models.TitleStatus(status)
	t.CollectionState = models.CollectionState(state.String)
	t.DocumentNumber = doc.String
	t.Category = category.String
	t.PaymentMethod = method.String
	t.Origin = models.Origin(origin)
	t.SettlementID = sid.String
	t.ReceiptMethod = receiptMethod.String
	return &t, nil
}

func titleWhere(f storage.TitleFilter) *where {
	w := &where{}
	w.in("id", f.IDs)
	if f.Client != "" {
		w.eq("client", f.Client)
	}
	if f.SettlementID != "" {
		w.eq("settlement_id", f.SettlementID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		w.in("status", statuses)
	}
	if f.Origin != "" {
		w.eq("origin", string(f.Origin))
	}
	return w
}

// ListReceivables selects titles matching the filter, ordered by due date.
// Long id lists are queried in chunks.
func (s *Store) ListReceivables(ctx context.Context, filter storage.TitleFilter) ([]*models.ReceivableTitle, error) {
	chunks := idChunks(filter.IDs)
	var titles []*models.ReceivableTitle
	for _, ids := range chunks {
		f := filter
		f.IDs = ids
		part, err := s.listReceivables(ctx, f)
		if err != nil {
			return nil, err
		}
		titles = append(titles, part...)
	}
	if len(chunks) > 1 {
		slices.SortFunc(titles, func(a, b *models.ReceivableTitle) int {
			return byDueDate(a.DueDate, a.ID, b.DueDate, b.ID)
		})
	}
	return titles, nil
}

func (s *Store) listReceivables(ctx context.Context, filter storage.TitleFilter) ([]*models.ReceivableTitle, error) {
	w := titleWhere(filter)
	query := "SELECT " + receivableColumns + " FROM receivables" + w.String() + " ORDER BY due_date, id"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list receivables: %w", err)
	}
	defer rows.Close()

	var titles []*models.ReceivableTitle
	for rows.Next() {
		t, err := scanReceivable(rows)
		if err != nil {
			return nil, err
		}
		titles = append(titles, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate receivables: %w", err)
	}
	return titles, nil
}

// InsertReceivables adds new titles in one transaction.
func (s *Store) InsertReceivables(ctx context.Context, rows []*models.ReceivableTitle) error {
	return s.writeReceivables(ctx, rows, "")
}

// UpsertReceivables writes titles keyed by id in one transaction.
func (s *Store) UpsertReceivables(ctx context.Context, rows []*models.ReceivableTitle) error {
	return s.writeReceivables(ctx, rows, receivableUpsert)
}

func (s *Store) writeReceivables(ctx context.Context, rows []*models.ReceivableTitle, conflict string) error {
	if len(rows) == 0 {
		return nil
	}
	query := s.rebind("INSERT INTO receivables (" + receivableColumns + ") VALUES (" + placeholders(16) + ")" + conflict)
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare receivable write: %w", err)
		}
		defer stmt.Close()

		for _, t := range rows {
			if _, err := stmt.ExecContext(ctx, receivableArgs(t)...); err != nil {
				return fmt.Errorf("failed to write receivable %s: %w", t.ID, err)
			}
		}
		return nil
	})
}

// UpdateReceivables applies the patch to every title matching the filter.
func (s *Store) UpdateReceivables(ctx context.Context, filter storage.TitleFilter, patch storage.TitlePatch) (int64, error) {
	if filter.Empty() {
		return 0, storage.ErrUnboundedFilter
	}

	var sets []string
	var args []any
	set := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if patch.Balance != nil {
		set("balance", patch.Balance.String())
	}
	if patch.Status != nil {
		set("status", string(*patch.Status))
	}
	if patch.CollectionState != nil {
		set("collection_state", nullString(string(*patch.CollectionState)))
	}
	if patch.SettlementID != nil {
		set("settlement_id", nullString(*patch.SettlementID))
	}
	if patch.LiquidationDate != nil {
		set("liquidation_date", dateValue(*patch.LiquidationDate))
	}
	if patch.ReceivedAmount != nil {
		set("received_amount", patch.ReceivedAmount.String())
	}
	if patch.ReceiptMethod != nil {
		set("receipt_method", nullString(*patch.ReceiptMethod))
	}
	if len(sets) == 0 {
		return 0, nil
	}

	var total int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, ids := range idChunks(filter.IDs) {
			f := filter
			f.IDs = ids
			w := titleWhere(f)
			query := "UPDATE receivables SET " + strings.Join(sets, ", ") + w.String()
			res, err := tx.ExecContext(ctx, s.rebind(query), append(slices.Clip(args), w.args...)...)
			if err != nil {
				return fmt.Errorf("failed to update receivables: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to count updated receivables: %w", err)
			}
			total += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// DeleteReceivables removes every title matching the filter.
func (s *Store) DeleteReceivables(ctx context.Context, filter storage.TitleFilter) (int64, error) {
	if filter.Empty() {
		return 0, storage.ErrUnboundedFilter
	}
	var total int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, ids := range idChunks(filter.IDs) {
			f := filter
			f.IDs = ids
			w := titleWhere(f)
			res, err := tx.ExecContext(ctx, s.rebind("DELETE FROM receivables"+w.String()), w.args...)
			if err != nil {
				return fmt.Errorf("failed to delete receivables: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to count deleted receivables: %w", err)
			}
			total += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}
