package sqlstore

import (
	"database/sql"
	"strings"
)

// schema sets up every table. Statements run one at a time so the same text
// works on SQLite and PostgreSQL. Money columns hold decimal text, dates hold
// YYYY-MM-DD text and timestamps hold unix nanoseconds.
const schema = `
CREATE TABLE IF NOT EXISTS receivables (
    id TEXT PRIMARY KEY,
    client TEXT NOT NULL,
    issue_date TEXT,
    due_date TEXT,
    liquidation_date TEXT,
    face_value TEXT NOT NULL,
    balance TEXT NOT NULL,
    status TEXT NOT NULL,
    collection_state TEXT,
    document_number TEXT,
    category TEXT,
    payment_method TEXT,
    origin TEXT NOT NULL,
    settlement_id TEXT,
    received_amount TEXT NOT NULL,
    receipt_method TEXT
);

CREATE TABLE IF NOT EXISTS payables (
    id TEXT PRIMARY KEY,
    supplier TEXT NOT NULL,
    issue_date TEXT,
    due_date TEXT,
    liquidation_date TEXT,
    face_value TEXT NOT NULL,
    balance TEXT NOT NULL,
    status TEXT NOT NULL,
    document_number TEXT,
    category TEXT,
    payment_method TEXT,
    paid_amount TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS settlements (
    id TEXT PRIMARY KEY,
    client TEXT NOT NULL,
    original_amount TEXT NOT NULL,
    agreed_amount TEXT NOT NULL,
    installment_count INTEGER NOT NULL,
    frequency TEXT NOT NULL,
    first_installment_date TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    created_by TEXT,
    status TEXT NOT NULL,
    negotiated_title_ids TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS collection_history (
    id TEXT PRIMARY KEY,
    client TEXT NOT NULL,
    action_taken TEXT NOT NULL,
    note TEXT,
    next_action_date TEXT,
    amount_due TEXT NOT NULL,
    days_overdue INTEGER NOT NULL,
    actor TEXT,
    ts BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
    id TEXT PRIMARY KEY,
    actor TEXT,
    action TEXT NOT NULL,
    client TEXT,
    details TEXT,
    amount TEXT NOT NULL,
    ts BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_receivables_client ON receivables(client);
CREATE INDEX IF NOT EXISTS idx_receivables_settlement_id ON receivables(settlement_id);
CREATE INDEX IF NOT EXISTS idx_payables_supplier ON payables(supplier);
CREATE INDEX IF NOT EXISTS idx_settlements_client ON settlements(client);
CREATE INDEX IF NOT EXISTS idx_collection_history_client ON collection_history(client, ts);
CREATE INDEX IF NOT EXISTS idx_audit_log_ts ON audit_log(ts);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
