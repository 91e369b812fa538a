package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"invoicemail/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := conn.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS emails (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);
CREATE INDEX IF NOT EXISTS idx_emails_status ON emails(status);
CREATE INDEX IF NOT EXISTS idx_emails_provider_status ON emails(provider, status);

CREATE TABLE IF NOT EXISTS invoices (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  emailId INTEGER NOT NULL UNIQUE,
  orderNumber TEXT NOT NULL,
  totalAmount TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(emailId) REFERENCES emails(id)
);

CREATE TABLE IF NOT EXISTS invoice_items (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  invoiceId INTEGER NOT NULL,
  lineNo INTEGER NOT NULL,
  itemCode TEXT NOT NULL,
  name TEXT NOT NULL,
  price REAL NOT NULL,
  quantity INTEGER NOT NULL,
  UNIQUE(invoiceId, lineNo),
  FOREIGN KEY(invoiceId) REFERENCES invoices(id)
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  emailId INTEGER,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(emailId) REFERENCES emails(id)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

const emailColumns = `id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef`

func scanEmail(scan func(dest ...any) error) (internal.EmailRow, error) {
	var row internal.EmailRow
	err := scan(&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef)
	return row, err
}

func (d *DB) UpsertEmail(provider, messageID, subject, sender, receivedAt, hash, rawRef string, status internal.EmailStatus) (internal.EmailRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO emails (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, string(status), rawRef)
	if err != nil {
		return internal.EmailRow{}, err
	}

	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, errors.New("failed to upsert email")
	}
	return *row, nil
}

func (d *DB) GetEmailByProviderMessageID(provider, messageID string) (*internal.EmailRow, error) {
	row, err := scanEmail(d.conn.QueryRow(`SELECT `+emailColumns+` FROM emails WHERE provider = ? AND messageId = ?`, provider, messageID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) GetEmailByID(id int) (*internal.EmailRow, error) {
	row, err := scanEmail(d.conn.QueryRow(`SELECT `+emailColumns+` FROM emails WHERE id = ?`, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) MustEmailByProviderMessageID(provider, messageID string) (internal.EmailRow, error) {
	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, fmt.Errorf("email not found: provider=%s messageId=%s", provider, messageID)
	}
	return *row, nil
}

// ListEmailsByStatus returns the oldest emails in status, optionally limited
// to one provider. An empty provider matches all.
func (d *DB) ListEmailsByStatus(status internal.EmailStatus, provider string, limit int) ([]internal.EmailRow, error) {
	rows, err := d.conn.Query(`
SELECT `+emailColumns+`
FROM emails
WHERE status = ? AND (? = '' OR provider = ?)
ORDER BY receivedAt ASC, id ASC LIMIT ?
`, string(status), provider, provider, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.EmailRow
	for rows.Next() {
		row, err := scanEmail(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateEmailStatus(emailID int, status internal.EmailStatus) error {
	_, err := d.conn.Exec(`UPDATE emails SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, string(status), emailID)
	return err
}

// ReplaceInvoice stores record as the only invoice of emailID, dropping any
// earlier extraction of the same email.
func (d *DB) ReplaceInvoice(emailID int, record internal.InvoiceRecord) (int64, error) {
	tx, err := d.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := clearInvoice(tx, emailID); err != nil {
		return 0, err
	}

	result, err := tx.Exec(`INSERT INTO invoices (emailId, orderNumber, totalAmount) VALUES (?, ?, ?)`, emailID, record.OrderNumber, record.TotalAmount)
	if err != nil {
		return 0, err
	}
	invoiceID, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(`INSERT INTO invoice_items (invoiceId, lineNo, itemCode, name, price, quantity) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, item := range record.Items {
		if _, err := stmt.Exec(invoiceID, i+1, item.ItemCode, item.Name, item.Price, item.Quantity); err != nil {
			return 0, err
		}
	}

	return invoiceID, tx.Commit()
}

func (d *DB) ClearInvoice(emailID int) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := clearInvoice(tx, emailID); err != nil {
		return err
	}
	return tx.Commit()
}

func clearInvoice(tx *sql.Tx, emailID int) error {
	if _, err := tx.Exec(`DELETE FROM invoice_items WHERE invoiceId IN (SELECT id FROM invoices WHERE emailId = ?)`, emailID); err != nil {
		return err
	}
	_, err := tx.Exec(`DELETE FROM invoices WHERE emailId = ?`, emailID)
	return err
}

// InvoiceFilter selects stored invoices by the status of their email. Empty
// fields match everything.
type InvoiceFilter struct {
	Provider string
	Statuses []internal.EmailStatus
}

// ListInvoices returns stored invoices in received order with their items in
// extraction order. Each record carries the email's subject, messageId,
// sender and receivedAt as passthrough fields.
func (d *DB) ListInvoices(filter InvoiceFilter) ([]internal.InvoiceRecord, []int, error) {
	query := `
SELECT i.id, e.id, i.orderNumber, i.totalAmount, e.subject, e.messageId, e.sender, e.receivedAt
FROM invoices i
JOIN emails e ON e.id = i.emailId
WHERE (? = '' OR e.provider = ?)`
	args := []any{filter.Provider, filter.Provider}
	if len(filter.Statuses) > 0 {
		query += ` AND e.status IN (?` + repeatPlaceholder(len(filter.Statuses)-1) + `)`
		for _, s := range filter.Statuses {
			args = append(args, string(s))
		}
	}
	query += ` ORDER BY e.receivedAt ASC, e.id ASC`

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, nil, err
	}

	var (
		records    []internal.InvoiceRecord
		invoiceIDs []int64
		emailIDs   []int
	)
	for rows.Next() {
		var (
			invoiceID int64
			emailID   int
			record    internal.InvoiceRecord
			subject   sql.NullString
			messageID string
			sender    sql.NullString
			received  sql.NullString
		)
		if err := rows.Scan(&invoiceID, &emailID, &record.OrderNumber, &record.TotalAmount, &subject, &messageID, &sender, &received); err != nil {
			_ = rows.Close()
			return nil, nil, err
		}
		record.Items = []internal.LineItem{}
		record.Passthrough = []internal.PassthroughField{
			{Name: "subject", Value: subject.String},
			{Name: "messageId", Value: messageID},
			{Name: "sender", Value: sender.String},
			{Name: "receivedAt", Value: received.String},
		}
		records = append(records, record)
		invoiceIDs = append(invoiceIDs, invoiceID)
		emailIDs = append(emailIDs, emailID)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, nil, err
	}
	_ = rows.Close()

	for i, id := range invoiceIDs {
		items, err := d.listInvoiceItems(id)
		if err != nil {
			return nil, nil, err
		}
		records[i].Items = items
	}

	return records, emailIDs, nil
}

func (d *DB) listInvoiceItems(invoiceID int64) ([]internal.LineItem, error) {
	rows, err := d.conn.Query(`SELECT itemCode, name, price, quantity FROM invoice_items WHERE invoiceId = ? ORDER BY lineNo ASC`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []internal.LineItem{}
	for rows.Next() {
		var item internal.LineItem
		if err := rows.Scan(&item.ItemCode, &item.Name, &item.Price, &item.Quantity); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (d *DB) InsertRun(traceID string, emailID int, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.Exec(`INSERT INTO runs (traceId, emailId, timingsJson, countsJson) VALUES (?, ?, ?, ?)`, traceID, emailID, string(timingsJSON), string(countsJSON))
	return err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func repeatPlaceholder(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += ", ?"
	}
	return out
}
