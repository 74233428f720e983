// Package sqlite is the local ledger store on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dvloznov/perla/internal/domain"
	"github.com/dvloznov/perla/internal/ledger"
)

// Store keeps every owner's sales and suggestions in one SQLite file.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("Open: creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("Open: opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("Open: pinging database: %w", err)
	}
	return newStore(db)
}

// OpenMemory creates an in-memory database, mostly for tests.
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("OpenMemory: opening database: %w", err)
	}
	// Every pooled connection would otherwise see its own empty database.
	db.SetMaxOpenConns(1)
	return newStore(db)
}

func newStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS sales (
    owner_id TEXT NOT NULL,
    id TEXT NOT NULL,
    product TEXT NOT NULL,
    amount REAL NOT NULL,
    price REAL NOT NULL,
    total_price REAL NOT NULL,
    client TEXT NOT NULL,
    payment_method TEXT NOT NULL,
    sale_date TEXT NOT NULL,
    normalized_product TEXT NOT NULL DEFAULT '',
    normalized_client TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL,
    PRIMARY KEY (owner_id, id)
);

CREATE INDEX IF NOT EXISTS idx_sales_owner_created ON sales(owner_id, created_at);

CREATE TABLE IF NOT EXISTS suggestions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    owner_id TEXT NOT NULL,
    text TEXT NOT NULL,
    created_at DATETIME NOT NULL
);
`

// ListSales returns the owner's sales, most recent first.
func (s *Store) ListSales(ctx context.Context, ownerID string) ([]domain.SaleRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product, amount, price, total_price, client, payment_method,
		       sale_date, normalized_product, normalized_client, created_at, updated_at
		FROM sales
		WHERE owner_id = ?
		ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ListSales: querying: %w", err)
	}
	defer rows.Close()

	var out []domain.SaleRecord
	for rows.Next() {
		var r domain.SaleRecord
		if err := rows.Scan(&r.ID, &r.Product, &r.Amount, &r.UnitPrice, &r.TotalPrice,
			&r.Client, &r.PaymentMethod, &r.Date, &r.NormalizedProduct, &r.NormalizedClient,
			&r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ListSales: scanning: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListSales: iterating: %w", err)
	}
	return out, nil
}

// UpsertSale inserts rec or replaces the stored record with the same id.
// created_at is kept from the first insert.
func (s *Store) UpsertSale(ctx context.Context, ownerID string, rec domain.SaleRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("UpsertSale: sale id is required")
	}
	now := s.now().UTC()
	created := rec.CreatedAt
	if created.IsZero() {
		created = now
	}
	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sales (owner_id, id, product, amount, price, total_price, client,
		                   payment_method, sale_date, normalized_product, normalized_client,
		                   created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, id) DO UPDATE SET
		    product = excluded.product,
		    amount = excluded.amount,
		    price = excluded.price,
		    total_price = excluded.total_price,
		    client = excluded.client,
		    payment_method = excluded.payment_method,
		    sale_date = excluded.sale_date,
		    normalized_product = excluded.normalized_product,
		    normalized_client = excluded.normalized_client,
		    updated_at = excluded.updated_at`,
		ownerID, rec.ID, rec.Product, rec.Amount, rec.UnitPrice, rec.TotalPrice, rec.Client,
		rec.PaymentMethod, rec.Date, rec.NormalizedProduct, rec.NormalizedClient,
		created.UTC(), updated.UTC())
	if err != nil {
		return fmt.Errorf("UpsertSale: writing sale %s: %w", rec.ID, err)
	}
	return nil
}

// DeleteSales removes the given ids. Unknown ids are ignored.
func (s *Store) DeleteSales(ctx context.Context, ownerID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, ownerID)
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM sales WHERE owner_id = ? AND id IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("DeleteSales: deleting %d sales: %w", len(ids), err)
	}
	return nil
}

// SaveSuggestion stores one piece of feedback.
func (s *Store) SaveSuggestion(ctx context.Context, ownerID, text string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO suggestions (owner_id, text, created_at) VALUES (?, ?, ?)`,
		ownerID, text, s.now().UTC())
	if err != nil {
		return fmt.Errorf("SaveSuggestion: inserting: %w", err)
	}
	return nil
}

// ListSuggestions returns the owner's suggestions, oldest first.
func (s *Store) ListSuggestions(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT text FROM suggestions WHERE owner_id = ? ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ListSuggestions: querying: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("ListSuggestions: scanning: %w", err)
		}
		out = append(out, text)
	}
	return out, rows.Err()
}

var (
	_ ledger.Store           = (*Store)(nil)
	_ ledger.SuggestionStore = (*Store)(nil)
)
