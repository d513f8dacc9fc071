/*
Package sqlite provides the SQLite-backed persistence for the engines.

PURPOSE:
  Implements storage for every table the commission core reads or writes:
  users/tree, sales, binary payouts, star awards, salary qualifications and
  installments, wallets, and the payout ledger. The same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

IDEMPOTENCY ENFORCEMENT:
  Unique indexes are the idempotency guards:
  - binary_payouts (sponsor_id, plan, closing_date, closing_no)
  - star_awards (sponsor_id, rank_no)
  - salary_qualifications (sponsor_id, period_marker)
  Duplicate-key inserts surface as typed sentinel errors the engines absorb.

TRANSACTIONS:
  Every financial mutation runs inside WithTx: wallet increment, ledger
  append and row-status updates commit or roll back as one unit, scoped to
  exactly one subject. Wallet balances are read and rewritten only while the
  store lock and the SQL transaction are held.

TIME AND MONEY:
  Timestamps are stored as UTC RFC3339 text (lexicographically ordered).
  Amounts are stored as fixed 2-decimal text and parsed back into
  decimal.Decimal; arithmetic happens in Go, never in SQL.

WAL MODE:
  SQLite is opened with WAL for better concurrency and crash recovery.

USAGE:
  store, err := sqlite.New("./data/commission.db")
  // Use ":memory:" for tests.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/commission-engine/commission"
)

// Store implements all persistence for the commission engines.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at dbPath. Use ":memory:" for an in-memory
// database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Users with both tree views. Child pointers are write-once.
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		referral_code TEXT UNIQUE,
		sponsor_code TEXT,
		left_child_id TEXT,
		right_child_id TEXT,
		position TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_sponsor_code
		ON users(sponsor_code) WHERE sponsor_code IS NOT NULL;

	-- Sales (append-only; produced by the excluded checkout flow)
	CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		buyer_id TEXT NOT NULL,
		sponsor_id TEXT NOT NULL,
		leg TEXT,
		plan_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sales_status_created
		ON sales(status, created_at);
	CREATE INDEX IF NOT EXISTS idx_sales_buyer
		ON sales(buyer_id, status, created_at);

	-- Binary payouts: the (sponsor, plan, closing) idempotency unit
	CREATE TABLE IF NOT EXISTS binary_payouts (
		id TEXT PRIMARY KEY,
		sponsor_id TEXT NOT NULL,
		plan TEXT NOT NULL,
		closing_date TEXT NOT NULL,
		closing_no INTEGER NOT NULL,
		left_volume TEXT NOT NULL,
		right_volume TEXT NOT NULL,
		matched TEXT NOT NULL,
		payable TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: at most one payout row per sponsor per plan per closing slot
	CREATE UNIQUE INDEX IF NOT EXISTS idx_binary_payouts_unique
		ON binary_payouts(sponsor_id, plan, closing_date, closing_no);
	CREATE INDEX IF NOT EXISTS idx_binary_payouts_day
		ON binary_payouts(sponsor_id, plan, closing_date);

	-- Star-rank awards: a rank is awarded to a sponsor at most once, ever
	CREATE TABLE IF NOT EXISTS star_awards (
		id TEXT PRIMARY KEY,
		sponsor_id TEXT NOT NULL,
		rank_no INTEGER NOT NULL,
		threshold TEXT NOT NULL,
		reward TEXT NOT NULL,
		awarded_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_star_awards_unique
		ON star_awards(sponsor_id, rank_no);

	-- Salary qualifications: one per sponsor per period, upgradeable
	CREATE TABLE IF NOT EXISTS salary_qualifications (
		id TEXT PRIMARY KEY,
		sponsor_id TEXT NOT NULL,
		period_marker TEXT NOT NULL,
		mode TEXT NOT NULL,
		vip_no INTEGER NOT NULL,
		salary_amount TEXT NOT NULL,
		months_total INTEGER NOT NULL,
		months_paid INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_salary_qualifications_unique
		ON salary_qualifications(sponsor_id, period_marker);

	CREATE TABLE IF NOT EXISTS salary_installments (
		id TEXT PRIMARY KEY,
		qualification_id TEXT NOT NULL,
		due_date TEXT NOT NULL,
		amount TEXT NOT NULL,
		paid_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_salary_installments_due
		ON salary_installments(due_date) WHERE paid_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_salary_installments_qualification
		ON salary_installments(qualification_id);

	-- Wallets: one running balance per (user, account type)
	CREATE TABLE IF NOT EXISTS wallets (
		user_id TEXT NOT NULL,
		account_type TEXT NOT NULL,
		amount TEXT NOT NULL DEFAULT '0.00',
		PRIMARY KEY (user_id, account_type)
	);

	-- Payout ledger (append-only audit trail and idempotency oracle)
	CREATE TABLE IF NOT EXISTS payout_ledger (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		to_user_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		status TEXT NOT NULL,
		method TEXT NOT NULL,
		type TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payout_ledger_to_user
		ON payout_ledger(to_user_id, type, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// Tx is a write view over one SQL transaction. All financial mutations go
// through Tx methods so a subject's update commits or rolls back as a unit.
type Tx struct {
	tx *sql.Tx
}

// WithTx executes fn within a database transaction, holding the store's
// write lock for the duration. fn returning an error rolls everything back.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&Tx{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// =============================================================================
// HELPERS
// =============================================================================

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func fmtMoney(d decimal.Decimal) string {
	return commission.RoundMoney(d).StringFixed(2)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
