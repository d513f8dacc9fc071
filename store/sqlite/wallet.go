package sqlite

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/warp/commission-engine/commission"
)

// =============================================================================
// WALLET STORE
// =============================================================================
// Balances are mutated only by Credit/Debit inside a transaction: the
// current value is read and the incremented value written while the store
// lock and the SQL transaction are both held. There is no blind
// read-modify-write path.

// GetWallet returns the wallet row, or a zero-balance wallet when absent.
func (s *Store) GetWallet(ctx context.Context, userID, accountType string) (commission.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getWallet(ctx, s.db, userID, accountType)
}

func getWallet(ctx context.Context, db querier, userID, accountType string) (commission.Wallet, error) {
	w := commission.Wallet{UserID: userID, AccountType: accountType, Amount: decimal.Zero}

	var amount string
	err := db.QueryRowContext(ctx,
		"SELECT amount FROM wallets WHERE user_id = ? AND account_type = ?",
		userID, accountType,
	).Scan(&amount)
	if err == sql.ErrNoRows {
		return w, nil
	}
	if err != nil {
		return w, err
	}
	w.Amount = commission.MustDecimal(amount)
	return w, nil
}

// CreditWallet atomically increments a wallet balance within the
// transaction, creating the row on first credit.
func (t *Tx) CreditWallet(ctx context.Context, userID, accountType string, delta decimal.Decimal) error {
	current, err := getWallet(ctx, t.tx, userID, accountType)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO wallets (user_id, account_type, amount)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, account_type) DO UPDATE SET amount = excluded.amount
	`
	next := current.Amount.Add(delta)
	_, err = t.tx.ExecContext(ctx, query, userID, accountType, fmtMoney(next))
	return err
}

// DebitWallet atomically decrements a wallet balance within the
// transaction. A debit that would drive the balance negative fails with
// ErrInsufficientBalance and writes nothing.
func (t *Tx) DebitWallet(ctx context.Context, userID, accountType string, delta decimal.Decimal) error {
	current, err := getWallet(ctx, t.tx, userID, accountType)
	if err != nil {
		return err
	}

	next := current.Amount.Sub(delta)
	if next.IsNegative() {
		return commission.ErrInsufficientBalance
	}
	_, err = t.tx.ExecContext(ctx,
		"UPDATE wallets SET amount = ? WHERE user_id = ? AND account_type = ?",
		fmtMoney(next), userID, accountType)
	return err
}

// =============================================================================
// PAYOUT LEDGER STORE
// =============================================================================

// AppendLedger appends one audit row. The ledger is append-only: there is
// no update or delete path anywhere in this package.
func (t *Tx) AppendLedger(ctx context.Context, e commission.LedgerEntry) error {
	query := `
		INSERT INTO payout_ledger (id, user_id, to_user_id, amount, status, method, type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := t.tx.ExecContext(ctx, query,
		e.ID, e.UserID, e.ToUserID, fmtMoney(e.Amount),
		e.Status, e.Method, e.Type, fmtTime(e.CreatedAt))
	return err
}

// HasLedgerEntry reports whether a credit with the same beneficiary, type,
// amount and creation date already exists. This is the idempotency oracle
// the salary pay phase consults before crediting.
func (s *Store) HasLedgerEntry(ctx context.Context, toUserID, entryType string, day commission.Window, amount decimal.Decimal) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT COUNT(*) FROM payout_ledger
		WHERE to_user_id = ? AND type = ? AND amount = ?
		  AND created_at >= ? AND created_at <= ?
	`
	var count int
	err := s.db.QueryRowContext(ctx, query,
		toUserID, entryType, fmtMoney(amount), fmtTime(day.From), fmtTime(day.To),
	).Scan(&count)
	return count > 0, err
}

// LedgerEntriesFor returns a beneficiary's ledger rows, newest first.
func (s *Store) LedgerEntriesFor(ctx context.Context, toUserID string, limit int) ([]commission.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, user_id, to_user_id, amount, status, method, type, created_at
		FROM payout_ledger
		WHERE to_user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, toUserID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []commission.LedgerEntry
	for rows.Next() {
		var (
			e         commission.LedgerEntry
			amount    string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.ToUserID, &amount, &e.Status, &e.Method, &e.Type, &createdAt); err != nil {
			return nil, err
		}
		e.Amount = commission.MustDecimal(amount)
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
