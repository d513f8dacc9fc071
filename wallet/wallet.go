/*
Package wallet mediates every credit the commission engines hand out.

A credit is two writes in one transaction: an append-only ledger row
recording who paid whom, and an increment of the beneficiary's earning
wallet. The engines never touch wallet rows directly; they describe the
credit and this package applies it, so the ledger and the balances can
never drift apart.
*/
package wallet

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/store/sqlite"
)

// Credit describes one payout to apply.
type Credit struct {
	ToUserID string
	Amount   decimal.Decimal
	Type     string // ledger type: binary_payout, star_rank, vip_salary
	At       time.Time
}

// Manager applies credits against the store.
type Manager struct {
	Store *sqlite.Store
}

func NewManager(store *sqlite.Store) *Manager {
	return &Manager{Store: store}
}

// Balance returns the current earning-wallet balance for a user.
func (m *Manager) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	w, err := m.Store.GetWallet(ctx, userID, commission.AccountEarning)
	if err != nil {
		return decimal.Zero, err
	}
	return w.Amount, nil
}

// CreditIn applies a credit inside an already-open transaction. The caller
// typically bundles it with the insert that makes the credit idempotent
// (payout row, award row, installment mark), so a failure rolls back both.
func (m *Manager) CreditIn(ctx context.Context, tx *sqlite.Tx, c Credit) error {
	entry := commission.LedgerEntry{
		ID:        uuid.NewString(),
		UserID:    commission.SystemUser,
		ToUserID:  c.ToUserID,
		Amount:    commission.RoundMoney(c.Amount),
		Status:    "paid",
		Method:    "system",
		Type:      c.Type,
		CreatedAt: c.At,
	}
	if err := tx.AppendLedger(ctx, entry); err != nil {
		return err
	}
	if err := tx.CreditWallet(ctx, c.ToUserID, commission.AccountEarning, entry.Amount); err != nil {
		return err
	}
	log.Printf("[Wallet] credited %s %s (%s)", c.ToUserID, entry.Amount.StringFixed(2), c.Type)
	return nil
}

// Credit applies a credit in its own transaction.
func (m *Manager) Credit(ctx context.Context, c Credit) error {
	return m.Store.WithTx(ctx, func(tx *sqlite.Tx) error {
		return m.CreditIn(ctx, tx, c)
	})
}

// HasCredit reports whether an identical credit was already applied on the
// same day. Engines that cannot rely on a unique index (salary pay) probe
// this before crediting again.
func (m *Manager) HasCredit(ctx context.Context, toUserID, ledgerType string, day commission.Window, amount decimal.Decimal) (bool, error) {
	return m.Store.HasLedgerEntry(ctx, toUserID, ledgerType, day, commission.RoundMoney(amount))
}
