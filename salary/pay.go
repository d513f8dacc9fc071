package salary

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/store/sqlite"
)

// PayOutcome reports what the pay phase did for one installment.
type PayOutcome struct {
	InstallmentID string
	SponsorID     string
	Gross         decimal.Decimal
	Net           decimal.Decimal
	Action        string // "paid", "already_credited", "error"
}

// Pay settles every unpaid installment due within the period containing
// date. Each installment is its own transaction: a failure rolls that one
// back, is logged, and the loop moves on. Re-running after a crash is safe
// because the payout ledger records the gross credit before anything else
// can be observed, and an existing ledger row downgrades the installment
// to a bookkeeping-only update.
func (e *Engine) Pay(ctx context.Context, date time.Time, mode commission.PeriodMode) ([]PayOutcome, error) {
	w, err := commission.PeriodWindow(date, mode, e.Loc)
	if err != nil {
		return nil, err
	}
	marker := commission.PeriodMarker(w, mode, e.Loc)

	due, err := e.Store.DueInstallments(ctx, w, mode, e.Loc)
	if err != nil {
		return nil, err
	}
	log.Printf("[Salary] pay period %s (%s): %d installments due", marker, mode, len(due))

	var outcomes []PayOutcome
	for _, inst := range due {
		out, err := e.payOne(ctx, inst)
		if err != nil {
			log.Printf("[Salary] %v", &commission.SubjectError{
				SponsorID: inst.SponsorID, Stage: "pay installment " + inst.ID, Err: err})
			out.Action = "error"
			outcomes = append(outcomes, out)
			continue
		}
		log.Printf("[Salary] %s installment %s: gross=%s net=%s (%s)",
			inst.SponsorID, inst.ID, out.Gross.StringFixed(2), out.Net.StringFixed(2), out.Action)
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

func (e *Engine) payOne(ctx context.Context, inst sqlite.DueInstallment) (PayOutcome, error) {
	gross := commission.RoundMoney(inst.Amount)
	net := commission.RoundMoney(inst.Amount.Mul(e.Plan.SalaryRetention))
	out := PayOutcome{
		InstallmentID: inst.ID,
		SponsorID:     inst.SponsorID,
		Gross:         gross,
		Net:           net,
	}

	now := time.Now().UTC()
	day := commission.DayWindow(now, time.UTC)

	// A matching gross ledger row from today means the credit already
	// landed but the mark-paid step did not commit. Finish the
	// bookkeeping without crediting again.
	credited, err := e.Wallets.HasCredit(ctx, inst.SponsorID, commission.LedgerTypeVIPSalary, day, gross)
	if err != nil {
		return out, err
	}

	err = e.Store.WithTx(ctx, func(tx *sqlite.Tx) error {
		if !credited {
			// The ledger carries the gross amount for the income
			// history; the wallet receives the net after retention.
			entry := commission.LedgerEntry{
				ID:        uuid.NewString(),
				UserID:    commission.SystemUser,
				ToUserID:  inst.SponsorID,
				Amount:    gross,
				Status:    "paid",
				Method:    "system",
				Type:      commission.LedgerTypeVIPSalary,
				CreatedAt: now,
			}
			if err := tx.AppendLedger(ctx, entry); err != nil {
				return err
			}
			if err := tx.CreditWallet(ctx, inst.SponsorID, commission.AccountEarning, net); err != nil {
				return err
			}
		}
		if err := tx.MarkInstallmentPaid(ctx, inst.ID, now); err != nil {
			return err
		}
		return tx.AdvanceQualification(ctx, inst.QualificationID, now)
	})
	if err != nil {
		return out, err
	}

	if credited {
		out.Action = "already_credited"
	} else {
		out.Action = "paid"
	}
	return out, nil
}
