/*
Package salary implements the VIP repurchase-salary engine.

The engine has two independently scheduled phases over a shared
qualification table. Qualify scans one salary period (a calendar month
or a Monday-start week), finds sponsors whose referral downline moved
enough repurchase volume, and books a qualification with three
installments due at the next three period boundaries. Pay settles the
installments due in a period, crediting the net amount (gross less a
fixed retention) and consulting the payout ledger so a crashed or
re-run batch never credits an installment twice.

A sponsor qualifies at most once per period. A re-run that computes a
strictly higher slab upgrades the existing qualification in place and
rewrites its unpaid installments; anything else leaves it untouched.
*/
package salary

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/plan"
	"github.com/warp/commission-engine/store/sqlite"
	"github.com/warp/commission-engine/tree"
	"github.com/warp/commission-engine/volume"
	"github.com/warp/commission-engine/wallet"
)

// Engine runs both salary phases.
type Engine struct {
	Store   *sqlite.Store
	Wallets *wallet.Manager
	Plan    *plan.Plan
	Loc     *time.Location
}

func NewEngine(store *sqlite.Store, wallets *wallet.Manager, p *plan.Plan, loc *time.Location) *Engine {
	return &Engine{Store: store, Wallets: wallets, Plan: p, Loc: loc}
}

// QualifyOutcome reports what the qualify phase did for one sponsor.
type QualifyOutcome struct {
	SponsorID string
	VIPNo     int
	Salary    decimal.Decimal
	Matched   decimal.Decimal
	Action    string // "qualified", "upgraded", "unchanged", "dry"
}

// Qualify evaluates one salary period. Per-sponsor failures are logged
// and skipped. With dry set, outcomes are computed but nothing written.
func (e *Engine) Qualify(ctx context.Context, date time.Time, mode commission.PeriodMode, dry bool) ([]QualifyOutcome, error) {
	w, err := commission.PeriodWindow(date, mode, e.Loc)
	if err != nil {
		return nil, err
	}
	marker := commission.PeriodMarker(w, mode, e.Loc)

	users, err := e.Store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	forest := tree.NewForest(users)

	sales, err := e.Store.PaidSalesInWindow(ctx, w)
	if err != nil {
		return nil, err
	}
	repurchases := filterRepurchases(sales)
	log.Printf("[Salary] qualify period %s (%s): %d repurchase sales, dry=%t",
		marker, mode, len(repurchases), dry)

	var outcomes []QualifyOutcome
	for _, u := range users {
		if u.ReferralCode == "" {
			continue
		}
		// No qualification without the sponsor's own repurchase activity
		// this period.
		if !hasPersonalRepurchase(repurchases, u.ID) {
			continue
		}

		tagged := tree.TaggedSet(forest.Resolve(u.ID, tree.ModeReferral))
		matched := volume.Aggregate(repurchases, tagged, w,
			[]commission.PlanType{commission.PlanRepurchase}).Matched()

		slab := e.Plan.HighestVIPSlab(matched)
		if slab == nil {
			continue
		}

		out, err := e.book(ctx, u.ID, marker, mode, *slab, matched, dry)
		if err != nil {
			log.Printf("[Salary] %v", &commission.SubjectError{
				SponsorID: u.ID, Stage: "qualify", Err: err})
			continue
		}
		if out.Action != "unchanged" {
			log.Printf("[Salary] %s period %s: vip %d salary %s (%s)",
				u.ID, marker, out.VIPNo, out.Salary.StringFixed(2), out.Action)
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

func (e *Engine) book(ctx context.Context, sponsorID, marker string, mode commission.PeriodMode, slab plan.VIPSlab, matched decimal.Decimal, dry bool) (QualifyOutcome, error) {
	out := QualifyOutcome{
		SponsorID: sponsorID,
		VIPNo:     slab.VIPNo,
		Salary:    slab.Salary,
		Matched:   matched,
	}

	existing, err := e.Store.GetQualification(ctx, sponsorID, marker)
	if err != nil {
		return out, err
	}

	switch {
	case existing == nil:
		out.Action = "qualified"
	case slab.VIPNo > existing.VIPNo:
		out.Action = "upgraded"
	default:
		out.Action = "unchanged"
		out.VIPNo = existing.VIPNo
		out.Salary = existing.SalaryAmount
		return out, nil
	}
	if dry {
		out.Action = "dry"
		return out, nil
	}

	now := time.Now().UTC()
	err = e.Store.WithTx(ctx, func(tx *sqlite.Tx) error {
		if existing != nil {
			// Upgrade in place: paid installments keep their amounts,
			// unpaid ones are rewritten at the new salary.
			if err := tx.UpgradeQualification(ctx, existing.ID, slab.VIPNo, slab.Salary, now); err != nil {
				return err
			}
			return tx.RewriteUnpaidInstallments(ctx, existing.ID, slab.Salary)
		}

		q := commission.SalaryQualification{
			ID:           uuid.NewString(),
			SponsorID:    sponsorID,
			PeriodMarker: marker,
			Mode:         mode,
			VIPNo:        slab.VIPNo,
			SalaryAmount: slab.Salary,
			MonthsTotal:  e.Plan.SalaryMonthsTotal,
			MonthsPaid:   0,
			Status:       commission.QualificationActive,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.InsertQualification(ctx, q); err != nil {
			return err
		}
		period, err := periodFromMarker(marker, mode, e.Loc)
		if err != nil {
			return err
		}
		for _, due := range commission.NextBoundaries(period, mode, e.Plan.SalaryMonthsTotal) {
			inst := commission.SalaryInstallment{
				ID:              uuid.NewString(),
				QualificationID: q.ID,
				DueDate:         commission.LocalDate(due, e.Loc),
				Amount:          slab.Salary,
			}
			if err := tx.InsertInstallment(ctx, inst); err != nil {
				return err
			}
		}
		return nil
	})
	if commission.IsDuplicate(err) {
		// Concurrent qualify booked the same period first.
		out.Action = "unchanged"
		return out, nil
	}
	return out, err
}

// periodFromMarker reopens the period window a marker denotes.
func periodFromMarker(marker string, mode commission.PeriodMode, loc *time.Location) (commission.Window, error) {
	layout := "2006-01"
	if mode == commission.ModeWeekly {
		layout = "2006-01-02"
	}
	t, err := time.ParseInLocation(layout, marker, loc)
	if err != nil {
		return commission.Window{}, err
	}
	return commission.PeriodWindow(t, mode, loc)
}

func filterRepurchases(sales []commission.Sale) []commission.Sale {
	var out []commission.Sale
	for _, s := range sales {
		if s.PlanType == commission.PlanRepurchase {
			out = append(out, s)
		}
	}
	return out
}

func hasPersonalRepurchase(repurchases []commission.Sale, buyerID string) bool {
	for _, s := range repurchases {
		if s.BuyerID == buyerID {
			return true
		}
	}
	return false
}
