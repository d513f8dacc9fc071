/*
Package binary implements the pair-matching payout run.

One run covers a single closing slot (a fixed wall-clock band of one
local day). For every plan tier and every sponsor with eligible paid
sales in the window, the engine resolves the sponsor's placement
downline, sums left and right leg volume, matches min(left, right) into
whole pairs, and pays at most one pair per closing, clamped by the
tier's rolling daily cap. Payouts are keyed by (sponsor, plan, closing
date, closing number), so re-running a closing refreshes the volume
snapshot but never credits twice.
*/
package binary

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

// Engine runs binary pair matching for one closing slot.
type Engine struct {
	Store   *sqlite.Store
	Wallets *wallet.Manager
	Tiers   []plan.BinaryTier
	Loc     *time.Location
}

func NewEngine(store *sqlite.Store, wallets *wallet.Manager, p *plan.Plan, loc *time.Location) *Engine {
	return &Engine{Store: store, Wallets: wallets, Tiers: p.Tiers, Loc: loc}
}

// Result summarizes one (sponsor, tier) evaluation.
type Result struct {
	SponsorID string
	Plan      commission.PlanType
	Left      decimal.Decimal
	Right     decimal.Decimal
	Matched   decimal.Decimal
	Payable   decimal.Decimal
	Qualified bool
	Credited  bool
}

// Run evaluates every sponsor for every tier within the closing window.
// Per-sponsor failures are logged and skipped; the batch always finishes.
// The returned error covers setup failures only (bad closing number,
// store unavailable).
func (e *Engine) Run(ctx context.Context, date time.Time, closingNo int) ([]Result, error) {
	w, err := commission.ClosingWindow(date, closingNo, e.Loc)
	if err != nil {
		return nil, err
	}
	closingDate := commission.LocalDate(date, e.Loc)

	users, err := e.Store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	forest := tree.NewForest(users)

	sales, err := e.Store.PaidSalesInWindow(ctx, w)
	if err != nil {
		return nil, err
	}
	log.Printf("[Binary] closing %d of %s: %d paid sales, %d users",
		closingNo, closingDate, len(sales), forest.Size())

	var results []Result
	for _, tier := range e.Tiers {
		for _, sponsorID := range candidateSponsors(sales, tier.EligibleTypes) {
			res, err := e.evaluate(ctx, forest, sales, w, tier, sponsorID, closingDate, closingNo)
			if err != nil {
				log.Printf("[Binary] %v", &commission.SubjectError{
					SponsorID: sponsorID, Stage: "match " + string(tier.Plan), Err: err})
				continue
			}
			results = append(results, res)
		}
	}
	return results, nil
}

// candidateSponsors returns, in first-seen order, the distinct sponsors
// holding at least one eligible paid sale in the window.
func candidateSponsors(sales []commission.Sale, eligible []commission.PlanType) []string {
	types := make(map[commission.PlanType]bool, len(eligible))
	for _, t := range eligible {
		types[t] = true
	}
	seen := make(map[string]bool)
	var out []string
	for _, s := range sales {
		if s.SponsorID == "" || !types[s.PlanType] || seen[s.SponsorID] {
			continue
		}
		seen[s.SponsorID] = true
		out = append(out, s.SponsorID)
	}
	return out
}

func (e *Engine) evaluate(ctx context.Context, forest *tree.Forest, sales []commission.Sale, w commission.Window, tier plan.BinaryTier, sponsorID, closingDate string, closingNo int) (Result, error) {
	res := Result{SponsorID: sponsorID, Plan: tier.Plan}

	tagged := tree.TaggedSet(forest.Resolve(sponsorID, tree.ModePlacement))
	totals := volume.Aggregate(sales, tagged, w, tier.EligibleTypes)
	res.Left = totals.Left
	res.Right = totals.Right
	res.Matched = totals.Matched()
	res.Payable = decimal.Zero

	pairs := res.Matched.Div(tier.PairValue).Floor()

	// Self-purchase gate: the sponsor must hold a paid package of at
	// least this tier's rank as of the window end.
	rank, err := e.Store.SelfPurchaseRank(ctx, sponsorID, w.To)
	if err != nil {
		return res, err
	}
	res.Qualified = rank >= tier.Rank

	if pairs.IsZero() || !res.Qualified {
		log.Printf("[Binary] %s/%s: matched=%s pairs=%s qualified=%t, no payout",
			sponsorID, tier.Plan, res.Matched.StringFixed(2), pairs.String(), res.Qualified)
		return res, nil
	}

	// At most one pair pays per closing regardless of matched volume.
	payout := tier.PairValue

	paidToday, err := e.Store.SumBinaryPayableForDay(ctx, sponsorID, tier.Plan, closingDate)
	if err != nil {
		return res, err
	}
	remaining := tier.DailyCap.Sub(paidToday)
	payable := commission.MinDecimal(payout, remaining)
	if payable.IsNegative() {
		payable = decimal.Zero
	}
	res.Payable = commission.RoundMoney(payable)

	if res.Payable.IsZero() {
		log.Printf("[Binary] %s/%s: daily cap exhausted (paid %s of %s), no payout",
			sponsorID, tier.Plan, paidToday.StringFixed(2), tier.DailyCap.StringFixed(2))
		return res, nil
	}

	now := time.Now().UTC()
	err = e.Store.WithTx(ctx, func(tx *sqlite.Tx) error {
		existing, err := tx.GetBinaryPayout(ctx, sponsorID, tier.Plan, closingDate, closingNo)
		if err != nil {
			return err
		}
		if existing != nil {
			// Re-run of an already-paid closing: refresh the volume
			// snapshot, keep payable as written, credit nothing.
			res.Payable = existing.Payable
			return tx.UpdateBinaryPayoutVolumes(ctx, existing.ID, res.Left, res.Right, res.Matched, now)
		}
		p := commission.BinaryPayout{
			ID:          uuid.NewString(),
			SponsorID:   sponsorID,
			Plan:        tier.Plan,
			ClosingDate: closingDate,
			ClosingNo:   closingNo,
			LeftVolume:  res.Left,
			RightVolume: res.Right,
			Matched:     res.Matched,
			Payable:     res.Payable,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.InsertBinaryPayout(ctx, p); err != nil {
			return err
		}
		if err := e.Wallets.CreditIn(ctx, tx, wallet.Credit{
			ToUserID: sponsorID,
			Amount:   res.Payable,
			Type:     commission.LedgerTypeBinary,
			At:       now,
		}); err != nil {
			return err
		}
		res.Credited = true
		return nil
	})
	if commission.IsDuplicate(err) {
		// Concurrent run won the insert race; nothing owed here.
		return res, nil
	}
	if err != nil {
		return res, err
	}
	log.Printf("[Binary] %s/%s closing %d: matched=%s payable=%s credited=%t",
		sponsorID, tier.Plan, closingNo, res.Matched.StringFixed(2), res.Payable.StringFixed(2), res.Credited)
	return res, nil
}
