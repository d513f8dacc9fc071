/*
Package starrank implements the cumulative star-rank award run.

Ranks are milestones on lifetime matched volume over the referral
downline: once the cumulative min(left, right) crosses a slab's
threshold, the slab's reward is credited once, permanently. Awards are
keyed by (sponsor, rank number), so a later run can only add higher
ranks, never repeat or revoke one. A single run may award several
ranks when volume jumped past multiple thresholds since the last run.
*/
package starrank

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

// Engine runs star-rank evaluation over lifetime volume.
type Engine struct {
	Store     *sqlite.Store
	Wallets   *wallet.Manager
	Slabs     []plan.StarSlab
	PlanTypes []commission.PlanType
}

func NewEngine(store *sqlite.Store, wallets *wallet.Manager, p *plan.Plan) *Engine {
	return &Engine{Store: store, Wallets: wallets, Slabs: p.StarSlabs, PlanTypes: p.StarPlanTypes}
}

// Award is one rank crossing found by a run.
type Award struct {
	SponsorID string
	RankNo    int
	Threshold decimal.Decimal
	Reward    decimal.Decimal
	Matched   decimal.Decimal
	Granted   bool // false on a dry run
}

// Run evaluates every sponsor's cumulative referral-tree volume as of
// asOf and grants any slabs newly crossed. With dry set, crossings are
// reported but nothing is written.
func (e *Engine) Run(ctx context.Context, asOf time.Time, dry bool) ([]Award, error) {
	sales, err := e.Store.PaidSalesUpTo(ctx, asOf)
	if err != nil {
		return nil, err
	}
	users, err := e.Store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	forest := tree.NewForest(users)
	lifetime := commission.Window{To: asOf} // zero From: all history

	log.Printf("[StarRank] as of %s: %d paid sales, %d users, dry=%t",
		asOf.Format(time.RFC3339), len(sales), forest.Size(), dry)

	var awards []Award
	for _, sponsorID := range distinctSponsors(sales) {
		tagged := tree.TaggedSet(forest.Resolve(sponsorID, tree.ModeReferral))
		matched := volume.Aggregate(sales, tagged, lifetime, e.PlanTypes).Matched()

		for _, slab := range e.Slabs {
			if matched.LessThan(slab.Threshold) {
				break // slabs ascend; nothing further is reachable
			}
			has, err := e.Store.HasStarAward(ctx, sponsorID, slab.RankNo)
			if err != nil {
				log.Printf("[StarRank] %v", &commission.SubjectError{
					SponsorID: sponsorID, Stage: "award check", Err: err})
				continue
			}
			if has {
				continue
			}
			a := Award{
				SponsorID: sponsorID,
				RankNo:    slab.RankNo,
				Threshold: slab.Threshold,
				Reward:    slab.Reward,
				Matched:   matched,
			}
			if dry {
				awards = append(awards, a)
				log.Printf("[StarRank] %s would reach rank %d (matched %s >= %s)",
					sponsorID, slab.RankNo, matched.StringFixed(2), slab.Threshold.StringFixed(2))
				continue
			}
			if err := e.grant(ctx, &a); err != nil {
				log.Printf("[StarRank] %v", &commission.SubjectError{
					SponsorID: sponsorID, Stage: "grant", Err: err})
				continue
			}
			awards = append(awards, a)
		}
	}
	return awards, nil
}

func (e *Engine) grant(ctx context.Context, a *Award) error {
	now := time.Now().UTC()
	err := e.Store.WithTx(ctx, func(tx *sqlite.Tx) error {
		if err := tx.InsertStarAward(ctx, commission.StarAward{
			ID:        uuid.NewString(),
			SponsorID: a.SponsorID,
			RankNo:    a.RankNo,
			Threshold: a.Threshold,
			Reward:    a.Reward,
			AwardedAt: now,
		}); err != nil {
			return err
		}
		return e.Wallets.CreditIn(ctx, tx, wallet.Credit{
			ToUserID: a.SponsorID,
			Amount:   a.Reward,
			Type:     commission.LedgerTypeStarRank,
			At:       now,
		})
	})
	if commission.IsDuplicate(err) {
		// Already granted by a concurrent run; the rank stands.
		return nil
	}
	if err != nil {
		return err
	}
	a.Granted = true
	log.Printf("[StarRank] %s awarded rank %d, reward %s",
		a.SponsorID, a.RankNo, a.Reward.StringFixed(2))
	return nil
}

func distinctSponsors(sales []commission.Sale) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range sales {
		if s.SponsorID == "" || seen[s.SponsorID] {
			continue
		}
		seen[s.SponsorID] = true
		out = append(out, s.SponsorID)
	}
	return out
}
