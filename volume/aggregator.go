/*
Package volume aggregates sales amounts per leg over a time window.

PURPOSE:
  Sums paid sale amounts for a tagged descendant set, producing the
  (left, right) pair the matching engines feed on, plus a per-plan-type
  matrix when the award engines need a rank-wise breakdown.

NUMERIC SEMANTICS:
  Amounts are decimal currency values. Accumulation stays in
  decimal.Decimal at full precision; rounding to 2 decimal places
  (half-up) happens only at final output via Rounded().

ATTRIBUTION:
  Only status=paid sales within the inclusive window count. Volume from
  untagged (NA) descendants goes to the Other bucket - it is reported, never
  matched, and never silently dropped.
*/
package volume

import (
	"github.com/shopspring/decimal"

	"github.com/warp/commission-engine/commission"
)

// Totals holds aggregated leg volume for one subject.
type Totals struct {
	Left  decimal.Decimal
	Right decimal.Decimal
	Other decimal.Decimal
}

// Zero returns an all-zero Totals.
func Zero() Totals {
	return Totals{Left: decimal.Zero, Right: decimal.Zero, Other: decimal.Zero}
}

// Matched returns min(Left, Right), the binary-compensation-eligible volume.
func (t Totals) Matched() decimal.Decimal {
	return commission.MinDecimal(t.Left, t.Right)
}

// Rounded returns the totals rounded to 2 decimal places, half up.
func (t Totals) Rounded() Totals {
	return Totals{
		Left:  commission.RoundMoney(t.Left),
		Right: commission.RoundMoney(t.Right),
		Other: commission.RoundMoney(t.Other),
	}
}

func (t Totals) add(leg commission.Leg, amount decimal.Decimal) Totals {
	switch leg {
	case commission.LegLeft:
		t.Left = t.Left.Add(amount)
	case commission.LegRight:
		t.Right = t.Right.Add(amount)
	default:
		t.Other = t.Other.Add(amount)
	}
	return t
}

// =============================================================================
// AGGREGATION
// =============================================================================

// Aggregate sums paid sale amounts whose buyer is in the tagged set, whose
// plan type is eligible, and whose creation time falls within the inclusive
// window. Pass a nil or empty types slice to accept every plan type.
func Aggregate(sales []commission.Sale, tagged map[string]commission.Leg, w commission.Window, types []commission.PlanType) Totals {
	eligible := typeSet(types)
	totals := Zero()
	for _, s := range sales {
		leg, ok := tagged[s.BuyerID]
		if !ok {
			continue
		}
		if s.Status != commission.SalePaid {
			continue
		}
		if eligible != nil && !eligible[s.PlanType] {
			continue
		}
		if !w.Contains(s.CreatedAt) {
			continue
		}
		totals = totals.add(leg, s.Amount)
	}
	return totals
}

// Matrix is like Aggregate but groups by plan type before summing,
// producing the rank-wise breakdown the award engines use.
func Matrix(sales []commission.Sale, tagged map[string]commission.Leg, w commission.Window, types []commission.PlanType) map[commission.PlanType]Totals {
	eligible := typeSet(types)
	matrix := make(map[commission.PlanType]Totals)
	for _, s := range sales {
		leg, ok := tagged[s.BuyerID]
		if !ok {
			continue
		}
		if s.Status != commission.SalePaid {
			continue
		}
		if eligible != nil && !eligible[s.PlanType] {
			continue
		}
		if !w.Contains(s.CreatedAt) {
			continue
		}
		t, ok := matrix[s.PlanType]
		if !ok {
			t = Zero()
		}
		matrix[s.PlanType] = t.add(leg, s.Amount)
	}
	return matrix
}

func typeSet(types []commission.PlanType) map[commission.PlanType]bool {
	if len(types) == 0 {
		return nil
	}
	set := make(map[commission.PlanType]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return set
}
