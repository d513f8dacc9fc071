package volume_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/volume"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var (
	windowStart = time.Date(2025, time.June, 1, 6, 0, 0, 0, time.UTC)
	windowEnd   = time.Date(2025, time.June, 1, 11, 59, 59, 0, time.UTC)
	window      = commission.Window{From: windowStart, To: windowEnd}
)

func paidSale(buyer string, amount string, at time.Time) commission.Sale {
	return commission.Sale{
		ID:        "sale-" + buyer + "-" + at.Format("150405"),
		BuyerID:   buyer,
		PlanType:  commission.PlanSilver,
		Amount:    decimal.RequireFromString(amount),
		Status:    commission.SalePaid,
		CreatedAt: at,
	}
}

// =============================================================================
// AGGREGATION
// =============================================================================

func TestAggregate_SumsPerLeg(t *testing.T) {
	// GIVEN: two left-leg buyers and one right-leg buyer with paid sales
	// WHEN: aggregating over the window
	// THEN: left and right sum independently, matched is the smaller side

	tagged := map[string]commission.Leg{
		"l1": commission.LegLeft,
		"l2": commission.LegLeft,
		"r1": commission.LegRight,
	}
	sales := []commission.Sale{
		paidSale("l1", "6000", windowStart.Add(time.Minute)),
		paidSale("l2", "3000", windowStart.Add(2*time.Minute)),
		paidSale("r1", "3000", windowStart.Add(3*time.Minute)),
	}

	totals := volume.Aggregate(sales, tagged, window, nil)

	assert.True(t, totals.Left.Equal(decimal.RequireFromString("9000")))
	assert.True(t, totals.Right.Equal(decimal.RequireFromString("3000")))
	assert.True(t, totals.Matched().Equal(decimal.RequireFromString("3000")))
}

func TestAggregate_IgnoresUntaggedBuyers(t *testing.T) {
	// GIVEN: a sale from a buyer outside the tagged set
	// WHEN: aggregating
	// THEN: it contributes nothing

	tagged := map[string]commission.Leg{"l1": commission.LegLeft}
	sales := []commission.Sale{
		paidSale("l1", "100", windowStart),
		paidSale("stranger", "9999", windowStart),
	}

	totals := volume.Aggregate(sales, tagged, window, nil)
	assert.True(t, totals.Left.Equal(decimal.RequireFromString("100")))
	assert.True(t, totals.Right.IsZero())
	assert.True(t, totals.Other.IsZero())
}

func TestAggregate_OnlyPaidStatusCounts(t *testing.T) {
	// GIVEN: pending and cancelled sales from a tagged buyer
	// WHEN: aggregating
	// THEN: only the paid sale counts

	tagged := map[string]commission.Leg{"l1": commission.LegLeft}

	pending := paidSale("l1", "500", windowStart)
	pending.Status = commission.SalePending
	cancelled := paidSale("l1", "700", windowStart)
	cancelled.Status = commission.SaleCancelled

	sales := []commission.Sale{pending, cancelled, paidSale("l1", "300", windowStart)}

	totals := volume.Aggregate(sales, tagged, window, nil)
	assert.True(t, totals.Left.Equal(decimal.RequireFromString("300")))
}

func TestAggregate_WindowIsInclusiveBothEnds(t *testing.T) {
	// GIVEN: sales exactly at the window edges and just outside
	// WHEN: aggregating
	// THEN: edge sales count, outside sales do not

	tagged := map[string]commission.Leg{"l1": commission.LegLeft}
	sales := []commission.Sale{
		paidSale("l1", "1", windowStart),
		paidSale("l1", "2", windowEnd),
		paidSale("l1", "4", windowStart.Add(-time.Second)),
		paidSale("l1", "8", windowEnd.Add(time.Second)),
	}

	totals := volume.Aggregate(sales, tagged, window, nil)
	assert.True(t, totals.Left.Equal(decimal.RequireFromString("3")))
}

func TestAggregate_TypeFilter(t *testing.T) {
	// GIVEN: silver and repurchase sales from the same buyer
	// WHEN: aggregating restricted to repurchase
	// THEN: silver volume is excluded

	tagged := map[string]commission.Leg{"l1": commission.LegLeft}

	silver := paidSale("l1", "1000", windowStart)
	repurchase := paidSale("l1", "250", windowStart)
	repurchase.PlanType = commission.PlanRepurchase

	totals := volume.Aggregate([]commission.Sale{silver, repurchase}, tagged, window,
		[]commission.PlanType{commission.PlanRepurchase})
	assert.True(t, totals.Left.Equal(decimal.RequireFromString("250")))
}

func TestAggregate_NABucketReportedNotMatched(t *testing.T) {
	// GIVEN: an NA-tagged buyer with a paid sale
	// WHEN: aggregating
	// THEN: the amount lands in Other and never inflates matched volume

	tagged := map[string]commission.Leg{
		"l1": commission.LegLeft,
		"x1": commission.LegNA,
	}
	sales := []commission.Sale{
		paidSale("l1", "100", windowStart),
		paidSale("x1", "5000", windowStart),
	}

	totals := volume.Aggregate(sales, tagged, window, nil)
	assert.True(t, totals.Other.Equal(decimal.RequireFromString("5000")))
	assert.True(t, totals.Matched().IsZero(), "NA volume must not match")
}

func TestRounded_HalfUpAtTwoPlaces(t *testing.T) {
	// GIVEN: accumulated fractional amounts
	// WHEN: rounding for output
	// THEN: half rounds up at 2 decimal places

	tagged := map[string]commission.Leg{"l1": commission.LegLeft}
	sales := []commission.Sale{
		paidSale("l1", "0.005", windowStart),
		paidSale("l1", "0.01", windowStart),
	}

	totals := volume.Aggregate(sales, tagged, window, nil).Rounded()
	assert.Equal(t, "0.02", totals.Left.StringFixed(2))
}

func TestMatrix_GroupsByPlanType(t *testing.T) {
	// GIVEN: sales across two plan types
	// WHEN: building the matrix
	// THEN: each type has its own leg totals

	tagged := map[string]commission.Leg{
		"l1": commission.LegLeft,
		"r1": commission.LegRight,
	}

	silver := paidSale("l1", "3000", windowStart)
	gold := paidSale("r1", "6000", windowStart)
	gold.PlanType = commission.PlanGold

	matrix := volume.Matrix([]commission.Sale{silver, gold}, tagged, window, nil)

	assert.True(t, matrix[commission.PlanSilver].Left.Equal(decimal.RequireFromString("3000")))
	assert.True(t, matrix[commission.PlanGold].Right.Equal(decimal.RequireFromString("6000")))
}
