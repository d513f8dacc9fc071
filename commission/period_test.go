package commission_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/commission-engine/commission"
)

// =============================================================================
// CLOSING WINDOWS
// =============================================================================

func TestClosingWindow_FixedBands(t *testing.T) {
	// GIVEN: a date in a non-UTC zone
	// WHEN: building the two closing windows
	// THEN: closing 1 is 06:00:00-11:59:59 and closing 2 is 12:00:00-17:59:59 local

	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	date := time.Date(2025, time.June, 1, 0, 0, 0, 0, loc)

	w1, err := commission.ClosingWindow(date, 1, loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.June, 1, 6, 0, 0, 0, loc), w1.From)
	assert.Equal(t, time.Date(2025, time.June, 1, 11, 59, 59, 0, loc), w1.To)

	w2, err := commission.ClosingWindow(date, 2, loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.June, 1, 12, 0, 0, 0, loc), w2.From)
	assert.Equal(t, time.Date(2025, time.June, 1, 17, 59, 59, 0, loc), w2.To)
}

func TestClosingWindow_InvalidClosing(t *testing.T) {
	for _, n := range []int{0, 3, -1} {
		_, err := commission.ClosingWindow(time.Now(), n, time.UTC)
		assert.ErrorIs(t, err, commission.ErrInvalidClosing)
	}
}

func TestClosingWindows_DoNotOverlap(t *testing.T) {
	// GIVEN: both closings of one day
	// WHEN: checking the boundary second
	// THEN: 11:59:59 belongs to closing 1 only, 12:00:00 to closing 2 only

	date := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	w1, _ := commission.ClosingWindow(date, 1, time.UTC)
	w2, _ := commission.ClosingWindow(date, 2, time.UTC)

	boundary := time.Date(2025, time.June, 1, 11, 59, 59, 0, time.UTC)
	assert.True(t, w1.Contains(boundary))
	assert.False(t, w2.Contains(boundary))

	noon := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	assert.False(t, w1.Contains(noon))
	assert.True(t, w2.Contains(noon))
}

// =============================================================================
// SALARY PERIODS
// =============================================================================

func TestMonthWindow_CoversWholeMonth(t *testing.T) {
	w := commission.MonthWindow(time.Date(2025, time.February, 14, 10, 0, 0, 0, time.UTC), time.UTC)
	assert.Equal(t, time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC), w.From)
	assert.Equal(t, time.Date(2025, time.February, 28, 23, 59, 59, 0, time.UTC), w.To)
}

func TestWeekWindow_MondayStart(t *testing.T) {
	// GIVEN: a Sunday
	// WHEN: building its week window
	// THEN: the window starts the preceding Monday

	sunday := time.Date(2025, time.June, 8, 15, 0, 0, 0, time.UTC)
	w := commission.WeekWindow(sunday, time.UTC)
	assert.Equal(t, time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC), w.From)
	assert.Equal(t, time.Date(2025, time.June, 8, 23, 59, 59, 0, time.UTC), w.To)

	monday := time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, w.From, commission.WeekWindow(monday, time.UTC).From)
}

func TestPeriodWindow_InvalidMode(t *testing.T) {
	_, err := commission.PeriodWindow(time.Now(), commission.PeriodMode("daily"), time.UTC)
	assert.ErrorIs(t, err, commission.ErrInvalidMode)
}

func TestPeriodMarker_Formats(t *testing.T) {
	monthly := commission.MonthWindow(time.Date(2025, time.June, 14, 0, 0, 0, 0, time.UTC), time.UTC)
	assert.Equal(t, "2025-06", commission.PeriodMarker(monthly, commission.ModeMonthly, time.UTC))

	weekly := commission.WeekWindow(time.Date(2025, time.June, 8, 0, 0, 0, 0, time.UTC), time.UTC)
	assert.Equal(t, "2025-06-02", commission.PeriodMarker(weekly, commission.ModeWeekly, time.UTC))
}

func TestNextBoundaries_MonthlyAndWeekly(t *testing.T) {
	// GIVEN: the June 2025 month window and a week window
	// WHEN: asking for the next three boundaries
	// THEN: monthly steps by calendar month, weekly by seven days

	monthly := commission.MonthWindow(time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC), time.UTC)
	mb := commission.NextBoundaries(monthly, commission.ModeMonthly, 3)
	require.Len(t, mb, 3)
	assert.Equal(t, time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC), mb[0])
	assert.Equal(t, time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC), mb[1])
	assert.Equal(t, time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC), mb[2])

	weekly := commission.WeekWindow(time.Date(2025, time.June, 4, 0, 0, 0, 0, time.UTC), time.UTC)
	wb := commission.NextBoundaries(weekly, commission.ModeWeekly, 3)
	require.Len(t, wb, 3)
	assert.Equal(t, time.Date(2025, time.June, 9, 0, 0, 0, 0, time.UTC), wb[0])
	assert.Equal(t, time.Date(2025, time.June, 16, 0, 0, 0, 0, time.UTC), wb[1])
	assert.Equal(t, time.Date(2025, time.June, 23, 0, 0, 0, 0, time.UTC), wb[2])
}

// =============================================================================
// MONEY HELPERS
// =============================================================================

func TestRoundMoney_HalfUp(t *testing.T) {
	assert.Equal(t, "2.35", commission.RoundMoney(commission.MustDecimal("2.345")).StringFixed(2))
	assert.Equal(t, "2.34", commission.RoundMoney(commission.MustDecimal("2.344")).StringFixed(2))
}

func TestPackageRank_Ordering(t *testing.T) {
	assert.Equal(t, 1, commission.PackageRank(commission.PlanSilver))
	assert.Equal(t, 2, commission.PackageRank(commission.PlanGold))
	assert.Equal(t, 3, commission.PackageRank(commission.PlanDiamond))
	assert.Equal(t, 0, commission.PackageRank(commission.PlanRepurchase))
}
