package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var testTime = time.Date(2025, time.June, 1, 8, 0, 0, 0, time.UTC)

// =============================================================================
// USERS AND CHILD POINTERS
// =============================================================================

func TestSetChild_WriteOnce(t *testing.T) {
	// GIVEN: a parent with a free left slot
	// WHEN: setting the slot twice
	// THEN: the first write sticks, the second fails with ErrChildSlotTaken

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveUser(ctx, commission.UserNode{ID: "p", CreatedAt: testTime}))

	require.NoError(t, store.SetChild(ctx, "p", commission.LegLeft, "c1"))
	err := store.SetChild(ctx, "p", commission.LegLeft, "c2")
	assert.ErrorIs(t, err, commission.ErrChildSlotTaken)

	u, err := store.GetUser(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, "c1", u.LeftChildID)
}

func TestSetChild_UnknownParent(t *testing.T) {
	store := newTestStore(t)
	err := store.SetChild(context.Background(), "nope", commission.LegRight, "c")
	assert.ErrorIs(t, err, commission.ErrUserNotFound)
}

func TestSaveUser_UpsertKeepsChildPointers(t *testing.T) {
	// GIVEN: a user with a placed child
	// WHEN: re-saving the user row (profile update)
	// THEN: the child pointer survives

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveUser(ctx, commission.UserNode{ID: "p", ReferralCode: "P0", CreatedAt: testTime}))
	require.NoError(t, store.SetChild(ctx, "p", commission.LegRight, "c1"))

	require.NoError(t, store.SaveUser(ctx, commission.UserNode{ID: "p", ReferralCode: "P1", CreatedAt: testTime}))

	u, err := store.GetUser(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, "P1", u.ReferralCode)
	assert.Equal(t, "c1", u.RightChildID)
}

// =============================================================================
// SALES
// =============================================================================

func TestSelfPurchaseRank_HighestPaidPackage(t *testing.T) {
	// GIVEN: a buyer with paid silver and gold plus a pending diamond
	// WHEN: asking for the self-purchase rank
	// THEN: gold (2) wins; the pending diamond does not count

	store := newTestStore(t)
	ctx := context.Background()

	sales := []commission.Sale{
		{ID: "s1", BuyerID: "u", SponsorID: "x", PlanType: commission.PlanSilver, Amount: money("3000"), Status: commission.SalePaid, CreatedAt: testTime},
		{ID: "s2", BuyerID: "u", SponsorID: "x", PlanType: commission.PlanGold, Amount: money("6000"), Status: commission.SalePaid, CreatedAt: testTime},
		{ID: "s3", BuyerID: "u", SponsorID: "x", PlanType: commission.PlanDiamond, Amount: money("9000"), Status: commission.SalePending, CreatedAt: testTime},
	}
	for _, s := range sales {
		require.NoError(t, store.InsertSale(ctx, s))
	}

	rank, err := store.SelfPurchaseRank(ctx, "u", testTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, rank)
}

func TestSelfPurchaseRank_AsOfCutoff(t *testing.T) {
	// GIVEN: a paid purchase after the cutoff
	// WHEN: asking for the rank as of earlier
	// THEN: the later purchase does not count

	store := newTestStore(t)
	ctx := context.Background()

	sale := commission.Sale{ID: "s1", BuyerID: "u", SponsorID: "x",
		PlanType: commission.PlanSilver, Amount: money("3000"),
		Status: commission.SalePaid, CreatedAt: testTime.Add(time.Hour)}
	require.NoError(t, store.InsertSale(ctx, sale))

	rank, err := store.SelfPurchaseRank(ctx, "u", testTime)
	require.NoError(t, err)
	assert.Equal(t, 0, rank)
}

// =============================================================================
// BINARY PAYOUT IDEMPOTENCY
// =============================================================================

func TestInsertBinaryPayout_DuplicateClosingRejected(t *testing.T) {
	// GIVEN: an existing payout row for (sponsor, plan, date, closing 1)
	// WHEN: inserting another row for the same slot
	// THEN: ErrDuplicatePayout

	store := newTestStore(t)
	ctx := context.Background()

	payout := commission.BinaryPayout{
		ID: "p1", SponsorID: "s", Plan: commission.PlanSilver,
		ClosingDate: "2025-06-01", ClosingNo: 1,
		LeftVolume: money("9000"), RightVolume: money("3000"),
		Matched: money("3000"), Payable: money("3000"),
		CreatedAt: testTime, UpdatedAt: testTime,
	}
	require.NoError(t, store.WithTx(ctx, func(tx *sqlite.Tx) error {
		return tx.InsertBinaryPayout(ctx, payout)
	}))

	payout.ID = "p2"
	err := store.WithTx(ctx, func(tx *sqlite.Tx) error {
		return tx.InsertBinaryPayout(ctx, payout)
	})
	assert.ErrorIs(t, err, commission.ErrDuplicatePayout)
	assert.True(t, commission.IsDuplicate(err))
}

func TestSumBinaryPayableForDay_AcrossClosings(t *testing.T) {
	// GIVEN: payouts in both closings of one day plus one on another day
	// WHEN: summing for the day
	// THEN: only the two same-day rows count

	store := newTestStore(t)
	ctx := context.Background()

	rows := []commission.BinaryPayout{
		{ID: "p1", SponsorID: "s", Plan: commission.PlanSilver, ClosingDate: "2025-06-01", ClosingNo: 1,
			LeftVolume: money("0"), RightVolume: money("0"), Matched: money("0"), Payable: money("3000"), CreatedAt: testTime, UpdatedAt: testTime},
		{ID: "p2", SponsorID: "s", Plan: commission.PlanSilver, ClosingDate: "2025-06-01", ClosingNo: 2,
			LeftVolume: money("0"), RightVolume: money("0"), Matched: money("0"), Payable: money("1500.50"), CreatedAt: testTime, UpdatedAt: testTime},
		{ID: "p3", SponsorID: "s", Plan: commission.PlanSilver, ClosingDate: "2025-06-02", ClosingNo: 1,
			LeftVolume: money("0"), RightVolume: money("0"), Matched: money("0"), Payable: money("3000"), CreatedAt: testTime, UpdatedAt: testTime},
	}
	for _, p := range rows {
		p := p
		require.NoError(t, store.WithTx(ctx, func(tx *sqlite.Tx) error {
			return tx.InsertBinaryPayout(ctx, p)
		}))
	}

	total, err := store.SumBinaryPayableForDay(ctx, "s", commission.PlanSilver, "2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, "4500.50", total.StringFixed(2))
}

// =============================================================================
// STAR AWARD IDEMPOTENCY
// =============================================================================

func TestInsertStarAward_DuplicateRankRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	award := commission.StarAward{ID: "a1", SponsorID: "s", RankNo: 1,
		Threshold: money("50000"), Reward: money("1000"), AwardedAt: testTime}
	require.NoError(t, store.WithTx(ctx, func(tx *sqlite.Tx) error {
		return tx.InsertStarAward(ctx, award)
	}))

	award.ID = "a2"
	err := store.WithTx(ctx, func(tx *sqlite.Tx) error {
		return tx.InsertStarAward(ctx, award)
	})
	assert.ErrorIs(t, err, commission.ErrDuplicateAward)

	has, err := store.HasStarAward(ctx, "s", 1)
	require.NoError(t, err)
	assert.True(t, has)
}

// =============================================================================
// WALLETS AND LEDGER
// =============================================================================

func TestCreditWallet_CreatesAndAccumulates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.WithTx(ctx, func(tx *sqlite.Tx) error {
		return tx.CreditWallet(ctx, "u", commission.AccountEarning, money("3000"))
	}))
	require.NoError(t, store.WithTx(ctx, func(tx *sqlite.Tx) error {
		return tx.CreditWallet(ctx, "u", commission.AccountEarning, money("800.25"))
	}))

	w, err := store.GetWallet(ctx, "u", commission.AccountEarning)
	require.NoError(t, err)
	assert.Equal(t, "3800.25", w.Amount.StringFixed(2))
}

func TestDebitWallet_InsufficientBalanceRollsBack(t *testing.T) {
	// GIVEN: a wallet holding 100
	// WHEN: debiting 150 in a transaction
	// THEN: the transaction fails and the balance is untouched

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.WithTx(ctx, func(tx *sqlite.Tx) error {
		return tx.CreditWallet(ctx, "u", commission.AccountEarning, money("100"))
	}))

	err := store.WithTx(ctx, func(tx *sqlite.Tx) error {
		return tx.DebitWallet(ctx, "u", commission.AccountEarning, money("150"))
	})
	assert.ErrorIs(t, err, commission.ErrInsufficientBalance)

	w, err := store.GetWallet(ctx, "u", commission.AccountEarning)
	require.NoError(t, err)
	assert.Equal(t, "100.00", w.Amount.StringFixed(2))
}

func TestGetWallet_AbsentIsZero(t *testing.T) {
	store := newTestStore(t)
	w, err := store.GetWallet(context.Background(), "ghost", commission.AccountEarning)
	require.NoError(t, err)
	assert.True(t, w.Amount.IsZero())
}

func TestHasLedgerEntry_MatchesTypeAmountAndDay(t *testing.T) {
	// GIVEN: a vip_salary ledger row created at testTime
	// WHEN: probing with the same and with differing keys
	// THEN: only the exact (user, type, amount, day) combination matches

	store := newTestStore(t)
	ctx := context.Background()

	entry := commission.LedgerEntry{
		ID: "e1", UserID: commission.SystemUser, ToUserID: "u",
		Amount: money("1000"), Status: "paid", Method: "system",
		Type: commission.LedgerTypeVIPSalary, CreatedAt: testTime,
	}
	require.NoError(t, store.WithTx(ctx, func(tx *sqlite.Tx) error {
		return tx.AppendLedger(ctx, entry)
	}))

	day := commission.DayWindow(testTime, time.UTC)

	has, err := store.HasLedgerEntry(ctx, "u", commission.LedgerTypeVIPSalary, day, money("1000"))
	require.NoError(t, err)
	assert.True(t, has)

	has, err = store.HasLedgerEntry(ctx, "u", commission.LedgerTypeVIPSalary, day, money("999"))
	require.NoError(t, err)
	assert.False(t, has)

	has, err = store.HasLedgerEntry(ctx, "u", commission.LedgerTypeBinary, day, money("1000"))
	require.NoError(t, err)
	assert.False(t, has)

	nextDay := commission.DayWindow(testTime.AddDate(0, 0, 1), time.UTC)
	has, err = store.HasLedgerEntry(ctx, "u", commission.LedgerTypeVIPSalary, nextDay, money("1000"))
	require.NoError(t, err)
	assert.False(t, has)
}

// =============================================================================
// SALARY QUALIFICATIONS AND INSTALLMENTS
// =============================================================================

func testQualification(id, sponsor, marker string) commission.SalaryQualification {
	return commission.SalaryQualification{
		ID: id, SponsorID: sponsor, PeriodMarker: marker,
		Mode: commission.ModeMonthly, VIPNo: 1, SalaryAmount: money("1000"),
		MonthsTotal: 3, MonthsPaid: 0, Status: commission.QualificationActive,
		CreatedAt: testTime, UpdatedAt: testTime,
	}
}

func TestInsertQualification_DuplicatePeriodRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.WithTx(ctx, func(tx *sqlite.Tx) error {
		return tx.InsertQualification(ctx, testQualification("q1", "s", "2025-06"))
	}))
	err := store.WithTx(ctx, func(tx *sqlite.Tx) error {
		return tx.InsertQualification(ctx, testQualification("q2", "s", "2025-06"))
	})
	assert.ErrorIs(t, err, commission.ErrDuplicateQualification)
}

func TestRewriteUnpaidInstallments_PaidRowsUntouched(t *testing.T) {
	// GIVEN: a qualification with one paid and two unpaid installments
	// WHEN: rewriting unpaid amounts for an upgrade
	// THEN: the paid installment keeps its original amount

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.WithTx(ctx, func(tx *sqlite.Tx) error {
		if err := tx.InsertQualification(ctx, testQualification("q1", "s", "2025-06")); err != nil {
			return err
		}
		for i, due := range []string{"2025-07-01", "2025-08-01", "2025-09-01"} {
			inst := commission.SalaryInstallment{
				ID: "i" + due, QualificationID: "q1", DueDate: due, Amount: money("1000"),
			}
			if err := tx.InsertInstallment(ctx, inst); err != nil {
				return err
			}
			if i == 0 {
				if err := tx.MarkInstallmentPaid(ctx, inst.ID, testTime); err != nil {
					return err
				}
			}
		}
		return nil
	}))

	require.NoError(t, store.WithTx(ctx, func(tx *sqlite.Tx) error {
		return tx.RewriteUnpaidInstallments(ctx, "q1", money("2500"))
	}))

	installments, err := store.InstallmentsFor(ctx, "q1")
	require.NoError(t, err)
	require.Len(t, installments, 3)
	assert.Equal(t, "1000.00", installments[0].Amount.StringFixed(2))
	assert.NotNil(t, installments[0].PaidAt)
	assert.Equal(t, "2500.00", installments[1].Amount.StringFixed(2))
	assert.Equal(t, "2500.00", installments[2].Amount.StringFixed(2))
}

func TestAdvanceQualification_CompletesAtMonthsTotal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.WithTx(ctx, func(tx *sqlite.Tx) error {
		return tx.InsertQualification(ctx, testQualification("q1", "s", "2025-06"))
	}))

	for i := 0; i < 3; i++ {
		require.NoError(t, store.WithTx(ctx, func(tx *sqlite.Tx) error {
			return tx.AdvanceQualification(ctx, "q1", testTime)
		}))
	}

	q, err := store.GetQualification(ctx, "s", "2025-06")
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, 3, q.MonthsPaid)
	assert.Equal(t, commission.QualificationCompleted, q.Status)
}

func TestDueInstallments_FiltersWindowModeAndStatus(t *testing.T) {
	// GIVEN: installments across months, modes and paid states
	// WHEN: selecting due installments for July (monthly)
	// THEN: only the unpaid July installment of the active monthly
	//       qualification is returned

	store := newTestStore(t)
	ctx := context.Background()

	weekly := testQualification("qw", "w", "2025-06-02")
	weekly.Mode = commission.ModeWeekly

	require.NoError(t, store.WithTx(ctx, func(tx *sqlite.Tx) error {
		if err := tx.InsertQualification(ctx, testQualification("q1", "s", "2025-06")); err != nil {
			return err
		}
		if err := tx.InsertQualification(ctx, weekly); err != nil {
			return err
		}
		installments := []commission.SalaryInstallment{
			{ID: "july", QualificationID: "q1", DueDate: "2025-07-01", Amount: money("1000")},
			{ID: "august", QualificationID: "q1", DueDate: "2025-08-01", Amount: money("1000")},
			{ID: "weekly-july", QualificationID: "qw", DueDate: "2025-07-07", Amount: money("500")},
		}
		for _, inst := range installments {
			if err := tx.InsertInstallment(ctx, inst); err != nil {
				return err
			}
		}
		return nil
	}))

	july := commission.MonthWindow(time.Date(2025, time.July, 10, 0, 0, 0, 0, time.UTC), time.UTC)
	due, err := store.DueInstallments(ctx, july, commission.ModeMonthly, time.UTC)
	require.NoError(t, err)

	require.Len(t, due, 1)
	assert.Equal(t, "july", due[0].ID)
	assert.Equal(t, "s", due[0].SponsorID)
}
