/*
Package commission provides the core types for the commission engine.

PURPOSE:
  This package contains the typed records shared by every batch engine:
  users and their two tree views, immutable sale events, payout and award
  rows, wallets, and the append-only payout ledger.

KEY CONCEPTS IN THIS FILE (types.go):
  - UserNode: identity with placement (binary) and referral (n-ary) links
  - Sale: an immutable purchase fact; only paid sales ever aggregate
  - BinaryPayout: one row per (sponsor, plan, closing) - the idempotency unit
  - StarAward / SalaryQualification / SalaryInstallment: award state
  - Wallet / LedgerEntry: balance sink and audit trail

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for every amount, no binary floats
  2. Immutability: sales and ledger entries are append-only facts
  3. Idempotency: every payout row carries a natural unique key
  4. Explicit time: engines receive timestamps and timezones, never
     read an ambient clock

SEE ALSO:
  - period.go: closing windows and period arithmetic
  - errors.go: sentinel errors shared by the engines
*/
package commission

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEGS AND PLAN TYPES
// =============================================================================

// Leg identifies which of a sponsor's two immediate binary branches a
// descendant's volume is attributed to.
type Leg string

const (
	LegLeft  Leg = "L"
	LegRight Leg = "R"
	LegNA    Leg = "NA" // root itself, or a descendant with no recorded side
)

// PlanType is the product package tier of a sale.
type PlanType string

const (
	PlanSilver     PlanType = "silver"
	PlanGold       PlanType = "gold"
	PlanDiamond    PlanType = "diamond"
	PlanRepurchase PlanType = "repurchase"
)

// PackageRank returns the ordering of self-purchase package tiers
// (silver < gold < diamond). Repurchase and unknown types rank 0.
func PackageRank(p PlanType) int {
	switch p {
	case PlanSilver:
		return 1
	case PlanGold:
		return 2
	case PlanDiamond:
		return 3
	default:
		return 0
	}
}

// =============================================================================
// USER / TREE NODE
// =============================================================================

// UserNode is one identity with its two independent hierarchy views.
//
// Placement tree: LeftChildID/RightChildID, set once at registration
// (preferred side, else spillover) and never reassigned.
//
// Referral tree: SponsorCode references the inviter's ReferralCode;
// Position is the L/R side recorded at the node's own registration.
type UserNode struct {
	ID           string
	ReferralCode string
	SponsorCode  string
	LeftChildID  string
	RightChildID string
	Position     Leg
	CreatedAt    time.Time
}

// =============================================================================
// SALE EVENT - immutable purchase fact
// =============================================================================

type SaleStatus string

const (
	SalePending   SaleStatus = "pending"
	SalePaid      SaleStatus = "paid"
	SaleCancelled SaleStatus = "cancelled"
)

// Sale is an append-only purchase event produced by the (excluded)
// checkout flow. The engines never mutate sales.
type Sale struct {
	ID        string
	BuyerID   string
	SponsorID string
	Leg       Leg
	PlanType  PlanType
	Amount    decimal.Decimal
	Status    SaleStatus
	CreatedAt time.Time
}

// =============================================================================
// BINARY PAYOUT RECORD
// =============================================================================

// BinaryPayout is the result of one binary-matching evaluation. At most one
// row exists per (sponsor, plan, closing date, closing no); a row is only
// ever written with Payable > 0.
type BinaryPayout struct {
	ID          string
	SponsorID   string
	Plan        PlanType
	ClosingDate string // local date, YYYY-MM-DD
	ClosingNo   int    // 1 or 2
	LeftVolume  decimal.Decimal
	RightVolume decimal.Decimal
	Matched     decimal.Decimal
	Payable     decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// =============================================================================
// STAR-RANK AWARD
// =============================================================================

// StarAward records a permanently awarded rank. Unique per
// (sponsor, rank no); threshold and reward are snapshotted at award time.
type StarAward struct {
	ID        string
	SponsorID string
	RankNo    int
	Threshold decimal.Decimal
	Reward    decimal.Decimal
	AwardedAt time.Time
}

// =============================================================================
// VIP REPURCHASE SALARY
// =============================================================================

type QualificationStatus string

const (
	QualificationActive    QualificationStatus = "active"
	QualificationCompleted QualificationStatus = "completed"
)

// PeriodMode selects the salary cadence. The two modes are mutually
// exclusive and share one qualification table.
type PeriodMode string

const (
	ModeMonthly PeriodMode = "monthly"
	ModeWeekly  PeriodMode = "weekly"
)

// SalaryQualification is one earned salary schedule. Unique per
// (sponsor, period marker). Upgradeable in place: a later evaluation of the
// same period may raise VIPNo/SalaryAmount and rewrite unpaid installments;
// paid installments are never touched.
type SalaryQualification struct {
	ID           string
	SponsorID    string
	PeriodMarker string // YYYY-MM (monthly) or Monday YYYY-MM-DD (weekly)
	Mode         PeriodMode
	VIPNo        int
	SalaryAmount decimal.Decimal
	MonthsTotal  int
	MonthsPaid   int
	Status       QualificationStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SalaryInstallment is one scheduled payout of a qualification.
type SalaryInstallment struct {
	ID              string
	QualificationID string
	DueDate         string // YYYY-MM-DD period boundary
	Amount          decimal.Decimal
	PaidAt          *time.Time
}

// =============================================================================
// WALLET AND PAYOUT LEDGER
// =============================================================================

// AccountEarning is the wallet account every engine credits into.
const AccountEarning = "earning"

// SystemUser is the payer recorded on engine-generated ledger rows.
const SystemUser = "company"

// Wallet holds one running balance per (user, account type). Balances are
// only ever mutated by atomic increments inside a store transaction.
type Wallet struct {
	UserID      string
	AccountType string
	Amount      decimal.Decimal
}

// Ledger entry types written by the engines.
const (
	LedgerTypeBinary    = "binary"
	LedgerTypeStarRank  = "star_rank"
	LedgerTypeVIPSalary = "vip_salary"
)

// LedgerEntry is one row of the append-only payout audit trail. Besides
// history, the ledger is the idempotency oracle for salary installments:
// an existing (to user, type, date, amount) row means "already credited".
type LedgerEntry struct {
	ID        string
	UserID    string // payer ("company" for engine credits)
	ToUserID  string // beneficiary
	Amount    decimal.Decimal
	Status    string // "paid"
	Method    string // "system"
	Type      string
	CreatedAt time.Time
}

// =============================================================================
// MONEY HELPERS
// =============================================================================

// RoundMoney rounds to 2 decimal places, half up. Used only at final
// output boundaries; intermediate sums stay at full precision.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// MinDecimal returns the smaller of a and b.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// MustDecimal parses s or returns zero. Mirrors how stored decimal text is
// read back; stored values are always engine-written and well formed.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
