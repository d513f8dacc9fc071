/*
dto.go - Data Transfer Objects for API responses

PURPOSE:
  Defines the JSON structures the read-only income API returns. These
  types decouple the internal domain model from the external contract:
  money travels as fixed two-decimal strings, timestamps as RFC3339.

NAMING CONVENTION:
  - *DTO: Response types returned to clients

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/commission-engine/commission"
)

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// WalletDTO is a wallet balance in API responses.
type WalletDTO struct {
	UserID      string `json:"user_id"`
	AccountType string `json:"account_type"`
	Amount      string `json:"amount"`
}

// PayoutDTO is one binary payout row.
type PayoutDTO struct {
	ID          string `json:"id"`
	SponsorID   string `json:"sponsor_id"`
	Plan        string `json:"plan"`
	ClosingDate string `json:"closing_date"`
	ClosingNo   int    `json:"closing_no"`
	LeftVolume  string `json:"left_volume"`
	RightVolume string `json:"right_volume"`
	Matched     string `json:"matched"`
	Payable     string `json:"payable"`
	CreatedAt   string `json:"created_at"`
}

// AwardDTO is one star-rank award row.
type AwardDTO struct {
	ID        string `json:"id"`
	SponsorID string `json:"sponsor_id"`
	RankNo    int    `json:"rank_no"`
	Threshold string `json:"threshold"`
	Reward    string `json:"reward"`
	AwardedAt string `json:"awarded_at"`
}

// QualificationDTO is one salary qualification with its installments.
type QualificationDTO struct {
	ID           string           `json:"id"`
	SponsorID    string           `json:"sponsor_id"`
	PeriodMarker string           `json:"period_marker"`
	Mode         string           `json:"mode"`
	VIPNo        int              `json:"vip_no"`
	SalaryAmount string           `json:"salary_amount"`
	MonthsTotal  int              `json:"months_total"`
	MonthsPaid   int              `json:"months_paid"`
	Status       string           `json:"status"`
	Installments []InstallmentDTO `json:"installments"`
}

// InstallmentDTO is one scheduled salary installment.
type InstallmentDTO struct {
	ID      string  `json:"id"`
	DueDate string  `json:"due_date"`
	Amount  string  `json:"amount"`
	PaidAt  *string `json:"paid_at"`
}

// LedgerEntryDTO is one payout-ledger audit row.
type LedgerEntryDTO struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	ToUserID  string `json:"to_user_id"`
	Amount    string `json:"amount"`
	Status    string `json:"status"`
	Method    string `json:"method"`
	Type      string `json:"type"`
	CreatedAt string `json:"created_at"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toPayoutDTO(p commission.BinaryPayout) PayoutDTO {
	return PayoutDTO{
		ID:          p.ID,
		SponsorID:   p.SponsorID,
		Plan:        string(p.Plan),
		ClosingDate: p.ClosingDate,
		ClosingNo:   p.ClosingNo,
		LeftVolume:  p.LeftVolume.StringFixed(2),
		RightVolume: p.RightVolume.StringFixed(2),
		Matched:     p.Matched.StringFixed(2),
		Payable:     p.Payable.StringFixed(2),
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
	}
}

func toAwardDTO(a commission.StarAward) AwardDTO {
	return AwardDTO{
		ID:        a.ID,
		SponsorID: a.SponsorID,
		RankNo:    a.RankNo,
		Threshold: a.Threshold.StringFixed(2),
		Reward:    a.Reward.StringFixed(2),
		AwardedAt: a.AwardedAt.Format(time.RFC3339),
	}
}

func toInstallmentDTO(i commission.SalaryInstallment) InstallmentDTO {
	dto := InstallmentDTO{
		ID:      i.ID,
		DueDate: i.DueDate,
		Amount:  i.Amount.StringFixed(2),
	}
	if i.PaidAt != nil {
		s := i.PaidAt.Format(time.RFC3339)
		dto.PaidAt = &s
	}
	return dto
}

func toLedgerEntryDTO(e commission.LedgerEntry) LedgerEntryDTO {
	return LedgerEntryDTO{
		ID:        e.ID,
		UserID:    e.UserID,
		ToUserID:  e.ToUserID,
		Amount:    e.Amount.StringFixed(2),
		Status:    e.Status,
		Method:    e.Method,
		Type:      e.Type,
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
	}
}
