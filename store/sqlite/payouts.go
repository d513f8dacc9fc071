package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/commission-engine/commission"
)

// =============================================================================
// BINARY PAYOUT STORE
// =============================================================================

// GetBinaryPayout returns the payout row for the closing slot, or nil.
func (s *Store) GetBinaryPayout(ctx context.Context, sponsorID string, plan commission.PlanType, closingDate string, closingNo int) (*commission.BinaryPayout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getBinaryPayout(ctx, s.db, sponsorID, plan, closingDate, closingNo)
}

// GetBinaryPayout is the in-transaction variant.
func (t *Tx) GetBinaryPayout(ctx context.Context, sponsorID string, plan commission.PlanType, closingDate string, closingNo int) (*commission.BinaryPayout, error) {
	return getBinaryPayout(ctx, t.tx, sponsorID, plan, closingDate, closingNo)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func getBinaryPayout(ctx context.Context, db querier, sponsorID string, plan commission.PlanType, closingDate string, closingNo int) (*commission.BinaryPayout, error) {
	query := `
		SELECT id, sponsor_id, plan, closing_date, closing_no,
		       left_volume, right_volume, matched, payable, created_at, updated_at
		FROM binary_payouts
		WHERE sponsor_id = ? AND plan = ? AND closing_date = ? AND closing_no = ?
	`
	var (
		p                      commission.BinaryPayout
		planStr                string
		left, right            string
		matched, payable       string
		createdAt, updatedAt   string
	)
	err := db.QueryRowContext(ctx, query, sponsorID, string(plan), closingDate, closingNo).Scan(
		&p.ID, &p.SponsorID, &planStr, &p.ClosingDate, &p.ClosingNo,
		&left, &right, &matched, &payable, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Plan = commission.PlanType(planStr)
	p.LeftVolume = commission.MustDecimal(left)
	p.RightVolume = commission.MustDecimal(right)
	p.Matched = commission.MustDecimal(matched)
	p.Payable = commission.MustDecimal(payable)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

// InsertBinaryPayout inserts a new payout row. A collision on the
// (sponsor, plan, closing) unique key yields ErrDuplicatePayout.
func (t *Tx) InsertBinaryPayout(ctx context.Context, p commission.BinaryPayout) error {
	query := `
		INSERT INTO binary_payouts
		(id, sponsor_id, plan, closing_date, closing_no, left_volume, right_volume, matched, payable, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := t.tx.ExecContext(ctx, query,
		p.ID, p.SponsorID, string(p.Plan), p.ClosingDate, p.ClosingNo,
		fmtMoney(p.LeftVolume), fmtMoney(p.RightVolume),
		fmtMoney(p.Matched), fmtMoney(p.Payable),
		fmtTime(p.CreatedAt), fmtTime(p.UpdatedAt),
	)
	if isUniqueConstraintError(err) {
		return commission.ErrDuplicatePayout
	}
	return err
}

// UpdateBinaryPayoutVolumes refreshes the volume snapshot of an existing
// payout row. Payable is deliberately untouched: a re-run never changes
// what was already paid.
func (t *Tx) UpdateBinaryPayoutVolumes(ctx context.Context, id string, left, right, matched decimal.Decimal, updatedAt time.Time) error {
	query := `
		UPDATE binary_payouts
		SET left_volume = ?, right_volume = ?, matched = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := t.tx.ExecContext(ctx, query,
		fmtMoney(left), fmtMoney(right), fmtMoney(matched), fmtTime(updatedAt), id)
	return err
}

// SumBinaryPayableForDay sums payable across both closings of one local
// day for a sponsor and plan (daily-cap accounting).
func (s *Store) SumBinaryPayableForDay(ctx context.Context, sponsorID string, plan commission.PlanType, closingDate string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT payable FROM binary_payouts WHERE sponsor_id = ? AND plan = ? AND closing_date = ?",
		sponsorID, string(plan), closingDate,
	)
	if err != nil {
		return decimal.Zero, err
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var payable string
		if err := rows.Scan(&payable); err != nil {
			return decimal.Zero, err
		}
		total = total.Add(commission.MustDecimal(payable))
	}
	return total, rows.Err()
}

// ListBinaryPayouts returns a sponsor's payout rows, newest first.
func (s *Store) ListBinaryPayouts(ctx context.Context, sponsorID string) ([]commission.BinaryPayout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, sponsor_id, plan, closing_date, closing_no,
		       left_volume, right_volume, matched, payable, created_at, updated_at
		FROM binary_payouts
		WHERE sponsor_id = ?
		ORDER BY closing_date DESC, closing_no DESC
	`
	rows, err := s.db.QueryContext(ctx, query, sponsorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payouts []commission.BinaryPayout
	for rows.Next() {
		var (
			p                    commission.BinaryPayout
			planStr              string
			left, right          string
			matched, payable     string
			createdAt, updatedAt string
		)
		if err := rows.Scan(&p.ID, &p.SponsorID, &planStr, &p.ClosingDate, &p.ClosingNo,
			&left, &right, &matched, &payable, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		p.Plan = commission.PlanType(planStr)
		p.LeftVolume = commission.MustDecimal(left)
		p.RightVolume = commission.MustDecimal(right)
		p.Matched = commission.MustDecimal(matched)
		p.Payable = commission.MustDecimal(payable)
		p.CreatedAt = parseTime(createdAt)
		p.UpdatedAt = parseTime(updatedAt)
		payouts = append(payouts, p)
	}
	return payouts, rows.Err()
}

// =============================================================================
// STAR AWARD STORE
// =============================================================================

// HasStarAward reports whether the (sponsor, rank) award row exists.
func (s *Store) HasStarAward(ctx context.Context, sponsorID string, rankNo int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM star_awards WHERE sponsor_id = ? AND rank_no = ?",
		sponsorID, rankNo,
	).Scan(&count)
	return count > 0, err
}

// InsertStarAward inserts an award row. A collision on the (sponsor, rank)
// unique key yields ErrDuplicateAward.
func (t *Tx) InsertStarAward(ctx context.Context, a commission.StarAward) error {
	query := `
		INSERT INTO star_awards (id, sponsor_id, rank_no, threshold, reward, awarded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := t.tx.ExecContext(ctx, query,
		a.ID, a.SponsorID, a.RankNo,
		fmtMoney(a.Threshold), fmtMoney(a.Reward), fmtTime(a.AwardedAt),
	)
	if isUniqueConstraintError(err) {
		return commission.ErrDuplicateAward
	}
	return err
}

// ListStarAwards returns a sponsor's awards ordered by rank.
func (s *Store) ListStarAwards(ctx context.Context, sponsorID string) ([]commission.StarAward, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, sponsor_id, rank_no, threshold, reward, awarded_at FROM star_awards WHERE sponsor_id = ? ORDER BY rank_no ASC",
		sponsorID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var awards []commission.StarAward
	for rows.Next() {
		var (
			a                    commission.StarAward
			threshold, reward    string
			awardedAt            string
		)
		if err := rows.Scan(&a.ID, &a.SponsorID, &a.RankNo, &threshold, &reward, &awardedAt); err != nil {
			return nil, err
		}
		a.Threshold = commission.MustDecimal(threshold)
		a.Reward = commission.MustDecimal(reward)
		a.AwardedAt = parseTime(awardedAt)
		awards = append(awards, a)
	}
	return awards, rows.Err()
}
