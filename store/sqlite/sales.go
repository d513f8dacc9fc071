package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/warp/commission-engine/commission"
)

// =============================================================================
// SALES STORE
// =============================================================================
// Sales are produced by the excluded checkout flow; the engines only read
// them. InsertSale exists for that flow (and for tests) - there is no
// update or delete path.

// InsertSale appends a sale event.
func (s *Store) InsertSale(ctx context.Context, sale commission.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO sales (id, buyer_id, sponsor_id, leg, plan_type, amount, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		sale.ID, sale.BuyerID, sale.SponsorID,
		nullString(string(sale.Leg)),
		string(sale.PlanType),
		fmtMoney(sale.Amount),
		string(sale.Status),
		fmtTime(sale.CreatedAt),
	)
	return err
}

// PaidSalesInWindow returns paid sales created within the inclusive window,
// chronologically.
func (s *Store) PaidSalesInWindow(ctx context.Context, w commission.Window) ([]commission.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, buyer_id, sponsor_id, leg, plan_type, amount, status, created_at
		FROM sales
		WHERE status = 'paid' AND created_at >= ? AND created_at <= ?
		ORDER BY created_at ASC, id ASC
	`
	return s.querySales(ctx, query, fmtTime(w.From), fmtTime(w.To))
}

// PaidSalesUpTo returns all paid sales created at or before asOf (full
// history; used for cumulative star-rank volume).
func (s *Store) PaidSalesUpTo(ctx context.Context, asOf time.Time) ([]commission.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, buyer_id, sponsor_id, leg, plan_type, amount, status, created_at
		FROM sales
		WHERE status = 'paid' AND created_at <= ?
		ORDER BY created_at ASC, id ASC
	`
	return s.querySales(ctx, query, fmtTime(asOf))
}

// SelfPurchaseRank returns the highest package rank (silver=1, gold=2,
// diamond=3) the buyer holds via their own paid purchases as of asOf.
// Zero means no qualifying self-purchase.
func (s *Store) SelfPurchaseRank(ctx context.Context, buyerID string, asOf time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT DISTINCT plan_type FROM sales
		WHERE buyer_id = ? AND status = 'paid' AND created_at <= ?
		  AND plan_type IN ('silver', 'gold', 'diamond')
	`
	rows, err := s.db.QueryContext(ctx, query, buyerID, fmtTime(asOf))
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	rank := 0
	for rows.Next() {
		var pt string
		if err := rows.Scan(&pt); err != nil {
			return 0, err
		}
		if r := commission.PackageRank(commission.PlanType(pt)); r > rank {
			rank = r
		}
	}
	return rank, rows.Err()
}

func (s *Store) querySales(ctx context.Context, query string, args ...any) ([]commission.Sale, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sales []commission.Sale
	for rows.Next() {
		var (
			sale      commission.Sale
			leg       sql.NullString
			planType  string
			amount    string
			status    string
			createdAt string
		)
		if err := rows.Scan(&sale.ID, &sale.BuyerID, &sale.SponsorID, &leg, &planType, &amount, &status, &createdAt); err != nil {
			return nil, err
		}
		sale.Leg = commission.Leg(leg.String)
		sale.PlanType = commission.PlanType(planType)
		sale.Amount = commission.MustDecimal(amount)
		sale.Status = commission.SaleStatus(status)
		sale.CreatedAt = parseTime(createdAt)
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}
