package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/warp/commission-engine/commission"
)

// =============================================================================
// USER / TREE STORE
// =============================================================================

// SaveUser inserts or updates a user row. Child pointers are NOT written
// here; use SetChild, which enforces write-once semantics.
func (s *Store) SaveUser(ctx context.Context, u commission.UserNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO users (id, referral_code, sponsor_code, left_child_id, right_child_id, position, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			referral_code = excluded.referral_code,
			sponsor_code = excluded.sponsor_code,
			position = excluded.position
	`

	_, err := s.db.ExecContext(ctx, query,
		u.ID,
		nullString(u.ReferralCode),
		nullString(u.SponsorCode),
		nullString(u.LeftChildID),
		nullString(u.RightChildID),
		string(u.Position),
		fmtTime(u.CreatedAt),
	)
	return err
}

// SetChild sets a placement child pointer. A pointer, once set, is
// immutable: setting an occupied slot fails with ErrChildSlotTaken.
func (s *Store) SetChild(ctx context.Context, parentID string, side commission.Leg, childID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var column string
	switch side {
	case commission.LegLeft:
		column = "left_child_id"
	case commission.LegRight:
		column = "right_child_id"
	default:
		return fmt.Errorf("invalid placement side %q", side)
	}

	query := fmt.Sprintf(
		"UPDATE users SET %s = ? WHERE id = ? AND (%s IS NULL OR %s = '')",
		column, column, column,
	)
	res, err := s.db.ExecContext(ctx, query, childID, parentID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE id = ?", parentID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return commission.ErrUserNotFound
		}
		return commission.ErrChildSlotTaken
	}
	return nil
}

// GetUser retrieves a user by id; nil when absent.
func (s *Store) GetUser(ctx context.Context, id string) (*commission.UserNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, referral_code, sponsor_code, left_child_id, right_child_id, position, created_at FROM users WHERE id = ?",
		id,
	)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsers returns every user. The tree resolver loads the full adjacency
// once per batch run from this.
func (s *Store) ListUsers(ctx context.Context) ([]commission.UserNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, referral_code, sponsor_code, left_child_id, right_child_id, position, created_at FROM users ORDER BY id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []commission.UserNode
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(r rowScanner) (commission.UserNode, error) {
	var (
		u                       commission.UserNode
		referral, sponsor       sql.NullString
		leftChild, rightChild   sql.NullString
		position, createdAt     string
	)
	err := r.Scan(&u.ID, &referral, &sponsor, &leftChild, &rightChild, &position, &createdAt)
	if err != nil {
		return u, err
	}
	u.ReferralCode = referral.String
	u.SponsorCode = sponsor.String
	u.LeftChildID = leftChild.String
	u.RightChildID = rightChild.String
	u.Position = commission.Leg(position)
	u.CreatedAt = parseTime(createdAt)
	return u, nil
}
