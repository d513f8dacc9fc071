package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/commission-engine/commission"
)

// =============================================================================
// SALARY QUALIFICATION STORE
// =============================================================================

// GetQualification returns the qualification for (sponsor, period marker),
// or nil.
func (s *Store) GetQualification(ctx context.Context, sponsorID, periodMarker string) (*commission.SalaryQualification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, sponsor_id, period_marker, mode, vip_no, salary_amount,
		       months_total, months_paid, status, created_at, updated_at
		FROM salary_qualifications
		WHERE sponsor_id = ? AND period_marker = ?
	`
	row := s.db.QueryRowContext(ctx, query, sponsorID, periodMarker)
	q, err := scanQualification(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// ListQualifications returns a sponsor's qualifications, newest period first.
func (s *Store) ListQualifications(ctx context.Context, sponsorID string) ([]commission.SalaryQualification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, sponsor_id, period_marker, mode, vip_no, salary_amount,
		       months_total, months_paid, status, created_at, updated_at
		FROM salary_qualifications
		WHERE sponsor_id = ?
		ORDER BY period_marker DESC
	`
	rows, err := s.db.QueryContext(ctx, query, sponsorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quals []commission.SalaryQualification
	for rows.Next() {
		q, err := scanQualification(rows)
		if err != nil {
			return nil, err
		}
		quals = append(quals, q)
	}
	return quals, rows.Err()
}

func scanQualification(r rowScanner) (commission.SalaryQualification, error) {
	var (
		q                    commission.SalaryQualification
		mode, status         string
		salary               string
		createdAt, updatedAt string
	)
	err := r.Scan(&q.ID, &q.SponsorID, &q.PeriodMarker, &mode, &q.VIPNo, &salary,
		&q.MonthsTotal, &q.MonthsPaid, &status, &createdAt, &updatedAt)
	if err != nil {
		return q, err
	}
	q.Mode = commission.PeriodMode(mode)
	q.SalaryAmount = commission.MustDecimal(salary)
	q.Status = commission.QualificationStatus(status)
	q.CreatedAt = parseTime(createdAt)
	q.UpdatedAt = parseTime(updatedAt)
	return q, nil
}

// InsertQualification inserts a qualification row. A collision on the
// (sponsor, period) unique key yields ErrDuplicateQualification.
func (t *Tx) InsertQualification(ctx context.Context, q commission.SalaryQualification) error {
	query := `
		INSERT INTO salary_qualifications
		(id, sponsor_id, period_marker, mode, vip_no, salary_amount, months_total, months_paid, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := t.tx.ExecContext(ctx, query,
		q.ID, q.SponsorID, q.PeriodMarker, string(q.Mode), q.VIPNo,
		fmtMoney(q.SalaryAmount), q.MonthsTotal, q.MonthsPaid,
		string(q.Status), fmtTime(q.CreatedAt), fmtTime(q.UpdatedAt),
	)
	if isUniqueConstraintError(err) {
		return commission.ErrDuplicateQualification
	}
	return err
}

// UpgradeQualification raises the slab of an existing qualification in
// place. Only upward moves call this; the engine enforces the
// upgrade-only rule.
func (t *Tx) UpgradeQualification(ctx context.Context, id string, vipNo int, salary decimal.Decimal, updatedAt time.Time) error {
	query := `
		UPDATE salary_qualifications
		SET vip_no = ?, salary_amount = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := t.tx.ExecContext(ctx, query, vipNo, fmtMoney(salary), fmtTime(updatedAt), id)
	return err
}

// AdvanceQualification increments months_paid and flips the status to
// completed once every installment is paid.
func (t *Tx) AdvanceQualification(ctx context.Context, id string, updatedAt time.Time) error {
	query := `
		UPDATE salary_qualifications
		SET months_paid = months_paid + 1,
		    status = CASE WHEN months_paid + 1 >= months_total THEN 'completed' ELSE status END,
		    updated_at = ?
		WHERE id = ?
	`
	_, err := t.tx.ExecContext(ctx, query, fmtTime(updatedAt), id)
	return err
}

// =============================================================================
// SALARY INSTALLMENT STORE
// =============================================================================

// InsertInstallment inserts one scheduled installment.
func (t *Tx) InsertInstallment(ctx context.Context, inst commission.SalaryInstallment) error {
	query := `
		INSERT INTO salary_installments (id, qualification_id, due_date, amount, paid_at)
		VALUES (?, ?, ?, ?, NULL)
	`
	_, err := t.tx.ExecContext(ctx, query,
		inst.ID, inst.QualificationID, inst.DueDate, fmtMoney(inst.Amount))
	return err
}

// RewriteUnpaidInstallments sets the amount of every unpaid installment of
// a qualification. Paid installments are immutable and never touched.
func (t *Tx) RewriteUnpaidInstallments(ctx context.Context, qualificationID string, amount decimal.Decimal) error {
	query := `
		UPDATE salary_installments
		SET amount = ?
		WHERE qualification_id = ? AND paid_at IS NULL
	`
	_, err := t.tx.ExecContext(ctx, query, fmtMoney(amount), qualificationID)
	return err
}

// MarkInstallmentPaid stamps paid_at on an unpaid installment.
func (t *Tx) MarkInstallmentPaid(ctx context.Context, id string, paidAt time.Time) error {
	query := `
		UPDATE salary_installments
		SET paid_at = ?
		WHERE id = ? AND paid_at IS NULL
	`
	_, err := t.tx.ExecContext(ctx, query, fmtTime(paidAt), id)
	return err
}

// InstallmentsFor returns a qualification's installments by due date.
func (s *Store) InstallmentsFor(ctx context.Context, qualificationID string) ([]commission.SalaryInstallment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, qualification_id, due_date, amount, paid_at
		FROM salary_installments
		WHERE qualification_id = ?
		ORDER BY due_date ASC
	`
	rows, err := s.db.QueryContext(ctx, query, qualificationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var installments []commission.SalaryInstallment
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		installments = append(installments, inst)
	}
	return installments, rows.Err()
}

func scanInstallment(r rowScanner) (commission.SalaryInstallment, error) {
	var (
		inst   commission.SalaryInstallment
		amount string
		paidAt sql.NullString
	)
	err := r.Scan(&inst.ID, &inst.QualificationID, &inst.DueDate, &amount, &paidAt)
	if err != nil {
		return inst, err
	}
	inst.Amount = commission.MustDecimal(amount)
	if paidAt.Valid {
		t := parseTime(paidAt.String)
		inst.PaidAt = &t
	}
	return inst, nil
}

// DueInstallment is an unpaid installment joined with its parent
// qualification, as selected by the pay phase.
type DueInstallment struct {
	commission.SalaryInstallment
	SponsorID   string
	MonthsTotal int
	MonthsPaid  int
}

// DueInstallments returns unpaid installments due within the marker window
// whose parent qualification is active and in the given mode.
func (s *Store) DueInstallments(ctx context.Context, w commission.Window, mode commission.PeriodMode, loc *time.Location) ([]DueInstallment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT i.id, i.qualification_id, i.due_date, i.amount, i.paid_at,
		       q.sponsor_id, q.months_total, q.months_paid
		FROM salary_installments i
		JOIN salary_qualifications q ON q.id = i.qualification_id
		WHERE i.paid_at IS NULL
		  AND q.status = 'active'
		  AND q.mode = ?
		  AND i.due_date >= ? AND i.due_date <= ?
		ORDER BY i.due_date ASC, i.id ASC
	`
	from := commission.LocalDate(w.From, loc)
	to := commission.LocalDate(w.To, loc)

	rows, err := s.db.QueryContext(ctx, query, string(mode), from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []DueInstallment
	for rows.Next() {
		var (
			d      DueInstallment
			amount string
			paidAt sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.QualificationID, &d.DueDate, &amount, &paidAt,
			&d.SponsorID, &d.MonthsTotal, &d.MonthsPaid); err != nil {
			return nil, err
		}
		d.Amount = commission.MustDecimal(amount)
		due = append(due, d)
	}
	return due, rows.Err()
}
