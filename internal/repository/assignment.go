package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"eduflow-backend/internal/domain"
)

type AssignmentRepository struct {
	db *sql.DB
}

func NewAssignmentRepository(db *sql.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

const assignmentColumns = `id, student_id, fee_id, academic_year, due_date, amount_minor, discount_minor, discount_reason, amount_paid_minor, status, created_at, updated_at`

func scanAssignment(row interface{ Scan(...any) error }) (*domain.FeeAssignment, error) {
	var a domain.FeeAssignment
	var status string
	if err := row.Scan(
		&a.ID, &a.StudentID, &a.FeeID, &a.AcademicYear, &a.DueDate,
		&a.AmountMinor, &a.DiscountMinor, &a.DiscountReason, &a.AmountPaidMinor,
		&status, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.Status = domain.FeeStatus(status)
	return &a, nil
}

// CreateBatch inserts assignments, silently skipping students that already
// hold one for the same (fee, academic year); the table's unique constraint
// is the authority. Returns only the rows actually created.
func (r *AssignmentRepository) CreateBatch(ctx context.Context, assignments []domain.FeeAssignment) ([]domain.FeeAssignment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var created []domain.FeeAssignment
	for _, a := range assignments {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO student_fee_assignments
				(student_id, fee_id, academic_year, due_date, amount_minor, discount_minor, discount_reason, amount_paid_minor, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8)
			ON CONFLICT (student_id, fee_id, academic_year) DO NOTHING
			RETURNING id, created_at, updated_at`,
			a.StudentID, a.FeeID, a.AcademicYear, a.DueDate,
			a.AmountMinor, a.DiscountMinor, a.DiscountReason, string(a.Status),
		).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			continue // already assigned
		}
		if err != nil {
			return nil, err
		}
		created = append(created, a)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return created, nil
}

func (r *AssignmentRepository) GetByID(ctx context.Context, id int64) (*domain.FeeAssignment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM student_fee_assignments WHERE id = $1`, id)
	a, err := scanAssignment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return a, err
}

func (r *AssignmentRepository) List(ctx context.Context) ([]domain.FeeAssignment, error) {
	return r.list(ctx, `SELECT `+assignmentColumns+` FROM student_fee_assignments ORDER BY id`)
}

func (r *AssignmentRepository) ListByStudent(ctx context.Context, studentID int64) ([]domain.FeeAssignment, error) {
	return r.list(ctx,
		`SELECT `+assignmentColumns+` FROM student_fee_assignments WHERE student_id = $1 ORDER BY id`,
		studentID)
}

func (r *AssignmentRepository) ListByStudentAndYear(ctx context.Context, studentID int64, year string) ([]domain.FeeAssignment, error) {
	return r.list(ctx,
		`SELECT `+assignmentColumns+` FROM student_fee_assignments WHERE student_id = $1 AND academic_year = $2 ORDER BY id`,
		studentID, year)
}

func (r *AssignmentRepository) list(ctx context.Context, query string, args ...any) ([]domain.FeeAssignment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.FeeAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// ApplyDiscount sets the discount under a row lock and recomputes the status
// in the same transaction.
func (r *AssignmentRepository) ApplyDiscount(ctx context.Context, id int64, discountMinor int64, reason string) (*domain.FeeAssignment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	a, err := lockAssignment(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if discountMinor > a.AmountMinor {
		return nil, domain.ErrInvalidArgument
	}

	a.DiscountMinor = discountMinor
	a.DiscountReason = &reason
	a.Recompute(time.Now())

	if err := updateAssignment(ctx, tx, a); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return a, nil
}

// Waive writes off the full amount; WAIVED is terminal from here on.
func (r *AssignmentRepository) Waive(ctx context.Context, id int64, reason string) (*domain.FeeAssignment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	a, err := lockAssignment(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	a.Waive(reason)

	if err := updateAssignment(ctx, tx, a); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return a, nil
}

type CollectionStats struct {
	Assignments      int64 `json:"assignments"`
	BilledMinor      int64 `json:"billed_minor"`
	DiscountMinor    int64 `json:"discount_minor"`
	CollectedMinor   int64 `json:"collected_minor"`
	OutstandingMinor int64 `json:"outstanding_minor"`
	OverdueCount     int64 `json:"overdue_count"`
}

func (r *AssignmentRepository) CollectionStats(ctx context.Context) (*CollectionStats, error) {
	var st CollectionStats
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(amount_minor), 0),
			COALESCE(SUM(discount_minor), 0),
			COALESCE(SUM(amount_paid_minor), 0),
			COALESCE(SUM(CASE WHEN status <> 'WAIVED' THEN amount_minor - discount_minor - amount_paid_minor ELSE 0 END), 0),
			COUNT(*) FILTER (WHERE status = 'OVERDUE')
		FROM student_fee_assignments`,
	).Scan(&st.Assignments, &st.BilledMinor, &st.DiscountMinor, &st.CollectedMinor, &st.OutstandingMinor, &st.OverdueCount)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// lockAssignment loads an assignment row FOR UPDATE inside tx. Every writer
// that touches amount_paid_minor or status goes through this lock.
func lockAssignment(ctx context.Context, tx *sql.Tx, id int64) (*domain.FeeAssignment, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM student_fee_assignments WHERE id = $1 FOR UPDATE`, id)
	a, err := scanAssignment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return a, err
}

func updateAssignment(ctx context.Context, tx *sql.Tx, a *domain.FeeAssignment) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE student_fee_assignments
		SET discount_minor = $2, discount_reason = $3, amount_paid_minor = $4, status = $5, updated_at = NOW()
		WHERE id = $1`,
		a.ID, a.DiscountMinor, a.DiscountReason, a.AmountPaidMinor, string(a.Status))
	return err
}
