package repository

import (
	"context"
	"database/sql"
	"errors"

	"eduflow-backend/internal/domain"
)

type FeeRepository struct {
	db *sql.DB
}

func NewFeeRepository(db *sql.DB) *FeeRepository {
	return &FeeRepository{db: db}
}

// Create inserts the fee, creating its category row on first use, and links
// the applicable classes.
func (r *FeeRepository) Create(ctx context.Context, fee *domain.Fee) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var categoryID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO fee_categories (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`,
		string(fee.Category),
	).Scan(&categoryID)
	if err != nil {
		return err
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO fees (category_id, name, amount_minor, academic_year, term, description, mandatory, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		RETURNING id, created_at, updated_at`,
		categoryID, fee.Name, fee.AmountMinor, fee.AcademicYear, string(fee.Term), fee.Description, fee.Mandatory,
	).Scan(&fee.ID, &fee.CreatedAt, &fee.UpdatedAt)
	if err != nil {
		return err
	}

	for _, classID := range fee.ApplicableClassIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO fee_applicable_classes (fee_id, class_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING`,
			fee.ID, classID,
		); err != nil {
			return err
		}
	}

	fee.Active = true
	return tx.Commit()
}

const feeColumns = `f.id, c.name, f.name, f.amount_minor, f.academic_year, f.term, f.description, f.mandatory, f.active, f.created_at, f.updated_at`

func (r *FeeRepository) scanFee(row interface{ Scan(...any) error }) (*domain.Fee, error) {
	var f domain.Fee
	var category, term string
	if err := row.Scan(
		&f.ID, &category, &f.Name, &f.AmountMinor, &f.AcademicYear, &term,
		&f.Description, &f.Mandatory, &f.Active, &f.CreatedAt, &f.UpdatedAt,
	); err != nil {
		return nil, err
	}
	f.Category = domain.FeeCategory(category)
	f.Term = domain.Term(term)
	return &f, nil
}

func (r *FeeRepository) GetByID(ctx context.Context, id int64) (*domain.Fee, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+feeColumns+`
		FROM fees f JOIN fee_categories c ON c.id = f.category_id
		WHERE f.id = $1`, id)

	fee, err := r.scanFee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT class_id FROM fee_applicable_classes WHERE fee_id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var classID int64
		if err := rows.Scan(&classID); err != nil {
			return nil, err
		}
		fee.ApplicableClassIDs = append(fee.ApplicableClassIDs, classID)
	}
	return fee, rows.Err()
}

func (r *FeeRepository) List(ctx context.Context) ([]domain.Fee, error) {
	return r.list(ctx, `
		SELECT `+feeColumns+`
		FROM fees f JOIN fee_categories c ON c.id = f.category_id
		ORDER BY f.id`)
}

func (r *FeeRepository) ListByAcademicYear(ctx context.Context, year string) ([]domain.Fee, error) {
	return r.list(ctx, `
		SELECT `+feeColumns+`
		FROM fees f JOIN fee_categories c ON c.id = f.category_id
		WHERE f.academic_year = $1
		ORDER BY f.id`, year)
}

func (r *FeeRepository) list(ctx context.Context, query string, args ...any) ([]domain.Fee, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Fee
	for rows.Next() {
		fee, err := r.scanFee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *fee)
	}
	return out, rows.Err()
}

func (r *FeeRepository) Update(ctx context.Context, fee *domain.Fee) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, `
		UPDATE fees
		SET name = $2, amount_minor = $3, description = $4, mandatory = $5, updated_at = NOW()
		WHERE id = $1`,
		fee.ID, fee.Name, fee.AmountMinor, fee.Description, fee.Mandatory)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}

	if fee.ApplicableClassIDs != nil {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM fee_applicable_classes WHERE fee_id = $1`, fee.ID); err != nil {
			return err
		}
		for _, classID := range fee.ApplicableClassIDs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO fee_applicable_classes (fee_id, class_id) VALUES ($1, $2)`,
				fee.ID, classID); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// Deactivate soft-deletes a fee; existing assignments keep billing.
func (r *FeeRepository) Deactivate(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE fees SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
