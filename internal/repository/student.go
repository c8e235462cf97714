package repository

import (
	"context"
	"database/sql"
	"errors"

	"eduflow-backend/internal/domain"
)

// StudentRepository is the read-only view into academic records consumed by
// the billing core.
type StudentRepository struct {
	db *sql.DB
}

func NewStudentRepository(db *sql.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

func (r *StudentRepository) ResolveStudent(ctx context.Context, id int64) (*domain.Student, error) {
	var s domain.Student
	err := r.db.QueryRowContext(ctx,
		`SELECT id, student_no, full_name, class_id FROM students WHERE id = $1`, id,
	).Scan(&s.ID, &s.StudentNo, &s.FullName, &s.ClassID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ResolveStudentsByClass returns the current roster of a class. Assignment
// workflows expand classes through this at call time; the result is not
// re-evaluated later.
func (r *StudentRepository) ResolveStudentsByClass(ctx context.Context, classID int64) ([]domain.Student, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, student_no, full_name, class_id FROM students WHERE class_id = $1 ORDER BY id`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Student
	for rows.Next() {
		var s domain.Student
		if err := rows.Scan(&s.ID, &s.StudentNo, &s.FullName, &s.ClassID); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
