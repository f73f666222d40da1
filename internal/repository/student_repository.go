package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-engine/internal/models"
)

// StudentRepository reads student records and their batch limits.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID returns a student or sql.ErrNoRows.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, student_no, full_name, batch_id, year_level, department_id, active, created_at, updated_at
	FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// MaxCredits returns the credit ceiling of the student's batch, 0 when the batch sets none.
func (r *StudentRepository) MaxCredits(ctx context.Context, studentID string) (int, error) {
	const query = `SELECT b.max_credits FROM students s JOIN batches b ON b.id = s.batch_id WHERE s.id = $1`
	var maxCredits int
	if err := r.db.GetContext(ctx, &maxCredits, query, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("load batch max credits: %w", err)
	}
	return maxCredits, nil
}
