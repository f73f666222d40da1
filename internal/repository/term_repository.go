package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-engine/internal/models"
)

// TermRepository reads academic terms.
type TermRepository struct {
	db *sqlx.DB
}

// NewTermRepository instantiates a term repository.
func NewTermRepository(db *sqlx.DB) *TermRepository {
	return &TermRepository{db: db}
}

// ListByStudent returns the terms in which the student holds any enrollment.
func (r *TermRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Term, error) {
	const query = `SELECT DISTINCT t.id, t.name, t.status, t.start_date, t.end_date
	FROM terms t JOIN enrollments e ON e.term_id = t.id
	WHERE e.student_id = $1
	ORDER BY t.start_date DESC`
	var terms []models.Term
	if err := r.db.SelectContext(ctx, &terms, query, studentID); err != nil {
		return nil, fmt.Errorf("list student terms: %w", err)
	}
	return terms, nil
}
