package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-engine/internal/models"
)

// GradeComponentRepository manages component definitions per course offering.
type GradeComponentRepository struct {
	db *sqlx.DB
}

// NewGradeComponentRepository constructs the repository.
func NewGradeComponentRepository(db *sqlx.DB) *GradeComponentRepository {
	return &GradeComponentRepository{db: db}
}

// ListByCourseTerm returns the components of a course in a term, ordered by creation.
func (r *GradeComponentRepository) ListByCourseTerm(ctx context.Context, courseID, termID string) ([]models.GradeComponent, error) {
	const query = `SELECT id, course_id, term_id, name, max_score, weight, created_at
	FROM grade_components WHERE course_id = $1 AND term_id = $2 ORDER BY created_at, id`
	var components []models.GradeComponent
	if err := r.db.SelectContext(ctx, &components, query, courseID, termID); err != nil {
		return nil, fmt.Errorf("list grade components: %w", err)
	}
	return components, nil
}
