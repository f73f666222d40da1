package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-engine/internal/models"
	"github.com/noah-isme/academic-engine/pkg/database"
)

// GradeWrite is one enrollment's new scores together with its recomputed course grade.
type GradeWrite struct {
	Scores []models.ComponentScore
	Grade  models.CourseGrade
}

// GradeRepository persists component scores and derived course grades.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs the repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

const courseGradeColumns = `enrollment_id, course_id, scheme, total_score, max_total, percentage, letter,
       quality_point, status, missing_components, is_published, calculated_at, published_at`

// ListScores returns the recorded scores of an enrollment.
func (r *GradeRepository) ListScores(ctx context.Context, enrollmentID string) ([]models.ComponentScore, error) {
	const query = `SELECT id, enrollment_id, component_id, score, updated_at
	FROM component_scores WHERE enrollment_id = $1 ORDER BY component_id`
	var scores []models.ComponentScore
	if err := r.db.SelectContext(ctx, &scores, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list component scores: %w", err)
	}
	return scores, nil
}

// FindCourseGrade returns the stored grade of an enrollment or sql.ErrNoRows.
func (r *GradeRepository) FindCourseGrade(ctx context.Context, enrollmentID string) (*models.CourseGrade, error) {
	query := `SELECT ` + courseGradeColumns + ` FROM course_grades WHERE enrollment_id = $1`
	var grade models.CourseGrade
	if err := r.db.GetContext(ctx, &grade, query, enrollmentID); err != nil {
		return nil, err
	}
	return &grade, nil
}

// SaveGrades writes all scores and grades in a single transaction. A grade that is already
// published is never overwritten; the whole write fails with sql.ErrNoRows instead.
func (r *GradeRepository) SaveGrades(ctx context.Context, writes []GradeWrite) error {
	if len(writes) == 0 {
		return nil
	}
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		for i := range writes {
			if err := r.saveGradeTx(ctx, tx, &writes[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *GradeRepository) saveGradeTx(ctx context.Context, tx *sqlx.Tx, write *GradeWrite) error {
	now := time.Now().UTC()
	const upsertScore = `INSERT INTO component_scores (id, enrollment_id, component_id, score, updated_at)
	VALUES (:id, :enrollment_id, :component_id, :score, :updated_at)
	ON CONFLICT (enrollment_id, component_id) DO UPDATE SET score = EXCLUDED.score, updated_at = EXCLUDED.updated_at`
	for i := range write.Scores {
		score := &write.Scores[i]
		if score.ID == "" {
			score.ID = uuid.NewString()
		}
		if score.EnrollmentID == "" {
			score.EnrollmentID = write.Grade.EnrollmentID
		}
		score.UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, upsertScore, score); err != nil {
			return fmt.Errorf("upsert component score: %w", err)
		}
	}

	if write.Grade.CalculatedAt.IsZero() {
		write.Grade.CalculatedAt = now
	}
	const upsertGrade = `INSERT INTO course_grades (enrollment_id, course_id, scheme, total_score, max_total, percentage,
       letter, quality_point, status, missing_components, is_published, calculated_at)
	VALUES (:enrollment_id, :course_id, :scheme, :total_score, :max_total, :percentage,
       :letter, :quality_point, :status, :missing_components, FALSE, :calculated_at)
	ON CONFLICT (enrollment_id) DO UPDATE SET
       scheme = EXCLUDED.scheme, total_score = EXCLUDED.total_score, max_total = EXCLUDED.max_total,
       percentage = EXCLUDED.percentage, letter = EXCLUDED.letter, quality_point = EXCLUDED.quality_point,
       status = EXCLUDED.status, missing_components = EXCLUDED.missing_components, calculated_at = EXCLUDED.calculated_at
	WHERE course_grades.is_published = FALSE`
	result, err := tx.NamedExecContext(ctx, upsertGrade, &write.Grade)
	if err != nil {
		return fmt.Errorf("upsert course grade: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check course grade rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Publish locks a COMPLETE grade. It returns sql.ErrNoRows when the grade is missing, pending
// or already published.
func (r *GradeRepository) Publish(ctx context.Context, enrollmentID string, at time.Time) error {
	const query = `UPDATE course_grades SET is_published = TRUE, published_at = $2
	WHERE enrollment_id = $1 AND is_published = FALSE AND status = $3`
	result, err := r.db.ExecContext(ctx, query, enrollmentID, at, models.CourseGradeComplete)
	if err != nil {
		return fmt.Errorf("publish course grade: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check publish rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListTermCourses returns every graded attempt of a student with its term and credits.
// Attempts without a stored grade come back PENDING; dropped enrollments are flagged withdrawn.
func (r *GradeRepository) ListTermCourses(ctx context.Context, studentID string) ([]models.TermCourse, error) {
	const query = `SELECT e.id AS enrollment_id, s.course_id, e.term_id, s.credits,
       e.status = 'DROPPED' AS withdrawn,
       COALESCE(g.scheme, 'POINTS') AS scheme,
       COALESCE(g.total_score, 0) AS total_score,
       COALESCE(g.max_total, 0) AS max_total,
       COALESCE(g.percentage, 0) AS percentage,
       COALESCE(g.letter, '') AS letter,
       COALESCE(g.quality_point, 0) AS quality_point,
       COALESCE(g.status, 'PENDING') AS status,
       COALESCE(g.missing_components, '{}') AS missing_components,
       COALESCE(g.is_published, FALSE) AS is_published,
       COALESCE(g.calculated_at, e.enrolled_at) AS calculated_at,
       g.published_at
	FROM enrollments e
	JOIN sections s ON s.id = e.section_id
	LEFT JOIN course_grades g ON g.enrollment_id = e.id
	WHERE e.student_id = $1 AND e.status IN ('ENROLLED', 'DROPPED')
	ORDER BY e.term_id, s.course_id`
	var courses []models.TermCourse
	if err := r.db.SelectContext(ctx, &courses, query, studentID); err != nil {
		return nil, fmt.Errorf("list term courses: %w", err)
	}
	return courses, nil
}

// ListCompletedCourses returns the student's grade outcomes per course for prerequisite checks.
func (r *GradeRepository) ListCompletedCourses(ctx context.Context, studentID string) ([]models.CompletedCourse, error) {
	const query = `SELECT g.course_id, g.letter, g.status, g.is_published
	FROM course_grades g
	JOIN enrollments e ON e.id = g.enrollment_id
	WHERE e.student_id = $1`
	var courses []models.CompletedCourse
	if err := r.db.SelectContext(ctx, &courses, query, studentID); err != nil {
		return nil, fmt.Errorf("list completed courses: %w", err)
	}
	return courses, nil
}
