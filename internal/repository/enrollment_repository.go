package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/academic-engine/internal/models"
	"github.com/noah-isme/academic-engine/pkg/database"
)

// EnrollmentRepository handles persistence of section enrollments and their seat counters.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `id, student_id, section_id, term_id, status, bypassed, bypass_reasons, enrolled_at, dropped_at`

// FindByID returns an enrollment or sql.ErrNoRows.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

type enrolledSectionRow struct {
	models.Enrollment
	SecCourseID      string             `db:"sec_course_id"`
	SecCode          string             `db:"sec_code"`
	SecCapacity      int                `db:"sec_capacity"`
	SecEnrolledCount int                `db:"sec_enrolled_count"`
	SecCredits       int                `db:"sec_credits"`
	SecSchedule      models.MeetingList `db:"sec_schedule"`
	SecPrerequisites pq.StringArray     `db:"sec_prerequisites"`
}

func (row enrolledSectionRow) toModel() models.EnrolledSection {
	return models.EnrolledSection{
		Enrollment: row.Enrollment,
		Section: models.Section{
			ID:            row.SectionID,
			CourseID:      row.SecCourseID,
			TermID:        row.TermID,
			Code:          row.SecCode,
			Capacity:      row.SecCapacity,
			EnrolledCount: row.SecEnrolledCount,
			Credits:       row.SecCredits,
			Schedule:      row.SecSchedule,
			Prerequisites: row.SecPrerequisites,
		},
	}
}

// List returns enrollments joined with their sections, filtered by the criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrolledSection, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT e.id, e.student_id, e.section_id, e.term_id, e.status, e.bypassed, e.bypass_reasons,
       e.enrolled_at, e.dropped_at, s.course_id AS sec_course_id, s.code AS sec_code, s.capacity AS sec_capacity,
       s.enrolled_count AS sec_enrolled_count, s.credits AS sec_credits, s.schedule AS sec_schedule,
       s.prerequisites AS sec_prerequisites
	FROM enrollments e JOIN sections s ON s.id = e.section_id`)

	var conditions []string
	var args []interface{}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)))
	}
	if filter.SectionID != "" {
		args = append(args, filter.SectionID)
		conditions = append(conditions, fmt.Sprintf("e.section_id = $%d", len(args)))
	}
	if filter.TermID != "" {
		args = append(args, filter.TermID)
		conditions = append(conditions, fmt.Sprintf("e.term_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("e.status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY e.enrolled_at")

	var rows []enrolledSectionRow
	if err := r.db.SelectContext(ctx, &rows, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	result := make([]models.EnrolledSection, len(rows))
	for i, row := range rows {
		result[i] = row.toModel()
	}
	return result, nil
}

// Commit inserts the enrollment and, for ENROLLED, takes a seat in the same transaction.
// With enforceCapacity the seat is only taken while enrolled_count < capacity, otherwise
// ErrNoCapacity is returned and nothing is written.
func (r *EnrollmentRepository) Commit(ctx context.Context, enrollment *models.Enrollment, enforceCapacity bool) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	if enrollment.BypassReasons == nil {
		enrollment.BypassReasons = []string{}
	}
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if enrollment.Status == models.EnrollmentStatusEnrolled {
			query := `UPDATE sections SET enrolled_count = enrolled_count + 1 WHERE id = $1`
			if enforceCapacity {
				query += ` AND enrolled_count < capacity`
			}
			result, err := tx.ExecContext(ctx, query, enrollment.SectionID)
			if err != nil {
				return fmt.Errorf("take section seat: %w", err)
			}
			rows, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("check section seat rows: %w", err)
			}
			if rows == 0 {
				return ErrNoCapacity
			}
		}
		const insert = `INSERT INTO enrollments (` + enrollmentColumns + `)
		VALUES (:id, :student_id, :section_id, :term_id, :status, :bypassed, :bypass_reasons, :enrolled_at, :dropped_at)`
		if _, err := tx.NamedExecContext(ctx, insert, enrollment); err != nil {
			return fmt.Errorf("create enrollment: %w", err)
		}
		return nil
	})
}

// Drop marks an enrollment DROPPED if it is still in the expected status and releases its
// seat when it held one. It returns sql.ErrNoRows when the status moved meanwhile.
func (r *EnrollmentRepository) Drop(ctx context.Context, enrollment *models.Enrollment, at time.Time) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		const update = `UPDATE enrollments SET status = $3, dropped_at = $4 WHERE id = $1 AND status = $2`
		result, err := tx.ExecContext(ctx, update, enrollment.ID, enrollment.Status, models.EnrollmentStatusDropped, at)
		if err != nil {
			return fmt.Errorf("drop enrollment: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("check drop rows: %w", err)
		}
		if rows == 0 {
			return sql.ErrNoRows
		}
		if enrollment.Status == models.EnrollmentStatusEnrolled {
			const release = `UPDATE sections SET enrolled_count = GREATEST(enrolled_count - 1, 0) WHERE id = $1`
			if _, err := tx.ExecContext(ctx, release, enrollment.SectionID); err != nil {
				return fmt.Errorf("release section seat: %w", err)
			}
		}
		return nil
	})
}
