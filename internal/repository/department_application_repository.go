package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-engine/internal/models"
	"github.com/noah-isme/academic-engine/pkg/database"
)

// ErrStudentAssigned is returned when an approval finds the student already placed.
var ErrStudentAssigned = errors.New("student already assigned to a department")

// DepartmentApplicationRepository persists department applications. The table carries a
// partial unique index so a student never holds two PENDING rows.
type DepartmentApplicationRepository struct {
	db *sqlx.DB
}

// NewDepartmentApplicationRepository constructs the repository.
func NewDepartmentApplicationRepository(db *sqlx.DB) *DepartmentApplicationRepository {
	return &DepartmentApplicationRepository{db: db}
}

const applicationColumns = `id, student_id, department_id, status, submitted_at, processed_at, processed_by, rejection_reason`

// Create inserts a new application. A second PENDING row for the student fails with a
// unique violation from the database.
func (r *DepartmentApplicationRepository) Create(ctx context.Context, app *models.DepartmentApplication) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	const query = `INSERT INTO department_applications (` + applicationColumns + `)
	VALUES (:id, :student_id, :department_id, :status, :submitted_at, :processed_at, :processed_by, :rejection_reason)`
	if _, err := r.db.NamedExecContext(ctx, query, app); err != nil {
		return fmt.Errorf("create department application: %w", err)
	}
	return nil
}

// FindByID returns an application or sql.ErrNoRows.
func (r *DepartmentApplicationRepository) FindByID(ctx context.Context, id string) (*models.DepartmentApplication, error) {
	query := `SELECT ` + applicationColumns + ` FROM department_applications WHERE id = $1`
	var app models.DepartmentApplication
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		return nil, err
	}
	return &app, nil
}

// FindPendingByStudent returns the student's PENDING application, or nil when there is none.
func (r *DepartmentApplicationRepository) FindPendingByStudent(ctx context.Context, studentID string) (*models.DepartmentApplication, error) {
	query := `SELECT ` + applicationColumns + ` FROM department_applications WHERE student_id = $1 AND status = $2 LIMIT 1`
	var app models.DepartmentApplication
	if err := r.db.GetContext(ctx, &app, query, studentID, models.ApplicationStatusPending); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find pending application: %w", err)
	}
	return &app, nil
}

// List returns applications matching the filter, latest first.
func (r *DepartmentApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.DepartmentApplication, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + applicationColumns + ` FROM department_applications`)

	var conditions []string
	var args []interface{}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.DepartmentID != "" {
		args = append(args, filter.DepartmentID)
		conditions = append(conditions, fmt.Sprintf("department_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY submitted_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var apps []models.DepartmentApplication
	if err := r.db.SelectContext(ctx, &apps, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list department applications: %w", err)
	}
	return apps, nil
}

func updateProcessed(ctx context.Context, exec sqlx.ExtContext, app *models.DepartmentApplication) error {
	const query = `UPDATE department_applications
	SET status = :status, processed_at = :processed_at, processed_by = :processed_by, rejection_reason = :rejection_reason
	WHERE id = :id AND status = 'PENDING'`
	result, err := sqlx.NamedExecContext(ctx, exec, query, app)
	if err != nil {
		return fmt.Errorf("update department application: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check application update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateProcessed persists a reject or withdraw outcome. It returns sql.ErrNoRows when the
// application is no longer PENDING.
func (r *DepartmentApplicationRepository) UpdateProcessed(ctx context.Context, app *models.DepartmentApplication) error {
	return updateProcessed(ctx, r.db, app)
}

// Approve persists an approval in one transaction: the application moves to APPROVED, the
// student is placed into the department, the department takes a seat and the foreclosed
// applications are rejected. Nothing is written when any step fails.
func (r *DepartmentApplicationRepository) Approve(ctx context.Context, approved *models.DepartmentApplication, foreclosed []models.DepartmentApplication) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := updateProcessed(ctx, tx, approved); err != nil {
			return err
		}

		const assign = `UPDATE students SET department_id = $2, updated_at = now() WHERE id = $1 AND department_id IS NULL`
		result, err := tx.ExecContext(ctx, assign, approved.StudentID, approved.DepartmentID)
		if err != nil {
			return fmt.Errorf("assign student department: %w", err)
		}
		if rows, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("check assignment rows: %w", err)
		} else if rows == 0 {
			return ErrStudentAssigned
		}

		const seat = `UPDATE departments SET enrolled_count = enrolled_count + 1 WHERE id = $1 AND enrolled_count < capacity`
		result, err = tx.ExecContext(ctx, seat, approved.DepartmentID)
		if err != nil {
			return fmt.Errorf("take department seat: %w", err)
		}
		if rows, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("check seat rows: %w", err)
		} else if rows == 0 {
			return ErrNoCapacity
		}

		for i := range foreclosed {
			if err := updateProcessed(ctx, tx, &foreclosed[i]); err != nil && !errors.Is(err, sql.ErrNoRows) {
				return err
			}
		}
		return nil
	})
}
