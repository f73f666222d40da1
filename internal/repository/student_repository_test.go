package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-engine/internal/models"
)

func TestStudentRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_no", "full_name", "batch_id", "year_level", "department_id", "active", "created_at", "updated_at"}).
		AddRow("stu-1", "2024001", "Student", "b-2024", 2, nil, true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE id = $1")).
		WithArgs("stu-1").
		WillReturnRows(rows)

	student, err := repo.FindByID(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 2, student.YearLevel)
	assert.False(t, student.HasDepartment())

	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE id = $1")).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.FindByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryMaxCredits(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT b.max_credits FROM students s JOIN batches b")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"max_credits"}).AddRow(24))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT b.max_credits FROM students s JOIN batches b")).
		WithArgs("stu-2").
		WillReturnError(sql.ErrNoRows)

	limit, err := repo.MaxCredits(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 24, limit)

	limit, err = repo.MaxCredits(context.Background(), "stu-2")
	require.NoError(t, err)
	assert.Zero(t, limit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryFindByIDs(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	rows := sqlmock.NewRows([]string{"id", "course_id", "term_id", "code", "capacity", "enrolled_count", "credits", "schedule", "prerequisites"}).
		AddRow("sec-1", "cs201", "t1", "A", 30, 12, 3, []byte(`[{"day":"MON","start":"09:00","end":"10:30"}]`), "{cs101}").
		AddRow("sec-2", "ma101", "t1", "B", 40, 0, 4, []byte(`[]`), "{}")
	mock.ExpectQuery(regexp.QuoteMeta("FROM sections WHERE id IN (?, ?, ?)")).
		WithArgs("sec-1", "sec-2", "missing").
		WillReturnRows(rows)

	sections, err := repo.FindByIDs(context.Background(), []string{"sec-1", "sec-2", "missing"})
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, []string{"cs101"}, []string(sections["sec-1"].Prerequisites))
	require.Len(t, sections["sec-1"].Schedule, 1)
	assert.Equal(t, "MON", sections["sec-1"].Schedule[0].Day)
	assert.Empty(t, sections["sec-2"].Schedule)

	empty, err := repo.FindByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDepartmentAndTermRepositories(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("FROM departments ORDER BY code")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "name", "min_gpa", "capacity", "enrolled_count", "min_year", "max_year", "created_at"}).
			AddRow("dep-1", "CS", "Computer Science", 3.0, 40, 39, 2, 0, time.Now()))
	departments, err := NewDepartmentRepository(db).List(context.Background())
	require.NoError(t, err)
	require.Len(t, departments, 1)
	assert.Equal(t, 3.0, departments[0].MinGPA)

	start := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM terms t JOIN enrollments e ON e.term_id = t.id")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "status", "start_date", "end_date"}).
			AddRow("t2", "2025 Odd", "ACTIVE", start, start.AddDate(0, 5, 0)))
	terms, err := NewTermRepository(db).ListByStudent(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, terms, 1)
	assert.Equal(t, models.TermStatusActive, terms[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeComponentRepositoryListByCourseTerm(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("FROM grade_components WHERE course_id = $1 AND term_id = $2")).
		WithArgs("cs101", "t1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "course_id", "term_id", "name", "max_score", "weight", "created_at"}).
			AddRow("mid", "cs101", "t1", "Midterm", 40.0, 40.0, time.Now()).
			AddRow("final", "cs101", "t1", "Final", 60.0, 60.0, time.Now()))

	components, err := NewGradeComponentRepository(db).ListByCourseTerm(context.Background(), "cs101", "t1")
	require.NoError(t, err)
	require.Len(t, components, 2)
	assert.Equal(t, 60.0, components[1].MaxScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}
