package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-engine/internal/models"
)

func TestEnrollmentRepositoryCommitTakesSeat(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sections SET enrolled_count = enrolled_count + 1 WHERE id = $1 AND enrolled_count < capacity")).
		WithArgs("sec-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	enrollment := &models.Enrollment{StudentID: "stu-1", SectionID: "sec-1", TermID: "t1", Status: models.EnrollmentStatusEnrolled}
	require.NoError(t, repo.Commit(context.Background(), enrollment, true))
	assert.NotEmpty(t, enrollment.ID)
	assert.False(t, enrollment.EnrolledAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCommitFullSection(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE sections SET enrolled_count").WithArgs("sec-1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Commit(context.Background(), &models.Enrollment{SectionID: "sec-1", Status: models.EnrollmentStatusEnrolled}, true)
	assert.True(t, errors.Is(err, ErrNoCapacity))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCommitWaitlistedSkipsSeat(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Commit(context.Background(), &models.Enrollment{SectionID: "sec-1", Status: models.EnrollmentStatusWaitlisted}, true))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryDrop(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)
	at := time.Now()
	enrollment := &models.Enrollment{ID: "enr-1", SectionID: "sec-1", Status: models.EnrollmentStatusEnrolled}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $3")).
		WithArgs("enr-1", models.EnrollmentStatusEnrolled, models.EnrollmentStatusDropped, at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sections SET enrolled_count = GREATEST")).
		WithArgs("sec-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, repo.Drop(context.Background(), enrollment, at))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $3")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()
	assert.True(t, errors.Is(repo.Drop(context.Background(), enrollment, at), sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "section_id", "term_id", "status", "bypassed", "bypass_reasons", "enrolled_at", "dropped_at",
		"sec_course_id", "sec_code", "sec_capacity", "sec_enrolled_count", "sec_credits", "sec_schedule", "sec_prerequisites"}).
		AddRow("enr-1", "stu-1", "sec-1", "t1", "ENROLLED", false, "{}", time.Now(), nil,
			"cs101", "A", 30, 12, 3, `[{"day":"MON","start":"09:00","end":"10:30"}]`, "{ma100}")
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments e JOIN sections s")).
		WithArgs("stu-1", models.EnrollmentStatusEnrolled, models.EnrollmentStatusWaitlisted).
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), models.EnrollmentFilter{
		StudentID: "stu-1",
		Status:    []models.EnrollmentStatus{models.EnrollmentStatusEnrolled, models.EnrollmentStatusWaitlisted},
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "sec-1", list[0].Section.ID)
	assert.Equal(t, 3, list[0].Section.Credits)
	require.Len(t, list[0].Section.Schedule, 1)
	assert.Equal(t, "10:30", list[0].Section.Schedule[0].End)
	assert.Equal(t, []string{"ma100"}, []string(list[0].Section.Prerequisites))
	require.NoError(t, mock.ExpectationsWereMet())
}
