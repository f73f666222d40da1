package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-engine/internal/academic"
	"github.com/noah-isme/academic-engine/internal/dto"
	"github.com/noah-isme/academic-engine/internal/models"
	"github.com/noah-isme/academic-engine/internal/repository"
	appErrors "github.com/noah-isme/academic-engine/pkg/errors"
)

type enrollmentStoreStub struct {
	byID       map[string]models.Enrollment
	current    []models.EnrolledSection
	commitErrs []error
	committed  []models.Enrollment
	enforced   []bool
	dropped    []string
	dropErr    error
}

func (s *enrollmentStoreStub) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	e, ok := s.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

func (s *enrollmentStoreStub) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrolledSection, error) {
	return s.current, nil
}

func (s *enrollmentStoreStub) Commit(ctx context.Context, enrollment *models.Enrollment, enforceCapacity bool) error {
	s.enforced = append(s.enforced, enforceCapacity)
	if len(s.commitErrs) > 0 {
		err := s.commitErrs[0]
		s.commitErrs = s.commitErrs[1:]
		if err != nil {
			return err
		}
	}
	s.committed = append(s.committed, *enrollment)
	return nil
}

func (s *enrollmentStoreStub) Drop(ctx context.Context, enrollment *models.Enrollment, at time.Time) error {
	if s.dropErr != nil {
		return s.dropErr
	}
	s.dropped = append(s.dropped, enrollment.ID)
	return nil
}

type completedCourseStub map[string][]models.CompletedCourse

func (s completedCourseStub) ListCompletedCourses(ctx context.Context, studentID string) ([]models.CompletedCourse, error) {
	return s[studentID], nil
}

func newEnrollmentFixture(policy academic.EnrollmentPolicy) (*EnrollmentService, *enrollmentStoreStub, *refresherStub) {
	store := &enrollmentStoreStub{
		byID: map[string]models.Enrollment{
			"enr-1": {ID: "enr-1", StudentID: "stu-1", SectionID: "ma101-a", TermID: "t1", Status: models.EnrollmentStatusEnrolled},
			"enr-2": {ID: "enr-2", StudentID: "stu-1", SectionID: "ph101-a", TermID: "t1", Status: models.EnrollmentStatusDropped},
		},
		current: []models.EnrolledSection{{
			Enrollment: models.Enrollment{ID: "enr-1", StudentID: "stu-1", SectionID: "ma101-a", TermID: "t1", Status: models.EnrollmentStatusEnrolled},
			Section:    models.Section{ID: "ma101-a", CourseID: "ma101", TermID: "t1", Credits: 12, Schedule: models.MeetingList{{Day: "WED", Start: "08:00", End: "10:00"}}},
		}},
	}
	sections := sectionRepoStub{
		"cs201-a": {ID: "cs201-a", CourseID: "cs201", TermID: "t1", Capacity: 30, EnrolledCount: 3, Credits: 3,
			Schedule: models.MeetingList{{Day: "MON", Start: "09:00", End: "10:30"}}, Prerequisites: []string{"cs101"}},
		"ai301-a": {ID: "ai301-a", CourseID: "ai301", TermID: "t1", Capacity: 30, Credits: 3, Prerequisites: []string{"cs201"}},
		"full-a": {ID: "full-a", CourseID: "art101", TermID: "t1", Capacity: 1, EnrolledCount: 1, Credits: 3},
		"big-a":  {ID: "big-a", CourseID: "thesis", TermID: "t1", Capacity: 10, Credits: 8},
	}
	completed := completedCourseStub{"stu-1": {{CourseID: "cs101", Letter: models.LetterB, Status: models.CourseGradeComplete, IsPublished: true}}}
	students := &studentRepoStub{
		students:   map[string]models.Student{"stu-1": {ID: "stu-1"}, "stu-2": {ID: "stu-2"}},
		maxCredits: map[string]int{"stu-2": 24},
	}
	refresher := &refresherStub{}
	svc := NewEnrollmentService(store, sections, completed, students, refresher, nil, policy, 18, nil, nil)
	svc.now = clock
	return svc, store, refresher
}

func TestEnrollmentServiceCheckMany(t *testing.T) {
	svc, _, _ := newEnrollmentFixture(academic.EnrollmentPolicy{})

	checks, err := svc.CheckMany(context.Background(), dto.EnrollmentCheckRequest{StudentID: "stu-1", SectionIDs: []string{"ai301-a", "cs201-a", "big-a"}})
	require.NoError(t, err)
	require.Len(t, checks, 3)
	assert.Equal(t, "ai301-a", checks[0].SectionID)
	assert.Equal(t, []string{"cs201"}, checks[0].MissingPrerequisites)
	assert.True(t, checks[1].Valid)
	// 12 current + 8 exceeds the default limit of 18
	assert.False(t, checks[2].Checks[academic.CheckCreditLoad])
	assert.Equal(t, 18, checks[2].CreditLoad.MaxCredits)

	_, err = svc.CheckMany(context.Background(), dto.EnrollmentCheckRequest{StudentID: "stu-1", SectionIDs: []string{"cs201-a", "nope"}})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = svc.CheckMany(context.Background(), dto.EnrollmentCheckRequest{StudentID: "stu-1"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Check(context.Background(), "ghost", "cs201-a")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestEnrollmentServiceEnroll(t *testing.T) {
	svc, store, refresher := newEnrollmentFixture(academic.EnrollmentPolicy{})

	outcome, err := svc.Enroll(context.Background(), studentActor("stu-1"), dto.EnrollRequest{StudentID: "stu-1", SectionID: "cs201-a"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusEnrolled, outcome.Enrollment.Status)
	assert.Equal(t, "t1", outcome.Enrollment.TermID)
	assert.False(t, outcome.Enrollment.Bypassed)
	assert.True(t, outcome.Check.Valid)
	assert.Equal(t, []bool{true}, store.enforced)
	assert.Equal(t, []string{"stu-1"}, refresher.students)
}

func TestEnrollmentServiceEnrollFailuresAndBypass(t *testing.T) {
	svc, store, _ := newEnrollmentFixture(academic.EnrollmentPolicy{})
	req := dto.EnrollRequest{StudentID: "stu-1", SectionID: "ai301-a"}

	_, err := svc.Enroll(context.Background(), studentActor("stu-1"), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidationFailed))
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	check, ok := appErr.Details.(academic.EnrollmentCheck)
	require.True(t, ok)
	assert.Equal(t, []string{academic.CheckPrerequisites}, check.FailedChecks())

	req.Bypass = true
	_, err = svc.Enroll(context.Background(), studentActor("stu-1"), req)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	outcome, err := svc.Enroll(context.Background(), adminActor(), req)
	require.NoError(t, err)
	assert.True(t, outcome.Enrollment.Bypassed)
	assert.NotEmpty(t, outcome.Enrollment.BypassReasons)
	assert.Equal(t, []bool{false}, store.enforced)

	_, err = svc.Enroll(context.Background(), adminActor(), dto.EnrollRequest{StudentID: "stu-1", SectionID: "big-a", Bypass: true})
	assert.True(t, errors.Is(err, appErrors.ErrCreditLimitExceeded))
	assert.Len(t, store.committed, 1)
}

func TestEnrollmentServiceStudentCannotEnrollOthers(t *testing.T) {
	svc, store, _ := newEnrollmentFixture(academic.EnrollmentPolicy{})
	_, err := svc.Enroll(context.Background(), studentActor("stu-2"), dto.EnrollRequest{StudentID: "stu-1", SectionID: "cs201-a"})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	assert.Empty(t, store.committed)
}

func TestEnrollmentServiceWaitlist(t *testing.T) {
	svc, _, _ := newEnrollmentFixture(academic.EnrollmentPolicy{WaitlistEnabled: true})
	outcome, err := svc.Enroll(context.Background(), studentActor("stu-1"), dto.EnrollRequest{StudentID: "stu-1", SectionID: "full-a"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusWaitlisted, outcome.Enrollment.Status)

	svc, _, _ = newEnrollmentFixture(academic.EnrollmentPolicy{})
	_, err = svc.Enroll(context.Background(), studentActor("stu-1"), dto.EnrollRequest{StudentID: "stu-1", SectionID: "full-a"})
	assert.True(t, errors.Is(err, appErrors.ErrValidationFailed))
}

func TestEnrollmentServiceSeatLostToConcurrentEnrollment(t *testing.T) {
	svc, store, _ := newEnrollmentFixture(academic.EnrollmentPolicy{WaitlistEnabled: true})
	store.commitErrs = []error{repository.ErrNoCapacity}

	outcome, err := svc.Enroll(context.Background(), studentActor("stu-1"), dto.EnrollRequest{StudentID: "stu-1", SectionID: "cs201-a"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusWaitlisted, outcome.Enrollment.Status)

	svc, store, _ = newEnrollmentFixture(academic.EnrollmentPolicy{})
	store.commitErrs = []error{repository.ErrNoCapacity}
	_, err = svc.Enroll(context.Background(), studentActor("stu-1"), dto.EnrollRequest{StudentID: "stu-1", SectionID: "cs201-a"})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestEnrollmentServiceDrop(t *testing.T) {
	svc, store, refresher := newEnrollmentFixture(academic.EnrollmentPolicy{})

	_, err := svc.Drop(context.Background(), studentActor("stu-2"), "enr-1")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	dropped, err := svc.Drop(context.Background(), studentActor("stu-1"), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusDropped, dropped.Status)
	require.NotNil(t, dropped.DroppedAt)
	assert.Equal(t, []string{"enr-1"}, store.dropped)
	assert.Equal(t, []string{"stu-1"}, refresher.students)

	_, err = svc.Drop(context.Background(), adminActor(), "enr-2")
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	store.dropErr = sql.ErrNoRows
	_, err = svc.Drop(context.Background(), adminActor(), "enr-1")
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	_, err = svc.Drop(context.Background(), adminActor(), "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
