package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-engine/internal/models"
	appErrors "github.com/noah-isme/academic-engine/pkg/errors"
	"github.com/noah-isme/academic-engine/pkg/jobs"
)

type termCourseStub struct {
	courses map[string][]models.TermCourse
	calls   int
}

func (s *termCourseStub) ListTermCourses(ctx context.Context, studentID string) ([]models.TermCourse, error) {
	s.calls++
	return s.courses[studentID], nil
}

type studentTermStub struct {
	terms []models.Term
}

func (s studentTermStub) ListByStudent(ctx context.Context, studentID string) ([]models.Term, error) {
	return s.terms, nil
}

func gradedCourse(termID, courseID string, letter models.LetterGrade, qp float64, credits int) models.TermCourse {
	return models.TermCourse{
		CourseGrade: models.CourseGrade{
			EnrollmentID: "enr-" + courseID,
			CourseID:     courseID,
			Letter:       letter,
			QualityPoint: qp,
			Status:       models.CourseGradeComplete,
			IsPublished:  true,
		},
		TermID:  termID,
		Credits: credits,
	}
}

func newStandingFixture(queue jobDispatcher) (*StandingService, *termCourseStub, *memoryCacheRepo) {
	courses := &termCourseStub{courses: map[string][]models.TermCourse{
		"stu-1": {
			gradedCourse("t1", "cs101", models.LetterAPlus, 4.0, 3),
			gradedCourse("t1", "ma101", models.LetterAPlus, 4.0, 3),
			gradedCourse("t2", "cs201", models.LetterC, 2.0, 3),
			gradedCourse("t2", "ma201", models.LetterC, 2.0, 3),
		},
	}}
	terms := studentTermStub{terms: []models.Term{
		{ID: "t1", Name: "2024 Odd", Status: models.TermStatusCompleted},
		{ID: "t2", Name: "2024 Even", Status: models.TermStatusActive},
	}}
	students := &studentRepoStub{students: map[string]models.Student{"stu-1": {ID: "stu-1", YearLevel: 2}}}
	repo := newMemoryCacheRepo()
	cache := NewCacheService(repo, nil, 0, nil, true)

	svc := NewStandingService(courses, terms, students, cache, queue, nil)
	svc.now = clock
	return svc, courses, repo
}

func TestStandingServiceComputesAndCaches(t *testing.T) {
	svc, courses, repo := newStandingFixture(nil)

	standing, err := svc.Standing(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 3.0, standing.CumulativeGPA)
	assert.Equal(t, models.StandingVeryGood, standing.Label)
	assert.Equal(t, fixedNow, standing.CalculatedAt)
	require.Len(t, standing.Terms, 2)
	assert.Equal(t, "t2", standing.Terms[0].TermID)
	assert.Len(t, standing.Terms[0].Courses, 2)
	assert.True(t, repo.has(StandingCacheKey("stu-1")))

	_, err = svc.Standing(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 1, courses.calls)
}

func TestStandingServiceUnknownStudent(t *testing.T) {
	svc, _, _ := newStandingFixture(nil)
	_, err := svc.Standing(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestStandingServiceRequestRefresh(t *testing.T) {
	queue := &queueStub{}
	svc, _, _ := newStandingFixture(queue)

	svc.RequestRefresh(context.Background(), "stu-1")
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, JobTypeStandingRefresh, queue.jobs[0].Type)
	assert.Equal(t, StandingCacheKey("stu-1"), queue.jobs[0].Key)
	assert.Equal(t, "stu-1", queue.jobs[0].Payload)
}

func TestStandingServiceRequestRefreshDropsCachedStanding(t *testing.T) {
	queue := &queueStub{}
	svc, courses, repo := newStandingFixture(queue)

	before, err := svc.Standing(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 3.0, before.CumulativeGPA)

	for i := range courses.courses["stu-1"] {
		courses.courses["stu-1"][i].Letter = models.LetterF
		courses.courses["stu-1"][i].QualityPoint = 0
	}
	svc.RequestRefresh(context.Background(), "stu-1")
	require.Len(t, queue.jobs, 1)
	assert.False(t, repo.has(StandingCacheKey("stu-1")))

	after, err := svc.Standing(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, after.CumulativeGPA)
	assert.NotEqual(t, models.StandingVeryGood, after.Label)
	assert.Equal(t, 2, courses.calls)
}

func TestStandingServiceRefreshFallsBackToInvalidation(t *testing.T) {
	queue := &queueStub{err: jobs.ErrNotStarted}
	svc, _, repo := newStandingFixture(queue)

	_, err := svc.Standing(context.Background(), "stu-1")
	require.NoError(t, err)
	svc.RequestRefresh(context.Background(), "stu-1")
	assert.False(t, repo.has(StandingCacheKey("stu-1")))
}

func TestStandingWorkerHandle(t *testing.T) {
	svc, courses, repo := newStandingFixture(nil)
	worker := NewStandingWorker(svc, nil, nil)

	_, err := svc.Standing(context.Background(), "stu-1")
	require.NoError(t, err)

	courses.courses["stu-1"] = append(courses.courses["stu-1"], gradedCourse("t2", "ph201", models.LetterF, 0, 6))
	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "j1", Type: JobTypeStandingRefresh, Payload: "stu-1"}))
	assert.Contains(t, repo.deleted, StandingCacheKey("stu-1"))

	standing, err := svc.Standing(context.Background(), "stu-1")
	require.NoError(t, err)
	// (4*6 + 2*6 + 0*6) / 18
	assert.Equal(t, 2.0, standing.CumulativeGPA)
	assert.Equal(t, 2, courses.calls)

	assert.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "j2", Payload: "missing"}))
	assert.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "j3", Payload: 42}))
}
