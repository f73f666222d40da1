package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-engine/internal/dto"
	"github.com/noah-isme/academic-engine/internal/models"
	"github.com/noah-isme/academic-engine/internal/repository"
	appErrors "github.com/noah-isme/academic-engine/pkg/errors"
)

type gradeStoreStub struct {
	scores    map[string][]models.ComponentScore
	grades    map[string]models.CourseGrade
	saveErr   error
	saves     [][]repository.GradeWrite
	published []string
}

func newGradeStoreStub() *gradeStoreStub {
	return &gradeStoreStub{scores: map[string][]models.ComponentScore{}, grades: map[string]models.CourseGrade{}}
}

func (s *gradeStoreStub) ListScores(ctx context.Context, enrollmentID string) ([]models.ComponentScore, error) {
	return s.scores[enrollmentID], nil
}

func (s *gradeStoreStub) FindCourseGrade(ctx context.Context, enrollmentID string) (*models.CourseGrade, error) {
	grade, ok := s.grades[enrollmentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &grade, nil
}

func (s *gradeStoreStub) SaveGrades(ctx context.Context, writes []repository.GradeWrite) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves = append(s.saves, writes)
	for _, w := range writes {
		s.grades[w.Grade.EnrollmentID] = w.Grade
		s.scores[w.Grade.EnrollmentID] = append(s.scores[w.Grade.EnrollmentID], w.Scores...)
	}
	return nil
}

func (s *gradeStoreStub) Publish(ctx context.Context, enrollmentID string, at time.Time) error {
	s.published = append(s.published, enrollmentID)
	return nil
}

type enrollmentFinderStub map[string]models.Enrollment

func (s enrollmentFinderStub) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	e, ok := s[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

type sectionRepoStub map[string]models.Section

func (s sectionRepoStub) FindByID(ctx context.Context, id string) (*models.Section, error) {
	section, ok := s[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &section, nil
}

func (s sectionRepoStub) FindByIDs(ctx context.Context, ids []string) (map[string]models.Section, error) {
	result := make(map[string]models.Section)
	for _, id := range ids {
		if section, ok := s[id]; ok {
			result[id] = section
		}
	}
	return result, nil
}

type componentListerStub []models.GradeComponent

func (s componentListerStub) ListByCourseTerm(ctx context.Context, courseID, termID string) ([]models.GradeComponent, error) {
	return s, nil
}

func score(enrollmentID, componentID string, value float64) dto.RecordScoreRequest {
	return dto.RecordScoreRequest{EnrollmentID: enrollmentID, ComponentID: componentID, Score: &value}
}

func newGradeFixture() (*GradeService, *gradeStoreStub, *refresherStub) {
	store := newGradeStoreStub()
	enrollments := enrollmentFinderStub{
		"enr-1": {ID: "enr-1", StudentID: "stu-1", SectionID: "sec-1", TermID: "t1", Status: models.EnrollmentStatusEnrolled},
		"enr-2": {ID: "enr-2", StudentID: "stu-2", SectionID: "sec-1", TermID: "t1", Status: models.EnrollmentStatusEnrolled},
		"enr-3": {ID: "enr-3", StudentID: "stu-3", SectionID: "sec-1", TermID: "t1", Status: models.EnrollmentStatusDropped},
	}
	sections := sectionRepoStub{"sec-1": {ID: "sec-1", CourseID: "cs101", TermID: "t1", Credits: 3}}
	components := componentListerStub{
		{ID: "mid", CourseID: "cs101", TermID: "t1", MaxScore: 40, Weight: 40},
		{ID: "final", CourseID: "cs101", TermID: "t1", MaxScore: 60, Weight: 60},
	}
	refresher := &refresherStub{}
	svc := NewGradeService(store, enrollments, sections, components, refresher, nil, models.GradeSchemePoints, nil, nil)
	svc.now = clock
	return svc, store, refresher
}

func TestGradeServiceRecordScorePending(t *testing.T) {
	svc, store, refresher := newGradeFixture()

	grade, err := svc.RecordScore(context.Background(), score("enr-1", "mid", 36))
	require.NoError(t, err)
	assert.Equal(t, models.CourseGradePending, grade.Status)
	assert.Empty(t, grade.Letter)
	assert.Equal(t, []string{"final"}, []string(grade.MissingComponents))
	assert.Len(t, store.saves, 1)
	assert.Equal(t, []string{"stu-1"}, refresher.students)
}

func TestGradeServiceRecordScoreCompletes(t *testing.T) {
	svc, _, _ := newGradeFixture()

	_, err := svc.RecordScore(context.Background(), score("enr-1", "mid", 36))
	require.NoError(t, err)
	grade, err := svc.RecordScore(context.Background(), score("enr-1", "final", 54))
	require.NoError(t, err)
	assert.Equal(t, models.CourseGradeComplete, grade.Status)
	assert.Equal(t, 90.0, grade.Percentage)
	assert.Equal(t, models.LetterA, grade.Letter)
	assert.Equal(t, 3.75, grade.QualityPoint)
	assert.Equal(t, fixedNow, grade.CalculatedAt)

	// a rescore replaces the earlier value of the same component
	grade, err = svc.RecordScore(context.Background(), score("enr-1", "mid", 21))
	require.NoError(t, err)
	assert.Equal(t, 75.0, grade.Percentage)
	assert.Equal(t, models.LetterCPlus, grade.Letter)
}

func TestGradeServiceRecordScoreRejections(t *testing.T) {
	svc, store, refresher := newGradeFixture()

	_, err := svc.RecordScore(context.Background(), score("enr-1", "mid", 41))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.RecordScore(context.Background(), score("enr-1", "lab", 5))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.RecordScore(context.Background(), dto.RecordScoreRequest{EnrollmentID: "enr-1", ComponentID: "mid"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.RecordScore(context.Background(), score("missing", "mid", 10))
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = svc.RecordScore(context.Background(), score("enr-3", "mid", 10))
	assert.True(t, errors.Is(err, appErrors.ErrPreconditionFailed))

	assert.Empty(t, store.saves)
	assert.Empty(t, refresher.students)
}

func TestGradeServicePublishedGradeIsLocked(t *testing.T) {
	svc, store, _ := newGradeFixture()
	store.grades["enr-1"] = models.CourseGrade{EnrollmentID: "enr-1", Status: models.CourseGradeComplete, Letter: models.LetterB, IsPublished: true}

	_, err := svc.RecordScore(context.Background(), score("enr-1", "mid", 10))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrGradeLocked))
	assert.Empty(t, store.saves)
}

func TestGradeServicePublishRaceIsLocked(t *testing.T) {
	svc, store, _ := newGradeFixture()
	store.saveErr = sql.ErrNoRows

	_, err := svc.RecordScore(context.Background(), score("enr-1", "mid", 10))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrGradeLocked))
}

func TestGradeServiceBulkAtomic(t *testing.T) {
	svc, store, refresher := newGradeFixture()

	_, err := svc.BulkRecordScores(context.Background(), dto.BulkScoresRequest{Items: []dto.RecordScoreRequest{
		score("enr-1", "mid", 30),
		score("enr-2", "mid", 99),
	}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, store.saves)

	result, err := svc.BulkRecordScores(context.Background(), dto.BulkScoresRequest{Mode: dto.BulkModeAtomic, Items: []dto.RecordScoreRequest{
		score("enr-1", "mid", 30),
		score("enr-1", "final", 60),
		score("enr-2", "mid", 40),
	}})
	require.NoError(t, err)
	assert.Equal(t, 3, result.SuccessCount)
	require.Len(t, result.Grades, 2)
	assert.Equal(t, models.CourseGradeComplete, result.Grades[0].Status)
	assert.Equal(t, models.CourseGradePending, result.Grades[1].Status)
	require.Len(t, store.saves, 1)
	assert.Len(t, store.saves[0], 2)
	assert.ElementsMatch(t, []string{"stu-1", "stu-2"}, refresher.students)
}

func TestGradeServiceBulkPartialOnError(t *testing.T) {
	svc, store, refresher := newGradeFixture()

	result, err := svc.BulkRecordScores(context.Background(), dto.BulkScoresRequest{Mode: dto.BulkModePartialOnError, Items: []dto.RecordScoreRequest{
		score("enr-1", "mid", 30),
		score("enr-2", "mid", 99),
		score("missing", "mid", 1),
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)
	require.Len(t, result.Failures, 2)
	assert.Equal(t, "enr-2", result.Failures[0].EnrollmentID)
	assert.Equal(t, "missing", result.Failures[1].EnrollmentID)
	assert.Len(t, store.saves, 1)
	assert.Equal(t, []string{"stu-1"}, refresher.students)
}

func TestGradeServicePublish(t *testing.T) {
	svc, store, refresher := newGradeFixture()

	_, err := svc.Publish(context.Background(), "enr-1")
	assert.True(t, errors.Is(err, appErrors.ErrPreconditionFailed))

	_, err = svc.RecordScore(context.Background(), score("enr-1", "mid", 36))
	require.NoError(t, err)
	_, err = svc.Publish(context.Background(), "enr-1")
	assert.True(t, errors.Is(err, appErrors.ErrPreconditionFailed))

	_, err = svc.RecordScore(context.Background(), score("enr-1", "final", 54))
	require.NoError(t, err)
	grade, err := svc.Publish(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.True(t, grade.IsPublished)
	require.NotNil(t, grade.PublishedAt)
	assert.Equal(t, []string{"enr-1"}, store.published)
	assert.Equal(t, "stu-1", refresher.students[len(refresher.students)-1])

	store.grades["enr-1"] = *grade
	_, err = svc.Publish(context.Background(), "enr-1")
	assert.True(t, errors.Is(err, appErrors.ErrGradeLocked))
}

func TestGradeServiceGetCourseGradeWithoutStoredGrade(t *testing.T) {
	svc, _, _ := newGradeFixture()

	grade, err := svc.GetCourseGrade(context.Background(), "enr-2")
	require.NoError(t, err)
	assert.Equal(t, models.CourseGradePending, grade.Status)
	assert.ElementsMatch(t, []string{"final", "mid"}, []string(grade.MissingComponents))

	_, err = svc.GetCourseGrade(context.Background(), "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
