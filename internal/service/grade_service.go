package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-engine/internal/academic"
	"github.com/noah-isme/academic-engine/internal/dto"
	"github.com/noah-isme/academic-engine/internal/models"
	"github.com/noah-isme/academic-engine/internal/repository"
	appErrors "github.com/noah-isme/academic-engine/pkg/errors"
)

type gradeStore interface {
	ListScores(ctx context.Context, enrollmentID string) ([]models.ComponentScore, error)
	FindCourseGrade(ctx context.Context, enrollmentID string) (*models.CourseGrade, error)
	SaveGrades(ctx context.Context, writes []repository.GradeWrite) error
	Publish(ctx context.Context, enrollmentID string, at time.Time) error
}

type enrollmentFinder interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

type sectionFinder interface {
	FindByID(ctx context.Context, id string) (*models.Section, error)
}

type componentLister interface {
	ListByCourseTerm(ctx context.Context, courseID, termID string) ([]models.GradeComponent, error)
}

type standingRefresher interface {
	RequestRefresh(ctx context.Context, studentID string)
}

// GradeService records component scores and keeps course grades in sync with them.
type GradeService struct {
	grades      gradeStore
	enrollments enrollmentFinder
	sections    sectionFinder
	components  componentLister
	standing    standingRefresher
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	scheme      models.GradeCalculationScheme
	now         func() time.Time
}

// NewGradeService constructs GradeService. An empty scheme defaults to POINTS.
func NewGradeService(grades gradeStore, enrollments enrollmentFinder, sections sectionFinder, components componentLister, standing standingRefresher, metrics *MetricsService, scheme models.GradeCalculationScheme, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if scheme == "" {
		scheme = models.GradeSchemePoints
	}
	return &GradeService{
		grades:      grades,
		enrollments: enrollments,
		sections:    sections,
		components:  components,
		standing:    standing,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		scheme:      scheme,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// gradeScope is everything needed to recompute one enrollment's grade.
type gradeScope struct {
	enrollment models.Enrollment
	section    models.Section
	components []models.GradeComponent
	scores     []models.ComponentScore
	existing   *models.CourseGrade
}

func (s *GradeService) loadScope(ctx context.Context, enrollmentID string) (*gradeScope, error) {
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("enrollment %s not found", enrollmentID))
		}
		return nil, wrapInternal(err, "failed to load enrollment")
	}
	section, err := s.sections.FindByID(ctx, enrollment.SectionID)
	if err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("section %s not found", enrollment.SectionID))
		}
		return nil, wrapInternal(err, "failed to load section")
	}
	components, err := s.components.ListByCourseTerm(ctx, section.CourseID, section.TermID)
	if err != nil {
		return nil, wrapInternal(err, "failed to load grade components")
	}
	scores, err := s.grades.ListScores(ctx, enrollmentID)
	if err != nil {
		return nil, wrapInternal(err, "failed to load scores")
	}
	existing, err := s.grades.FindCourseGrade(ctx, enrollmentID)
	if err != nil && !isNotFound(err) {
		return nil, wrapInternal(err, "failed to load course grade")
	}
	return &gradeScope{enrollment: *enrollment, section: *section, components: components, scores: scores, existing: existing}, nil
}

func (s *GradeService) schemeFor(scope *gradeScope) models.GradeCalculationScheme {
	if scope.existing != nil && scope.existing.Scheme != "" {
		return scope.existing.Scheme
	}
	return s.scheme
}

// recompute merges incoming scores over the stored ones and derives the new grade.
func (s *GradeService) recompute(scope *gradeScope, incoming []models.ComponentScore) (repository.GradeWrite, error) {
	if scope.enrollment.Status == models.EnrollmentStatusDropped {
		return repository.GradeWrite{}, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("enrollment %s was dropped", scope.enrollment.ID))
	}
	merged := make([]models.ComponentScore, 0, len(scope.scores)+len(incoming))
	position := make(map[string]int, len(scope.scores)+len(incoming))
	for _, score := range append(append([]models.ComponentScore(nil), scope.scores...), incoming...) {
		if i, ok := position[score.ComponentID]; ok {
			merged[i] = score
			continue
		}
		position[score.ComponentID] = len(merged)
		merged = append(merged, score)
	}

	grade, err := academic.Recompute(scope.existing, academic.AggregateInput{
		EnrollmentID: scope.enrollment.ID,
		CourseID:     scope.section.CourseID,
		Scheme:       s.schemeFor(scope),
		Components:   scope.components,
		Scores:       merged,
	})
	if err != nil {
		return repository.GradeWrite{}, err
	}
	grade.CalculatedAt = s.now()
	return repository.GradeWrite{Scores: incoming, Grade: grade}, nil
}

func (s *GradeService) save(ctx context.Context, writes []repository.GradeWrite) error {
	if err := s.grades.SaveGrades(ctx, writes); err != nil {
		if isNotFound(err) {
			return appErrors.Clone(appErrors.ErrGradeLocked, "grade was published while scores were being saved")
		}
		return wrapInternal(err, "failed to save grades")
	}
	for _, w := range writes {
		s.metrics.RecordGradeComputation(string(w.Grade.Status))
	}
	return nil
}

// GetCourseGrade returns the stored grade, or a freshly aggregated PENDING view when nothing has
// been stored yet.
func (s *GradeService) GetCourseGrade(ctx context.Context, enrollmentID string) (*models.CourseGrade, error) {
	grade, err := s.grades.FindCourseGrade(ctx, enrollmentID)
	if err == nil {
		return grade, nil
	}
	if !isNotFound(err) {
		return nil, wrapInternal(err, "failed to load course grade")
	}
	scope, err := s.loadScope(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	computed, err := academic.AggregateCourseGrade(academic.AggregateInput{
		EnrollmentID: enrollmentID,
		CourseID:     scope.section.CourseID,
		Scheme:       s.schemeFor(scope),
		Components:   scope.components,
		Scores:       scope.scores,
	})
	if err != nil {
		return nil, err
	}
	computed.CalculatedAt = s.now()
	return &computed, nil
}

// RecordScore stores one component score and returns the recomputed course grade.
func (s *GradeService) RecordScore(ctx context.Context, req dto.RecordScoreRequest) (*models.CourseGrade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid score payload")
	}
	scope, err := s.loadScope(ctx, req.EnrollmentID)
	if err != nil {
		return nil, err
	}
	write, err := s.recompute(scope, []models.ComponentScore{{EnrollmentID: req.EnrollmentID, ComponentID: req.ComponentID, Score: *req.Score}})
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, []repository.GradeWrite{write}); err != nil {
		return nil, err
	}
	s.refresh(ctx, scope.enrollment.StudentID)
	return &write.Grade, nil
}

// BulkRecordScores records scores for many enrollments. Atomic mode (the default) saves all or
// nothing; partialOnError saves each enrollment on its own and reports the failures.
func (s *GradeService) BulkRecordScores(ctx context.Context, req dto.BulkScoresRequest) (*dto.BulkScoresResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk payload")
	}
	atomic := req.Mode == "" || req.Mode == dto.BulkModeAtomic

	var order []string
	grouped := make(map[string][]models.ComponentScore)
	for _, item := range req.Items {
		if _, ok := grouped[item.EnrollmentID]; !ok {
			order = append(order, item.EnrollmentID)
		}
		grouped[item.EnrollmentID] = append(grouped[item.EnrollmentID], models.ComponentScore{
			EnrollmentID: item.EnrollmentID,
			ComponentID:  item.ComponentID,
			Score:        *item.Score,
		})
	}

	result := &dto.BulkScoresResult{Grades: []models.CourseGrade{}}
	writes := make([]repository.GradeWrite, 0, len(order))
	students := make(map[string]string, len(order))
	for _, enrollmentID := range order {
		scores := grouped[enrollmentID]
		scope, err := s.loadScope(ctx, enrollmentID)
		if err == nil {
			var write repository.GradeWrite
			write, err = s.recompute(scope, scores)
			if err == nil {
				writes = append(writes, write)
				students[enrollmentID] = scope.enrollment.StudentID
				continue
			}
		}
		if atomic {
			return nil, err
		}
		result.Failures = append(result.Failures, scoreFailures(scores, err)...)
	}

	if atomic {
		if err := s.save(ctx, writes); err != nil {
			return nil, err
		}
		for _, w := range writes {
			result.SuccessCount += len(w.Scores)
			result.Grades = append(result.Grades, w.Grade)
		}
	} else {
		for _, w := range writes {
			if err := s.save(ctx, []repository.GradeWrite{w}); err != nil {
				result.Failures = append(result.Failures, scoreFailures(w.Scores, err)...)
				delete(students, w.Grade.EnrollmentID)
				continue
			}
			result.SuccessCount += len(w.Scores)
			result.Grades = append(result.Grades, w.Grade)
		}
	}

	refreshed := make(map[string]struct{}, len(students))
	for _, studentID := range students {
		if _, done := refreshed[studentID]; done {
			continue
		}
		refreshed[studentID] = struct{}{}
		s.refresh(ctx, studentID)
	}
	return result, nil
}

func scoreFailures(scores []models.ComponentScore, err error) []dto.ScoreFailure {
	failures := make([]dto.ScoreFailure, 0, len(scores))
	for _, score := range scores {
		failures = append(failures, dto.ScoreFailure{EnrollmentID: score.EnrollmentID, ComponentID: score.ComponentID, Reason: err.Error()})
	}
	return failures
}

// Publish locks a complete grade so later score changes are rejected.
func (s *GradeService) Publish(ctx context.Context, enrollmentID string) (*models.CourseGrade, error) {
	grade, err := s.grades.FindCourseGrade(ctx, enrollmentID)
	if err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "grade has not been computed")
		}
		return nil, wrapInternal(err, "failed to load course grade")
	}
	if grade.IsPublished {
		return nil, appErrors.Clone(appErrors.ErrGradeLocked, "grade is already published")
	}
	if !grade.IsComplete() {
		return nil, appErrors.WithDetails(appErrors.ErrPreconditionFailed, "grade is incomplete", map[string]interface{}{
			"missing_components": []string(grade.MissingComponents),
		})
	}
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, wrapInternal(err, "failed to load enrollment")
	}

	at := s.now()
	if err := s.grades.Publish(ctx, enrollmentID, at); err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrGradeLocked, "grade is already published")
		}
		return nil, wrapInternal(err, "failed to publish grade")
	}
	grade.IsPublished = true
	grade.PublishedAt = &at
	s.metrics.RecordGradeComputation("PUBLISHED")
	s.logger.Info("grade published", zap.String("enrollment_id", enrollmentID), zap.String("letter", string(grade.Letter)))
	s.refresh(ctx, enrollment.StudentID)
	return grade, nil
}

func (s *GradeService) refresh(ctx context.Context, studentID string) {
	if s.standing != nil && studentID != "" {
		s.standing.RequestRefresh(ctx, studentID)
	}
}
