package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/academic-engine/internal/academic"
	"github.com/noah-isme/academic-engine/internal/dto"
	"github.com/noah-isme/academic-engine/internal/models"
	"github.com/noah-isme/academic-engine/internal/repository"
	appErrors "github.com/noah-isme/academic-engine/pkg/errors"
)

type enrollmentStore interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrolledSection, error)
	Commit(ctx context.Context, enrollment *models.Enrollment, enforceCapacity bool) error
	Drop(ctx context.Context, enrollment *models.Enrollment, at time.Time) error
}

type sectionLookup interface {
	FindByID(ctx context.Context, id string) (*models.Section, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]models.Section, error)
}

type completedCourseLister interface {
	ListCompletedCourses(ctx context.Context, studentID string) ([]models.CompletedCourse, error)
}

type creditLimitReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	MaxCredits(ctx context.Context, studentID string) (int, error)
}

// EnrollmentOutcome is the committed enrollment together with the check it was decided on.
type EnrollmentOutcome struct {
	Enrollment models.Enrollment        `json:"enrollment"`
	Check      academic.EnrollmentCheck `json:"check"`
}

// EnrollmentService validates and commits section enrollments.
type EnrollmentService struct {
	enrollments       enrollmentStore
	sections          sectionLookup
	grades            completedCourseLister
	students          creditLimitReader
	standing          standingRefresher
	metrics           *MetricsService
	validator         *validator.Validate
	logger            *zap.Logger
	policy            academic.EnrollmentPolicy
	defaultMaxCredits int
	locks             *keyedMutex
	now               func() time.Time
}

// NewEnrollmentService constructs EnrollmentService. defaultMaxCredits applies to students whose
// batch sets no limit.
func NewEnrollmentService(enrollments enrollmentStore, sections sectionLookup, grades completedCourseLister, students creditLimitReader, standing standingRefresher, metrics *MetricsService, policy academic.EnrollmentPolicy, defaultMaxCredits int, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		enrollments:       enrollments,
		sections:          sections,
		grades:            grades,
		students:          students,
		standing:          standing,
		metrics:           metrics,
		validator:         validate,
		logger:            logger,
		policy:            policy,
		defaultMaxCredits: defaultMaxCredits,
		locks:             newKeyedMutex(),
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// studentRecord is the per-student input shared by every candidate check.
type studentRecord struct {
	current    []models.EnrolledSection
	completed  []models.CompletedCourse
	maxCredits int
}

func (s *EnrollmentService) loadStudent(ctx context.Context, studentID string) (*studentRecord, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, wrapInternal(err, "failed to load student")
	}
	maxCredits, err := s.students.MaxCredits(ctx, studentID)
	if err != nil {
		return nil, wrapInternal(err, "failed to load credit limit")
	}
	if maxCredits <= 0 {
		maxCredits = s.defaultMaxCredits
	}
	current, err := s.enrollments.List(ctx, models.EnrollmentFilter{
		StudentID: studentID,
		Status:    []models.EnrollmentStatus{models.EnrollmentStatusEnrolled, models.EnrollmentStatusWaitlisted},
	})
	if err != nil {
		return nil, wrapInternal(err, "failed to load current enrollments")
	}
	completed, err := s.grades.ListCompletedCourses(ctx, studentID)
	if err != nil {
		return nil, wrapInternal(err, "failed to load completed courses")
	}
	return &studentRecord{current: current, completed: completed, maxCredits: maxCredits}, nil
}

func (s *EnrollmentService) check(studentID string, record *studentRecord, section models.Section) (academic.EnrollmentCheck, error) {
	return academic.CheckEnrollment(academic.EnrollmentCheckInput{
		StudentID:  studentID,
		Section:    section,
		Current:    record.current,
		Completed:  record.completed,
		MaxCredits: record.maxCredits,
	})
}

// Check evaluates one student against one section.
func (s *EnrollmentService) Check(ctx context.Context, studentID, sectionID string) (*academic.EnrollmentCheck, error) {
	checks, err := s.CheckMany(ctx, dto.EnrollmentCheckRequest{StudentID: studentID, SectionIDs: []string{sectionID}})
	if err != nil {
		return nil, err
	}
	return &checks[0], nil
}

// CheckMany evaluates each candidate section independently against the student's current load.
// Results follow the order of the request.
func (s *EnrollmentService) CheckMany(ctx context.Context, req dto.EnrollmentCheckRequest) ([]academic.EnrollmentCheck, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment check payload")
	}
	record, err := s.loadStudent(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}
	sections, err := s.sections.FindByIDs(ctx, req.SectionIDs)
	if err != nil {
		return nil, wrapInternal(err, "failed to load sections")
	}
	var missing []string
	for _, id := range req.SectionIDs {
		if _, ok := sections[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("sections not found: %s", strings.Join(missing, ", ")))
	}

	results := make([]academic.EnrollmentCheck, len(req.SectionIDs))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range req.SectionIDs {
		i, section := i, sections[id]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			check, err := s.check(req.StudentID, record, section)
			if err != nil {
				return err
			}
			results[i] = check
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Enroll checks and commits one enrollment. Only administrative actors may bypass failed checks,
// and students may only enroll themselves.
func (s *EnrollmentService) Enroll(ctx context.Context, actor *models.Actor, req dto.EnrollRequest) (*EnrollmentOutcome, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if err := authorizeStudentAction(actor, req.StudentID); err != nil {
		return nil, err
	}
	if req.Bypass && (actor == nil || !actor.Role.IsAdministrative()) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators may bypass enrollment checks")
	}

	unlock := s.locks.Lock(req.StudentID)
	defer unlock()

	record, err := s.loadStudent(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}
	section, err := s.sections.FindByID(ctx, req.SectionID)
	if err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, wrapInternal(err, "failed to load section")
	}
	check, err := s.check(req.StudentID, record, *section)
	if err != nil {
		return nil, err
	}
	decision, err := academic.DecideEnrollment(check, s.policy, req.Bypass)
	if err != nil {
		s.metrics.RecordEnrollmentDecision(strings.ToLower(errorCode(err)))
		return nil, err
	}

	enrollment := models.Enrollment{
		ID:            uuid.NewString(),
		StudentID:     req.StudentID,
		SectionID:     section.ID,
		TermID:        section.TermID,
		Status:        decision.Status,
		Bypassed:      decision.Bypassed,
		BypassReasons: decision.BypassReasons,
		EnrolledAt:    s.now(),
	}
	if err := s.commit(ctx, &enrollment); err != nil {
		return nil, err
	}

	outcome := "enrolled"
	switch {
	case enrollment.Bypassed:
		outcome = "bypassed"
		s.logger.Info("enrollment checks bypassed",
			zap.String("student_id", enrollment.StudentID),
			zap.String("section_id", enrollment.SectionID),
			zap.String("actor_id", actor.UserID),
			zap.Strings("reasons", enrollment.BypassReasons),
		)
	case enrollment.Status == models.EnrollmentStatusWaitlisted:
		outcome = "waitlisted"
	}
	s.metrics.RecordEnrollmentDecision(outcome)
	s.refresh(ctx, enrollment.StudentID)

	return &EnrollmentOutcome{Enrollment: enrollment, Check: check}, nil
}

// commit persists the enrollment. A seat lost to a concurrent enrollment falls back to the
// waitlist when that is enabled.
func (s *EnrollmentService) commit(ctx context.Context, enrollment *models.Enrollment) error {
	enforce := !enrollment.Bypassed
	err := s.enrollments.Commit(ctx, enrollment, enforce)
	if errors.Is(err, repository.ErrNoCapacity) && s.policy.WaitlistEnabled {
		enrollment.Status = models.EnrollmentStatusWaitlisted
		err = s.enrollments.Commit(ctx, enrollment, enforce)
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNoCapacity):
		return appErrors.Clone(appErrors.ErrConflict, "section is full")
	case isUniqueViolation(err):
		return appErrors.Clone(appErrors.ErrConflict, "student is already enrolled in this section")
	default:
		return wrapInternal(err, "failed to create enrollment")
	}
}

// Drop withdraws an ENROLLED or WAITLISTED enrollment and releases its seat.
func (s *EnrollmentService) Drop(ctx context.Context, actor *models.Actor, enrollmentID string) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, wrapInternal(err, "failed to load enrollment")
	}
	if err := authorizeStudentAction(actor, enrollment.StudentID); err != nil {
		return nil, err
	}
	if enrollment.Status == models.EnrollmentStatusDropped {
		return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment already dropped")
	}

	at := s.now()
	if err := s.enrollments.Drop(ctx, enrollment, at); err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment changed concurrently")
		}
		return nil, wrapInternal(err, "failed to drop enrollment")
	}
	enrollment.Status = models.EnrollmentStatusDropped
	enrollment.DroppedAt = &at

	s.metrics.RecordEnrollmentDecision("dropped")
	s.refresh(ctx, enrollment.StudentID)
	return enrollment, nil
}

func (s *EnrollmentService) refresh(ctx context.Context, studentID string) {
	if s.standing != nil {
		s.standing.RequestRefresh(ctx, studentID)
	}
}

// authorizeStudentAction lets students act only on their own records.
func authorizeStudentAction(actor *models.Actor, studentID string) error {
	if actor != nil && actor.Role == models.RoleStudent && actor.UserID != studentID {
		return appErrors.Clone(appErrors.ErrForbidden, "students may only act on their own records")
	}
	return nil
}
