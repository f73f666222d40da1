package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-engine/internal/academic"
	"github.com/noah-isme/academic-engine/internal/dto"
	"github.com/noah-isme/academic-engine/internal/models"
	"github.com/noah-isme/academic-engine/internal/repository"
	appErrors "github.com/noah-isme/academic-engine/pkg/errors"
)

type departmentReader interface {
	List(ctx context.Context) ([]models.Department, error)
	FindByID(ctx context.Context, id string) (*models.Department, error)
}

type applicationStore interface {
	Create(ctx context.Context, app *models.DepartmentApplication) error
	FindByID(ctx context.Context, id string) (*models.DepartmentApplication, error)
	FindPendingByStudent(ctx context.Context, studentID string) (*models.DepartmentApplication, error)
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.DepartmentApplication, error)
	UpdateProcessed(ctx context.Context, app *models.DepartmentApplication) error
	Approve(ctx context.Context, approved *models.DepartmentApplication, foreclosed []models.DepartmentApplication) error
}

type standingReader interface {
	Standing(ctx context.Context, studentID string) (*models.AcademicStanding, error)
	Compute(ctx context.Context, studentID string) (*models.AcademicStanding, error)
}

// Application transitions reported to metrics.
const (
	transitionSubmit   = "submit"
	transitionApprove  = "approve"
	transitionReject   = "reject"
	transitionWithdraw = "withdraw"
)

// DepartmentService evaluates department eligibility and runs the application workflow.
// Transitions of one student's applications are serialised in process; the repository guards
// the same invariants in the database.
type DepartmentService struct {
	departments     departmentReader
	applications    applicationStore
	students        studentFinder
	standings       standingReader
	metrics         *MetricsService
	validator       *validator.Validate
	logger          *zap.Logger
	minReasonLength int
	locks           *keyedMutex
	now             func() time.Time
}

// NewDepartmentService constructs DepartmentService.
func NewDepartmentService(departments departmentReader, applications applicationStore, students studentFinder, standings standingReader, metrics *MetricsService, minReasonLength int, validate *validator.Validate, logger *zap.Logger) *DepartmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if minReasonLength <= 0 {
		minReasonLength = academic.MinRejectionReasonLength
	}
	return &DepartmentService{
		departments:     departments,
		applications:    applications,
		students:        students,
		standings:       standings,
		metrics:         metrics,
		validator:       validate,
		logger:          logger,
		minReasonLength: minReasonLength,
		locks:           newKeyedMutex(),
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// applicantState is what eligibility needs to know about the student.
type applicantState struct {
	student  models.Student
	standing models.AcademicStanding
	pending  *models.DepartmentApplication
}

// loadApplicant gathers eligibility inputs. fresh bypasses the standing cache and is
// set when the result decides a state transition.
func (s *DepartmentService) loadApplicant(ctx context.Context, studentID string, fresh bool) (*applicantState, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, wrapInternal(err, "failed to load student")
	}
	load := s.standings.Standing
	if fresh {
		load = s.standings.Compute
	}
	standing, err := load(ctx, studentID)
	if err != nil {
		return nil, err
	}
	pending, err := s.applications.FindPendingByStudent(ctx, studentID)
	if err != nil {
		return nil, wrapInternal(err, "failed to load pending application")
	}
	return &applicantState{student: *student, standing: *standing, pending: pending}, nil
}

func (a *applicantState) eligibility(dept models.Department) models.DepartmentEligibility {
	return academic.DepartmentEligibility(academic.DepartmentEligibilityInput{
		Student:               a.student,
		Department:            dept,
		Standing:              a.standing,
		HasPendingApplication: a.pending != nil,
	})
}

func (s *DepartmentService) findDepartment(ctx context.Context, id string) (*models.Department, error) {
	dept, err := s.departments.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, wrapInternal(err, "failed to load department")
	}
	return dept, nil
}

func (s *DepartmentService) findApplication(ctx context.Context, id string) (*models.DepartmentApplication, error) {
	app, err := s.applications.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, wrapInternal(err, "failed to load application")
	}
	return app, nil
}

// Eligibility evaluates one student against one department.
func (s *DepartmentService) Eligibility(ctx context.Context, actor *models.Actor, studentID, departmentID string) (*models.DepartmentEligibility, error) {
	if err := authorizeStudentAction(actor, studentID); err != nil {
		return nil, err
	}
	dept, err := s.findDepartment(ctx, departmentID)
	if err != nil {
		return nil, err
	}
	applicant, err := s.loadApplicant(ctx, studentID, false)
	if err != nil {
		return nil, err
	}
	result := applicant.eligibility(*dept)
	return &result, nil
}

// EligibilityAll evaluates one student against every department.
func (s *DepartmentService) EligibilityAll(ctx context.Context, actor *models.Actor, studentID string) ([]models.DepartmentEligibility, error) {
	if err := authorizeStudentAction(actor, studentID); err != nil {
		return nil, err
	}
	applicant, err := s.loadApplicant(ctx, studentID, false)
	if err != nil {
		return nil, err
	}
	departments, err := s.departments.List(ctx)
	if err != nil {
		return nil, wrapInternal(err, "failed to list departments")
	}
	results := make([]models.DepartmentEligibility, 0, len(departments))
	for _, dept := range departments {
		results = append(results, applicant.eligibility(dept))
	}
	return results, nil
}

// Submit files a new PENDING application when the student is eligible.
func (s *DepartmentService) Submit(ctx context.Context, actor *models.Actor, req dto.SubmitApplicationRequest) (app *models.DepartmentApplication, err error) {
	defer func() { s.metrics.RecordApplicationTransition(transitionSubmit, err) }()

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}
	if err := authorizeStudentAction(actor, req.StudentID); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(req.StudentID)
	defer unlock()

	dept, err := s.findDepartment(ctx, req.DepartmentID)
	if err != nil {
		return nil, err
	}
	applicant, err := s.loadApplicant(ctx, req.StudentID, true)
	if err != nil {
		return nil, err
	}
	created, err := academic.SubmitApplication(academic.SubmitInput{
		ID:           uuid.NewString(),
		StudentID:    req.StudentID,
		DepartmentID: dept.ID,
		Pending:      applicant.pending,
		Eligibility:  applicant.eligibility(*dept),
		Now:          s.now(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.applications.Create(ctx, &created); err != nil {
		if isUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrDuplicatePendingApplication, "student already has a pending application")
		}
		return nil, wrapInternal(err, "failed to create application")
	}
	s.logger.Info("department application submitted",
		zap.String("application_id", created.ID),
		zap.String("student_id", created.StudentID),
		zap.String("department_id", created.DepartmentID),
	)
	return &created, nil
}

// Approve accepts a PENDING application, assigns the department and forecloses the student's
// other pending applications.
func (s *DepartmentService) Approve(ctx context.Context, actor *models.Actor, applicationID string) (app *models.DepartmentApplication, err error) {
	defer func() { s.metrics.RecordApplicationTransition(transitionApprove, err) }()

	current, err := s.findApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(current.StudentID)
	defer unlock()

	// reload under the lock so a concurrent transition is observed
	if current, err = s.findApplication(ctx, applicationID); err != nil {
		return nil, err
	}
	student, err := s.students.FindByID(ctx, current.StudentID)
	if err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, wrapInternal(err, "failed to load student")
	}

	now := s.now()
	approved, err := academic.ApproveApplication(*current, *student, actorID(actor), now)
	if err != nil {
		return nil, err
	}
	others, err := s.applications.List(ctx, models.ApplicationFilter{
		StudentID: current.StudentID,
		Status:    []models.ApplicationStatus{models.ApplicationStatusPending},
	})
	if err != nil {
		return nil, wrapInternal(err, "failed to load competing applications")
	}
	foreclosed := academic.ForecloseCompeting(approved, others, actorID(actor), now)

	if err := s.applications.Approve(ctx, &approved, foreclosed); err != nil {
		return nil, s.mapTransitionError(err, "failed to approve application")
	}
	s.logger.Info("department application approved",
		zap.String("application_id", approved.ID),
		zap.String("student_id", approved.StudentID),
		zap.String("department_id", approved.DepartmentID),
		zap.Int("foreclosed", len(foreclosed)),
	)
	return &approved, nil
}

// Reject declines a PENDING application with a mandatory reason.
func (s *DepartmentService) Reject(ctx context.Context, actor *models.Actor, applicationID string, req dto.RejectApplicationRequest) (app *models.DepartmentApplication, err error) {
	defer func() { s.metrics.RecordApplicationTransition(transitionReject, err) }()

	current, err := s.findApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(current.StudentID)
	defer unlock()

	if current, err = s.findApplication(ctx, applicationID); err != nil {
		return nil, err
	}
	rejected, err := academic.RejectApplication(*current, req.Reason, s.minReasonLength, actorID(actor), s.now())
	if err != nil {
		return nil, err
	}
	if err := s.applications.UpdateProcessed(ctx, &rejected); err != nil {
		return nil, s.mapTransitionError(err, "failed to reject application")
	}
	s.logger.Info("department application rejected", zap.String("application_id", rejected.ID), zap.String("student_id", rejected.StudentID))
	return &rejected, nil
}

// Withdraw lets the owning student retract a PENDING application.
func (s *DepartmentService) Withdraw(ctx context.Context, actor *models.Actor, applicationID string) (app *models.DepartmentApplication, err error) {
	defer func() { s.metrics.RecordApplicationTransition(transitionWithdraw, err) }()

	current, err := s.findApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(current.StudentID)
	defer unlock()

	if current, err = s.findApplication(ctx, applicationID); err != nil {
		return nil, err
	}
	withdrawn, err := academic.WithdrawApplication(*current, actorID(actor), s.now())
	if err != nil {
		return nil, err
	}
	if err := s.applications.UpdateProcessed(ctx, &withdrawn); err != nil {
		return nil, s.mapTransitionError(err, "failed to withdraw application")
	}
	return &withdrawn, nil
}

// ListApplications returns applications matching the query. Students only see their own.
func (s *DepartmentService) ListApplications(ctx context.Context, actor *models.Actor, query dto.ApplicationQuery) ([]models.DepartmentApplication, *models.Pagination, error) {
	if actor != nil && actor.Role == models.RoleStudent {
		if query.StudentID != "" && query.StudentID != actor.UserID {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "students may only list their own applications")
		}
		query.StudentID = actor.UserID
	}
	page := query.Page
	if page < 1 {
		page = 1
	}
	size := query.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	apps, err := s.applications.List(ctx, models.ApplicationFilter{
		StudentID:    query.StudentID,
		DepartmentID: query.DepartmentID,
		Status:       query.Status,
		Limit:        size,
		Offset:       (page - 1) * size,
	})
	if err != nil {
		return nil, nil, wrapInternal(err, "failed to list applications")
	}
	if apps == nil {
		apps = []models.DepartmentApplication{}
	}
	return apps, &models.Pagination{Page: page, PageSize: size, TotalCount: len(apps)}, nil
}

func (s *DepartmentService) mapTransitionError(err error, message string) error {
	switch {
	case isNotFound(err):
		return appErrors.Clone(appErrors.ErrInvalidTransition, "application is no longer pending")
	case errors.Is(err, repository.ErrStudentAssigned), isUniqueViolation(err):
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "student already belongs to a department")
	case errors.Is(err, repository.ErrNoCapacity):
		return appErrors.Clone(appErrors.ErrConflict, "department has no available seats")
	default:
		return wrapInternal(err, message)
	}
}

func actorID(actor *models.Actor) string {
	if actor == nil {
		return ""
	}
	return actor.UserID
}
