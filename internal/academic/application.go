package academic

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/noah-isme/academic-engine/internal/models"
	appErrors "github.com/noah-isme/academic-engine/pkg/errors"
)

// MinRejectionReasonLength is the shortest accepted rejection reason, in characters.
const MinRejectionReasonLength = 10

// SupersededReason is recorded on applications foreclosed by an approval.
const SupersededReason = "superseded by approved application"

// SubmitInput carries the resolved state for a new application.
type SubmitInput struct {
	ID           string
	StudentID    string
	DepartmentID string
	// Pending is the student's currently PENDING application, if any.
	Pending     *models.DepartmentApplication
	Eligibility models.DepartmentEligibility
	Now         time.Time
}

// SubmitApplication creates a PENDING application. A second pending application is refused
// before eligibility is looked at.
func SubmitApplication(in SubmitInput) (models.DepartmentApplication, error) {
	if in.Pending != nil && in.Pending.Status == models.ApplicationStatusPending {
		return models.DepartmentApplication{}, appErrors.WithDetails(
			appErrors.ErrDuplicatePendingApplication,
			fmt.Sprintf("student %s already has pending application %s", in.StudentID, in.Pending.ID),
			map[string]string{"pending_application_id": in.Pending.ID},
		)
	}
	if !in.Eligibility.IsEligible {
		return models.DepartmentApplication{}, appErrors.WithDetails(
			appErrors.ErrValidationFailed,
			fmt.Sprintf("student %s is not eligible for department %s: %s", in.StudentID, in.DepartmentID, strings.Join(in.Eligibility.FailedChecks(), ", ")),
			in.Eligibility,
		)
	}
	return models.DepartmentApplication{
		ID:           in.ID,
		StudentID:    in.StudentID,
		DepartmentID: in.DepartmentID,
		Status:       models.ApplicationStatusPending,
		SubmittedAt:  in.Now,
	}, nil
}

func requirePending(app models.DepartmentApplication, target models.ApplicationStatus) error {
	if app.Status.IsTerminal() {
		return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("application %s cannot move from %s to %s", app.ID, app.Status, target))
	}
	return nil
}

func processed(app models.DepartmentApplication, status models.ApplicationStatus, actorID string, now time.Time) models.DepartmentApplication {
	app.Status = status
	app.ProcessedAt = &now
	if actorID != "" {
		by := actorID
		app.ProcessedBy = &by
	}
	return app
}

// ApproveApplication moves a PENDING application to APPROVED. The student must not already
// belong to a department.
func ApproveApplication(app models.DepartmentApplication, student models.Student, actorID string, now time.Time) (models.DepartmentApplication, error) {
	if err := requirePending(app, models.ApplicationStatusApproved); err != nil {
		return app, err
	}
	if student.ID != app.StudentID {
		return app, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("application %s does not belong to student %s", app.ID, student.ID))
	}
	if student.HasDepartment() {
		return app, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("student %s is already assigned to department %s", student.ID, *student.DepartmentID))
	}
	return processed(app, models.ApplicationStatusApproved, actorID, now), nil
}

// RejectApplication moves a PENDING application to REJECTED. The trimmed reason must have at
// least minLength characters; minLength <= 0 uses MinRejectionReasonLength.
func RejectApplication(app models.DepartmentApplication, reason string, minLength int, actorID string, now time.Time) (models.DepartmentApplication, error) {
	if err := requirePending(app, models.ApplicationStatusRejected); err != nil {
		return app, err
	}
	if minLength <= 0 {
		minLength = MinRejectionReasonLength
	}
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) < minLength {
		return app, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("rejection reason must be at least %d characters", minLength))
	}
	rejected := processed(app, models.ApplicationStatusRejected, actorID, now)
	rejected.RejectionReason = &reason
	return rejected, nil
}

// WithdrawApplication moves a PENDING application to WITHDRAWN on behalf of its owner.
func WithdrawApplication(app models.DepartmentApplication, studentID string, now time.Time) (models.DepartmentApplication, error) {
	if app.StudentID != studentID {
		return app, appErrors.Clone(appErrors.ErrForbidden, "only the applicant can withdraw an application")
	}
	if err := requirePending(app, models.ApplicationStatusWithdrawn); err != nil {
		return app, err
	}
	return processed(app, models.ApplicationStatusWithdrawn, studentID, now), nil
}

// ForecloseCompeting returns the student's other PENDING applications moved to REJECTED.
// Applications of other students, the approved one and terminal ones are left out.
func ForecloseCompeting(approved models.DepartmentApplication, others []models.DepartmentApplication, actorID string, now time.Time) []models.DepartmentApplication {
	var foreclosed []models.DepartmentApplication
	for _, app := range others {
		if app.ID == approved.ID || app.StudentID != approved.StudentID || app.Status != models.ApplicationStatusPending {
			continue
		}
		rejected := processed(app, models.ApplicationStatusRejected, actorID, now)
		reason := SupersededReason
		rejected.RejectionReason = &reason
		foreclosed = append(foreclosed, rejected)
	}
	return foreclosed
}
