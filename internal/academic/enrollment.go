package academic

import (
	"fmt"
	"sort"

	"github.com/noah-isme/academic-engine/internal/models"
	appErrors "github.com/noah-isme/academic-engine/pkg/errors"
)

// Named enrollment checks.
const (
	CheckCapacity      = "capacity"
	CheckPrerequisites = "prerequisites"
	CheckSchedule      = "schedule"
	CheckDuplicate     = "duplicate"
	CheckCreditLoad    = "credit_load"
)

var enrollmentCheckOrder = []string{CheckCapacity, CheckPrerequisites, CheckSchedule, CheckDuplicate, CheckCreditLoad}

// EnrollmentCheckInput is everything needed to decide whether a student may take a section.
type EnrollmentCheckInput struct {
	StudentID string
	Section   models.Section
	// Current holds the student's enrollments with their sections, any status.
	Current []models.EnrolledSection
	// Completed holds the student's finished courses.
	Completed  []models.CompletedCourse
	MaxCredits int
}

// EnrollmentCheck is the full result of an eligibility check. Every check is evaluated.
type EnrollmentCheck struct {
	SectionID            string             `json:"section_id"`
	Valid                bool               `json:"valid"`
	Checks               map[string]bool    `json:"checks"`
	Conflicts            []ScheduleConflict `json:"conflicts"`
	MissingPrerequisites []string           `json:"missing_prerequisites"`
	CreditLoad           CreditLoadResult   `json:"credit_load"`
	Errors               []string           `json:"errors"`
}

// FailedChecks lists failing check names in a stable order.
func (c EnrollmentCheck) FailedChecks() []string {
	var failed []string
	for _, name := range enrollmentCheckOrder {
		if ok, present := c.Checks[name]; present && !ok {
			failed = append(failed, name)
		}
	}
	return failed
}

// CheckEnrollment evaluates capacity, prerequisites, schedule, duplicate and credit load for one
// candidate section. A malformed meeting time is the only error.
func CheckEnrollment(in EnrollmentCheckInput) (EnrollmentCheck, error) {
	section := in.Section
	result := EnrollmentCheck{
		SectionID:            section.ID,
		Checks:               make(map[string]bool, len(enrollmentCheckOrder)),
		Conflicts:            []ScheduleConflict{},
		MissingPrerequisites: []string{},
		Errors:               []string{},
	}

	result.Checks[CheckCapacity] = section.EnrolledCount < section.Capacity
	if !result.Checks[CheckCapacity] {
		result.Errors = append(result.Errors, fmt.Sprintf("section %s is full (%d/%d)", section.ID, section.EnrolledCount, section.Capacity))
	}

	result.MissingPrerequisites = MissingPrerequisites(section.Prerequisites, in.Completed)
	result.Checks[CheckPrerequisites] = len(result.MissingPrerequisites) == 0
	for _, courseID := range result.MissingPrerequisites {
		result.Errors = append(result.Errors, fmt.Sprintf("missing prerequisite %s", courseID))
	}

	duplicate := false
	for _, es := range in.Current {
		status := es.Enrollment.Status
		if es.Section.ID == section.ID || es.Enrollment.SectionID == section.ID {
			if status == models.EnrollmentStatusEnrolled || status == models.EnrollmentStatusWaitlisted {
				duplicate = true
			}
			continue
		}
		if status != models.EnrollmentStatusEnrolled || es.Section.TermID != section.TermID {
			continue
		}
		conflicts, err := SchedulesOverlap(section, es.Section)
		if err != nil {
			return EnrollmentCheck{}, err
		}
		result.Conflicts = append(result.Conflicts, conflicts...)
	}
	result.Checks[CheckSchedule] = len(result.Conflicts) == 0
	for _, c := range result.Conflicts {
		result.Errors = append(result.Errors, fmt.Sprintf("schedule conflict with section %s on %s %s-%s", c.ConflictSectionID, c.Day, c.ConflictMeeting.Start, c.ConflictMeeting.End))
	}
	result.Checks[CheckDuplicate] = !duplicate
	if duplicate {
		result.Errors = append(result.Errors, fmt.Sprintf("already enrolled or waitlisted in section %s", section.ID))
	}

	result.CreditLoad = ValidateCreditLoad(CreditLoadInput{
		StudentID:      in.StudentID,
		CurrentCredits: EnrolledCredits(in.Current, section.TermID),
		Candidates:     []models.Section{section},
		MaxCredits:     in.MaxCredits,
	})
	result.Checks[CheckCreditLoad] = result.CreditLoad.Valid
	if !result.CreditLoad.Valid {
		result.Errors = append(result.Errors, result.CreditLoad.Message)
	}

	result.Valid = true
	for _, ok := range result.Checks {
		result.Valid = result.Valid && ok
	}
	return result, nil
}

// MissingPrerequisites returns the prerequisite course ids without a published passing grade, sorted.
func MissingPrerequisites(prerequisites []string, completed []models.CompletedCourse) []string {
	passed := make(map[string]bool, len(completed))
	for _, c := range completed {
		if c.IsPublished && c.Status == models.CourseGradeComplete && IsPassing(c.Letter) {
			passed[c.CourseID] = true
		}
	}
	missing := []string{}
	seen := make(map[string]bool, len(prerequisites))
	for _, courseID := range prerequisites {
		if passed[courseID] || seen[courseID] {
			continue
		}
		seen[courseID] = true
		missing = append(missing, courseID)
	}
	sort.Strings(missing)
	return missing
}

// EnrollmentPolicy holds institution-level switches for committing enrollments.
type EnrollmentPolicy struct {
	WaitlistEnabled bool
}

// EnrollmentDecision is the status an enrollment should be created with.
type EnrollmentDecision struct {
	Status        models.EnrollmentStatus `json:"status"`
	Bypassed      bool                    `json:"bypassed"`
	BypassReasons []string                `json:"bypass_reasons,omitempty"`
}

// DecideEnrollment turns a check into a commit decision. A credit overload is never bypassable;
// a bypass still records every violated check.
func DecideEnrollment(check EnrollmentCheck, policy EnrollmentPolicy, bypass bool) (EnrollmentDecision, error) {
	if !check.Checks[CheckCreditLoad] {
		return EnrollmentDecision{}, appErrors.WithDetails(appErrors.ErrCreditLimitExceeded, check.CreditLoad.Message, check)
	}
	if check.Valid {
		return EnrollmentDecision{Status: models.EnrollmentStatusEnrolled}, nil
	}
	failed := check.FailedChecks()
	if policy.WaitlistEnabled && len(failed) == 1 && failed[0] == CheckCapacity {
		return EnrollmentDecision{Status: models.EnrollmentStatusWaitlisted}, nil
	}
	if bypass {
		return EnrollmentDecision{
			Status:        models.EnrollmentStatusEnrolled,
			Bypassed:      true,
			BypassReasons: append([]string(nil), check.Errors...),
		}, nil
	}
	return EnrollmentDecision{}, appErrors.WithDetails(appErrors.ErrValidationFailed, fmt.Sprintf("enrollment in section %s failed: %v", check.SectionID, failed), check)
}
