package models

import "time"

// Department is a programme students apply to after their foundation years.
type Department struct {
	ID            string    `db:"id" json:"id"`
	Code          string    `db:"code" json:"code"`
	Name          string    `db:"name" json:"name"`
	MinGPA        float64   `db:"min_gpa" json:"min_gpa"`
	Capacity      int       `db:"capacity" json:"capacity"`
	EnrolledCount int       `db:"enrolled_count" json:"enrolled_count"`
	MinYear       int       `db:"min_year" json:"min_year"`
	MaxYear       int       `db:"max_year" json:"max_year"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Named department eligibility checks.
const (
	CheckHasMinimumGPA           = "hasMinimumGPA"
	CheckHasAvailableSeats       = "hasAvailableSeats"
	CheckIsCorrectYear           = "isCorrectYear"
	CheckHasNoExistingDepartment = "hasNoExistingDepartment"
	CheckHasNoPendingApplication = "hasNoPendingApplication"
	CheckIsGoodAcademicStanding  = "isGoodAcademicStanding"
)

// DepartmentEligibility reports every eligibility check for one student and department.
type DepartmentEligibility struct {
	DepartmentID  string          `json:"department_id"`
	MinGPA        float64         `json:"min_gpa"`
	Capacity      int             `json:"capacity"`
	EnrolledCount int             `json:"enrolled_count"`
	Checks        map[string]bool `json:"eligibility_reasons"`
	IsEligible    bool            `json:"is_eligible"`
}

// FailedChecks lists the names of the checks that did not pass, in a stable order.
func (e DepartmentEligibility) FailedChecks() []string {
	order := []string{
		CheckHasMinimumGPA,
		CheckHasAvailableSeats,
		CheckIsCorrectYear,
		CheckHasNoExistingDepartment,
		CheckHasNoPendingApplication,
		CheckIsGoodAcademicStanding,
	}
	var failed []string
	for _, name := range order {
		if ok, present := e.Checks[name]; present && !ok {
			failed = append(failed, name)
		}
	}
	return failed
}

// ApplicationStatus captures workflow states for department applications.
type ApplicationStatus string

const (
	ApplicationStatusPending   ApplicationStatus = "PENDING"
	ApplicationStatusApproved  ApplicationStatus = "APPROVED"
	ApplicationStatusRejected  ApplicationStatus = "REJECTED"
	ApplicationStatusWithdrawn ApplicationStatus = "WITHDRAWN"
)

// IsTerminal reports whether no further transition is allowed.
func (s ApplicationStatus) IsTerminal() bool {
	return s != ApplicationStatusPending
}

// DepartmentApplication is a student's request to join a department.
type DepartmentApplication struct {
	ID              string            `db:"id" json:"id"`
	StudentID       string            `db:"student_id" json:"student_id"`
	DepartmentID    string            `db:"department_id" json:"department_id"`
	Status          ApplicationStatus `db:"status" json:"status"`
	SubmittedAt     time.Time         `db:"submitted_at" json:"submitted_at"`
	ProcessedAt     *time.Time        `db:"processed_at" json:"processed_at,omitempty"`
	ProcessedBy     *string           `db:"processed_by" json:"processed_by,omitempty"`
	RejectionReason *string           `db:"rejection_reason" json:"rejection_reason,omitempty"`
}

// ApplicationFilter constrains listing queries.
type ApplicationFilter struct {
	StudentID    string
	DepartmentID string
	Status       []ApplicationStatus
	Limit        int
	Offset       int
}
