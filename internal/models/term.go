package models

import "time"

// TermStatus represents the lifecycle of an academic term.
type TermStatus string

const (
	TermStatusActive    TermStatus = "ACTIVE"
	TermStatusInactive  TermStatus = "INACTIVE"
	TermStatusCompleted TermStatus = "COMPLETED"
)

// Term models an academic term within the institution calendar.
type Term struct {
	ID        string     `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	Status    TermStatus `db:"status" json:"status"`
	StartDate time.Time  `db:"start_date" json:"start_date"`
	EndDate   time.Time  `db:"end_date" json:"end_date"`
}

// TermCourse is a course grade attempted in a term together with its credit weight.
type TermCourse struct {
	CourseGrade
	TermID    string `db:"term_id" json:"term_id"`
	Credits   int    `db:"credits" json:"credits"`
	Withdrawn bool   `db:"withdrawn" json:"withdrawn"`
}

// TermRecord aggregates a student's courses and GPA for one term.
type TermRecord struct {
	TermID       string       `json:"term_id"`
	Name         string       `json:"name"`
	Status       TermStatus   `json:"status"`
	Courses      []TermCourse `json:"courses"`
	GPA          float64      `json:"gpa"`
	TotalCredits int          `json:"total_credits"`
}

// StandingLabel classifies a cumulative GPA.
type StandingLabel string

// Standing bands ordered from highest to lowest.
const (
	StandingExcellent  StandingLabel = "Excellent"
	StandingVeryGood   StandingLabel = "Very Good"
	StandingGood       StandingLabel = "Good"
	StandingAcceptable StandingLabel = "Acceptable"
	StandingProbation  StandingLabel = "Probation"
)

// AcademicStanding is the cumulative view over all of a student's terms.
type AcademicStanding struct {
	StudentID          string        `json:"student_id"`
	CumulativeGPA      float64       `json:"cumulative_gpa"`
	TotalCreditsEarned int           `json:"total_credits_earned"`
	Label              StandingLabel `json:"standing"`
	Terms              []TermRecord  `json:"terms"`
	CalculatedAt       time.Time     `json:"calculated_at"`
}

// InGoodStanding reports whether the standing is above probation.
func (s AcademicStanding) InGoodStanding() bool {
	return s.Label != StandingProbation
}
