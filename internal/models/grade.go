package models

import (
	"time"

	"github.com/lib/pq"
)

// GradeCalculationScheme represents how the course percentage is computed.
type GradeCalculationScheme string

const (
	// GradeSchemePoints divides the sum of scores by the sum of component maxima.
	GradeSchemePoints GradeCalculationScheme = "POINTS"
	// GradeSchemeWeighted applies component weights to each component's score ratio.
	GradeSchemeWeighted GradeCalculationScheme = "WEIGHTED"
)

// LetterGrade is a letter on the institutional grade scale.
type LetterGrade string

// Letters ordered from highest to lowest.
const (
	LetterAPlus LetterGrade = "A+"
	LetterA     LetterGrade = "A"
	LetterBPlus LetterGrade = "B+"
	LetterB     LetterGrade = "B"
	LetterCPlus LetterGrade = "C+"
	LetterC     LetterGrade = "C"
	LetterDPlus LetterGrade = "D+"
	LetterD     LetterGrade = "D"
	LetterF     LetterGrade = "F"
)

// CourseGradeStatus tells whether every component has been scored.
type CourseGradeStatus string

const (
	// CourseGradePending means at least one component is unscored; no letter is assigned.
	CourseGradePending CourseGradeStatus = "PENDING"
	// CourseGradeComplete means all components are scored and a letter is assigned.
	CourseGradeComplete CourseGradeStatus = "COMPLETE"
)

// GradeComponent describes one graded item of a course (midterm, quizzes, ...).
type GradeComponent struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	TermID    string    `db:"term_id" json:"term_id"`
	Name      string    `db:"name" json:"name"`
	MaxScore  float64   `db:"max_score" json:"max_score"`
	Weight    float64   `db:"weight" json:"weight"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ComponentScore is the score a student obtained on a component.
type ComponentScore struct {
	ID           string    `db:"id" json:"id,omitempty"`
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id,omitempty"`
	ComponentID  string    `db:"component_id" json:"component_id"`
	Score        float64   `db:"score" json:"score"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// CourseGrade is the derived grade of one student-section enrollment.
type CourseGrade struct {
	EnrollmentID      string                 `db:"enrollment_id" json:"enrollment_id"`
	CourseID          string                 `db:"course_id" json:"course_id"`
	Scheme            GradeCalculationScheme `db:"scheme" json:"scheme"`
	TotalScore        float64                `db:"total_score" json:"total_score"`
	MaxTotal          float64                `db:"max_total" json:"max_total"`
	Percentage        float64                `db:"percentage" json:"percentage"`
	Letter            LetterGrade            `db:"letter" json:"letter,omitempty"`
	QualityPoint      float64                `db:"quality_point" json:"quality_point"`
	Status            CourseGradeStatus      `db:"status" json:"status"`
	MissingComponents pq.StringArray         `db:"missing_components" json:"missing_components,omitempty"`
	IsPublished       bool                   `db:"is_published" json:"is_published"`
	CalculatedAt      time.Time              `db:"calculated_at" json:"calculated_at"`
	PublishedAt       *time.Time             `db:"published_at" json:"published_at,omitempty"`
}

// IsComplete reports whether the grade has a finalized letter.
func (g CourseGrade) IsComplete() bool {
	return g.Status == CourseGradeComplete
}

// CompletedCourse is a course outcome used for prerequisite checks.
type CompletedCourse struct {
	CourseID    string            `db:"course_id" json:"course_id"`
	Letter      LetterGrade       `db:"letter" json:"letter"`
	Status      CourseGradeStatus `db:"status" json:"status"`
	IsPublished bool              `db:"is_published" json:"is_published"`
}
