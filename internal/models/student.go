package models

import "time"

// Student represents a learner registered in the university.
type Student struct {
	ID           string    `db:"id" json:"id"`
	StudentNo    string    `db:"student_no" json:"student_no"`
	FullName     string    `db:"full_name" json:"full_name"`
	BatchID      string    `db:"batch_id" json:"batch_id"`
	YearLevel    int       `db:"year_level" json:"year_level"`
	DepartmentID *string   `db:"department_id" json:"department_id,omitempty"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// HasDepartment reports whether the student has been assigned to a department.
func (s Student) HasDepartment() bool {
	return s.DepartmentID != nil && *s.DepartmentID != ""
}

// Batch groups students admitted together and carries their programme limits.
type Batch struct {
	ID         string `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	MaxCredits int    `db:"max_credits" json:"max_credits"`
}
