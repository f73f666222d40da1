package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusEnrolled   EnrollmentStatus = "ENROLLED"
	EnrollmentStatusWaitlisted EnrollmentStatus = "WAITLISTED"
	EnrollmentStatusDropped    EnrollmentStatus = "DROPPED"
)

// Enrollment captures a student's registration to a section.
type Enrollment struct {
	ID            string           `db:"id" json:"id"`
	StudentID     string           `db:"student_id" json:"student_id"`
	SectionID     string           `db:"section_id" json:"section_id"`
	TermID        string           `db:"term_id" json:"term_id"`
	Status        EnrollmentStatus `db:"status" json:"status"`
	Bypassed      bool             `db:"bypassed" json:"bypassed"`
	BypassReasons pq.StringArray   `db:"bypass_reasons" json:"bypass_reasons,omitempty"`
	EnrolledAt    time.Time        `db:"enrolled_at" json:"enrolled_at"`
	DroppedAt     *time.Time       `db:"dropped_at" json:"dropped_at,omitempty"`
}

// EnrolledSection joins an enrollment with the section it refers to.
type EnrolledSection struct {
	Enrollment Enrollment `json:"enrollment"`
	Section    Section    `json:"section"`
}

// Meeting is one weekly slot of a section. Times are HH:MM, 24h.
type Meeting struct {
	Day   string `json:"day"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// MeetingList is stored as a JSON column.
type MeetingList []Meeting

// Value implements driver.Valuer.
func (m MeetingList) Value() (driver.Value, error) {
	if m == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *MeetingList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("meeting list: unsupported source %T", src)
	}
}

// Section is an offering of a course within a term.
type Section struct {
	ID            string         `db:"id" json:"id"`
	CourseID      string         `db:"course_id" json:"course_id"`
	TermID        string         `db:"term_id" json:"term_id"`
	Code          string         `db:"code" json:"code"`
	Capacity      int            `db:"capacity" json:"capacity"`
	EnrolledCount int            `db:"enrolled_count" json:"enrolled_count"`
	Credits       int            `db:"credits" json:"credits"`
	Schedule      MeetingList    `db:"schedule" json:"schedule"`
	Prerequisites pq.StringArray `db:"prerequisites" json:"prerequisites"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	SectionID string
	TermID    string
	Status    []EnrollmentStatus
}
