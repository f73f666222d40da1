package dto

import "github.com/noah-isme/academic-engine/internal/models"

// SubmitApplicationRequest applies a student to a department.
type SubmitApplicationRequest struct {
	StudentID    string `json:"student_id" validate:"required"`
	DepartmentID string `json:"department_id" validate:"required"`
}

// RejectApplicationRequest carries the mandatory rejection reason.
type RejectApplicationRequest struct {
	Reason string `json:"reason"`
}

// ApplicationQuery mirrors supported listing filters.
type ApplicationQuery struct {
	StudentID    string
	DepartmentID string
	Status       []models.ApplicationStatus
	Page         int
	PageSize     int
}
