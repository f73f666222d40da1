package dto

import "github.com/noah-isme/academic-engine/internal/models"

// RecordScoreRequest sets one component score of an enrollment.
type RecordScoreRequest struct {
	EnrollmentID string   `json:"enrollment_id" validate:"required"`
	ComponentID  string   `json:"component_id" validate:"required"`
	Score        *float64 `json:"score" validate:"required"`
}

// Bulk score entry modes.
const (
	BulkModeAtomic         = "atomic"
	BulkModePartialOnError = "partialOnError"
)

// BulkScoresRequest records many scores. In atomic mode one bad item rejects the whole batch;
// in partialOnError mode every enrollment is saved independently.
type BulkScoresRequest struct {
	Mode  string               `json:"mode" validate:"omitempty,oneof=atomic partialOnError"`
	Items []RecordScoreRequest `json:"items" validate:"required,min=1,dive"`
}

// ScoreFailure describes a score that was not saved.
type ScoreFailure struct {
	EnrollmentID string `json:"enrollment_id"`
	ComponentID  string `json:"component_id,omitempty"`
	Reason       string `json:"reason"`
}

// BulkScoresResult summarises a bulk score entry.
type BulkScoresResult struct {
	SuccessCount int                  `json:"success_count"`
	Grades       []models.CourseGrade `json:"grades"`
	Failures     []ScoreFailure       `json:"failures,omitempty"`
}
