package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-engine/internal/dto"
	"github.com/noah-isme/academic-engine/internal/models"
	"github.com/noah-isme/academic-engine/pkg/response"
)

type gradeService interface {
	GetCourseGrade(ctx context.Context, enrollmentID string) (*models.CourseGrade, error)
	RecordScore(ctx context.Context, req dto.RecordScoreRequest) (*models.CourseGrade, error)
	BulkRecordScores(ctx context.Context, req dto.BulkScoresRequest) (*dto.BulkScoresResult, error)
	Publish(ctx context.Context, enrollmentID string) (*models.CourseGrade, error)
}

// GradeHandler exposes score entry and course grade endpoints.
type GradeHandler struct {
	grades gradeService
}

// NewGradeHandler constructs GradeHandler.
func NewGradeHandler(grades gradeService) *GradeHandler {
	return &GradeHandler{grades: grades}
}

// GetCourseGrade godoc
// @Summary Get the course grade of an enrollment
// @Tags Grades
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /grades/enrollments/{id} [get]
func (h *GradeHandler) GetCourseGrade(c *gin.Context) {
	grade, err := h.grades.GetCourseGrade(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// RecordScore godoc
// @Summary Record a component score
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body dto.RecordScoreRequest true "Score payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Grade already published"
// @Router /grades/scores [post]
func (h *GradeHandler) RecordScore(c *gin.Context) {
	var req dto.RecordScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	grade, err := h.grades.RecordScore(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// BulkRecordScores godoc
// @Summary Record many component scores
// @Description mode=atomic rejects the batch on the first invalid item; mode=partialOnError saves every valid enrollment.
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body dto.BulkScoresRequest true "Bulk payload"
// @Success 200 {object} response.Envelope
// @Router /grades/scores/bulk [post]
func (h *GradeHandler) BulkRecordScores(c *gin.Context) {
	var req dto.BulkScoresRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	result, err := h.grades.BulkRecordScores(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil, map[string]interface{}{"failed_count": len(result.Failures)})
}

// Publish godoc
// @Summary Publish a complete course grade
// @Tags Grades
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope "Grade is not complete"
// @Router /grades/enrollments/{id}/publish [post]
func (h *GradeHandler) Publish(c *gin.Context) {
	grade, err := h.grades.Publish(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}
