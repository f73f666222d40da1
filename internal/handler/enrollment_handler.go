package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-engine/internal/academic"
	"github.com/noah-isme/academic-engine/internal/dto"
	"github.com/noah-isme/academic-engine/internal/models"
	"github.com/noah-isme/academic-engine/internal/service"
	"github.com/noah-isme/academic-engine/pkg/response"
)

type enrollmentService interface {
	CheckMany(ctx context.Context, req dto.EnrollmentCheckRequest) ([]academic.EnrollmentCheck, error)
	Enroll(ctx context.Context, actor *models.Actor, req dto.EnrollRequest) (*service.EnrollmentOutcome, error)
	Drop(ctx context.Context, actor *models.Actor, enrollmentID string) (*models.Enrollment, error)
}

// EnrollmentHandler exposes enrollment endpoints.
type EnrollmentHandler struct {
	enrollments enrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// Check godoc
// @Summary Check enrollment eligibility
// @Description Every rule is evaluated and reported, including those that passed.
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body dto.EnrollmentCheckRequest true "Student and candidate sections"
// @Success 200 {object} response.Envelope
// @Router /enrollments/check [post]
func (h *EnrollmentHandler) Check(c *gin.Context) {
	var req dto.EnrollmentCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	if err := ensureSelf(actorFromContext(c), req.StudentID); err != nil {
		response.Error(c, err)
		return
	}
	checks, err := h.enrollments.CheckMany(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	eligible := 0
	for _, check := range checks {
		if check.Valid {
			eligible++
		}
	}
	response.JSON(c, http.StatusOK, checks, nil, map[string]interface{}{"eligible_count": eligible})
}

// Create godoc
// @Summary Enroll a student in a section
// @Description bypass=true commits despite failed checks and is restricted to administrators.
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body dto.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope "Eligibility checks failed"
// @Router /enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	var req dto.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	outcome, err := h.enrollments.Enroll(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, outcome)
}

// Delete godoc
// @Summary Drop an enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Delete(c *gin.Context) {
	enrollment, err := h.enrollments.Drop(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}
