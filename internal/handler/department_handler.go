package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-engine/internal/dto"
	"github.com/noah-isme/academic-engine/internal/models"
	"github.com/noah-isme/academic-engine/pkg/response"
)

type departmentService interface {
	Eligibility(ctx context.Context, actor *models.Actor, studentID, departmentID string) (*models.DepartmentEligibility, error)
	EligibilityAll(ctx context.Context, actor *models.Actor, studentID string) ([]models.DepartmentEligibility, error)
	Submit(ctx context.Context, actor *models.Actor, req dto.SubmitApplicationRequest) (*models.DepartmentApplication, error)
	Approve(ctx context.Context, actor *models.Actor, applicationID string) (*models.DepartmentApplication, error)
	Reject(ctx context.Context, actor *models.Actor, applicationID string, req dto.RejectApplicationRequest) (*models.DepartmentApplication, error)
	Withdraw(ctx context.Context, actor *models.Actor, applicationID string) (*models.DepartmentApplication, error)
	ListApplications(ctx context.Context, actor *models.Actor, query dto.ApplicationQuery) ([]models.DepartmentApplication, *models.Pagination, error)
}

// DepartmentHandler exposes department eligibility and application workflow endpoints.
type DepartmentHandler struct {
	departments departmentService
}

// NewDepartmentHandler constructs DepartmentHandler.
func NewDepartmentHandler(departments departmentService) *DepartmentHandler {
	return &DepartmentHandler{departments: departments}
}

// Eligibility godoc
// @Summary Department eligibility for a student
// @Description Without departmentId every department is evaluated.
// @Tags Departments
// @Produce json
// @Param id path string true "Student ID"
// @Param departmentId query string false "Evaluate a single department"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/departments/eligibility [get]
func (h *DepartmentHandler) Eligibility(c *gin.Context) {
	actor := actorFromContext(c)
	studentID := c.Param("id")
	if departmentID := c.Query("departmentId"); departmentID != "" {
		result, err := h.departments.Eligibility(c.Request.Context(), actor, studentID, departmentID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, result, nil)
		return
	}
	results, err := h.departments.EligibilityAll(c.Request.Context(), actor, studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}

// Submit godoc
// @Summary Apply to a department
// @Tags Department Applications
// @Accept json
// @Produce json
// @Param payload body dto.SubmitApplicationRequest true "Application payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope "A pending application already exists"
// @Failure 422 {object} response.Envelope "Student is not eligible"
// @Router /department-applications [post]
func (h *DepartmentHandler) Submit(c *gin.Context) {
	var req dto.SubmitApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	app, err := h.departments.Submit(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, app)
}

// List godoc
// @Summary List department applications
// @Tags Department Applications
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param departmentId query string false "Filter by department"
// @Param status query string false "Comma separated statuses"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /department-applications [get]
func (h *DepartmentHandler) List(c *gin.Context) {
	query := dto.ApplicationQuery{
		StudentID:    c.Query("studentId"),
		DepartmentID: c.Query("departmentId"),
		Page:         queryInt(c, "page", 1),
		PageSize:     queryInt(c, "limit", 50),
	}
	for _, status := range queryList(c, "status") {
		query.Status = append(query.Status, models.ApplicationStatus(strings.ToUpper(status)))
	}
	apps, pagination, err := h.departments.ListApplications(c.Request.Context(), actorFromContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, apps, pagination)
}

// Approve godoc
// @Summary Approve a pending application
// @Tags Department Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Application is not pending"
// @Router /department-applications/{id}/approve [post]
func (h *DepartmentHandler) Approve(c *gin.Context) {
	app, err := h.departments.Approve(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// Reject godoc
// @Summary Reject a pending application
// @Tags Department Applications
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.RejectApplicationRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Router /department-applications/{id}/reject [post]
func (h *DepartmentHandler) Reject(c *gin.Context) {
	var req dto.RejectApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	app, err := h.departments.Reject(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// Withdraw godoc
// @Summary Withdraw an own pending application
// @Tags Department Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Router /department-applications/{id}/withdraw [post]
func (h *DepartmentHandler) Withdraw(c *gin.Context) {
	app, err := h.departments.Withdraw(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}
