package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-engine/internal/models"
	"github.com/noah-isme/academic-engine/pkg/response"
)

type standingService interface {
	Standing(ctx context.Context, studentID string) (*models.AcademicStanding, error)
}

// StandingHandler serves computed academic standing.
type StandingHandler struct {
	standing standingService
}

// NewStandingHandler constructs StandingHandler.
func NewStandingHandler(standing standingService) *StandingHandler {
	return &StandingHandler{standing: standing}
}

// Get godoc
// @Summary Get a student's GPA and academic standing
// @Tags Standing
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/standing [get]
func (h *StandingHandler) Get(c *gin.Context) {
	standing, err := h.standing.Standing(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, standing, nil)
}
