package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-engine/internal/middleware"
	"github.com/noah-isme/academic-engine/internal/models"
	appErrors "github.com/noah-isme/academic-engine/pkg/errors"
)

func actorFromContext(c *gin.Context) *models.Actor {
	return models.ActorFromClaims(middleware.CurrentUser(c))
}

func invalidPayload(err error) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload")
}

// ensureSelf keeps students on their own records. Staff may act for anyone.
func ensureSelf(actor *models.Actor, studentID string) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleStudent && actor.UserID != studentID {
		return appErrors.Clone(appErrors.ErrForbidden, "students may only act on their own records")
	}
	return nil
}

func queryInt(c *gin.Context, key string, fallback int) int {
	value, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return fallback
	}
	return value
}

// queryList accepts both ?status=A,B and repeated ?status=A&status=B.
func queryList(c *gin.Context, key string) []string {
	var result []string
	for _, raw := range c.QueryArray(key) {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				result = append(result, part)
			}
		}
	}
	return result
}
