package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/notebook-tracker-api/internal/middleware"
	"github.com/noah-isme/notebook-tracker-api/internal/models"
	appErrors "github.com/noah-isme/notebook-tracker-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

// actorID returns the authenticated user id, or empty for anonymous calls.
func actorID(c *gin.Context) string {
	if claims := claimsFromContext(c); claims != nil {
		return claims.UserID
	}
	return ""
}

// thresholdQuery parses ?threshold=. Absent means zero, which selects the default.
func thresholdQuery(c *gin.Context) (int, error) {
	raw := strings.TrimSpace(c.Query("threshold"))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "threshold must be a positive integer")
	}
	return value, nil
}
