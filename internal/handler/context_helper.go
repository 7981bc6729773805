package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/noah-isme/rootle-api/internal/middleware"
	"github.com/noah-isme/rootle-api/internal/models"
	appErrors "github.com/noah-isme/rootle-api/pkg/errors"
	"github.com/noah-isme/rootle-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		return nil
	}
	return claims
}

// requireClaims writes a 401 and returns nil when the request is anonymous.
func requireClaims(c *gin.Context) *models.JWTClaims {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
	}
	return claims
}

// pathID reads a uuid route parameter. Anything else cannot name a row, so it
// is answered with 404 before reaching the database.
func pathID(c *gin.Context, name string) (string, bool) {
	raw := strings.TrimSpace(c.Param(name))
	if _, err := uuid.Parse(raw); err != nil {
		response.Error(c, appErrors.ErrNotFound)
		return "", false
	}
	return raw, true
}

func metaWithWarnings(c *gin.Context, warnings []string) map[string]interface{} {
	middleware.AddWarnings(c, warnings...)
	meta := middleware.ExtractMeta(c)
	if meta == nil && len(warnings) > 0 {
		meta = map[string]interface{}{"warnings": warnings}
	}
	return meta
}
