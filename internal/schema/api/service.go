package api

import (
	"github.com/aevon-lab/indexer-metrics-collector/internal/schema"
	"github.com/gin-gonic/gin"
)

// Service provides the schema discovery API.
type Service struct {
	registry *schema.Registry
}

// NewService creates a new schema API service.
func NewService(reg *schema.Registry) *Service {
	return &Service{
		registry: reg,
	}
}

// RegisterRoutes registers the schema API routes.
// validateGuards run in front of the dry-run validation endpoint only.
func (s *Service) RegisterRoutes(r gin.IRouter, validateGuards ...gin.HandlerFunc) {
	handler := NewHandler(s.registry)

	schemas := r.Group("/v1/schemas")
	{
		schemas.GET("", handler.HandleList)
		schemas.GET("/:name", handler.HandleGet)

		validate := append(append([]gin.HandlerFunc{}, validateGuards...), handler.HandleValidate)
		schemas.POST("/:name/validate", validate...)
	}
}
