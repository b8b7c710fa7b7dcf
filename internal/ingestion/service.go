package ingestion

import (
	"log/slog"
	"net/http"

	v1 "github.com/aevon-lab/indexer-metrics-collector/internal/api/v1"
	"github.com/aevon-lab/indexer-metrics-collector/internal/auth"
	"github.com/aevon-lab/indexer-metrics-collector/internal/collector"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServiceName is returned by the root route.
const ServiceName = "indexer-metrics-collector"

const contextKeyRequestID = "ingestion.request_id"

type Service struct {
	parser           *v1.Parser
	collector        *collector.Collector
	authorizer       *auth.Authorizer
	maxBodySizeBytes int
}

func NewService(parser *v1.Parser, coll *collector.Collector, authorizer *auth.Authorizer, maxBodySizeMB int) *Service {
	if parser == nil {
		panic("ingestion: parser must not be nil")
	}
	if coll == nil {
		panic("ingestion: collector must not be nil")
	}
	if authorizer == nil {
		panic("ingestion: authorizer must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1 // default to 1MB
	}
	return &Service{
		parser:           parser,
		collector:        coll,
		authorizer:       authorizer,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
	}
}

// RegisterRoutes registers the ingestion service routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/", s.RootHandler)

	r.POST("/events",
		s.receive,
		auth.RequireCapability(s.authorizer, auth.CapabilitySubmitEvent),
		s.IngestHandler)

	metricsHandler := promhttp.HandlerFor(s.collector.Gatherer(), promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
	r.GET("/metrics",
		s.receive,
		auth.RequireCapability(s.authorizer, auth.CapabilityReadMetrics),
		s.logAuthorized,
		gin.WrapH(metricsHandler))
}

// RootHandler identifies the service.
func (s *Service) RootHandler(c *gin.Context) {
	c.String(http.StatusOK, ServiceName)
}

// receive assigns the request id and records the Received state.
func (s *Service) receive(c *gin.Context) {
	requestID := uuid.NewString()
	c.Set(contextKeyRequestID, requestID)
	slog.Debug("[Ingestion] Received", "request_id", requestID, "method", c.Request.Method, "path", c.FullPath())
	c.Next()
}

func (s *Service) logAuthorized(c *gin.Context) {
	slog.Debug("[Ingestion] Authorized", "request_id", c.GetString(contextKeyRequestID), "client", c.GetString(auth.ContextKeyClient))
	c.Next()
}
