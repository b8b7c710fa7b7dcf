package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

type Server struct {
	Engine  *gin.Engine
	Addr    string
	OpsAddr string
	health  HealthChecker
	ops     *opsMetrics
}

// HealthChecker is an interface for components that can report their health status.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// New builds the gin engine with /health and request instrumentation. opsAddr may be empty,
// in which case no ops listener is started.
func New(addr, opsAddr string, health HealthChecker, mode string) *Server {
	// Set Gin mode based on configuration
	if mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ops := newOpsMetrics()

	r := gin.Default()
	r.Use(ops.middleware())

	s := &Server{
		Engine:  r,
		Addr:    addr,
		OpsAddr: opsAddr,
		health:  health,
		ops:     ops,
	}

	// Health check endpoint with storage connectivity verification
	r.GET("/health", s.healthHandler)

	return s
}

// OpsGatherer exposes the ops registry.
func (s *Server) OpsGatherer() prometheus.Gatherer {
	return s.ops.registry
}

// OpsHandler serves the ops registry in the Prometheus exposition format.
func (s *Server) OpsHandler() http.Handler {
	return promhttp.HandlerFor(s.ops.registry, promhttp.HandlerOpts{})
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	// Check storage connectivity
	if s.health != nil {
		if err := s.health.Ping(ctx); err != nil {
			slog.Error("[Server] Health check failed: storage unreachable", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "storage unreachable",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"storage": "connected",
	})
}

// Run serves until ctx is cancelled, then shuts every listener down gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return serve(gctx, "HTTP Server", &http.Server{
			Addr:              s.Addr,
			Handler:           s.Engine,
			ReadHeaderTimeout: 10 * time.Second,
		})
	})

	if s.OpsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.OpsHandler())
		g.Go(func() error {
			return serve(gctx, "Ops Server", &http.Server{
				Addr:              s.OpsAddr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			})
		})
	}

	return g.Wait()
}

func serve(ctx context.Context, name string, srv *http.Server) error {
	slog.Info("Starting "+name+"...", "address", srv.Addr)

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		slog.Info("Stopping " + name + "...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error(name+" forced to shutdown", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}
