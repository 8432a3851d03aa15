package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Server serves the liveness and readiness probes
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a probe server listening on port
func NewServer(port int, deps *Dependencies) *Server {
	gin.SetMode(gin.ReleaseMode)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           SetupRouter(deps),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: deps.Logger,
	}
}

// Start serves until Shutdown is called. It returns nil after a shutdown.
func (s *Server) Start() error {
	s.logger.Info("Health server listening", slog.String("addr", s.httpServer.Addr))

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("health server failed: %w", err)
	}
	return nil
}

// Shutdown stops the server, waiting for active probes up to ctx's deadline
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
