package rest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/accessforge/erp-access-advisor/internal/infrastructure/config"
)

// Server is the advisor's HTTP server
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// newRouter builds the route table
func newRouter(handler *Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/recommendations", handler.HandleRecommend)
	mux.HandleFunc("POST /api/v1/conflicts/check", handler.HandleConflictCheck)
	mux.HandleFunc("GET /api/v1/patterns/{algorithmID}/{patternKey}", handler.HandleGetPatternState)
	mux.HandleFunc("POST /api/v1/rollbacks", handler.HandleRollback)
	mux.HandleFunc("POST /api/v1/patterns/{algorithmID}/{patternKey}/approve", handler.HandleApprove)
	mux.HandleFunc("POST /api/v1/patterns/{algorithmID}/{patternKey}/observations", handler.HandleObservationReport)
	mux.HandleFunc("POST /api/v1/patterns/{algorithmID}/{patternKey}/disable", handler.HandleDisable)
	mux.HandleFunc("POST /api/v1/patterns/{algorithmID}/{patternKey}/reenable", handler.HandleReenable)
	mux.HandleFunc("POST /api/v1/admin/rebuild", handler.HandleRebuild)
	mux.HandleFunc("GET /healthz", handler.HandleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// NewServer wires the handler into the route table and middleware stack
func NewServer(cfg *config.ServerConfig, handler *Handler, logger *zap.Logger) *Server {
	root := Chain(newRouter(handler),
		Recovery(logger),
		RequestLogging(logger),
		RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.BurstSize),
	)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      root,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		logger: logger,
	}
}

// ListenAndServe blocks serving requests until Shutdown
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
