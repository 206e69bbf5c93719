// Package api serves the hedge factor pipelines over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	pz "github.com/weberc2/httpeasy"

	"github.com/jmylchreest/hedgefactor/internal/logger"
	"github.com/jmylchreest/hedgefactor/internal/report"
	"github.com/jmylchreest/hedgefactor/pkg/hedge"
)

// UpdateRunner runs the free-text update pipeline.
type UpdateRunner interface {
	Run(ctx context.Context, text string) (*hedge.UpdateResult, error)
}

// ReportRunner runs the batch factor pipeline.
type ReportRunner interface {
	Run(ctx context.Context, records []hedge.SellerRateRecord) (*hedge.ReportResult, error)
}

// Config configures a Server.
type Config struct {
	Addr           string
	RequestTimeout time.Duration
	CORSOrigins    []string

	// ChartsDir and MeanTolerance are passed to report.Build.
	ChartsDir     string
	MeanTolerance float64

	// AccessLog receives httpeasy's per-request JSON log lines.
	AccessLog io.Writer
}

// DefaultConfig returns the serve defaults.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8000",
		RequestTimeout: 120 * time.Second,
		CORSOrigins:    []string{"*"},
		MeanTolerance:  report.DefaultMeanTolerance,
	}
}

// Server exposes the pipelines. Either runner may be nil, in which case its
// endpoints answer 503 and GET / reports agent_loaded=false.
type Server struct {
	cfg    Config
	update UpdateRunner
	report ReportRunner

	// base is cancelled on shutdown so in-flight model calls stop.
	base context.Context
}

// NewServer creates a server.
func NewServer(cfg Config, update UpdateRunner, rep ReportRunner) *Server {
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = def.CORSOrigins
	}
	if cfg.AccessLog == nil {
		cfg.AccessLog = io.Discard
	}
	return &Server{cfg: cfg, update: update, report: rep, base: context.Background()}
}

// Routes returns the API routes.
func (s *Server) Routes() []pz.Route {
	return []pz.Route{
		{Method: "GET", Path: "/", Handler: s.Root},
		{Method: "GET", Path: "/health", Handler: s.Health},
		{Method: "POST", Path: "/api/update-hedge-factor", Handler: s.UpdateHedgeFactor},
		{Method: "POST", Path: "/api/chat", Handler: s.Chat},
		{Method: "POST", Path: "/api/report", Handler: s.Report},
	}
}

// Handler returns the routes wrapped in CORS and request logging.
func (s *Server) Handler() http.Handler {
	h := pz.Register(pz.JSONLog(s.cfg.AccessLog), s.Routes()...)
	return withRequestLog(withCORS(s.cfg.CORSOrigins, h))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.base = ctx
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutting down http server", "error", err)
			if err := server.Close(); err != nil {
				logger.Error("force-closing http server", "error", err)
			}
		}
	}()

	logger.Info("starting hedge factor api", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("running api server: %w", err)
	}
	return nil
}

// requestContext bounds one request's pipeline work.
func (s *Server) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(s.base, s.cfg.RequestTimeout)
}
