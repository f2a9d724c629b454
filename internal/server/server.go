// Package server exposes the analysis service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amishk599/skillpiler/internal/model"
)

const shutdownTimeout = 10 * time.Second

// Authenticator is the server side of the GitHub OAuth flow.
type Authenticator interface {
	LoginURL() (string, error)
	Callback(ctx context.Context, code, state string) (model.Token, error)
	Status(sessionToken string) model.AuthStatus
	Authenticate(sessionToken string) (string, []string, error)
	GitHubToken(login string) (string, bool)
}

// Options configures the HTTP server.
type Options struct {
	Addr        string
	CORSOrigins []string
}

// Server serves the REST API.
type Server struct {
	svc      model.AnalysisService
	auth     Authenticator
	validate *validator.Validate
	engine   *gin.Engine
	addr     string
	logger   *slog.Logger
}

func New(svc model.AnalysisService, auth Authenticator, opts Options, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		svc:      svc,
		auth:     auth,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		engine:   gin.New(),
		addr:     opts.Addr,
		logger:   logger,
	}

	s.engine.Use(
		RequestID(),
		Logging(logger),
		Recovery(logger),
		CORS(opts.CORSOrigins),
		Metrics(),
	)
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.engine
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Skill Piler API"})
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	api.POST("/analyze", s.handleAnalyze)
	api.GET("/analyze/timeseries/:username", s.handleTimeSeries)
	api.GET("/analyze/:job_id", s.handleStatus)
	api.GET("/analyze/:job_id/result", s.handleResult)
	api.GET("/login", s.handleLogin)
	api.POST("/callback", s.handleCallback)
	api.GET("/status", s.handleAuthStatus)
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
