// Package server exposes the entry service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/eduardoboucas/jekyll-discuss/pkg/entry"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Encrypter seals values for site owners to put in their configuration.
type Encrypter interface {
	Encrypt(plaintext string) (string, error)
}

// Server routes HTTP requests to the entry service.
type Server struct {
	echo          *echo.Echo
	service       *entry.Service
	encrypter     Encrypter
	githubSecret  []byte
	gitlabToken   string
	logger        *slog.Logger
	maxBodyLength string
}

// Option configures a Server.
type Option func(*Server)

// WithEncrypter enables GET /v1/encrypt/:text.
func WithEncrypter(e Encrypter) Option {
	return func(s *Server) { s.encrypter = e }
}

// WithGitHubWebhookSecret sets the secret GitHub deliveries are signed with.
func WithGitHubWebhookSecret(secret string) Option {
	return func(s *Server) { s.githubSecret = []byte(secret) }
}

// WithGitLabWebhookToken sets the token GitLab deliveries carry.
func WithGitLabWebhookToken(token string) Option {
	return func(s *Server) { s.gitlabToken = token }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a server for service.
func New(service *entry.Service, opts ...Option) *Server {
	s := &Server{
		echo:          echo.New(),
		service:       service,
		logger:        slog.Default(),
		maxBodyLength: "1M",
	}
	for _, opt := range opts {
		opt(s)
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.BodyLimit(s.maxBodyLength))
	s.echo.Use(middleware.CORS())
	s.echo.Use(s.requestLog)

	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/health", s.handleHealth)

	v1 := s.echo.Group("/v1")
	v1.POST("/entry/:service/:username/:repository/:branch/:property", s.handleEntry)
	v1.POST("/entry/:username/:repository/:branch/:property", s.handleEntry)
	v1.POST("/webhook/github", s.handleGitHubWebhook)
	v1.POST("/webhook/gitlab", s.handleGitLabWebhook)
	v1.GET("/encrypt/:text", s.handleEncrypt)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Run listens on addr until ctx is cancelled, then drains in-flight requests
// for at most shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down")
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

func (s *Server) requestLog(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		s.logger.Debug("request",
			"method", c.Request().Method,
			"path", c.Path(),
			"status", c.Response().Status,
			"duration", time.Since(start),
		)
		return nil
	}
}
