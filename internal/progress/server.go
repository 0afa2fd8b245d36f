// Package progress serves the live state of a migration run over HTTP.
// The server is read-only and optional: the migration never depends on it.
package progress

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/linguanet/linguanet-go/internal/buildinfo"
	"github.com/linguanet/linguanet-go/internal/migration"
	"github.com/linguanet/linguanet-go/internal/observability"
)

// Source yields a snapshot of the running migration.
type Source interface {
	Progress() migration.Progress
}

// Server exposes run progress, liveness and metrics while a migration
// executes.
type Server struct {
	echo   *echo.Echo
	log    *slog.Logger
	source Source
	addr   string
	build  buildinfo.BuildInfo
}

// New builds the server. The metrics handler is mounted only when metrics
// are collected.
func New(addr string, source Source, m *observability.Metrics, build buildinfo.BuildInfo, log *slog.Logger) *Server {
	s := &Server{
		log:    log,
		source: source,
		addr:   addr,
		build:  build,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.GET("/healthz", s.health)
	e.GET("/api/v1/progress", s.progress)
	if m != nil {
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}

	s.echo = e
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start begins serving in the background. A failure to bind is logged and
// does not stop the migration.
func (s *Server) Start() {
	go func() {
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("progress server stopped", "addr", s.addr, "error", err)
		}
	}()
	s.log.Info("progress server listening", "addr", s.addr)
}

// Shutdown stops the server, waiting up to the context deadline for
// in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

type healthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	BuildDate string    `json:"build_date"`
	Time      time.Time `json:"time"`
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:    "ok",
		Version:   s.build.GetVersion(),
		BuildDate: s.build.GetBuildDate(),
		Time:      time.Now().UTC(),
	})
}

func (s *Server) progress(c echo.Context) error {
	return c.JSON(http.StatusOK, s.source.Progress())
}
