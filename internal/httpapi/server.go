// Package httpapi is a read-only status surface for a running fleetcron
// Manager. It never calls Lock or Save: a GET-only view over whatever the
// Repository already holds, so it cannot interfere with the coordination
// protocol it's reporting on.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/plykit/fleetcron/job"
	"github.com/plykit/fleetcron/manager"
	"github.com/plykit/fleetcron/pkg/types"
	"github.com/plykit/fleetcron/repo"
)

// Config controls the optional status server.
type Config struct {
	Addr           string
	RateLimitRPS   float64
	RateLimitBurst int
}

// Server exposes job status over HTTP for operational visibility.
type Server struct {
	cfg    Config
	echo   *echo.Echo
	mgr    *manager.Manager
	repo   repo.Repository
	logger zerolog.Logger
}

// New builds a Server backed by mgr (for the registered job list) and
// repository (for per-job current state).
func New(cfg Config, mgr *manager.Manager, repository repo.Repository, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newCustomValidator()
	e.Use(middleware.Recover())
	e.Use(rateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst))
	e.HTTPErrorHandler = envelopeErrorHandler

	s := &Server{
		cfg:    cfg,
		echo:   e,
		mgr:    mgr,
		repo:   repository,
		logger: logger.With().Str("component", "httpapi").Logger(),
	}

	e.GET("/health", s.handleHealth)
	e.GET("/jobs", s.handleJobs)
	e.GET("/jobs/:name", s.handleJob)

	return s
}

// Start blocks serving HTTP until the server errors or is shut down.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.cfg.Addr).Msg("starting status server")
	if err := s.echo.Start(s.cfg.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// envelopeErrorHandler reports echo.HTTPError (and anything else) through
// the same types.Response[T] envelope successful responses use, so callers
// never have to branch on shape to find the error.
func envelopeErrorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := err.Error()
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}
	if !c.Response().Committed {
		_ = c.JSON(code, types.Err[any](apiErrCode(code), msg))
	}
}

func apiErrCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return types.ErrCodeInvalidInput
	case http.StatusNotFound:
		return types.ErrCodeNotFound
	case http.StatusTooManyRequests:
		return types.ErrCodeRateLimited
	default:
		return types.ErrCodeInternal
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, types.OK(map[string]string{"status": "ok"}))
}

// jobsQuery binds and validates the optional ?limit= query parameter.
type jobsQuery struct {
	Limit int `query:"limit" validate:"omitempty,min=1,max=1000"`
}

func (s *Server) handleJobs(c echo.Context) error {
	var q jobsQuery
	if err := c.Bind(&q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&q); err != nil {
		return err
	}

	names := s.mgr.Jobs()
	if q.Limit > 0 && q.Limit < len(names) {
		names = names[:q.Limit]
	}

	views := make([]jobView, 0, len(names))
	for _, name := range names {
		v, err := s.lookupView(c.Request().Context(), name)
		if err != nil {
			s.logger.Debug().Err(err).Str("job", string(name)).Msg("status lookup failed")
			continue
		}
		views = append(views, v)
	}
	return c.JSON(http.StatusOK, types.OK(views))
}

func (s *Server) handleJob(c echo.Context) error {
	name := job.Name(c.Param("name"))
	v, err := s.lookupView(c.Request().Context(), name)
	if err != nil {
		if err == repo.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "job not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, types.OK(v))
}

// jobView is the JSON shape reported for one job; it deliberately omits
// the opaque state blob, which is an implementation detail of the job
// body, not an operational signal.
type jobView struct {
	Name     job.Name  `json:"name"`
	Schedule string    `json:"schedule"`
	Enabled  bool      `json:"enabled"`
	LastRun  time.Time `json:"last_run"`
	Locked   bool      `json:"locked"`
	Owner    string    `json:"owner,omitempty"`
}

func (s *Server) lookupView(ctx context.Context, name job.Name) (jobView, error) {
	data, err := s.repo.Get(ctx, name)
	if err != nil {
		return jobView{}, err
	}
	return jobView{
		Name:     data.Name,
		Schedule: data.ScheduleExpr,
		Enabled:  data.Enabled,
		LastRun:  data.LastRun,
		Locked:   data.LeaseValid(time.Now().UTC()),
		Owner:    data.Owner,
	}, nil
}
