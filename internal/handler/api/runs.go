package api

import (
	"context"
	"net/http"
	"time"

	"FinForecast/internal/domain/models"
	domrepo "FinForecast/internal/domain/repository"
	"FinForecast/internal/service/ratelimit"
	xhttp "FinForecast/pkg/http"
	xlogger "FinForecast/pkg/logger"

	"github.com/labstack/echo/v4"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// RunsHandler serves stored run reports.
type RunsHandler struct {
	logger  *xlogger.Logger
	reports domrepo.ReportReader
	limiter *ratelimit.Limiter
	checks  map[string]HealthCheck
}

func NewRunsHandler(logger *xlogger.Logger, reports domrepo.ReportReader, limiter *ratelimit.Limiter, checks map[string]HealthCheck) *RunsHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &RunsHandler{logger: logger, reports: reports, limiter: limiter, checks: checks}
}

func (h *RunsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api", h.rateLimit)
	g.GET("/runs/latest", h.Latest)
	g.GET("/runs/:id", h.Get)
	g.GET("/runs/:id/trials", h.Trials)
}

func (h *RunsHandler) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.limiter != nil && !h.limiter.Allow(c.RealIP()) {
			h.logger.Warn("api rate limited", xlogger.String("remote", c.RealIP()), xlogger.String("path", c.Path()))
			return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
		}
		return next(c)
	}
}

// Latest returns the most recently written report.
func (h *RunsHandler) Latest(c echo.Context) error {
	r, err := h.reports.Latest(c.Request().Context())
	if err != nil {
		h.logError("latest report", err)
		return xhttp.AppErrorResponse(c, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	return xhttp.SuccessResponse(c, r)
}

// Get returns one report by run ID.
func (h *RunsHandler) Get(c echo.Context) error {
	req := &models.RunRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	r, err := h.reports.Get(c.Request().Context(), req.ID)
	if err != nil {
		h.logError("get report", err)
		return xhttp.AppErrorResponse(c, err)
	}
	// Reports are immutable once written.
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=3600")
	return xhttp.SuccessResponse(c, r)
}

// Trials lists a run's trials, best first, optionally for one variant.
func (h *RunsHandler) Trials(c echo.Context) error {
	req := &models.TrialsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	var only models.Variant
	if req.Variant != "" {
		v, err := models.ParseVariant(req.Variant)
		if err != nil {
			return xhttp.AppErrorResponse(c, err)
		}
		only = v
	}

	r, err := h.reports.Get(c.Request().Context(), req.ID)
	if err != nil {
		h.logError("trials report", err)
		return xhttp.AppErrorResponse(c, err)
	}

	rows := models.TrialRows(r, only)
	total := len(rows)
	if len(rows) > req.Limit {
		rows = rows[:req.Limit]
	}
	return xhttp.ListResponse(c, rows, int64(total))
}

// Health reports the status of every registered dependency.
func (h *RunsHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	out := map[string]string{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			out[name] = err.Error()
			h.logger.Warn("health check failed", xlogger.String("dependency", name), xlogger.Error(err))
			continue
		}
		out[name] = "ok"
	}
	return xhttp.DataResponse(c, status, out)
}

func (h *RunsHandler) logError(msg string, err error) {
	if xhttp.FromError(err).Status >= http.StatusInternalServerError {
		h.logger.Error(msg, xlogger.Error(err))
		return
	}
	h.logger.Debug(msg, xlogger.Error(err))
}
