package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"FinForecast/internal/domain/models"
	"FinForecast/internal/handler/ws"
	"FinForecast/internal/usecase"
	"FinForecast/pkg/config"
	xhttp "FinForecast/pkg/http"
	applogger "FinForecast/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	pipeline   *usecase.ForecastPipeline
	httpServer *xhttp.Server // nil when server.enabled is false
	hub        *ws.Hub
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	pipeline *usecase.ForecastPipeline,
	httpServer *xhttp.Server,
	hub *ws.Hub,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		pipeline:   pipeline,
		httpServer: httpServer,
		hub:        hub,
	}
}

// Run executes one forecasting run. Without an HTTP server it returns when
// the run is done; otherwise it keeps serving reports until SIGINT/SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.run(ctx)
}

func (a *App) run(ctx context.Context) error {
	var serveErr <-chan error
	if a.httpServer != nil {
		serveErr = a.httpServer.Start()
	}

	report, err := a.pipeline.Run(ctx)
	switch {
	case report == nil && err != nil:
		a.log.Error("forecast run failed", applogger.Error(err))
		a.shutdown()
		return err
	case err != nil:
		a.log.Warn("forecast run finished with sink errors",
			applogger.String("run_id", report.RunID), applogger.Error(err))
	default:
		a.logSummary(report)
	}

	if a.httpServer == nil {
		a.shutdown()
		return err
	}

	a.log.Info("serving reports", applogger.String("addr", a.httpServer.Addr()))
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case serr, ok := <-serveErr:
		if ok && serr != nil {
			a.shutdown()
			return serr
		}
	}
	a.shutdown()
	return nil
}

func (a *App) logSummary(r *models.RunReport) {
	for _, vr := range r.Variants {
		a.log.Info("variant result",
			applogger.String("run_id", r.RunID),
			applogger.String("variant", string(vr.Variant)),
			applogger.String("best", vr.Best.Config.String()),
			applogger.Float64("val_loss", vr.Best.ValidationLoss),
			applogger.Float64("mse", vr.Metrics.MSE),
			applogger.Float64("mae", vr.Metrics.MAE),
			applogger.String("r2", vr.Metrics.R2.String()),
		)
	}
}

// shutdown stops the HTTP side. Infrastructure clients are closed by the
// cleanup returned from dependency injection.
func (a *App) shutdown() {
	if a.hub != nil {
		a.hub.Close()
	}
	if a.httpServer != nil {
		if err := a.httpServer.Stop(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error("http shutdown error", applogger.Error(err))
		}
	}
	a.log.Info("shutdown complete")
}
