package repository

import (
	"context"

	"FinForecast/internal/domain/models"
)

// CandleSource loads the raw OHLCV history a run trains on.
type CandleSource interface {
	Name() string
	Load(ctx context.Context) ([]models.Candle, error)
}

// ReportSink receives a finished run report (cache, warehouse, broker).
type ReportSink interface {
	Name() string
	Write(ctx context.Context, r *models.RunReport) error
}

// ReportReader serves previously written reports.
type ReportReader interface {
	Latest(ctx context.Context) (*models.RunReport, error)
	Get(ctx context.Context, runID string) (*models.RunReport, error)
}

// ProgressNotifier is told about every finished epoch.
type ProgressNotifier interface {
	Notify(ev models.ProgressEvent)
}

// Metrics records training and evaluation telemetry.
type Metrics interface {
	RecordEpoch(variant models.Variant, stage string, trainLoss, valLoss float64)
	RecordTrial(variant models.Variant, status string, seconds float64)
	RecordEvaluation(variant models.Variant, m models.Metrics)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
