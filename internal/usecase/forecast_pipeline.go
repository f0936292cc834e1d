package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"FinForecast/internal/dataset"
	"FinForecast/internal/domain/models"
	domrepo "FinForecast/internal/domain/repository"
	"FinForecast/internal/training"
	"FinForecast/pkg/logger"

	"github.com/google/uuid"
)

// PipelineConfig drives one forecasting run.
type PipelineConfig struct {
	Symbol          string
	WindowSize      int
	Split           dataset.Ratios
	Variants        []models.Variant
	Grid            training.Grid
	SearchEpochs    int
	FinalEpochs     int
	Workers         int
	Seed            int64 // 0 picks a time-based seed
	GradientClip    float64
	KeepPredictions bool
}

// Validate performs the checks that do not need data.
func (c PipelineConfig) Validate() error {
	if c.WindowSize < 1 {
		return models.NewConfigError("pipeline.window_size", "must be >= 1, got %d", c.WindowSize)
	}
	if err := c.Split.Validate(); err != nil {
		return err
	}
	if len(c.Variants) == 0 {
		return models.NewConfigError("pipeline.variants", "at least one variant is required")
	}
	if c.SearchEpochs < 1 {
		return models.NewConfigError("search.epochs", "must be >= 1, got %d", c.SearchEpochs)
	}
	if c.FinalEpochs < 1 {
		return models.NewConfigError("training.epochs", "must be >= 1, got %d", c.FinalEpochs)
	}
	if c.SearchEpochs >= c.FinalEpochs {
		return models.NewConfigError("search.epochs", "must be < training.epochs (%d), got %d", c.FinalEpochs, c.SearchEpochs)
	}
	if _, err := c.Grid.Configs(c.Variants[0]); err != nil {
		return err
	}
	return nil
}

// ForecastPipeline loads history, prepares windows, then searches, retrains
// and evaluates every configured variant before handing the report to the
// sinks.
type ForecastPipeline struct {
	cfg      PipelineConfig
	source   domrepo.CandleSource
	sinks    []domrepo.ReportSink
	notifier domrepo.ProgressNotifier
	metrics  domrepo.Metrics
	log      *logger.Logger
	now      func() time.Time
}

func NewForecastPipeline(
	cfg PipelineConfig,
	source domrepo.CandleSource,
	sinks []domrepo.ReportSink,
	notifier domrepo.ProgressNotifier,
	metrics domrepo.Metrics,
	log *logger.Logger,
) *ForecastPipeline {
	if log == nil {
		log = logger.Nop()
	}
	return &ForecastPipeline{
		cfg:      cfg,
		source:   source,
		sinks:    sinks,
		notifier: notifier,
		metrics:  metrics,
		log:      log,
		now:      time.Now,
	}
}

// prepared is the windowed, scaled and split view of the loaded history.
type prepared struct {
	scaler *dataset.Scaler
	all    dataset.Dataset
	train  dataset.Dataset
	val    dataset.Dataset
	test   dataset.Dataset
}

// Run executes the full pipeline. Data and configuration errors abort
// immediately. Sink failures are reported after every sink was tried; the
// report is returned either way.
func (p *ForecastPipeline) Run(ctx context.Context) (*models.RunReport, error) {
	if err := p.cfg.Validate(); err != nil {
		return nil, err
	}
	report := &models.RunReport{
		RunID:      uuid.NewString(),
		Symbol:     p.cfg.Symbol,
		StartedAt:  p.now().UTC(),
		WindowSize: p.cfg.WindowSize,
	}
	log := p.log.With(logger.String("run_id", report.RunID), logger.String("symbol", p.cfg.Symbol))

	data, err := p.prepare(ctx, log)
	if err != nil {
		p.recordError("prepare")
		log.Error("data preparation failed", logger.Error(err))
		return nil, err
	}
	report.TrainSize, report.ValSize, report.TestSize = data.train.Len(), data.val.Len(), data.test.Len()
	report.Scaler = data.scaler.State()

	seed := p.cfg.Seed
	if seed == 0 {
		seed = p.now().UnixNano()
	}
	log.Info("run started",
		logger.Int("windows", data.all.Len()),
		logger.Int("train", report.TrainSize),
		logger.Int("val", report.ValSize),
		logger.Int("test", report.TestSize),
		logger.Int64("seed", seed),
	)

	for i, v := range p.cfg.Variants {
		vr, err := p.runVariant(ctx, report.RunID, v, seed+int64(i)<<32, data, log)
		if err != nil {
			p.recordError("variant")
			log.Error("variant failed", logger.String("variant", string(v)), logger.Error(err))
			return nil, fmt.Errorf("%s: %w", v, err)
		}
		report.Variants = append(report.Variants, *vr)
	}
	report.FinishedAt = p.now().UTC()

	return report, p.publish(ctx, report, log)
}

func (p *ForecastPipeline) prepare(ctx context.Context, log *logger.Logger) (*prepared, error) {
	start := time.Now()
	candles, err := p.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", p.source.Name(), err)
	}
	p.recordLatency("load", start)

	tbl, err := dataset.FromCandles(candles)
	if err != nil {
		return nil, err
	}
	w := p.cfg.WindowSize
	total := tbl.Len() - w
	if total < 1 {
		return nil, models.NewConfigError("pipeline.window_size", "window %d needs more than %d rows", w, tbl.Len())
	}
	nTrain, nVal, nTest := p.cfg.Split.Sizes(total)
	if nTrain == 0 || nVal == 0 || nTest == 0 {
		return nil, models.NewConfigError("split", "%d windows give empty partitions (%d/%d/%d)", total, nTrain, nVal, nTest)
	}

	// Rows [0, w+nTrain) are exactly those seen by training windows.
	scaler, err := dataset.FitScaler(tbl.Slice(0, w+nTrain))
	if err != nil {
		return nil, err
	}
	scaled, err := scaler.Transform(tbl)
	if err != nil {
		return nil, err
	}
	all, err := dataset.BuildWindows(scaled, w)
	if err != nil {
		return nil, err
	}
	train, val, test, err := dataset.Split(all, p.cfg.Split)
	if err != nil {
		return nil, err
	}
	log.Debug("dataset prepared",
		logger.String("source", p.source.Name()),
		logger.Int("rows", tbl.Len()),
		logger.Duration("duration_ms", time.Since(start)),
	)
	return &prepared{scaler: scaler, all: all, train: train, val: val, test: test}, nil
}

func (p *ForecastPipeline) runVariant(ctx context.Context, runID string, v models.Variant, seed int64, data *prepared, log *logger.Logger) (*models.VariantReport, error) {
	build := training.ClippedBuilder(p.cfg.GradientClip)
	search := &training.Search{
		Grid:     p.cfg.Grid,
		Epochs:   p.cfg.SearchEpochs,
		Seed:     seed,
		Workers:  p.cfg.Workers,
		Build:    build,
		RunID:    runID,
		Notifier: p.notifier,
		Metrics:  p.metrics,
		Logger:   log,
	}
	start := time.Now()
	sr, err := search.Run(ctx, v, data.train, data.val)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	p.recordLatency("search", start)

	best := sr.Best.Config
	rng := rand.New(rand.NewSource(seed - 1))
	m, err := build(best, data.all.Features, rng)
	if err != nil {
		return nil, err
	}
	loop := &training.Loop{
		Epochs:   p.cfg.FinalEpochs,
		Rand:     rng,
		RunID:    runID,
		Stage:    models.StageFinal,
		Trial:    sr.Best.Index,
		Notifier: p.notifier,
		Metrics:  p.metrics,
		Logger:   log,
	}
	start = time.Now()
	final, err := loop.Run(ctx, m, data.train, data.val)
	if err != nil {
		return nil, fmt.Errorf("final training: %w", err)
	}
	p.recordLatency("final_training", start)

	pred, actual, err := training.Predict(final.Model, data.test, best.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	metrics, err := training.Evaluate(pred, actual)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	if p.metrics != nil {
		p.metrics.RecordEvaluation(v, metrics)
	}
	log.Info("variant evaluated",
		logger.String("variant", string(v)),
		logger.String("best", best.String()),
		logger.Float64("mse", metrics.MSE),
		logger.Float64("mae", metrics.MAE),
		logger.String("r2", metrics.R2.String()),
	)

	vr := &models.VariantReport{
		Variant:     v,
		Trials:      sr.Trials,
		Ranked:      sr.Ranked,
		Best:        sr.Best,
		FinalEpochs: final.Epochs,
		Metrics:     metrics,
	}
	if p.cfg.KeepPredictions {
		vr.Predictions = predictionPoints(data.scaler, data.test, pred, actual)
	}
	return vr, nil
}

func predictionPoints(sc *dataset.Scaler, test dataset.Dataset, pred, actual []float64) []models.PredictionPoint {
	out := make([]models.PredictionPoint, len(pred))
	for i := range pred {
		out[i] = models.PredictionPoint{
			Time:           test.Windows[i].TargetTime,
			Predicted:      pred[i],
			Actual:         actual[i],
			PredictedPrice: sc.Inverse(models.ColClose, pred[i]),
			ActualPrice:    sc.Inverse(models.ColClose, actual[i]),
		}
	}
	return out
}

func (p *ForecastPipeline) publish(ctx context.Context, report *models.RunReport, log *logger.Logger) error {
	var errs []error
	for _, s := range p.sinks {
		start := time.Now()
		if err := s.Write(ctx, report); err != nil {
			p.recordError("sink_" + s.Name())
			log.Error("report sink failed", logger.String("sink", s.Name()), logger.Error(err))
			errs = append(errs, fmt.Errorf("sink %s: %w", s.Name(), err))
			continue
		}
		p.recordLatency("sink_"+s.Name(), start)
	}
	log.Info("run finished",
		logger.Int("variants", len(report.Variants)),
		logger.Duration("duration_ms", report.FinishedAt.Sub(report.StartedAt)),
	)
	return errors.Join(errs...)
}

func (p *ForecastPipeline) recordError(kind string) {
	if p.metrics != nil {
		p.metrics.RecordError(kind)
	}
}

func (p *ForecastPipeline) recordLatency(op string, start time.Time) {
	if p.metrics != nil {
		p.metrics.RecordLatency(op, time.Since(start).Seconds())
	}
}
