package repository

import (
	"context"
	"fmt"
	"time"

	"FinForecast/internal/domain/models"
)

// TrialSchema creates the tables the ClickHouse sink writes to.
var TrialSchema = []string{
	`CREATE DATABASE IF NOT EXISTS finforecast`,
	`CREATE TABLE IF NOT EXISTS finforecast.forecast_trials (
        run_id        String,
        symbol        LowCardinality(String),
        variant       LowCardinality(String),
        trial_index   UInt32,
        hidden_width  UInt32,
        depth         UInt32,
        dropout_rate  Float64,
        learning_rate Float64,
        batch_size    UInt32,
        status        LowCardinality(String),
        val_loss      Float64,
        error         String,
        duration_ms   UInt64,
        is_best       UInt8,
        created_at    DateTime64(3)
    ) ENGINE = MergeTree ORDER BY (symbol, run_id, variant, trial_index)`,
	`CREATE TABLE IF NOT EXISTS finforecast.forecast_evaluations (
        run_id      String,
        symbol      LowCardinality(String),
        variant     LowCardinality(String),
        mse         Float64,
        mae         Float64,
        r2          Nullable(Float64),
        test_size   UInt32,
        created_at  DateTime64(3)
    ) ENGINE = MergeTree ORDER BY (symbol, run_id, variant)`,
}

const (
	insertTrial = `INSERT INTO finforecast.forecast_trials
        (run_id, symbol, variant, trial_index, hidden_width, depth, dropout_rate, learning_rate, batch_size, status, val_loss, error, duration_ms, is_best, created_at)`
	insertEvaluation = `INSERT INTO finforecast.forecast_evaluations
        (run_id, symbol, variant, mse, mae, r2, test_size, created_at)`
)

// batchInserter is satisfied by *clickhouse.Client.
type batchInserter interface {
	InsertBatch(ctx context.Context, query string, rows [][]any) error
}

// CHTrialSink writes every search trial and final evaluation of a run.
type CHTrialSink struct {
	db batchInserter
}

func NewCHTrialSink(db batchInserter) *CHTrialSink {
	return &CHTrialSink{db: db}
}

func (s *CHTrialSink) Name() string { return "clickhouse" }

func (s *CHTrialSink) Write(ctx context.Context, r *models.RunReport) error {
	created := r.FinishedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	var trials, evals [][]any
	for _, vr := range r.Variants {
		for _, t := range vr.Trials {
			best := uint8(0)
			if t.OK() && t.Index == vr.Best.Index {
				best = 1
			}
			trials = append(trials, []any{
				r.RunID, r.Symbol, string(vr.Variant), uint32(t.Index),
				uint32(t.Config.HiddenWidth), uint32(t.Config.Depth), t.Config.DropoutRate,
				t.Config.LearningRate, uint32(t.Config.BatchSize), t.Status, t.ValidationLoss,
				t.Error, uint64(t.Duration.Milliseconds()), best, created,
			})
		}
		var r2 *float64
		if vr.Metrics.R2.Defined {
			v := vr.Metrics.R2.Value
			r2 = &v
		}
		evals = append(evals, []any{
			r.RunID, r.Symbol, string(vr.Variant), vr.Metrics.MSE, vr.Metrics.MAE, r2,
			uint32(r.TestSize), created,
		})
	}

	if err := s.db.InsertBatch(ctx, insertTrial, trials); err != nil {
		return fmt.Errorf("insert trials: %w", err)
	}
	if err := s.db.InsertBatch(ctx, insertEvaluation, evals); err != nil {
		return fmt.Errorf("insert evaluations: %w", err)
	}
	return nil
}
