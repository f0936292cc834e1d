package training

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"FinForecast/internal/dataset"
	"FinForecast/internal/domain/models"
	"FinForecast/internal/domain/repository"
	"FinForecast/internal/model"
	"FinForecast/pkg/logger"
)

// Grid lists candidate values per hyperparameter.
type Grid struct {
	HiddenWidth  []int     `json:"hidden_width"`
	Depth        []int     `json:"depth"`
	DropoutRate  []float64 `json:"dropout_rate"`
	LearningRate []float64 `json:"learning_rate"`
	BatchSize    []int     `json:"batch_size"`
}

// Size is the number of points in the Cartesian product.
func (g Grid) Size() int {
	return len(g.HiddenWidth) * len(g.Depth) * len(g.DropoutRate) * len(g.LearningRate) * len(g.BatchSize)
}

// Configs enumerates the grid with HiddenWidth outermost and BatchSize
// innermost. Any empty dimension is a configuration error.
func (g Grid) Configs(v models.Variant) ([]models.ModelConfig, error) {
	dims := []struct {
		name string
		n    int
	}{
		{"hidden_width", len(g.HiddenWidth)},
		{"depth", len(g.Depth)},
		{"dropout_rate", len(g.DropoutRate)},
		{"learning_rate", len(g.LearningRate)},
		{"batch_size", len(g.BatchSize)},
	}
	for _, d := range dims {
		if d.n == 0 {
			return nil, models.NewConfigError("search.grid."+d.name, "no candidate values")
		}
	}

	out := make([]models.ModelConfig, 0, g.Size())
	for _, h := range g.HiddenWidth {
		for _, d := range g.Depth {
			for _, p := range g.DropoutRate {
				for _, lr := range g.LearningRate {
					for _, b := range g.BatchSize {
						cfg := models.ModelConfig{
							Variant:      v,
							HiddenWidth:  h,
							Depth:        d,
							DropoutRate:  p,
							LearningRate: lr,
							BatchSize:    b,
						}
						if err := cfg.Validate(); err != nil {
							return nil, err
						}
						out = append(out, cfg)
					}
				}
			}
		}
	}
	return out, nil
}

// ModelBuilder constructs a fresh, untrained model for one trial.
type ModelBuilder func(cfg models.ModelConfig, inputSize int, rng *rand.Rand) (model.SequenceModel, error)

// ClippedBuilder builds the stock recurrent models with the given gradient
// norm cap.
func ClippedBuilder(clip float64) ModelBuilder {
	return func(cfg models.ModelConfig, inputSize int, rng *rand.Rand) (model.SequenceModel, error) {
		return model.New(cfg, inputSize, rng, model.WithGradientClip(clip))
	}
}

// Search trains one short-budget model per grid point and ranks them by
// final validation loss.
type Search struct {
	Grid     Grid
	Epochs   int
	Seed     int64 // trial i uses Seed+i
	Workers  int
	Build    ModelBuilder // nil means ClippedBuilder(model.DefaultGradientClip)
	Loss     model.Loss
	RunID    string
	Notifier repository.ProgressNotifier
	Metrics  repository.Metrics
	Logger   *logger.Logger
}

// SearchResult holds every trial in grid order plus the successful ones
// ranked by ascending validation loss.
type SearchResult struct {
	Trials []models.TrialResult
	Ranked []models.TrialResult
	Best   models.TrialResult
}

// Run sweeps the grid for variant v. Trials whose loss goes non-finite or
// whose model rejects the data are kept as failed and left out of the
// ranking; the call fails only if no trial succeeds.
func (s *Search) Run(ctx context.Context, v models.Variant, train, val dataset.Dataset) (*SearchResult, error) {
	configs, err := s.Grid.Configs(v)
	if err != nil {
		return nil, err
	}
	if s.Epochs < 1 {
		return nil, models.NewConfigError("search.epochs", "must be >= 1, got %d", s.Epochs)
	}
	if train.Len() == 0 || val.Len() == 0 {
		return nil, models.NewConfigError("split", "search needs non-empty training and validation partitions, got %d/%d", train.Len(), val.Len())
	}
	log := s.Logger
	if log == nil {
		log = logger.Nop()
	}

	build := s.Build
	if build == nil {
		build = ClippedBuilder(model.DefaultGradientClip)
	}

	trials := make([]models.TrialResult, len(configs))
	forEach(len(configs), s.Workers, func(i int) {
		trials[i] = s.runTrial(ctx, i, configs[i], build, train, val, log)
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ranked := Rank(trials)
	if len(ranked) == 0 {
		return &SearchResult{Trials: trials}, fmt.Errorf("%s: %w (%d trials)", v, models.ErrNoValidTrial, len(trials))
	}
	best := ranked[0]
	log.Info("search complete",
		logger.String("variant", string(v)),
		logger.Int("trials", len(trials)),
		logger.Int("ok", len(ranked)),
		logger.String("best", best.Config.String()),
		logger.Float64("best_val_loss", best.ValidationLoss),
	)
	return &SearchResult{Trials: trials, Ranked: ranked, Best: best}, nil
}

func (s *Search) runTrial(ctx context.Context, i int, cfg models.ModelConfig, build ModelBuilder, train, val dataset.Dataset, log *logger.Logger) models.TrialResult {
	start := time.Now()
	res := models.TrialResult{Index: i, Config: cfg, Status: models.TrialOK}

	rng := rand.New(rand.NewSource(s.Seed + int64(i)))
	err := func() error {
		m, err := build(cfg, train.Features, rng)
		if err != nil {
			return err
		}
		loop := &Loop{
			Epochs:   s.Epochs,
			Loss:     s.Loss,
			Rand:     rng,
			RunID:    s.RunID,
			Stage:    models.StageSearch,
			Trial:    i,
			Notifier: s.Notifier,
			Metrics:  s.Metrics,
			Logger:   log,
		}
		out, err := loop.Run(ctx, m, train, val)
		if err != nil {
			return err
		}
		res.Epochs = out.Epochs
		res.ValidationLoss = out.FinalValLoss
		return nil
	}()
	res.Duration = time.Since(start)

	if err != nil {
		res.Status = models.TrialFailed
		res.Error = err.Error()
		res.ValidationLoss = 0
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			log.Warn("trial failed",
				logger.String("variant", string(cfg.Variant)),
				logger.Int("trial", i),
				logger.String("config", cfg.String()),
				logger.Error(err),
			)
		}
	}
	if s.Metrics != nil {
		s.Metrics.RecordTrial(cfg.Variant, res.Status, res.Duration.Seconds())
	}
	return res
}

// Rank returns the successful trials sorted by ascending validation loss.
// Equal losses keep grid order.
func Rank(trials []models.TrialResult) []models.TrialResult {
	ranked := make([]models.TrialResult, 0, len(trials))
	for _, t := range trials {
		if t.OK() {
			ranked = append(ranked, t)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ValidationLoss < ranked[j].ValidationLoss
	})
	return ranked
}
