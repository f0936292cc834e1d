package training

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"FinForecast/internal/dataset"
	"FinForecast/internal/domain/models"
	"FinForecast/internal/domain/repository"
	"FinForecast/internal/model"
	"FinForecast/pkg/logger"
)

// Loop trains a model for a fixed number of epochs, validating after each.
// Notifier and Metrics are optional.
type Loop struct {
	Epochs   int
	Loss     model.Loss
	Rand     *rand.Rand // shuffle source, nil for time-seeded
	RunID    string
	Stage    string
	Trial    int
	Notifier repository.ProgressNotifier
	Metrics  repository.Metrics
	Logger   *logger.Logger
}

// RunResult is what a completed loop hands back.
type RunResult struct {
	Model        model.SequenceModel
	Epochs       []models.EpochStats
	FinalValLoss float64
}

// Run executes Epochs rounds of shuffled training followed by in-order
// validation. A non-finite epoch loss aborts with ErrNonFiniteLoss.
func (l *Loop) Run(ctx context.Context, m model.SequenceModel, train, val dataset.Dataset) (*RunResult, error) {
	if l.Epochs < 1 {
		return nil, models.NewConfigError("epochs", "must be >= 1, got %d", l.Epochs)
	}
	if train.Len() == 0 {
		return nil, models.NewConfigError("split", "training partition is empty")
	}
	if val.Len() == 0 {
		return nil, models.NewConfigError("split", "validation partition is empty")
	}
	loss := l.Loss
	if loss == nil {
		loss = model.MSE{}
	}
	log := l.Logger
	if log == nil {
		log = logger.Nop()
	}

	cfg := m.Config()
	trainIt, err := dataset.NewBatchIterator(train, cfg.BatchSize, true, l.Rand)
	if err != nil {
		return nil, err
	}
	valIt, err := dataset.NewBatchIterator(val, cfg.BatchSize, false, l.Rand)
	if err != nil {
		return nil, err
	}

	res := &RunResult{Model: m, Epochs: make([]models.EpochStats, 0, l.Epochs)}
	for epoch := 1; epoch <= l.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()

		trainLoss, err := trainEpoch(m, trainIt, loss, cfg.LearningRate)
		if err != nil {
			return nil, fmt.Errorf("epoch %d: %w", epoch, err)
		}
		valLoss, err := validateEpoch(m, valIt, loss)
		if err != nil {
			return nil, fmt.Errorf("epoch %d: %w", epoch, err)
		}

		stats := models.EpochStats{
			Epoch:     epoch,
			TrainLoss: trainLoss,
			ValLoss:   valLoss,
			Duration:  time.Since(start),
		}
		res.Epochs = append(res.Epochs, stats)
		res.FinalValLoss = valLoss
		l.observe(cfg.Variant, stats, log)
	}
	return res, nil
}

func (l *Loop) observe(v models.Variant, stats models.EpochStats, log *logger.Logger) {
	if l.Metrics != nil {
		l.Metrics.RecordEpoch(v, l.Stage, stats.TrainLoss, stats.ValLoss)
	}
	if l.Notifier != nil {
		l.Notifier.Notify(models.ProgressEvent{
			RunID:     l.RunID,
			Variant:   v,
			Stage:     l.Stage,
			Trial:     l.Trial,
			Epoch:     stats.Epoch,
			Epochs:    l.Epochs,
			TrainLoss: stats.TrainLoss,
			ValLoss:   stats.ValLoss,
			Time:      time.Now(),
		})
	}
	log.Debug("epoch complete",
		logger.String("variant", string(v)),
		logger.String("stage", l.Stage),
		logger.Int("trial", l.Trial),
		logger.Int("epoch", stats.Epoch),
		logger.Float64("train_loss", stats.TrainLoss),
		logger.Float64("val_loss", stats.ValLoss),
		logger.Duration("duration_ms", stats.Duration),
	)
}

// trainEpoch returns the sample-weighted mean of the per-batch losses.
func trainEpoch(m model.SequenceModel, it *dataset.BatchIterator, loss model.Loss, lr float64) (float64, error) {
	m.Train()
	it.Reset()
	var sum float64
	var n int
	for {
		b, ok := it.Next()
		if !ok {
			break
		}
		v, err := m.Update(b.Inputs, b.Targets, loss, lr)
		if err != nil {
			return 0, err
		}
		if !finite(v) {
			return 0, fmt.Errorf("%w: training loss %v", models.ErrNonFiniteLoss, v)
		}
		sum += v * float64(b.Len())
		n += b.Len()
	}
	return sum / float64(n), nil
}

func validateEpoch(m model.SequenceModel, it *dataset.BatchIterator, loss model.Loss) (float64, error) {
	v, err := meanLoss(m, it, loss)
	if err != nil {
		return 0, err
	}
	if !finite(v) {
		return 0, fmt.Errorf("%w: validation loss %v", models.ErrNonFiniteLoss, v)
	}
	return v, nil
}

// meanLoss scores the model in evaluation mode over one in-order pass.
func meanLoss(m model.SequenceModel, it *dataset.BatchIterator, loss model.Loss) (float64, error) {
	m.Eval()
	it.Reset()
	var sum float64
	var n int
	for {
		b, ok := it.Next()
		if !ok {
			break
		}
		pred, err := m.Forward(b.Inputs)
		if err != nil {
			return 0, err
		}
		sum += loss.Value(pred, b.Targets) * float64(b.Len())
		n += b.Len()
	}
	return sum / float64(n), nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
