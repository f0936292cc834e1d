package training

import (
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"FinForecast/internal/dataset"
	"FinForecast/internal/domain/models"
	"FinForecast/internal/model"

	"github.com/stretchr/testify/require"
)

// sineSplits builds scaled windows over a noiseless sine series.
func sineSplits(t *testing.T, rows, window int) (train, val, test dataset.Dataset) {
	t.Helper()
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]models.Candle, rows)
	for i := range candles {
		p := 50 + 10*math.Sin(float64(i)/4)
		candles[i] = models.Candle{
			Bucket: start.AddDate(0, 0, i),
			Open:   p - 0.2, High: p + 0.5, Low: p - 0.5, Close: p,
			Volume: 100 + float64(i%5),
		}
	}
	tbl, err := dataset.FromCandles(candles)
	require.NoError(t, err)
	sc, err := dataset.FitScaler(tbl)
	require.NoError(t, err)
	scaled, err := sc.Transform(tbl)
	require.NoError(t, err)
	ds, err := dataset.BuildWindows(scaled, window)
	require.NoError(t, err)
	train, val, test, err = dataset.Split(ds, dataset.Ratios{Train: 0.6, Val: 0.2, Test: 0.2})
	require.NoError(t, err)
	return train, val, test
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.ProgressEvent
}

func (n *recordingNotifier) Notify(ev models.ProgressEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

// fakeModel predicts a constant and reports a scripted training loss.
type fakeModel struct {
	cfg       models.ModelConfig
	output    float64
	trainLoss float64
	training  bool
}

func (f *fakeModel) Variant() models.Variant   { return f.cfg.Variant }
func (f *fakeModel) Config() models.ModelConfig { return f.cfg }
func (f *fakeModel) Train()                     { f.training = true }
func (f *fakeModel) Eval()                      { f.training = false }
func (f *fakeModel) IsTraining() bool           { return f.training }

func (f *fakeModel) Forward(inputs [][][]float64) ([]float64, error) {
	out := make([]float64, len(inputs))
	for i := range out {
		out[i] = f.output
	}
	return out, nil
}

func (f *fakeModel) Update(inputs [][][]float64, targets []float64, loss model.Loss, lr float64) (float64, error) {
	return f.trainLoss, nil
}

// fakeBuilder yields constant models whose output is taken from outputs by
// hidden width; a NaN output scripts a failing trial.
func fakeBuilder(outputs map[int]float64) ModelBuilder {
	return func(cfg models.ModelConfig, inputSize int, rng *rand.Rand) (model.SequenceModel, error) {
		out := outputs[cfg.HiddenWidth]
		loss := 0.1
		if math.IsNaN(out) {
			loss = math.NaN()
		}
		return &fakeModel{cfg: cfg, output: out, trainLoss: loss}, nil
	}
}
