package training

import (
	"context"
	"math"
	"testing"

	"FinForecast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGridConfigsOrder(t *testing.T) {
	g := Grid{
		HiddenWidth:  []int{8, 16},
		Depth:        []int{1},
		DropoutRate:  []float64{0, 0.2},
		LearningRate: []float64{0.01},
		BatchSize:    []int{16, 32},
	}
	cfgs, err := g.Configs(models.VariantLSTM)
	require.NoError(t, err)
	require.Len(t, cfgs, 8)
	assert.Equal(t, g.Size(), len(cfgs))

	assert.Equal(t, models.ModelConfig{Variant: models.VariantLSTM, HiddenWidth: 8, Depth: 1, DropoutRate: 0, LearningRate: 0.01, BatchSize: 16}, cfgs[0])
	assert.Equal(t, 32, cfgs[1].BatchSize)
	assert.Equal(t, 0.2, cfgs[2].DropoutRate)
	assert.Equal(t, 16, cfgs[4].HiddenWidth)
	assert.Equal(t, models.ModelConfig{Variant: models.VariantLSTM, HiddenWidth: 16, Depth: 1, DropoutRate: 0.2, LearningRate: 0.01, BatchSize: 32}, cfgs[7])
}

func TestGridEmptyDimension(t *testing.T) {
	g := Grid{HiddenWidth: []int{8}, Depth: []int{1}, DropoutRate: []float64{0}, LearningRate: nil, BatchSize: []int{4}}
	_, err := g.Configs(models.VariantGRU)
	require.ErrorIs(t, err, models.ErrConfig)
}

func TestGridRejectsInvalidPoint(t *testing.T) {
	g := Grid{HiddenWidth: []int{8}, Depth: []int{1}, DropoutRate: []float64{1.5}, LearningRate: []float64{0.1}, BatchSize: []int{4}}
	_, err := g.Configs(models.VariantGRU)
	require.ErrorIs(t, err, models.ErrConfig)
}

func TestSearchProducesOneTrialPerPoint(t *testing.T) {
	train, val, _ := sineSplits(t, 70, 5)
	s := &Search{
		Grid: Grid{
			HiddenWidth:  []int{3, 6},
			Depth:        []int{1, 2},
			DropoutRate:  []float64{0},
			LearningRate: []float64{0.01},
			BatchSize:    []int{16},
		},
		Epochs: 2,
		Seed:   42,
	}
	res, err := s.Run(context.Background(), models.VariantSimple, train, val)
	require.NoError(t, err)
	require.Len(t, res.Trials, 4)
	require.Len(t, res.Ranked, 4)

	for i, tr := range res.Trials {
		assert.Equal(t, i, tr.Index)
		assert.True(t, tr.OK())
		assert.Len(t, tr.Epochs, 2)
		assert.LessOrEqual(t, res.Best.ValidationLoss, tr.ValidationLoss)
	}
	for i := 1; i < len(res.Ranked); i++ {
		assert.LessOrEqual(t, res.Ranked[i-1].ValidationLoss, res.Ranked[i].ValidationLoss)
	}
}

func TestSearchIsIndependentOfWorkerCount(t *testing.T) {
	train, val, _ := sineSplits(t, 60, 4)
	grid := Grid{
		HiddenWidth:  []int{3, 5},
		Depth:        []int{1},
		DropoutRate:  []float64{0, 0.3},
		LearningRate: []float64{0.02},
		BatchSize:    []int{8},
	}
	run := func(workers int) []models.TrialResult {
		s := &Search{Grid: grid, Epochs: 2, Seed: 9, Workers: workers}
		res, err := s.Run(context.Background(), models.VariantGRU, train, val)
		require.NoError(t, err)
		return res.Trials
	}

	serial, parallel := run(1), run(4)
	require.Len(t, parallel, len(serial))
	for i := range serial {
		assert.Equal(t, serial[i].Config, parallel[i].Config)
		assert.Equal(t, serial[i].ValidationLoss, parallel[i].ValidationLoss)
	}
}

func TestSearchFlagsFailedTrials(t *testing.T) {
	train, val, _ := sineSplits(t, 50, 3)
	notifier := &recordingNotifier{}
	s := &Search{
		Grid: Grid{
			HiddenWidth:  []int{1, 2, 3},
			Depth:        []int{1},
			DropoutRate:  []float64{0},
			LearningRate: []float64{0.01},
			BatchSize:    []int{8},
		},
		Epochs:   1,
		Build:    fakeBuilder(map[int]float64{1: 0.5, 2: math.NaN(), 3: 0.4}),
		Notifier: notifier,
	}
	res, err := s.Run(context.Background(), models.VariantLSTM, train, val)
	require.NoError(t, err)
	require.Len(t, res.Trials, 3)
	assert.Equal(t, models.TrialFailed, res.Trials[1].Status)
	assert.NotEmpty(t, res.Trials[1].Error)
	assert.Equal(t, 0.0, res.Trials[1].ValidationLoss)

	require.Len(t, res.Ranked, 2)
	for _, tr := range res.Ranked {
		assert.True(t, tr.OK())
	}
	assert.Equal(t, 2, notifier.count())
}

func TestSearchAllTrialsFail(t *testing.T) {
	train, val, _ := sineSplits(t, 50, 3)
	s := &Search{
		Grid:   Grid{HiddenWidth: []int{1}, Depth: []int{1}, DropoutRate: []float64{0}, LearningRate: []float64{0.1}, BatchSize: []int{4}},
		Epochs: 1,
		Build:  fakeBuilder(map[int]float64{1: math.NaN()}),
	}
	res, err := s.Run(context.Background(), models.VariantGRU, train, val)
	require.ErrorIs(t, err, models.ErrNoValidTrial)
	require.NotNil(t, res)
	assert.Len(t, res.Trials, 1)
}

func TestRankTiesKeepGridOrder(t *testing.T) {
	trials := []models.TrialResult{
		{Index: 0, ValidationLoss: 0.3, Status: models.TrialOK},
		{Index: 1, ValidationLoss: 0.1, Status: models.TrialOK},
		{Index: 2, ValidationLoss: 0.1, Status: models.TrialOK},
		{Index: 3, Status: models.TrialFailed},
		{Index: 4, ValidationLoss: 0.1, Status: models.TrialOK},
	}
	ranked := Rank(trials)
	require.Len(t, ranked, 4)
	assert.Equal(t, []int{1, 2, 4, 0}, []int{ranked[0].Index, ranked[1].Index, ranked[2].Index, ranked[3].Index})
}
