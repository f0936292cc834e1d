package di

import (
	"testing"

	"FinForecast/internal/domain/models"
	"FinForecast/pkg/config"
	applogger "FinForecast/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte("source: {train_path: a.csv}\n"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestProvidePipelineMapsConfig(t *testing.T) {
	cfg := testConfig(t)
	p, err := ProvidePipeline(cfg, nil, nil, nil, nil, applogger.Nop())
	require.NoError(t, err)
	assert.NotNil(t, p)

	cfg.Pipeline.Split = config.Split{Train: 0.9, Val: 0.3}
	_, err = ProvidePipeline(cfg, nil, nil, nil, nil, applogger.Nop())
	assert.ErrorIs(t, err, models.ErrConfig)

	cfg = testConfig(t)
	cfg.Search.Grid.BatchSize = []int{}
	_, err = ProvidePipeline(cfg, nil, nil, nil, nil, applogger.Nop())
	assert.ErrorIs(t, err, models.ErrConfig)

	cfg = testConfig(t)
	cfg.Search.Epochs = cfg.Training.Epochs
	_, err = ProvidePipeline(cfg, nil, nil, nil, nil, applogger.Nop())
	assert.ErrorIs(t, err, models.ErrConfig)
}

func TestProvideRateLimiter(t *testing.T) {
	cfg := testConfig(t)
	l, cleanup := ProvideRateLimiter(cfg)
	defer cleanup()

	assert.True(t, l.Allow("10.0.0.1"))
	assert.Equal(t, 1, l.Len())
}
