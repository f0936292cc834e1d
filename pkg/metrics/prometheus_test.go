package metrics

import (
	"math"
	"testing"

	"FinForecast/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderEpochAndTrial(t *testing.T) {
	r := New(nil)
	r.RecordEpoch(models.VariantLSTM, models.StageSearch, 0.5, 0.4)
	r.RecordEpoch(models.VariantLSTM, models.StageSearch, 0.3, 0.2)
	r.RecordTrial(models.VariantLSTM, models.TrialOK, 1.2)
	r.RecordTrial(models.VariantLSTM, models.TrialFailed, 0.1)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.epochs.WithLabelValues("lstm", models.StageSearch)))
	assert.Equal(t, 0.2, testutil.ToFloat64(r.valLoss.WithLabelValues("lstm", models.StageSearch)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.trials.WithLabelValues("lstm", models.TrialFailed)))
}

func TestRecorderEvaluationUndefinedR2(t *testing.T) {
	r := New(nil)
	r.RecordEvaluation(models.VariantGRU, models.Metrics{MSE: 1, MAE: 0.5, R2: models.UndefinedR2()})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.evaluation.WithLabelValues("gru", "mse")))
	assert.True(t, math.IsNaN(testutil.ToFloat64(r.evaluation.WithLabelValues("gru", "r2"))))
}

func TestRecordersDoNotCollide(t *testing.T) {
	a, b := New(nil), New(nil)
	a.RecordError("load")
	b.RecordError("load")
	b.RecordError("load")
	assert.Equal(t, 1.0, testutil.ToFloat64(a.errorsTotal.WithLabelValues("load")))
	assert.Equal(t, 2.0, testutil.ToFloat64(b.errorsTotal.WithLabelValues("load")))
}
