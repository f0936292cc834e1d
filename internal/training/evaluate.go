package training

import (
	"math"

	"FinForecast/internal/dataset"
	"FinForecast/internal/domain/models"
	"FinForecast/internal/model"

	"gonum.org/v1/gonum/floats"
)

// Evaluate computes MSE, MAE and R2 of pred against actual. R2 is reported
// as undefined when actual has no variance.
func Evaluate(pred, actual []float64) (models.Metrics, error) {
	if len(pred) != len(actual) {
		return models.Metrics{}, models.NewShapeMismatch("predictions", len(actual), len(pred))
	}
	if len(actual) == 0 {
		return models.Metrics{}, models.NewInvalidInput("predictions", "nothing to evaluate")
	}
	for i := range pred {
		if !finite(pred[i]) || !finite(actual[i]) {
			return models.Metrics{}, &models.InvalidInputError{Field: "predictions", Row: i, Reason: "value is not finite"}
		}
	}

	n := float64(len(actual))
	resid := make([]float64, len(actual))
	floats.SubTo(resid, pred, actual)

	var sse, sae float64
	for _, r := range resid {
		sse += r * r
		sae += math.Abs(r)
	}
	m := models.Metrics{MSE: sse / n, MAE: sae / n, R2: models.UndefinedR2()}

	if floats.Max(actual) == floats.Min(actual) {
		return m, nil
	}
	mean := floats.Sum(actual) / n
	var sst float64
	for _, a := range actual {
		d := a - mean
		sst += d * d
	}
	if sst > 0 {
		m.R2 = models.DefinedR2(1 - sse/sst)
	}
	return m, nil
}

// Predict runs m in evaluation mode over ds in order and returns the
// predictions with the matching targets.
func Predict(m model.SequenceModel, ds dataset.Dataset, batchSize int) (pred, actual []float64, err error) {
	it, err := dataset.NewBatchIterator(ds, batchSize, false, nil)
	if err != nil {
		return nil, nil, err
	}
	m.Eval()
	pred = make([]float64, 0, ds.Len())
	actual = make([]float64, 0, ds.Len())
	for {
		b, ok := it.Next()
		if !ok {
			break
		}
		p, err := m.Forward(b.Inputs)
		if err != nil {
			return nil, nil, err
		}
		pred = append(pred, p...)
		actual = append(actual, b.Targets...)
	}
	return pred, actual, nil
}
