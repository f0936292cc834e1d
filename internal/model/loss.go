package model

// Loss scores a batch of predictions against targets and provides the
// gradient with respect to each prediction.
type Loss interface {
	Value(pred, target []float64) float64
	Grad(pred, target []float64) []float64
}

// MSE is the mean squared error.
type MSE struct{}

func (MSE) Value(pred, target []float64) float64 {
	if len(pred) == 0 {
		return 0
	}
	var sum float64
	for i, p := range pred {
		d := p - target[i]
		sum += d * d
	}
	return sum / float64(len(pred))
}

func (MSE) Grad(pred, target []float64) []float64 {
	out := make([]float64, len(pred))
	if len(pred) == 0 {
		return out
	}
	scale := 2 / float64(len(pred))
	for i, p := range pred {
		out[i] = scale * (p - target[i])
	}
	return out
}
