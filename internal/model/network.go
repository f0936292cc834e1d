package model

import (
	"math"
	"math/rand"

	"FinForecast/internal/domain/models"

	"gonum.org/v1/gonum/mat"
)

// network stacks recurrent layers and reads a linear head off the last
// time step of the top layer.
type network struct {
	cfg       models.ModelConfig
	inputSize int
	layers    []layer
	head      *param
	headBias  *param

	training bool
	rng      *rand.Rand
	opt      *adam
	clip     float64

	masks [][]*mat.Dense // dropout mask per layer per step, nil when unused
	top   *mat.Dense     // top layer output at the last step
	steps int
}

func (n *network) Variant() models.Variant   { return n.cfg.Variant }
func (n *network) Config() models.ModelConfig { return n.cfg }
func (n *network) Train()                     { n.training = true }
func (n *network) Eval()                      { n.training = false }
func (n *network) IsTraining() bool           { return n.training }

func (n *network) params() []*param {
	var ps []*param
	for _, l := range n.layers {
		ps = append(ps, l.params()...)
	}
	return append(ps, n.head, n.headBias)
}

func (n *network) Forward(inputs [][][]float64) ([]float64, error) {
	y, err := n.run(inputs)
	if err != nil {
		return nil, err
	}
	return mat.Col(nil, 0, y), nil
}

func (n *network) Update(inputs [][][]float64, targets []float64, loss Loss, lr float64) (float64, error) {
	if len(targets) != len(inputs) {
		return 0, models.NewShapeMismatch("targets", len(inputs), len(targets))
	}
	if loss == nil {
		loss = MSE{}
	}
	y, err := n.run(inputs)
	if err != nil {
		return 0, err
	}
	pred := mat.Col(nil, 0, y)
	value := loss.Value(pred, targets)
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return value, nil
	}

	ps := n.params()
	for _, p := range ps {
		p.zeroGrad()
	}
	n.backward(loss.Grad(pred, targets))
	clipGradients(ps, n.clip)
	n.opt.step(ps, lr)
	return value, nil
}

// run validates the batch, unrolls every layer and applies the head.
func (n *network) run(inputs [][][]float64) (*mat.Dense, error) {
	xs, err := n.steppify(inputs)
	if err != nil {
		return nil, err
	}
	n.steps = len(xs)
	for li, l := range n.layers {
		hs := l.forward(xs)
		n.masks[li] = nil
		if n.training && n.cfg.DropoutRate > 0 {
			masks := make([]*mat.Dense, len(hs))
			dropped := make([]*mat.Dense, len(hs))
			for t, h := range hs {
				masks[t] = n.dropoutMask(h)
				var d mat.Dense
				d.MulElem(h, masks[t])
				dropped[t] = &d
			}
			n.masks[li] = masks
			hs = dropped
		}
		xs = hs
	}
	n.top = xs[len(xs)-1]
	return affine(n.top, n.head.w, n.headBias.w), nil
}

// backward propagates dy (dLoss/dPrediction per window) into every
// parameter gradient.
func (n *network) backward(dy []float64) {
	batch := len(dy)
	d := mat.NewDense(batch, 1, append([]float64(nil), dy...))
	accumulate(n.head, n.top, d)
	accumulateBias(n.headBias, d)

	dhs := make([]*mat.Dense, n.steps)
	for t := 0; t < n.steps-1; t++ {
		dhs[t] = mat.NewDense(batch, n.cfg.HiddenWidth, nil)
	}
	dhs[n.steps-1] = backprop(d, n.head.w)

	for li := len(n.layers) - 1; li >= 0; li-- {
		if masks := n.masks[li]; masks != nil {
			for t := range dhs {
				dhs[t].MulElem(dhs[t], masks[t])
			}
		}
		dhs = n.layers[li].backward(dhs)
	}
}

// dropoutMask draws an inverted dropout mask shaped like h.
func (n *network) dropoutMask(h *mat.Dense) *mat.Dense {
	rows, cols := h.Dims()
	keep := 1 - n.cfg.DropoutRate
	m := mat.NewDense(rows, cols, nil)
	data := m.RawMatrix().Data
	for i := range data {
		if n.rng.Float64() < keep {
			data[i] = 1 / keep
		}
	}
	return m
}

// steppify converts B x W x F windows into W matrices of B x F.
func (n *network) steppify(inputs [][][]float64) ([]*mat.Dense, error) {
	if len(inputs) == 0 {
		return nil, models.NewShapeMismatch("batch size", 1, 0)
	}
	steps := len(inputs[0])
	if steps == 0 {
		return nil, models.NewShapeMismatch("window length", 1, 0)
	}
	xs := make([]*mat.Dense, steps)
	for t := range xs {
		xs[t] = mat.NewDense(len(inputs), n.inputSize, nil)
	}
	for b, window := range inputs {
		if len(window) != steps {
			return nil, models.NewShapeMismatch("window length", steps, len(window))
		}
		for t, row := range window {
			if len(row) != n.inputSize {
				return nil, models.NewShapeMismatch("features", n.inputSize, len(row))
			}
			copy(xs[t].RawRowView(b), row)
		}
	}
	return xs, nil
}
