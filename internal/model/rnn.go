package model

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// rnnLayer is an Elman recurrence: h_t = tanh(x_t Wx + h_{t-1} Wh + b).
type rnnLayer struct {
	hidden int
	wx     *param
	wh     *param
	b      *param

	xs []*mat.Dense
	hs []*mat.Dense // hs[0] is the zero initial state
}

func newRNNLayer(in, hidden int, rng *rand.Rand) layer {
	scale := 1 / math.Sqrt(float64(hidden))
	return &rnnLayer{
		hidden: hidden,
		wx:     newParam("rnn.wx", in, hidden).uniform(scale, rng),
		wh:     newParam("rnn.wh", hidden, hidden).uniform(scale, rng),
		b:      newParam("rnn.b", 1, hidden).uniform(scale, rng),
	}
}

func (l *rnnLayer) params() []*param { return []*param{l.wx, l.wh, l.b} }

func (l *rnnLayer) forward(xs []*mat.Dense) []*mat.Dense {
	batch, _ := xs[0].Dims()
	l.xs = xs
	l.hs = make([]*mat.Dense, len(xs)+1)
	l.hs[0] = mat.NewDense(batch, l.hidden, nil)
	for t, x := range xs {
		a := affine(x, l.wx.w, l.b.w)
		var rec mat.Dense
		rec.Mul(l.hs[t], l.wh.w)
		a.Add(a, &rec)
		data := a.RawMatrix().Data
		for i, v := range data {
			data[i] = math.Tanh(v)
		}
		l.hs[t+1] = a
	}
	return l.hs[1:]
}

func (l *rnnLayer) backward(dhs []*mat.Dense) []*mat.Dense {
	dxs := make([]*mat.Dense, len(l.xs))
	var dnext *mat.Dense
	for t := len(l.xs) - 1; t >= 0; t-- {
		da := sumGrad(dhs[t], dnext)
		h := l.hs[t+1]
		batch, _ := da.Dims()
		for i := 0; i < batch; i++ {
			drow := da.RawRowView(i)
			hrow := h.RawRowView(i)
			for j := range drow {
				drow[j] *= 1 - hrow[j]*hrow[j]
			}
		}
		accumulate(l.wx, l.xs[t], da)
		accumulate(l.wh, l.hs[t], da)
		accumulateBias(l.b, da)
		dxs[t] = backprop(da, l.wx.w)
		dnext = backprop(da, l.wh.w)
	}
	return dxs
}
