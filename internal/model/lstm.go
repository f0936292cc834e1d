package model

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// lstmLayer packs the input, forget, candidate and output gates side by
// side in one 4H-wide projection, in that order.
type lstmLayer struct {
	hidden int
	wx     *param
	wh     *param
	b      *param

	xs    []*mat.Dense
	hs    []*mat.Dense // hs[0] zero
	cs    []*mat.Dense // cs[0] zero
	gates []*mat.Dense // activated [i f g o] per step
	tanhC []*mat.Dense
}

func newLSTMLayer(in, hidden int, rng *rand.Rand) layer {
	scale := 1 / math.Sqrt(float64(hidden))
	l := &lstmLayer{
		hidden: hidden,
		wx:     newParam("lstm.wx", in, 4*hidden).uniform(scale, rng),
		wh:     newParam("lstm.wh", hidden, 4*hidden).uniform(scale, rng),
		b:      newParam("lstm.b", 1, 4*hidden),
	}
	bias := l.b.w.RawRowView(0)
	for j := hidden; j < 2*hidden; j++ {
		bias[j] = 1
	}
	return l
}

func (l *lstmLayer) params() []*param { return []*param{l.wx, l.wh, l.b} }

func (l *lstmLayer) forward(xs []*mat.Dense) []*mat.Dense {
	batch, _ := xs[0].Dims()
	H := l.hidden
	steps := len(xs)
	l.xs = xs
	l.hs = make([]*mat.Dense, steps+1)
	l.cs = make([]*mat.Dense, steps+1)
	l.gates = make([]*mat.Dense, steps)
	l.tanhC = make([]*mat.Dense, steps)
	l.hs[0] = mat.NewDense(batch, H, nil)
	l.cs[0] = mat.NewDense(batch, H, nil)

	for t, x := range xs {
		z := affine(x, l.wx.w, l.b.w)
		var rec mat.Dense
		rec.Mul(l.hs[t], l.wh.w)
		z.Add(z, &rec)

		c := mat.NewDense(batch, H, nil)
		tc := mat.NewDense(batch, H, nil)
		h := mat.NewDense(batch, H, nil)
		for r := 0; r < batch; r++ {
			zr := z.RawRowView(r)
			cPrev := l.cs[t].RawRowView(r)
			cr, tcr, hr := c.RawRowView(r), tc.RawRowView(r), h.RawRowView(r)
			for j := 0; j < H; j++ {
				i := sigmoid(zr[j])
				f := sigmoid(zr[H+j])
				g := math.Tanh(zr[2*H+j])
				o := sigmoid(zr[3*H+j])
				zr[j], zr[H+j], zr[2*H+j], zr[3*H+j] = i, f, g, o
				cr[j] = f*cPrev[j] + i*g
				tcr[j] = math.Tanh(cr[j])
				hr[j] = o * tcr[j]
			}
		}
		l.gates[t] = z
		l.cs[t+1] = c
		l.tanhC[t] = tc
		l.hs[t+1] = h
	}
	return l.hs[1:]
}

func (l *lstmLayer) backward(dhs []*mat.Dense) []*mat.Dense {
	H := l.hidden
	dxs := make([]*mat.Dense, len(l.xs))
	var dhNext, dcNext *mat.Dense
	for t := len(l.xs) - 1; t >= 0; t-- {
		dh := sumGrad(dhs[t], dhNext)
		batch, _ := dh.Dims()
		dz := mat.NewDense(batch, 4*H, nil)
		dc := mat.NewDense(batch, H, nil)
		for r := 0; r < batch; r++ {
			gr := l.gates[t].RawRowView(r)
			tcr := l.tanhC[t].RawRowView(r)
			cPrev := l.cs[t].RawRowView(r)
			dhr := dh.RawRowView(r)
			dzr := dz.RawRowView(r)
			dcr := dc.RawRowView(r)
			var dcn []float64
			if dcNext != nil {
				dcn = dcNext.RawRowView(r)
			}
			for j := 0; j < H; j++ {
				i, f, g, o := gr[j], gr[H+j], gr[2*H+j], gr[3*H+j]
				dcj := dhr[j] * o * (1 - tcr[j]*tcr[j])
				if dcn != nil {
					dcj += dcn[j]
				}
				dzr[j] = dcj * g * i * (1 - i)
				dzr[H+j] = dcj * cPrev[j] * f * (1 - f)
				dzr[2*H+j] = dcj * i * (1 - g*g)
				dzr[3*H+j] = dhr[j] * tcr[j] * o * (1 - o)
				dcr[j] = dcj * f
			}
		}
		accumulate(l.wx, l.xs[t], dz)
		accumulate(l.wh, l.hs[t], dz)
		accumulateBias(l.b, dz)
		dxs[t] = backprop(dz, l.wx.w)
		dhNext = backprop(dz, l.wh.w)
		dcNext = dc
	}
	return dxs
}
