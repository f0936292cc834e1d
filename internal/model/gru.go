package model

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// gruLayer keeps separate input and recurrent projections, each laid out
// as [reset, update, candidate], so the reset gate can scale only the
// recurrent part of the candidate:
//
//	n_t = tanh(ax_n + r_t * ah_n)
//	h_t = (1-z_t) * n_t + z_t * h_{t-1}
type gruLayer struct {
	hidden int
	wx     *param
	bx     *param
	wh     *param
	bh     *param

	xs    []*mat.Dense
	hs    []*mat.Dense // hs[0] zero
	gates []*mat.Dense // activated [r z n] per step
	ahN   []*mat.Dense // recurrent candidate pre-activation
}

func newGRULayer(in, hidden int, rng *rand.Rand) layer {
	scale := 1 / math.Sqrt(float64(hidden))
	return &gruLayer{
		hidden: hidden,
		wx:     newParam("gru.wx", in, 3*hidden).uniform(scale, rng),
		bx:     newParam("gru.bx", 1, 3*hidden).uniform(scale, rng),
		wh:     newParam("gru.wh", hidden, 3*hidden).uniform(scale, rng),
		bh:     newParam("gru.bh", 1, 3*hidden).uniform(scale, rng),
	}
}

func (l *gruLayer) params() []*param { return []*param{l.wx, l.bx, l.wh, l.bh} }

func (l *gruLayer) forward(xs []*mat.Dense) []*mat.Dense {
	batch, _ := xs[0].Dims()
	H := l.hidden
	steps := len(xs)
	l.xs = xs
	l.hs = make([]*mat.Dense, steps+1)
	l.gates = make([]*mat.Dense, steps)
	l.ahN = make([]*mat.Dense, steps)
	l.hs[0] = mat.NewDense(batch, H, nil)

	for t, x := range xs {
		ax := affine(x, l.wx.w, l.bx.w)
		ah := affine(l.hs[t], l.wh.w, l.bh.w)
		gates := mat.NewDense(batch, 3*H, nil)
		ahN := mat.NewDense(batch, H, nil)
		h := mat.NewDense(batch, H, nil)
		for r := 0; r < batch; r++ {
			axr, ahr := ax.RawRowView(r), ah.RawRowView(r)
			gr, anr := gates.RawRowView(r), ahN.RawRowView(r)
			hPrev, hr := l.hs[t].RawRowView(r), h.RawRowView(r)
			for j := 0; j < H; j++ {
				rg := sigmoid(axr[j] + ahr[j])
				zg := sigmoid(axr[H+j] + ahr[H+j])
				anr[j] = ahr[2*H+j]
				n := math.Tanh(axr[2*H+j] + rg*anr[j])
				gr[j], gr[H+j], gr[2*H+j] = rg, zg, n
				hr[j] = (1-zg)*n + zg*hPrev[j]
			}
		}
		l.gates[t] = gates
		l.ahN[t] = ahN
		l.hs[t+1] = h
	}
	return l.hs[1:]
}

func (l *gruLayer) backward(dhs []*mat.Dense) []*mat.Dense {
	H := l.hidden
	dxs := make([]*mat.Dense, len(l.xs))
	var dhNext *mat.Dense
	for t := len(l.xs) - 1; t >= 0; t-- {
		dh := sumGrad(dhs[t], dhNext)
		batch, _ := dh.Dims()
		dax := mat.NewDense(batch, 3*H, nil)
		dah := mat.NewDense(batch, 3*H, nil)
		dDirect := mat.NewDense(batch, H, nil)
		for r := 0; r < batch; r++ {
			gr := l.gates[t].RawRowView(r)
			anr := l.ahN[t].RawRowView(r)
			hPrev := l.hs[t].RawRowView(r)
			dhr := dh.RawRowView(r)
			daxr, dahr, ddr := dax.RawRowView(r), dah.RawRowView(r), dDirect.RawRowView(r)
			for j := 0; j < H; j++ {
				rg, zg, n := gr[j], gr[H+j], gr[2*H+j]
				dn := dhr[j] * (1 - zg)
				dzg := dhr[j] * (hPrev[j] - n)
				ddr[j] = dhr[j] * zg

				dan := dn * (1 - n*n)
				dar := dan * anr[j] * rg * (1 - rg)
				daz := dzg * zg * (1 - zg)

				daxr[j], daxr[H+j], daxr[2*H+j] = dar, daz, dan
				dahr[j], dahr[H+j], dahr[2*H+j] = dar, daz, dan*rg
			}
		}
		accumulate(l.wx, l.xs[t], dax)
		accumulateBias(l.bx, dax)
		accumulate(l.wh, l.hs[t], dah)
		accumulateBias(l.bh, dah)
		dxs[t] = backprop(dax, l.wx.w)
		dhNext = backprop(dah, l.wh.w)
		dhNext.Add(dhNext, dDirect)
	}
	return dxs
}
