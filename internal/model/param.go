package model

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// param is a trainable matrix with its gradient and Adam moments.
type param struct {
	name string
	w    *mat.Dense
	g    *mat.Dense
	m    *mat.Dense
	v    *mat.Dense
}

func newParam(name string, rows, cols int) *param {
	return &param{
		name: name,
		w:    mat.NewDense(rows, cols, nil),
		g:    mat.NewDense(rows, cols, nil),
		m:    mat.NewDense(rows, cols, nil),
		v:    mat.NewDense(rows, cols, nil),
	}
}

// uniform fills the weights from U(-scale, scale).
func (p *param) uniform(scale float64, rng *rand.Rand) *param {
	data := p.w.RawMatrix().Data
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * scale
	}
	return p
}

func (p *param) zeroGrad() { p.g.Zero() }

// adam implements the Adam update rule. The learning rate is supplied per
// step so a caller can change it between updates.
type adam struct {
	beta1 float64
	beta2 float64
	eps   float64
	t     int
}

func newAdam() *adam {
	return &adam{beta1: 0.9, beta2: 0.999, eps: 1e-8}
}

func (a *adam) step(params []*param, lr float64) {
	a.t++
	bc1 := 1 - math.Pow(a.beta1, float64(a.t))
	bc2 := 1 - math.Pow(a.beta2, float64(a.t))
	for _, p := range params {
		w := p.w.RawMatrix().Data
		g := p.g.RawMatrix().Data
		m := p.m.RawMatrix().Data
		v := p.v.RawMatrix().Data
		for i := range w {
			m[i] = a.beta1*m[i] + (1-a.beta1)*g[i]
			v[i] = a.beta2*v[i] + (1-a.beta2)*g[i]*g[i]
			mHat := m[i] / bc1
			vHat := v[i] / bc2
			w[i] -= lr * mHat / (math.Sqrt(vHat) + a.eps)
		}
	}
}

// clipGradients rescales all gradients so their joint L2 norm is at most
// maxNorm. It returns the norm before clipping.
func clipGradients(params []*param, maxNorm float64) float64 {
	var sq float64
	for _, p := range params {
		g := p.g.RawMatrix().Data
		sq += floats.Dot(g, g)
	}
	norm := math.Sqrt(sq)
	if maxNorm <= 0 || norm <= maxNorm {
		return norm
	}
	scale := maxNorm / norm
	for _, p := range params {
		floats.Scale(scale, p.g.RawMatrix().Data)
	}
	return norm
}
