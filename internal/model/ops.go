package model

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// affine returns x*w with bias b (1 x cols) broadcast over every row.
func affine(x, w, b *mat.Dense) *mat.Dense {
	rows, _ := x.Dims()
	_, cols := w.Dims()
	out := mat.NewDense(rows, cols, nil)
	out.Mul(x, w)
	bias := b.RawRowView(0)
	for i := 0; i < rows; i++ {
		floats.Add(out.RawRowView(i), bias)
	}
	return out
}

// accumulate adds x^T * d to the weight gradient of p.
func accumulate(p *param, x, d *mat.Dense) {
	var tmp mat.Dense
	tmp.Mul(x.T(), d)
	p.g.Add(p.g, &tmp)
}

// accumulateBias adds the column sums of d to the bias gradient of p.
func accumulateBias(p *param, d *mat.Dense) {
	rows, _ := d.Dims()
	g := p.g.RawRowView(0)
	for i := 0; i < rows; i++ {
		floats.Add(g, d.RawRowView(i))
	}
}

// backprop returns d * w^T, the gradient flowing into the input of x*w.
func backprop(d, w *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Mul(d, w.T())
	return &out
}

// sumGrad returns a + b, treating a nil b as zero.
func sumGrad(a, b *mat.Dense) *mat.Dense {
	out := mat.DenseCopyOf(a)
	if b != nil {
		out.Add(out, b)
	}
	return out
}
