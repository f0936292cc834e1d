package model

import (
	"math/rand"
	"time"

	"FinForecast/internal/domain/models"

	"gonum.org/v1/gonum/mat"
)

// SequenceModel maps a batch of windows (B x W x F) to one scalar per window.
type SequenceModel interface {
	Variant() models.Variant
	Config() models.ModelConfig

	// Forward predicts without touching parameters. In evaluation mode the
	// result depends only on the parameters and the inputs.
	Forward(inputs [][][]float64) ([]float64, error)

	// Update runs one gradient step on the batch and returns the loss
	// measured before the step. A non-finite loss is returned as is and no
	// step is taken.
	Update(inputs [][][]float64, targets []float64, loss Loss, lr float64) (float64, error)

	Train()
	Eval()
	IsTraining() bool
}

// layer is one recurrent layer unrolled over the window. forward caches
// what backward needs; backward returns the gradient for each input step.
type layer interface {
	forward(xs []*mat.Dense) []*mat.Dense
	backward(dhs []*mat.Dense) []*mat.Dense
	params() []*param
}

type layerBuilder func(in, hidden int, rng *rand.Rand) layer

var builders = map[models.Variant]layerBuilder{
	models.VariantSimple: newRNNLayer,
	models.VariantLSTM:   newLSTMLayer,
	models.VariantGRU:    newGRULayer,
}

// DefaultGradientClip is the global gradient norm cap applied per update.
const DefaultGradientClip = 5.0

// Option customises a model at construction.
type Option func(*network)

// WithGradientClip sets the global gradient norm cap. Zero disables clipping.
func WithGradientClip(norm float64) Option {
	return func(n *network) { n.clip = norm }
}

// New builds a fresh model for cfg.Variant with Depth stacked layers of
// HiddenWidth units over inputSize features. rng drives initialisation and
// dropout; nil means a time-seeded source.
func New(cfg models.ModelConfig, inputSize int, rng *rand.Rand, opts ...Option) (SequenceModel, error) {
	build, ok := builders[cfg.Variant]
	if !ok {
		return nil, models.NewConfigError("variant", "unknown variant %q", cfg.Variant)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if inputSize < 1 {
		return nil, models.NewConfigError("input_size", "must be >= 1, got %d", inputSize)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	n := &network{
		cfg:       cfg,
		inputSize: inputSize,
		rng:       rng,
		opt:       newAdam(),
		clip:      DefaultGradientClip,
		training:  true,
	}
	in := inputSize
	for d := 0; d < cfg.Depth; d++ {
		n.layers = append(n.layers, build(in, cfg.HiddenWidth, rng))
		in = cfg.HiddenWidth
	}
	n.masks = make([][]*mat.Dense, cfg.Depth)
	n.head = newParam("head.w", cfg.HiddenWidth, 1).uniform(1/float64(cfg.HiddenWidth), rng)
	n.headBias = newParam("head.b", 1, 1)
	for _, o := range opts {
		o(n)
	}
	return n, nil
}
