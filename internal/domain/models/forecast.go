package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Variant selects the recurrent state-propagation rule of a sequence model.
type Variant string

const (
	VariantSimple Variant = "simple" // single hidden state
	VariantLSTM   Variant = "lstm"   // hidden + cell state, input/forget/output gates
	VariantGRU    Variant = "gru"    // hidden state, update/reset gates
)

// Variants lists every supported variant in report order.
var Variants = []Variant{VariantSimple, VariantLSTM, VariantGRU}

// ParseVariant converts a config/query string to a Variant.
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case VariantSimple, VariantLSTM, VariantGRU:
		return Variant(s), nil
	case "rnn":
		return VariantSimple, nil
	default:
		return "", NewConfigError("variant", "unknown variant %q", s)
	}
}

// ModelConfig is one point in the hyperparameter search space.
type ModelConfig struct {
	Variant      Variant `json:"variant"`
	HiddenWidth  int     `json:"hidden_width"`
	Depth        int     `json:"depth"`
	DropoutRate  float64 `json:"dropout_rate"`
	LearningRate float64 `json:"learning_rate"`
	BatchSize    int     `json:"batch_size"`
}

func (c ModelConfig) String() string {
	return fmt.Sprintf("%s(hidden=%d depth=%d dropout=%g lr=%g batch=%d)",
		c.Variant, c.HiddenWidth, c.Depth, c.DropoutRate, c.LearningRate, c.BatchSize)
}

// Validate checks the structural bounds every model needs.
func (c ModelConfig) Validate() error {
	if c.HiddenWidth < 1 {
		return NewConfigError("hidden_width", "must be >= 1, got %d", c.HiddenWidth)
	}
	if c.Depth < 1 {
		return NewConfigError("depth", "must be >= 1, got %d", c.Depth)
	}
	if c.DropoutRate < 0 || c.DropoutRate >= 1 {
		return NewConfigError("dropout_rate", "must be in [0,1), got %g", c.DropoutRate)
	}
	if c.LearningRate <= 0 {
		return NewConfigError("learning_rate", "must be > 0, got %g", c.LearningRate)
	}
	if c.BatchSize < 1 {
		return NewConfigError("batch_size", "must be >= 1, got %d", c.BatchSize)
	}
	return nil
}

// EpochStats holds the mean losses of one train+validate epoch.
type EpochStats struct {
	Epoch     int           `json:"epoch"`
	TrainLoss float64       `json:"train_loss"`
	ValLoss   float64       `json:"val_loss"`
	Duration  time.Duration `json:"duration_ns"`
}

// Trial status values.
const (
	TrialOK     = "ok"
	TrialFailed = "failed"
)

// TrialResult is the outcome of one abbreviated search run.
type TrialResult struct {
	Index          int           `json:"index"`
	Config         ModelConfig   `json:"config"`
	ValidationLoss float64       `json:"validation_loss"`
	Epochs         []EpochStats  `json:"epochs,omitempty"`
	Status         string        `json:"status"`
	Error          string        `json:"error,omitempty"`
	Duration       time.Duration `json:"duration_ns"`
}

// OK reports whether the trial finished with a finite validation loss.
func (t TrialResult) OK() bool { return t.Status == TrialOK }

// R2Score is the coefficient of determination. It is undefined when the
// actual values have zero variance.
type R2Score struct {
	Value   float64
	Defined bool
}

// DefinedR2 wraps a computed R2 value.
func DefinedR2(v float64) R2Score { return R2Score{Value: v, Defined: true} }

// UndefinedR2 marks R2 as not computable.
func UndefinedR2() R2Score { return R2Score{} }

func (r R2Score) String() string {
	if !r.Defined {
		return "undefined"
	}
	return fmt.Sprintf("%g", r.Value)
}

func (r R2Score) MarshalJSON() ([]byte, error) {
	if !r.Defined {
		return []byte("null"), nil
	}
	return json.Marshal(r.Value)
}

func (r *R2Score) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*r = UndefinedR2()
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*r = DefinedR2(v)
	return nil
}

// Metrics are held-out evaluation results.
type Metrics struct {
	MSE float64 `json:"mse"`
	MAE float64 `json:"mae"`
	R2  R2Score `json:"r2"`
}

// ScalerState is the per-column min/max learned from the fitting partition.
type ScalerState struct {
	Columns []string  `json:"columns"`
	Min     []float64 `json:"min"`
	Max     []float64 `json:"max"`
}

// PredictionPoint pairs one held-out prediction with its actual value.
type PredictionPoint struct {
	Time           time.Time `json:"time"`
	Predicted      float64   `json:"predicted"`
	Actual         float64   `json:"actual"`
	PredictedPrice float64   `json:"predicted_price"`
	ActualPrice    float64   `json:"actual_price"`
}

// VariantReport collects the search and final evaluation of one model variant.
type VariantReport struct {
	Variant     Variant           `json:"variant"`
	Trials      []TrialResult     `json:"trials"`
	Ranked      []TrialResult     `json:"ranked"`
	Best        TrialResult       `json:"best"`
	FinalEpochs []EpochStats      `json:"final_epochs"`
	Metrics     Metrics           `json:"metrics"`
	Predictions []PredictionPoint `json:"predictions,omitempty"`
}

// RunReport is the full output of one pipeline run.
type RunReport struct {
	RunID      string          `json:"run_id"`
	Symbol     string          `json:"symbol"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	WindowSize int             `json:"window_size"`
	TrainSize  int             `json:"train_size"`
	ValSize    int             `json:"val_size"`
	TestSize   int             `json:"test_size"`
	Scaler     ScalerState     `json:"scaler"`
	Variants   []VariantReport `json:"variants"`
}

// Variant returns the report for v, if present.
func (r *RunReport) Variant(v Variant) (*VariantReport, bool) {
	for i := range r.Variants {
		if r.Variants[i].Variant == v {
			return &r.Variants[i], true
		}
	}
	return nil, false
}

// Progress stages.
const (
	StageSearch = "search"
	StageFinal  = "final"
)

// ProgressEvent is emitted after every completed epoch.
type ProgressEvent struct {
	RunID     string    `json:"run_id"`
	Variant   Variant   `json:"variant"`
	Stage     string    `json:"stage"`
	Trial     int       `json:"trial"`
	Epoch     int       `json:"epoch"`
	Epochs    int       `json:"epochs"`
	TrainLoss float64   `json:"train_loss"`
	ValLoss   float64   `json:"val_loss"`
	Time      time.Time `json:"time"`
}
