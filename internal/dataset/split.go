package dataset

import (
	"math"

	"FinForecast/internal/domain/models"
)

// Ratios are the train/validation/test fractions of a split.
type Ratios struct {
	Train float64 `json:"train"`
	Val   float64 `json:"val"`
	Test  float64 `json:"test"`
}

const ratioTolerance = 1e-9

// Validate rejects negative ratios and ratios summing to more than 1.
func (r Ratios) Validate() error {
	if r.Train < 0 || r.Val < 0 || r.Test < 0 {
		return models.NewConfigError("split", "ratios must be non-negative, got %g/%g/%g", r.Train, r.Val, r.Test)
	}
	if sum := r.Train + r.Val + r.Test; sum > 1+ratioTolerance {
		return models.NewConfigError("split", "ratios sum to %g > 1", sum)
	}
	return nil
}

// Sizes returns the partition sizes for total windows. Train and validation
// take floor(ratio*total); test absorbs the remainder.
func (r Ratios) Sizes(total int) (train, val, test int) {
	train = int(math.Floor(r.Train * float64(total)))
	val = int(math.Floor(r.Val * float64(total)))
	if train+val > total {
		val = total - train
	}
	test = total - train - val
	return train, val, test
}

// Split slices ds into contiguous train, validation and test partitions in
// time order.
func Split(ds Dataset, r Ratios) (train, val, test Dataset, err error) {
	if err := r.Validate(); err != nil {
		return Dataset{}, Dataset{}, Dataset{}, err
	}
	nTrain, nVal, _ := r.Sizes(ds.Len())
	train = ds.Slice(0, nTrain)
	val = ds.Slice(nTrain, nTrain+nVal)
	test = ds.Slice(nTrain+nVal, ds.Len())
	return train, val, test, nil
}

// Concat joins partitions back together in argument order.
func Concat(parts ...Dataset) Dataset {
	var out Dataset
	for i, p := range parts {
		if i == 0 {
			out.WindowSize, out.Features, out.Offset = p.WindowSize, p.Features, p.Offset
		}
		out.Windows = append(out.Windows, p.Windows...)
	}
	return out
}
