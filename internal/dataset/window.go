package dataset

import (
	"time"

	"FinForecast/internal/domain/models"
)

// Window is W consecutive scaled rows paired with the next row's close value.
type Window struct {
	Index      int         // position in the unsplit dataset
	TargetRow  int         // table row the target was taken from
	Inputs     [][]float64 // W x F, aliases table rows
	Target     float64
	TargetTime time.Time
}

// Dataset is an ordered run of windows sharing one scaler.
type Dataset struct {
	Windows    []Window
	WindowSize int
	Features   int
	Offset     int // Index of Windows[0] in the unsplit dataset
}

// Len returns the number of windows.
func (d Dataset) Len() int { return len(d.Windows) }

// Slice returns windows [from, to) as a new Dataset view.
func (d Dataset) Slice(from, to int) Dataset {
	return Dataset{
		Windows:    d.Windows[from:to],
		WindowSize: d.WindowSize,
		Features:   d.Features,
		Offset:     d.Offset + from,
	}
}

// Targets copies the target of every window in order.
func (d Dataset) Targets() []float64 {
	out := make([]float64, len(d.Windows))
	for i, w := range d.Windows {
		out[i] = w.Target
	}
	return out
}

// BuildWindows emits, for every row i in [w, len), a window over rows
// [i-w, i-1] whose target is the close value of row i. A table with
// len <= w yields an empty dataset.
func BuildWindows(t Table, w int) (Dataset, error) {
	if w < 1 {
		return Dataset{}, models.NewConfigError("window_size", "must be >= 1, got %d", w)
	}
	if t.Width() <= models.ColClose {
		return Dataset{}, models.NewShapeMismatch("table columns", models.NumFeatures, t.Width())
	}
	ds := Dataset{WindowSize: w, Features: t.Width()}
	if t.Len() <= w {
		return ds, nil
	}

	ds.Windows = make([]Window, 0, t.Len()-w)
	for i := w; i < t.Len(); i++ {
		win := Window{
			Index:     i - w,
			TargetRow: i,
			Inputs:    t.Rows[i-w : i],
			Target:    t.Rows[i][models.ColClose],
		}
		if i < len(t.Times) {
			win.TargetTime = t.Times[i]
		}
		ds.Windows = append(ds.Windows, win)
	}
	return ds, nil
}
