package dataset

import (
	"math"

	"FinForecast/internal/domain/models"
)

// Scaler applies a min-max normalization learned once from a fitting partition.
type Scaler struct {
	state models.ScalerState
}

// FitScaler computes per-column (min, max) over every row of t.
func FitScaler(t Table) (*Scaler, error) {
	if t.Len() == 0 {
		return nil, models.NewInvalidInput("", "cannot fit scaler on an empty table")
	}
	w := t.Width()
	st := models.ScalerState{
		Columns: append([]string(nil), t.Columns...),
		Min:     make([]float64, w),
		Max:     make([]float64, w),
	}
	for j := 0; j < w; j++ {
		st.Min[j] = math.Inf(1)
		st.Max[j] = math.Inf(-1)
	}
	for i, row := range t.Rows {
		if len(row) != w {
			return nil, models.NewShapeMismatch("row width", w, len(row))
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, &models.InvalidInputError{Field: t.Columns[j], Row: i, Reason: "value is not finite"}
			}
			st.Min[j] = math.Min(st.Min[j], v)
			st.Max[j] = math.Max(st.Max[j], v)
		}
	}
	return &Scaler{state: st}, nil
}

// State returns a copy of the fitted state.
func (s *Scaler) State() models.ScalerState {
	return models.ScalerState{
		Columns: append([]string(nil), s.state.Columns...),
		Min:     append([]float64(nil), s.state.Min...),
		Max:     append([]float64(nil), s.state.Max...),
	}
}

// Transform maps every value to (v-min)/(max-min) without refitting.
// Values outside the fitted range are left outside [0,1]. A constant
// column maps to 0.
func (s *Scaler) Transform(t Table) (Table, error) {
	w := len(s.state.Min)
	if t.Width() != w {
		return Table{}, models.NewShapeMismatch("table columns", w, t.Width())
	}
	out := Table{Columns: t.Columns, Times: t.Times, Rows: make([][]float64, t.Len())}
	for i, row := range t.Rows {
		if len(row) != w {
			return Table{}, models.NewShapeMismatch("row width", w, len(row))
		}
		scaled := make([]float64, w)
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return Table{}, &models.InvalidInputError{Field: t.Columns[j], Row: i, Reason: "value is not finite"}
			}
			scaled[j] = s.scale(j, v)
		}
		out.Rows[i] = scaled
	}
	return out, nil
}

func (s *Scaler) scale(col int, v float64) float64 {
	span := s.state.Max[col] - s.state.Min[col]
	if span == 0 {
		return 0
	}
	return (v - s.state.Min[col]) / span
}

// Inverse maps a scaled value in column col back to original units.
func (s *Scaler) Inverse(col int, v float64) float64 {
	span := s.state.Max[col] - s.state.Min[col]
	return v*span + s.state.Min[col]
}
