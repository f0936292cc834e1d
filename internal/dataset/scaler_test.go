package dataset

import (
	"testing"

	"FinForecast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalerMapsFitRangeToUnitInterval(t *testing.T) {
	tbl := testTable(50)
	s, err := FitScaler(tbl)
	require.NoError(t, err)

	scaled, err := s.Transform(tbl)
	require.NoError(t, err)

	st := s.State()
	for j := 0; j < tbl.Width(); j++ {
		for i, row := range tbl.Rows {
			if row[j] == st.Min[j] {
				assert.Equal(t, 0.0, scaled.Rows[i][j])
			}
			if row[j] == st.Max[j] {
				assert.Equal(t, 1.0, scaled.Rows[i][j])
			}
		}
	}
}

func TestScalerDoesNotClipOutOfRange(t *testing.T) {
	fit := Table{Columns: []string{"a"}, Rows: [][]float64{{10}, {20}}}
	s, err := FitScaler(fit)
	require.NoError(t, err)

	out, err := s.Transform(Table{Columns: []string{"a"}, Rows: [][]float64{{5}, {30}}})
	require.NoError(t, err)
	assert.InDelta(t, -0.5, out.Rows[0][0], 1e-12)
	assert.InDelta(t, 2.0, out.Rows[1][0], 1e-12)
}

func TestScalerConstantColumnMapsToZero(t *testing.T) {
	fit := Table{Columns: []string{"a", "b"}, Rows: [][]float64{{3, 1}, {3, 2}}}
	s, err := FitScaler(fit)
	require.NoError(t, err)

	out, err := s.Transform(Table{Columns: []string{"a", "b"}, Rows: [][]float64{{3, 1}, {7, 2}}})
	require.NoError(t, err)
	assert.Equal(t, 0.0, out.Rows[0][0])
	assert.Equal(t, 0.0, out.Rows[1][0])
	assert.Equal(t, 1.0, out.Rows[1][1])
}

func TestScalerInverse(t *testing.T) {
	fit := Table{Columns: []string{"a"}, Rows: [][]float64{{10}, {30}}}
	s, err := FitScaler(fit)
	require.NoError(t, err)
	assert.InDelta(t, 25.0, s.Inverse(0, 0.75), 1e-12)
}

func TestScalerErrors(t *testing.T) {
	_, err := FitScaler(Table{Columns: []string{"a"}})
	require.ErrorIs(t, err, models.ErrInvalidInput)

	s, err := FitScaler(Table{Columns: []string{"a"}, Rows: [][]float64{{1}, {2}}})
	require.NoError(t, err)
	_, err = s.Transform(Table{Columns: []string{"a", "b"}, Rows: [][]float64{{1, 2}}})
	require.ErrorIs(t, err, models.ErrShapeMismatch)
}
