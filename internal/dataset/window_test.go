package dataset

import (
	"testing"

	"FinForecast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildWindowsLengthAndTargets(t *testing.T) {
	tbl := testTable(30)
	const w = 5

	ds, err := BuildWindows(tbl, w)
	require.NoError(t, err)
	require.Equal(t, tbl.Len()-w, ds.Len())
	assert.Equal(t, models.NumFeatures, ds.Features)

	for i, win := range ds.Windows {
		assert.Equal(t, i, win.Index)
		assert.Len(t, win.Inputs, w)
		assert.Equal(t, tbl.Rows[i+w][models.ColClose], win.Target)
		assert.Equal(t, tbl.Rows[i], win.Inputs[0])
		assert.Equal(t, tbl.Rows[i+w-1], win.Inputs[w-1])
		assert.Equal(t, tbl.Times[i+w], win.TargetTime)
	}
}

func TestBuildWindowsTooShort(t *testing.T) {
	for _, n := range []int{0, 3, 5} {
		ds, err := BuildWindows(testTable(n), 5)
		require.NoError(t, err)
		assert.Equal(t, 0, ds.Len(), "rows=%d", n)
	}
}

func TestBuildWindowsRejectsBadSize(t *testing.T) {
	_, err := BuildWindows(testTable(10), 0)
	require.ErrorIs(t, err, models.ErrConfig)
}

func TestBuildWindowsRequiresCloseColumn(t *testing.T) {
	_, err := BuildWindows(Table{Columns: []string{"open"}, Rows: [][]float64{{1}, {2}}}, 1)
	require.ErrorIs(t, err, models.ErrShapeMismatch)
}

func TestDatasetTargets(t *testing.T) {
	ds, err := BuildWindows(testTable(8), 3)
	require.NoError(t, err)
	targets := ds.Targets()
	require.Len(t, targets, 5)
	for i, w := range ds.Windows {
		assert.Equal(t, w.Target, targets[i])
	}
}
