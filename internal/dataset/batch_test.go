package dataset

import (
	"math/rand"
	"sort"
	"testing"

	"FinForecast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectIndices(batches []Batch) []int {
	var out []int
	for _, b := range batches {
		out = append(out, b.Indices...)
	}
	return out
}

func TestBatchIteratorPreservesOrder(t *testing.T) {
	ds, err := BuildWindows(testTable(20), 3)
	require.NoError(t, err)

	it, err := NewBatchIterator(ds, 5, false, nil)
	require.NoError(t, err)
	batches := it.Batches()
	require.Len(t, batches, 4)
	assert.Equal(t, 4, it.Len())

	idx := collectIndices(batches)
	for i, v := range idx {
		assert.Equal(t, i, v)
	}
	assert.Equal(t, 2, batches[3].Len())
}

func TestBatchIteratorShuffleKeepsMultiset(t *testing.T) {
	ds, err := BuildWindows(testTable(40), 4)
	require.NoError(t, err)

	it, err := NewBatchIterator(ds, 8, true, rand.New(rand.NewSource(7)))
	require.NoError(t, err)

	first := collectIndices(it.Batches())
	second := collectIndices(it.Batches())
	require.Len(t, first, ds.Len())
	assert.NotEqual(t, first, second)

	sort.Ints(first)
	for i, v := range first {
		assert.Equal(t, i, v)
	}
}

func TestBatchIteratorTargetsMatchWindows(t *testing.T) {
	ds, err := BuildWindows(testTable(15), 2)
	require.NoError(t, err)

	it, err := NewBatchIterator(ds, 4, true, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	for it.HasNext() {
		b, ok := it.Next()
		require.True(t, ok)
		for k, idx := range b.Indices {
			assert.Equal(t, ds.Windows[idx].Target, b.Targets[k])
			assert.Len(t, b.Inputs[k], 2)
		}
	}
	_, ok := it.Next()
	assert.False(t, ok)
}

func TestBatchIteratorRejectsBadSize(t *testing.T) {
	_, err := NewBatchIterator(Dataset{}, 0, false, nil)
	require.ErrorIs(t, err, models.ErrConfig)
}
