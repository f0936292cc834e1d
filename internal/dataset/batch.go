package dataset

import (
	"math/rand"
	"time"

	"FinForecast/internal/domain/models"
)

// Batch bundles windows as parallel arrays for one forward/update cycle.
type Batch struct {
	Inputs  [][][]float64 // B x W x F
	Targets []float64     // B
	Indices []int         // Window.Index of each row
}

// Len returns the number of windows in the batch.
func (b Batch) Len() int { return len(b.Targets) }

// BatchIterator yields fixed-size batches over a dataset. Each Reset starts a
// fresh traversal and, when shuffling, draws a new permutation.
type BatchIterator struct {
	ds        Dataset
	batchSize int
	shuffle   bool
	rng       *rand.Rand
	order     []int
	position  int
}

// NewBatchIterator creates an iterator. rng may be nil, in which case a
// time-seeded source is used and traversals are not reproducible.
func NewBatchIterator(ds Dataset, batchSize int, shuffle bool, rng *rand.Rand) (*BatchIterator, error) {
	if batchSize < 1 {
		return nil, models.NewConfigError("batch_size", "must be >= 1, got %d", batchSize)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	it := &BatchIterator{
		ds:        ds,
		batchSize: batchSize,
		shuffle:   shuffle,
		rng:       rng,
		order:     make([]int, ds.Len()),
	}
	it.Reset()
	return it, nil
}

// Len returns the number of batches in one traversal.
func (it *BatchIterator) Len() int {
	return (it.ds.Len() + it.batchSize - 1) / it.batchSize
}

// Reset rewinds the iterator for a new traversal.
func (it *BatchIterator) Reset() {
	it.position = 0
	for i := range it.order {
		it.order[i] = i
	}
	if it.shuffle {
		it.rng.Shuffle(len(it.order), func(i, j int) {
			it.order[i], it.order[j] = it.order[j], it.order[i]
		})
	}
}

// HasNext returns true if the current traversal has more batches.
func (it *BatchIterator) HasNext() bool { return it.position < len(it.order) }

// Next returns the next batch, or false once the traversal is exhausted.
func (it *BatchIterator) Next() (Batch, bool) {
	if !it.HasNext() {
		return Batch{}, false
	}
	end := it.position + it.batchSize
	if end > len(it.order) {
		end = len(it.order)
	}
	idx := it.order[it.position:end]
	it.position = end

	b := Batch{
		Inputs:  make([][][]float64, len(idx)),
		Targets: make([]float64, len(idx)),
		Indices: make([]int, len(idx)),
	}
	for k, i := range idx {
		w := it.ds.Windows[i]
		b.Inputs[k] = w.Inputs
		b.Targets[k] = w.Target
		b.Indices[k] = w.Index
	}
	return b, true
}

// Batches resets the iterator and collects one full traversal.
func (it *BatchIterator) Batches() []Batch {
	it.Reset()
	out := make([]Batch, 0, it.Len())
	for {
		b, ok := it.Next()
		if !ok {
			return out
		}
		out = append(out, b)
	}
}
