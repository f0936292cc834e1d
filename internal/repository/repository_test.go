package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"FinForecast/internal/domain/models"
	"FinForecast/pkg/cache"
	pkgkafka "FinForecast/pkg/kafka"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trainCSV = `Date,Open,High,Low,Close,Volume
1/3/2012,325.25,332.83,324.97,663.59,"7,380,500"
1/4/2012,331.27,333.87,329.08,666.45,"5,749,400"
`

const testCSV = `date,close,open,high,low,volume
1/3/2017,786.14,778.81,789.63,775.8,"1,657,300"
`

func TestReadCandlesCSV(t *testing.T) {
	cs, err := ReadCandlesCSV(strings.NewReader(trainCSV), "GOOG")
	require.NoError(t, err)
	require.Len(t, cs, 2)
	assert.Equal(t, 7380500.0, cs[0].Volume)
	assert.Equal(t, 666.45, cs[1].Close)
	assert.Equal(t, time.January, cs[1].Bucket.Month())
	assert.Equal(t, 4, cs[1].Bucket.Day())
}

func TestReadCandlesCSVColumnOrder(t *testing.T) {
	cs, err := ReadCandlesCSV(strings.NewReader(testCSV), "GOOG")
	require.NoError(t, err)
	require.Len(t, cs, 1)
	assert.Equal(t, 786.14, cs[0].Close)
	assert.Equal(t, 778.81, cs[0].Open)
}

func TestReadCandlesCSVErrors(t *testing.T) {
	_, err := ReadCandlesCSV(strings.NewReader("Date,Open,High,Low,Close\n1/3/2012,1,1,1,1\n"), "X")
	require.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = ReadCandlesCSV(strings.NewReader("Date,Open,High,Low,Close,Volume\n1/3/2012,1,1,1,n/a,5\n"), "X")
	require.ErrorIs(t, err, models.ErrInvalidInput)
	var ie *models.InvalidInputError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "close", ie.Field)
	assert.Equal(t, 1, ie.Row)

	_, err = ReadCandlesCSV(strings.NewReader(""), "X")
	require.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestCSVCandleSourceConcatenatesFiles(t *testing.T) {
	dir := t.TempDir()
	trainPath := filepath.Join(dir, "train.csv")
	testPath := filepath.Join(dir, "test.csv")
	require.NoError(t, os.WriteFile(trainPath, []byte(trainCSV), 0o600))
	require.NoError(t, os.WriteFile(testPath, []byte(testCSV), 0o600))

	src := NewCSVCandleSource("GOOG", trainPath, testPath)
	assert.Equal(t, "csv", src.Name())
	cs, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, cs, 3)
	assert.Equal(t, 2017, cs[2].Bucket.Year())

	_, err = NewCSVCandleSource("GOOG", filepath.Join(dir, "missing.csv")).Load(context.Background())
	require.Error(t, err)

	_, err = NewCSVCandleSource("GOOG").Load(context.Background())
	require.ErrorIs(t, err, models.ErrConfig)
}

func sampleReport(id string) *models.RunReport {
	cfg := models.ModelConfig{Variant: models.VariantLSTM, HiddenWidth: 8, Depth: 1, LearningRate: 0.01, BatchSize: 16}
	best := models.TrialResult{Index: 1, Config: cfg, ValidationLoss: 0.01, Status: models.TrialOK}
	return &models.RunReport{
		RunID:      id,
		Symbol:     "GOOG",
		FinishedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		TestSize:   8,
		Variants: []models.VariantReport{{
			Variant: models.VariantLSTM,
			Trials: []models.TrialResult{
				{Index: 0, Config: cfg, ValidationLoss: 0.02, Status: models.TrialOK},
				best,
				{Index: 2, Config: cfg, Status: models.TrialFailed, Error: "non-finite loss"},
			},
			Ranked:  []models.TrialResult{best},
			Best:    best,
			Metrics: models.Metrics{MSE: 0.1, MAE: 0.2, R2: models.UndefinedR2()},
		}},
	}
}

func TestCacheReportStore(t *testing.T) {
	ctx := context.Background()
	mc := cache.NewMemoryCache()
	defer mc.Close()
	store := NewCacheReportStore(mc, time.Hour)

	_, err := store.Latest(ctx)
	require.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, store.Write(ctx, sampleReport("run-1")))
	require.NoError(t, store.Write(ctx, sampleReport("run-2")))

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-2", latest.RunID)

	first, err := store.Get(ctx, "run-1")
	require.NoError(t, err)
	vr, ok := first.Variant(models.VariantLSTM)
	require.True(t, ok)
	assert.Len(t, vr.Trials, 3)
	assert.False(t, vr.Metrics.R2.Defined)

	_, err = store.Get(ctx, "nope")
	require.ErrorIs(t, err, models.ErrNotFound)

	require.ErrorIs(t, store.Write(ctx, &models.RunReport{}), models.ErrInvalidInput)
}

type fakeInserter struct {
	queries []string
	rows    [][][]any
	err     error
}

func (f *fakeInserter) InsertBatch(_ context.Context, query string, rows [][]any) error {
	if f.err != nil {
		return f.err
	}
	f.queries = append(f.queries, query)
	f.rows = append(f.rows, rows)
	return nil
}

func TestCHTrialSinkWritesTrialsAndEvaluations(t *testing.T) {
	ins := &fakeInserter{}
	sink := NewCHTrialSink(ins)
	require.NoError(t, sink.Write(context.Background(), sampleReport("run-1")))

	require.Len(t, ins.rows, 2)
	trials := ins.rows[0]
	require.Len(t, trials, 3)
	assert.Equal(t, "run-1", trials[0][0])
	assert.Equal(t, uint8(0), trials[0][13])
	assert.Equal(t, uint8(1), trials[1][13])
	assert.Equal(t, models.TrialFailed, trials[2][9])

	evals := ins.rows[1]
	require.Len(t, evals, 1)
	assert.Nil(t, evals[0][5].(*float64))

	ins.err = errors.New("down")
	require.Error(t, sink.Write(context.Background(), sampleReport("run-2")))
}

type fakeBatchPublisher struct {
	topics []string
	msgs   [][]pkgkafka.Message
}

func (f *fakeBatchPublisher) PublishBatch(_ context.Context, topic string, messages []pkgkafka.Message) error {
	f.topics = append(f.topics, topic)
	f.msgs = append(f.msgs, messages)
	return nil
}

func TestKafkaReportPublisher(t *testing.T) {
	pub := &fakeBatchPublisher{}
	k := NewKafkaReportPublisher(pub, "reports", "summaries")
	require.NoError(t, k.Write(context.Background(), sampleReport("run-9")))

	assert.Equal(t, []string{"reports", "summaries"}, pub.topics)
	require.Len(t, pub.msgs[1], 1)
	sum := pub.msgs[1][0].Value.(VariantSummary)
	assert.Equal(t, "run-9", sum.RunID)
	assert.Equal(t, 3, sum.Trials)
	assert.Equal(t, 1, sum.FailedTrials)
	assert.Equal(t, 0.01, sum.ValidationLoss)
	assert.Equal(t, []byte("run-9"), pub.msgs[0][0].Key)
}
