package dataset

import (
	"math"
	"testing"

	"FinForecast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromCandlesSortsByTime(t *testing.T) {
	cs := testCandles(5)
	cs[0], cs[4] = cs[4], cs[0]

	tbl, err := FromCandles(cs)
	require.NoError(t, err)
	require.Equal(t, 5, tbl.Len())
	for i := 1; i < tbl.Len(); i++ {
		assert.True(t, tbl.Times[i].After(tbl.Times[i-1]))
	}
}

func TestFromCandlesRejectsDuplicateTimestamps(t *testing.T) {
	cs := testCandles(3)
	cs[2].Bucket = cs[1].Bucket

	_, err := FromCandles(cs)
	require.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestFromCandlesRejectsNonFinite(t *testing.T) {
	cs := testCandles(3)
	cs[1].Volume = math.NaN()

	_, err := FromCandles(cs)
	require.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestParseRecordStripsSeparators(t *testing.T) {
	c, err := ParseRecord(map[string]string{
		"date":   "01/03/2012",
		"open":   "325.25",
		"high":   "332.83",
		"low":    "324.97",
		"close":  "663.59",
		"volume": "7,380,500",
	}, "GOOG", 0)
	require.NoError(t, err)
	assert.Equal(t, 2012, c.Bucket.Year())
	assert.Equal(t, 7380500.0, c.Volume)
	assert.Equal(t, 663.59, c.Close)
	assert.Equal(t, "GOOG", c.Symbol)
}

func TestParseRecordMissingField(t *testing.T) {
	_, err := ParseRecord(map[string]string{
		"date": "2012-01-03", "open": "1", "high": "1", "low": "1", "close": "1",
	}, "X", 4)
	require.ErrorIs(t, err, models.ErrInvalidInput)

	var ie *models.InvalidInputError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "volume", ie.Field)
	assert.Equal(t, 4, ie.Row)
}

func TestParseRecordNonNumeric(t *testing.T) {
	_, err := ParseRecord(map[string]string{
		"date": "2012-01-03", "open": "1", "high": "abc", "low": "1", "close": "1", "volume": "1",
	}, "X", 0)
	require.ErrorIs(t, err, models.ErrInvalidInput)
}
