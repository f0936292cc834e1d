package dataset

import (
	"math"
	"sort"
	"strings"
	"time"

	"FinForecast/internal/domain/models"
	"FinForecast/pkg/util"
)

// Table is a time-ordered feature matrix. Rows are never mutated once built;
// windows alias them.
type Table struct {
	Columns []string
	Times   []time.Time
	Rows    [][]float64
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// Width returns the number of feature columns.
func (t Table) Width() int { return len(t.Columns) }

// Slice returns rows [from, to) sharing the underlying storage.
func (t Table) Slice(from, to int) Table {
	out := Table{Columns: t.Columns, Rows: t.Rows[from:to]}
	if len(t.Times) == len(t.Rows) {
		out.Times = t.Times[from:to]
	}
	return out
}

// Column copies column col into a new slice.
func (t Table) Column(col int) []float64 {
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[col]
	}
	return out
}

// FromCandles sorts candles by time and converts them to a Table.
// Duplicate timestamps and non-finite values are rejected.
func FromCandles(candles []models.Candle) (Table, error) {
	sorted := make([]models.Candle, len(candles))
	copy(sorted, candles)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Bucket.Before(sorted[j].Bucket) })

	t := Table{
		Columns: models.FeatureNames,
		Times:   make([]time.Time, len(sorted)),
		Rows:    make([][]float64, len(sorted)),
	}
	for i, c := range sorted {
		if i > 0 && !c.Bucket.After(sorted[i-1].Bucket) {
			return Table{}, &models.InvalidInputError{Field: "date", Row: i, Reason: "duplicate timestamp " + c.Bucket.Format(time.RFC3339)}
		}
		row := c.Features()
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return Table{}, &models.InvalidInputError{Field: models.FeatureNames[j], Row: i, Reason: "value is not finite"}
			}
		}
		t.Times[i] = c.Bucket
		t.Rows[i] = row
	}
	return t, nil
}

// RequiredColumns are the headers a tabular record must carry.
var RequiredColumns = []string{"date", "open", "high", "low", "close", "volume"}

// ParseRecord cleans one textual record keyed by lower-case header name.
// row is used for error reporting only.
func ParseRecord(fields map[string]string, symbol string, row int) (models.Candle, error) {
	get := func(name string) (string, error) {
		v, ok := fields[name]
		if !ok || strings.TrimSpace(v) == "" {
			return "", &models.InvalidInputError{Field: name, Row: row, Reason: "missing value"}
		}
		return v, nil
	}

	raw, err := get("date")
	if err != nil {
		return models.Candle{}, err
	}
	ts, ok := util.ParseTime(raw)
	if !ok {
		return models.Candle{}, &models.InvalidInputError{Field: "date", Row: row, Reason: "unparseable date " + raw}
	}

	c := models.Candle{Bucket: ts, Symbol: symbol}
	targets := []*float64{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume}
	for i, name := range models.FeatureNames {
		raw, err := get(name)
		if err != nil {
			return models.Candle{}, err
		}
		v, err := util.ParseNumber(raw)
		if err != nil {
			return models.Candle{}, &models.InvalidInputError{Field: name, Row: row, Reason: err.Error()}
		}
		*targets[i] = v
	}
	return c, nil
}
