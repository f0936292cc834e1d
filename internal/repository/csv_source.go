package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"FinForecast/internal/dataset"
	"FinForecast/internal/domain/models"
	applogger "FinForecast/pkg/logger"
)

// CSVCandleSource reads daily OHLCV records from one or more CSV files with
// a Date,Open,High,Low,Close,Volume header (any case, any column order).
// Records from all files are concatenated; ordering is left to the caller.
type CSVCandleSource struct {
	paths  []string
	symbol string
	l      *applogger.Logger
}

func NewCSVCandleSource(symbol string, paths ...string) *CSVCandleSource {
	return &CSVCandleSource{paths: paths, symbol: symbol}
}

// SetLogger injects a structured logger.
func (s *CSVCandleSource) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CSVCandleSource) Name() string { return "csv" }

func (s *CSVCandleSource) Load(ctx context.Context) ([]models.Candle, error) {
	if len(s.paths) == 0 {
		return nil, models.NewConfigError("source.csv", "no input files")
	}
	var out []models.Candle
	for _, path := range s.paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		candles, err := s.loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if s.l != nil {
			s.l.Info("csv candles loaded",
				applogger.String("path", path),
				applogger.Int("rows", len(candles)),
				applogger.Duration("duration_ms", time.Since(start)),
			)
		}
		out = append(out, candles...)
	}
	return out, nil
}

func (s *CSVCandleSource) loadFile(path string) ([]models.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	return ReadCandlesCSV(f, s.symbol)
}

// ReadCandlesCSV parses CSV records from r. Row numbers in errors count
// data rows from 1.
func ReadCandlesCSV(r io.Reader, symbol string) ([]models.Candle, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, models.NewInvalidInput("header", "file is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, col := range dataset.RequiredColumns {
		if _, ok := index[col]; !ok {
			return nil, models.NewInvalidInput(col, "missing column in header %v", header)
		}
	}
	cr.FieldsPerRecord = len(header)

	var out []models.Candle
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &models.InvalidInputError{Field: "record", Row: row, Reason: err.Error()}
		}
		fields := make(map[string]string, len(dataset.RequiredColumns))
		for _, col := range dataset.RequiredColumns {
			fields[col] = rec[index[col]]
		}
		c, err := dataset.ParseRecord(fields, symbol, row)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
