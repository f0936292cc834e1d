package models

import "time"

// Candle represents an OHLCV record for feature engineering and training.
type Candle struct {
	Bucket time.Time
	Symbol string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Feature columns in table order. Close is the prediction target.
const (
	ColOpen = iota
	ColHigh
	ColLow
	ColClose
	ColVolume
	NumFeatures
)

// FeatureNames lists the candle fields in column order.
var FeatureNames = []string{"open", "high", "low", "close", "volume"}

// Features returns the candle values in column order.
func (c Candle) Features() []float64 {
	return []float64{c.Open, c.High, c.Low, c.Close, c.Volume}
}
