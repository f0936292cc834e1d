package dataset

import (
	"math"
	"time"

	"FinForecast/internal/domain/models"
)

func testCandles(n int) []models.Candle {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	for i := 0; i < n; i++ {
		base := 100 + 10*math.Sin(float64(i)/5)
		out[i] = models.Candle{
			Bucket: start.AddDate(0, 0, i),
			Symbol: "TEST",
			Open:   base - 0.5,
			High:   base + 1,
			Low:    base - 1,
			Close:  base,
			Volume: 1000 + float64(i%7)*10,
		}
	}
	return out
}

func testTable(n int) Table {
	t, err := FromCandles(testCandles(n))
	if err != nil {
		panic(err)
	}
	return t
}
