package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"FinForecast/internal/domain/models"
	domrepo "FinForecast/internal/domain/repository"
	pkgch "FinForecast/pkg/clickhouse"
	applogger "FinForecast/pkg/logger"
)

// CHCandleSource reads OHLCV bars for one symbol from the candle tables.
type CHCandleSource struct {
	db     *sql.DB
	symbol string
	tf     domrepo.Timeframe
	from   time.Time
	to     time.Time
	l      *applogger.Logger
}

// NewCHCandleSource reads bars in [from, to]; a zero to means now.
func NewCHCandleSource(ch *pkgch.Client, symbol string, tf domrepo.Timeframe, from, to time.Time) *CHCandleSource {
	return &CHCandleSource{db: ch.DB(), symbol: symbol, tf: domrepo.NormalizeTimeframe(string(tf)), from: from, to: to}
}

// SetLogger injects a structured logger.
func (s *CHCandleSource) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHCandleSource) Name() string { return "clickhouse" }

func (s *CHCandleSource) Load(ctx context.Context) ([]models.Candle, error) {
	to := s.to
	if to.IsZero() {
		to = time.Now().UTC()
	}
	return s.GetCandles(ctx, s.symbol, s.from, to, s.tf)
}

func (s *CHCandleSource) GetCandles(ctx context.Context, symbol string, from, to time.Time, tf domrepo.Timeframe) ([]models.Candle, error) {
	start := time.Now()
	table, err := tableForTF(tf)
	if err != nil {
		return nil, err
	}
	const qtpl = `
        SELECT bucket, symbol, open, high, low, close, vol
        FROM %s
        WHERE symbol = ? AND bucket >= ? AND bucket <= ?
        ORDER BY bucket ASC
    `
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(qtpl, table), symbol, from, to)
	if err != nil {
		s.logError("clickhouse get_candles query error", table, symbol, tf, err)
		return nil, fmt.Errorf("get candles: %w", err)
	}
	defer rows.Close()

	out := make([]models.Candle, 0, 1024)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Bucket, &c.Symbol, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			s.logError("clickhouse get_candles scan error", table, symbol, tf, err)
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		s.logError("clickhouse get_candles rows error", table, symbol, tf, err)
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse get_candles ok",
			applogger.String("table", table),
			applogger.String("symbol", symbol),
			applogger.String("tf", string(tf)),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHCandleSource) logError(msg, table, symbol string, tf domrepo.Timeframe, err error) {
	if s.l == nil {
		return
	}
	s.l.Error(msg,
		applogger.String("table", table),
		applogger.String("symbol", symbol),
		applogger.String("tf", string(tf)),
		applogger.Error(err),
	)
}

func tableForTF(tf domrepo.Timeframe) (string, error) {
	switch tf {
	case domrepo.TF1m:
		return "finforecast.candles_1m", nil
	case domrepo.TF5m:
		return "finforecast.candles_5m", nil
	case domrepo.TF1h:
		return "finforecast.candles_1h", nil
	case domrepo.TF1d:
		return "finforecast.candles_1d", nil
	default:
		return "", models.NewConfigError("source.clickhouse.timeframe", "unsupported timeframe %q", tf)
	}
}
