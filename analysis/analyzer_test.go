package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalworks/ccdumper/domain"
)

type scriptedSource struct {
	candles  []domain.Candle
	err      error
	interval domain.Interval
	limit    int
}

func (s *scriptedSource) GetCandles(
	_ context.Context, _ string, interval domain.Interval, limit int, _ time.Time,
) ([]domain.Candle, error) {
	s.interval = interval
	s.limit = limit
	return s.candles, s.err
}

func risingCandles(n int) []domain.Candle {
	out := make([]domain.Candle, n)
	for i := range out {
		price := 100 + float64(i)
		out[i] = domain.Candle{
			Timestamp: int64(i) * 60_000,
			Open:      price, High: price + 1, Low: price - 1, Close: price,
			Volume: 10,
		}
	}
	return out
}

func TestNewAnalyzer(t *testing.T) {
	t.Parallel()
	t.Run("every worker role has a profile", func(t *testing.T) {
		for _, role := range domain.Workers {
			_, err := NewAnalyzer(role, &scriptedSource{})
			assert.NoError(t, err, "role %s", role)
		}
	})
	t.Run("unknown role is rejected", func(t *testing.T) {
		_, err := NewAnalyzer(domain.Role("quant_term"), &scriptedSource{})
		assert.Error(t, err)
	})
}

func TestAnalyze(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("long term computes its indicator set", func(t *testing.T) {
		source := &scriptedSource{candles: risingCandles(200)}
		a, err := NewAnalyzer(domain.RoleLongTerm, source)
		require.NoError(t, err)

		result, err := a.Analyze(ctx, "BTCUSDT")
		require.NoError(t, err)

		assert.Equal(t, "BTCUSDT", result.Symbol)
		assert.Equal(t, "up", result.Trend)
		assert.Equal(t, 299.0, result.ClosePrice)
		assert.Equal(t, domain.Interval1h, source.interval)
		assert.Equal(t, 200, source.limit)
		for _, key := range []string{"sma50", "ema21", "rsi14", "support", "resistance"} {
			assert.Contains(t, result.Indicators, key)
		}
		assert.Equal(t, 99.0, result.Indicators["support"])
		assert.Equal(t, 300.0, result.Indicators["resistance"])
	})
	t.Run("volume data reports volume indicators", func(t *testing.T) {
		source := &scriptedSource{candles: risingCandles(30)}
		a, err := NewAnalyzer(domain.RoleVolumeData, source)
		require.NoError(t, err)

		result, err := a.Analyze(ctx, "ETHUSDT")
		require.NoError(t, err)
		for _, key := range []string{"vwap", "volumeSma10", "volumeSlope"} {
			assert.Contains(t, result.Indicators, key)
		}
	})
	t.Run("flat window reports a flat trend", func(t *testing.T) {
		candles := make([]domain.Candle, 60)
		for i := range candles {
			candles[i] = domain.Candle{Open: 50, High: 50, Low: 50, Close: 50, Volume: 1}
		}
		a, err := NewAnalyzer(domain.RoleMicroTerm, &scriptedSource{candles: candles})
		require.NoError(t, err)

		result, err := a.Analyze(ctx, "BTCUSDT")
		require.NoError(t, err)
		assert.Equal(t, "flat", result.Trend)
	})
	t.Run("source error propagates", func(t *testing.T) {
		a, err := NewAnalyzer(domain.RoleSwingTerm, &scriptedSource{err: errors.New("no data")})
		require.NoError(t, err)

		_, err = a.Analyze(ctx, "BTCUSDT")
		assert.Error(t, err)
	})
	t.Run("empty window is an error, not a zero result", func(t *testing.T) {
		a, err := NewAnalyzer(domain.RoleSlopeData, &scriptedSource{})
		require.NoError(t, err)

		_, err = a.Analyze(ctx, "BTCUSDT")
		assert.Error(t, err)
	})
}
