package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/signalworks/ccdumper/domain"
)

func TestSMA(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, 4, SMA([]float64{1, 2, 3, 4, 5}, 3), 1e-9)
	assert.Zero(t, SMA([]float64{1, 2}, 3), "short input")
	assert.Zero(t, SMA(nil, 0), "bad period")
}

func TestEMA(t *testing.T) {
	t.Parallel()
	// Constant series: the EMA must equal the constant.
	assert.InDelta(t, 7, EMA([]float64{7, 7, 7, 7, 7}, 3), 1e-9)
	// Rising series: the EMA leans toward the recent values, above the SMA.
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	assert.Greater(t, EMA(values, 4), SMA(values[:4], 4))
	assert.Zero(t, EMA([]float64{1}, 4))
}

func TestRSI(t *testing.T) {
	t.Parallel()
	t.Run("all gains saturate at 100", func(t *testing.T) {
		assert.InDelta(t, 100, RSI([]float64{1, 2, 3, 4, 5, 6}, 4), 1e-9)
	})
	t.Run("all losses sit at 0", func(t *testing.T) {
		assert.InDelta(t, 0, RSI([]float64{6, 5, 4, 3, 2, 1}, 4), 1e-9)
	})
	t.Run("alternating series lands mid-range", func(t *testing.T) {
		values := []float64{10, 11, 10, 11, 10, 11, 10, 11, 10, 11}
		rsi := RSI(values, 4)
		assert.Greater(t, rsi, 30.0)
		assert.Less(t, rsi, 70.0)
	})
	t.Run("short input degrades to zero", func(t *testing.T) {
		assert.Zero(t, RSI([]float64{1, 2}, 4))
	})
}

func TestBollinger(t *testing.T) {
	t.Parallel()
	t.Run("flat series collapses the bands", func(t *testing.T) {
		upper, middle, lower, width := Bollinger([]float64{5, 5, 5, 5, 5}, 5, 2)
		assert.InDelta(t, 5, upper, 1e-9)
		assert.InDelta(t, 5, middle, 1e-9)
		assert.InDelta(t, 5, lower, 1e-9)
		assert.Zero(t, width)
	})
	t.Run("bands are symmetric around the middle", func(t *testing.T) {
		upper, middle, lower, width := Bollinger([]float64{2, 4, 6, 8, 10}, 5, 2)
		assert.InDelta(t, middle-lower, upper-middle, 1e-9)
		assert.Greater(t, width, 0.0)
	})
}

func TestMomentumAndROC(t *testing.T) {
	t.Parallel()
	values := []float64{100, 102, 104, 106, 108}
	assert.InDelta(t, 8, Momentum(values, 4), 1e-9)
	assert.InDelta(t, 8, ROC(values, 4), 1e-9)
	assert.Zero(t, Momentum(values, 10))
	assert.Zero(t, ROC([]float64{0, 5}, 1), "zero base")
}

func TestSlope(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, 2, Slope([]float64{1, 3, 5, 7}), 1e-9)
	assert.InDelta(t, 0, Slope([]float64{4, 4, 4}), 1e-9)
	assert.Zero(t, Slope([]float64{1}))
}

func TestSupportResistance(t *testing.T) {
	t.Parallel()
	candles := []domain.Candle{
		{High: 110, Low: 95},
		{High: 120, Low: 99},
		{High: 105, Low: 90},
	}
	support, resistance := SupportResistance(candles)
	assert.Equal(t, 90.0, support)
	assert.Equal(t, 120.0, resistance)
}

func TestVWAP(t *testing.T) {
	t.Parallel()
	t.Run("weights typical price by volume", func(t *testing.T) {
		candles := []domain.Candle{
			{High: 10, Low: 10, Close: 10, Volume: 1},
			{High: 20, Low: 20, Close: 20, Volume: 3},
		}
		assert.InDelta(t, 17.5, VWAP(candles), 1e-9)
	})
	t.Run("zero volume falls back to mean close", func(t *testing.T) {
		candles := []domain.Candle{
			{Close: 10}, {Close: 20},
		}
		assert.InDelta(t, 15, VWAP(candles), 1e-9)
	})
}
