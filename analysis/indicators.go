package analysis

import (
	"math"

	"github.com/signalworks/ccdumper/domain"
)

// Batch indicator helpers over candle slices ordered ascending by time.
// Callers guarantee enough data; every function degrades to 0 on short
// input rather than panicking.

func closes(candles []domain.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// SMA is the simple moving average of the last period values.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	var sum float64
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period)
}

// EMA seeds with the SMA of the first period values and folds the rest.
func EMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	k := 2.0 / float64(period+1)
	ema := SMA(values[:period], period)
	for _, v := range values[period:] {
		ema = v*k + ema*(1-k)
	}
	return ema
}

// RSI uses Wilder's smoothing over the full input.
func RSI(values []float64, period int) float64 {
	if period <= 0 || len(values) <= period {
		return 0
	}
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := values[i] - values[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	p := float64(period)
	for i := period + 1; i < len(values); i++ {
		delta := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
	}
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// Bollinger returns the upper, middle and lower bands plus the width as a
// percentage of the middle band.
func Bollinger(values []float64, period int, k float64) (upper, middle, lower, width float64) {
	if period <= 0 || len(values) < period {
		return
	}
	middle = SMA(values, period)
	var variance float64
	for _, v := range values[len(values)-period:] {
		variance += (v - middle) * (v - middle)
	}
	sd := math.Sqrt(variance / float64(period))
	upper = middle + k*sd
	lower = middle - k*sd
	if middle != 0 {
		width = (upper - lower) / middle * 100
	}
	return
}

// Momentum is the absolute price change over period bars.
func Momentum(values []float64, period int) float64 {
	if period <= 0 || len(values) <= period {
		return 0
	}
	return values[len(values)-1] - values[len(values)-1-period]
}

// ROC is the rate of change over period bars, in percent.
func ROC(values []float64, period int) float64 {
	if period <= 0 || len(values) <= period {
		return 0
	}
	base := values[len(values)-1-period]
	if base == 0 {
		return 0
	}
	return (values[len(values)-1] - base) / base * 100
}

// Slope is the least-squares regression slope of the values, in price
// units per bar.
func Slope(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// SupportResistance takes the extreme lows and highs of the window.
func SupportResistance(candles []domain.Candle) (support, resistance float64) {
	if len(candles) == 0 {
		return
	}
	support, resistance = candles[0].Low, candles[0].High
	for _, c := range candles[1:] {
		if c.Low < support {
			support = c.Low
		}
		if c.High > resistance {
			resistance = c.High
		}
	}
	return
}

// VWAP is the volume-weighted average of typical prices; zero total volume
// falls back to the mean close.
func VWAP(candles []domain.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	var sumPV, totalVolume float64
	for _, c := range candles {
		sumPV += c.TypicalPrice() * c.Volume
		totalVolume += c.Volume
	}
	if totalVolume == 0 {
		var sum float64
		for _, c := range candles {
			sum += c.Close
		}
		return sum / float64(len(candles))
	}
	return sumPV / totalVolume
}
