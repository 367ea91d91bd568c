package candle

import (
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/signalworks/ccdumper/domain"
)

// validateBatch rejects a candle batch before it is trusted: non-finite
// fields, non-positive OHLC, negative volume, and anomalously low prices.
// The anomaly check catches the incomplete/placeholder candles the
// exchange sometimes returns for the still-forming current bar: their
// prices sit orders of magnitude below the rest of the batch.
func validateBatch(candles []domain.Candle, minForMedian int, thresholdFactor float64) error {
	if len(candles) == 0 {
		return nil
	}

	prices := make([]float64, 0, len(candles)*4)
	for _, c := range candles {
		for _, p := range []float64{c.Open, c.High, c.Low, c.Close} {
			if p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0) {
				prices = append(prices, p)
			}
		}
	}

	// Median is the robust choice, but it needs enough samples to be
	// statistically meaningful; small batches use the arithmetic mean.
	var reference float64
	if len(candles) >= minForMedian {
		sorted := append([]float64(nil), prices...)
		sort.Float64s(sorted)
		if len(sorted) > 0 {
			reference = sorted[len(sorted)/2]
		}
	} else {
		var sum float64
		for _, p := range prices {
			sum += p
		}
		if len(prices) > 0 {
			reference = sum / float64(len(prices))
		}
	}

	if reference == 0 {
		return errors.Wrap(
			domain.ErrValidationFailed,
			"can't compute reference price, all prices are zero",
		)
	}

	minValid := reference / thresholdFactor

	for i, c := range candles {
		if !c.Finite() {
			return errors.Wrapf(
				domain.ErrValidationFailed,
				"candle[%d] has non-finite values", i,
			)
		}
		if !c.Positive() {
			return errors.Wrapf(
				domain.ErrValidationFailed,
				"candle[%d] has zero or negative values", i,
			)
		}
		if c.Open < minValid || c.High < minValid || c.Low < minValid || c.Close < minValid {
			return errors.Wrapf(
				domain.ErrValidationFailed,
				"candle[%d] has anomalously low price, ohlc=[%v %v %v %v] reference=%v threshold=%v",
				i, c.Open, c.High, c.Low, c.Close, reference, minValid,
			)
		}
	}
	return nil
}
