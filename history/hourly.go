package history

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/signalworks/ccdumper/domain"
)

// HourlyKind is the report key the hourly candle history is served under.
const HourlyKind = "hour"

// recentHourCandles is how many hourly bars the report covers.
const recentHourCandles = 6

// MarketSource provides recent candles plus the market-precision
// formatting used to render them.
type MarketSource interface {
	Candles(
		ctx context.Context,
		symbol string,
		interval domain.Interval,
		limit int,
	) ([]domain.Candle, error)
	FormatPrice(ctx context.Context, symbol string, price float64) (string, error)
	FormatQuantity(ctx context.Context, symbol string, qty float64) (string, error)
}

// HourlyService renders the recent hourly candles as a markdown section,
// prices rounded to the market tick size and volume to the lot step.
type HourlyService struct {
	markets MarketSource
}

func NewHourlyService(markets MarketSource) *HourlyService {
	return &HourlyService{markets: markets}
}

// Report builds the hourly candle history for a symbol, or "" when the
// exchange has no bars yet.
func (s *HourlyService) Report(ctx context.Context, symbol string) (string, error) {
	candles, err := s.markets.Candles(ctx, symbol, domain.Interval1h, recentHourCandles)
	if err != nil {
		return "", errors.Wrapf(err, "can't fetch hourly candles for %s", symbol)
	}
	if len(candles) == 0 {
		return "", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Hourly Candles History (Last %d)\n", recentHourCandles)

	for i, cd := range candles {
		open, err := s.markets.FormatPrice(ctx, symbol, cd.Open)
		if err != nil {
			return "", errors.Wrap(err, "can't format open price")
		}
		high, err := s.markets.FormatPrice(ctx, symbol, cd.High)
		if err != nil {
			return "", errors.Wrap(err, "can't format high price")
		}
		low, err := s.markets.FormatPrice(ctx, symbol, cd.Low)
		if err != nil {
			return "", errors.Wrap(err, "can't format low price")
		}
		closep, err := s.markets.FormatPrice(ctx, symbol, cd.Close)
		if err != nil {
			return "", errors.Wrap(err, "can't format close price")
		}
		volume, err := s.markets.FormatQuantity(ctx, symbol, cd.Volume)
		if err != nil {
			return "", errors.Wrap(err, "can't format volume")
		}

		var volatility float64
		if cd.Close != 0 {
			volatility = (cd.High - cd.Low) / cd.Close * 100
		}
		var bodyPercent float64
		if candleRange := cd.High - cd.Low; candleRange > 0 {
			bodyPercent = math.Abs(cd.Close-cd.Open) / candleRange * 100
		}

		fmt.Fprintf(&b, "### 1h Candle %d (%s)\n", i+1, candleColor(cd))
		fmt.Fprintf(&b, "- **Time**: %s\n", cd.Time().UTC().Format(time.RFC3339))
		fmt.Fprintf(&b, "- **Open**: %s USD\n", open)
		fmt.Fprintf(&b, "- **High**: %s USD\n", high)
		fmt.Fprintf(&b, "- **Low**: %s USD\n", low)
		fmt.Fprintf(&b, "- **Close**: %s USD\n", closep)
		fmt.Fprintf(&b, "- **Volume**: %s\n", volume)
		fmt.Fprintf(&b, "- **1h Volatility**: %.2f%%\n", volatility)
		fmt.Fprintf(&b, "- **Body Size**: %.1f%%\n\n", bodyPercent)
	}

	return b.String(), nil
}

func candleColor(cd domain.Candle) string {
	switch {
	case cd.Close > cd.Open:
		return "Green"
	case cd.Close < cd.Open:
		return "Red"
	default:
		return "Doji"
	}
}
