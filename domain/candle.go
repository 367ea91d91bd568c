package domain

import (
	"math"
	"time"

	"github.com/pkg/errors"
)

// Interval is an exchange kline size.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval3m  Interval = "3m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval2h  Interval = "2h"
	Interval4h  Interval = "4h"
	Interval6h  Interval = "6h"
	Interval8h  Interval = "8h"
)

var intervalDurations = map[Interval]time.Duration{
	Interval1m:  time.Minute,
	Interval3m:  3 * time.Minute,
	Interval5m:  5 * time.Minute,
	Interval15m: 15 * time.Minute,
	Interval30m: 30 * time.Minute,
	Interval1h:  time.Hour,
	Interval2h:  2 * time.Hour,
	Interval4h:  4 * time.Hour,
	Interval6h:  6 * time.Hour,
	Interval8h:  8 * time.Hour,
}

// Duration returns the wall-clock span of one candle of this interval.
func (i Interval) Duration() (time.Duration, error) {
	d, ok := intervalDurations[i]
	if !ok {
		return 0, errors.Errorf("unknown candle interval %q", i)
	}
	return d, nil
}

func (i Interval) String() string {
	return string(i)
}

// Candle is one OHLCV bar. Timestamp is the bar open time in unix
// milliseconds, matching the exchange wire format.
type Candle struct {
	Symbol    string   `json:"symbol,omitempty" bson:"symbol"`
	Interval  Interval `json:"interval,omitempty" bson:"interval"`
	Timestamp int64    `json:"timestamp" bson:"timestamp"`
	Open      float64  `json:"open" bson:"open"`
	High      float64  `json:"high" bson:"high"`
	Low       float64  `json:"low" bson:"low"`
	Close     float64  `json:"close" bson:"close"`
	Volume    float64  `json:"volume" bson:"volume"`
}

// Finite reports whether every numeric field holds a real number.
func (c Candle) Finite() bool {
	for _, v := range []float64{
		c.Open, c.High, c.Low, c.Close, c.Volume, float64(c.Timestamp),
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Positive reports whether OHLC are all positive and volume non-negative.
func (c Candle) Positive() bool {
	return c.Open > 0 && c.High > 0 && c.Low > 0 && c.Close > 0 && c.Volume >= 0
}

// TypicalPrice is (high + low + close) / 3, the price used for VWAP.
func (c Candle) TypicalPrice() float64 {
	return (c.High + c.Low + c.Close) / 3
}

// Time converts the millisecond open time into time.Time.
func (c Candle) Time() time.Time {
	return time.UnixMilli(c.Timestamp)
}
