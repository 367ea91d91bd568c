// Package analysis holds the worker-side computations behind each role's
// rpc methods. One Analyzer serves one role; the indicator sets are kept
// deliberately compact and differ per analysis domain.
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/signalworks/ccdumper/domain"
	"github.com/signalworks/ccdumper/rpc"
)

// MethodAnalyze is the one rpc method every role serves.
const MethodAnalyze = "analyze"

// CandleSource is satisfied by the candle cache.
type CandleSource interface {
	GetCandles(
		ctx context.Context,
		symbol string,
		interval domain.Interval,
		limit int,
		since time.Time,
	) ([]domain.Candle, error)
}

// Result is the indicator summary a role computes for one symbol.
type Result struct {
	Symbol     string             `json:"symbol"`
	Trend      string             `json:"trend"`
	Indicators map[string]float64 `json:"indicators"`
	ClosePrice float64            `json:"closePrice"`
	Lookback   string             `json:"lookbackPeriod"`
}

type roleSpec struct {
	interval domain.Interval
	lookback int
	compute  func(candles []domain.Candle) map[string]float64
}

var roleSpecs = map[domain.Role]roleSpec{
	domain.RoleLongTerm: {
		interval: domain.Interval1h,
		lookback: 200,
		compute: func(candles []domain.Candle) map[string]float64 {
			cs := closes(candles)
			support, resistance := SupportResistance(candles)
			return map[string]float64{
				"sma50":      SMA(cs, 50),
				"ema21":      EMA(cs, 21),
				"rsi14":      RSI(cs, 14),
				"support":    support,
				"resistance": resistance,
			}
		},
	},
	domain.RoleSwingTerm: {
		interval: domain.Interval30m,
		lookback: 144,
		compute: func(candles []domain.Candle) map[string]float64 {
			cs := closes(candles)
			upper, middle, lower, width := Bollinger(cs, 20, 2)
			return map[string]float64{
				"sma20":           SMA(cs, 20),
				"ema21":           EMA(cs, 21),
				"rsi14":           RSI(cs, 14),
				"bollingerUpper":  upper,
				"bollingerMiddle": middle,
				"bollingerLower":  lower,
				"bollingerWidth":  width,
			}
		},
	},
	domain.RoleShortTerm: {
		interval: domain.Interval15m,
		lookback: 144,
		compute: func(candles []domain.Candle) map[string]float64 {
			cs := closes(candles)
			upper, middle, lower, width := Bollinger(cs, 10, 2)
			return map[string]float64{
				"rsi9":            RSI(cs, 9),
				"ema8":            EMA(cs, 8),
				"ema21":           EMA(cs, 21),
				"momentum8":       Momentum(cs, 8),
				"roc5":            ROC(cs, 5),
				"bollingerUpper":  upper,
				"bollingerMiddle": middle,
				"bollingerLower":  lower,
				"bollingerWidth":  width,
			}
		},
	},
	domain.RoleMicroTerm: {
		interval: domain.Interval1m,
		lookback: 60,
		compute: func(candles []domain.Candle) map[string]float64 {
			cs := closes(candles)
			return map[string]float64{
				"rsi9":      RSI(cs, 9),
				"momentum8": Momentum(cs, 8),
				"roc5":      ROC(cs, 5),
				"roc10":     ROC(cs, 10),
			}
		},
	},
	domain.RoleSlopeData: {
		interval: domain.Interval5m,
		lookback: 48,
		compute: func(candles []domain.Candle) map[string]float64 {
			cs := closes(candles)
			slope := Slope(cs)
			out := map[string]float64{"slope": slope}
			if last := cs[len(cs)-1]; last != 0 {
				out["slopePercent"] = slope / last * 100
			}
			return out
		},
	},
	domain.RoleVolumeData: {
		interval: domain.Interval1m,
		lookback: 30,
		compute: func(candles []domain.Candle) map[string]float64 {
			volumes := make([]float64, len(candles))
			for i, c := range candles {
				volumes[i] = c.Volume
			}
			return map[string]float64{
				"vwap":        VWAP(candles),
				"volumeSma10": SMA(volumes, 10),
				"volumeSlope": Slope(volumes),
			}
		},
	},
}

// Analyzer computes one role's indicator summary over cached candles.
type Analyzer struct {
	role    domain.Role
	spec    roleSpec
	candles CandleSource
	now     func() time.Time
}

func NewAnalyzer(role domain.Role, candles CandleSource) (*Analyzer, error) {
	spec, ok := roleSpecs[role]
	if !ok {
		return nil, errors.Errorf("no analysis spec for role %s", role)
	}
	return &Analyzer{
		role:    role,
		spec:    spec,
		candles: candles,
		now:     time.Now,
	}, nil
}

// Analyze pulls the role's lookback window through the cache and computes
// the indicator set. Safe for concurrent requests: all state is local.
func (a *Analyzer) Analyze(ctx context.Context, symbol string) (Result, error) {
	step, err := a.spec.interval.Duration()
	if err != nil {
		return Result{}, err
	}
	since := a.now().Add(-step * time.Duration(a.spec.lookback-1))

	candles, err := a.candles.GetCandles(ctx, symbol, a.spec.interval, a.spec.lookback, since)
	if err != nil {
		return Result{}, errors.Wrapf(err, "can't load candles for %s analysis", a.role)
	}
	if len(candles) == 0 {
		return Result{}, errors.Errorf("no candles for %s %s", symbol, a.spec.interval)
	}

	cs := closes(candles)
	return Result{
		Symbol:     symbol,
		Trend:      trend(cs),
		Indicators: a.spec.compute(candles),
		ClosePrice: cs[len(cs)-1],
		Lookback:   fmt.Sprintf("%d candles (%s)", a.spec.lookback, a.spec.interval),
	}, nil
}

// Register mounts the analyzer on its role's rpc server.
func (a *Analyzer) Register(srv *rpc.Server) {
	srv.Register(MethodAnalyze, func(ctx context.Context, symbol string) (interface{}, error) {
		return a.Analyze(ctx, symbol)
	})
}

// trend compares the last close against the window mean.
func trend(cs []float64) string {
	if len(cs) < 2 {
		return "flat"
	}
	mean := SMA(cs, len(cs))
	last := cs[len(cs)-1]
	switch {
	case last > mean*1.001:
		return "up"
	case last < mean*0.999:
		return "down"
	default:
		return "flat"
	}
}
