// Package exchange is the upstream market-data client. It speaks the
// Binance spot REST API directly: klines for candles, exchange-info for
// per-market precision rules.
package exchange

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/go-http-utils/headers"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/signalworks/ccdumper/domain"
	"github.com/signalworks/ccdumper/infra"
)

const (
	pathKlines       = "/api/v3/klines"
	pathExchangeInfo = "/api/v3/exchangeInfo"

	defaultTimeout = 30 * time.Second
)

type marketInfo struct {
	tickSize decimal.Decimal
	stepSize decimal.Decimal
}

// Client is the process-wide exchange connection. Market metadata is
// loaded lazily and cached on success; a failed load is retried by the
// next caller instead of being remembered.
type Client struct {
	cli  *resty.Client
	conf infra.ExchangeConfig
	now  func() time.Time

	marketsMu sync.Mutex
	markets   map[string]marketInfo
}

func NewClient(conf infra.ExchangeConfig) *Client {
	cli := resty.New()
	cli.SetBaseURL(conf.BaseURL)
	cli.SetTimeout(defaultTimeout)
	cli.SetHeader(headers.Accept, "application/json")

	return &Client{
		cli:  cli,
		conf: conf,
		now:  time.Now,
	}
}

// FetchCandles pulls klines for the window starting at since. Rows outside
// [since, now] are dropped: the exchange occasionally pads the response
// with bars from outside the requested range.
func (c *Client) FetchCandles(
	ctx context.Context,
	symbol string,
	interval domain.Interval,
	since time.Time,
	limit int,
) ([]domain.Candle, error) {
	res, err := c.cli.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":    symbol,
			"interval":  interval.String(),
			"startTime": strconv.FormatInt(since.UnixMilli(), 10),
			"limit":     strconv.Itoa(limit),
		}).
		Get(pathKlines)
	if err != nil {
		return nil, errors.Wrapf(err, "can't fetch klines for %s %s", symbol, interval)
	}
	if res.IsError() {
		return nil, errors.Errorf(
			"klines request for %s %s failed with status %d: %s",
			symbol, interval, res.StatusCode(), res.String(),
		)
	}

	// Kline rows mix JSON numbers (timestamps) with quoted decimal strings
	// (prices, volume), so decoding goes through interface{}.
	var raw [][]interface{}
	if err := json.Unmarshal(res.Body(), &raw); err != nil {
		return nil, errors.Wrap(err, "can't decode klines payload")
	}

	now := c.now()
	candles := make([]domain.Candle, 0, len(raw))
	for i, row := range raw {
		cd, err := parseKline(row)
		if err != nil {
			return nil, errors.Wrapf(err, "kline row %d", i)
		}
		if cd.Timestamp < since.UnixMilli() || cd.Timestamp > now.UnixMilli() {
			continue
		}
		candles = append(candles, cd)
	}

	if len(candles) < limit {
		log.WithField("symbol", symbol).
			WithField("interval", interval).
			Debugf("expected %d candles, got %d", limit, len(candles))
	}
	return candles, nil
}

// Candles returns the last limit bars of the interval, going backwards
// from now.
func (c *Client) Candles(
	ctx context.Context,
	symbol string,
	interval domain.Interval,
	limit int,
) ([]domain.Candle, error) {
	step, err := interval.Duration()
	if err != nil {
		return nil, err
	}
	since := c.now().Add(-step * time.Duration(limit-1))
	return c.FetchCandles(ctx, symbol, interval, since, limit)
}

// MarketPrice is the VWAP of typical prices over the recent 1m candles.
// Zero total volume falls back to the plain mean of closes.
func (c *Client) MarketPrice(ctx context.Context, symbol string) (float64, error) {
	candles, err := c.Candles(ctx, symbol, domain.Interval1m, c.conf.AvgPriceCandleCount)
	if err != nil {
		return 0, err
	}
	if len(candles) == 0 {
		return 0, errors.Errorf("no candle data for symbol %s", symbol)
	}

	var sumPV, totalVolume float64
	for _, cd := range candles {
		sumPV += cd.TypicalPrice() * cd.Volume
		totalVolume += cd.Volume
	}
	if totalVolume == 0 {
		var sum float64
		for _, cd := range candles {
			sum += cd.Close
		}
		return sum / float64(len(candles)), nil
	}
	return sumPV / totalVolume, nil
}

// FormatPrice rounds a price to the market's tick size.
func (c *Client) FormatPrice(ctx context.Context, symbol string, price float64) (string, error) {
	info, err := c.market(ctx, symbol)
	if err != nil {
		return "", err
	}
	return roundToStep(price, info.tickSize), nil
}

// FormatQuantity rounds a quantity to the market's lot step size.
func (c *Client) FormatQuantity(ctx context.Context, symbol string, qty float64) (string, error) {
	info, err := c.market(ctx, symbol)
	if err != nil {
		return "", err
	}
	return roundToStep(qty, info.stepSize), nil
}

func roundToStep(v float64, step decimal.Decimal) string {
	if step.IsZero() {
		return decimal.NewFromFloat(v).String()
	}
	d := decimal.NewFromFloat(v)
	return d.Div(step).Round(0).Mul(step).String()
}

func (c *Client) market(ctx context.Context, symbol string) (marketInfo, error) {
	c.marketsMu.Lock()
	defer c.marketsMu.Unlock()

	if c.markets == nil {
		markets, err := c.loadMarkets(ctx)
		if err != nil {
			return marketInfo{}, err
		}
		c.markets = markets
	}
	info, ok := c.markets[symbol]
	if !ok {
		return marketInfo{}, errors.Errorf("unknown market %s", symbol)
	}
	return info, nil
}

func (c *Client) loadMarkets(ctx context.Context) (map[string]marketInfo, error) {
	res, err := c.cli.R().SetContext(ctx).Get(pathExchangeInfo)
	if err != nil {
		return nil, errors.Wrap(err, "can't fetch exchange info")
	}
	if res.IsError() {
		return nil, errors.Errorf(
			"exchange info request failed with status %d", res.StatusCode(),
		)
	}

	var payload struct {
		Symbols []struct {
			Symbol  string `json:"symbol"`
			Filters []struct {
				FilterType string `json:"filterType"`
				TickSize   string `json:"tickSize"`
				StepSize   string `json:"stepSize"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(res.Body(), &payload); err != nil {
		return nil, errors.Wrap(err, "can't decode exchange info")
	}

	markets := make(map[string]marketInfo, len(payload.Symbols))
	for _, s := range payload.Symbols {
		var info marketInfo
		for _, f := range s.Filters {
			switch f.FilterType {
			case "PRICE_FILTER":
				info.tickSize, _ = decimal.NewFromString(f.TickSize)
			case "LOT_SIZE":
				info.stepSize, _ = decimal.NewFromString(f.StepSize)
			}
		}
		markets[s.Symbol] = info
	}
	log.WithField("markets", len(markets)).Info("loaded exchange markets")
	return markets, nil
}

func parseKline(row []interface{}) (domain.Candle, error) {
	if len(row) < 6 {
		return domain.Candle{}, errors.Errorf("kline has %d fields, want at least 6", len(row))
	}
	fields := make([]float64, 6)
	for i := 0; i < 6; i++ {
		v, err := toFloat(row[i])
		if err != nil {
			return domain.Candle{}, errors.Wrapf(err, "bad kline field %d", i)
		}
		fields[i] = v
	}
	return domain.Candle{
		Timestamp: int64(fields[0]),
		Open:      fields[1],
		High:      fields[2],
		Low:       fields[3],
		Close:     fields[4],
		Volume:    fields[5],
	}, nil
}

func toFloat(v interface{}) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case string:
		return strconv.ParseFloat(t, 64)
	default:
		return 0, errors.Errorf("unexpected kline value %v (%T)", v, v)
	}
}
