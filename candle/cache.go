// Package candle answers "give me N candles of interval I for symbol S
// since time T" with a cache-aside over the persistent store: cached rows
// win, the upstream exchange fills the gaps, fresh data is validated and
// backfilled idempotently.
package candle

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/signalworks/ccdumper/domain"
)

// Store is the persisted candle collection.
type Store interface {
	// FindRange returns rows matching (symbol, interval, timestamp >= since),
	// newest first, capped at limit.
	FindRange(
		ctx context.Context,
		symbol string,
		interval domain.Interval,
		since time.Time,
		limit int,
	) ([]domain.Candle, error)

	Exists(
		ctx context.Context,
		symbol string,
		interval domain.Interval,
		timestamp int64,
	) (bool, error)

	Insert(ctx context.Context, c domain.Candle) error
}

// Fetcher is the upstream exchange.
type Fetcher interface {
	FetchCandles(
		ctx context.Context,
		symbol string,
		interval domain.Interval,
		since time.Time,
		limit int,
	) ([]domain.Candle, error)
}

type CacheConfig struct {
	RetryCount          int
	RetryDelay          time.Duration
	MinCandlesForMedian int
	AnomalyThreshold    float64
}

type Cache struct {
	store   Store
	fetcher Fetcher
	conf    CacheConfig
	sleep   func(ctx context.Context, d time.Duration)
}

func NewCache(store Store, fetcher Fetcher, conf CacheConfig) *Cache {
	// A misconfigured retry count must never skip the upstream entirely.
	if conf.RetryCount < 1 {
		conf.RetryCount = 1
	}
	return &Cache{
		store:   store,
		fetcher: fetcher,
		conf:    conf,
		sleep:   sleepCtx,
	}
}

// GetCandles prefers persisted rows and consults the exchange only when
// the store can't satisfy the limit. Fresh data is validated, backfilled,
// and returned as fetched (not re-queried from the store).
func (c *Cache) GetCandles(
	ctx context.Context,
	symbol string,
	interval domain.Interval,
	limit int,
	since time.Time,
) ([]domain.Candle, error) {
	cached, err := c.store.FindRange(ctx, symbol, interval, since, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "can't query cached candles for %s %s", symbol, interval)
	}

	if len(cached) >= limit {
		sort.Slice(cached, func(i, j int) bool {
			return cached[i].Timestamp < cached[j].Timestamp
		})
		log.WithField("symbol", symbol).
			WithField("interval", interval).
			WithField("count", limit).
			Debug("serving candles from store")
		return cached[:limit], nil
	}

	fresh, err := c.fetchValidated(ctx, symbol, interval, since, limit)
	if err != nil {
		return nil, err
	}

	c.backfill(ctx, symbol, interval, fresh)

	return fresh, nil
}

// fetchValidated retries the upstream call with a fixed delay; an attempt
// only counts as successful once its batch passes validation. When every
// attempt fails the last error propagates, there is no silent
// empty-result fallback.
func (c *Cache) fetchValidated(
	ctx context.Context,
	symbol string,
	interval domain.Interval,
	since time.Time,
	limit int,
) ([]domain.Candle, error) {
	var lastErr error
	for attempt := 0; attempt != c.conf.RetryCount; attempt++ {
		if attempt > 0 {
			c.sleep(ctx, c.conf.RetryDelay)
			if ctx.Err() != nil {
				break
			}
		}

		candles, err := c.fetcher.FetchCandles(ctx, symbol, interval, since, limit)
		if err == nil {
			err = validateBatch(candles, c.conf.MinCandlesForMedian, c.conf.AnomalyThreshold)
		}
		if err != nil {
			log.WithField("symbol", symbol).
				WithField("interval", interval).
				WithField("attempt", attempt+1).
				Warnf("candle fetch attempt failed: %v", err)
			lastErr = err
			continue
		}
		return candles, nil
	}

	return nil, errors.Wrapf(
		domain.ErrUpstreamExhausted,
		"%d attempts for %s %s: %v", c.conf.RetryCount, symbol, interval, lastErr,
	)
}

// backfill upserts fresh candles keyed by (symbol, interval, timestamp).
// Existence is checked first so repeated backfills never duplicate rows or
// overwrite existing ones. Per-candle failures are logged and skipped; the
// validated in-memory batch is still good for the caller.
func (c *Cache) backfill(
	ctx context.Context,
	symbol string,
	interval domain.Interval,
	candles []domain.Candle,
) {
	for _, cd := range candles {
		cd.Symbol = symbol
		cd.Interval = interval

		exists, err := c.store.Exists(ctx, symbol, interval, cd.Timestamp)
		if err != nil {
			log.WithField("symbol", symbol).
				WithField("timestamp", cd.Timestamp).
				Errorf("can't check candle existence: %v", err)
			continue
		}
		if exists {
			continue
		}
		if err := c.store.Insert(ctx, cd); err != nil {
			log.WithField("symbol", symbol).
				WithField("timestamp", cd.Timestamp).
				Errorf("can't save candle: %v", err)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
