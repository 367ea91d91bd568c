package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/signalworks/ccdumper/domain"
)

// Candle persists raw exchange candles keyed by (symbol, interval,
// timestamp).
type Candle struct {
	collection *mongo.Collection
}

func NewCandle(collection *mongo.Collection) *Candle {
	return &Candle{collection: collection}
}

// FindRange returns rows matching (symbol, interval, timestamp >= since),
// newest first, capped at limit.
func (r *Candle) FindRange(
	ctx context.Context,
	symbol string,
	interval domain.Interval,
	since time.Time,
	limit int,
) ([]domain.Candle, error) {
	filter := bson.M{
		"symbol":    symbol,
		"interval":  interval,
		"timestamp": bson.M{"$gte": since.UnixMilli()},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "can't find candles")
	}
	var candles []domain.Candle
	if err := cursor.All(ctx, &candles); err != nil {
		return nil, errors.Wrap(err, "can't decode candles")
	}
	return candles, nil
}

// Exists reports whether the exact candle row is already stored.
func (r *Candle) Exists(
	ctx context.Context,
	symbol string,
	interval domain.Interval,
	timestamp int64,
) (bool, error) {
	filter := bson.M{
		"symbol":    symbol,
		"interval":  interval,
		"timestamp": timestamp,
	}
	err := r.collection.FindOne(ctx, filter).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "can't check candle existence")
	}
	return true, nil
}

func (r *Candle) Insert(ctx context.Context, c domain.Candle) error {
	if _, err := r.collection.InsertOne(ctx, c); err != nil {
		return errors.Wrap(err, "can't insert candle")
	}
	return nil
}
