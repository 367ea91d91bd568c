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

// Snapshot persists indicator snapshots for one kind (one collection per
// kind, same shape).
type Snapshot struct {
	collection *mongo.Collection
}

func NewSnapshot(collection *mongo.Collection) *Snapshot {
	return &Snapshot{collection: collection}
}

func (r *Snapshot) Insert(ctx context.Context, s domain.Snapshot) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if _, err := r.collection.InsertOne(ctx, s); err != nil {
		return errors.Wrapf(err, "can't insert %s snapshot", s.Kind)
	}
	return nil
}

// FindLast returns the most recent snapshot for a symbol, ordered by date
// descending, limit 1.
func (r *Snapshot) FindLast(ctx context.Context, symbol string) (*domain.Snapshot, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "date", Value: -1}})
	var s domain.Snapshot
	err := r.collection.FindOne(ctx, bson.M{"symbol": symbol}, opts).Decode(&s)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "can't find last snapshot")
	}
	return &s, nil
}

// Paginate returns snapshots for a symbol not older than the threshold,
// newest first.
func (r *Snapshot) Paginate(
	ctx context.Context,
	symbol string,
	notBefore time.Time,
	limit int,
	offset int,
) ([]domain.Snapshot, error) {
	filter := bson.M{
		"symbol": symbol,
		"date":   bson.M{"$gte": notBefore},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "can't paginate snapshots")
	}
	var rows []domain.Snapshot
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, errors.Wrap(err, "can't decode snapshots")
	}
	return rows, nil
}
