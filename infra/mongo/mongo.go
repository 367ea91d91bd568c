package mongo

import (
	"context"
	"sync"
	"time"

	"github.com/AlekSi/pointer"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/signalworks/ccdumper/infra"
)

// Provider hands out the process-wide mongo client. Connection happens
// lazily, exactly once: the first caller pays the cost, every concurrent
// caller gets the same in-flight result.
type Provider struct {
	conf infra.MongoConfig

	once   sync.Once
	client *mongo.Client
	err    error
}

func NewProvider(conf infra.MongoConfig) *Provider {
	return &Provider{conf: conf}
}

// Client connects on first use and returns the shared client afterwards.
func (p *Provider) Client(ctx context.Context) (*mongo.Client, error) {
	p.once.Do(func() {
		timeout := time.Duration(p.conf.TimeoutSec) * time.Second
		opts := options.Client().
			ApplyURI(p.conf.ConnectionURL).
			SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
			SetMaxPoolSize(100).
			SetConnectTimeout(timeout)

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		client, err := mongo.Connect(ctx, opts)
		if err != nil {
			p.err = errors.Wrap(err, "can't connect to mongo")
			return
		}
		log.WithField("database", p.conf.DatabaseName).Info("connected to mongo")
		p.client = client
	})
	return p.client, p.err
}

// CandleCollection returns the candle cache collection, creating its
// compound index on first use.
func (p *Provider) CandleCollection(ctx context.Context) (*mongo.Collection, error) {
	client, err := p.Client(ctx)
	if err != nil {
		return nil, err
	}
	coll := client.Database(p.conf.DatabaseName).Collection(p.conf.CandleCollectionName)
	createIndex(ctx, coll, "candle_key", bson.D{
		{Key: "symbol", Value: 1},
		{Key: "interval", Value: 1},
		{Key: "timestamp", Value: -1},
	})
	return coll, nil
}

// SnapshotCollection returns the per-kind indicator snapshot collection.
func (p *Provider) SnapshotCollection(ctx context.Context, kind string) (*mongo.Collection, error) {
	client, err := p.Client(ctx)
	if err != nil {
		return nil, err
	}
	coll := client.Database(p.conf.DatabaseName).Collection(kind + "-items")
	createIndex(ctx, coll, "snapshot_key", bson.D{
		{Key: "symbol", Value: 1},
		{Key: "date", Value: -1},
	})
	return coll, nil
}

func createIndex(ctx context.Context, coll *mongo.Collection, name string, keys bson.D) {
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: keys,
		Options: &options.IndexOptions{
			Name: pointer.ToString(name),
		},
	})
	if err != nil {
		log.WithField("collection", coll.Name()).
			Warnf("can't ensure index %s: %v", name, err)
	}
}
