package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig configures a [MongoCache].
type MongoConfig struct {
	URI        string
	Database   string // default "elk"
	Collection string // default "layouts"
}

// MongoCache stores entries as documents {_id, data, expires_at}. A TTL
// index on expires_at lets MongoDB purge expired entries; Get also checks
// the expiry because the purge runs only once a minute.
type MongoCache struct {
	client *mongo.Client
	coll   *mongo.Collection
}

type mongoEntry struct {
	Key       string     `bson:"_id"`
	Data      []byte     `bson:"data"`
	ExpiresAt *time.Time `bson:"expires_at,omitempty"`
}

// NewMongoCache connects, pings and ensures the TTL index.
func NewMongoCache(ctx context.Context, cfg MongoConfig) (*MongoCache, error) {
	if cfg.Database == "" {
		cfg.Database = "elk"
	}
	if cfg.Collection == "" {
		cfg.Collection = "layouts"
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping failed: %w", err)
	}

	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo create index: %w", err)
	}
	return &MongoCache{client: client, coll: coll}, nil
}

// Get returns the value for key.
func (c *MongoCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var e mongoEntry
	err := c.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("mongo find: %w", err)
	}
	if e.ExpiresAt != nil && time.Now().After(*e.ExpiresAt) {
		return nil, false, nil
	}
	return e.Data, true, nil
}

// Set upserts the entry for key.
func (c *MongoCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	e := mongoEntry{Key: key, Data: data}
	if ttl > 0 {
		exp := time.Now().Add(ttl).UTC()
		e.ExpiresAt = &exp
	}
	_, err := c.coll.ReplaceOne(ctx, bson.M{"_id": key}, e, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo replace: %w", err)
	}
	return nil
}

// Delete removes key.
func (c *MongoCache) Delete(ctx context.Context, key string) error {
	if _, err := c.coll.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("mongo delete: %w", err)
	}
	return nil
}

// Clear removes every document in the collection.
func (c *MongoCache) Clear(ctx context.Context) error {
	if _, err := c.coll.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("mongo delete: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (c *MongoCache) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.client.Disconnect(ctx)
}

var (
	_ Cache   = (*MongoCache)(nil)
	_ Clearer = (*MongoCache)(nil)
)
