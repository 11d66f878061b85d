package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/xmarks/internal/config"
)

// MongoSink upserts exported posts into a MongoDB collection keyed by post id.
type MongoSink struct {
	client     *mongo.Client
	collection *mongo.Collection
	timeout    time.Duration
	mu         sync.Mutex
	count      int
	logger     *slog.Logger
}

// NewMongoSink connects to MongoDB and verifies the connection.
func NewMongoSink(ctx context.Context, cfg config.MongoConfig, logger *slog.Logger) (*MongoSink, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	return &MongoSink{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		timeout:    cfg.Timeout,
		logger:     logger.With("component", "mongo_sink"),
	}, nil
}

func (s *MongoSink) Name() string { return "mongodb" }

// Store replaces or inserts one document per post.
func (s *MongoSink) Store(ctx context.Context, batch Batch) (string, error) {
	if len(batch.Posts) == 0 {
		return s.collection.Name(), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	models := make([]mongo.WriteModel, len(batch.Posts))
	for i := range batch.Posts {
		p := batch.Posts[i]
		models[i] = mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": p.ID}).
			SetReplacement(p).
			SetUpsert(true)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return "", fmt.Errorf("mongodb bulk write: %w", err)
	}

	s.count += len(batch.Posts)
	s.logger.Info("posts upserted",
		"collection", s.collection.Name(),
		"upserted", res.UpsertedCount,
		"modified", res.ModifiedCount,
		"total", s.count,
	)
	return s.collection.Database().Name() + "." + s.collection.Name(), nil
}

func (s *MongoSink) Close(ctx context.Context) error {
	s.logger.Info("mongodb sink closing", "total_posts", s.count)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
