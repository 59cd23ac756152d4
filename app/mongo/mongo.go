package mongodb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/mjRam27/Explorix/config"
)

// Init connects to MongoDB, which holds the append-only conversation log.
func Init(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*mongo.Client, error) {
	uri := cfg.Repositories.Mongo.URI
	if uri == "" {
		return nil, fmt.Errorf("mongo configuration is missing or invalid")
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	logger.Info("Mongo connection established", slog.String("db", cfg.Repositories.Mongo.DB))
	return client, nil
}

// Database returns the application database handle.
func Database(client *mongo.Client, cfg *config.Config) *mongo.Database {
	return client.Database(cfg.Repositories.Mongo.DB)
}
