package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/zenobundle/zenobundle-gobackend/internal/logging"
)

// Connect initializes the MongoDB connection using the provided URI and
// verifies it with a ping. The caller owns the returned client's lifecycle
// (disconnect in main's defer).
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, err
	}

	logging.Logger.Info("Connected to MongoDB")
	return client, nil
}
