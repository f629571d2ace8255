// Package mongodb persists clients, resources, grants and consent decisions
// in MongoDB. Single-use grant state is consumed through FindOneAndUpdate so
// redemption stays atomic across replicas.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"

	"github.com/halcyon-auth/halcyon/log"
)

// Connect establishes an instrumented MongoDB connection and verifies it
// with a primary ping. The returned close function disconnects the client.
func Connect(ctx context.Context, uri, dbName string, logger log.Logger) (*mongo.Database, func(context.Context) error, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetMonitor(otelmongo.NewMonitor())

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("failed to ping mongodb primary: %w", err)
	}

	logger.Info(ctx, "mongodb connection established", map[string]interface{}{"database": dbName})
	return client.Database(dbName), client.Disconnect, nil
}
