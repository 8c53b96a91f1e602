package inference

import (
	"context"
	"fmt"

	"github.com/linuxmatters/mixdesk/internal/fault"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Default MongoDB location for audit records
const (
	DefaultDatabase   = "mixdesk"
	DefaultCollection = "inference_log"
)

// MongoWriter inserts records into a MongoDB collection.
type MongoWriter struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoWriter connects to uri. Empty database or collection names take
// the defaults.
func NewMongoWriter(ctx context.Context, uri, database, collection string) (*MongoWriter, error) {
	if database == "" {
		database = DefaultDatabase
	}
	if collection == "" {
		collection = DefaultCollection
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetAppName("mixdesk"))
	if err != nil {
		return nil, fault.Unavailable("mongodb", err)
	}
	return &MongoWriter{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}, nil
}

func (w *MongoWriter) Write(ctx context.Context, rec Record) error {
	if _, err := w.collection.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("insert inference record: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (w *MongoWriter) Close(ctx context.Context) error {
	return w.client.Disconnect(ctx)
}
