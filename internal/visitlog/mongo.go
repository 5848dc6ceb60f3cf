package visitlog

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	apperrors "github.com/kimhsiao/gosauna/backend/internal/errors"
	"github.com/kimhsiao/gosauna/backend/internal/models"
)

// MongoSortField orders tracking events newest first.
const MongoSortField = "timestamp"

// Mongo reads tracking events from a MongoDB collection.
type Mongo struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// MongoOptions configures NewMongo.
type MongoOptions struct {
	URI        string
	Database   string
	Collection string
}

// NewMongo connects to MongoDB and verifies the connection.
func NewMongo(ctx context.Context, opts MongoOptions) (*Mongo, error) {
	clientOptions := options.Client().ApplyURI(opts.URI)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to connect to MongoDB", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "MongoDB ping failed", err)
	}
	return &Mongo{
		client:     client,
		collection: client.Database(opts.Database).Collection(opts.Collection),
	}, nil
}

func (m *Mongo) Fetch(ctx context.Context, limit int) ([]models.VisitLogEntry, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: MongoSortField, Value: -1}})
	if limit > 0 {
		findOptions.SetLimit(int64(limit))
	}

	cursor, err := m.collection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRemoteUnavailable, "failed to query visit logs", err)
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRemoteDecode, "failed to decode visit logs", err)
	}

	entries := make([]models.VisitLogEntry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, entryFromDocument(doc))
	}
	return entries, nil
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// entryFromDocument flattens driver-specific id values to strings so actor
// keys compare by value. Dates stay primitive.DateTime.
func entryFromDocument(doc bson.M) models.VisitLogEntry {
	entry := make(models.VisitLogEntry, len(doc))
	for k, v := range doc {
		if oid, ok := v.(primitive.ObjectID); ok {
			entry[k] = oid.Hex()
			continue
		}
		entry[k] = v
	}
	return entry
}
