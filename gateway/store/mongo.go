// MongoDB Store implementation (store_type=mongodb), persisting Response
// documents for durability across restarts in production deployments.
package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/masaicai/openresponses/gateway/responses"
)

// MongoStore is a MongoDB implementation of Store.
type MongoStore struct {
	collection *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

// responseDocument is the MongoDB document representation of a persisted
// Response, wrapping the wire struct alongside its original input items.
type responseDocument struct {
	ID         string                `bson:"_id"`
	Response   *responses.Response   `bson:"response"`
	InputItems []responses.InputItem `bson:"input_items,omitempty"`
}

// NewMongoStore creates a new MongoDB-backed store using the provided
// collection, which should be from a connected mongo.Client
// (mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))).
func NewMongoStore(collection *mongo.Collection) *MongoStore {
	return &MongoStore{collection: collection}
}

func (s *MongoStore) Save(ctx context.Context, resp *responses.Response, inputItems []responses.InputItem) error {
	doc := responseDocument{ID: resp.ID, Response: resp, InputItems: inputItems}
	opts := options.Replace().SetUpsert(true)
	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": resp.ID}, doc, opts)
	if err != nil {
		return fmt.Errorf("mongodb save response %q: %w", resp.ID, err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*responses.Response, error) {
	var doc responseDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mongodb get response %q: %w", id, err)
	}
	return doc.Response, nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("mongodb delete response %q: %w", id, err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) ListInputItems(ctx context.Context, id string) ([]responses.InputItem, error) {
	var doc responseDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mongodb get input items %q: %w", id, err)
	}
	return doc.InputItems, nil
}
