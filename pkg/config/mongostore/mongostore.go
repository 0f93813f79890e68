// Package mongostore keeps fleet configuration in MongoDB, for fleets whose
// inventory is managed centrally rather than per operator machine.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/andrej220/fleetrun/pkg/config/configstore"
)

var _ configstore.ConfigStore = (*MongoStore)(nil)

const connectTimeout = 10 * time.Second

type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	// ID is the config document id, typically the fleet name.
	ID string
}

func New(uri, dbName, collName, id string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}

	return &MongoStore{
		client:     client,
		collection: client.Database(dbName).Collection(collName),
		ID:         id,
	}, nil
}

func (m *MongoStore) Load(out any) error {
	if out == nil {
		return fmt.Errorf("load: output parameter must not be nil")
	}
	res := m.collection.FindOne(context.Background(), bson.M{"_id": m.ID})
	if err := res.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("load: fleet config %q not found", m.ID)
		}
		return fmt.Errorf("load: %w", err)
	}
	if err := res.Decode(out); err != nil {
		return fmt.Errorf("load: decode config %q: %w", m.ID, err)
	}
	return nil
}

func (m *MongoStore) Save(in any) error {
	if in == nil {
		return fmt.Errorf("save: input parameter must not be nil")
	}
	_, err := m.collection.ReplaceOne(
		context.Background(),
		bson.M{"_id": m.ID},
		in,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

func (m *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}
