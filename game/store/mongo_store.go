// game/store/mongo_store.go
package store

import (
	"context"
	"errors"
	"time"

	"github.com/Ftotnem/RPG-SERVICES/shared/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore persists one progression document per player, keyed by UUID.
type MongoStore struct {
	collection *mongo.Collection
}

// NewMongoStore takes a collection from shared/mongodb.Client.
func NewMongoStore(collection *mongo.Collection) *MongoStore {
	return &MongoStore{collection: collection}
}

// Load implements ProgressionStore.
func (ms *MongoStore) Load(ctx context.Context, id uuid.UUID) (*models.Progression, error) {
	var p models.Progression
	err := ms.collection.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistenceErr("load", id.String(), err)
	}
	return &p, nil
}

// Save implements ProgressionStore by replacing the whole document.
func (ms *MongoStore) Save(ctx context.Context, p *models.Progression) error {
	p.UpdatedAt = time.Now().UTC()
	_, err := ms.collection.ReplaceOne(ctx, bson.M{"_id": p.UUID}, p, options.Replace().SetUpsert(true))
	if err != nil {
		return persistenceErr("save", p.UUID, err)
	}
	return nil
}
