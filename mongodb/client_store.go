package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/halcyon-auth/halcyon/domain"
)

// ClientStore resolves registered clients from MongoDB.
type ClientStore struct {
	clients *mongo.Collection
}

func NewClientStore(db *mongo.Database) *ClientStore {
	return &ClientStore{clients: db.Collection(ClientsCollection)}
}

// FindEnabledClientByID implements domain.ClientStore. Disabled and unknown
// clients both resolve to nil.
func (s *ClientStore) FindEnabledClientByID(ctx context.Context, clientID string) (*domain.Client, error) {
	var client domain.Client
	err := s.clients.FindOne(ctx, bson.M{"client_id": clientID, "enabled": true}).Decode(&client)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up client: %w", err)
	}
	return &client, nil
}

// Save upserts a client registration.
func (s *ClientStore) Save(ctx context.Context, client *domain.Client) error {
	now := time.Now().UTC()
	if client.CreatedAt.IsZero() {
		client.CreatedAt = now
	}
	client.UpdatedAt = now

	_, err := s.clients.ReplaceOne(ctx, bson.M{"client_id": client.ID}, client,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save client: %w", err)
	}
	return nil
}
