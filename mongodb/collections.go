package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	ClientsCollection           = "oauth_clients"
	IdentityResourcesCollection = "identity_resources"
	ApiScopesCollection         = "api_scopes"
	ApiResourcesCollection      = "api_resources"
	CodesCollection             = "oauth_auth_codes"
	RefreshTokensCollection     = "oauth_refresh_tokens"
	ConsentsCollection          = "oauth_consents"
)

// EnsureIndexes creates the unique handle indexes and the TTL indexes that
// expire grant documents shortly after they stop being redeemable. The
// grace period keeps expired documents queryable long enough for consistent
// invalid_grant answers.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	const grace = int32((24 * time.Hour) / time.Second)

	grantIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "handle_hash", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(grace),
		},
	}
	for _, name := range []string{CodesCollection, RefreshTokensCollection} {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, grantIndexes); err != nil {
			return err
		}
	}

	_, err := db.Collection(ConsentsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "subject_id", Value: 1}, {Key: "client_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
