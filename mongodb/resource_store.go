package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/halcyon-auth/halcyon/domain"
)

// ResourceStore resolves identity and API resource definitions from
// MongoDB. Only enabled definitions are returned.
type ResourceStore struct {
	identity  *mongo.Collection
	apiScopes *mongo.Collection
	apiRes    *mongo.Collection
}

func NewResourceStore(db *mongo.Database) *ResourceStore {
	return &ResourceStore{
		identity:  db.Collection(IdentityResourcesCollection),
		apiScopes: db.Collection(ApiScopesCollection),
		apiRes:    db.Collection(ApiResourcesCollection),
	}
}

func (s *ResourceStore) FindIdentityResourcesByScopeName(ctx context.Context, scopeNames []string) ([]domain.IdentityResource, error) {
	var out []domain.IdentityResource
	err := s.findAll(ctx, s.identity, bson.M{"name": bson.M{"$in": scopeNames}, "enabled": true}, &out)
	return out, err
}

func (s *ResourceStore) FindApiScopesByName(ctx context.Context, scopeNames []string) ([]domain.ApiScope, error) {
	var out []domain.ApiScope
	err := s.findAll(ctx, s.apiScopes, bson.M{"name": bson.M{"$in": scopeNames}, "enabled": true}, &out)
	return out, err
}

func (s *ResourceStore) FindApiResourcesByScopeName(ctx context.Context, scopeNames []string) ([]domain.ApiResource, error) {
	var out []domain.ApiResource
	err := s.findAll(ctx, s.apiRes, bson.M{"scopes": bson.M{"$in": scopeNames}, "enabled": true}, &out)
	return out, err
}

func (s *ResourceStore) GetAllResources(ctx context.Context) (*domain.Resources, error) {
	all := &domain.Resources{}
	enabled := bson.M{"enabled": true}
	if err := s.findAll(ctx, s.identity, enabled, &all.IdentityResources); err != nil {
		return nil, err
	}
	if err := s.findAll(ctx, s.apiScopes, enabled, &all.ApiScopes); err != nil {
		return nil, err
	}
	if err := s.findAll(ctx, s.apiRes, enabled, &all.ApiResources); err != nil {
		return nil, err
	}
	return all, nil
}

func (s *ResourceStore) findAll(ctx context.Context, coll *mongo.Collection, filter bson.M, out interface{}) error {
	cursor, err := coll.Find(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", coll.Name(), err)
	}
	if err := cursor.All(ctx, out); err != nil {
		return fmt.Errorf("failed to decode %s documents: %w", coll.Name(), err)
	}
	return nil
}
