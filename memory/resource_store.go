package memory

import (
	"context"

	"github.com/halcyon-auth/halcyon/domain"
	serrors "github.com/halcyon-auth/halcyon/errors"
	"github.com/halcyon-auth/halcyon/internal/param"
)

// ResourceStore is an in-memory domain.ResourceStore.
type ResourceStore struct {
	identityResources []domain.IdentityResource
	apiResources      []domain.ApiResource
	apiScopes         []domain.ApiScope
}

// NewResourceStore builds a store from resource definitions. Duplicate names
// within a category are a configuration error and abort construction.
func NewResourceStore(
	identityResources []domain.IdentityResource,
	apiResources []domain.ApiResource,
	apiScopes []domain.ApiScope,
) (*ResourceStore, error) {
	seen := map[string]bool{}
	for _, r := range identityResources {
		if seen[r.Name] {
			return nil, serrors.NewConfigError("identity resources must not contain duplicate names: %s", r.Name)
		}
		seen[r.Name] = true
	}

	seen = map[string]bool{}
	for _, r := range apiResources {
		if seen[r.Name] {
			return nil, serrors.NewConfigError("api resources must not contain duplicate names: %s", r.Name)
		}
		seen[r.Name] = true
	}

	seen = map[string]bool{}
	for _, s := range apiScopes {
		if seen[s.Name] {
			return nil, serrors.NewConfigError("api scopes must not contain duplicate names: %s", s.Name)
		}
		seen[s.Name] = true
	}

	return &ResourceStore{
		identityResources: identityResources,
		apiResources:      apiResources,
		apiScopes:         apiScopes,
	}, nil
}

// FindIdentityResourcesByScopeName implements domain.ResourceStore.
func (s *ResourceStore) FindIdentityResourcesByScopeName(_ context.Context, scopeNames []string) ([]domain.IdentityResource, error) {
	var out []domain.IdentityResource
	for _, r := range s.identityResources {
		if param.Contains(scopeNames, r.Name) {
			out = append(out, r)
		}
	}
	return out, nil
}

// FindApiScopesByName implements domain.ResourceStore.
func (s *ResourceStore) FindApiScopesByName(_ context.Context, scopeNames []string) ([]domain.ApiScope, error) {
	var out []domain.ApiScope
	for _, sc := range s.apiScopes {
		if param.Contains(scopeNames, sc.Name) {
			out = append(out, sc)
		}
	}
	return out, nil
}

// FindApiResourcesByScopeName implements domain.ResourceStore.
func (s *ResourceStore) FindApiResourcesByScopeName(_ context.Context, scopeNames []string) ([]domain.ApiResource, error) {
	var out []domain.ApiResource
	for _, r := range s.apiResources {
		for _, sc := range r.Scopes {
			if param.Contains(scopeNames, sc) {
				out = append(out, r)
				break
			}
		}
	}
	return out, nil
}

// GetAllResources implements domain.ResourceStore.
func (s *ResourceStore) GetAllResources(_ context.Context) (*domain.Resources, error) {
	return &domain.Resources{
		IdentityResources: s.identityResources,
		ApiResources:      s.apiResources,
		ApiScopes:         s.apiScopes,
	}, nil
}
