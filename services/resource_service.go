// Package services implements the protocol state machines of the token
// core: authorize-request validation, interaction decisions, PKCE binding,
// token-request validation, token creation and revocation/introspection.
package services

import (
	"context"

	"github.com/halcyon-auth/halcyon/domain"
	serrors "github.com/halcyon-auth/halcyon/errors"
	"github.com/halcyon-auth/halcyon/log"
)

// ScopeResolution is the outcome of resolving requested scope names against
// the resource store.
type ScopeResolution struct {
	Resources domain.Resources

	// Unknown lists requested names that resolved to nothing enabled.
	Unknown []string
}

// ResourceService resolves scope names to resource definitions and enforces
// configuration consistency across the identity and API namespaces.
type ResourceService struct {
	store  domain.ResourceStore
	logger log.Logger
}

// NewResourceService creates a resolver over the given store.
func NewResourceService(store domain.ResourceStore, logger log.Logger) *ResourceService {
	return &ResourceService{store: store, logger: logger}
}

// Resolve partitions the requested scope names into identity and API
// definitions. A name simultaneously registered as an identity resource and
// an API scope is a configuration error, not a request error: the returned
// error is a *errors.ConfigError and the caller must treat it as fatal.
func (s *ResourceService) Resolve(ctx context.Context, scopeNames []string) (*ScopeResolution, error) {
	identity, err := s.store.FindIdentityResourcesByScopeName(ctx, scopeNames)
	if err != nil {
		return nil, err
	}
	apiScopes, err := s.store.FindApiScopesByName(ctx, scopeNames)
	if err != nil {
		return nil, err
	}

	identityNames := map[string]bool{}
	for _, ir := range identity {
		if !ir.Enabled {
			continue
		}
		identityNames[ir.Name] = true
	}
	for _, as := range apiScopes {
		if !as.Enabled {
			continue
		}
		if identityNames[as.Name] {
			s.logger.Error(ctx, "scope registered in both identity and api namespaces", nil,
				map[string]interface{}{"scope": as.Name})
			return nil, serrors.NewConfigError(
				"scope %q is registered as both an identity resource and an api scope", as.Name)
		}
	}

	resolution := &ScopeResolution{}
	for _, ir := range identity {
		if ir.Enabled {
			resolution.Resources.IdentityResources = append(resolution.Resources.IdentityResources, ir)
		}
	}
	for _, as := range apiScopes {
		if as.Enabled {
			resolution.Resources.ApiScopes = append(resolution.Resources.ApiScopes, as)
		}
	}

	apiNames := make([]string, 0, len(resolution.Resources.ApiScopes))
	for _, as := range resolution.Resources.ApiScopes {
		apiNames = append(apiNames, as.Name)
	}
	if len(apiNames) > 0 {
		apiResources, err := s.store.FindApiResourcesByScopeName(ctx, apiNames)
		if err != nil {
			return nil, err
		}
		for _, ar := range apiResources {
			if ar.Enabled {
				resolution.Resources.ApiResources = append(resolution.Resources.ApiResources, ar)
			}
		}
	}

	resolved := map[string]bool{}
	for _, ir := range resolution.Resources.IdentityResources {
		resolved[ir.Name] = true
	}
	for _, as := range resolution.Resources.ApiScopes {
		resolved[as.Name] = true
	}
	for _, name := range scopeNames {
		if name == domain.ScopeOfflineAccess {
			// offline_access is a protocol scope, not a resource.
			continue
		}
		if !resolved[name] {
			resolution.Unknown = append(resolution.Unknown, name)
		}
	}

	return resolution, nil
}
