// Package halcyon assembles the token issuance core from configuration and
// store collaborators. The services remain individually constructable; Core
// is the wiring a typical deployment needs.
package halcyon

import (
	"context"

	"github.com/halcyon-auth/halcyon/cache"
	"github.com/halcyon-auth/halcyon/config"
	"github.com/halcyon-auth/halcyon/domain"
	"github.com/halcyon-auth/halcyon/events"
	"github.com/halcyon-auth/halcyon/log"
	"github.com/halcyon-auth/halcyon/services"
)

// Stores collects the persistence collaborators a Core is built over.
// Users, Consents and References are optional; a nil Users disables the
// password grant, a nil Consents makes every consent-requiring request
// challenge, and a nil References disables reference access tokens.
type Stores struct {
	Clients    domain.ClientStore
	Resources  domain.ResourceStore
	Codes      domain.AuthorizationCodeStore
	Refresh    domain.RefreshTokenStore
	Users      domain.UserAuthenticator
	Consents   services.ConsentStore
	References cache.ReferenceTokenStore
}

// Core is the assembled token issuance pipeline.
type Core struct {
	Resources     *services.ResourceService
	Authorize     *services.AuthorizeValidator
	Interaction   *services.Interactor
	Responder     *services.AuthorizeResponder
	TokenRequests *services.TokenRequestValidator
	Tokens        *services.TokenService
	Revocation    *services.RevocationService
	Keys          services.KeyMaterialService
}

// NewCore wires the services from configuration. Client registrations that
// leave token lifetimes zero inherit the configured defaults through a
// decorating client store.
func NewCore(
	cfg *config.ServerConfig,
	stores Stores,
	keys services.KeyMaterialService,
	sink events.Sink,
	logger log.Logger,
	decorators ...services.ClaimsDecorator,
) *Core {
	clients := &defaultingClientStore{inner: stores.Clients, cfg: cfg}
	resources := services.NewResourceService(stores.Resources, logger)

	validator := services.NewAuthorizeValidator(clients, resources, services.AuthorizeValidatorOptions{
		SupportedPromptValues:   cfg.SupportedPromptValues,
		CreateAccountConfigured: cfg.CreateAccountURL != "",
	}, sink, logger)

	tokens := services.NewTokenService(
		cfg.Issuer, keys, stores.Refresh, stores.References, sink, logger, decorators...)

	return &Core{
		Resources: resources,
		Authorize: validator,
		Interaction: services.NewInteractor(
			cfg.InteractionURLs(), stores.Consents, cfg.ValidateTenant, sink, logger),
		Responder: services.NewAuthorizeResponder(stores.Codes, tokens, sink, logger),
		TokenRequests: services.NewTokenRequestValidator(
			stores.Codes, stores.Refresh, stores.Users, resources,
			services.TokenRequestValidatorOptions{}, sink, logger),
		Tokens:     tokens,
		Revocation: services.NewRevocationService(stores.Refresh, stores.References, cfg.Issuer, sink, logger),
		Keys:       keys,
	}
}

// defaultingClientStore fills zero lifetime fields on loaded clients with
// the configured deployment defaults, so per-client overrides stay possible
// while the services see concrete values.
type defaultingClientStore struct {
	inner domain.ClientStore
	cfg   *config.ServerConfig
}

func (s *defaultingClientStore) FindEnabledClientByID(ctx context.Context, clientID string) (*domain.Client, error) {
	client, err := s.inner.FindEnabledClientByID(ctx, clientID)
	if err != nil || client == nil {
		return client, err
	}
	withDefaults := *client
	if withDefaults.AccessTokenLifetime == 0 {
		withDefaults.AccessTokenLifetime = s.cfg.AccessTokenTTL()
	}
	if withDefaults.IdentityTokenLifetime == 0 {
		withDefaults.IdentityTokenLifetime = s.cfg.IdentityTokenTTL()
	}
	if withDefaults.AuthorizationCodeLifetime == 0 {
		withDefaults.AuthorizationCodeLifetime = s.cfg.AuthorizationCodeTTL()
	}
	if withDefaults.RefreshTokenLifetime == 0 {
		withDefaults.RefreshTokenLifetime = s.cfg.RefreshTokenTTL()
	}
	if withDefaults.RefreshTokenIdleTimeout == 0 {
		withDefaults.RefreshTokenIdleTimeout = s.cfg.RefreshTokenIdleTimeout()
	}
	return &withDefaults, nil
}
