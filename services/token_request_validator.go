package services

import (
	"context"
	"net/url"
	"time"

	"github.com/halcyon-auth/halcyon/domain"
	serrors "github.com/halcyon-auth/halcyon/errors"
	"github.com/halcyon-auth/halcyon/events"
	"github.com/halcyon-auth/halcyon/internal/param"
	"github.com/halcyon-auth/halcyon/log"
)

// TokenRequestValidatorOptions configures a TokenRequestValidator.
type TokenRequestValidatorOptions struct {
	// Limits must match the bounds the authorize validator applied, so a
	// verifier is measured against the same rules as its challenge.
	Limits param.Limits
}

// TokenRequestValidator checks token endpoint requests for an already
// authenticated client. Grant evidence that is single-use (authorization
// codes, one-time refresh tokens) is consumed atomically through the
// stores, so two concurrent redemptions of the same handle produce at most
// one success.
type TokenRequestValidator struct {
	codes     domain.AuthorizationCodeStore
	refresh   domain.RefreshTokenStore
	users     domain.UserAuthenticator
	resources *ResourceService
	opts      TokenRequestValidatorOptions
	sink      events.Sink
	logger    log.Logger
	now       func() time.Time
}

// NewTokenRequestValidator creates a validator. users may be nil when the
// password grant is not supported by the deployment. A zero Limits falls
// back to the defaults.
func NewTokenRequestValidator(
	codes domain.AuthorizationCodeStore,
	refresh domain.RefreshTokenStore,
	users domain.UserAuthenticator,
	resources *ResourceService,
	opts TokenRequestValidatorOptions,
	sink events.Sink,
	logger log.Logger,
) *TokenRequestValidator {
	if opts.Limits == (param.Limits{}) {
		opts.Limits = param.DefaultLimits()
	}
	return &TokenRequestValidator{
		codes:     codes,
		refresh:   refresh,
		users:     users,
		resources: resources,
		opts:      opts,
		sink:      sink,
		logger:    logger,
		now:       time.Now,
	}
}

// Validate checks the request parameters for the given client. The second
// return value is the protocol error to surface to the caller; the third
// is an internal fault.
func (v *TokenRequestValidator) Validate(
	ctx context.Context,
	params url.Values,
	client *domain.Client,
) (*domain.ValidatedTokenRequest, *serrors.OAuth2Error, error) {
	grantType := params.Get(domain.ParamGrantType)
	if grantType == "" {
		return nil, v.reject(ctx, client, serrors.NewInvalidRequest("grant_type is missing")), nil
	}

	switch grantType {
	case domain.GrantAuthorizationCode, domain.GrantClientCredentials,
		domain.GrantRefreshToken, domain.GrantPassword:
	default:
		return nil, v.reject(ctx, client, serrors.NewUnsupportedGrantType()), nil
	}
	if !client.AllowsGrantType(grantType) {
		v.logger.Warn(ctx, "client requested a grant type it is not allowed",
			map[string]interface{}{"client_id": client.ID, "grant_type": grantType})
		return nil, v.reject(ctx, client, serrors.NewUnauthorizedClient("grant type not allowed for client")), nil
	}

	req := &domain.ValidatedTokenRequest{GrantType: grantType, Client: client}

	var oe *serrors.OAuth2Error
	var err error
	switch grantType {
	case domain.GrantAuthorizationCode:
		oe, err = v.validateAuthorizationCode(ctx, params, req)
	case domain.GrantClientCredentials:
		oe, err = v.validateClientCredentials(ctx, params, req)
	case domain.GrantPassword:
		oe, err = v.validatePassword(ctx, params, req)
	case domain.GrantRefreshToken:
		oe, err = v.validateRefreshToken(ctx, params, req)
	}
	if err != nil {
		return nil, nil, err
	}
	if oe != nil {
		return nil, v.reject(ctx, client, oe), nil
	}
	return req, nil, nil
}

func (v *TokenRequestValidator) validateAuthorizationCode(
	ctx context.Context,
	params url.Values,
	req *domain.ValidatedTokenRequest,
) (*serrors.OAuth2Error, error) {
	handle := params.Get(domain.ParamCode)
	if handle == "" {
		return serrors.NewInvalidRequest("code is missing"), nil
	}

	code, err := v.codes.ConsumeCode(ctx, handle)
	if err != nil {
		return nil, err
	}
	if code == nil {
		v.logger.Warn(ctx, "authorization code unknown or already consumed",
			map[string]interface{}{"client_id": req.Client.ID})
		return serrors.NewInvalidGrant(), nil
	}
	if code.ClientID != req.Client.ID {
		v.logger.Warn(ctx, "authorization code was issued to a different client",
			map[string]interface{}{"client_id": req.Client.ID})
		return serrors.NewInvalidGrant(), nil
	}
	if code.Expired(v.now()) {
		return serrors.NewInvalidGrant(), nil
	}
	if params.Get(domain.ParamRedirectURI) != code.RedirectURI {
		return serrors.NewInvalidGrant(), nil
	}
	if oe := ValidateCodeVerifier(code, params.Get(domain.ParamCodeVerifier), v.opts.Limits); oe != nil {
		return oe, nil
	}

	// The scopes were validated at authorization time; a name that no
	// longer resolves means the configuration changed underneath an
	// outstanding code and is a server fault, not a client error.
	resolution, err := v.resources.Resolve(ctx, code.RequestedScopes)
	if err != nil {
		return nil, err
	}
	if len(resolution.Unknown) > 0 {
		v.logger.Error(ctx, "stored authorization code references unknown scopes", nil,
			map[string]interface{}{"client_id": req.Client.ID, "scopes": resolution.Unknown})
		return serrors.NewServerError("scope configuration changed"), nil
	}

	req.Code = code
	req.SubjectID = code.SubjectID
	req.SessionID = code.SessionID
	req.Scopes = code.RequestedScopes
	req.Resources = resolution.Resources
	req.Nonce = code.Nonce
	return nil, nil
}

func (v *TokenRequestValidator) validateClientCredentials(
	ctx context.Context,
	params url.Values,
	req *domain.ValidatedTokenRequest,
) (*serrors.OAuth2Error, error) {
	// The grant has no end user, so identity scopes and offline_access are
	// out of reach regardless of registration.
	scopes, oe := v.requestedScopes(params, req.Client)
	if oe != nil {
		return oe, nil
	}
	if param.Contains(scopes, domain.ScopeOfflineAccess) {
		return serrors.NewInvalidScope("offline_access is not valid for client_credentials"), nil
	}

	resolution, err := v.resources.Resolve(ctx, scopes)
	if err != nil {
		return nil, err
	}
	if len(resolution.Unknown) > 0 {
		return serrors.NewInvalidScope("invalid scope"), nil
	}
	if len(resolution.Resources.IdentityResources) > 0 {
		return serrors.NewInvalidScope("identity scopes are not valid for client_credentials"), nil
	}

	req.Scopes = scopes
	req.Resources = resolution.Resources
	return nil, nil
}

func (v *TokenRequestValidator) validatePassword(
	ctx context.Context,
	params url.Values,
	req *domain.ValidatedTokenRequest,
) (*serrors.OAuth2Error, error) {
	if v.users == nil {
		return serrors.NewUnsupportedGrantType(), nil
	}
	username := params.Get(domain.ParamUsername)
	password := params.Get(domain.ParamPassword)
	if username == "" || password == "" {
		return serrors.NewInvalidRequest("username and password are required"), nil
	}

	subject, err := v.users.ValidateCredentials(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if subject == nil {
		v.logger.Warn(ctx, "resource owner credential validation failed",
			map[string]interface{}{"client_id": req.Client.ID})
		return serrors.NewInvalidGrant(), nil
	}

	scopes, oe := v.requestedScopes(params, req.Client)
	if oe != nil {
		return oe, nil
	}
	resolution, err := v.resources.Resolve(ctx, scopes)
	if err != nil {
		return nil, err
	}
	if len(resolution.Unknown) > 0 {
		return serrors.NewInvalidScope("invalid scope"), nil
	}

	req.SubjectID = subject.ID
	req.SessionID = subject.SessionID
	req.Scopes = scopes
	req.Resources = resolution.Resources
	return nil, nil
}

func (v *TokenRequestValidator) validateRefreshToken(
	ctx context.Context,
	params url.Values,
	req *domain.ValidatedTokenRequest,
) (*serrors.OAuth2Error, error) {
	handle := params.Get(domain.ParamRefreshToken)
	if handle == "" {
		return serrors.NewInvalidRequest("refresh_token is missing"), nil
	}

	token, err := v.refresh.GetRefreshToken(ctx, handle)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return serrors.NewInvalidGrant(), nil
	}
	if token.ClientID != req.Client.ID {
		v.logger.Warn(ctx, "refresh token was issued to a different client",
			map[string]interface{}{"client_id": req.Client.ID})
		return serrors.NewInvalidGrant(), nil
	}
	if token.Expired(v.now()) {
		return serrors.NewInvalidGrant(), nil
	}

	// An explicit scope parameter may narrow but never widen the original
	// grant.
	scopes := token.Scopes
	if raw := params.Get(domain.ParamScope); raw != "" {
		requested := param.ParseScopes(raw)
		for _, s := range requested {
			if !param.Contains(token.Scopes, s) {
				return serrors.NewInvalidScope("scope exceeds original grant"), nil
			}
		}
		scopes = requested
	}

	if token.OneTimeUse {
		// The advisory read above filtered the obvious failures; the
		// consume call is the linearization point that picks a single
		// winner among concurrent redemptions.
		consumed, err := v.refresh.ConsumeRefreshToken(ctx, handle)
		if err != nil {
			return nil, err
		}
		if consumed == nil {
			v.logger.Warn(ctx, "refresh token replay detected",
				map[string]interface{}{"client_id": req.Client.ID})
			return serrors.NewInvalidGrant(), nil
		}
		token = consumed

		rotated, err := NewHandle()
		if err != nil {
			return nil, err
		}
		replacement := *token
		replacement.Handle = rotated
		replacement.LastUsedAt = v.now()
		replacement.Revoked = false
		if err := v.refresh.StoreRefreshToken(ctx, &replacement); err != nil {
			return nil, err
		}
		req.RotatedHandle = rotated
	} else {
		if err := v.refresh.TouchRefreshToken(ctx, handle); err != nil {
			return nil, err
		}
	}

	resolution, err := v.resources.Resolve(ctx, scopes)
	if err != nil {
		return nil, err
	}

	req.RefreshToken = token
	req.SubjectID = token.SubjectID
	req.SessionID = token.SessionID
	req.Scopes = scopes
	req.Resources = resolution.Resources
	return nil, nil
}

// requestedScopes resolves the effective scope list for the user-less and
// password grants: the scope parameter when present, the client's full
// registration otherwise. Every name must be allowed for the client.
func (v *TokenRequestValidator) requestedScopes(params url.Values, client *domain.Client) ([]string, *serrors.OAuth2Error) {
	raw := params.Get(domain.ParamScope)
	if raw == "" {
		return client.AllowedScopes, nil
	}
	scopes := param.ParseScopes(raw)
	for _, s := range scopes {
		if !param.IsValidScopeToken(s) {
			return nil, serrors.NewInvalidScope("invalid scope")
		}
		if !client.AllowsScope(s) {
			return nil, serrors.NewInvalidScope("invalid scope")
		}
	}
	return scopes, nil
}

func (v *TokenRequestValidator) reject(ctx context.Context, client *domain.Client, oe *serrors.OAuth2Error) *serrors.OAuth2Error {
	v.sink.Raise(ctx, events.Event{
		Name:     events.TokenRequestFailed,
		ClientID: client.ID,
		Error:    oe.Code,
		Detail:   map[string]any{"description": oe.Description},
	})
	return oe
}
