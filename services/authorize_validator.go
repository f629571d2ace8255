package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/halcyon-auth/halcyon/cache"
	"github.com/halcyon-auth/halcyon/domain"
	serrors "github.com/halcyon-auth/halcyon/errors"
	"github.com/halcyon-auth/halcyon/events"
	"github.com/halcyon-auth/halcyon/internal/param"
	"github.com/halcyon-auth/halcyon/log"
)

// responseTypeGrants maps each supported response type to the grant types a
// client must be allowed to use it.
var responseTypeGrants = map[string][]string{
	domain.ResponseTypeCode:             {domain.GrantAuthorizationCode},
	domain.ResponseTypeToken:            {domain.GrantImplicit},
	domain.ResponseTypeIDToken:          {domain.GrantImplicit},
	domain.ResponseTypeIDTokenToken:     {domain.GrantImplicit},
	domain.ResponseTypeCodeIDToken:      {domain.GrantAuthorizationCode, domain.GrantImplicit},
	domain.ResponseTypeCodeToken:        {domain.GrantAuthorizationCode, domain.GrantImplicit},
	domain.ResponseTypeCodeIDTokenToken: {domain.GrantAuthorizationCode, domain.GrantImplicit},
}

// AuthorizeValidatorOptions configures an AuthorizeValidator.
type AuthorizeValidatorOptions struct {
	Limits param.Limits

	// SupportedPromptValues overrides the recognized prompt modes. The
	// default set recognizes none, login and select_account; create is
	// added when an account-creation destination is configured.
	SupportedPromptValues []string

	// CreateAccountConfigured marks that an account-creation destination
	// exists, making prompt=create a recognized mode.
	CreateAccountConfigured bool
}

// AuthorizeValidator validates raw authorize-endpoint parameters against the
// client registration and protocol rules, producing a
// ValidatedAuthorizeRequest or a structured error.
type AuthorizeValidator struct {
	clients   domain.ClientStore
	resources *ResourceService
	opts      AuthorizeValidatorOptions
	sink      events.Sink
	logger    log.Logger
}

// NewAuthorizeValidator creates a validator. A zero Limits falls back to the
// defaults.
func NewAuthorizeValidator(
	clients domain.ClientStore,
	resources *ResourceService,
	opts AuthorizeValidatorOptions,
	sink events.Sink,
	logger log.Logger,
) *AuthorizeValidator {
	if opts.Limits == (param.Limits{}) {
		opts.Limits = param.DefaultLimits()
	}
	if opts.SupportedPromptValues == nil {
		opts.SupportedPromptValues = []string{
			domain.PromptNone, domain.PromptLogin, domain.PromptSelectAccount,
		}
		if opts.CreateAccountConfigured {
			opts.SupportedPromptValues = append(opts.SupportedPromptValues, domain.PromptCreate)
		}
	}
	return &AuthorizeValidator{
		clients:   clients,
		resources: resources,
		opts:      opts,
		sink:      sink,
		logger:    logger,
	}
}

// Validate runs the ordered validation rules over the raw parameter
// multi-map. The first violated rule is terminal. Protocol failures come
// back as *errors.AuthorizeError; the plain error return carries store and
// configuration faults, which the caller must not map to a protocol
// response.
//
// The returned AuthorizeError never carries redirect_uri or response_mode:
// a request that fails validation is shown an error page, not bounced back
// to the client. Redirect-delivered errors exist only for interaction
// outcomes on fully validated requests.
func (v *AuthorizeValidator) Validate(ctx context.Context, params url.Values) (*domain.ValidatedAuthorizeRequest, *serrors.AuthorizeError, error) {
	req := &domain.ValidatedAuthorizeRequest{Raw: cloneValues(params)}

	// 1. client_id must resolve to an enabled client with a supported
	// protocol type. Nothing about the redirect target leaks on failure.
	clientID := params.Get(domain.ParamClientID)
	if clientID == "" || param.TooLong(clientID, v.opts.Limits.ClientID) {
		return nil, v.reject(ctx, "", serrors.NewInvalidRequest("invalid client_id")), nil
	}
	client, err := v.clients.FindEnabledClientByID(ctx, clientID)
	if err != nil {
		return nil, nil, fmt.Errorf("client lookup failed: %w", err)
	}
	if client == nil {
		return nil, v.reject(ctx, clientID, serrors.NewUnauthorizedClient("unknown client or client not enabled")), nil
	}
	if client.ProtocolType != "" && client.ProtocolType != domain.ProtocolOIDC {
		return nil, v.reject(ctx, clientID, serrors.NewUnauthorizedClient("invalid protocol type")), nil
	}
	req.Client = client

	// 2. redirect_uri must be present, well formed and exactly registered.
	// The client id is withheld from the error surface; it only reaches
	// the log.
	redirectURI := params.Get(domain.ParamRedirectURI)
	if redirectURI == "" ||
		param.TooLong(redirectURI, v.opts.Limits.RedirectURI) ||
		!param.IsValidURI(redirectURI) ||
		!client.AllowsRedirectURI(redirectURI) {
		v.logger.Warn(ctx, "redirect_uri failed validation",
			map[string]interface{}{"client_id": clientID})
		return nil, v.reject(ctx, clientID, serrors.NewInvalidRequest("invalid redirect_uri")), nil
	}
	req.RedirectURI = redirectURI

	// Validation failures past this point still render an error page with
	// no redirect. Knowing the registered redirect URI does not make an
	// invalid request deliverable.
	fail := func(oe *serrors.OAuth2Error) *serrors.AuthorizeError {
		return v.reject(ctx, clientID, oe)
	}

	// 3. response_type must map onto the client's allowed grant types.
	responseType := params.Get(domain.ParamResponseType)
	grants, ok := responseTypeGrants[normalizeResponseType(responseType)]
	if !ok {
		return nil, fail(serrors.NewUnsupportedResponseType("response type not supported")), nil
	}
	req.ResponseType = normalizeResponseType(responseType)
	req.ResponseMode = defaultResponseMode(req.ResponseType)
	for _, g := range grants {
		if !client.AllowsGrantType(g) {
			return nil, fail(serrors.NewUnauthorizedClient("response type not allowed for client")), nil
		}
	}
	req.GrantType = grants[0]
	if returnsAccessTokenInURI(req.ResponseType) && !client.AllowAccessTokensViaBrowser {
		return nil, fail(serrors.NewUnauthorizedClient("client may not receive access tokens via the browser")), nil
	}

	// 4. response_mode, when present, must be recognized and valid for the
	// flow. query must never carry token material in the URI.
	if mode := params.Get(domain.ParamResponseMode); mode != "" {
		switch mode {
		case domain.ResponseModeQuery, domain.ResponseModeFragment, domain.ResponseModeFormPost:
			if mode == domain.ResponseModeQuery && req.WantsTokenViaBrowser() {
				return nil, fail(serrors.NewInvalidRequest("response_mode not allowed for this response type")), nil
			}
			req.ResponseMode = mode
		default:
			return nil, fail(serrors.NewUnsupportedResponseType("unsupported response_mode")), nil
		}
	}

	// 5. scope: present, length capped, well formed, registered and
	// allowed for the client.
	scope := params.Get(domain.ParamScope)
	if scope == "" {
		return nil, fail(serrors.NewInvalidRequest("scope is missing")), nil
	}
	if param.TooLong(scope, v.opts.Limits.Scope) {
		return nil, fail(serrors.NewInvalidRequest("scope too long")), nil
	}
	requestedScopes := param.ParseScopes(scope)
	for _, s := range requestedScopes {
		if !param.IsValidScopeToken(s) {
			return nil, fail(serrors.NewInvalidScope("invalid scope")), nil
		}
	}
	if req.WantsIdentityToken() && !param.Contains(requestedScopes, domain.ScopeOpenID) {
		return nil, fail(serrors.NewInvalidRequest("openid scope is missing in scope")), nil
	}
	for _, s := range requestedScopes {
		if !client.AllowsScope(s) {
			v.logger.Warn(ctx, "scope not allowed for client",
				map[string]interface{}{"client_id": clientID, "scope": s})
			return nil, fail(serrors.NewInvalidScope("invalid scope")), nil
		}
	}
	resolution, err := v.resources.Resolve(ctx, requestedScopes)
	if err != nil {
		return nil, nil, err
	}
	if len(resolution.Unknown) > 0 {
		v.logger.Warn(ctx, "unknown scopes requested",
			map[string]interface{}{"client_id": clientID, "scopes": resolution.Unknown})
		return nil, fail(serrors.NewInvalidScope("invalid scope")), nil
	}
	req.RequestedScopes = requestedScopes
	req.Resources = resolution.Resources
	req.IdentityScopes = resolution.Resources.IdentityScopeNames()
	req.ApiScopes = resolution.Resources.ApiScopeNames()

	// 6. nonce is required for flows returning an identity token.
	nonce := params.Get(domain.ParamNonce)
	if param.TooLong(nonce, v.opts.Limits.Nonce) {
		return nil, fail(serrors.NewInvalidRequest("nonce too long")), nil
	}
	if nonce == "" && req.WantsIdentityToken() {
		return nil, fail(serrors.NewInvalidRequest("nonce is required for this flow")), nil
	}
	req.Nonce = nonce

	// 7. Length caps on the remaining caller-supplied parameters, naming
	// the offender.
	for _, check := range []struct {
		name  string
		limit int
	}{
		{domain.ParamState, v.opts.Limits.State},
		{domain.ParamUILocales, v.opts.Limits.UILocales},
		{domain.ParamLoginHint, v.opts.Limits.LoginHint},
		{domain.ParamAcrValues, v.opts.Limits.AcrValues},
	} {
		if param.TooLong(params.Get(check.name), check.limit) {
			return nil, fail(serrors.NewInvalidRequest(check.name + " too long")), nil
		}
	}
	req.State = params.Get(domain.ParamState)
	req.UILocales = params.Get(domain.ParamUILocales)
	req.LoginHint = params.Get(domain.ParamLoginHint)

	// 8. max_age must parse as a non-negative integer.
	if rawMaxAge := params.Get(domain.ParamMaxAge); rawMaxAge != "" {
		maxAge, err := strconv.Atoi(rawMaxAge)
		if err != nil || maxAge < 0 {
			return nil, fail(serrors.NewInvalidRequest("invalid max_age")), nil
		}
		req.MaxAge = &maxAge
	}

	// 9. acr_values: the first idp: and tenant: prefixed entries become
	// dedicated hints; everything else passes through.
	for _, acr := range strings.Fields(params.Get(domain.ParamAcrValues)) {
		switch {
		case strings.HasPrefix(acr, domain.AcrPrefixIdp):
			if req.IdpHint == "" {
				req.IdpHint = strings.TrimPrefix(acr, domain.AcrPrefixIdp)
			} else {
				req.AcrValues = append(req.AcrValues, acr)
			}
		case strings.HasPrefix(acr, domain.AcrPrefixTenant):
			if req.TenantHint == "" {
				req.TenantHint = strings.TrimPrefix(acr, domain.AcrPrefixTenant)
			} else {
				req.AcrValues = append(req.AcrValues, acr)
			}
		default:
			req.AcrValues = append(req.AcrValues, acr)
		}
	}
	// An idp hint outside the client's provider restrictions is dropped
	// rather than rejected, so it never reaches the login page.
	if req.IdpHint != "" && len(client.IdentityProviderRestrictions) > 0 &&
		!param.Contains(client.IdentityProviderRestrictions, req.IdpHint) {
		v.logger.Debug(ctx, "idp hint not allowed for client, ignoring",
			map[string]interface{}{"client_id": clientID, "idp": req.IdpHint})
		req.IdpHint = ""
	}

	// 10./11. prompt: mutually exclusive modes conflict; a mode outside
	// the supported set is rejected outright.
	promptModes := strings.Fields(params.Get(domain.ParamPrompt))
	if param.Contains(promptModes, domain.PromptLogin) && param.Contains(promptModes, domain.PromptCreate) {
		return nil, fail(serrors.NewInvalidRequest("prompt contains conflicting values")), nil
	}
	if param.Contains(promptModes, domain.PromptNone) && len(promptModes) > 1 {
		return nil, fail(serrors.NewInvalidRequest("prompt contains conflicting values")), nil
	}
	for _, mode := range promptModes {
		if !param.Contains(v.opts.SupportedPromptValues, mode) {
			return nil, fail(serrors.NewInvalidRequest("unsupported prompt value")), nil
		}
	}
	req.PromptModes = promptModes

	// PKCE binding parameters for the code flow.
	challenge := params.Get(domain.ParamCodeChallenge)
	method := params.Get(domain.ParamCodeChallengeMethod)
	if req.GrantType == domain.GrantAuthorizationCode {
		if client.RequirePKCE && challenge == "" {
			return nil, fail(serrors.NewInvalidRequest("code_challenge is missing")), nil
		}
		if challenge != "" {
			if len(challenge) < v.opts.Limits.CodeVerifierMin || len(challenge) > v.opts.Limits.CodeVerifierMax {
				return nil, fail(serrors.NewInvalidRequest("invalid code_challenge")), nil
			}
			if method == "" {
				method = domain.CodeChallengePlain
			}
			if method != domain.CodeChallengePlain && method != domain.CodeChallengeS256 {
				return nil, fail(serrors.NewInvalidRequest("transform algorithm not supported")), nil
			}
			// The challenge is persisted under the store hash transform.
			req.CodeChallenge = cache.HashToken(challenge)
			req.CodeChallengeMethod = method
		}
	}

	// 12. Everything else is already preserved verbatim in req.Raw.
	// Success is not an event here: issuance may still be denied at the
	// interaction stage, and the responder reports the real outcome.

	return req, nil, nil
}

// reject builds a non-redirectable error surface and raises the audit
// event. redirect_uri and response_mode never appear on this path.
func (v *AuthorizeValidator) reject(ctx context.Context, clientID string, oe *serrors.OAuth2Error) *serrors.AuthorizeError {
	v.raiseReject(ctx, clientID, oe)
	return serrors.NewAuthorizeError(oe)
}

func (v *AuthorizeValidator) raiseReject(ctx context.Context, clientID string, oe *serrors.OAuth2Error) {
	v.sink.Raise(ctx, events.Event{
		Name:     events.AuthorizeFailure,
		ClientID: clientID,
		Error:    oe.Code,
	})
}

// normalizeResponseType sorts multi-valued response types into their
// canonical spelling so "id_token code" and "code id_token" are the same
// flow.
func normalizeResponseType(responseType string) string {
	parts := strings.Fields(responseType)
	if len(parts) <= 1 {
		return responseType
	}
	var hasCode, hasIDToken, hasToken bool
	for _, p := range parts {
		switch p {
		case domain.ResponseTypeCode:
			hasCode = true
		case domain.ResponseTypeIDToken:
			hasIDToken = true
		case domain.ResponseTypeToken:
			hasToken = true
		default:
			return responseType
		}
	}
	var out []string
	if hasCode {
		out = append(out, domain.ResponseTypeCode)
	}
	if hasIDToken {
		out = append(out, domain.ResponseTypeIDToken)
	}
	if hasToken {
		out = append(out, domain.ResponseTypeToken)
	}
	return strings.Join(out, " ")
}

// returnsAccessTokenInURI reports whether the response type delivers an
// access token through the front channel.
func returnsAccessTokenInURI(responseType string) bool {
	for _, part := range strings.Fields(responseType) {
		if part == domain.ResponseTypeToken {
			return true
		}
	}
	return false
}

// defaultResponseMode returns the response mode a flow uses when the
// request does not pick one: query for pure code, fragment whenever token
// material travels in the URI.
func defaultResponseMode(responseType string) string {
	if responseType == domain.ResponseTypeCode {
		return domain.ResponseModeQuery
	}
	return domain.ResponseModeFragment
}

func cloneValues(in url.Values) url.Values {
	out := make(url.Values, len(in))
	for k, vs := range in {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
