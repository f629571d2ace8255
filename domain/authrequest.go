package domain

import "net/url"

// Authorize endpoint parameter names.
const (
	ParamClientID            = "client_id"
	ParamRedirectURI         = "redirect_uri"
	ParamResponseType        = "response_type"
	ParamResponseMode        = "response_mode"
	ParamScope               = "scope"
	ParamState               = "state"
	ParamNonce               = "nonce"
	ParamPrompt              = "prompt"
	ParamMaxAge              = "max_age"
	ParamUILocales           = "ui_locales"
	ParamLoginHint           = "login_hint"
	ParamAcrValues           = "acr_values"
	ParamCodeChallenge       = "code_challenge"
	ParamCodeChallengeMethod = "code_challenge_method"
)

// Response types.
const (
	ResponseTypeCode             = "code"
	ResponseTypeIDToken          = "id_token"
	ResponseTypeToken            = "token"
	ResponseTypeCodeIDToken      = "code id_token"
	ResponseTypeIDTokenToken     = "id_token token"
	ResponseTypeCodeToken        = "code token"
	ResponseTypeCodeIDTokenToken = "code id_token token"
)

// Response modes.
const (
	ResponseModeQuery    = "query"
	ResponseModeFragment = "fragment"
	ResponseModeFormPost = "form_post"
)

// Prompt modes.
const (
	PromptNone          = "none"
	PromptLogin         = "login"
	PromptConsent       = "consent"
	PromptSelectAccount = "select_account"
	PromptCreate        = "create"
)

// PKCE code challenge methods.
const (
	CodeChallengePlain = "plain"
	CodeChallengeS256  = "S256"
)

// Reserved acr_values prefixes carrying routing hints.
const (
	AcrPrefixIdp    = "idp:"
	AcrPrefixTenant = "tenant:"
)

// ValidatedAuthorizeRequest is the outcome of successful authorize-request
// validation. It is constructed once and treated as immutable afterwards.
// Invariant: RequestedScopes never contains a scope outside the client's
// allowed set.
type ValidatedAuthorizeRequest struct {
	Client *Client

	ResponseType string
	ResponseMode string
	GrantType    string
	RedirectURI  string

	RequestedScopes []string
	IdentityScopes  []string
	ApiScopes       []string
	Resources       Resources

	State string
	Nonce string

	CodeChallenge       string
	CodeChallengeMethod string

	PromptModes []string

	MaxAge *int

	// Hints extracted from acr_values reserved prefixes; remaining values
	// pass through in AcrValues.
	IdpHint    string
	TenantHint string
	AcrValues  []string

	LoginHint string
	UILocales string

	// Raw preserves every request parameter verbatim, repeated keys
	// included, for pass-through to interaction and issuance.
	Raw url.Values
}

// IsOpenID reports whether the request asks for OpenID Connect processing.
func (r *ValidatedAuthorizeRequest) IsOpenID() bool {
	for _, s := range r.RequestedScopes {
		if s == ScopeOpenID {
			return true
		}
	}
	return false
}

// WantsIdentityToken reports whether the response type returns an identity
// token directly from the authorize endpoint.
func (r *ValidatedAuthorizeRequest) WantsIdentityToken() bool {
	switch r.ResponseType {
	case ResponseTypeIDToken, ResponseTypeIDTokenToken,
		ResponseTypeCodeIDToken, ResponseTypeCodeIDTokenToken:
		return true
	}
	return false
}

// WantsTokenViaBrowser reports whether the response type delivers token
// material in the front channel.
func (r *ValidatedAuthorizeRequest) WantsTokenViaBrowser() bool {
	switch r.ResponseType {
	case ResponseTypeIDToken, ResponseTypeToken, ResponseTypeIDTokenToken,
		ResponseTypeCodeIDToken, ResponseTypeCodeToken, ResponseTypeCodeIDTokenToken:
		return true
	}
	return false
}

// HasPrompt reports whether mode was requested.
func (r *ValidatedAuthorizeRequest) HasPrompt(mode string) bool {
	for _, m := range r.PromptModes {
		if m == mode {
			return true
		}
	}
	return false
}
