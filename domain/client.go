package domain

import "time"

// Grant types understood by the token endpoint.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantClientCredentials = "client_credentials"
	GrantRefreshToken      = "refresh_token"
	GrantPassword          = "password"
	GrantImplicit          = "implicit"
)

// ProtocolType identifies the protocol family a client speaks.
type ProtocolType string

const (
	ProtocolOIDC ProtocolType = "oidc"
)

// AccessTokenType selects the wire format of a client's access tokens.
type AccessTokenType int

const (
	// AccessTokenJWT issues self-contained signed tokens.
	AccessTokenJWT AccessTokenType = iota
	// AccessTokenReference issues opaque handles resolvable only through
	// introspection.
	AccessTokenReference
)

// RefreshTokenUsage controls refresh-token rotation for a client.
type RefreshTokenUsage int

const (
	// RefreshTokenReuse keeps the same handle valid across redemptions.
	RefreshTokenReuse RefreshTokenUsage = iota
	// RefreshTokenOneTime invalidates the handle on redemption and issues a
	// replacement.
	RefreshTokenOneTime
)

// Client represents a registered OAuth2/OIDC client application. A Client is
// immutable for the duration of a request; the store owns its lifecycle.
//
//nolint:tagliatelle
type Client struct {
	ID string `bson:"client_id" json:"client_id"`
	// Secret is the credential the hosting layer authenticates the client
	// with before any request reaches this core; nothing below the
	// endpoint layer reads it.
	Secret       string       `bson:"client_secret,omitempty" json:"-"`
	Name         string       `bson:"client_name" json:"name,omitempty"`
	ProtocolType ProtocolType `bson:"protocol_type" json:"protocol_type,omitempty"`

	RedirectURIs      []string `bson:"redirect_uris" json:"redirect_uris,omitempty"`
	AllowedScopes     []string `bson:"allowed_scopes" json:"allowed_scopes,omitempty"`
	AllowedGrantTypes []string `bson:"allowed_grant_types" json:"allowed_grant_types,omitempty"`

	// IdentityProviderRestrictions limits which upstream providers may
	// authenticate a subject for this client. Empty means no restriction.
	IdentityProviderRestrictions []string `bson:"idp_restrictions,omitempty" json:"idp_restrictions,omitempty"`

	Enabled        bool `bson:"enabled" json:"enabled"`
	RequireConsent bool `bson:"require_consent" json:"require_consent"`
	RequirePKCE    bool `bson:"require_pkce" json:"require_pkce"`
	// RequireClientSecret tells the hosting layer whether the client may
	// skip authentication (public clients). Enforced at the endpoint, not
	// here.
	RequireClientSecret         bool `bson:"require_client_secret" json:"require_client_secret"`
	AllowAccessTokensViaBrowser bool `bson:"allow_access_tokens_via_browser" json:"allow_access_tokens_via_browser"`

	AccessTokenType           AccessTokenType   `bson:"access_token_type" json:"access_token_type,omitempty"`
	AccessTokenLifetime       time.Duration     `bson:"access_token_lifetime" json:"access_token_lifetime,omitempty"`
	IdentityTokenLifetime     time.Duration     `bson:"identity_token_lifetime" json:"identity_token_lifetime,omitempty"`
	AuthorizationCodeLifetime time.Duration     `bson:"authorization_code_lifetime" json:"authorization_code_lifetime,omitempty"`
	RefreshTokenLifetime      time.Duration     `bson:"refresh_token_lifetime" json:"refresh_token_lifetime,omitempty"`
	RefreshTokenIdleTimeout   time.Duration     `bson:"refresh_token_idle_timeout" json:"refresh_token_idle_timeout,omitempty"`
	RefreshTokenUsage         RefreshTokenUsage `bson:"refresh_token_usage" json:"refresh_token_usage,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at,omitempty"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at,omitempty"`
}

// AllowsGrantType reports whether the client may use the given grant type.
func (c *Client) AllowsGrantType(grantType string) bool {
	for _, g := range c.AllowedGrantTypes {
		if g == grantType {
			return true
		}
	}
	return false
}

// AllowsScope reports whether name is in the client's allowed scope set.
func (c *Client) AllowsScope(name string) bool {
	for _, s := range c.AllowedScopes {
		if s == name {
			return true
		}
	}
	return false
}

// AllowsRedirectURI reports whether uri exactly matches a registered
// redirect URI. Matching is exact string comparison, never prefix or
// wildcard.
func (c *Client) AllowsRedirectURI(uri string) bool {
	for _, u := range c.RedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}
