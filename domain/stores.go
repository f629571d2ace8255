package domain

import "context"

// ClientStore resolves registered clients.
type ClientStore interface {
	// FindEnabledClientByID returns the enabled client with the given id,
	// or nil when no such client exists.
	FindEnabledClientByID(ctx context.Context, clientID string) (*Client, error)
}

// ResourceStore resolves identity and API resource definitions.
type ResourceStore interface {
	FindIdentityResourcesByScopeName(ctx context.Context, scopeNames []string) ([]IdentityResource, error)
	FindApiScopesByName(ctx context.Context, scopeNames []string) ([]ApiScope, error)
	FindApiResourcesByScopeName(ctx context.Context, scopeNames []string) ([]ApiResource, error)
	GetAllResources(ctx context.Context) (*Resources, error)
}

// AuthorizationCodeStore persists single-use authorization codes.
type AuthorizationCodeStore interface {
	// StoreCode persists the code state under its opaque handle.
	StoreCode(ctx context.Context, code *AuthorizationCode) error

	// ConsumeCode atomically marks the handle consumed and returns its
	// state. It returns nil when the handle is unknown or already
	// consumed; two concurrent calls for the same handle yield at most one
	// non-nil result.
	ConsumeCode(ctx context.Context, handle string) (*AuthorizationCode, error)
}

// RefreshTokenStore persists refresh-token grants.
type RefreshTokenStore interface {
	StoreRefreshToken(ctx context.Context, token *RefreshToken) error

	// ConsumeRefreshToken atomically invalidates the handle and returns
	// its state, with the same single-winner guarantee as ConsumeCode.
	// Used for one-time-use tokens.
	ConsumeRefreshToken(ctx context.Context, handle string) (*RefreshToken, error)

	// GetRefreshToken returns the live state of a reusable handle, or nil
	// when unknown or revoked.
	GetRefreshToken(ctx context.Context, handle string) (*RefreshToken, error)

	// TouchRefreshToken updates the sliding-window usage timestamp.
	TouchRefreshToken(ctx context.Context, handle string) error

	// RevokeRefreshToken marks the handle invalid. Revoking an unknown or
	// already revoked handle is a no-op success.
	RevokeRefreshToken(ctx context.Context, handle string) error
}

// UserAuthenticator validates resource-owner credentials for the password
// grant.
type UserAuthenticator interface {
	// ValidateCredentials returns the subject on success, nil when the
	// credentials are wrong.
	ValidateCredentials(ctx context.Context, username, password string) (*Subject, error)
}

// InteractionURLs supplies destinations for the interaction pages owned by
// the external UI collaborator. CreateAccountURL may be empty, in which case
// prompt=create is unrecognized.
type InteractionURLs struct {
	LoginURL         string
	ConsentURL       string
	CreateAccountURL string
}
