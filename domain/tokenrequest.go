package domain

// Token endpoint parameter names.
const (
	ParamGrantType    = "grant_type"
	ParamCode         = "code"
	ParamCodeVerifier = "code_verifier"
	ParamRefreshToken = "refresh_token"
	ParamUsername     = "username"
	ParamPassword     = "password"
)

// ValidatedTokenRequest is the outcome of successful token-request
// validation: the resolved client plus the grant-specific evidence needed
// for issuance.
type ValidatedTokenRequest struct {
	GrantType string
	Client    *Client

	// Code is set for the authorization_code grant, after the handle has
	// been atomically consumed.
	Code *AuthorizationCode

	// RefreshToken is set for the refresh_token grant. RotatedHandle holds
	// the replacement handle when rotation applied.
	RefreshToken  *RefreshToken
	RotatedHandle string

	// SubjectID is the resolved subject; empty for client_credentials.
	SubjectID string
	SessionID string

	Scopes    []string
	Resources Resources
	Nonce     string

	// Confirmation is the proof-of-possession key thumbprint supplied by
	// the hosting layer when the request was DPoP or mTLS bound.
	Confirmation string
}
