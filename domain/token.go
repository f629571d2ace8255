package domain

import "time"

// Token types.
const (
	TokenTypeAccess   = "access_token"
	TokenTypeIdentity = "id_token"
	TokenTypeRefresh  = "refresh_token"
)

// Claim is a single claim value. Claims are kept as an ordered multi-valued
// list: repeating a claim type appends, it never overwrites.
type Claim struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Token is an assembled, not yet serialized security token. Audiences may be
// appended by a ClaimsDecorator before signing.
type Token struct {
	ID        string `json:"jti"`
	Type      string `json:"type"`
	Issuer    string `json:"iss"`
	ClientID  string `json:"client_id"`
	SubjectID string `json:"sub,omitempty"`
	SessionID string `json:"sid,omitempty"`

	Audiences []string `json:"aud"`
	Scopes    []string `json:"scopes"`
	Claims    []Claim  `json:"claims,omitempty"`

	IssuedAt time.Time     `json:"iat"`
	Lifetime time.Duration `json:"lifetime"`

	// Confirmation carries the proof-of-possession key thumbprint (cnf)
	// when the token is DPoP or mTLS bound.
	Confirmation string `json:"cnf,omitempty"`

	Nonce string `json:"nonce,omitempty"`
}

// ExpiresAt returns the token's expiry instant.
func (t *Token) ExpiresAt() time.Time {
	return t.IssuedAt.Add(t.Lifetime)
}

// AddAudience appends aud unless it is already present.
func (t *Token) AddAudience(aud string) {
	for _, a := range t.Audiences {
		if a == aud {
			return
		}
	}
	t.Audiences = append(t.Audiences, aud)
}

// AddClaim appends a claim value; duplicate types accumulate.
func (t *Token) AddClaim(claimType, value string) {
	t.Claims = append(t.Claims, Claim{Type: claimType, Value: value})
}

// TokenResponse carries every field the hosting layer needs to encode a
// token endpoint response.
//
//nolint:tagliatelle
type TokenResponse struct {
	AccessToken   string `json:"access_token"`
	IdentityToken string `json:"id_token,omitempty"`
	RefreshToken  string `json:"refresh_token,omitempty"`
	TokenType     string `json:"token_type"`
	ExpiresIn     int64  `json:"expires_in"`
	Scope         string `json:"scope,omitempty"`
}

// AuthorizeResponse carries every field the hosting layer needs to encode an
// authorization response in the negotiated response mode.
//
//nolint:tagliatelle
type AuthorizeResponse struct {
	RedirectURI  string `json:"redirect_uri"`
	ResponseMode string `json:"response_mode"`

	Code          string `json:"code,omitempty"`
	IdentityToken string `json:"id_token,omitempty"`
	AccessToken   string `json:"access_token,omitempty"`
	TokenType     string `json:"token_type,omitempty"`
	ExpiresIn     int64  `json:"expires_in,omitempty"`

	State        string `json:"state,omitempty"`
	Scope        string `json:"scope,omitempty"`
	SessionState string `json:"session_state,omitempty"`
}
