package domain

import "time"

// AuthorizationCode is the server-side state behind an opaque authorization
// code handle. It is single-use: redemption goes through the grant store's
// atomic consume operation, never read-then-write.
//
//nolint:tagliatelle
type AuthorizationCode struct {
	Handle      string `bson:"handle" json:"handle"`
	ClientID    string `bson:"client_id" json:"client_id"`
	SubjectID   string `bson:"subject_id" json:"subject_id"`
	SessionID   string `bson:"session_id,omitempty" json:"session_id,omitempty"`
	RedirectURI string `bson:"redirect_uri" json:"redirect_uri"`

	RequestedScopes []string `bson:"requested_scopes" json:"requested_scopes"`

	// CodeChallenge holds the PKCE challenge under the store's hash
	// transform; empty when the code is not proof-key bound.
	CodeChallenge       string `bson:"code_challenge,omitempty" json:"code_challenge,omitempty"`
	CodeChallengeMethod string `bson:"code_challenge_method,omitempty" json:"code_challenge_method,omitempty"`

	Nonce string `bson:"nonce,omitempty" json:"nonce,omitempty"`
	State string `bson:"state,omitempty" json:"state,omitempty"`

	CreatedAt time.Time     `bson:"created_at" json:"created_at"`
	Lifetime  time.Duration `bson:"lifetime" json:"lifetime"`
	Consumed  bool          `bson:"consumed" json:"consumed"`
}

// Expired reports whether the code is past its lifetime at now.
func (c *AuthorizationCode) Expired(now time.Time) bool {
	return now.After(c.CreatedAt.Add(c.Lifetime))
}

// RefreshToken is the server-side state behind an opaque refresh token
// handle.
//
//nolint:tagliatelle
type RefreshToken struct {
	Handle    string `bson:"handle" json:"handle"`
	ClientID  string `bson:"client_id" json:"client_id"`
	SubjectID string `bson:"subject_id" json:"subject_id"`
	SessionID string `bson:"session_id,omitempty" json:"session_id,omitempty"`

	Scopes []string `bson:"scopes" json:"scopes"`

	CreatedAt  time.Time     `bson:"created_at" json:"created_at"`
	LastUsedAt time.Time     `bson:"last_used_at" json:"last_used_at"`
	Lifetime   time.Duration `bson:"lifetime" json:"lifetime"`

	// IdleTimeout expires the token when it has not been used for the
	// duration; zero disables the sliding window.
	IdleTimeout time.Duration `bson:"idle_timeout,omitempty" json:"idle_timeout,omitempty"`

	OneTimeUse bool `bson:"one_time_use" json:"one_time_use"`
	Revoked    bool `bson:"revoked" json:"revoked"`
}

// Expired reports whether the token is past its absolute lifetime or its
// sliding idle window at now.
func (t *RefreshToken) Expired(now time.Time) bool {
	if now.After(t.CreatedAt.Add(t.Lifetime)) {
		return true
	}
	if t.IdleTimeout > 0 && now.After(t.LastUsedAt.Add(t.IdleTimeout)) {
		return true
	}
	return false
}
