// Package cache stores reference access-token state for introspection and
// revocation. A reference token is an opaque handle whose validity is
// resolved by server-side lookup rather than signature verification.
package cache

import (
	"context"
	"time"
)

// ReferenceToken is the stored state behind a reference access token
// handle.
type ReferenceToken struct {
	ID        string    `json:"id" redis:"id"`
	ClientID  string    `json:"client_id" redis:"clientId"`
	SubjectID string    `json:"subject_id,omitempty" redis:"subjectId"`
	SessionID string    `json:"session_id,omitempty" redis:"sessionId"`
	Scopes    []string  `json:"scopes" redis:"scopes"`
	ExpiresAt time.Time `json:"expires_at" redis:"expiresAt"`
	CreatedAt time.Time `json:"created_at" redis:"createdAt"`
	Revoked   bool      `json:"revoked" redis:"revoked"`
}

// Active reports whether the token is usable at now.
func (t *ReferenceToken) Active(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

//go:generate mockgen -source=$GOFILE -destination=../mocks/mock_$GOPACKAGE/mock_$GOFILE -package=mock_$GOPACKAGE
type ReferenceTokenStore interface {
	// Set stores token state under the hashed handle.
	Set(ctx context.Context, handle string, token *ReferenceToken) error

	// Get returns the stored state, or nil when the handle is unknown.
	Get(ctx context.Context, handle string) (*ReferenceToken, error)

	// Revoke marks the handle invalid. Unknown or already revoked handles
	// are a no-op success.
	Revoke(ctx context.Context, handle string) error

	Delete(ctx context.Context, handle string) error
	DeleteExpired(ctx context.Context) error
	Count(ctx context.Context) int
}

// SessionRevoker is an optional store capability: it revokes every token
// tracked under a subject/client/session triple. Callers discover it by
// interface assertion; stores without it leave dependent tokens alone.
type SessionRevoker interface {
	RevokeSession(ctx context.Context, subjectID, clientID, sessionID string) (int, error)
}
