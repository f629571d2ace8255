package services

import (
	"context"
	"strings"
	"time"

	"github.com/halcyon-auth/halcyon/cache"
	"github.com/halcyon-auth/halcyon/domain"
	"github.com/halcyon-auth/halcyon/events"
	"github.com/halcyon-auth/halcyon/log"
)

// Token type hints accepted by Revoke.
const (
	HintAccessToken  = "access_token"
	HintRefreshToken = "refresh_token"
)

// RevocationService invalidates issued tokens and answers introspection
// queries. Only reference access tokens and refresh tokens are server-side
// state; self-contained JWTs cannot be revoked and introspect as unknown.
type RevocationService struct {
	refresh    domain.RefreshTokenStore
	references cache.ReferenceTokenStore
	issuer     string
	sink       events.Sink
	logger     log.Logger
	now        func() time.Time
}

func NewRevocationService(
	refresh domain.RefreshTokenStore,
	references cache.ReferenceTokenStore,
	issuer string,
	sink events.Sink,
	logger log.Logger,
) *RevocationService {
	return &RevocationService{
		refresh:    refresh,
		references: references,
		issuer:     issuer,
		sink:       sink,
		logger:     logger,
		now:        time.Now,
	}
}

// Revoke invalidates the token behind handle on behalf of client. The hint
// orders the lookup but never restricts it. Unknown handles and handles
// owned by a different client succeed silently so that callers cannot probe
// for token existence.
func (s *RevocationService) Revoke(ctx context.Context, client *domain.Client, handle, hint string) error {
	lookups := []func(context.Context, *domain.Client, string) (bool, error){
		s.revokeRefreshToken, s.revokeReferenceToken,
	}
	if hint == HintAccessToken {
		lookups[0], lookups[1] = lookups[1], lookups[0]
	}

	for _, revoke := range lookups {
		found, err := revoke(ctx, client, handle)
		if err != nil {
			return err
		}
		if found {
			s.sink.Raise(ctx, events.Event{
				Name:     events.TokenRevoked,
				ClientID: client.ID,
			})
			return nil
		}
	}
	return nil
}

// revokeRefreshToken revokes a refresh token owned by client. Revoking the
// grant also tears down the reference access tokens issued under the same
// session when the reference store supports it.
func (s *RevocationService) revokeRefreshToken(ctx context.Context, client *domain.Client, handle string) (bool, error) {
	token, err := s.refresh.GetRefreshToken(ctx, handle)
	if err != nil {
		return false, err
	}
	if token == nil || token.ClientID != client.ID {
		return false, nil
	}
	if err := s.refresh.RevokeRefreshToken(ctx, handle); err != nil {
		return false, err
	}

	if revoker, ok := s.references.(cache.SessionRevoker); ok && token.SessionID != "" {
		n, err := revoker.RevokeSession(ctx, token.SubjectID, token.ClientID, token.SessionID)
		if err != nil {
			s.logger.Warn(ctx, "failed to cascade revocation to session access tokens",
				map[string]interface{}{"client_id": client.ID})
		} else if n > 0 {
			s.logger.Info(ctx, "revoked session access tokens alongside refresh token",
				map[string]interface{}{"client_id": client.ID, "count": n})
		}
	}
	return true, nil
}

func (s *RevocationService) revokeReferenceToken(ctx context.Context, client *domain.Client, handle string) (bool, error) {
	if s.references == nil {
		return false, nil
	}
	token, err := s.references.Get(ctx, handle)
	if err != nil {
		return false, err
	}
	if token == nil || token.ClientID != client.ID {
		return false, nil
	}
	return true, s.references.Revoke(ctx, handle)
}

// IntrospectionResult is the RFC 7662 response body for a token query.
//
//nolint:tagliatelle
type IntrospectionResult struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	SubjectID string `json:"sub,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	ExpiresAt int64  `json:"exp,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
	SessionID string `json:"sid,omitempty"`
	ID        string `json:"jti,omitempty"`
	Issuer    string `json:"iss,omitempty"`
}

// Introspect resolves a handle to its live state. Unknown, expired and
// revoked handles all produce the same inactive result.
func (s *RevocationService) Introspect(ctx context.Context, handle string) (*IntrospectionResult, error) {
	if s.references != nil {
		token, err := s.references.Get(ctx, handle)
		if err != nil {
			return nil, err
		}
		if token != nil {
			if !token.Active(s.now()) {
				return &IntrospectionResult{}, nil
			}
			return &IntrospectionResult{
				Active:    true,
				Scope:     strings.Join(token.Scopes, " "),
				ClientID:  token.ClientID,
				SubjectID: token.SubjectID,
				TokenType: HintAccessToken,
				ExpiresAt: token.ExpiresAt.Unix(),
				IssuedAt:  token.CreatedAt.Unix(),
				SessionID: token.SessionID,
				ID:        token.ID,
				Issuer:    s.issuer,
			}, nil
		}
	}

	token, err := s.refresh.GetRefreshToken(ctx, handle)
	if err != nil {
		return nil, err
	}
	if token == nil || token.Revoked || token.Expired(s.now()) {
		return &IntrospectionResult{}, nil
	}
	return &IntrospectionResult{
		Active:    true,
		Scope:     strings.Join(token.Scopes, " "),
		ClientID:  token.ClientID,
		SubjectID: token.SubjectID,
		TokenType: HintRefreshToken,
		ExpiresAt: token.CreatedAt.Add(token.Lifetime).Unix(),
		IssuedAt:  token.CreatedAt.Unix(),
		SessionID: token.SessionID,
		Issuer:    s.issuer,
	}, nil
}
