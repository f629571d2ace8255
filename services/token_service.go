package services

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/halcyon-auth/halcyon/cache"
	"github.com/halcyon-auth/halcyon/domain"
	serrors "github.com/halcyon-auth/halcyon/errors"
	"github.com/halcyon-auth/halcyon/events"
	"github.com/halcyon-auth/halcyon/internal/param"
	"github.com/halcyon-auth/halcyon/log"
)

// Default lifetimes applied when the client registration leaves them zero.
const (
	DefaultAccessTokenLifetime   = time.Hour
	DefaultIdentityTokenLifetime = 5 * time.Minute
	DefaultRefreshTokenLifetime  = 30 * 24 * time.Hour
)

// ClaimsDecorator extends an assembled token before it is serialized.
// Decorators run after the audience set is populated and before signing, so
// they may append audiences and claims but can rely on the standard ones
// being in place.
type ClaimsDecorator interface {
	Decorate(ctx context.Context, token *domain.Token, req *domain.ValidatedTokenRequest) error
}

// TokenService assembles, signs and records tokens for validated requests.
type TokenService struct {
	issuer     string
	keys       KeyMaterialService
	refresh    domain.RefreshTokenStore
	references cache.ReferenceTokenStore
	decorators []ClaimsDecorator
	sink       events.Sink
	logger     log.Logger
	now        func() time.Time
}

// NewTokenService creates a token service. references may be nil when no
// client uses reference tokens.
func NewTokenService(
	issuer string,
	keys KeyMaterialService,
	refresh domain.RefreshTokenStore,
	references cache.ReferenceTokenStore,
	sink events.Sink,
	logger log.Logger,
	decorators ...ClaimsDecorator,
) *TokenService {
	return &TokenService{
		issuer:     issuer,
		keys:       keys,
		refresh:    refresh,
		references: references,
		decorators: decorators,
		sink:       sink,
		logger:     logger,
		now:        time.Now,
	}
}

// CreateAccessToken assembles the access token for a validated request and
// runs the decorator chain.
func (s *TokenService) CreateAccessToken(ctx context.Context, req *domain.ValidatedTokenRequest) (*domain.Token, error) {
	lifetime := req.Client.AccessTokenLifetime
	if lifetime <= 0 {
		lifetime = DefaultAccessTokenLifetime
	}

	token := &domain.Token{
		ID:           uuid.NewString(),
		Type:         domain.TokenTypeAccess,
		Issuer:       s.issuer,
		ClientID:     req.Client.ID,
		SubjectID:    req.SubjectID,
		SessionID:    req.SessionID,
		Scopes:       req.Scopes,
		IssuedAt:     s.now(),
		Lifetime:     lifetime,
		Confirmation: req.Confirmation,
	}
	for _, aud := range req.Resources.Audiences() {
		token.AddAudience(aud)
	}

	for _, d := range s.decorators {
		if err := d.Decorate(ctx, token, req); err != nil {
			return nil, err
		}
	}
	return token, nil
}

// CreateIdentityToken assembles the id_token for a validated request. The
// audience is the requesting client itself.
func (s *TokenService) CreateIdentityToken(ctx context.Context, req *domain.ValidatedTokenRequest) (*domain.Token, error) {
	lifetime := req.Client.IdentityTokenLifetime
	if lifetime <= 0 {
		lifetime = DefaultIdentityTokenLifetime
	}

	token := &domain.Token{
		ID:        uuid.NewString(),
		Type:      domain.TokenTypeIdentity,
		Issuer:    s.issuer,
		ClientID:  req.Client.ID,
		SubjectID: req.SubjectID,
		SessionID: req.SessionID,
		Audiences: []string{req.Client.ID},
		IssuedAt:  s.now(),
		Lifetime:  lifetime,
		Nonce:     req.Nonce,
	}

	for _, d := range s.decorators {
		if err := d.Decorate(ctx, token, req); err != nil {
			return nil, err
		}
	}
	return token, nil
}

// Sign serializes a token as a signed JWT.
func (s *TokenService) Sign(ctx context.Context, token *domain.Token) (string, error) {
	credential, err := s.keys.GetSigningCredential(ctx)
	if err != nil {
		return "", err
	}

	now := token.IssuedAt
	claims := jwt.MapClaims{
		"iss": token.Issuer,
		"jti": token.ID,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": token.ExpiresAt().Unix(),
	}
	if token.ClientID != "" {
		claims["client_id"] = token.ClientID
	}
	if token.SubjectID != "" {
		claims["sub"] = token.SubjectID
	}
	if token.SessionID != "" {
		claims["sid"] = token.SessionID
	}
	if len(token.Audiences) == 1 {
		claims["aud"] = token.Audiences[0]
	} else if len(token.Audiences) > 1 {
		claims["aud"] = token.Audiences
	}
	if token.Type == domain.TokenTypeAccess && len(token.Scopes) > 0 {
		claims["scope"] = strings.Join(token.Scopes, " ")
	}
	if token.Nonce != "" {
		claims["nonce"] = token.Nonce
	}
	if token.Confirmation != "" {
		claims["cnf"] = map[string]string{"jkt": token.Confirmation}
	}

	// Repeated claim types accumulate into an array rather than
	// overwriting.
	for _, c := range token.Claims {
		switch existing := claims[c.Type].(type) {
		case nil:
			claims[c.Type] = c.Value
		case string:
			claims[c.Type] = []string{existing, c.Value}
		case []string:
			claims[c.Type] = append(existing, c.Value)
		}
	}

	jot := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	jot.Header["kid"] = credential.KeyID
	if token.Type == domain.TokenTypeAccess {
		jot.Header["typ"] = "at+jwt"
	}
	return jot.SignedString(credential.Key)
}

// IssueTokenResponse turns a validated token request into the full token
// endpoint response: access token (signed or reference), id_token when the
// grant carries openid, and a refresh token when offline_access applies.
func (s *TokenService) IssueTokenResponse(ctx context.Context, req *domain.ValidatedTokenRequest) (*domain.TokenResponse, error) {
	access, err := s.CreateAccessToken(ctx, req)
	if err != nil {
		return nil, err
	}

	resp := &domain.TokenResponse{
		TokenType: "Bearer",
		ExpiresIn: int64(access.Lifetime / time.Second),
		Scope:     strings.Join(req.Scopes, " "),
	}

	if req.Client.AccessTokenType == domain.AccessTokenReference {
		resp.AccessToken, err = s.issueReferenceToken(ctx, access)
	} else {
		resp.AccessToken, err = s.Sign(ctx, access)
	}
	if err != nil {
		return nil, err
	}

	if s.wantsIdentityToken(req) {
		identity, err := s.CreateIdentityToken(ctx, req)
		if err != nil {
			return nil, err
		}
		resp.IdentityToken, err = s.Sign(ctx, identity)
		if err != nil {
			return nil, err
		}
	}

	refreshHandle, err := s.refreshHandle(ctx, req)
	if err != nil {
		return nil, err
	}
	resp.RefreshToken = refreshHandle

	s.sink.Raise(ctx, events.Event{
		Name:      events.TokenIssued,
		ClientID:  req.Client.ID,
		SubjectID: req.SubjectID,
		Detail:    map[string]any{"grant_type": req.GrantType, "scope": resp.Scope},
	})
	return resp, nil
}

func (s *TokenService) issueReferenceToken(ctx context.Context, token *domain.Token) (string, error) {
	if s.references == nil {
		return "", serrors.NewConfigError(
			"client %s requires reference tokens but no reference store is configured", token.ClientID)
	}
	handle, err := NewHandle()
	if err != nil {
		return "", err
	}
	err = s.references.Set(ctx, handle, &cache.ReferenceToken{
		ID:        token.ID,
		ClientID:  token.ClientID,
		SubjectID: token.SubjectID,
		SessionID: token.SessionID,
		Scopes:    token.Scopes,
		ExpiresAt: token.ExpiresAt(),
		CreatedAt: token.IssuedAt,
	})
	if err != nil {
		return "", err
	}
	return handle, nil
}

func (s *TokenService) wantsIdentityToken(req *domain.ValidatedTokenRequest) bool {
	if req.SubjectID == "" || !param.Contains(req.Scopes, domain.ScopeOpenID) {
		return false
	}
	return req.GrantType == domain.GrantAuthorizationCode || req.GrantType == domain.GrantRefreshToken
}

// refreshHandle returns the refresh token handle to include in the
// response: the rotated or reused handle for the refresh_token grant, a
// freshly stored grant when offline_access was just redeemed.
func (s *TokenService) refreshHandle(ctx context.Context, req *domain.ValidatedTokenRequest) (string, error) {
	if req.GrantType == domain.GrantRefreshToken {
		if req.RotatedHandle != "" {
			return req.RotatedHandle, nil
		}
		return req.RefreshToken.Handle, nil
	}

	if !param.Contains(req.Scopes, domain.ScopeOfflineAccess) || req.SubjectID == "" {
		return "", nil
	}

	handle, err := NewHandle()
	if err != nil {
		return "", err
	}
	lifetime := req.Client.RefreshTokenLifetime
	if lifetime <= 0 {
		lifetime = DefaultRefreshTokenLifetime
	}
	now := s.now()
	token := &domain.RefreshToken{
		Handle:      handle,
		ClientID:    req.Client.ID,
		SubjectID:   req.SubjectID,
		SessionID:   req.SessionID,
		Scopes:      req.Scopes,
		CreatedAt:   now,
		LastUsedAt:  now,
		Lifetime:    lifetime,
		IdleTimeout: req.Client.RefreshTokenIdleTimeout,
		OneTimeUse:  req.Client.RefreshTokenUsage == domain.RefreshTokenOneTime,
	}
	if err := s.refresh.StoreRefreshToken(ctx, token); err != nil {
		return "", err
	}
	return handle, nil
}
