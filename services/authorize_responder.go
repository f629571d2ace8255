package services

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"time"

	"github.com/halcyon-auth/halcyon/domain"
	"github.com/halcyon-auth/halcyon/events"
	"github.com/halcyon-auth/halcyon/internal/param"
	"github.com/halcyon-auth/halcyon/log"
)

// DefaultAuthorizationCodeLifetime applies when the client registration
// leaves the code lifetime zero.
const DefaultAuthorizationCodeLifetime = 5 * time.Minute

// AuthorizeResponder turns an approved authorize request into the artifacts
// named by its response type: an authorization code, an access token, an
// id_token, or a combination.
type AuthorizeResponder struct {
	codes  domain.AuthorizationCodeStore
	tokens *TokenService
	sink   events.Sink
	logger log.Logger
	now    func() time.Time
}

func NewAuthorizeResponder(
	codes domain.AuthorizationCodeStore,
	tokens *TokenService,
	sink events.Sink,
	logger log.Logger,
) *AuthorizeResponder {
	return &AuthorizeResponder{
		codes:  codes,
		tokens: tokens,
		sink:   sink,
		logger: logger,
		now:    time.Now,
	}
}

// CreateResponse issues the response for an approved request.
// grantedScopes narrows the requested scopes when consent withheld some; nil
// means everything requested was granted.
func (r *AuthorizeResponder) CreateResponse(
	ctx context.Context,
	req *domain.ValidatedAuthorizeRequest,
	subject *domain.Subject,
	grantedScopes []string,
) (*domain.AuthorizeResponse, error) {
	scopes := req.RequestedScopes
	if grantedScopes != nil {
		scopes = grantedScopes
	}

	resp := &domain.AuthorizeResponse{
		RedirectURI:  req.RedirectURI,
		ResponseMode: req.ResponseMode,
		State:        req.State,
		Scope:        strings.Join(scopes, " "),
	}

	parts := strings.Fields(req.ResponseType)

	if param.Contains(parts, "code") {
		handle, err := r.issueCode(ctx, req, subject, scopes)
		if err != nil {
			return nil, err
		}
		resp.Code = handle
	}

	// Token issuance through the front channel reuses the token service
	// with a synthetic implicit-grant request.
	var tokenReq *domain.ValidatedTokenRequest
	if param.Contains(parts, "token") || param.Contains(parts, domain.TokenTypeIdentity) {
		tokenReq = &domain.ValidatedTokenRequest{
			GrantType: domain.GrantImplicit,
			Client:    req.Client,
			SubjectID: subject.ID,
			SessionID: subject.SessionID,
			Scopes:    scopes,
			Resources: req.Resources,
			Nonce:     req.Nonce,
		}
	}

	if param.Contains(parts, "token") {
		access, err := r.tokens.CreateAccessToken(ctx, tokenReq)
		if err != nil {
			return nil, err
		}
		resp.AccessToken, err = r.tokens.Sign(ctx, access)
		if err != nil {
			return nil, err
		}
		resp.TokenType = "Bearer"
		resp.ExpiresIn = int64(access.Lifetime / time.Second)
	}

	if param.Contains(parts, domain.TokenTypeIdentity) {
		identity, err := r.tokens.CreateIdentityToken(ctx, tokenReq)
		if err != nil {
			return nil, err
		}
		// Hybrid responses bind the id_token to its sibling artifacts.
		if resp.Code != "" {
			identity.AddClaim("c_hash", leftHalfHash(resp.Code))
		}
		if resp.AccessToken != "" {
			identity.AddClaim("at_hash", leftHalfHash(resp.AccessToken))
		}
		resp.IdentityToken, err = r.tokens.Sign(ctx, identity)
		if err != nil {
			return nil, err
		}
	}

	r.sink.Raise(ctx, events.Event{
		Name:      events.AuthorizeSuccess,
		ClientID:  req.Client.ID,
		SubjectID: subject.ID,
		Detail:    map[string]any{"response_type": req.ResponseType, "scope": resp.Scope},
	})
	return resp, nil
}

func (r *AuthorizeResponder) issueCode(
	ctx context.Context,
	req *domain.ValidatedAuthorizeRequest,
	subject *domain.Subject,
	scopes []string,
) (string, error) {
	handle, err := NewHandle()
	if err != nil {
		return "", err
	}
	lifetime := req.Client.AuthorizationCodeLifetime
	if lifetime <= 0 {
		lifetime = DefaultAuthorizationCodeLifetime
	}
	code := &domain.AuthorizationCode{
		Handle:              handle,
		ClientID:            req.Client.ID,
		SubjectID:           subject.ID,
		SessionID:           subject.SessionID,
		RedirectURI:         req.RedirectURI,
		RequestedScopes:     scopes,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		Nonce:               req.Nonce,
		State:               req.State,
		CreatedAt:           r.now(),
		Lifetime:            lifetime,
	}
	if err := r.codes.StoreCode(ctx, code); err != nil {
		return "", err
	}
	return handle, nil
}

// leftHalfHash computes the OIDC token hash claim value: the left half of
// the SHA-256 digest, base64url without padding. SHA-256 matches the RS256
// signing algorithm in use.
func leftHalfHash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2])
}
