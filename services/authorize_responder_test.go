package services

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-auth/halcyon/cache"
	"github.com/halcyon-auth/halcyon/domain"
	"github.com/halcyon-auth/halcyon/events"
	"github.com/halcyon-auth/halcyon/log"
)

func newResponderFixture(t *testing.T) (*AuthorizeResponder, *tokenServiceFixture) {
	t.Helper()
	f := newTokenServiceFixture(t)
	responder := NewAuthorizeResponder(f.grants, f.service, events.NewNopSink(), log.NewNop())
	return responder, f
}

func approvedRequest() *domain.ValidatedAuthorizeRequest {
	return &domain.ValidatedAuthorizeRequest{
		Client: &domain.Client{
			ID:                          "web-app",
			Enabled:                     true,
			AllowedGrantTypes:           []string{domain.GrantAuthorizationCode, domain.GrantImplicit},
			AllowAccessTokensViaBrowser: true,
		},
		ResponseType:    "code",
		ResponseMode:    domain.ResponseModeQuery,
		RedirectURI:     testRedirectURI,
		RequestedScopes: []string{"openid", "api1"},
		Resources: domain.Resources{
			ApiScopes:    []domain.ApiScope{{Name: "api1", Enabled: true}},
			ApiResources: []domain.ApiResource{{Name: "inventory", Scopes: []string{"api1"}, Enabled: true}},
		},
		State: "xyz",
		Nonce: "n-1",
	}
}

func TestAuthorizeResponder_CodeFlow(t *testing.T) {
	responder, f := newResponderFixture(t)
	req := approvedRequest()
	req.CodeChallenge = cache.HashToken("some-challenge-value-with-enough-length-43c")
	req.CodeChallengeMethod = domain.CodeChallengeS256

	resp, err := responder.CreateResponse(context.Background(), req, authenticatedSubject(), nil)
	require.NoError(t, err)

	assert.NotEmpty(t, resp.Code)
	assert.Empty(t, resp.AccessToken)
	assert.Empty(t, resp.IdentityToken)
	assert.Equal(t, "xyz", resp.State)
	assert.Equal(t, domain.ResponseModeQuery, resp.ResponseMode)
	assert.Equal(t, testRedirectURI, resp.RedirectURI)

	// The stored grant carries everything redemption needs.
	stored, err := f.grants.ConsumeCode(context.Background(), resp.Code)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "web-app", stored.ClientID)
	assert.Equal(t, "subj-1", stored.SubjectID)
	assert.Equal(t, "sess-1", stored.SessionID)
	assert.Equal(t, []string{"openid", "api1"}, stored.RequestedScopes)
	assert.Equal(t, req.CodeChallenge, stored.CodeChallenge)
	assert.Equal(t, "n-1", stored.Nonce)
	assert.Equal(t, DefaultAuthorizationCodeLifetime, stored.Lifetime)
}

func TestAuthorizeResponder_GrantedScopesNarrowTheCode(t *testing.T) {
	responder, f := newResponderFixture(t)

	resp, err := responder.CreateResponse(context.Background(), approvedRequest(), authenticatedSubject(),
		[]string{"openid"})
	require.NoError(t, err)
	assert.Equal(t, "openid", resp.Scope)

	stored, err := f.grants.ConsumeCode(context.Background(), resp.Code)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, []string{"openid"}, stored.RequestedScopes)
}

func TestAuthorizeResponder_ImplicitFlow(t *testing.T) {
	responder, f := newResponderFixture(t)
	req := approvedRequest()
	req.ResponseType = "id_token token"
	req.ResponseMode = domain.ResponseModeFragment

	resp, err := responder.CreateResponse(context.Background(), req, authenticatedSubject(), nil)
	require.NoError(t, err)

	assert.Empty(t, resp.Code)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.IdentityToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.NotZero(t, resp.ExpiresIn)

	claims := f.parseJWT(t, resp.IdentityToken)
	assert.Equal(t, "n-1", claims["nonce"])

	// at_hash binds the id_token to its sibling access token.
	sum := sha256.Sum256([]byte(resp.AccessToken))
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:16]), claims["at_hash"])
	_, hasCHash := claims["c_hash"]
	assert.False(t, hasCHash)
}

func TestAuthorizeResponder_HybridFlow(t *testing.T) {
	responder, f := newResponderFixture(t)
	req := approvedRequest()
	req.ResponseType = "code id_token"
	req.ResponseMode = domain.ResponseModeFragment

	resp, err := responder.CreateResponse(context.Background(), req, authenticatedSubject(), nil)
	require.NoError(t, err)

	require.NotEmpty(t, resp.Code)
	require.NotEmpty(t, resp.IdentityToken)
	assert.Empty(t, resp.AccessToken)

	claims := f.parseJWT(t, resp.IdentityToken)
	sum := sha256.Sum256([]byte(resp.Code))
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:16]), claims["c_hash"])
}
