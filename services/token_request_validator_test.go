package services

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-auth/halcyon/cache"
	"github.com/halcyon-auth/halcyon/domain"
	"github.com/halcyon-auth/halcyon/events"
	"github.com/halcyon-auth/halcyon/log"
	"github.com/halcyon-auth/halcyon/memory"
)

type tokenValidatorFixture struct {
	validator *TokenRequestValidator
	grants    *memory.GrantStore
	users     *memory.UserAuthenticator
}

func newTokenValidatorFixture(t *testing.T) *tokenValidatorFixture {
	t.Helper()
	logger := log.NewNop()
	grants := memory.NewGrantStore()
	t.Cleanup(func() { _ = grants.Close() })

	users := memory.NewUserAuthenticator()
	require.NoError(t, users.AddUser("alice", "s3cret", domain.Subject{ID: "subj-alice"}))

	resources := NewResourceService(testResources(t), logger)
	return &tokenValidatorFixture{
		validator: NewTokenRequestValidator(grants, grants, users, resources, TokenRequestValidatorOptions{}, events.NewNopSink(), logger),
		grants:    grants,
		users:     users,
	}
}

func codeClient() *domain.Client {
	return &domain.Client{
		ID:                "web-app",
		Enabled:           true,
		AllowedScopes:     []string{"openid", "profile", "api1", "offline_access"},
		AllowedGrantTypes: []string{domain.GrantAuthorizationCode, domain.GrantRefreshToken},
	}
}

func machineClient() *domain.Client {
	return &domain.Client{
		ID:                "machine",
		Enabled:           true,
		AllowedScopes:     []string{"api1"},
		AllowedGrantTypes: []string{domain.GrantClientCredentials},
	}
}

func storedCode(t *testing.T, f *tokenValidatorFixture, code *domain.AuthorizationCode) {
	t.Helper()
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now()
	}
	if code.Lifetime == 0 {
		code.Lifetime = 5 * time.Minute
	}
	require.NoError(t, f.grants.StoreCode(context.Background(), code))
}

func TestTokenRequestValidator_GrantTypeChecks(t *testing.T) {
	f := newTokenValidatorFixture(t)
	client := codeClient()

	t.Run("missing grant_type", func(t *testing.T) {
		_, oe, err := f.validator.Validate(context.Background(), url.Values{}, client)
		require.NoError(t, err)
		require.NotNil(t, oe)
		assert.Equal(t, "invalid_request", oe.Code)
	})

	t.Run("unknown grant_type", func(t *testing.T) {
		params := url.Values{"grant_type": {"urn:ietf:params:oauth:grant-type:device_code"}}
		_, oe, err := f.validator.Validate(context.Background(), params, client)
		require.NoError(t, err)
		require.NotNil(t, oe)
		assert.Equal(t, "unsupported_grant_type", oe.Code)
	})

	t.Run("grant not allowed for client", func(t *testing.T) {
		params := url.Values{"grant_type": {"client_credentials"}}
		_, oe, err := f.validator.Validate(context.Background(), params, client)
		require.NoError(t, err)
		require.NotNil(t, oe)
		assert.Equal(t, "unauthorized_client", oe.Code)
	})
}

func TestTokenRequestValidator_AuthorizationCode(t *testing.T) {
	f := newTokenValidatorFixture(t)
	client := codeClient()

	storedCode(t, f, &domain.AuthorizationCode{
		Handle:          "code-1",
		ClientID:        "web-app",
		SubjectID:       "subj-1",
		SessionID:       "sess-1",
		RedirectURI:     testRedirectURI,
		RequestedScopes: []string{"openid", "api1"},
		Nonce:           "n-1",
	})

	params := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {"code-1"},
		"redirect_uri": {testRedirectURI},
	}

	req, oe, err := f.validator.Validate(context.Background(), params, client)
	require.NoError(t, err)
	require.Nil(t, oe)
	require.NotNil(t, req.Code)

	assert.Equal(t, "subj-1", req.SubjectID)
	assert.Equal(t, "sess-1", req.SessionID)
	assert.Equal(t, []string{"openid", "api1"}, req.Scopes)
	assert.Equal(t, "n-1", req.Nonce)
	assert.Equal(t, []string{"inventory"}, req.Resources.Audiences())

	t.Run("second redemption fails", func(t *testing.T) {
		_, oe, err := f.validator.Validate(context.Background(), params, client)
		require.NoError(t, err)
		require.NotNil(t, oe)
		assert.Equal(t, "invalid_grant", oe.Code)
	})
}

func TestTokenRequestValidator_AuthorizationCodeRejections(t *testing.T) {
	f := newTokenValidatorFixture(t)
	client := codeClient()

	storedCode(t, f, &domain.AuthorizationCode{
		Handle:          "other-client-code",
		ClientID:        "someone-else",
		RedirectURI:     testRedirectURI,
		RequestedScopes: []string{"api1"},
	})
	storedCode(t, f, &domain.AuthorizationCode{
		Handle:          "expired-code",
		ClientID:        "web-app",
		RedirectURI:     testRedirectURI,
		RequestedScopes: []string{"api1"},
		CreatedAt:       time.Now().Add(-10 * time.Minute),
		Lifetime:        5 * time.Minute,
	})
	storedCode(t, f, &domain.AuthorizationCode{
		Handle:          "redirect-code",
		ClientID:        "web-app",
		RedirectURI:     testRedirectURI,
		RequestedScopes: []string{"api1"},
	})

	tests := []struct {
		name   string
		params url.Values
	}{
		{"unknown code", url.Values{
			"grant_type": {"authorization_code"}, "code": {"ghost"}, "redirect_uri": {testRedirectURI},
		}},
		{"code bound to another client", url.Values{
			"grant_type": {"authorization_code"}, "code": {"other-client-code"}, "redirect_uri": {testRedirectURI},
		}},
		{"expired code", url.Values{
			"grant_type": {"authorization_code"}, "code": {"expired-code"}, "redirect_uri": {testRedirectURI},
		}},
		{"redirect_uri mismatch", url.Values{
			"grant_type": {"authorization_code"}, "code": {"redirect-code"}, "redirect_uri": {"https://evil.example.com/cb"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, oe, err := f.validator.Validate(context.Background(), tt.params, client)
			require.NoError(t, err)
			require.NotNil(t, oe)
			assert.Equal(t, "invalid_grant", oe.Code)
			assert.Equal(t, "invalid or expired grant", oe.Description)
		})
	}
}

func TestTokenRequestValidator_CodeVerifierRoundTrip(t *testing.T) {
	f := newTokenValidatorFixture(t)
	client := codeClient()
	verifier := strings.Repeat("x", 43)

	storedCode(t, f, &domain.AuthorizationCode{
		Handle:              "pkce-code",
		ClientID:            "web-app",
		RedirectURI:         testRedirectURI,
		RequestedScopes:     []string{"api1"},
		CodeChallenge:       cache.HashToken(verifier),
		CodeChallengeMethod: domain.CodeChallengePlain,
	})

	params := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {"pkce-code"},
		"redirect_uri":  {testRedirectURI},
		"code_verifier": {verifier + "tampered"},
	}
	_, oe, err := f.validator.Validate(context.Background(), params, client)
	require.NoError(t, err)
	require.NotNil(t, oe)
	assert.Equal(t, "invalid_grant", oe.Code)
}

func TestTokenRequestValidator_DoubleRedemptionSingleWinner(t *testing.T) {
	f := newTokenValidatorFixture(t)
	client := codeClient()

	storedCode(t, f, &domain.AuthorizationCode{
		Handle:          "contested",
		ClientID:        "web-app",
		RedirectURI:     testRedirectURI,
		RequestedScopes: []string{"api1"},
	})

	params := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {"contested"},
		"redirect_uri": {testRedirectURI},
	}

	const racers = 16
	var wg sync.WaitGroup
	results := make([]*domain.ValidatedTokenRequest, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req, _, err := f.validator.Validate(context.Background(), params, client)
			assert.NoError(t, err)
			results[i] = req
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, req := range results {
		if req != nil {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}

func TestTokenRequestValidator_ClientCredentials(t *testing.T) {
	f := newTokenValidatorFixture(t)
	client := machineClient()

	t.Run("defaults to registered scopes", func(t *testing.T) {
		params := url.Values{"grant_type": {"client_credentials"}}
		req, oe, err := f.validator.Validate(context.Background(), params, client)
		require.NoError(t, err)
		require.Nil(t, oe)
		assert.Empty(t, req.SubjectID)
		assert.Equal(t, []string{"api1"}, req.Scopes)
	})

	t.Run("offline_access rejected", func(t *testing.T) {
		offline := machineClient()
		offline.AllowedScopes = append(offline.AllowedScopes, "offline_access")
		params := url.Values{
			"grant_type": {"client_credentials"},
			"scope":      {"api1 offline_access"},
		}
		_, oe, err := f.validator.Validate(context.Background(), params, offline)
		require.NoError(t, err)
		require.NotNil(t, oe)
		assert.Equal(t, "invalid_scope", oe.Code)
	})

	t.Run("identity scopes rejected", func(t *testing.T) {
		withOpenID := machineClient()
		withOpenID.AllowedScopes = append(withOpenID.AllowedScopes, "openid")
		params := url.Values{
			"grant_type": {"client_credentials"},
			"scope":      {"openid api1"},
		}
		_, oe, err := f.validator.Validate(context.Background(), params, withOpenID)
		require.NoError(t, err)
		require.NotNil(t, oe)
		assert.Equal(t, "invalid_scope", oe.Code)
	})
}

func TestTokenRequestValidator_Password(t *testing.T) {
	f := newTokenValidatorFixture(t)
	client := &domain.Client{
		ID:                "trusted-app",
		Enabled:           true,
		AllowedScopes:     []string{"openid", "api1"},
		AllowedGrantTypes: []string{domain.GrantPassword},
	}

	t.Run("valid credentials", func(t *testing.T) {
		params := url.Values{
			"grant_type": {"password"},
			"username":   {"alice"},
			"password":   {"s3cret"},
			"scope":      {"openid api1"},
		}
		req, oe, err := f.validator.Validate(context.Background(), params, client)
		require.NoError(t, err)
		require.Nil(t, oe)
		assert.Equal(t, "subj-alice", req.SubjectID)
	})

	t.Run("wrong password and unknown user are indistinguishable", func(t *testing.T) {
		for _, creds := range [][2]string{{"alice", "wrong"}, {"nobody", "s3cret"}} {
			params := url.Values{
				"grant_type": {"password"},
				"username":   {creds[0]},
				"password":   {creds[1]},
			}
			_, oe, err := f.validator.Validate(context.Background(), params, client)
			require.NoError(t, err)
			require.NotNil(t, oe)
			assert.Equal(t, "invalid_grant", oe.Code)
			assert.Equal(t, "invalid or expired grant", oe.Description)
		}
	})

	t.Run("missing credentials", func(t *testing.T) {
		params := url.Values{"grant_type": {"password"}, "username": {"alice"}}
		_, oe, err := f.validator.Validate(context.Background(), params, client)
		require.NoError(t, err)
		require.NotNil(t, oe)
		assert.Equal(t, "invalid_request", oe.Code)
	})
}

func TestTokenRequestValidator_RefreshToken(t *testing.T) {
	newToken := func(handle string, oneTime bool) *domain.RefreshToken {
		return &domain.RefreshToken{
			Handle:     handle,
			ClientID:   "web-app",
			SubjectID:  "subj-1",
			Scopes:     []string{"openid", "api1", "offline_access"},
			CreatedAt:  time.Now(),
			LastUsedAt: time.Now(),
			Lifetime:   time.Hour,
			OneTimeUse: oneTime,
		}
	}

	t.Run("reusable token stays valid", func(t *testing.T) {
		f := newTokenValidatorFixture(t)
		require.NoError(t, f.grants.StoreRefreshToken(context.Background(), newToken("rt-reuse", false)))

		params := url.Values{"grant_type": {"refresh_token"}, "refresh_token": {"rt-reuse"}}
		for i := 0; i < 2; i++ {
			req, oe, err := f.validator.Validate(context.Background(), params, codeClient())
			require.NoError(t, err)
			require.Nil(t, oe)
			assert.Empty(t, req.RotatedHandle)
			assert.Equal(t, "subj-1", req.SubjectID)
		}
	})

	t.Run("one-time token rotates", func(t *testing.T) {
		f := newTokenValidatorFixture(t)
		require.NoError(t, f.grants.StoreRefreshToken(context.Background(), newToken("rt-once", true)))

		params := url.Values{"grant_type": {"refresh_token"}, "refresh_token": {"rt-once"}}
		req, oe, err := f.validator.Validate(context.Background(), params, codeClient())
		require.NoError(t, err)
		require.Nil(t, oe)
		require.NotEmpty(t, req.RotatedHandle)
		assert.NotEqual(t, "rt-once", req.RotatedHandle)

		// The replacement handle redeems, the spent one does not.
		_, oe, err = f.validator.Validate(context.Background(), params, codeClient())
		require.NoError(t, err)
		require.NotNil(t, oe)
		assert.Equal(t, "invalid_grant", oe.Code)

		params.Set("refresh_token", req.RotatedHandle)
		_, oe, err = f.validator.Validate(context.Background(), params, codeClient())
		require.NoError(t, err)
		assert.Nil(t, oe)
	})

	t.Run("scope may narrow but not widen", func(t *testing.T) {
		f := newTokenValidatorFixture(t)
		require.NoError(t, f.grants.StoreRefreshToken(context.Background(), newToken("rt-scope", false)))

		params := url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {"rt-scope"},
			"scope":         {"api1"},
		}
		req, oe, err := f.validator.Validate(context.Background(), params, codeClient())
		require.NoError(t, err)
		require.Nil(t, oe)
		assert.Equal(t, []string{"api1"}, req.Scopes)

		params.Set("scope", "api1 profile")
		_, oe, err = f.validator.Validate(context.Background(), params, codeClient())
		require.NoError(t, err)
		require.NotNil(t, oe)
		assert.Equal(t, "invalid_scope", oe.Code)
	})

	t.Run("expired by idle timeout", func(t *testing.T) {
		f := newTokenValidatorFixture(t)
		stale := newToken("rt-idle", false)
		stale.IdleTimeout = 10 * time.Minute
		stale.LastUsedAt = time.Now().Add(-time.Hour)
		require.NoError(t, f.grants.StoreRefreshToken(context.Background(), stale))

		params := url.Values{"grant_type": {"refresh_token"}, "refresh_token": {"rt-idle"}}
		_, oe, err := f.validator.Validate(context.Background(), params, codeClient())
		require.NoError(t, err)
		require.NotNil(t, oe)
		assert.Equal(t, "invalid_grant", oe.Code)
	})

	t.Run("token bound to another client", func(t *testing.T) {
		f := newTokenValidatorFixture(t)
		foreign := newToken("rt-foreign", false)
		foreign.ClientID = "someone-else"
		require.NoError(t, f.grants.StoreRefreshToken(context.Background(), foreign))

		params := url.Values{"grant_type": {"refresh_token"}, "refresh_token": {"rt-foreign"}}
		_, oe, err := f.validator.Validate(context.Background(), params, codeClient())
		require.NoError(t, err)
		require.NotNil(t, oe)
		assert.Equal(t, "invalid_grant", oe.Code)
	})
}
