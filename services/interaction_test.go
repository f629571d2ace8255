package services

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-auth/halcyon/domain"
	serrors "github.com/halcyon-auth/halcyon/errors"
	"github.com/halcyon-auth/halcyon/events"
	"github.com/halcyon-auth/halcyon/log"
	"github.com/halcyon-auth/halcyon/memory"
)

var testInteractionURLs = domain.InteractionURLs{
	LoginURL:         "https://auth.example.com/login",
	ConsentURL:       "https://auth.example.com/consent",
	CreateAccountURL: "https://auth.example.com/signup",
}

func newTestInteractor(consents ConsentStore, validateTenant bool) *Interactor {
	return NewInteractor(testInteractionURLs, consents, validateTenant, events.NewNopSink(), log.NewNop())
}

func authorizedRequest() *domain.ValidatedAuthorizeRequest {
	return &domain.ValidatedAuthorizeRequest{
		Client: &domain.Client{
			ID:                "web-app",
			Enabled:           true,
			AllowedGrantTypes: []string{domain.GrantAuthorizationCode},
		},
		ResponseType:    "code",
		ResponseMode:    domain.ResponseModeQuery,
		RedirectURI:     testRedirectURI,
		RequestedScopes: []string{"openid", "profile", "api1"},
		Raw: url.Values{
			"client_id":     {"web-app"},
			"redirect_uri":  {testRedirectURI},
			"response_type": {"code"},
			"scope":         {"openid profile api1"},
		},
	}
}

func authenticatedSubject() *domain.Subject {
	return &domain.Subject{
		ID:                 "subj-1",
		SessionID:          "sess-1",
		IdentityProvider:   "local",
		Tenant:             "acme",
		AuthenticationTime: time.Now().Add(-time.Minute),
	}
}

func TestInteractor_AnonymousRequiresLogin(t *testing.T) {
	i := newTestInteractor(nil, false)
	req := authorizedRequest()
	req.Raw.Set("prompt", "login")
	req.PromptModes = []string{"login"}

	resp, err := i.ProcessInteraction(context.Background(), req, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.InteractionLogin, resp.Kind)
	assert.Equal(t, testInteractionURLs.LoginURL, resp.RedirectTo)

	// Carried parameters reproduce the request minus prompt, so the return
	// trip does not loop.
	assert.Equal(t, "web-app", resp.Params.Get("client_id"))
	assert.Equal(t, "openid profile api1", resp.Params.Get("scope"))
	assert.Empty(t, resp.Params.Get("prompt"))
}

func TestInteractor_PromptNoneConvertsToErrors(t *testing.T) {
	i := newTestInteractor(nil, false)

	t.Run("anonymous", func(t *testing.T) {
		req := authorizedRequest()
		req.PromptModes = []string{domain.PromptNone}

		resp, err := i.ProcessInteraction(context.Background(), req, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.InteractionError, resp.Kind)
		var oe *serrors.OAuth2Error
		require.ErrorAs(t, resp.Err, &oe)
		assert.Equal(t, "login_required", oe.Code)

		// The request validated in full, so this outcome goes back to the
		// client's redirect URI.
		var ae *serrors.AuthorizeError
		require.ErrorAs(t, resp.Err, &ae)
		assert.True(t, ae.RedirectSafe)
		assert.Equal(t, testRedirectURI, ae.RedirectURI)
		assert.Equal(t, domain.ResponseModeQuery, ae.ResponseMode)
	})

	t.Run("consent outstanding", func(t *testing.T) {
		req := authorizedRequest()
		req.Client.RequireConsent = true
		req.PromptModes = []string{domain.PromptNone}

		resp, err := i.ProcessInteraction(context.Background(), req, authenticatedSubject(), nil)
		require.NoError(t, err)
		assert.Equal(t, domain.InteractionError, resp.Kind)
		var oe *serrors.OAuth2Error
		require.ErrorAs(t, resp.Err, &oe)
		assert.Equal(t, "consent_required", oe.Code)
	})
}

func TestInteractor_PromptLoginForcesReauthentication(t *testing.T) {
	i := newTestInteractor(nil, false)
	req := authorizedRequest()
	req.PromptModes = []string{domain.PromptLogin}

	resp, err := i.ProcessInteraction(context.Background(), req, authenticatedSubject(), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.InteractionLogin, resp.Kind)
}

func TestInteractor_MaxAge(t *testing.T) {
	i := newTestInteractor(nil, false)

	t.Run("stale session", func(t *testing.T) {
		req := authorizedRequest()
		maxAge := 60
		req.MaxAge = &maxAge
		subject := authenticatedSubject()
		subject.AuthenticationTime = time.Now().Add(-10 * time.Minute)

		resp, err := i.ProcessInteraction(context.Background(), req, subject, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.InteractionLogin, resp.Kind)
	})

	t.Run("zero always reauthenticates", func(t *testing.T) {
		req := authorizedRequest()
		maxAge := 0
		req.MaxAge = &maxAge

		resp, err := i.ProcessInteraction(context.Background(), req, authenticatedSubject(), nil)
		require.NoError(t, err)
		assert.Equal(t, domain.InteractionLogin, resp.Kind)
	})

	t.Run("fresh session proceeds", func(t *testing.T) {
		req := authorizedRequest()
		maxAge := 3600
		req.MaxAge = &maxAge

		resp, err := i.ProcessInteraction(context.Background(), req, authenticatedSubject(), nil)
		require.NoError(t, err)
		assert.Equal(t, domain.InteractionProceed, resp.Kind)
	})
}

func TestInteractor_HintMismatchesForceLogin(t *testing.T) {
	t.Run("idp hint", func(t *testing.T) {
		i := newTestInteractor(nil, false)
		req := authorizedRequest()
		req.IdpHint = "google"

		resp, err := i.ProcessInteraction(context.Background(), req, authenticatedSubject(), nil)
		require.NoError(t, err)
		assert.Equal(t, domain.InteractionLogin, resp.Kind)
	})

	t.Run("subject idp outside client restrictions", func(t *testing.T) {
		i := newTestInteractor(nil, false)
		req := authorizedRequest()
		req.Client.IdentityProviderRestrictions = []string{"google"}

		// The subject authenticated with "local", which the client does
		// not accept.
		resp, err := i.ProcessInteraction(context.Background(), req, authenticatedSubject(), nil)
		require.NoError(t, err)
		assert.Equal(t, domain.InteractionLogin, resp.Kind)
	})

	t.Run("subject idp inside client restrictions", func(t *testing.T) {
		i := newTestInteractor(nil, false)
		req := authorizedRequest()
		req.Client.IdentityProviderRestrictions = []string{"local", "google"}

		resp, err := i.ProcessInteraction(context.Background(), req, authenticatedSubject(), nil)
		require.NoError(t, err)
		assert.Equal(t, domain.InteractionProceed, resp.Kind)
	})

	t.Run("tenant hint enforced only when configured", func(t *testing.T) {
		req := authorizedRequest()
		req.TenantHint = "globex"

		resp, err := newTestInteractor(nil, false).ProcessInteraction(context.Background(), req, authenticatedSubject(), nil)
		require.NoError(t, err)
		assert.Equal(t, domain.InteractionProceed, resp.Kind)

		resp, err = newTestInteractor(nil, true).ProcessInteraction(context.Background(), req, authenticatedSubject(), nil)
		require.NoError(t, err)
		assert.Equal(t, domain.InteractionLogin, resp.Kind)
	})
}

func TestInteractor_PromptCreate(t *testing.T) {
	i := newTestInteractor(nil, false)
	req := authorizedRequest()
	req.PromptModes = []string{domain.PromptCreate}

	resp, err := i.ProcessInteraction(context.Background(), req, authenticatedSubject(), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.InteractionCreateAccount, resp.Kind)
	assert.Equal(t, testInteractionURLs.CreateAccountURL, resp.RedirectTo)
}

func TestInteractor_Consent(t *testing.T) {
	t.Run("required without prior decision", func(t *testing.T) {
		i := newTestInteractor(memory.NewConsentStore(), false)
		req := authorizedRequest()
		req.Client.RequireConsent = true

		resp, err := i.ProcessInteraction(context.Background(), req, authenticatedSubject(), nil)
		require.NoError(t, err)
		assert.Equal(t, domain.InteractionConsent, resp.Kind)
		assert.Equal(t, testInteractionURLs.ConsentURL, resp.RedirectTo)
	})

	t.Run("denied", func(t *testing.T) {
		i := newTestInteractor(nil, false)
		req := authorizedRequest()
		req.Client.RequireConsent = true

		resp, err := i.ProcessInteraction(context.Background(), req, authenticatedSubject(),
			&domain.ConsentResponse{Granted: false})
		require.NoError(t, err)
		assert.Equal(t, domain.InteractionError, resp.Kind)
		var oe *serrors.OAuth2Error
		require.ErrorAs(t, resp.Err, &oe)
		assert.Equal(t, "access_denied", oe.Code)

		var ae *serrors.AuthorizeError
		require.ErrorAs(t, resp.Err, &ae)
		assert.True(t, ae.RedirectSafe)
		assert.Equal(t, testRedirectURI, ae.RedirectURI)
	})

	t.Run("partial grant narrows scopes silently", func(t *testing.T) {
		i := newTestInteractor(nil, false)
		req := authorizedRequest()
		req.Client.RequireConsent = true

		resp, err := i.ProcessInteraction(context.Background(), req, authenticatedSubject(),
			&domain.ConsentResponse{Granted: true, ScopesGranted: []string{"openid", "api1", "unrequested"}})
		require.NoError(t, err)
		assert.Equal(t, domain.InteractionProceed, resp.Kind)
		assert.Equal(t, []string{"openid", "api1"}, resp.GrantedScopes)
	})

	t.Run("remembered decision skips the page next time", func(t *testing.T) {
		consents := memory.NewConsentStore()
		i := newTestInteractor(consents, false)
		req := authorizedRequest()
		req.Client.RequireConsent = true
		subject := authenticatedSubject()

		resp, err := i.ProcessInteraction(context.Background(), req, subject,
			&domain.ConsentResponse{Granted: true, ScopesGranted: req.RequestedScopes, Remember: true})
		require.NoError(t, err)
		assert.Equal(t, domain.InteractionProceed, resp.Kind)

		resp, err = i.ProcessInteraction(context.Background(), req, subject, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.InteractionProceed, resp.Kind)
	})
}
