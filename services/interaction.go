package services

import (
	"context"
	"net/url"
	"time"

	"github.com/halcyon-auth/halcyon/domain"
	serrors "github.com/halcyon-auth/halcyon/errors"
	"github.com/halcyon-auth/halcyon/events"
	"github.com/halcyon-auth/halcyon/internal/param"
	"github.com/halcyon-auth/halcyon/log"
)

// InteractionProcessor decides what end-user interaction a validated
// authorize request still needs. Interactor is the reference
// implementation; deployments may swap in their own.
type InteractionProcessor interface {
	ProcessInteraction(
		ctx context.Context,
		req *domain.ValidatedAuthorizeRequest,
		subject *domain.Subject,
		consent *domain.ConsentResponse,
	) (*domain.InteractionResponse, error)
}

// ConsentStore remembers which scopes a subject previously consented to per
// client. Optional: without one every consent-requiring request challenges.
type ConsentStore interface {
	FindConsentedScopes(ctx context.Context, subjectID, clientID string) ([]string, error)
	SaveConsent(ctx context.Context, subjectID, clientID string, scopes []string) error
}

// Interactor is the default interaction response generator.
type Interactor struct {
	urls           domain.InteractionURLs
	consents       ConsentStore
	validateTenant bool
	sink           events.Sink
	logger         log.Logger
	now            func() time.Time
}

// NewInteractor creates the default generator. consents may be nil.
func NewInteractor(
	urls domain.InteractionURLs,
	consents ConsentStore,
	validateTenant bool,
	sink events.Sink,
	logger log.Logger,
) *Interactor {
	return &Interactor{
		urls:           urls,
		consents:       consents,
		validateTenant: validateTenant,
		sink:           sink,
		logger:         logger,
		now:            time.Now,
	}
}

// ProcessInteraction implements InteractionProcessor. Rules are evaluated in
// order; the first match wins. prompt=none converts any required
// interaction into the matching OIDC error instead of a redirect.
func (i *Interactor) ProcessInteraction(
	ctx context.Context,
	req *domain.ValidatedAuthorizeRequest,
	subject *domain.Subject,
	consent *domain.ConsentResponse,
) (*domain.InteractionResponse, error) {
	if i.loginRequired(req, subject) {
		return i.challenge(ctx, req, domain.InteractionLogin, i.urls.LoginURL, serrors.LoginRequired)
	}

	if req.HasPrompt(domain.PromptCreate) {
		if i.urls.CreateAccountURL == "" {
			// The validator treats create as unrecognized when no
			// destination is configured; reaching this point means the
			// configuration changed mid-request.
			return &domain.InteractionResponse{
				Kind: domain.InteractionError,
				Err:  serrors.NewInvalidRequest("unsupported prompt value"),
			}, nil
		}
		return i.challenge(ctx, req, domain.InteractionCreateAccount, i.urls.CreateAccountURL, serrors.InteractionRequired)
	}

	if i.subjectMismatch(ctx, req, subject) {
		return i.challenge(ctx, req, domain.InteractionLogin, i.urls.LoginURL, serrors.LoginRequired)
	}

	if consent == nil {
		needed, err := i.consentRequired(ctx, req, subject)
		if err != nil {
			return nil, err
		}
		if needed {
			return i.challenge(ctx, req, domain.InteractionConsent, i.urls.ConsentURL, serrors.ConsentRequired)
		}
		return &domain.InteractionResponse{Kind: domain.InteractionProceed}, nil
	}

	if !consent.Granted {
		i.sink.Raise(ctx, events.Event{
			Name:      events.AuthorizeFailure,
			ClientID:  req.Client.ID,
			SubjectID: subject.ID,
			Error:     serrors.AccessDenied,
		})
		// A denial is an outcome of the validated request, so the client
		// is told via its redirect URI.
		return &domain.InteractionResponse{
			Kind: domain.InteractionError,
			Err: serrors.NewRedirectableAuthorizeError(
				serrors.NewAccessDenied("user denied the request"),
				req.RedirectURI, req.ResponseMode),
		}, nil
	}

	// Scopes outside the consented set are dropped from issuance, not an
	// error.
	granted := param.Intersect(req.RequestedScopes, consent.ScopesGranted)
	if consent.Remember && i.consents != nil {
		if err := i.consents.SaveConsent(ctx, subject.ID, req.Client.ID, granted); err != nil {
			i.logger.Warn(ctx, "failed to persist consent decision",
				map[string]interface{}{"client_id": req.Client.ID})
		}
	}
	i.sink.Raise(ctx, events.Event{
		Name:      events.ConsentGranted,
		ClientID:  req.Client.ID,
		SubjectID: subject.ID,
	})

	return &domain.InteractionResponse{
		Kind:          domain.InteractionProceed,
		GrantedScopes: granted,
	}, nil
}

func (i *Interactor) loginRequired(req *domain.ValidatedAuthorizeRequest, subject *domain.Subject) bool {
	if subject == nil {
		return true
	}
	if req.HasPrompt(domain.PromptLogin) {
		return true
	}
	if req.MaxAge != nil {
		if *req.MaxAge == 0 {
			return true
		}
		if subject.AuthenticationAge(i.now()) > time.Duration(*req.MaxAge)*time.Second {
			return true
		}
	}
	return false
}

// subjectMismatch reports whether the current subject conflicts with the
// client's provider restrictions or the requested idp or tenant hints and
// must re-authenticate.
func (i *Interactor) subjectMismatch(ctx context.Context, req *domain.ValidatedAuthorizeRequest, subject *domain.Subject) bool {
	restrictions := req.Client.IdentityProviderRestrictions
	if len(restrictions) > 0 && subject.IdentityProvider != "" &&
		!param.Contains(restrictions, subject.IdentityProvider) {
		i.logger.Debug(ctx, "subject idp not allowed for client",
			map[string]interface{}{"client_id": req.Client.ID, "idp": subject.IdentityProvider})
		return true
	}
	if req.IdpHint != "" && subject.IdentityProvider != "" && subject.IdentityProvider != req.IdpHint {
		i.logger.Debug(ctx, "subject idp conflicts with requested idp hint",
			map[string]interface{}{"client_id": req.Client.ID, "idp": req.IdpHint})
		return true
	}
	if i.validateTenant && req.TenantHint != "" && subject.Tenant != req.TenantHint {
		i.logger.Debug(ctx, "subject tenant conflicts with requested tenant hint",
			map[string]interface{}{"client_id": req.Client.ID, "tenant": req.TenantHint})
		return true
	}
	return false
}

func (i *Interactor) consentRequired(ctx context.Context, req *domain.ValidatedAuthorizeRequest, subject *domain.Subject) (bool, error) {
	if !req.Client.RequireConsent {
		return false, nil
	}
	if i.consents == nil {
		return true, nil
	}
	consented, err := i.consents.FindConsentedScopes(ctx, subject.ID, req.Client.ID)
	if err != nil {
		return false, err
	}
	for _, s := range req.RequestedScopes {
		if !param.Contains(consented, s) {
			return true, nil
		}
	}
	return false, nil
}

// challenge builds a redirect decision carrying the original request
// context, or the matching OIDC error when prompt=none suppresses
// interaction.
func (i *Interactor) challenge(
	ctx context.Context,
	req *domain.ValidatedAuthorizeRequest,
	kind domain.InteractionKind,
	destination string,
	noneError string,
) (*domain.InteractionResponse, error) {
	if req.HasPrompt(domain.PromptNone) {
		return &domain.InteractionResponse{
			Kind: domain.InteractionError,
			Err: serrors.NewRedirectableAuthorizeError(
				serrors.NewInteractionRequired(noneError),
				req.RedirectURI, req.ResponseMode),
		}, nil
	}

	// Carry every original parameter forward so the interaction page can
	// reproduce the request. prompt is dropped to avoid a login loop on
	// the return trip.
	carried := make(url.Values, len(req.Raw))
	for k, vs := range req.Raw {
		if k == domain.ParamPrompt {
			continue
		}
		carried[k] = append([]string(nil), vs...)
	}

	i.logger.Debug(ctx, "interaction required", map[string]interface{}{
		"client_id": req.Client.ID,
		"kind":      kind.String(),
	})

	return &domain.InteractionResponse{
		Kind:       kind,
		RedirectTo: destination,
		Params:     carried,
	}, nil
}
