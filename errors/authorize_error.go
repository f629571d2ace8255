package errors

// AuthorizeError is the error surface of the authorize endpoint.
//
// Validation failures are never redirect-deliverable: RedirectSafe stays
// false and RedirectURI/ResponseMode stay empty, so an error page can never
// be turned into an open-redirect or disclosure primitive. RedirectSafe is
// set only for interaction outcomes of a fully validated request, such as
// the OIDC errors a prompt=none request produces.
type AuthorizeError struct {
	*OAuth2Error

	RedirectSafe bool
	RedirectURI  string
	ResponseMode string
}

// NewAuthorizeError wraps a protocol error that must not be delivered via
// redirect. State is echoed when known; redirect_uri and response_mode are
// withheld.
func NewAuthorizeError(oe *OAuth2Error) *AuthorizeError {
	return &AuthorizeError{OAuth2Error: oe}
}

// NewRedirectableAuthorizeError wraps an interaction outcome of a fully
// validated request, so the hosting layer may deliver it to the client's
// registered redirect URI using the negotiated response mode.
func NewRedirectableAuthorizeError(oe *OAuth2Error, redirectURI, responseMode string) *AuthorizeError {
	return &AuthorizeError{
		OAuth2Error:  oe,
		RedirectSafe: true,
		RedirectURI:  redirectURI,
		ResponseMode: responseMode,
	}
}

func (e *AuthorizeError) Unwrap() error {
	return e.OAuth2Error
}
