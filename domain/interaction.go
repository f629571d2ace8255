package domain

import "net/url"

// InteractionKind is the decision the interaction generator arrives at for a
// validated authorize request.
type InteractionKind int

const (
	// InteractionProceed means issuance may continue without end-user
	// interaction.
	InteractionProceed InteractionKind = iota
	// InteractionLogin challenges for (re-)authentication.
	InteractionLogin
	// InteractionConsent challenges for scope consent.
	InteractionConsent
	// InteractionCreateAccount sends the user to account creation.
	InteractionCreateAccount
	// InteractionError rejects the request.
	InteractionError
)

func (k InteractionKind) String() string {
	switch k {
	case InteractionProceed:
		return "proceed"
	case InteractionLogin:
		return "login"
	case InteractionConsent:
		return "consent"
	case InteractionCreateAccount:
		return "create_account"
	case InteractionError:
		return "error"
	default:
		return "unknown"
	}
}

// InteractionResponse is one of Proceed, RedirectTo(url, params) or
// Error(kind).
type InteractionResponse struct {
	Kind InteractionKind

	// RedirectTo is the interaction page destination for Login, Consent and
	// CreateAccount decisions.
	RedirectTo string

	// Params carries the request context forward so the interaction page
	// can reproduce the original authorize request.
	Params url.Values

	// Err is set for InteractionError.
	Err error

	// GrantedScopes is the issuance scope set after a consent decision has
	// been applied; nil means the requested scopes stand unchanged.
	GrantedScopes []string
}

// ConsentResponse is a prior consent decision supplied by the external
// interaction stage.
type ConsentResponse struct {
	Granted       bool
	ScopesGranted []string
	Remember      bool
}
