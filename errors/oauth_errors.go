package errors

import "fmt"

// OAuth2Error represents a standardized OAuth 2.0 protocol error.
type OAuth2Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	URI         string `json:"error_uri,omitempty"`
	State       string `json:"state,omitempty"`
}

func (e *OAuth2Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Standard OAuth2 error codes
const (
	InvalidRequest          = "invalid_request"
	UnauthorizedClient      = "unauthorized_client"
	AccessDenied            = "access_denied"
	UnsupportedResponseType = "unsupported_response_type"
	UnsupportedGrantType    = "unsupported_grant_type"
	InvalidScope            = "invalid_scope"
	InvalidClient           = "invalid_client"
	InvalidGrant            = "invalid_grant"
	ServerError             = "server_error"
	TemporarilyUnavailable  = "temporarily_unavailable"
)

// OIDC error codes raised when prompt=none suppresses a required
// interaction.
const (
	LoginRequired       = "login_required"
	ConsentRequired     = "consent_required"
	InteractionRequired = "interaction_required"
	AccountSelectionReq = "account_selection_required"
)

// NewInteractionRequired builds the OIDC error for a prompt=none request
// that cannot complete without end-user interaction.
func NewInteractionRequired(code string) *OAuth2Error {
	return &OAuth2Error{
		Code:        code,
		Description: "end-user interaction is required to complete the request",
	}
}

// invalidGrantDescription is the single description used for every
// invalid_grant failure. Code, verifier and refresh-token mismatches must be
// indistinguishable to the caller.
const invalidGrantDescription = "invalid or expired grant"

func NewInvalidRequest(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        InvalidRequest,
		Description: description,
	}
}

func NewInvalidClient(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        InvalidClient,
		Description: description,
	}
}

// NewInvalidGrant returns the opaque invalid_grant error. It takes no
// description on purpose: the cause must never leak to the caller.
func NewInvalidGrant() *OAuth2Error {
	return &OAuth2Error{
		Code:        InvalidGrant,
		Description: invalidGrantDescription,
	}
}

func NewInvalidScope(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        InvalidScope,
		Description: description,
	}
}

func NewUnauthorizedClient(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        UnauthorizedClient,
		Description: description,
	}
}

func NewUnsupportedResponseType(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        UnsupportedResponseType,
		Description: description,
	}
}

func NewUnsupportedGrantType() *OAuth2Error {
	return &OAuth2Error{
		Code:        UnsupportedGrantType,
		Description: "The authorization grant type is not supported",
	}
}

func NewAccessDenied(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        AccessDenied,
		Description: description,
	}
}

func NewServerError(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        ServerError,
		Description: description,
	}
}

// IsInvalidGrant reports whether err is the opaque invalid_grant error.
func IsInvalidGrant(err error) bool {
	oe, ok := err.(*OAuth2Error)
	return ok && oe.Code == InvalidGrant
}
