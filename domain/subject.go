package domain

import "time"

// Subject is the authenticated end user attached to an authorization
// request. A nil Subject means nobody is logged in.
type Subject struct {
	ID string `json:"sub"`

	// IdentityProvider is the provider that authenticated the subject
	// ("local" for direct logins).
	IdentityProvider string `json:"idp,omitempty"`

	// Tenant carries the tenant claim for multi-tenant deployments.
	Tenant string `json:"tenant,omitempty"`

	AuthenticationTime time.Time `json:"auth_time"`

	// SessionID identifies the server-side session the subject was
	// authenticated under.
	SessionID string `json:"sid,omitempty"`

	Claims []Claim `json:"claims,omitempty"`
}

// AuthenticationAge returns how long ago the subject authenticated.
func (s *Subject) AuthenticationAge(now time.Time) time.Duration {
	return now.Sub(s.AuthenticationTime)
}
