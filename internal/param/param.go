// Package param holds the shared input validation primitives: length caps,
// charset restrictions, URI well-formedness and scope syntax checks.
package param

import (
	"net/url"
	"strings"
)

// Limits are the maximum accepted lengths for caller-supplied parameters.
// A value whose length reaches the limit is rejected, so the longest
// accepted value is one character below the limit.
type Limits struct {
	ClientID    int
	Scope       int
	RedirectURI int
	Nonce       int
	State       int
	UILocales   int
	LoginHint   int
	AcrValues   int

	CodeVerifierMin int
	CodeVerifierMax int
}

// DefaultLimits returns the limits used unless configuration overrides them.
func DefaultLimits() Limits {
	return Limits{
		ClientID:        500,
		Scope:           500,
		RedirectURI:     1000,
		Nonce:           500,
		State:           500,
		UILocales:       500,
		LoginHint:       500,
		AcrValues:       500,
		CodeVerifierMin: 43,
		CodeVerifierMax: 128,
	}
}

// TooLong reports whether value violates the given length limit.
func TooLong(value string, limit int) bool {
	return len(value) >= limit
}

// IsValidURI reports whether raw is a well-formed absolute URI without a
// fragment component. Custom schemes are allowed so native-app redirect
// URIs validate; exact-match against the registration happens elsewhere.
func IsValidURI(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.IsAbs() && u.Fragment == ""
}

// ParseScopes splits a space-delimited scope string into its tokens,
// dropping empty entries caused by repeated whitespace.
func ParseScopes(scope string) []string {
	return strings.Fields(scope)
}

// IsValidScopeToken reports whether s satisfies the scope-token charset of
// RFC 6749 section 3.3: %x21 / %x23-5B / %x5D-7E.
func IsValidScopeToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == 0x21:
		case c >= 0x23 && c <= 0x5B:
		case c >= 0x5D && c <= 0x7E:
		default:
			return false
		}
	}
	return true
}

// IsValidCodeVerifier reports whether v satisfies the length and charset
// rules of RFC 7636 section 4.1 (unreserved characters only).
func IsValidCodeVerifier(v string, limits Limits) bool {
	if len(v) < limits.CodeVerifierMin || len(v) > limits.CodeVerifierMax {
		return false
	}
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '.' || c == '_' || c == '~':
		default:
			return false
		}
	}
	return true
}

// Contains reports whether list holds item.
func Contains(list []string, item string) bool {
	for _, s := range list {
		if s == item {
			return true
		}
	}
	return false
}

// Intersect returns the members of requested that also appear in allowed,
// preserving the order of requested.
func Intersect(requested, allowed []string) []string {
	out := make([]string, 0, len(requested))
	for _, s := range requested {
		if Contains(allowed, s) {
			out = append(out, s)
		}
	}
	return out
}
