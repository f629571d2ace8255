package services

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"

	"github.com/halcyon-auth/halcyon/cache"
	"github.com/halcyon-auth/halcyon/domain"
	serrors "github.com/halcyon-auth/halcyon/errors"
	"github.com/halcyon-auth/halcyon/internal/param"
)

// ValidateCodeVerifier checks a token request's code_verifier against the
// challenge captured at authorization time. The stored challenge is the
// hash transform of the original value, so both branches compare
// transformed verifiers rather than plaintext. limits carries the same
// verifier bounds the authorize validator applied to the challenge. Every
// failure is the same opaque invalid_grant.
func ValidateCodeVerifier(code *domain.AuthorizationCode, verifier string, limits param.Limits) *serrors.OAuth2Error {
	if code.CodeChallenge == "" {
		if verifier != "" {
			return serrors.NewInvalidGrant()
		}
		return nil
	}
	if verifier == "" {
		return serrors.NewInvalidGrant()
	}
	if !param.IsValidCodeVerifier(verifier, limits) {
		return serrors.NewInvalidGrant()
	}

	var transformed string
	switch code.CodeChallengeMethod {
	case domain.CodeChallengeS256:
		sum := sha256.Sum256([]byte(verifier))
		transformed = cache.HashToken(base64.RawURLEncoding.EncodeToString(sum[:]))
	case domain.CodeChallengePlain:
		transformed = cache.HashToken(verifier)
	default:
		return serrors.NewInvalidGrant()
	}

	if subtle.ConstantTimeCompare([]byte(transformed), []byte(code.CodeChallenge)) != 1 {
		return serrors.NewInvalidGrant()
	}
	return nil
}
