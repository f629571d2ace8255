package param

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTooLong(t *testing.T) {
	assert.False(t, TooLong("", 500))
	assert.False(t, TooLong(strings.Repeat("a", 499), 500))
	assert.True(t, TooLong(strings.Repeat("a", 500), 500))
	assert.True(t, TooLong(strings.Repeat("a", 501), 500))
}

func TestIsValidURI(t *testing.T) {
	valid := []string{
		"https://client.example.com/callback",
		"http://localhost:8080/cb",
		"com.example.app:/oauth2redirect",
		"myapp://callback",
	}
	for _, uri := range valid {
		assert.True(t, IsValidURI(uri), uri)
	}

	invalid := []string{
		"",
		"/relative/path",
		"callback",
		"https://client.example.com/cb#fragment",
		"://missing-scheme",
	}
	for _, uri := range invalid {
		assert.False(t, IsValidURI(uri), uri)
	}
}

func TestParseScopes(t *testing.T) {
	assert.Equal(t, []string{"openid", "profile"}, ParseScopes("openid profile"))
	assert.Equal(t, []string{"openid", "profile"}, ParseScopes("  openid   profile  "))
	assert.Empty(t, ParseScopes(""))
	assert.Empty(t, ParseScopes("   "))
}

func TestIsValidScopeToken(t *testing.T) {
	assert.True(t, IsValidScopeToken("openid"))
	assert.True(t, IsValidScopeToken("api:read"))
	assert.True(t, IsValidScopeToken("urn:example:scope.v1"))

	assert.False(t, IsValidScopeToken(""))
	assert.False(t, IsValidScopeToken("with space"))
	assert.False(t, IsValidScopeToken(`back\slash`))
	assert.False(t, IsValidScopeToken(`quo"te`))
	assert.False(t, IsValidScopeToken("café"))
}

func TestIsValidCodeVerifier(t *testing.T) {
	limits := DefaultLimits()

	assert.True(t, IsValidCodeVerifier(strings.Repeat("x", 43), limits))
	assert.True(t, IsValidCodeVerifier(strings.Repeat("x", 128), limits))
	assert.True(t, IsValidCodeVerifier(strings.Repeat("x", 42)+"-._~A9", limits))

	assert.False(t, IsValidCodeVerifier(strings.Repeat("x", 42), limits))
	assert.False(t, IsValidCodeVerifier(strings.Repeat("x", 129), limits))
	assert.False(t, IsValidCodeVerifier(strings.Repeat("x", 42)+"+", limits))
	assert.False(t, IsValidCodeVerifier(strings.Repeat("x", 42)+"=", limits))
}

func TestContainsAndIntersect(t *testing.T) {
	list := []string{"openid", "profile", "api1"}

	assert.True(t, Contains(list, "openid"))
	assert.False(t, Contains(list, "email"))
	assert.False(t, Contains(nil, "openid"))

	assert.Equal(t, []string{"openid", "api1"},
		Intersect([]string{"openid", "email", "api1"}, list))
	assert.Empty(t, Intersect([]string{"email"}, list))
	assert.Empty(t, Intersect(nil, list))
}
