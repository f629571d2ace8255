package domain

// Standard identity scope names.
const (
	ScopeOpenID        = "openid"
	ScopeProfile       = "profile"
	ScopeEmail         = "email"
	ScopeOfflineAccess = "offline_access"
)

// IdentityResource is a named bundle of user claims requestable as a scope
// (for example "profile" or "email").
type IdentityResource struct {
	Name        string   `bson:"name" json:"name"`
	DisplayName string   `bson:"display_name,omitempty" json:"display_name,omitempty"`
	UserClaims  []string `bson:"user_claims,omitempty" json:"user_claims,omitempty"`
	Enabled     bool     `bson:"enabled" json:"enabled"`
}

// ApiScope is an API access grant requestable as a scope.
type ApiScope struct {
	Name        string `bson:"name" json:"name"`
	DisplayName string `bson:"display_name,omitempty" json:"display_name,omitempty"`
	Enabled     bool   `bson:"enabled" json:"enabled"`
}

// ApiResource groups API scopes under an audience value. A token whose
// granted scopes belong to the resource carries the resource name in its
// audience set.
type ApiResource struct {
	Name        string   `bson:"name" json:"name"`
	DisplayName string   `bson:"display_name,omitempty" json:"display_name,omitempty"`
	Scopes      []string `bson:"scopes" json:"scopes"`
	Enabled     bool     `bson:"enabled" json:"enabled"`
}

// Resources is the result of resolving a set of requested scope names into
// identity and API definitions.
type Resources struct {
	IdentityResources []IdentityResource
	ApiResources      []ApiResource
	ApiScopes         []ApiScope
}

// IdentityScopeNames returns the names of the resolved identity resources.
func (r *Resources) IdentityScopeNames() []string {
	names := make([]string, 0, len(r.IdentityResources))
	for _, ir := range r.IdentityResources {
		names = append(names, ir.Name)
	}
	return names
}

// ApiScopeNames returns the names of the resolved API scopes.
func (r *Resources) ApiScopeNames() []string {
	names := make([]string, 0, len(r.ApiScopes))
	for _, s := range r.ApiScopes {
		names = append(names, s.Name)
	}
	return names
}

// Audiences returns the names of the API resources implied by the resolved
// API scopes.
func (r *Resources) Audiences() []string {
	names := make([]string, 0, len(r.ApiResources))
	for _, ar := range r.ApiResources {
		names = append(names, ar.Name)
	}
	return names
}
