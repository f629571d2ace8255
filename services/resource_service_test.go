package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-auth/halcyon/domain"
	serrors "github.com/halcyon-auth/halcyon/errors"
	"github.com/halcyon-auth/halcyon/log"
	"github.com/halcyon-auth/halcyon/memory"
)

func TestResourceService_Resolve(t *testing.T) {
	svc := NewResourceService(testResources(t), log.NewNop())

	t.Run("partitions identity and api scopes", func(t *testing.T) {
		resolution, err := svc.Resolve(context.Background(), []string{"openid", "profile", "api1"})
		require.NoError(t, err)

		assert.ElementsMatch(t, []string{"openid", "profile"}, resolution.Resources.IdentityScopeNames())
		assert.Equal(t, []string{"api1"}, resolution.Resources.ApiScopeNames())
		assert.Equal(t, []string{"inventory"}, resolution.Resources.Audiences())
		assert.Empty(t, resolution.Unknown)
	})

	t.Run("unknown names are reported", func(t *testing.T) {
		resolution, err := svc.Resolve(context.Background(), []string{"openid", "nosuchscope"})
		require.NoError(t, err)
		assert.Equal(t, []string{"nosuchscope"}, resolution.Unknown)
	})

	t.Run("offline_access is a protocol scope", func(t *testing.T) {
		resolution, err := svc.Resolve(context.Background(), []string{"openid", "offline_access"})
		require.NoError(t, err)
		assert.Empty(t, resolution.Unknown)
	})

	t.Run("disabled definitions resolve to nothing", func(t *testing.T) {
		store, err := memory.NewResourceStore(
			[]domain.IdentityResource{{Name: "openid", Enabled: false}},
			nil, nil)
		require.NoError(t, err)

		resolution, err := NewResourceService(store, log.NewNop()).Resolve(
			context.Background(), []string{"openid"})
		require.NoError(t, err)
		assert.Equal(t, []string{"openid"}, resolution.Unknown)
	})
}

func TestResourceService_DualRegistrationIsFatal(t *testing.T) {
	// "reports" exists both as an identity resource and an api scope; no
	// request-level error can repair that, so resolution fails hard.
	store, err := memory.NewResourceStore(
		[]domain.IdentityResource{{Name: "reports", Enabled: true}},
		nil,
		[]domain.ApiScope{{Name: "reports", Enabled: true}},
	)
	require.NoError(t, err)

	_, err = NewResourceService(store, log.NewNop()).Resolve(
		context.Background(), []string{"reports"})
	require.Error(t, err)

	var cfgErr *serrors.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}
