package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/halcyon-auth/halcyon/cache"
	"github.com/halcyon-auth/halcyon/domain"
)

// GrantStore is an in-memory authorization-code and refresh-token store.
//
// Consumption is linearizable per handle: the mutex makes check-and-mark a
// single critical section, so two concurrent redemptions of the same handle
// see exactly one winner.
type GrantStore struct {
	mu      sync.Mutex
	codes   *ttlcache.Cache[string, *domain.AuthorizationCode]
	refresh *ttlcache.Cache[string, *domain.RefreshToken]
}

// NewGrantStore creates a grant store with automatic expiry cleanup.
func NewGrantStore() *GrantStore {
	codes := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, *domain.AuthorizationCode](),
	)
	refresh := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, *domain.RefreshToken](),
	)

	go codes.Start()
	go refresh.Start()

	return &GrantStore{codes: codes, refresh: refresh}
}

// Close stops the cleanup goroutines.
func (s *GrantStore) Close() error {
	s.codes.Stop()
	s.refresh.Stop()
	return nil
}

// StoreCode implements domain.AuthorizationCodeStore.
func (s *GrantStore) StoreCode(_ context.Context, code *domain.AuthorizationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ttl := time.Until(code.CreatedAt.Add(code.Lifetime))
	if ttl <= 0 {
		return nil
	}
	s.codes.Set(cache.HashToken(code.Handle), code, ttl)
	return nil
}

// ConsumeCode implements domain.AuthorizationCodeStore. Only one concurrent
// caller can observe a non-nil result for a given handle.
func (s *GrantStore) ConsumeCode(_ context.Context, handle string) (*domain.AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.codes.Get(cache.HashToken(handle))
	if item == nil {
		return nil, nil
	}

	code := item.Value()
	if code.Consumed {
		return nil, nil
	}
	code.Consumed = true

	copied := *code
	return &copied, nil
}

// StoreRefreshToken implements domain.RefreshTokenStore.
func (s *GrantStore) StoreRefreshToken(_ context.Context, token *domain.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ttl := time.Until(token.CreatedAt.Add(token.Lifetime))
	if ttl <= 0 {
		return nil
	}
	s.refresh.Set(cache.HashToken(token.Handle), token, ttl)
	return nil
}

// ConsumeRefreshToken implements domain.RefreshTokenStore with the same
// single-winner guarantee as ConsumeCode.
func (s *GrantStore) ConsumeRefreshToken(_ context.Context, handle string) (*domain.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := cache.HashToken(handle)
	item := s.refresh.Get(key)
	if item == nil {
		return nil, nil
	}

	token := item.Value()
	if token.Revoked {
		return nil, nil
	}
	token.Revoked = true

	copied := *token
	copied.Revoked = false
	return &copied, nil
}

// GetRefreshToken implements domain.RefreshTokenStore.
func (s *GrantStore) GetRefreshToken(_ context.Context, handle string) (*domain.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.refresh.Get(cache.HashToken(handle))
	if item == nil {
		return nil, nil
	}
	token := item.Value()
	if token.Revoked {
		return nil, nil
	}
	copied := *token
	return &copied, nil
}

// TouchRefreshToken implements domain.RefreshTokenStore.
func (s *GrantStore) TouchRefreshToken(_ context.Context, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.refresh.Get(cache.HashToken(handle))
	if item == nil {
		return nil
	}
	item.Value().LastUsedAt = time.Now().UTC()
	return nil
}

// RevokeRefreshToken implements domain.RefreshTokenStore. Unknown handles
// are a no-op success.
func (s *GrantStore) RevokeRefreshToken(_ context.Context, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.refresh.Get(cache.HashToken(handle))
	if item == nil {
		return nil
	}
	item.Value().Revoked = true
	return nil
}
