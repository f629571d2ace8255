package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryReferenceTokenStore implements ReferenceTokenStore using ttlcache.
type MemoryReferenceTokenStore struct {
	mu    sync.Mutex
	cache *ttlcache.Cache[string, *ReferenceToken]
}

// NewMemoryReferenceTokenStore creates an in-memory reference-token store
// with automatic expiry cleanup.
func NewMemoryReferenceTokenStore() *MemoryReferenceTokenStore {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, *ReferenceToken](),
	)

	go cache.Start()

	return &MemoryReferenceTokenStore{cache: cache}
}

func (s *MemoryReferenceTokenStore) Set(_ context.Context, handle string, token *ReferenceToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	s.cache.Set(HashToken(handle), token, ttl)
	return nil
}

func (s *MemoryReferenceTokenStore) Get(_ context.Context, handle string) (*ReferenceToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.cache.Get(HashToken(handle))
	if item == nil {
		return nil, nil
	}
	copied := *item.Value()
	return &copied, nil
}

func (s *MemoryReferenceTokenStore) Revoke(_ context.Context, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.cache.Get(HashToken(handle))
	if item == nil {
		return nil
	}
	item.Value().Revoked = true
	return nil
}

func (s *MemoryReferenceTokenStore) RevokeSession(_ context.Context, subjectID, clientID, sessionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	revoked := 0
	for _, item := range s.cache.Items() {
		t := item.Value()
		if t.Revoked {
			continue
		}
		if t.SubjectID == subjectID && t.ClientID == clientID && t.SessionID == sessionID {
			t.Revoked = true
			revoked++
		}
	}
	return revoked, nil
}

func (s *MemoryReferenceTokenStore) Delete(_ context.Context, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Delete(HashToken(handle))
	return nil
}

func (s *MemoryReferenceTokenStore) DeleteExpired(_ context.Context) error {
	s.cache.DeleteExpired()
	return nil
}

func (s *MemoryReferenceTokenStore) Count(_ context.Context) int {
	return s.cache.Len()
}

// Close stops the cleanup goroutine.
func (s *MemoryReferenceTokenStore) Close() error {
	s.cache.Stop()
	return nil
}
