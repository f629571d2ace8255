// Package memory provides in-memory implementations of the store
// collaborator contracts, suitable for tests and small deployments.
package memory

import (
	"context"
	"sync"

	"github.com/halcyon-auth/halcyon/domain"
	serrors "github.com/halcyon-auth/halcyon/errors"
)

// ClientStore is an in-memory domain.ClientStore.
type ClientStore struct {
	mu      sync.RWMutex
	clients map[string]*domain.Client
}

// NewClientStore builds a store from the given clients. Duplicate client ids
// are a configuration error.
func NewClientStore(clients []*domain.Client) (*ClientStore, error) {
	byID := make(map[string]*domain.Client, len(clients))
	for _, c := range clients {
		if _, ok := byID[c.ID]; ok {
			return nil, serrors.NewConfigError("clients must not contain duplicate ids: %s", c.ID)
		}
		byID[c.ID] = c
	}
	return &ClientStore{clients: byID}, nil
}

// FindEnabledClientByID implements domain.ClientStore.
func (s *ClientStore) FindEnabledClientByID(_ context.Context, clientID string) (*domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clients[clientID]
	if !ok || !c.Enabled {
		return nil, nil
	}
	copied := *c
	return &copied, nil
}

// Add registers another client, replacing any previous definition.
func (s *ClientStore) Add(c *domain.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.ID] = c
}
