package memory

import (
	"context"
	"sync"
)

// ConsentStore keeps consent decisions in process memory.
type ConsentStore struct {
	mu       sync.RWMutex
	consents map[string][]string
}

func NewConsentStore() *ConsentStore {
	return &ConsentStore{consents: make(map[string][]string)}
}

func consentKey(subjectID, clientID string) string {
	return subjectID + "\x00" + clientID
}

func (s *ConsentStore) FindConsentedScopes(_ context.Context, subjectID, clientID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scopes := s.consents[consentKey(subjectID, clientID)]
	return append([]string(nil), scopes...), nil
}

func (s *ConsentStore) SaveConsent(_ context.Context, subjectID, clientID string, scopes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consents[consentKey(subjectID, clientID)] = append([]string(nil), scopes...)
	return nil
}
