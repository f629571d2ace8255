package memory

import (
	"context"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/halcyon-auth/halcyon/domain"
)

// userRecord pairs a bcrypt password hash with the subject returned on a
// successful login.
type userRecord struct {
	passwordHash []byte
	subject      domain.Subject
}

// UserAuthenticator is an in-memory domain.UserAuthenticator backed by
// bcrypt password hashes. It serves the resource-owner password grant.
type UserAuthenticator struct {
	mu    sync.RWMutex
	users map[string]userRecord
}

// NewUserAuthenticator creates an empty authenticator.
func NewUserAuthenticator() *UserAuthenticator {
	return &UserAuthenticator{users: make(map[string]userRecord)}
}

// AddUser registers a user with the given plaintext password.
func (a *UserAuthenticator) AddUser(username, password string, subject domain.Subject) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.users[username] = userRecord{passwordHash: hash, subject: subject}
	return nil
}

// ValidateCredentials implements domain.UserAuthenticator. Wrong username
// and wrong password are indistinguishable: both return nil.
func (a *UserAuthenticator) ValidateCredentials(_ context.Context, username, password string) (*domain.Subject, error) {
	a.mu.RLock()
	rec, ok := a.users[username]
	a.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	if err := bcrypt.CompareHashAndPassword(rec.passwordHash, []byte(password)); err != nil {
		return nil, nil
	}

	subject := rec.subject
	if subject.AuthenticationTime.IsZero() {
		subject.AuthenticationTime = time.Now().UTC()
	}
	return &subject, nil
}
