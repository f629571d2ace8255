package services

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningCredential is a private key plus the metadata the signer puts in
// the token header.
type SigningCredential struct {
	Key       *rsa.PrivateKey
	Algorithm string
	KeyID     string
}

// KeyMaterialService supplies signing credentials and the corresponding
// public validation keys.
type KeyMaterialService interface {
	GetSigningCredential(ctx context.Context) (*SigningCredential, error)
	GetValidationKeys(ctx context.Context) ([]JSONWebKey, error)
}

// JSONWebKey is the public projection of a signing key, RFC 7517 shaped.
//
//nolint:tagliatelle
type JSONWebKey struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JSONWebKeySet is the discovery document body for the jwks endpoint.
type JSONWebKeySet struct {
	Keys []JSONWebKey `json:"keys"`
}

// StaticKeyService holds a single fixed RSA signing key. Rotation means
// constructing a new service; outstanding tokens validate against the old
// key until they expire.
type StaticKeyService struct {
	credential *SigningCredential
}

// NewStaticKeyService wraps an existing private key. The key id is derived
// fresh, so restarting with the same key yields a new kid.
func NewStaticKeyService(key *rsa.PrivateKey) *StaticKeyService {
	return &StaticKeyService{
		credential: &SigningCredential{
			Key:       key,
			Algorithm: jwt.SigningMethodRS256.Alg(),
			KeyID:     uuid.NewString(),
		},
	}
}

// NewGeneratedKeyService creates a service around a newly generated
// 2048-bit RSA key. Meant for tests and ephemeral deployments.
func NewGeneratedKeyService() (*StaticKeyService, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	return NewStaticKeyService(key), nil
}

func (s *StaticKeyService) GetSigningCredential(_ context.Context) (*SigningCredential, error) {
	return s.credential, nil
}

func (s *StaticKeyService) GetValidationKeys(_ context.Context) ([]JSONWebKey, error) {
	pub := &s.credential.Key.PublicKey
	return []JSONWebKey{{
		Kty: "RSA",
		Use: "sig",
		Kid: s.credential.KeyID,
		Alg: s.credential.Algorithm,
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}}, nil
}
