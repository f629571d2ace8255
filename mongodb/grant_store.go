package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/halcyon-auth/halcyon/cache"
	"github.com/halcyon-auth/halcyon/domain"
)

// GrantStore persists authorization codes and refresh tokens. Handles are
// stored under their hash, never in the clear, and single-use consumption
// goes through FindOneAndUpdate so concurrent redemptions of one handle
// produce exactly one winner regardless of which node they land on.
type GrantStore struct {
	codes   *mongo.Collection
	refresh *mongo.Collection
}

func NewGrantStore(db *mongo.Database) *GrantStore {
	return &GrantStore{
		codes:   db.Collection(CodesCollection),
		refresh: db.Collection(RefreshTokensCollection),
	}
}

type codeDocument struct {
	HandleHash string                  `bson:"handle_hash"`
	ExpiresAt  time.Time               `bson:"expires_at"`
	Code       domain.AuthorizationCode `bson:"code"`
}

type refreshDocument struct {
	HandleHash string              `bson:"handle_hash"`
	ExpiresAt  time.Time           `bson:"expires_at"`
	Token      domain.RefreshToken `bson:"token"`
}

// StoreCode implements domain.AuthorizationCodeStore.
func (s *GrantStore) StoreCode(ctx context.Context, code *domain.AuthorizationCode) error {
	doc := codeDocument{
		HandleHash: cache.HashToken(code.Handle),
		ExpiresAt:  code.CreatedAt.Add(code.Lifetime),
		Code:       *code,
	}
	doc.Code.Handle = ""

	if _, err := s.codes.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to store authorization code: %w", err)
	}
	return nil
}

// ConsumeCode implements domain.AuthorizationCodeStore. The filter admits
// only unconsumed documents, so the losing side of a race decodes nothing.
func (s *GrantStore) ConsumeCode(ctx context.Context, handle string) (*domain.AuthorizationCode, error) {
	filter := bson.M{"handle_hash": cache.HashToken(handle), "code.consumed": false}
	update := bson.M{"$set": bson.M{"code.consumed": true}}

	var doc codeDocument
	err := s.codes.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to consume authorization code: %w", err)
	}

	code := doc.Code
	code.Handle = handle
	return &code, nil
}

// StoreRefreshToken implements domain.RefreshTokenStore.
func (s *GrantStore) StoreRefreshToken(ctx context.Context, token *domain.RefreshToken) error {
	doc := refreshDocument{
		HandleHash: cache.HashToken(token.Handle),
		ExpiresAt:  token.CreatedAt.Add(token.Lifetime),
		Token:      *token,
	}
	doc.Token.Handle = ""

	if _, err := s.refresh.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

// ConsumeRefreshToken implements domain.RefreshTokenStore with the same
// single-winner guarantee as ConsumeCode.
func (s *GrantStore) ConsumeRefreshToken(ctx context.Context, handle string) (*domain.RefreshToken, error) {
	filter := bson.M{"handle_hash": cache.HashToken(handle), "token.revoked": false}
	update := bson.M{"$set": bson.M{"token.revoked": true}}

	var doc refreshDocument
	err := s.refresh.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.Before)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to consume refresh token: %w", err)
	}

	token := doc.Token
	token.Handle = handle
	return &token, nil
}

// GetRefreshToken implements domain.RefreshTokenStore. Revoked handles
// resolve to nil like unknown ones.
func (s *GrantStore) GetRefreshToken(ctx context.Context, handle string) (*domain.RefreshToken, error) {
	var doc refreshDocument
	err := s.refresh.FindOne(ctx, bson.M{
		"handle_hash":   cache.HashToken(handle),
		"token.revoked": false,
	}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up refresh token: %w", err)
	}

	token := doc.Token
	token.Handle = handle
	return &token, nil
}

// TouchRefreshToken implements domain.RefreshTokenStore.
func (s *GrantStore) TouchRefreshToken(ctx context.Context, handle string) error {
	_, err := s.refresh.UpdateOne(ctx,
		bson.M{"handle_hash": cache.HashToken(handle)},
		bson.M{"$set": bson.M{"token.last_used_at": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("failed to touch refresh token: %w", err)
	}
	return nil
}

// RevokeRefreshToken implements domain.RefreshTokenStore. Unknown handles
// succeed silently.
func (s *GrantStore) RevokeRefreshToken(ctx context.Context, handle string) error {
	_, err := s.refresh.UpdateOne(ctx,
		bson.M{"handle_hash": cache.HashToken(handle)},
		bson.M{"$set": bson.M{"token.revoked": true}})
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// DeleteExpiredGrants removes documents past their redeemable window. The
// TTL indexes do this eventually; the method exists for deployments that
// want explicit sweeps.
func (s *GrantStore) DeleteExpiredGrants(ctx context.Context) error {
	cutoff := bson.M{"expires_at": bson.M{"$lte": time.Now().UTC()}}
	if _, err := s.codes.DeleteMany(ctx, cutoff); err != nil {
		return err
	}
	_, err := s.refresh.DeleteMany(ctx, cutoff)
	return err
}
