// Package redis provides a Redis-backed reference-token store.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/halcyon-auth/halcyon/cache"
)

// ReferenceTokenStore implements cache.ReferenceTokenStore on Redis.
type ReferenceTokenStore struct {
	client *redis.Client
	prefix string
}

// NewReferenceTokenStore creates a new store. Keys are namespaced under
// prefix.
func NewReferenceTokenStore(client *redis.Client, prefix string) *ReferenceTokenStore {
	return &ReferenceTokenStore{
		client: client,
		prefix: prefix,
	}
}

func (r *ReferenceTokenStore) tokenKey(handle string) string {
	return fmt.Sprintf("%s:reftoken:%s", r.prefix, cache.HashToken(handle))
}

func (r *ReferenceTokenStore) sessionKey(subjectID, clientID, sessionID string) string {
	return fmt.Sprintf("%s:session:%s:%s:%s", r.prefix, subjectID, clientID, sessionID)
}

func (r *ReferenceTokenStore) Set(ctx context.Context, handle string, token *cache.ReferenceToken) error {
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	payload, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal reference token: %w", err)
	}

	key := r.tokenKey(handle)
	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store reference token: %w", err)
	}

	// Track the handle under its session so cascade revocation can find it.
	if token.SubjectID != "" && token.SessionID != "" {
		sk := r.sessionKey(token.SubjectID, token.ClientID, token.SessionID)
		pipe := r.client.TxPipeline()
		pipe.SAdd(ctx, sk, key)
		pipe.Expire(ctx, sk, ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to index reference token session: %w", err)
		}
	}

	return nil
}

func (r *ReferenceTokenStore) Get(ctx context.Context, handle string) (*cache.ReferenceToken, error) {
	raw, err := r.client.Get(ctx, r.tokenKey(handle)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load reference token: %w", err)
	}

	var token cache.ReferenceToken
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reference token: %w", err)
	}
	return &token, nil
}

func (r *ReferenceTokenStore) Revoke(ctx context.Context, handle string) error {
	return r.revokeKey(ctx, r.tokenKey(handle))
}

func (r *ReferenceTokenStore) revokeKey(ctx context.Context, key string) error {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return fmt.Errorf("failed to load reference token: %w", err)
	}

	var token cache.ReferenceToken
	if err := json.Unmarshal(raw, &token); err != nil {
		return fmt.Errorf("failed to unmarshal reference token: %w", err)
	}
	if token.Revoked {
		return nil
	}
	token.Revoked = true

	payload, err := json.Marshal(&token)
	if err != nil {
		return fmt.Errorf("failed to marshal reference token: %w", err)
	}

	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store revoked reference token: %w", err)
	}
	return nil
}

func (r *ReferenceTokenStore) RevokeSession(ctx context.Context, subjectID, clientID, sessionID string) (int, error) {
	keys, err := r.client.SMembers(ctx, r.sessionKey(subjectID, clientID, sessionID)).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to load session token index: %w", err)
	}

	revoked := 0
	for _, key := range keys {
		if err := r.revokeKey(ctx, key); err != nil {
			return revoked, err
		}
		revoked++
	}
	return revoked, nil
}

func (r *ReferenceTokenStore) Delete(ctx context.Context, handle string) error {
	return r.client.Del(ctx, r.tokenKey(handle)).Err()
}

// DeleteExpired is a no-op: Redis expires keys by TTL.
func (r *ReferenceTokenStore) DeleteExpired(context.Context) error {
	return nil
}

func (r *ReferenceTokenStore) Count(ctx context.Context) int {
	n, err := r.client.DBSize(ctx).Result()
	if err != nil {
		return 0
	}
	return int(n)
}
