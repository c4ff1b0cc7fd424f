package auth

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revoker remembers revoked token ids until the tokens would have expired.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Revoked reports whether the token behind claims was revoked. A nil
// revoker or a token without an id is never revoked.
func Revoked(ctx context.Context, rv Revoker, claims *Claims) (bool, error) {
	if rv == nil || claims == nil || claims.ID == "" {
		return false, nil
	}
	return rv.IsRevoked(ctx, claims.ID)
}

// MemoryRevoker only works for a single API instance.
type MemoryRevoker struct {
	mu  sync.Mutex
	ids map[string]time.Time
}

func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{ids: make(map[string]time.Time)}
}

func (r *MemoryRevoker) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	// dọn các id đã hết hạn
	for id, exp := range r.ids {
		if now.After(exp) {
			delete(r.ids, id)
		}
	}
	r.ids[tokenID] = now.Add(ttl)
	return nil
}

func (r *MemoryRevoker) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	exp, ok := r.ids[tokenID]
	if !ok {
		return false, nil
	}
	if time.Now().After(exp) {
		delete(r.ids, tokenID)
		return false, nil
	}
	return true, nil
}

// RedisRevoker shares revocations across instances through key TTLs.
type RedisRevoker struct {
	client *redis.Client
}

func NewRedisRevoker(client *redis.Client) *RedisRevoker {
	return &RedisRevoker{client: client}
}

func (r *RedisRevoker) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return r.client.Set(ctx, revokedKey(tokenID), "1", ttl).Err()
}

func (r *RedisRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	n, err := r.client.Exists(ctx, revokedKey(tokenID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func revokedKey(id string) string {
	return "thientam:revoked:" + id
}
