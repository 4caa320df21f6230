package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
)

// RevocationStore tracks token ids that must no longer be accepted.
type RevocationStore interface {
	// Revoke marks the token id as revoked until the given time. It returns
	// true only for the call that performed the revocation.
	Revoke(ctx context.Context, tokenID string, until time.Time) (bool, error)
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type noopRevocationStore struct{}

func (noopRevocationStore) Revoke(context.Context, string, time.Time) (bool, error) {
	return false, nil
}

func (noopRevocationStore) IsRevoked(context.Context, string) (bool, error) {
	return false, nil
}

func normalizeRevocationStore(s RevocationStore) RevocationStore {
	if s == nil {
		return noopRevocationStore{}
	}
	return s
}

// DefaultRevocationPrefix namespaces revocation keys.
const DefaultRevocationPrefix = "omnisfera:revoked:"

// RedisRevocationStore keeps revoked token ids in redis, expiring each key
// together with the token it revokes.
type RedisRevocationStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisRevocationStore returns a redis backed RevocationStore.
func NewRedisRevocationStore(client redis.UniversalClient, prefix string) *RedisRevocationStore {
	if prefix == "" {
		prefix = DefaultRevocationPrefix
	}
	return &RedisRevocationStore{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (s *RedisRevocationStore) Revoke(ctx context.Context, tokenID string, until time.Time) (bool, error) {
	if tokenID == "" {
		return false, nil
	}

	// zero TTL means the key never expires, used for tokens without exp
	var ttl time.Duration
	if !until.IsZero() {
		ttl = until.Sub(s.now())
		if ttl <= 0 {
			return false, nil
		}
	}

	ok, err := s.client.SetNX(ctx, s.key(tokenID), s.now().Unix(), ttl).Result()
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke session token")
	}
	return ok, nil
}

func (s *RedisRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}

	n, err := s.client.Exists(ctx, s.key(tokenID)).Result()
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check session revocation")
	}
	return n > 0, nil
}

func (s *RedisRevocationStore) key(tokenID string) string {
	return s.prefix + tokenID
}
