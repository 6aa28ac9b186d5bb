package store

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStoreUnavailable is returned when an action-token operation needs the
// cache and it cannot be reached. Unlike revocation checks, activation and
// recovery flows cannot degrade: a token that was never recorded must not
// be redeemable.
var ErrStoreUnavailable = errors.New("token store unavailable")

// ActionTokenStore keeps single-use activation and recovery tokens in Redis,
// mapping the raw token string to the owning user id with a TTL. Redeeming a
// token removes the mapping so it cannot be replayed.
type ActionTokenStore struct {
	rdb     *redis.Client
	timeout time.Duration
}

func NewActionTokenStore(rdb *redis.Client, timeout time.Duration) *ActionTokenStore {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ActionTokenStore{rdb: rdb, timeout: timeout}
}

func actionKey(kind, tok string) string { return kind + "_token:" + tok }

// Store records a freshly issued action token for its user.
func (s *ActionTokenStore) Store(ctx context.Context, kind, tok, userID string, ttl time.Duration) error {
	if s.rdb == nil {
		return ErrStoreUnavailable
	}
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.rdb.Set(cctx, actionKey(kind, tok), userID, ttl).Err(); err != nil {
		return ErrStoreUnavailable
	}
	return nil
}

// Redeem resolves a presented action token to the user it was issued for
// and deletes the mapping in the same Redis command, so concurrent requests
// carrying the same token cannot both redeem it. Returns false for unknown,
// expired or unreachable-store cases alike; the caller cannot tell them
// apart and must treat all as "invalid token".
func (s *ActionTokenStore) Redeem(ctx context.Context, kind, tok string) (string, bool) {
	if s.rdb == nil {
		return "", false
	}
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	v, err := s.rdb.GetDel(cctx, actionKey(kind, tok)).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		log.Printf("action tokens: redeem failed: %v", err)
		return "", false
	}
	return v, true
}
