// Package store wraps the Redis cache that tracks revoked access tokens and
// the single live refresh token per user. The cache is an
// optional-availability dependency: when it is unreachable every operation
// degrades to a safe default instead of failing the request.
package store

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	blacklistPrefix  = "blacklist:"
	whitelistPrefix  = "refresh_whitelist:"
	userTokensPrefix = "user_tokens:"
)

// DefaultTimeout bounds every cache round-trip so a slow Redis degrades to
// "unreachable" instead of stalling request handling.
const DefaultTimeout = 1 * time.Second

// RevocationStore tracks blacklisted access tokens (keyed by raw token
// string) and whitelisted refresh tokens (keyed by user id). All entries are
// TTL-bound; an absent key means "not revoked" / "not recognized".
type RevocationStore struct {
	rdb     *redis.Client
	timeout time.Duration
}

// NewRevocationStore wraps a Redis client. The client may be nil (connection
// failed at startup), in which case the store runs permanently degraded.
func NewRevocationStore(rdb *redis.Client, timeout time.Duration) *RevocationStore {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &RevocationStore{rdb: rdb, timeout: timeout}
}

// Available reports whether a backing client is configured at all.
func (s *RevocationStore) Available() bool { return s.rdb != nil }

func (s *RevocationStore) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// Blacklist marks a specific access-token string as unusable for the given
// remainder of its natural life. No-op when the cache is unreachable.
func (s *RevocationStore) Blacklist(ctx context.Context, rawToken string, ttl time.Duration) {
	if s.rdb == nil || rawToken == "" || ttl <= 0 {
		return
	}
	cctx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := s.rdb.Set(cctx, blacklistPrefix+rawToken, "1", ttl).Err(); err != nil {
		log.Printf("revocation: blacklist write failed: %v", err)
	}
}

// IsBlacklisted reports whether the exact token string was revoked before
// its natural expiry. When the cache is unreachable the answer is false:
// the token still passed signature verification, so availability wins here
// and the revocation guarantee degrades.
func (s *RevocationStore) IsBlacklisted(ctx context.Context, rawToken string) bool {
	if s.rdb == nil || rawToken == "" {
		return false
	}
	cctx, cancel := s.opCtx(ctx)
	defer cancel()
	n, err := s.rdb.Exists(cctx, blacklistPrefix+rawToken).Result()
	if err != nil {
		log.Printf("revocation: blacklist lookup failed: %v", err)
		return false
	}
	return n > 0
}

// WhitelistRefresh records the single currently-valid refresh token for a
// user, overwriting any prior entry. At most one live refresh token exists
// per user at a time.
func (s *RevocationStore) WhitelistRefresh(ctx context.Context, userID, rawRefresh string, ttl time.Duration) {
	if s.rdb == nil {
		return
	}
	cctx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := s.rdb.Set(cctx, whitelistPrefix+userID, rawRefresh, ttl).Err(); err != nil {
		log.Printf("revocation: whitelist write failed: %v", err)
	}
}

// IsRefreshValid reports whether the presented refresh token matches the
// whitelisted value for the user. When the cache is unreachable this check
// fails open: the token already passed signature verification, and a Redis
// blip must not log every session out.
func (s *RevocationStore) IsRefreshValid(ctx context.Context, userID, rawRefresh string) bool {
	if s.rdb == nil {
		return true
	}
	cctx, cancel := s.opCtx(ctx)
	defer cancel()
	stored, err := s.rdb.Get(cctx, whitelistPrefix+userID).Result()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		log.Printf("revocation: whitelist lookup failed, failing open: %v", err)
		return true
	}
	return stored == rawRefresh
}

// InvalidateRefresh removes the whitelist entry for a user, making any
// outstanding refresh token unusable. Used on login, rotation and logout to
// enforce single-session-per-login semantics.
func (s *RevocationStore) InvalidateRefresh(ctx context.Context, userID string) {
	if s.rdb == nil {
		return
	}
	cctx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := s.rdb.Del(cctx, whitelistPrefix+userID).Err(); err != nil {
		log.Printf("revocation: whitelist delete failed: %v", err)
	}
}

// TrackAccessToken remembers an issued access token under the user's token
// set so "log out everywhere" can blacklist it later. The set expires with
// the refresh TTL since nothing issued earlier can outlive it.
func (s *RevocationStore) TrackAccessToken(ctx context.Context, userID, rawToken string, ttl time.Duration) {
	if s.rdb == nil || rawToken == "" {
		return
	}
	cctx, cancel := s.opCtx(ctx)
	defer cancel()
	key := userTokensPrefix + userID
	if err := s.rdb.SAdd(cctx, key, rawToken).Err(); err != nil {
		log.Printf("revocation: token tracking failed: %v", err)
		return
	}
	if err := s.rdb.Expire(cctx, key, ttl).Err(); err != nil {
		log.Printf("revocation: token set expire failed: %v", err)
	}
}

// InvalidateAllForUser blacklists every tracked access token for the user
// and clears the refresh whitelist ("log out everywhere").
func (s *RevocationStore) InvalidateAllForUser(ctx context.Context, userID string, blacklistTTL time.Duration) {
	if s.rdb == nil {
		return
	}
	cctx, cancel := s.opCtx(ctx)
	defer cancel()
	key := userTokensPrefix + userID
	tokens, err := s.rdb.SMembers(cctx, key).Result()
	if err != nil {
		log.Printf("revocation: token set read failed: %v", err)
	}
	for _, t := range tokens {
		s.Blacklist(ctx, t, blacklistTTL)
	}
	if err := s.rdb.Del(cctx, key).Err(); err != nil {
		log.Printf("revocation: token set delete failed: %v", err)
	}
	s.InvalidateRefresh(ctx, userID)
}
