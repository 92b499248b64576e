package auth

import (
	"context"
	"strconv"
	"time"

	"todoapp/internal/cache"
)

const revokedKeyPrefix = "revoked:"

// RevocationStore records per-account cut-off times. Tokens issued at or
// before the cut-off are rejected.
type RevocationStore interface {
	RevokeBefore(ctx context.Context, role, username string, at time.Time) error
	RevokedBefore(ctx context.Context, role, username string) (time.Time, bool)
}

// TokenStore keeps revocation markers in Redis. Markers expire together
// with the longest-lived token they could affect.
type TokenStore struct {
	cache *cache.Client
	ttl   time.Duration
}

// Ensure TokenStore implements RevocationStore
var _ RevocationStore = (*TokenStore)(nil)

// NewTokenStore creates a new token store.
func NewTokenStore(cache *cache.Client, tokenTTL time.Duration) *TokenStore {
	return &TokenStore{cache: cache, ttl: tokenTTL}
}

func revokedKey(role, username string) string {
	return revokedKeyPrefix + role + ":" + username
}

// RevokeBefore invalidates every token of the account issued up to at,
// with millisecond precision.
func (s *TokenStore) RevokeBefore(ctx context.Context, role, username string, at time.Time) error {
	value := []byte(strconv.FormatInt(at.UnixMilli(), 10))
	return s.cache.Set(ctx, revokedKey(role, username), value, s.ttl)
}

// RevokedBefore returns the cut-off of the account, if any.
func (s *TokenStore) RevokedBefore(ctx context.Context, role, username string) (time.Time, bool) {
	data, _ := s.cache.Get(ctx, revokedKey(role, username))
	if data == nil {
		return time.Time{}, false
	}
	msec, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(msec), true
}

// IsRevoked reports whether a token issued at issuedAt is not after the
// account's cut-off. A login in the same millisecond as the revocation is
// rejected too.
func IsRevoked(ctx context.Context, store RevocationStore, role, username string, issuedAt time.Time) bool {
	if store == nil {
		return false
	}
	cutoff, ok := store.RevokedBefore(ctx, role, username)
	return ok && !issuedAt.Truncate(time.Millisecond).After(cutoff)
}
