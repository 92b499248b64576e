package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todoapp/internal/cache"
	"todoapp/internal/model"
)

func TestJWTService_IssueAndVerify(t *testing.T) {
	svc := NewJWTService("test-secret", 0)
	assert.Equal(t, 24*time.Hour, svc.TTL())

	token, err := svc.Issue("alice", model.RoleUser)
	require.NoError(t, err)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, model.RoleUser, claims.Role)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestJWTService_VerifyFailures(t *testing.T) {
	svc := NewJWTService("test-secret", time.Hour)
	valid, err := svc.Issue("alice", model.RoleUser)
	require.NoError(t, err)

	expired, err := NewJWTService("test-secret", -time.Hour).Issue("alice", model.RoleUser)
	require.NoError(t, err)

	foreign, err := NewJWTService("other-secret", time.Hour).Issue("alice", model.RoleUser)
	require.NoError(t, err)

	parts := strings.Split(valid, ".")
	tampered := parts[0] + "." + jwt.EncodeSegment([]byte(`{"username":"mallory","role":"user","exp":4102444800,"iat":1700000000}`)) + "." + parts[2]

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		Username: "alice",
		Role:     model.RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		want   error
		reason string
	}{
		{"missing", "", ErrTokenMissing, "missing"},
		{"malformed", "not-a-jwt", ErrTokenMalformed, "malformed"},
		{"expired", expired, ErrTokenExpired, "expired"},
		{"wrong key", foreign, ErrTokenBadSignature, "bad_signature"},
		{"tampered payload", tampered, ErrTokenBadSignature, "bad_signature"},
		{"alg none", noneToken, ErrTokenMalformed, "malformed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := svc.Verify(tt.token)
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.reason, Reason(err))
		})
	}
}

func TestPassword_HashAndCheck(t *testing.T) {
	hash, err := HashPassword("secret")
	require.NoError(t, err)
	assert.NotEqual(t, "secret", hash)

	other, err := HashPassword("secret")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "hashes must be salted")

	assert.NoError(t, CheckPassword(hash, "secret"))
	assert.ErrorIs(t, CheckPassword(hash, "wrong"), ErrPasswordMismatch)
}

func TestTokenStore_Revocation(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := NewTokenStore(cache.New(rdb, ""), time.Hour)
	ctx := context.Background()
	cutoff := time.Unix(1_700_000_000, 0)

	assert.False(t, IsRevoked(ctx, store, model.RoleUser, "alice", cutoff.Add(-time.Minute)))

	require.NoError(t, store.RevokeBefore(ctx, model.RoleUser, "alice", cutoff))
	assert.True(t, IsRevoked(ctx, store, model.RoleUser, "alice", cutoff.Add(-time.Minute)))
	assert.True(t, IsRevoked(ctx, store, model.RoleUser, "alice", cutoff))
	assert.False(t, IsRevoked(ctx, store, model.RoleUser, "alice", cutoff.Add(time.Millisecond)))
	assert.False(t, IsRevoked(ctx, store, model.RoleAdmin, "alice", cutoff.Add(-time.Minute)))
	assert.False(t, IsRevoked(ctx, nil, model.RoleUser, "alice", cutoff.Add(-time.Minute)))

	ttl := mr.TTL("revoked:user:alice")
	assert.Equal(t, time.Hour, ttl)
}

func TestTokenStore_RevokeWithinSameSecond(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := NewTokenStore(cache.New(rdb, ""), time.Hour)
	svc := NewJWTService("test-secret", time.Hour)
	ctx := context.Background()

	token, err := svc.Issue("alice", model.RoleUser)
	require.NoError(t, err)
	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, claims.IssuedAt.Unix(), claims.Issued().Unix())

	require.NoError(t, store.RevokeBefore(ctx, model.RoleUser, "alice", time.Now()))
	assert.True(t, IsRevoked(ctx, store, model.RoleUser, "alice", claims.Issued()))

	time.Sleep(2 * time.Millisecond)
	fresh, err := svc.Issue("alice", model.RoleUser)
	require.NoError(t, err)
	freshClaims, err := svc.Verify(fresh)
	require.NoError(t, err)
	assert.False(t, IsRevoked(ctx, store, model.RoleUser, "alice", freshClaims.Issued()))
}
