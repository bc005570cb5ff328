package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "travelgo-chat/internal/common/errors"
	"travelgo-chat/internal/common/logger"
	"travelgo-chat/internal/models"
)

type stubValidator struct {
	info  *TokenInfo
	err   error
	calls int
}

func (s *stubValidator) ValidateToken(ctx context.Context, token string) (*TokenInfo, error) {
	s.calls++
	return s.info, s.err
}

func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("  bearer   abc "))
	assert.Equal(t, "", BearerToken("Basic abc"))
	assert.Equal(t, "", BearerToken(""))
	assert.Equal(t, "", BearerToken("Bearer"))
}

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("no token is anonymous", func(t *testing.T) {
		_, rdb := setupMiniRedis(t)
		v := &stubValidator{}
		r := NewResolver(v, rdb, "", logger.NewTestLogger(t))

		caller, err := r.Resolve(ctx, "  ")
		require.NoError(t, err)
		assert.Equal(t, models.Anonymous(), caller)
		assert.Zero(t, v.calls)
	})

	t.Run("valid token", func(t *testing.T) {
		_, rdb := setupMiniRedis(t)
		v := &stubValidator{info: &TokenInfo{Active: true, Email: " Alice@Example.com "}}
		r := NewResolver(v, rdb, "", logger.NewTestLogger(t))

		caller, err := r.Resolve(ctx, "tok-1")
		require.NoError(t, err)
		assert.Equal(t, models.CallerIdentity{Authenticated: true, Email: "alice@example.com"}, caller)
	})

	t.Run("revoked token", func(t *testing.T) {
		mr, rdb := setupMiniRedis(t)
		require.NoError(t, mr.Set(DefaultRevokedTokenPrefix+"tok-2", "1"))
		v := &stubValidator{info: &TokenInfo{Active: true, Email: "alice@example.com"}}
		r := NewResolver(v, rdb, "", logger.NewTestLogger(t))

		caller, err := r.Resolve(ctx, "tok-2")
		stdErr, ok := apperrors.AsStandardError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeAuthentication, stdErr.Code)
		assert.False(t, caller.Authenticated)
		assert.Zero(t, v.calls)
	})

	t.Run("rejected token", func(t *testing.T) {
		_, rdb := setupMiniRedis(t)
		v := &stubValidator{err: apperrors.NewAuthenticationError("inactive")}
		r := NewResolver(v, rdb, "", logger.NewTestLogger(t))

		_, err := r.Resolve(ctx, "tok-3")
		stdErr, ok := apperrors.AsStandardError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeAuthentication, stdErr.Code)
	})
}

func TestResolver_Revoke(t *testing.T) {
	mr, rdb := setupMiniRedis(t)
	r := NewResolver(&stubValidator{}, rdb, "chat:revoked:", logger.NewTestLogger(t))
	ctx := context.Background()

	require.NoError(t, r.Revoke(ctx, "tok", time.Hour))
	assert.True(t, mr.Exists("chat:revoked:tok"))
	assert.Equal(t, time.Hour, mr.TTL("chat:revoked:tok"))

	revoked, err := r.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, revoked)

	mr.FastForward(2 * time.Hour)
	revoked, err = r.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestResolver_RedisFailure(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectExists(DefaultRevokedTokenPrefix + "tok").SetErr(errors.New("connection refused"))

	v := &stubValidator{info: &TokenInfo{Active: true, Email: "alice@example.com"}}
	r := NewResolver(v, db, "", logger.NewTestLogger(t))

	caller, err := r.Resolve(context.Background(), "tok")
	stdErr, ok := apperrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeAuthentication, stdErr.Code)
	assert.True(t, stdErr.Retryable)
	assert.False(t, caller.Authenticated)
	assert.Zero(t, v.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolver_Logout(t *testing.T) {
	ctx := context.Background()

	t.Run("uses remaining lifetime", func(t *testing.T) {
		mr, rdb := setupMiniRedis(t)
		exp := time.Now().Add(30 * time.Minute).Unix()
		r := NewResolver(&stubValidator{info: &TokenInfo{Active: true, Exp: exp}}, rdb, "", logger.NewTestLogger(t))

		require.NoError(t, r.Logout(ctx, "tok"))
		ttl := mr.TTL(DefaultRevokedTokenPrefix + "tok")
		assert.LessOrEqual(t, ttl, 30*time.Minute)
		assert.Greater(t, ttl, 25*time.Minute)

		_, err := r.Resolve(ctx, "tok")
		assert.Error(t, err)
	})

	t.Run("unknown expiry falls back to default", func(t *testing.T) {
		mr, rdb := setupMiniRedis(t)
		r := NewResolver(&stubValidator{err: apperrors.NewAuthenticationError("inactive")}, rdb, "", logger.NewTestLogger(t))

		require.NoError(t, r.Logout(ctx, "tok"))
		assert.Equal(t, DefaultRevocationTTL, mr.TTL(DefaultRevokedTokenPrefix+"tok"))
	})

	t.Run("missing token", func(t *testing.T) {
		_, rdb := setupMiniRedis(t)
		r := NewResolver(&stubValidator{}, rdb, "", logger.NewTestLogger(t))

		err := r.Logout(ctx, "")
		stdErr, ok := apperrors.AsStandardError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeAuthentication, stdErr.Code)
	})
}
