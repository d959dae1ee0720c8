package ratelimit

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/bookkeeping/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newLimiter(t *testing.T, rate float64, burst int) *PostingLimiter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := config.Config{RateLimit: config.RateLimitConfig{
		Enabled:         true,
		PostingOrgRate:  rate,
		PostingOrgBurst: burst,
	}}
	limiter, err := NewPostingLimiter(cfg, client, zap.NewNop())
	require.NoError(t, err)
	require.True(t, limiter.Enabled())
	return limiter
}

func TestPostingLimiterExhaustsBurst(t *testing.T) {
	limiter := newLimiter(t, 0.5, 2)
	ctx := context.Background()
	org := snowflake.ID(42)

	for i := 0; i < 2; i++ {
		res, err := limiter.AllowOrg(ctx, org)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i)
	}

	res, err := limiter.AllowOrg(ctx, org)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 2, res.Limit)
	assert.Greater(t, res.RetryAfter.Seconds(), 0.0)
}

func TestPostingLimiterIsPerOrganization(t *testing.T) {
	limiter := newLimiter(t, 0.5, 1)
	ctx := context.Background()

	res, err := limiter.AllowOrg(ctx, snowflake.ID(1))
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = limiter.AllowOrg(ctx, snowflake.ID(1))
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	res, err = limiter.AllowOrg(ctx, snowflake.ID(2))
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestNewPostingLimiterDisabled(t *testing.T) {
	limiter, err := NewPostingLimiter(config.Config{}, nil, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, limiter)
	assert.False(t, limiter.Enabled())

	res, err := limiter.AllowOrg(context.Background(), snowflake.ID(1))
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestNewPostingLimiterRejectsBadRate(t *testing.T) {
	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: true}}
	_, err := NewPostingLimiter(cfg, nil, zap.NewNop())
	assert.ErrorIs(t, err, ErrInvalidRate)
}

func TestNewPostingLimiterWithoutRedis(t *testing.T) {
	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: true, PostingOrgRate: 1, PostingOrgBurst: 1}}
	limiter, err := NewPostingLimiter(cfg, nil, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, limiter.Enabled())
}
