package ratelimit

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/bookkeeping/internal/config"
	"go.uber.org/zap"
)

const keyPostingOrg = "bookkeeping:posting:org:%s"

// PostingLimiter throttles voucher writes per organization. A nil or
// disabled limiter allows everything.
type PostingLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

// NewPostingLimiter returns nil when rate limiting is off or Redis is not
// configured.
func NewPostingLimiter(cfg config.Config, client *redis.Client, log *zap.Logger) (*PostingLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}
	if limitCfg.PostingOrgRate <= 0 || limitCfg.PostingOrgBurst <= 0 {
		return nil, ErrInvalidRate
	}
	if client == nil {
		log.Named("ratelimit").Warn("rate limiting enabled without redis, posting is unthrottled")
		return nil, nil
	}
	return &PostingLimiter{
		bucket: NewTokenBucket(client),
		rate:   limitCfg.PostingOrgRate,
		burst:  limitCfg.PostingOrgBurst,
	}, nil
}

func (l *PostingLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *PostingLimiter) AllowOrg(ctx context.Context, orgID snowflake.ID) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyPostingOrg, orgID.String()), l.rate, l.burst)
}
