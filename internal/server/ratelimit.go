package server

import (
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/bookkeeping/internal/observability/logger"
	"go.uber.org/zap"
)

type rateLimitedError struct {
	RetryAfter time.Duration
}

func (e *rateLimitedError) Error() string {
	return "rate_limited"
}

// retryAfterHeader rounds up to whole seconds, with a floor of one.
func (e *rateLimitedError) retryAfterHeader() string {
	seconds := int(math.Ceil(e.RetryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}

// limitPosting throttles voucher writes per organization.
func (s *Server) limitPosting() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.postingLimiter.Enabled() {
			c.Next()
			return
		}
		org, err := orgID(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		res, err := s.postingLimiter.AllowOrg(c.Request.Context(), org)
		if err != nil {
			logger.FromContext(c.Request.Context()).Warn("posting rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !res.Allowed {
			AbortWithError(c, &rateLimitedError{RetryAfter: res.RetryAfter})
			return
		}
		c.Next()
	}
}
