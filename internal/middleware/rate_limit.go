package middleware

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Payphone-Digital/identity/internal/constants"
	domainErrors "github.com/Payphone-Digital/identity/internal/errors"
	"github.com/Payphone-Digital/identity/pkg/logger"
	"github.com/Payphone-Digital/identity/pkg/ratelimit"
	"github.com/gin-gonic/gin"
)

// KeyFunc picks the identifier a budget is charged to.
type KeyFunc func(c *gin.Context) string

func ClientIPKey(c *gin.Context) string {
	return c.ClientIP()
}

// BodyEmailKey charges the email in a bound request body, falling back to
// the client address. It must run after ValidateJSON[T].
func BodyEmailKey[T any](email func(*T) string) KeyFunc {
	return func(c *gin.Context) string {
		if v, ok := c.Get(constants.GinKeyBody); ok {
			if req, ok := v.(*T); ok {
				if e := normalizeKey(email(req)); e != "" {
					return e
				}
			}
		}
		return c.ClientIP()
	}
}

// RateLimit rejects requests over budget with 429. Limiter failures let the
// request through.
func RateLimit(limiter ratelimit.Limiter, key KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		k := key(c)

		res, err := limiter.Allow(ctx, k)
		if err != nil {
			logger.ErrorWithContext(ctx, "Rate limiter unavailable").
				String("path", c.Request.URL.Path).
				Err(err).
				Log()
			c.Next()
			return
		}

		c.Header(constants.HeaderRateLimitLimit, strconv.Itoa(res.Limit))
		c.Header(constants.HeaderRateLimitRemaining, strconv.Itoa(res.Remaining))
		c.Header(constants.HeaderRateLimitReset, strconv.FormatInt(res.ResetAt.Unix(), 10))

		if !res.Allowed {
			retryAfter := int(math.Ceil(res.RetryAfter(time.Now()).Seconds()))
			c.Header(constants.HeaderRetryAfter, strconv.Itoa(retryAfter))

			logger.WarnWithContext(ctx, "Rate limit exceeded").
				String("path", c.Request.URL.Path).
				Int("limit", res.Limit).
				Int("retry_after_seconds", retryAfter).
				Log()

			c.AbortWithStatusJSON(domainErrors.ToHTTPStatus(domainErrors.ErrRateLimited),
				constants.BuildCodedErrorResponse(constants.MsgTooManyRequests, domainErrors.CodeRateLimited))
			return
		}

		c.Next()
	}
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
