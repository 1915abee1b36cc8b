package middleware

import (
	"net/http"
	"time"

	"github.com/Payphone-Digital/identity/internal/constants"
	domainErrors "github.com/Payphone-Digital/identity/internal/errors"
	"github.com/Payphone-Digital/identity/pkg/logger"
	"github.com/gin-gonic/gin"
)

const slowRequestThreshold = 2 * time.Second

// LoggingMiddleware writes one access log entry per request. Query strings
// are left out since verification links carry tokens.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		logger.LogRequest(
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			latency,
			c.ClientIP(),
			c.Request.UserAgent(),
			c.GetString(constants.GinKeyRequestID),
		)

		if latency > slowRequestThreshold {
			logger.WarnWithContext(c.Request.Context(), "Slow request detected").
				String("method", c.Request.Method).
				String("path", c.Request.URL.Path).
				Duration(latency).
				Log()
		}
	}
}

// RecoveryMiddleware turns a panic into a generic 500.
func RecoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.LogPanic(recovered)

		c.AbortWithStatusJSON(http.StatusInternalServerError,
			constants.BuildCodedErrorResponse(constants.MsgInternalError, domainErrors.CodeInternal))
	})
}
