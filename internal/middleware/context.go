package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/Payphone-Digital/identity/internal/constants"
	ctxutil "github.com/Payphone-Digital/identity/pkg/context"
	"github.com/Payphone-Digital/identity/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextMiddleware attaches request id, client address and user agent to
// the request context and echoes the request id.
func ContextMiddleware(module string) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(constants.HeaderXRequestID)
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}

		ctx := ctxutil.WithRequestMeta(c.Request.Context(), requestID, c.ClientIP(), c.Request.UserAgent())
		ctx = ctxutil.NewContextWithRequest(ctx, c.Request, module, c.FullPath())

		c.Set(constants.GinKeyRequestID, requestID)
		c.Header(constants.HeaderXRequestID, requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// RequestTimeoutMiddleware bounds the time handlers spend on a request.
func RequestTimeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)

		select {
		case <-ctx.Done():
			logger.WarnWithContext(ctx, "Request timeout before processing").
				Duration(timeout).
				Log()
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, constants.BuildCodedErrorResponse("request timeout", "TIMEOUT"))
			return
		default:
			c.Next()
		}
	}
}
