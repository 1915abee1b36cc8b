package middleware

import (
	"net/http"

	"github.com/Payphone-Digital/identity/internal/constants"
	domainErrors "github.com/Payphone-Digital/identity/internal/errors"
	"github.com/Payphone-Digital/identity/pkg/logger"
	"github.com/Payphone-Digital/identity/pkg/validation"
	"github.com/gin-gonic/gin"
)

// ValidateJSON binds the body into a fresh T using its binding tags and
// stores it for the handler. Invalid bodies stop the chain with 400.
func ValidateJSON[T any]() gin.HandlerFunc {
	return func(c *gin.Context) {
		req := new(T)
		if err := c.ShouldBindJSON(req); err != nil {
			messages := validation.Messages(err)
			logger.WarnWithContext(c.Request.Context(), "Request validation failed").
				String("path", c.FullPath()).
				Any("validation_errors", messages).
				Log()

			response := constants.BuildErrorResponse(constants.MsgBadRequest, messages)
			response[constants.ResponseFieldCode] = domainErrors.CodeValidation
			c.AbortWithStatusJSON(http.StatusBadRequest, response)
			return
		}

		c.Set(constants.GinKeyBody, req)
		c.Next()
	}
}

// Body returns the request bound by ValidateJSON[T].
func Body[T any](c *gin.Context) *T {
	if v, ok := c.Get(constants.GinKeyBody); ok {
		if req, ok := v.(*T); ok {
			return req
		}
	}
	return new(T)
}
