package middleware

import (
	"context"
	"strings"

	"github.com/Payphone-Digital/identity/internal/constants"
	domainErrors "github.com/Payphone-Digital/identity/internal/errors"
	"github.com/Payphone-Digital/identity/internal/model"
	"github.com/Payphone-Digital/identity/internal/service"
	ctxutil "github.com/Payphone-Digital/identity/pkg/context"
	"github.com/Payphone-Digital/identity/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*service.Principal, error)
}

// RequireAuth accepts the access token from its cookie or a Bearer header.
func RequireAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		token := accessToken(c)
		if token == "" {
			abortWithError(c, domainErrors.ErrUnauthorized)
			return
		}

		principal, err := auth.Authenticate(ctx, token)
		if err != nil {
			logger.WarnWithContext(ctx, "Access token rejected").
				String("path", c.Request.URL.Path).
				Err(err).
				Log()
			abortWithError(c, err)
			return
		}

		c.Set(constants.GinKeyAccountID, principal.AccountID)
		c.Set(constants.GinKeyPersonas, principal.Personas)
		c.Request = c.Request.WithContext(ctxutil.WithAccountID(ctx, principal.AccountID))
		c.Next()
	}
}

func accessToken(c *gin.Context) string {
	if cookie, err := c.Cookie(constants.CookieAccessToken); err == nil && cookie != "" {
		return cookie
	}
	header := c.GetHeader(constants.HeaderAuthorization)
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

// AccountID returns the authenticated account set by RequireAuth.
func AccountID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(constants.GinKeyAccountID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// Personas returns the persona set carried by the access token.
func Personas(c *gin.Context) model.PersonaSet {
	if v, ok := c.Get(constants.GinKeyPersonas); ok {
		if set, ok := v.(model.PersonaSet); ok {
			return set
		}
	}
	return model.NewPersonaSet()
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(domainErrors.ToHTTPStatus(err),
		constants.BuildCodedErrorResponse(domainErrors.GetErrorMessage(err), domainErrors.GetErrorCode(err)))
}
