package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Payphone-Digital/identity/internal/constants"
	"github.com/Payphone-Digital/identity/internal/dto"
	apperrors "github.com/Payphone-Digital/identity/internal/errors"
	"github.com/Payphone-Digital/identity/internal/middleware"
	"github.com/Payphone-Digital/identity/internal/service"
	ctxutil "github.com/Payphone-Digital/identity/pkg/context"
	"github.com/Payphone-Digital/identity/pkg/logger"
	"github.com/gin-gonic/gin"
)

// CookiePolicy scopes both auth cookies. The same policy is used wherever
// a cookie is set or cleared.
type CookiePolicy struct {
	Domain      string
	Secure      bool
	RefreshPath string
}

type AuthHandler struct {
	auth    *service.AuthService
	cookies CookiePolicy
}

func NewAuthHandler(auth *service.AuthService, cookies CookiePolicy) *AuthHandler {
	return &AuthHandler{
		auth:    auth,
		cookies: cookies,
	}
}

func clientInfo(c *gin.Context) service.ClientInfo {
	return service.ClientInfo{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

// Register handles account registration
func (h *AuthHandler) Register(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "Register")
	req := middleware.Body[dto.RegisterRequest](c)

	if err := h.auth.Register(ctx, *req); err != nil {
		h.respondError(c, ctx, "Registration failed", err)
		return
	}

	c.JSON(http.StatusCreated, constants.BuildSuccessResponse(constants.MsgRegistered))
}

// Login handles password authentication
func (h *AuthHandler) Login(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "Login")
	req := middleware.Body[dto.LoginRequest](c)

	tokens, err := h.auth.Login(ctx, *req, clientInfo(c))
	if err != nil {
		h.respondError(c, ctx, "Login failed", err)
		return
	}

	h.setAuthCookies(c, tokens)
	c.JSON(http.StatusOK, constants.BuildUserResponse(tokens.User))
}

// Google handles sign-in with a Google ID token
func (h *AuthHandler) Google(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "Google")
	req := middleware.Body[dto.GoogleLoginRequest](c)

	tokens, err := h.auth.LoginWithGoogle(ctx, req.IDToken, clientInfo(c))
	if err != nil {
		h.respondError(c, ctx, "Google login failed", err)
		return
	}

	h.setAuthCookies(c, tokens)
	c.JSON(http.StatusOK, constants.BuildUserResponse(tokens.User))
}

func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "VerifyEmail")
	req := middleware.Body[dto.VerifyEmailRequest](c)

	if err := h.auth.VerifyEmail(ctx, req.Token); err != nil {
		h.respondError(c, ctx, "Email verification failed", err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse(constants.MsgEmailVerified))
}

// ResendVerification answers identically whether or not the email exists.
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "ResendVerification")
	req := middleware.Body[dto.ResendVerificationRequest](c)

	if err := h.auth.ResendVerification(ctx, req.Email); err != nil {
		logger.ErrorWithContext(ctx, "Resend verification failed").Err(err).Log()
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse(constants.MsgVerificationResent))
}

// Refresh rotates the refresh cookie and reissues the access cookie
func (h *AuthHandler) Refresh(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "Refresh")

	secret, _ := c.Cookie(constants.CookieRefreshToken)
	tokens, err := h.auth.Refresh(ctx, secret, clientInfo(c))
	if err != nil {
		if errors.Is(err, apperrors.ErrSessionExpired) {
			h.clearAuthCookies(c)
		}
		h.respondError(c, ctx, "Token refresh failed", err)
		return
	}

	h.setAuthCookies(c, tokens)
	c.JSON(http.StatusOK, gin.H{
		constants.ResponseFieldMessage: constants.MsgTokenRefreshed,
		constants.ResponseFieldUser:    tokens.User,
	})
}

// Logout revokes the presented refresh session and clears both cookies
func (h *AuthHandler) Logout(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "Logout")

	secret, _ := c.Cookie(constants.CookieRefreshToken)
	err := h.auth.Logout(ctx, secret)
	h.clearAuthCookies(c)
	if err != nil {
		h.respondError(c, ctx, "Logout failed", err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse(constants.MsgLoggedOut))
}

func (h *AuthHandler) Me(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "Me")

	accountID, ok := middleware.AccountID(c)
	if !ok {
		h.respondError(c, ctx, "Missing principal", apperrors.ErrUnauthorized)
		return
	}

	user, err := h.auth.Me(ctx, accountID)
	if err != nil {
		h.respondError(c, ctx, "Failed to load account", err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildUserResponse(user))
}

// DeleteMe anonymizes the caller's account. Cookies are cleared on every
// outcome.
func (h *AuthHandler) DeleteMe(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "DeleteMe")
	h.clearAuthCookies(c)

	accountID, ok := middleware.AccountID(c)
	if !ok {
		h.respondError(c, ctx, "Missing principal", apperrors.ErrUnauthorized)
		return
	}

	if err := h.auth.DeleteSelf(ctx, accountID); err != nil {
		h.respondError(c, ctx, "Account deletion failed", err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse(constants.MsgAccountDeleted))
}

func (h *AuthHandler) setAuthCookies(c *gin.Context, tokens *service.IssuedTokens) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(constants.CookieAccessToken, tokens.AccessToken,
		maxAge(tokens.AccessExpiresAt), "/", h.cookies.Domain, h.cookies.Secure, true)
	c.SetCookie(constants.CookieRefreshToken, tokens.RefreshToken,
		maxAge(tokens.RefreshExpiresAt), h.cookies.RefreshPath, h.cookies.Domain, h.cookies.Secure, true)
}

func (h *AuthHandler) clearAuthCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(constants.CookieAccessToken, "", -1, "/", h.cookies.Domain, h.cookies.Secure, true)
	c.SetCookie(constants.CookieRefreshToken, "", -1, h.cookies.RefreshPath, h.cookies.Domain, h.cookies.Secure, true)
}

func maxAge(expiresAt time.Time) int {
	seconds := int(time.Until(expiresAt).Round(time.Second).Seconds())
	if seconds < 1 {
		return -1
	}
	return seconds
}

// respondError maps err onto the response. Internal failures are logged
// in full and reach the client only as a generic 500.
func (h *AuthHandler) respondError(c *gin.Context, ctx context.Context, msg string, err error) {
	status := apperrors.ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorWithContext(ctx, msg).Int("status_code", status).Err(err).Log()
	} else {
		logger.WarnWithContext(ctx, msg).
			Int("status_code", status).
			String("code", apperrors.GetErrorCode(err)).
			Log()
	}

	c.JSON(status, constants.BuildCodedErrorResponse(apperrors.GetErrorMessage(err), apperrors.GetErrorCode(err)))
}
