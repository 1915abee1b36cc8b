package constants

// HTTP Header Names
const (
	HeaderContentType        = "Content-Type"
	HeaderAuthorization      = "Authorization"
	HeaderUserAgent          = "User-Agent"
	HeaderXRequestID         = "X-Request-ID"
	HeaderXForwardedFor      = "X-Forwarded-For"
	HeaderXRealIP            = "X-Real-IP"
	HeaderRetryAfter         = "Retry-After"
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
)

// Cookie names
const (
	CookieAccessToken  = "accessToken"
	CookieRefreshToken = "refreshToken"
)

// Common HTTP messages
const (
	MsgBadRequest      = "invalid request"
	MsgInternalError   = "internal server error"
	MsgTooManyRequests = "too many requests"

	MsgRegistered         = "registration successful, please check your email to verify your account"
	MsgEmailVerified      = "email verified successfully"
	MsgVerificationResent = "if an unverified account exists for this email, a new verification link has been sent"
	MsgTokenRefreshed     = "token refreshed"
	MsgLoggedOut          = "logged out"
	MsgAccountDeleted     = "account deleted"
	MsgHealthy            = "healthy"
	MsgUnhealthy          = "unhealthy"
)
