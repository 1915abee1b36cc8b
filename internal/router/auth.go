package router

import (
	"github.com/Payphone-Digital/identity/internal/dto"
	"github.com/Payphone-Digital/identity/internal/middleware"
	"github.com/gin-gonic/gin"
)

func (r *Router) authRoutes(rg *gin.RouterGroup) {
	rg.Use(middleware.RateLimit(r.limiters.General, middleware.ClientIPKey))

	rg.POST("/register", middleware.ValidateJSON[dto.RegisterRequest](), r.authHandler.Register)
	rg.POST("/login", middleware.ValidateJSON[dto.LoginRequest](), r.authHandler.Login)
	rg.POST("/google", middleware.ValidateJSON[dto.GoogleLoginRequest](), r.authHandler.Google)
	rg.POST("/verify-email", middleware.ValidateJSON[dto.VerifyEmailRequest](), r.authHandler.VerifyEmail)
	rg.POST("/resend-verification",
		middleware.ValidateJSON[dto.ResendVerificationRequest](),
		middleware.RateLimit(r.limiters.Resend, middleware.BodyEmailKey(func(req *dto.ResendVerificationRequest) string {
			return req.Email
		})),
		r.authHandler.ResendVerification,
	)

	// Browsers never send the refresh cookie here since it is scoped to the
	// refresh path. This route only clears cookies; revoking the session
	// needs <refresh path>/logout.
	rg.POST("/logout", r.authHandler.Logout)

	protected := rg.Group("")
	protected.Use(middleware.RequireAuth(r.authenticator))
	{
		protected.GET("/me", r.authHandler.Me)
		protected.DELETE("/me", r.authHandler.DeleteMe)
	}
}

// refreshRoutes mounts at the refresh cookie's path so both routes receive
// the cookie.
func (r *Router) refreshRoutes(rg *gin.RouterGroup) {
	rg.Use(middleware.RateLimit(r.limiters.General, middleware.ClientIPKey))

	rg.POST("", r.authHandler.Refresh)
	rg.POST("/logout", r.authHandler.Logout)
}
