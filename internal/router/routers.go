package router

import (
	"strings"

	"github.com/Payphone-Digital/identity/config"
	"github.com/Payphone-Digital/identity/internal/handler"
	"github.com/Payphone-Digital/identity/internal/middleware"
	"github.com/Payphone-Digital/identity/pkg/ratelimit"
	"github.com/gin-gonic/gin"
)

// Limiters holds the request budgets applied to the auth routes.
type Limiters struct {
	General ratelimit.Limiter
	Resend  ratelimit.Limiter
}

type Router struct {
	authHandler   *handler.AuthHandler
	healthHandler *handler.HealthHandler
	authenticator middleware.Authenticator
	limiters      Limiters
	Config        *config.Config
}

func NewRouter(
	auth *handler.AuthHandler,
	health *handler.HealthHandler,
	authenticator middleware.Authenticator,
	limiters Limiters,
	config *config.Config,
) *Router {
	return &Router{
		authHandler:   auth,
		healthHandler: health,
		authenticator: authenticator,
		limiters:      limiters,
		Config:        config,
	}
}

func (r *Router) SetupRoutes() *gin.Engine {
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware())
	router.Use(middleware.ContextMiddleware("http"))
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.CORS(r.Config.App.AllowedOrigins))
	if r.Config.App.Timeout > 0 {
		router.Use(middleware.RequestTimeoutMiddleware(r.Config.App.Timeout))
	}

	router.GET("/health", r.healthHandler.HealthCheck)
	router.GET("/health/live", r.healthHandler.BasicHealth)

	r.authRoutes(router.Group("/auth"))
	r.refreshRoutes(router.Group(r.refreshPath()))

	return router
}

const defaultRefreshPath = "/auth/refresh"

func (r *Router) refreshPath() string {
	path := strings.TrimRight(r.Config.Cookie.RefreshPath, "/")
	if path == "" {
		return defaultRefreshPath
	}
	return path
}
