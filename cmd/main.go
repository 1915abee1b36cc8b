package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	configs "github.com/Payphone-Digital/identity/config"
	"github.com/Payphone-Digital/identity/internal/constants"
	"github.com/Payphone-Digital/identity/internal/handler"
	"github.com/Payphone-Digital/identity/internal/repository"
	"github.com/Payphone-Digital/identity/internal/router"
	"github.com/Payphone-Digital/identity/internal/service"
	"github.com/Payphone-Digital/identity/pkg/cache"
	"github.com/Payphone-Digital/identity/pkg/circuit"
	"github.com/Payphone-Digital/identity/pkg/database"
	"github.com/Payphone-Digital/identity/pkg/health"
	"github.com/Payphone-Digital/identity/pkg/logger"
	"github.com/Payphone-Digital/identity/pkg/pool"
	"github.com/Payphone-Digital/identity/pkg/ratelimit"
	"github.com/Payphone-Digital/identity/pkg/redis"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const version = "1.0.0"

func main() {
	config, err := configs.LoadConfig()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}
	if err := config.Validate(); err != nil {
		panic("Invalid config: " + err.Error())
	}

	if err := logger.InitLogger(config); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()
	log := logger.GetLogger()

	log.Info("Application starting",
		zap.String("app_name", config.App.Name),
		zap.String("environment", config.App.Environment),
		zap.String("version", version),
	)

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), time.Minute)
	defer cancelStartup()

	db, err := database.NewPostgresDB(startupCtx, config.Database, config.DatabaseConnectionString())
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.CloseDB(db)

	if err := database.Migrate(startupCtx, db); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}
	log.Info("Database migrated successfully")

	store := repository.NewStore(db)

	hasher, err := service.NewSecretHasher(config.Security.BcryptCost)
	if err != nil {
		log.Fatal("Failed to initialize password hasher", zap.Error(err))
	}

	seeded, err := database.SeedAdmin(startupCtx, store, hasher, database.AdminSeed{
		Email:    config.Seed.AdminEmail,
		Password: config.Seed.AdminPassword,
		Name:     config.Seed.AdminName,
	})
	if err != nil {
		log.Error("Failed to seed admin account", zap.Error(err))
	} else if seeded {
		log.Info("Admin account seeded", zap.String("email", config.Seed.AdminEmail))
	}

	breakers := circuit.NewRegistry(circuit.DefaultConfig(), log)
	monitor := health.NewMonitor(time.Minute, log)
	monitor.Register("database", health.PingChecker{Ping: func(ctx context.Context) error {
		return database.Ping(ctx, db)
	}}, true)

	generalLimiter := ratelimit.NewMemoryLimiter(config.RateLimit.Request, config.RateLimit.Duration)
	defer generalLimiter.Stop()
	resendLimiter := ratelimit.NewMemoryLimiter(config.RateLimit.ResendRequest, config.RateLimit.ResendDuration)
	defer resendLimiter.Stop()
	limiters := router.Limiters{General: generalLimiter, Resend: resendLimiter}
	var redisClient *redis.Client
	if config.Redis.Enabled {
		redisClient, err = redis.NewClient(config)
		if err != nil {
			log.Warn("Redis unavailable, falling back to in-process rate limits", zap.Error(err))
		} else {
			defer redisClient.Close()
			limiters = router.Limiters{
				General: ratelimit.NewRedisLimiter(redisClient.Cmdable(), constants.RateLimitKeyIP,
					config.RateLimit.Request, config.RateLimit.Duration),
				Resend: ratelimit.NewRedisLimiter(redisClient.Cmdable(), constants.RateLimitKeyResend,
					config.RateLimit.ResendRequest, config.RateLimit.ResendDuration),
			}
		}
	}
	if redisClient != nil {
		monitor.Register("redis", health.PingChecker{Ping: redisClient.Ping}, false)
	} else {
		monitor.Register("redis", health.PingChecker{}, false)
	}

	var mailer service.Mailer = service.LogMailer{}
	if config.Mail.Enabled {
		smtpMailer, err := service.NewSMTPMailer(config.Mail, breakers.Get("smtp"))
		if err != nil {
			log.Fatal("Failed to initialize mailer", zap.Error(err))
		}
		mailer = smtpMailer
	}
	dispatcher := service.NewMailDispatcher(mailer, 30*time.Second)

	usernames, err := service.NewUsernameGenerator(config.Security.SnowflakeNode)
	if err != nil {
		log.Fatal("Failed to initialize username generator", zap.Error(err))
	}

	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()

	clients := pool.NewConnectionPool(pool.DefaultPoolConfig(), log)
	defer clients.Close()
	jwksClient := clients.GetHTTPClient("google_jwks", config.Google.FetchTimeout)
	google, err := service.NewGoogleVerifier(appCtx, config.Google, jwksClient, breakers.Get("google_jwks"))
	if err != nil {
		log.Fatal("Failed to initialize Google token verifier", zap.Error(err))
	}

	mxCache := cache.New[bool](10 * time.Minute)
	defer mxCache.Stop()
	emails := service.NewEmailChecker(net.DefaultResolver, config.Security.DisposableDomains, config.Security.CheckMX).
		WithMXCache(mxCache, 30*time.Minute)
	monitor.Register("google_jwks", &health.HTTPChecker{URL: config.Google.JWKSURL, Client: jwksClient}, false)

	authService := service.NewAuthService(service.AuthDeps{
		Store:       store,
		Hasher:      hasher,
		Tokens:      service.NewJWTService(config.JWT.Secret, config.JWT.Issuer, constants.AccessTokenTTL),
		Usernames:   usernames,
		Emails:      emails,
		Google:      google,
		Mail:        dispatcher,
		FrontendURL: config.App.FrontendURL,
	})

	janitor := service.NewSessionJanitor(store.Sessions(), config.Security.SessionCleanupTick)
	janitor.Start(appCtx)
	monitor.Start()

	authHandler := handler.NewAuthHandler(authService, handler.CookiePolicy{
		Domain:      config.Cookie.Domain,
		Secure:      config.SecureCookies(),
		RefreshPath: config.Cookie.RefreshPath,
	})
	healthHandler := handler.NewHealthHandler(monitor, breakers, version)

	engine := router.NewRouter(authHandler, healthHandler, authService, limiters, config).SetupRoutes()

	srv := &http.Server{
		Addr:              ":" + config.App.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		log.Info("Server starting",
			zap.String("port", config.App.Port),
			zap.String("host", "0.0.0.0"),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server",
				zap.Error(err),
				zap.String("port", config.App.Port),
			)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	janitor.Stop()
	monitor.Stop()
	cancelApp()
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		log.Warn("Pending emails abandoned", zap.Error(err))
	}

	log.Info("Server exited")
}
