package constants

// Application Information
const (
	AppName    = "Identity Service"
	AppVersion = "1.0.0"
)

// Environment Types
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Redis key prefixes
const (
	CacheKeyPrefix     = "identity:"
	RateLimitKeyPrefix = CacheKeyPrefix + "ratelimit:"
	RateLimitKeyIP     = RateLimitKeyPrefix + "ip:"
	RateLimitKeyResend = RateLimitKeyPrefix + "resend:"
)

// Log Levels
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)
