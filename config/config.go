package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Cookie    CookieConfig
	Google    GoogleConfig
	Mail      MailConfig
	RateLimit RateLimitConfig
	Security  SecurityConfig
	Seed      SeedConfig
}

type AppConfig struct {
	Name        string        `mapstructure:"name"`
	Environment string        `mapstructure:"environment"`
	Debug       bool          `mapstructure:"debug"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Port        string        `mapstructure:"port"`
	FrontendURL string        `mapstructure:"frontend_url"`
	// AllowedOrigins lists origins allowed to send credentialed requests.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type CookieConfig struct {
	Domain string `mapstructure:"domain"`
	// Secure forces the Secure attribute outside production when set.
	Secure      bool   `mapstructure:"secure"`
	RefreshPath string `mapstructure:"refresh_path"`
}

type GoogleConfig struct {
	ClientID     string        `mapstructure:"client_id"`
	JWKSURL      string        `mapstructure:"jwks_url"`
	Issuers      []string      `mapstructure:"issuers"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	// KeysRefresh is how often the key set is refetched in the background.
	KeysRefresh time.Duration `mapstructure:"keys_refresh"`
	// UnknownKIDInterval bounds refetches triggered by tokens with an
	// unknown key id to one per interval.
	UnknownKIDInterval time.Duration `mapstructure:"unknown_kid_interval"`
}

type MailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	// RequireTLS refuses relays that do not offer STARTTLS.
	RequireTLS bool          `mapstructure:"require_tls"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	Database     int           `mapstructure:"database"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
}

type RateLimitConfig struct {
	Request        int           `mapstructure:"request"`
	Duration       time.Duration `mapstructure:"duration"`
	ResendRequest  int           `mapstructure:"resend_request"`
	ResendDuration time.Duration `mapstructure:"resend_duration"`
}

type SecurityConfig struct {
	BcryptCost         int           `mapstructure:"bcrypt_cost"`
	SnowflakeNode      int64         `mapstructure:"snowflake_node"`
	DisposableDomains  []string      `mapstructure:"disposable_domains"`
	CheckMX            bool          `mapstructure:"check_mx"`
	SessionCleanupTick time.Duration `mapstructure:"session_cleanup_tick"`
}

type SeedConfig struct {
	AdminEmail    string `mapstructure:"admin_email"`
	AdminPassword string `mapstructure:"admin_password"`
	AdminName     string `mapstructure:"admin_name"`
}

func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	config := &Config{
		App: AppConfig{
			Name:           getEnv("APP_NAME", "identity-service"),
			Environment:    getEnv("APP_ENV", "development"),
			Port:           getEnv("APP_PORT", "8080"),
			Debug:          getEnvAsBool("APP_DEBUG", true),
			Timeout:        getEnvAsDuration("APP_TIMEOUT", 30*time.Second),
			FrontendURL:    strings.TrimRight(getEnv("APP_FRONTEND_URL", "http://localhost:3000"), "/"),
			AllowedOrigins: getEnvAsList("APP_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "identity_db"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 10*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:      getEnvAsBool("REDIS_ENABLED", true),
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvAsInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			Database:     getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
			DialTimeout:  getEnvAsDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvAsDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvAsDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			PoolTimeout:  getEnvAsDuration("REDIS_POOL_TIMEOUT", 4*time.Second),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "default_secret_key_change_in_production"),
			Issuer: getEnv("JWT_ISSUER", "identity-service"),
		},
		Cookie: CookieConfig{
			Domain:      getEnv("COOKIE_DOMAIN", ""),
			Secure:      getEnvAsBool("COOKIE_SECURE", false),
			RefreshPath: getEnv("COOKIE_REFRESH_PATH", "/auth/refresh"),
		},
		Google: GoogleConfig{
			ClientID:           getEnv("GOOGLE_CLIENT_ID", ""),
			JWKSURL:            getEnv("GOOGLE_JWKS_URL", "https://www.googleapis.com/oauth2/v3/certs"),
			Issuers:            getEnvAsList("GOOGLE_ISSUERS", []string{"accounts.google.com", "https://accounts.google.com"}),
			FetchTimeout:       getEnvAsDuration("GOOGLE_FETCH_TIMEOUT", 5*time.Second),
			KeysRefresh:        getEnvAsDuration("GOOGLE_KEYS_REFRESH", time.Hour),
			UnknownKIDInterval: getEnvAsDuration("GOOGLE_UNKNOWN_KID_INTERVAL", 5*time.Minute),
		},
		Mail: MailConfig{
			Enabled:    getEnvAsBool("MAIL_ENABLED", false),
			Host:       getEnv("SMTP_HOST", "localhost"),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Username:   getEnv("SMTP_USERNAME", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			From:       getEnv("SMTP_FROM", "no-reply@localhost"),
			RequireTLS: getEnvAsBool("SMTP_REQUIRE_TLS", false),
			Timeout:    getEnvAsDuration("SMTP_TIMEOUT", 10*time.Second),
		},
		RateLimit: RateLimitConfig{
			Request:        getEnvAsInt("RATE_LIMIT_MAX_REQUEST", 30),
			Duration:       getEnvAsDuration("RATE_LIMIT_DURATION", time.Minute),
			ResendRequest:  getEnvAsInt("RESEND_RATE_LIMIT_MAX_REQUEST", 3),
			ResendDuration: getEnvAsDuration("RESEND_RATE_LIMIT_DURATION", time.Hour),
		},
		Security: SecurityConfig{
			BcryptCost:         getEnvAsInt("BCRYPT_COST", 12),
			SnowflakeNode:      int64(getEnvAsInt("SNOWFLAKE_NODE", 1)),
			DisposableDomains:  getEnvAsList("DISPOSABLE_EMAIL_DOMAINS", nil),
			CheckMX:            getEnvAsBool("EMAIL_CHECK_MX", true),
			SessionCleanupTick: getEnvAsDuration("SESSION_CLEANUP_INTERVAL", time.Hour),
		},
		Seed: SeedConfig{
			AdminEmail:    getEnv("SEED_ADMIN_EMAIL", ""),
			AdminPassword: getEnv("SEED_ADMIN_PASSWORD", ""),
			AdminName:     getEnv("SEED_ADMIN_NAME", "Administrator"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects settings that are unsafe to run with.
func (c *Config) Validate() error {
	if c.IsProduction() {
		if len(c.JWT.Secret) < 32 || c.JWT.Secret == "default_secret_key_change_in_production" {
			return errors.New("JWT_SECRET must be set to at least 32 characters in production")
		}
	}
	if c.Security.BcryptCost < 10 || c.Security.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 10 and 31, got %d", c.Security.BcryptCost)
	}
	if c.RateLimit.Request <= 0 || c.RateLimit.ResendRequest <= 0 {
		return errors.New("rate limit budgets must be positive")
	}
	if !strings.HasPrefix(c.Cookie.RefreshPath, "/") {
		return fmt.Errorf("COOKIE_REFRESH_PATH must be absolute, got %q", c.Cookie.RefreshPath)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// SecureCookies reports whether auth cookies carry the Secure attribute.
func (c *Config) SecureCookies() bool {
	return c.IsProduction() || c.Cookie.Secure
}

func (c *Config) DatabaseConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func (c *Config) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		boolValue, err := strconv.ParseBool(value)
		if err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
