package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/empuxa/totp-login/internal/login/service"
	"github.com/empuxa/totp-login/internal/login/session"
)

type Config struct {
	Issuer string // Issuer claim for minted login tokens

	Env       string // Environment label (local, staging, production) (default: local)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: json)

	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)

	DatabaseFile string // Path to the SQLite database file (default: ./login.db)
	RedisAddr    string // Redis address for the attempt limiter (default: localhost:6379)
	RedisPass    string // Optional Redis password

	CodeLength            int           // Digits per login code (default: 6)
	CodeTTL               time.Duration // Code validity (default: 10m)
	CodeMaxAttempts       int           // Code submissions per window (default: 5)
	IdentifierMaxAttempts int           // Identifier submissions per window (default: 5)
	EnableThrottling      bool          // Attempt limiter on both phases (default: true)
	DiscloseAttemptsLeft  bool          // Include remaining budget in incorrect-code errors (default: false)
	ValidateEmail         bool          // Syntactic email validation of identifiers (default: true)

	Superpin                  string   // Optional override code; empty disables the feature
	SuperpinEnvironments      []string // Environments where the override is accepted
	SuperpinBypassIdentifiers []string // Identifiers accepting the override in any environment

	SessionTTL  time.Duration // Login session lifetime between the phases (default: 15m)
	TokenTTL    time.Duration // Minted token lifetime (default: 1h)
	RememberTTL time.Duration // Token lifetime with remember set (default: 720h)

	Redirect      string // Where the client is sent after login (default: /)
	SecureCookies bool   // Mark the session cookie Secure (default: true outside local)
}

func LoadConfig() Config {
	env := getEnvOrDefault("ENV", "local")

	cfg := Config{
		Issuer:    getEnvOrDefault("TOTP_LOGIN_ISSUER", "totp-login"),
		Env:       env,
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),

		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),

		DatabaseFile: getEnvOrDefault("TOTP_LOGIN_DATABASE_FILE", "login.db"),
		RedisAddr:    getEnvOrDefault("TOTP_LOGIN_REDIS_ADDR", "localhost:6379"),
		RedisPass:    os.Getenv("TOTP_LOGIN_REDIS_PASSWORD"),

		CodeLength:            getEnvIntOrDefault("TOTP_LOGIN_CODE_LENGTH", service.DefaultCodeLength),
		CodeTTL:               getEnvDurationOrDefault("TOTP_LOGIN_CODE_TTL", service.DefaultCodeTTL),
		CodeMaxAttempts:       getEnvIntOrDefault("TOTP_LOGIN_CODE_MAX_ATTEMPTS", service.DefaultMaxAttempts),
		IdentifierMaxAttempts: getEnvIntOrDefault("TOTP_LOGIN_IDENTIFIER_MAX_ATTEMPTS", service.DefaultMaxAttempts),
		EnableThrottling:      getEnvBoolOrDefault("TOTP_LOGIN_ENABLE_THROTTLING", true),
		DiscloseAttemptsLeft:  getEnvBoolOrDefault("TOTP_LOGIN_DISCLOSE_ATTEMPTS_LEFT", false),
		ValidateEmail:         getEnvBoolOrDefault("TOTP_LOGIN_VALIDATE_EMAIL", true),

		Superpin:                  os.Getenv("TOTP_LOGIN_SUPERPIN"),
		SuperpinEnvironments:      getEnvListOrDefault("TOTP_LOGIN_SUPERPIN_ENVIRONMENTS", []string{"local"}),
		SuperpinBypassIdentifiers: getEnvListOrDefault("TOTP_LOGIN_SUPERPIN_BYPASS_IDENTIFIERS", nil),

		SessionTTL:  getEnvDurationOrDefault("TOTP_LOGIN_SESSION_TTL", session.DefaultTTL),
		TokenTTL:    getEnvDurationOrDefault("TOTP_LOGIN_TOKEN_TTL", 1*time.Hour),
		RememberTTL: getEnvDurationOrDefault("TOTP_LOGIN_REMEMBER_TTL", 30*24*time.Hour),

		Redirect:      getEnvOrDefault("TOTP_LOGIN_REDIRECT", "/"),
		SecureCookies: getEnvBoolOrDefault("TOTP_LOGIN_SECURE_COOKIES", env != "local"),
	}

	return cfg
}

// OverridePolicy builds the override-code policy from the configured
// superpin settings.
func (c Config) OverridePolicy() service.OverridePolicy {
	p := service.OverridePolicy{
		Environments:      c.SuperpinEnvironments,
		BypassIdentifiers: c.SuperpinBypassIdentifiers,
	}
	if c.Superpin != "" {
		pin := c.Superpin
		p.Code = &pin
	}
	return p
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Accept Go durations (e.g. "10m", "1h30m")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Accept bare integers as seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
