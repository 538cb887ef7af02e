package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	// Environment
	Environment string
	LogLevel    string

	// Database
	DatabaseURL    string
	MigrateOnStart bool

	// Redis
	RedisURL string

	// Server
	Port        string
	FrontendURL string

	// Security
	JWTSecret     string
	TokenTTLHours int

	// Matchmaking
	WagerTiers                []decimal.Decimal
	QueueStaleMinutes         int
	QueueSweepIntervalMinutes int
	MatchmakerIntervalSeconds int

	// Turns and presence
	TurnTimeoutSeconds            int
	AbandonedSweepIntervalSeconds int
	MatchIdleMinutes              int
	PresenceGraceSeconds          int
	PresenceSweepIntervalSeconds  int

	// Fees
	FeeRate                 decimal.Decimal
	FeeWithdrawThreshold    decimal.Decimal
	FeeSettlementAddress    string
	FeeMaxAttempts          int
	FeeRetryIntervalMinutes int

	// External payout service
	PayoutBaseURL        string
	PayoutAPIKey         string
	PayoutTimeoutSeconds int
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Database
		DatabaseURL:    getEnv("DATABASE_URL", "postgres://localhost:5432/silostrike?sslmode=disable"),
		MigrateOnStart: getEnv("MIGRATE_ON_START", "false") == "true",

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		// Server
		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		// Security
		JWTSecret:     getEnv("JWT_SECRET", "change-me-in-production"),
		TokenTTLHours: getEnvInt("TOKEN_TTL_HOURS", 72),

		// Matchmaking
		WagerTiers:                getEnvDecimalList("WAGER_TIERS", "0,0.01,0.05,0.1,0.5,1"),
		QueueStaleMinutes:         getEnvInt("QUEUE_STALE_MINUTES", 5),
		QueueSweepIntervalMinutes: getEnvInt("QUEUE_SWEEP_INTERVAL_MINUTES", 5),
		MatchmakerIntervalSeconds: getEnvInt("MATCHMAKER_INTERVAL_SECONDS", 2),

		// Turns and presence
		TurnTimeoutSeconds:            getEnvInt("TURN_TIMEOUT_SECONDS", 60),
		AbandonedSweepIntervalSeconds: getEnvInt("ABANDONED_SWEEP_INTERVAL_SECONDS", 30),
		MatchIdleMinutes:              getEnvInt("MATCH_IDLE_MINUTES", 10),
		PresenceGraceSeconds:          getEnvInt("PRESENCE_GRACE_SECONDS", 20),
		PresenceSweepIntervalSeconds:  getEnvInt("PRESENCE_SWEEP_INTERVAL_SECONDS", 5),

		// Fees
		FeeRate:                 getEnvDecimal("FEE_RATE", "0.05"),
		FeeWithdrawThreshold:    getEnvDecimal("FEE_WITHDRAW_THRESHOLD", "1"),
		FeeSettlementAddress:    getEnv("FEE_SETTLEMENT_ADDRESS", ""),
		FeeMaxAttempts:          getEnvInt("FEE_MAX_ATTEMPTS", 5),
		FeeRetryIntervalMinutes: getEnvInt("FEE_RETRY_INTERVAL_MINUTES", 1),

		// External payout service
		PayoutBaseURL:        getEnv("PAYOUT_BASE_URL", ""),
		PayoutAPIKey:         getEnv("PAYOUT_API_KEY", ""),
		PayoutTimeoutSeconds: getEnvInt("PAYOUT_TIMEOUT_SECONDS", 15),
	}
}

// TurnTimeout is how long a half-submitted turn may wait before the idle player forfeits.
func (c *Config) TurnTimeout() time.Duration {
	return time.Duration(c.TurnTimeoutSeconds) * time.Second
}

func (c *Config) QueueStaleAfter() time.Duration {
	return time.Duration(c.QueueStaleMinutes) * time.Minute
}

func (c *Config) MatchIdleAfter() time.Duration {
	return time.Duration(c.MatchIdleMinutes) * time.Minute
}

func (c *Config) PresenceGrace() time.Duration {
	return time.Duration(c.PresenceGraceSeconds) * time.Second
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLHours) * time.Hour
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDecimal(key, defaultValue string) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return decimal.RequireFromString(defaultValue)
}

// getEnvDecimalList parses a comma separated list. Unparseable items are skipped.
func getEnvDecimalList(key, defaultValue string) []decimal.Decimal {
	if out := parseDecimalList(os.Getenv(key)); len(out) > 0 {
		return out
	}
	return parseDecimalList(defaultValue)
}

func parseDecimalList(raw string) []decimal.Decimal {
	var out []decimal.Decimal
	for _, part := range strings.Split(raw, ",") {
		d, err := decimal.NewFromString(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	return out
}
