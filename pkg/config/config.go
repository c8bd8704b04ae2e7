package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel           string
	HTTPPort           string
	HTTPRequestTimeout time.Duration
	CORSOrigins        []string

	// Dexscreener API
	DexscreenerURL       string
	DexscreenerTimeout   time.Duration
	DexscreenerRateLimit float64 // requests per second
	DexscreenerBurst     int

	// Market data fetch
	FetchDeadline    time.Duration
	FetchConcurrency int
	FetchMaxVenues   int
	VenueCacheTTL    time.Duration
	MinLiquidityUSD  float64

	// Per-venue circuit breaker
	BreakerMaxFailures int
	BreakerOpenTimeout time.Duration

	// Request defaults
	DefaultInvestment    float64
	DefaultSlippage      float64
	DefaultFeePercentage float64
	DefaultTokenAddress  string

	// Arbitrage detection
	ArbTriangular   bool
	ArbBridgeTokens int

	// Log sink
	LogSinkMode   string // "memory", "postgres" or "redis"
	LogSinkBuffer int
	LogQueryLimit int

	// Users
	UserStoreMode string // "memory" or "postgres"

	// Postgres
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisLogsKey  string

	// Watcher
	WatchTokens   []string
	WatchInterval time.Duration

	// WebSocket log stream
	WSPingInterval time.Duration
	WSPongTimeout  time.Duration
	WSSendBuffer   int
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort:           getEnvOrDefault("HTTP_PORT", "8080"),
		HTTPRequestTimeout: getDurationOrDefault("HTTP_REQUEST_TIMEOUT", 30*time.Second),
		CORSOrigins:        getListOrDefault("CORS_ORIGINS", nil),

		// Dexscreener defaults (public API allows 300 req/min on pair endpoints)
		DexscreenerURL:       getEnvOrDefault("DEXSCREENER_API_URL", "https://api.dexscreener.com"),
		DexscreenerTimeout:   getDurationOrDefault("DEXSCREENER_TIMEOUT", 10*time.Second),
		DexscreenerRateLimit: getFloat64OrDefault("DEXSCREENER_RATE_LIMIT", 5.0),
		DexscreenerBurst:     getIntOrDefault("DEXSCREENER_BURST", 5),

		// Fetch defaults
		FetchDeadline:    getDurationOrDefault("FETCH_DEADLINE", 8*time.Second),
		FetchConcurrency: getIntOrDefault("FETCH_CONCURRENCY", 8),
		FetchMaxVenues:   getIntOrDefault("FETCH_MAX_VENUES", 30),
		VenueCacheTTL:    getDurationOrDefault("VENUE_CACHE_TTL", 60*time.Second),
		MinLiquidityUSD:  getFloat64OrDefault("MIN_LIQUIDITY_USD", 10000),

		// Breaker defaults
		BreakerMaxFailures: getIntOrDefault("BREAKER_MAX_FAILURES", 5),
		BreakerOpenTimeout: getDurationOrDefault("BREAKER_OPEN_TIMEOUT", 30*time.Second),

		// Request defaults
		DefaultInvestment:    getFloat64OrDefault("DEFAULT_INVESTMENT", 10000),
		DefaultSlippage:      getFloat64OrDefault("DEFAULT_SLIPPAGE", 0.0005),
		DefaultFeePercentage: getFloat64OrDefault("DEFAULT_FEE_PERCENTAGE", 0.0003),
		DefaultTokenAddress:  getEnvOrDefault("DEFAULT_TOKEN_ADDRESS", "7vfCXTUXx5WJV5JADk17DUJ4ksgau7utNKj4b963voxs"),

		// Arbitrage defaults
		ArbTriangular:   getBoolOrDefault("ARB_TRIANGULAR", true),
		ArbBridgeTokens: getIntOrDefault("ARB_BRIDGE_TOKENS", 3),

		// Log sink defaults
		LogSinkMode:   getEnvOrDefault("LOG_SINK_MODE", "memory"),
		LogSinkBuffer: getIntOrDefault("LOG_SINK_BUFFER", 256),
		LogQueryLimit: getIntOrDefault("LOG_QUERY_LIMIT", 100),

		UserStoreMode: getEnvOrDefault("USER_STORE_MODE", "memory"),

		// Postgres defaults
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "dexarb"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "dexarb123"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "dex_arb"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),

		// Redis defaults
		RedisAddr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getIntOrDefault("REDIS_DB", 0),
		RedisLogsKey:  getEnvOrDefault("REDIS_LOGS_KEY", "dexarb:logs"),

		// Watcher defaults
		WatchTokens:   getListOrDefault("WATCH_TOKENS", nil),
		WatchInterval: getDurationOrDefault("WATCH_INTERVAL", 30*time.Second),

		// WebSocket defaults
		WSPingInterval: getDurationOrDefault("WS_PING_INTERVAL", 10*time.Second),
		WSPongTimeout:  getDurationOrDefault("WS_PONG_TIMEOUT", 15*time.Second),
		WSSendBuffer:   getIntOrDefault("WS_SEND_BUFFER", 64),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.DexscreenerURL == "" {
		return fmt.Errorf("DEXSCREENER_API_URL cannot be empty")
	}

	if c.DexscreenerRateLimit <= 0 {
		return fmt.Errorf("DEXSCREENER_RATE_LIMIT must be positive, got %f", c.DexscreenerRateLimit)
	}

	if c.FetchDeadline <= 0 {
		return fmt.Errorf("FETCH_DEADLINE must be positive, got %s", c.FetchDeadline)
	}

	if c.FetchConcurrency < 1 {
		return fmt.Errorf("FETCH_CONCURRENCY must be at least 1, got %d", c.FetchConcurrency)
	}

	if c.FetchMaxVenues < 2 {
		return fmt.Errorf("FETCH_MAX_VENUES must be at least 2, got %d", c.FetchMaxVenues)
	}

	if c.BreakerMaxFailures < 1 {
		return fmt.Errorf("BREAKER_MAX_FAILURES must be at least 1, got %d", c.BreakerMaxFailures)
	}

	if c.BreakerOpenTimeout <= 0 {
		return fmt.Errorf("BREAKER_OPEN_TIMEOUT must be positive, got %s", c.BreakerOpenTimeout)
	}

	if c.MinLiquidityUSD < 0 {
		return fmt.Errorf("MIN_LIQUIDITY_USD must be non-negative, got %f", c.MinLiquidityUSD)
	}

	if c.DefaultInvestment <= 0 {
		return fmt.Errorf("DEFAULT_INVESTMENT must be positive, got %f", c.DefaultInvestment)
	}

	if c.DefaultSlippage < 0 || c.DefaultSlippage >= 1.0 {
		return fmt.Errorf("DEFAULT_SLIPPAGE must be in [0, 1), got %f", c.DefaultSlippage)
	}

	if c.DefaultFeePercentage < 0 || c.DefaultFeePercentage >= 1.0 {
		return fmt.Errorf("DEFAULT_FEE_PERCENTAGE must be in [0, 1), got %f", c.DefaultFeePercentage)
	}

	switch c.LogSinkMode {
	case "memory", "postgres", "redis":
	default:
		return fmt.Errorf("LOG_SINK_MODE must be 'memory', 'postgres' or 'redis', got %q", c.LogSinkMode)
	}

	if c.UserStoreMode != "memory" && c.UserStoreMode != "postgres" {
		return fmt.Errorf("USER_STORE_MODE must be 'memory' or 'postgres', got %q", c.UserStoreMode)
	}

	if c.LogQueryLimit < 1 {
		return fmt.Errorf("LOG_QUERY_LIMIT must be at least 1, got %d", c.LogQueryLimit)
	}

	if len(c.WatchTokens) > 0 && c.WatchInterval <= 0 {
		return fmt.Errorf("WATCH_INTERVAL must be positive when WATCH_TOKENS is set, got %s", c.WatchInterval)
	}

	return nil
}

// PostgresDSN returns the lib/pq connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPass, c.PostgresDB, c.PostgresSSL,
	)
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}

// getListOrDefault splits a comma separated value, dropping blanks.
func getListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	list := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			list = append(list, p)
		}
	}

	return list
}
