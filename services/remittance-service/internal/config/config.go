package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/13507-IN/HorizonPay/shared/pkg/db"
)

// Config holds all configuration for the remittance service
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Ledger    LedgerConfig
	Assets    AssetsConfig
	Tracking  TrackingConfig
	History   HistoryConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	LogLevel  string
}

// ServerConfig holds listener configuration
type ServerConfig struct {
	HTTPPort        string
	GRPCPort        string
	ShutdownTimeout time.Duration
}

// DatabaseConfig selects the store. Driver is "mysql" or "memory".
type DatabaseConfig struct {
	Driver string
	db.Config
}

// RedisConfig is optional; without a URL events are dropped and locks are process-local
type RedisConfig struct {
	URL     string
	LockTTL time.Duration
}

type LedgerConfig struct {
	Address          string
	Token            string
	Timeout          time.Duration
	BreakerFailures  int
	BreakerOpenDelay time.Duration
}

type AssetsConfig struct {
	File         string
	NoteMaxBytes int
}

// TrackingConfig bounds the polling done inside send and refresh calls
type TrackingConfig struct {
	AfterSubmit       bool
	MaxRounds         int
	PollDelay         time.Duration
	MaxPollDelay      time.Duration
	BackoffMultiplier float64
	RefreshMaxRounds  int
	RefreshPollDelay  time.Duration
}

type HistoryConfig struct {
	DefaultLimit int
	MaxLimit     int
}

type AuthConfig struct {
	JWTSecret string
}

type RateLimitConfig struct {
	SendRPS   float64
	SendBurst int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			HTTPPort:        getEnv("HTTP_PORT", "8080"),
			GRPCPort:        getEnv("GRPC_PORT", "50061"),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(getEnv("DB_DRIVER", "mysql")),
			Config: db.Config{
				Host:            getEnv("DB_HOST", "localhost"),
				Port:            getEnvInt("DB_PORT", 3306),
				User:            getEnv("DB_USER", "root"),
				Password:        getEnv("DB_PASSWORD", ""),
				Database:        getEnv("DB_DATABASE", "horizonpay"),
				MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
				MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
				ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
				MaxRetries:      getEnvInt("DB_MAX_RETRIES", 5),
			},
		},
		Redis: RedisConfig{
			URL:     getEnv("REDIS_URL", ""),
			LockTTL: getEnvDuration("TRACK_LOCK_TTL", 5*time.Minute),
		},
		Ledger: LedgerConfig{
			Address:          getEnv("ALGOD_ADDRESS", "https://testnet-api.algonode.cloud"),
			Token:            getEnv("ALGOD_TOKEN", ""),
			Timeout:          getEnvDuration("LEDGER_TIMEOUT", 10*time.Second),
			BreakerFailures:  getEnvInt("LEDGER_BREAKER_FAILURES", 5),
			BreakerOpenDelay: getEnvDuration("LEDGER_BREAKER_OPEN_DELAY", 30*time.Second),
		},
		Assets: AssetsConfig{
			File:         getEnv("ASSETS_FILE", ""),
			NoteMaxBytes: getEnvInt("NOTE_MAX_BYTES", 1000),
		},
		Tracking: TrackingConfig{
			AfterSubmit:       getEnvBool("TRACK_AFTER_SUBMIT", false),
			MaxRounds:         getEnvInt("TRACK_MAX_ROUNDS", 10),
			PollDelay:         getEnvDuration("TRACK_POLL_DELAY", time.Second),
			MaxPollDelay:      getEnvDuration("TRACK_MAX_POLL_DELAY", 4*time.Second),
			BackoffMultiplier: getEnvFloat("TRACK_BACKOFF_MULTIPLIER", 1),
			RefreshMaxRounds:  getEnvInt("REFRESH_MAX_ROUNDS", 3),
			RefreshPollDelay:  getEnvDuration("REFRESH_POLL_DELAY", time.Second),
		},
		History: HistoryConfig{
			DefaultLimit: getEnvInt("HISTORY_DEFAULT_LIMIT", 20),
			MaxLimit:     getEnvInt("HISTORY_MAX_LIMIT", 100),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		RateLimit: RateLimitConfig{
			SendRPS:   getEnvFloat("SEND_RATE_LIMIT_RPS", 1),
			SendBurst: getEnvInt("SEND_RATE_LIMIT_BURST", 5),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations the service cannot run with
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "memory":
	default:
		return fmt.Errorf("DB_DRIVER must be mysql or memory, got %q", c.Database.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Ledger.Address == "" {
		return fmt.Errorf("ALGOD_ADDRESS is required")
	}
	if c.Tracking.MaxRounds < 1 || c.Tracking.RefreshMaxRounds < 1 {
		return fmt.Errorf("TRACK_MAX_ROUNDS and REFRESH_MAX_ROUNDS must be at least 1")
	}
	if c.History.DefaultLimit < 1 || c.History.MaxLimit < c.History.DefaultLimit {
		return fmt.Errorf("HISTORY_DEFAULT_LIMIT must be between 1 and HISTORY_MAX_LIMIT")
	}
	if c.Assets.NoteMaxBytes < 1 {
		return fmt.Errorf("NOTE_MAX_BYTES must be positive")
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("750ms") or plain seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
