// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port           string
	Env            string // "development", "staging", "production"
	LogLevel       string
	AllowedOrigins []string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Chain RPC endpoints, one per supported chain
	EthRPCURL  string
	BaseRPCURL string

	// Block explorer API keys
	EtherscanAPIKey string
	BasescanAPIKey  string

	// Analysis settings
	CacheTTLSeconds        int // how long a report stays fresh
	AnalysisTimeoutSeconds int // per-job pipeline deadline
	AnalysisWorkers        int

	// Policy files (optional; built-in defaults when unset)
	CustodiansFile string
	RiskLevelsFile string

	// Security
	RateLimitRPS int

	// Observability
	OTLPEndpoint string
}

// Defaults
const (
	DefaultEthRPCURL       = "https://eth.llamarpc.com"
	DefaultBaseRPCURL      = "https://mainnet.base.org"
	DefaultPort            = "8080"
	DefaultEnv             = "development"
	DefaultLogLevel        = "info"
	DefaultCacheTTL        = 21600 // 6 hours
	DefaultAnalysisTimeout = 120
	DefaultAnalysisWorkers = 4
	DefaultRateLimit       = 100
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                   getEnv("PORT", DefaultPort),
		Env:                    getEnv("ENV", DefaultEnv),
		LogLevel:               getEnv("LOG_LEVEL", DefaultLogLevel),
		AllowedOrigins:         splitList(os.Getenv("ALLOWED_ORIGINS")),
		DatabaseURL:            os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		EthRPCURL:              getEnv("ETH_RPC_URL", DefaultEthRPCURL),
		BaseRPCURL:             getEnv("BASE_RPC_URL", DefaultBaseRPCURL),
		EtherscanAPIKey:        os.Getenv("ETHERSCAN_API_KEY"),
		BasescanAPIKey:         os.Getenv("BASESCAN_API_KEY"),
		CacheTTLSeconds:        int(getEnvInt64("CACHE_TTL_SECONDS", DefaultCacheTTL)),
		AnalysisTimeoutSeconds: int(getEnvInt64("ANALYSIS_TIMEOUT_SECONDS", DefaultAnalysisTimeout)),
		AnalysisWorkers:        int(getEnvInt64("ANALYSIS_WORKERS", DefaultAnalysisWorkers)),
		CustodiansFile:         os.Getenv("CUSTODIANS_FILE"),
		RiskLevelsFile:         os.Getenv("RISK_LEVELS_FILE"),
		RateLimitRPS:           int(getEnvInt64("RATE_LIMIT_RPS", int64(DefaultRateLimit))),
		OTLPEndpoint:           os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.EthRPCURL == "" && c.BaseRPCURL == "" {
		return fmt.Errorf("at least one of ETH_RPC_URL or BASE_RPC_URL is required")
	}
	if c.CacheTTLSeconds < 0 {
		return fmt.Errorf("CACHE_TTL_SECONDS must not be negative")
	}
	if c.AnalysisTimeoutSeconds <= 0 {
		return fmt.Errorf("ANALYSIS_TIMEOUT_SECONDS must be positive")
	}
	if c.AnalysisWorkers <= 0 {
		return fmt.Errorf("ANALYSIS_WORKERS must be positive")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
