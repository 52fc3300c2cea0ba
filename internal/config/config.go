package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Event store backends.
const (
	EventStoreGraphQL  = "graphql"
	EventStorePostgres = "postgres"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	EnvioGraphQLURL       string
	EnvioPassword         string
	EventStore            string
	DatabaseURL           string
	RPCURL                string
	RPCRetryMax           int
	RPCRetryBaseDelay     time.Duration
	RPCTimeout            time.Duration
	PriceFetchConcurrency int
	DefaultVaultAddress   string
	DefaultChainID        uint64
	PPSStoreEnabled       bool
	MetricsTextfile       string
	GoogleCredentialsJSON string
	SheetsSpreadsheetID   string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		EnvioGraphQLURL:       envOrDefault("ENVIO_GRAPHQL_URL", "https://indexer.hyperindex.xyz/3fec0a4/v1/graphql"),
		EnvioPassword:         envOrDefault("ENVIO_PASSWORD", ""),
		EventStore:            envOrDefaultChoice("EVENT_STORE", EventStoreGraphQL, EventStoreGraphQL, EventStorePostgres),
		DatabaseURL:           envOrDefault("DATABASE_URL", ""),
		RPCURL:                envOrDefault("RPC_URL", ""),
		RPCRetryMax:           envOrDefaultInt("RPC_RETRY_MAX", 3),
		RPCRetryBaseDelay:     envOrDefaultDuration("RPC_RETRY_BASE_DELAY", time.Second),
		RPCTimeout:            envOrDefaultDuration("RPC_TIMEOUT", 30*time.Second),
		PriceFetchConcurrency: envOrDefaultInt("PRICE_FETCH_CONCURRENCY", 8),
		DefaultVaultAddress:   envOrDefault("DEFAULT_VAULT_ADDRESS", "0xBe53A109B494E5c9f97b9Cd39Fe969BE68BF6204"),
		DefaultChainID:        envOrDefaultUint("DEFAULT_CHAIN_ID", 1),
		PPSStoreEnabled:       envOrDefaultBool("PPS_STORE_ENABLED", false),
		MetricsTextfile:       envOrDefault("METRICS_TEXTFILE", ""),
		GoogleCredentialsJSON: envOrDefault("GOOGLE_CREDENTIALS_JSON", ""),
		SheetsSpreadsheetID:   envOrDefault("SHEETS_SPREADSHEET_ID", ""),
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultChoice(key, defaultVal string, allowed ...string) string {
	v := strings.ToLower(envOrDefault(key, defaultVal))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	slog.Warn("unsupported env var value, using default", "key", key, "value", v, "default", defaultVal)
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func envOrDefaultUint(key string, defaultVal uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			slog.Warn("invalid unsigned integer env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func envOrDefaultBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			slog.Warn("invalid boolean env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return b
	}
	return defaultVal
}

func envOrDefaultDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return d
	}
	return defaultVal
}
