package config

import (
	"fmt"
	"os"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
)

// Clusters we know how to talk to. The demo panel only targets public
// mainnet and devnet; localnet is deliberately unsupported.
const (
	ClusterMainnet = "mainnet"
	ClusterDevnet  = "devnet"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// Backend configuration (the transaction-construction service)
	BackendBaseURL string

	// Which cluster the panel targets: "mainnet" or "devnet"
	Cluster string

	// Solana RPC configuration - Mainnet
	SolanaMainnetRPCURL string
	SolanaMainnetWSURL  string

	// Solana RPC configuration - Devnet
	SolanaDevnetRPCURL string
	SolanaDevnetWSURL  string

	// Confirmation configuration
	Commitment     string // "processed", "confirmed", or "finalized"
	ConfirmTimeout time.Duration

	// Wallet configuration (panel-side signer)
	KeypairPath string

	// Optional collaborators. Empty means the feature is disabled.
	DatabaseURL string
	NATSURL     string

	// Price ticker configuration
	PriceAPIURL       string
	PricePollInterval time.Duration
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Backend configuration
	cfg.BackendBaseURL = os.Getenv("BACKEND_BASE_URL")
	if cfg.BackendBaseURL == "" {
		errs = append(errs, fmt.Errorf("BACKEND_BASE_URL is required"))
	}

	// Cluster selection
	cfg.Cluster = getEnvOrDefault("SOLANA_CLUSTER", ClusterDevnet)
	if cfg.Cluster != ClusterMainnet && cfg.Cluster != ClusterDevnet {
		errs = append(errs, fmt.Errorf("SOLANA_CLUSTER must be %q or %q, got %q",
			ClusterMainnet, ClusterDevnet, cfg.Cluster))
	}

	// Solana RPC configuration. Sensible public defaults; premium endpoints
	// (Helius, QuickNode, Alchemy) go in with the API key baked into the URL.
	cfg.SolanaMainnetRPCURL = getEnvOrDefault("SOLANA_MAINNET_RPC_URL", rpc.MainNetBeta_RPC)
	cfg.SolanaMainnetWSURL = getEnvOrDefault("SOLANA_MAINNET_WS_URL", rpc.MainNetBeta_WS)
	cfg.SolanaDevnetRPCURL = getEnvOrDefault("SOLANA_DEVNET_RPC_URL", rpc.DevNet_RPC)
	cfg.SolanaDevnetWSURL = getEnvOrDefault("SOLANA_DEVNET_WS_URL", rpc.DevNet_WS)

	// Confirmation configuration
	cfg.Commitment = getEnvOrDefault("COMMITMENT_LEVEL", "confirmed")
	switch cfg.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		errs = append(errs, fmt.Errorf("COMMITMENT_LEVEL must be processed, confirmed, or finalized, got %q", cfg.Commitment))
	}

	confirmTimeout, err := parseDuration("CONFIRM_TIMEOUT", "45s")
	if err != nil {
		errs = append(errs, err)
	} else if confirmTimeout <= 0 {
		errs = append(errs, fmt.Errorf("CONFIRM_TIMEOUT must be positive"))
	} else {
		cfg.ConfirmTimeout = confirmTimeout
	}

	// Wallet configuration
	cfg.KeypairPath = getEnvOrDefault("WALLET_KEYPAIR_PATH", "")

	// Optional collaborators
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.NATSURL = os.Getenv("NATS_URL")

	// Price ticker configuration
	cfg.PriceAPIURL = getEnvOrDefault("PRICE_API_URL",
		"https://api.coingecko.com/api/v3/simple/price?ids=solana&vs_currencies=usd")
	pricePollInterval, err := parseDuration("PRICE_POLL_INTERVAL", "30s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.PricePollInterval = pricePollInterval
	}

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// RPCURL returns the JSON-RPC endpoint for the configured cluster.
func (c *Config) RPCURL() string {
	if c.Cluster == ClusterMainnet {
		return c.SolanaMainnetRPCURL
	}
	return c.SolanaDevnetRPCURL
}

// WSURL returns the websocket endpoint for the configured cluster.
func (c *Config) WSURL() string {
	if c.Cluster == ClusterMainnet {
		return c.SolanaMainnetWSURL
	}
	return c.SolanaDevnetWSURL
}

// CommitmentType maps the configured commitment level onto the RPC client's type.
func (c *Config) CommitmentType() rpc.CommitmentType {
	switch c.Commitment {
	case "processed":
		return rpc.CommitmentProcessed
	case "finalized":
		return rpc.CommitmentFinalized
	default:
		return rpc.CommitmentConfirmed
	}
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.BackendBaseURL == "" {
		errs = append(errs, fmt.Errorf("BackendBaseURL is required"))
	}

	if c.Cluster != ClusterMainnet && c.Cluster != ClusterDevnet {
		errs = append(errs, fmt.Errorf("Cluster must be %q or %q", ClusterMainnet, ClusterDevnet))
	}

	if c.RPCURL() == "" {
		errs = append(errs, fmt.Errorf("RPC URL for cluster %q is required", c.Cluster))
	}

	if c.WSURL() == "" {
		errs = append(errs, fmt.Errorf("websocket URL for cluster %q is required", c.Cluster))
	}

	switch c.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		errs = append(errs, fmt.Errorf("Commitment must be processed, confirmed, or finalized"))
	}

	if c.ConfirmTimeout <= 0 {
		errs = append(errs, fmt.Errorf("ConfirmTimeout must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return duration, nil
}
