package config

import (
	"os"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValidConfig(t *testing.T) {
	os.Setenv("BACKEND_BASE_URL", "https://backend.example.com")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "https://backend.example.com", cfg.BackendBaseURL)
	assert.Equal(t, ":8080", cfg.ServerAddr)       // Default
	assert.Equal(t, "info", cfg.LogLevel)          // Default
	assert.Equal(t, ClusterDevnet, cfg.Cluster)    // Default
	assert.Equal(t, "confirmed", cfg.Commitment)   // Default
	assert.Equal(t, 45*time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, 30*time.Second, cfg.PricePollInterval)
}

func TestLoad_MissingBackendBaseURL(t *testing.T) {
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "BACKEND_BASE_URL is required")
}

func TestLoad_InvalidCluster(t *testing.T) {
	os.Setenv("BACKEND_BASE_URL", "https://backend.example.com")
	os.Setenv("SOLANA_CLUSTER", "testnet")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "SOLANA_CLUSTER")
}

func TestLoad_InvalidCommitment(t *testing.T) {
	os.Setenv("BACKEND_BASE_URL", "https://backend.example.com")
	os.Setenv("COMMITMENT_LEVEL", "hopeful")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "COMMITMENT_LEVEL")
}

func TestLoad_InvalidConfirmTimeout(t *testing.T) {
	os.Setenv("BACKEND_BASE_URL", "https://backend.example.com")
	os.Setenv("CONFIRM_TIMEOUT", "soon")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "CONFIRM_TIMEOUT")
}

func TestLoad_ClusterSelection(t *testing.T) {
	os.Setenv("BACKEND_BASE_URL", "https://backend.example.com")
	os.Setenv("SOLANA_CLUSTER", "mainnet")
	os.Setenv("SOLANA_MAINNET_RPC_URL", "https://mainnet.helius-rpc.com/?api-key=abc")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://mainnet.helius-rpc.com/?api-key=abc", cfg.RPCURL())
	assert.Equal(t, rpc.MainNetBeta_WS, cfg.WSURL())
}

func TestCommitmentType(t *testing.T) {
	tests := []struct {
		commitment string
		want       rpc.CommitmentType
	}{
		{"processed", rpc.CommitmentProcessed},
		{"confirmed", rpc.CommitmentConfirmed},
		{"finalized", rpc.CommitmentFinalized},
	}

	for _, tt := range tests {
		cfg := &Config{Commitment: tt.commitment}
		assert.Equal(t, tt.want, cfg.CommitmentType())
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		BackendBaseURL:      "https://backend.example.com",
		Cluster:             ClusterDevnet,
		SolanaDevnetRPCURL:  rpc.DevNet_RPC,
		SolanaDevnetWSURL:   rpc.DevNet_WS,
		Commitment:          "confirmed",
		ConfirmTimeout:      30 * time.Second,
	}
	require.NoError(t, cfg.Validate())

	cfg.ConfirmTimeout = 0
	require.Error(t, cfg.Validate())
}

// cleanupEnv removes all config environment variables set by tests.
func cleanupEnv() {
	for _, key := range []string{
		"SERVER_ADDR", "LOG_LEVEL", "BACKEND_BASE_URL", "SOLANA_CLUSTER",
		"SOLANA_MAINNET_RPC_URL", "SOLANA_MAINNET_WS_URL",
		"SOLANA_DEVNET_RPC_URL", "SOLANA_DEVNET_WS_URL",
		"COMMITMENT_LEVEL", "CONFIRM_TIMEOUT", "WALLET_KEYPAIR_PATH",
		"DATABASE_URL", "NATS_URL", "PRICE_API_URL", "PRICE_POLL_INTERVAL",
	} {
		os.Unsetenv(key)
	}
}
