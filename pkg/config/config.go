// Package config loads the bridge validator's runtime configuration from
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Role selects which leader loops this process runs, one flag per
// direction. Both signer pipelines run regardless of Role.
type Role struct {
	LeaderA bool
	LeaderB bool
}

// Config holds every key recognized by the bridge validator.
type Config struct {
	// Identity
	SignerAccAddr string // chain-A account address for this signer
	SignerAccName string // chain-B local keyring alias used by the CLI tool

	// Chain A (EVM multisig)
	EthereumURL             string
	EthChainID              int64
	EthPrivateKey           string
	MultisigContractAddress string
	VaultContractAddress    string
	BlocksConfirmationReq   int // "blocks_confirmation_required" / "eth_confirmations"
	EthStartBlock           uint64

	// Chain B burn scan (LeaderA)
	ScrtStartNonce uint64

	// Chain B (privacy swap chain)
	SecretContractAddress string // "secret_contract_address"
	ViewingKey            string
	MultisigAccAddr       string // B-side multisig account the leader broadcasts from
	ChainBRPCURL          string
	ChainBCLIPath         string // path to the B-side keyring/broadcast CLI binary
	ChainBCLITimeout      time.Duration

	// Leader (LeaderKey signs LeaderA's chain-A submitTransaction calls)
	LeaderKey     string
	LeaderAccAddr string
	Role          Role

	// Federation
	SignaturesThreshold int // M of N

	// Token maps
	TokenMapEthPath  string // "token_map_eth"
	TokenMapScrtPath string // "token_map_scrt"

	// Storage
	DatabaseURL string
	DBName      string // "db_name"
	AppDataDir  string // "app_data" — loaded but not read by cmd/bridge

	// Operational
	LoggerName               string // "logger_name"
	DefaultSleepInterval      time.Duration
	QuorumTimeout             time.Duration
	RPCTimeout                time.Duration
	ShutdownTimeout           time.Duration
	MetricsAddr               string
	HealthAddr                string
}

// Load reads configuration from environment variables. Call Validate()
// afterward; Load never fails on missing values so that defaults and
// validation stay in one place.
func Load() (*Config, error) {
	cfg := &Config{
		SignerAccAddr: getEnv("SIGNER_ACC_ADDR", ""),
		SignerAccName: getEnv("SIGNER_ACC_NAME", ""),

		EthereumURL:             getEnv("ETHEREUM_URL", ""),
		EthChainID:              getEnvInt64("ETH_CHAIN_ID", 1),
		EthPrivateKey:           getEnv("ETH_PRIVATE_KEY", ""),
		MultisigContractAddress: getEnv("MULTISIG_CONTRACT_ADDRESS", ""),
		VaultContractAddress:    getEnv("VAULT_CONTRACT_ADDRESS", ""),
		BlocksConfirmationReq:   getEnvInt("ETH_CONFIRMATIONS", 12),
		EthStartBlock:           uint64(getEnvInt64("ETH_START_BLOCK", 0)),
		ScrtStartNonce:          uint64(getEnvInt64("SCRT_START_NONCE", 0)),

		SecretContractAddress: getEnv("SECRET_CONTRACT_ADDRESS", ""),
		ViewingKey:            getEnv("VIEWING_KEY", ""),
		MultisigAccAddr:       getEnv("MULTISIG_ACC_ADDR", ""),
		ChainBRPCURL:          getEnv("CHAIN_B_RPC_URL", ""),
		ChainBCLIPath:         getEnv("CHAIN_B_CLI_PATH", ""),
		ChainBCLITimeout:      getEnvDuration("CHAIN_B_CLI_TIMEOUT", 30*time.Second),

		LeaderKey:     getEnv("LEADER_KEY", ""),
		LeaderAccAddr: getEnv("LEADER_ACC_ADDR", ""),
		Role: Role{
			LeaderA: getEnvBool("LEADER_A", false),
			LeaderB: getEnvBool("LEADER_B", false),
		},

		SignaturesThreshold: getEnvInt("SIGNATURES_THRESHOLD", 1),

		TokenMapEthPath:  getEnv("TOKEN_MAP_ETH", ""),
		TokenMapScrtPath: getEnv("TOKEN_MAP_SCRT", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		DBName:      getEnv("DB_NAME", "bridge"),
		AppDataDir:  getEnv("APP_DATA", "./data"),

		LoggerName:           getEnv("LOGGER_NAME", "bridge"),
		DefaultSleepInterval: getEnvDuration("DEFAULT_SLEEP_TIME_INTERVAL", 15*time.Second),
		QuorumTimeout:        getEnvDuration("QUORUM_TIMEOUT", 10*time.Minute),
		RPCTimeout:           getEnvDuration("RPC_TIMEOUT", 20*time.Second),
		ShutdownTimeout:      getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		MetricsAddr:          getEnv("METRICS_ADDR", ":9090"),
		HealthAddr:           getEnv("HEALTH_ADDR", ":8081"),
	}

	return cfg, nil
}

// Validate reports a ConfigurationError (fatal, startup-only per spec §7)
// when a required field is missing. Requirements differ by role: every
// process needs chain A and chain B read access; only elected leaders
// need broadcast credentials.
func (c *Config) Validate() error {
	var missing []string

	required := map[string]string{
		"ETHEREUM_URL":               c.EthereumURL,
		"MULTISIG_CONTRACT_ADDRESS":  c.MultisigContractAddress,
		"VAULT_CONTRACT_ADDRESS":     c.VaultContractAddress,
		"ETH_PRIVATE_KEY":            c.EthPrivateKey,
		"SECRET_CONTRACT_ADDRESS":    c.SecretContractAddress,
		"VIEWING_KEY":                c.ViewingKey,
		"SIGNER_ACC_ADDR":            c.SignerAccAddr,
		"SIGNER_ACC_NAME":            c.SignerAccName,
		"DATABASE_URL":               c.DatabaseURL,
		"TOKEN_MAP_ETH":              c.TokenMapEthPath,
		"TOKEN_MAP_SCRT":             c.TokenMapScrtPath,
	}
	for key, value := range required {
		if value == "" {
			missing = append(missing, key)
		}
	}

	if c.Role.LeaderB && c.ChainBCLIPath == "" {
		missing = append(missing, "CHAIN_B_CLI_PATH (required when LEADER_B=true)")
	}
	if c.Role.LeaderA && c.LeaderKey == "" {
		missing = append(missing, "LEADER_KEY (required when LEADER_A=true)")
	}
	if c.SignaturesThreshold < 1 {
		missing = append(missing, "SIGNATURES_THRESHOLD must be >= 1")
	}
	if c.BlocksConfirmationReq < 0 {
		missing = append(missing, "ETH_CONFIRMATIONS must be >= 0")
	}

	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	return nil
}

// ConfigurationError is the only fatal error class: it surfaces once at
// startup and the process must exit non-zero rather than retry.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Missing, "\n  - "))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
