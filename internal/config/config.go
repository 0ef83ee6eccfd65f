package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// DeploymentConfig represents deployments.json, written by the contract
// deploy scripts.
type DeploymentConfig struct {
	ChainID   int64  `json:"chainId"`
	Deployer  string `json:"deployer"`
	Contracts struct {
		BuyMyRoom  string `json:"BuyMyRoom"`
		HouseToken string `json:"HouseToken"`
	} `json:"contracts"`
}

// AppConfig ties deployment info to service and chain settings.
type AppConfig struct {
	Deployment DeploymentConfig
	Service    ServiceConfig
	Chain      ChainConfig
}

type ServiceConfig struct {
	HTTPPort         int
	HMACSecret       string
	HMACClockSkew    time.Duration
	SubmissionWindow time.Duration
	PostgresDSN      string
	LogLevel         string
}

type ChainConfig struct {
	RPCURL      string
	WalletURL   string
	PrivateKey  string
	Account     string
	ReceiptPoll time.Duration
}

const defaultDeploymentsPath = "./deployments.json"

// Load aggregates configuration from disk and environment.
func Load() (*AppConfig, error) {
	deployCfg, err := loadDeployments(envOr("DEPLOYMENTS_PATH", defaultDeploymentsPath))
	if err != nil {
		return nil, fmt.Errorf("load deployments: %w", err)
	}

	serviceCfg := ServiceConfig{
		HTTPPort:         envOrInt("API_HTTP_PORT", 3000),
		HMACSecret:       envOr("HMAC_SECRET", ""),
		HMACClockSkew:    time.Duration(envOrInt("HMAC_CLOCK_SKEW_SECONDS", 60)) * time.Second,
		SubmissionWindow: time.Duration(envOrInt("SUBMISSION_WINDOW_SECONDS", 600)) * time.Second,
		PostgresDSN:      envOr("POSTGRES_DSN", ""),
		LogLevel:         envOr("LOG_LEVEL", "info"),
	}

	chainCfg := ChainConfig{
		RPCURL:      envOr("CHAIN_RPC_URL", "http://localhost:8545"),
		WalletURL:   envOr("WALLET_RPC_URL", ""),
		PrivateKey:  envOr("CHAIN_PRIVATE_KEY", ""),
		Account:     envOr("CHAIN_ACCOUNT", ""),
		ReceiptPoll: time.Duration(envOrInt("RECEIPT_POLL_MS", 2000)) * time.Millisecond,
	}

	return &AppConfig{
		Deployment: *deployCfg,
		Service:    serviceCfg,
		Chain:      chainCfg,
	}, nil
}

func loadDeployments(path string) (*DeploymentConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg DeploymentConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	if cfg.Contracts.BuyMyRoom == "" || cfg.Contracts.HouseToken == "" {
		return nil, fmt.Errorf("deployments file %s is missing contract addresses", path)
	}
	return &cfg, nil
}

func envOr(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
	}
	return fallback
}
