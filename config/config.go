package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Config represents the payroll sync processor configuration
type Config struct {
	Service    ServiceConfig    `yaml:"service"`
	Chain      ChainConfig      `yaml:"chain"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Settlement SettlementConfig `yaml:"settlement"`
	Health     HealthConfig     `yaml:"health"`
}

// ServiceConfig contains service-level configuration
type ServiceConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// ChainConfig contains RPC endpoint and payroll contract settings
type ChainConfig struct {
	RPCEndpoint     string `yaml:"rpc_endpoint"`
	ContractAddress string `yaml:"contract_address"`
	StartBlock      uint64 `yaml:"start_block"`    // backfill lower bound, 0 = genesis
	ChunkSize       uint64 `yaml:"chunk_size"`     // max blocks per getLogs call
	PollInterval    string `yaml:"poll_interval"`  // live watcher poll cadence, e.g. "5s"
	PrivateKey      string `yaml:"private_key"`    // hex signing key; empty = read-only mode
}

// PostgresConfig holds the optional timeline archive settings
type PostgresConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// SettlementConfig bounds batch settlement submissions
type SettlementConfig struct {
	MaxBatchSize uint64 `yaml:"max_batch_size"`
	PageSize     uint64 `yaml:"page_size"`
}

// HealthConfig contains health endpoint configuration
type HealthConfig struct {
	Port int `yaml:"port"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Set defaults
	if config.Service.Name == "" {
		config.Service.Name = "payroll-sync-processor"
	}
	if config.Service.Version == "" {
		config.Service.Version = "1.0.0"
	}
	if config.Chain.ChunkSize == 0 {
		config.Chain.ChunkSize = 5000
	}
	if config.Chain.PollInterval == "" {
		config.Chain.PollInterval = "5s"
	}
	if config.Postgres.SSLMode == "" {
		config.Postgres.SSLMode = "disable"
	}
	if config.Settlement.MaxBatchSize == 0 {
		config.Settlement.MaxBatchSize = 50
	}
	if config.Settlement.PageSize == 0 {
		config.Settlement.PageSize = 10
	}
	if config.Health.Port == 0 {
		config.Health.Port = 8098
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks required fields
func (c *Config) Validate() error {
	if c.Chain.RPCEndpoint == "" {
		return fmt.Errorf("chain.rpc_endpoint is required")
	}
	if !common.IsHexAddress(c.Chain.ContractAddress) {
		return fmt.Errorf("chain.contract_address %q is not a valid address", c.Chain.ContractAddress)
	}
	if _, err := time.ParseDuration(c.Chain.PollInterval); err != nil {
		return fmt.Errorf("chain.poll_interval: %w", err)
	}
	return nil
}

// Contract returns the parsed payroll contract address
func (c *Config) Contract() common.Address {
	return common.HexToAddress(c.Chain.ContractAddress)
}

// GetPollInterval returns the live watcher poll interval as a duration
func (c *Config) GetPollInterval() time.Duration {
	d, err := time.ParseDuration(c.Chain.PollInterval)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// ConnectionString builds a PostgreSQL connection string
func (p *PostgresConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		p.Host, p.Port, p.Database, p.User, p.Password, p.SSLMode,
	)
}
