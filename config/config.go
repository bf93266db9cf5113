// Package config loads the indexer's configuration from an optional YAML
// file with environment-variable overrides, the same two-layer pattern
// the teacher project uses.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
	"gopkg.in/yaml.v3"
)

// RPCConfig holds the remote node's JSON-RPC connection details. It is
// read from the YAML file's rpc section, and four environment variables
// (RPC_USER, RPC_PASS, RPC_HOST, RPC_PORT) override it.
type RPCConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// GlobalConfig is set once by LoadConfig and read by packages that don't
// receive a *Config directly (teacher idiom: config/config.go also
// exposes a package-level GlobalConfig for code far from main()).
var GlobalConfig *Config
var GlobalNetwork *chaincfg.Params

// Config is the full set of tunables for one indexer process.
type Config struct {
	Network string `yaml:"network"` // mainnet | testnet | regtest

	DataDir           string `yaml:"data_dir"`
	BlockFilesDir     string `yaml:"block_files_dir"`
	BackupDir         string `yaml:"backup_dir"`
	BackupEnabled     bool   `yaml:"backup_enabled"`

	APIPort string `yaml:"api_port"`

	BatchSize     int `yaml:"batch_size"`     // loaded and validated only; the block indexer commits one batch per block
	SyncEveryNBlk int `yaml:"sync_every_n_blocks"` // periodic store flush cadence, in blocks

	ZMQAddress           []string `yaml:"zmq_address"`
	ZmqReconnectInterval int      `yaml:"zmq_reconnect_interval"`

	RPC RPCConfig `yaml:"rpc"`
}

// GetChainParams resolves the btcd chain parameters matching Network.
func (c *Config) GetChainParams() (*chaincfg.Params, error) {
	switch c.Network {
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("unknown network: %s", c.Network)
	}
}

// LoadConfig reads defaults, then an optional YAML file at path (or the
// path given by -config), then environment variable overrides, in that
// order — same precedence as the teacher's LoadConfig.
func LoadConfig(path string) (*Config, error) {
	configFlag := flag.String("config", "", "path to config file")
	if !flag.Parsed() {
		flag.Parse()
	}

	cfg := &Config{
		Network:               "mainnet",
		DataDir:               "data",
		BlockFilesDir:         "data/blocks",
		BackupDir:             "data/backups",
		APIPort:               "8080",
		BatchSize:             3000,
		SyncEveryNBlk:         20,
		ZMQAddress:            []string{"tcp://localhost:28332"},
		ZmqReconnectInterval:  5,
		RPC: RPCConfig{
			Host: "localhost",
			Port: "8332",
		},
	}

	configPath := *configFlag
	if configPath == "" {
		configPath = path
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if network := os.Getenv("NETWORK"); network != "" {
		cfg.Network = network
	}
	if dir := os.Getenv("DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}
	if backupDir := os.Getenv("BACKUP_DIR"); backupDir != "" {
		cfg.BackupDir = backupDir
	}
	if user := os.Getenv("RPC_USER"); user != "" {
		cfg.RPC.User = user
	}
	if pass := os.Getenv("RPC_PASS"); pass != "" {
		cfg.RPC.Password = pass
	}
	if host := os.Getenv("RPC_HOST"); host != "" {
		cfg.RPC.Host = host
	}
	if port := os.Getenv("RPC_PORT"); port != "" {
		cfg.RPC.Port = port
	}
	if zmq := os.Getenv("ZMQ_ADDRESS"); zmq != "" {
		cfg.ZMQAddress = strings.Split(zmq, ",")
	}
	if batchSize := os.Getenv("BATCH_SIZE"); batchSize != "" {
		if v, err := strconv.Atoi(batchSize); err == nil && v > 0 {
			cfg.BatchSize = v
		}
	}

	params, err := cfg.GetChainParams()
	if err != nil {
		return nil, fmt.Errorf("chain configuration validation failed: %w", err)
	}
	GlobalNetwork = params

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	GlobalConfig = cfg
	return cfg, nil
}
