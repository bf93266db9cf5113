package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
)

func TestGetChainParamsForKnownNetworks(t *testing.T) {
	cases := map[string]*chaincfg.Params{
		"mainnet": &chaincfg.MainNetParams,
		"testnet": &chaincfg.TestNet3Params,
		"regtest": &chaincfg.RegressionNetParams,
	}
	for network, want := range cases {
		cfg := &Config{Network: network}
		got, err := cfg.GetChainParams()
		if err != nil {
			t.Errorf("GetChainParams(%q): %v", network, err)
			continue
		}
		if got != want {
			t.Errorf("GetChainParams(%q) = %v, want %v", network, got, want)
		}
	}
}

func TestGetChainParamsRejectsUnknownNetwork(t *testing.T) {
	cfg := &Config{Network: "not-a-real-network"}
	if _, err := cfg.GetChainParams(); err == nil {
		t.Errorf("GetChainParams on unknown network: expected an error")
	}
}

// TestLoadConfigAppliesYAMLAndEnvOverrides is the only test in this package
// that calls LoadConfig: it registers a "-config" flag on the global
// flag.CommandLine on every call, so a second invocation within the same
// test binary panics with "flag redefined". Every scenario this needs to
// cover — YAML overrides layered under env-var overrides — is exercised in
// this single call.
func TestLoadConfigAppliesYAMLAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "config.yaml")
	dataDir := filepath.Join(dir, "yamldata")
	if err := os.WriteFile(yamlPath, []byte("network: testnet\ndata_dir: "+dataDir+"\n"), 0o644); err != nil {
		t.Fatalf("write config.yaml: %v", err)
	}

	t.Setenv("RPC_USER", "envuser")
	t.Setenv("RPC_PASS", "envpass")
	t.Setenv("BATCH_SIZE", "500")

	cfg, err := LoadConfig(yamlPath)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Network != "testnet" {
		t.Errorf("Network = %q, want testnet (from YAML)", cfg.Network)
	}
	if cfg.DataDir != dataDir {
		t.Errorf("DataDir = %q, want %q (from YAML)", cfg.DataDir, dataDir)
	}
	if cfg.RPC.User != "envuser" || cfg.RPC.Password != "envpass" {
		t.Errorf("RPC = %+v, want env overrides applied", cfg.RPC)
	}
	if cfg.BatchSize != 500 {
		t.Errorf("BatchSize = %d, want 500 (from env)", cfg.BatchSize)
	}
	// APIPort was never overridden, so the built-in default survives.
	if cfg.APIPort != "8080" {
		t.Errorf("APIPort = %q, want default 8080", cfg.APIPort)
	}
}
