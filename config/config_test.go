package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load(New(), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := DefaultConfig()
	if *cfg != *want {
		t.Errorf("config = %+v, want %+v", cfg, want)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "efd.yaml")
	data := []byte(`bridge_url: ""
fallback_rpc_url: https://rpc.sepolia.org
deployments: ./deployments.yaml
dial_timeout: 3s
log:
  level: debug
  json: true
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(New(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BridgeURL != "" {
		t.Errorf("BridgeURL = %q, want empty", cfg.BridgeURL)
	}
	if cfg.FallbackRPCURL != "https://rpc.sepolia.org" {
		t.Errorf("FallbackRPCURL = %q", cfg.FallbackRPCURL)
	}
	if cfg.Deployments != "./deployments.yaml" {
		t.Errorf("Deployments = %q", cfg.Deployments)
	}
	if cfg.DialTimeout != 3*time.Second {
		t.Errorf("DialTimeout = %s", cfg.DialTimeout)
	}
	if cfg.Log.Level != "debug" || !cfg.Log.JSON {
		t.Errorf("Log = %+v", cfg.Log)
	}

	w := cfg.Wallet()
	if w.FallbackRPCURL != cfg.FallbackRPCURL || w.DialTimeout != cfg.DialTimeout {
		t.Errorf("wallet config = %+v", w)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "efd.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("EFD_LOG_LEVEL", "error")
	t.Setenv("EFD_FALLBACK_RPC_URL", "http://node:8545")

	cfg, err := Load(New(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("Log.Level = %q, want error", cfg.Log.Level)
	}
	if cfg.FallbackRPCURL != "http://node:8545" {
		t.Errorf("FallbackRPCURL = %q", cfg.FallbackRPCURL)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"no fallback":  func(c *Config) { c.FallbackRPCURL = " " },
		"zero timeout": func(c *Config) { c.DialTimeout = 0 },
		"bad level":    func(c *Config) { c.Log.Level = "loud" },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(New(), filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
