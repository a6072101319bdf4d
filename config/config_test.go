package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadOrCreateCreatesAndReloadsConfig(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv(DataDirEnv, tempDir)

	firstCfg, firstPath, dataDir, err := LoadOrCreate()
	if err != nil {
		t.Fatalf("first LoadOrCreate failed: %v", err)
	}
	if dataDir != tempDir {
		t.Fatalf("expected data dir %q, got %q", tempDir, dataDir)
	}
	if firstCfg.ClientID == "" {
		t.Fatalf("expected non-empty client ID")
	}
	if firstCfg.TokenProgram != DefaultTokenProgram {
		t.Fatalf("expected default token program, got %q", firstCfg.TokenProgram)
	}
	if firstCfg.TimeWindow() != 72*time.Hour {
		t.Fatalf("expected 3-day window, got %s", firstCfg.TimeWindow())
	}

	expectedConfigPath := filepath.Join(tempDir, "config.json")
	if firstPath != expectedConfigPath {
		t.Fatalf("expected config path %q, got %q", expectedConfigPath, firstPath)
	}

	secondCfg, secondPath, _, err := LoadOrCreate()
	if err != nil {
		t.Fatalf("second LoadOrCreate failed: %v", err)
	}

	if secondPath != firstPath {
		t.Fatalf("expected config path to be stable, got %q then %q", firstPath, secondPath)
	}
	if secondCfg.ClientID != firstCfg.ClientID {
		t.Fatalf("expected stable client ID, got %q then %q", firstCfg.ClientID, secondCfg.ClientID)
	}
	if secondCfg.BoxKeyPath != firstCfg.BoxKeyPath {
		t.Fatalf("expected stable key path, got %q then %q", firstCfg.BoxKeyPath, secondCfg.BoxKeyPath)
	}
	if secondCfg.PollInterval() != 30*time.Second {
		t.Fatalf("expected 30s poll interval, got %s", secondCfg.PollInterval())
	}
}

func TestLoadOrCreateNormalizesPartialConfig(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv(DataDirEnv, tempDir)

	if err := EnsureDataDirectories(tempDir); err != nil {
		t.Fatalf("EnsureDataDirectories failed: %v", err)
	}

	cfgPath := filepath.Join(tempDir, "config.json")
	partial := &Config{
		ClientID:      "legacy-client",
		WalletAddress: "wallet",
		SortOrder:     "ASC",
	}
	if err := Save(cfgPath, partial); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	cfg, _, _, err := LoadOrCreate()
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	if cfg.ClientID != "legacy-client" {
		t.Fatalf("expected client ID to be preserved, got %q", cfg.ClientID)
	}
	if cfg.SortOrder != "asc" {
		t.Fatalf("expected normalized sort order asc, got %q", cfg.SortOrder)
	}
	if cfg.SignatureLimit != DefaultSignatureLimit {
		t.Fatalf("expected default signature limit, got %d", cfg.SignatureLimit)
	}
	if cfg.RPCEndpoint != DefaultRPCEndpoint {
		t.Fatalf("expected default endpoint, got %q", cfg.RPCEndpoint)
	}
	if cfg.BoxKeyPath != filepath.Join(tempDir, "keys", "box_secret.pem") {
		t.Fatalf("unexpected box key path %q", cfg.BoxKeyPath)
	}

	reloaded, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if reloaded.SortOrder != "asc" {
		t.Fatalf("expected normalized config to be persisted, got %q", reloaded.SortOrder)
	}
}

func TestLoadAppliesEnvironmentOverrides(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv(DataDirEnv, tempDir)
	t.Setenv("MEMOCHAT_RPC_ENDPOINT", "http://127.0.0.1:8899")
	t.Setenv("MEMOCHAT_POLL_INTERVAL_SECONDS", "5")

	cfg, _, _, err := LoadOrCreate()
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}

	reloaded, err := Load(ConfigPath(tempDir))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if reloaded.RPCEndpoint != "http://127.0.0.1:8899" {
		t.Fatalf("expected env endpoint override, got %q", reloaded.RPCEndpoint)
	}
	if reloaded.PollInterval() != 5*time.Second {
		t.Fatalf("expected env poll interval override, got %s", reloaded.PollInterval())
	}
	if cfg.ClientID != reloaded.ClientID {
		t.Fatalf("expected stable client ID")
	}
}

func TestLoadOrCreateAppliesOverridesWithoutPersistingThem(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv(DataDirEnv, tempDir)
	t.Setenv("MEMOCHAT_RPC_ENDPOINT", "http://127.0.0.1:8899")

	cfg, cfgPath, _, err := LoadOrCreate()
	if err != nil {
		t.Fatalf("first LoadOrCreate failed: %v", err)
	}
	if cfg.RPCEndpoint != "http://127.0.0.1:8899" {
		t.Fatalf("expected env endpoint on first run, got %q", cfg.RPCEndpoint)
	}

	onDisk, err := readFile(cfgPath)
	if err != nil {
		t.Fatalf("readFile failed: %v", err)
	}
	if onDisk.RPCEndpoint != DefaultRPCEndpoint {
		t.Fatalf("expected default endpoint on disk, got %q", onDisk.RPCEndpoint)
	}

	partial := &Config{ClientID: "legacy-client", SortOrder: "ASC"}
	if err := Save(cfgPath, partial); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	cfg, _, _, err = LoadOrCreate()
	if err != nil {
		t.Fatalf("second LoadOrCreate failed: %v", err)
	}
	if cfg.RPCEndpoint != "http://127.0.0.1:8899" {
		t.Fatalf("expected env endpoint on second run, got %q", cfg.RPCEndpoint)
	}

	onDisk, err = readFile(cfgPath)
	if err != nil {
		t.Fatalf("readFile failed: %v", err)
	}
	if onDisk.SortOrder != "asc" {
		t.Fatalf("expected normalized sort order on disk, got %q", onDisk.SortOrder)
	}
	if onDisk.RPCEndpoint != DefaultRPCEndpoint {
		t.Fatalf("expected env endpoint to stay out of the file, got %q", onDisk.RPCEndpoint)
	}
	if onDisk.ClientID != "legacy-client" {
		t.Fatalf("expected client ID to be preserved, got %q", onDisk.ClientID)
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := &Config{FetchDelayMillis: -1, PollJitterSeconds: 0}
	if cfg.FetchDelay() >= 0 {
		t.Fatalf("expected negative fetch delay to disable pacing")
	}
	if cfg.PollJitter() >= 0 {
		t.Fatalf("expected zero jitter seconds to disable jitter")
	}

	cfg = &Config{FetchDelayMillis: 250, PollJitterSeconds: 10}
	if cfg.FetchDelay() != 250*time.Millisecond {
		t.Fatalf("unexpected fetch delay %s", cfg.FetchDelay())
	}
	if cfg.PollJitter() != 10*time.Second {
		t.Fatalf("unexpected poll jitter %s", cfg.PollJitter())
	}
}
