package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

const (
	// AppDirectoryName is the per-user application data directory name.
	AppDirectoryName = "memochat"
	// EnvPrefix prefixes environment overrides, e.g. MEMOCHAT_RPC_ENDPOINT.
	EnvPrefix = "MEMOCHAT"
	// DataDirEnv overrides the data directory.
	DataDirEnv = "MEMOCHAT_DATA_DIR"

	DefaultRPCEndpoint         = "https://api.mainnet-beta.solana.com"
	DefaultTokenProgram        = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"
	DefaultSignatureLimit      = 50
	DefaultFetchDelayMillis    = 1000
	DefaultPollIntervalSeconds = 30
	DefaultPollJitterSeconds   = 10
	DefaultTimeWindowSeconds   = 3 * 24 * 60 * 60
	DefaultSortOrder           = "desc"

	configFileName = "config.json"
	boxKeyFileName = "box_secret.pem"
)

// Config contains persistent client settings.
type Config struct {
	ClientID         string `json:"client_id" mapstructure:"client_id"`
	RPCEndpoint      string `json:"rpc_endpoint" mapstructure:"rpc_endpoint"`
	WalletAddress    string `json:"wallet_address" mapstructure:"wallet_address"`
	TokenMint        string `json:"token_mint" mapstructure:"token_mint"`
	TokenProgram     string `json:"token_program" mapstructure:"token_program"`
	CommunityAddress string `json:"community_address" mapstructure:"community_address"`
	BoxKeyPath       string `json:"box_key_path" mapstructure:"box_key_path"`

	SignatureLimit      int    `json:"signature_limit" mapstructure:"signature_limit"`
	FetchDelayMillis    int    `json:"fetch_delay_ms" mapstructure:"fetch_delay_ms"`
	PollIntervalSeconds int    `json:"poll_interval_seconds" mapstructure:"poll_interval_seconds"`
	PollJitterSeconds   int    `json:"poll_jitter_seconds" mapstructure:"poll_jitter_seconds"`
	TimeWindowSeconds   int    `json:"time_window_seconds" mapstructure:"time_window_seconds"`
	MessageLimit        int    `json:"message_limit" mapstructure:"message_limit"`
	SortOrder           string `json:"sort_order" mapstructure:"sort_order"`
}

// FetchDelay is the spacing between uncached transaction fetches.
func (c *Config) FetchDelay() time.Duration {
	if c.FetchDelayMillis < 0 {
		return -1
	}
	return time.Duration(c.FetchDelayMillis) * time.Millisecond
}

// PollInterval is the base delay between poll cycles.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// PollJitter bounds the random delay added to each poll cycle.
func (c *Config) PollJitter() time.Duration {
	if c.PollJitterSeconds <= 0 {
		return -1
	}
	return time.Duration(c.PollJitterSeconds) * time.Second
}

// TimeWindow is how far back messages are read.
func (c *Config) TimeWindow() time.Duration {
	return time.Duration(c.TimeWindowSeconds) * time.Second
}

// ResolveDataDir returns the OS-aware app data directory.
//
// If MEMOCHAT_DATA_DIR is set, its value is used as an explicit override.
func ResolveDataDir() (string, error) {
	if override := os.Getenv(DataDirEnv); override != "" {
		return override, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(base, AppDirectoryName), nil
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", AppDirectoryName), nil
	default:
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			base = filepath.Join(home, ".config")
		}
		return filepath.Join(base, AppDirectoryName), nil
	}
}

// ConfigPath returns the full path to config.json for a data directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, configFileName)
}

// EnsureDataDirectories creates the app data directory layout if needed.
func EnsureDataDirectories(dataDir string) error {
	dirs := []string{
		dataDir,
		filepath.Join(dataDir, "keys"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}

	return nil
}

// Load reads config.json and applies MEMOCHAT_* environment overrides.
func Load(path string) (*Config, error) {
	return load(path, true)
}

// readFile reads config.json without environment overrides, for rewriting it.
func readFile(path string) (*Config, error) {
	return load(path, false)
}

func load(path string, withEnv bool) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	v := newViper(withEnv)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return &cfg, nil
}

// Save marshals and writes config.json to disk.
func Save(path string, cfg *Config) error {
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	raw = append(raw, '\n')
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// LoadOrCreate ensures directories and config exist, then returns the config,
// its path and the data directory.
func LoadOrCreate() (*Config, string, string, error) {
	dataDir, err := ResolveDataDir()
	if err != nil {
		return nil, "", "", err
	}
	if err := EnsureDataDirectories(dataDir); err != nil {
		return nil, "", "", err
	}

	cfgPath := ConfigPath(dataDir)
	fileCfg, err := readFile(cfgPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := Save(cfgPath, defaultConfig(dataDir)); err != nil {
			return nil, "", "", err
		}
	case err != nil:
		return nil, "", "", err
	case normalizeDefaults(fileCfg, dataDir):
		if err := Save(cfgPath, fileCfg); err != nil {
			return nil, "", "", err
		}
	}

	// Overrides apply to the returned config only, never to the file.
	cfg, err := Load(cfgPath)
	if err != nil {
		return nil, "", "", err
	}
	normalizeDefaults(cfg, dataDir)

	return cfg, cfgPath, dataDir, nil
}

// newViper registers every key so environment overrides reach Unmarshal.
func newViper(withEnv bool) *viper.Viper {
	v := viper.New()
	v.SetConfigType("json")
	if withEnv {
		v.SetEnvPrefix(EnvPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
	}

	v.SetDefault("client_id", "")
	v.SetDefault("rpc_endpoint", DefaultRPCEndpoint)
	v.SetDefault("wallet_address", "")
	v.SetDefault("token_mint", "")
	v.SetDefault("token_program", DefaultTokenProgram)
	v.SetDefault("community_address", "")
	v.SetDefault("box_key_path", "")
	v.SetDefault("signature_limit", DefaultSignatureLimit)
	v.SetDefault("fetch_delay_ms", DefaultFetchDelayMillis)
	v.SetDefault("poll_interval_seconds", DefaultPollIntervalSeconds)
	v.SetDefault("poll_jitter_seconds", DefaultPollJitterSeconds)
	v.SetDefault("time_window_seconds", DefaultTimeWindowSeconds)
	v.SetDefault("message_limit", 0)
	v.SetDefault("sort_order", DefaultSortOrder)
	return v
}

func defaultConfig(dataDir string) *Config {
	return &Config{
		ClientID:            uuid.NewString(),
		RPCEndpoint:         DefaultRPCEndpoint,
		TokenProgram:        DefaultTokenProgram,
		BoxKeyPath:          filepath.Join(dataDir, "keys", boxKeyFileName),
		SignatureLimit:      DefaultSignatureLimit,
		FetchDelayMillis:    DefaultFetchDelayMillis,
		PollIntervalSeconds: DefaultPollIntervalSeconds,
		PollJitterSeconds:   DefaultPollJitterSeconds,
		TimeWindowSeconds:   DefaultTimeWindowSeconds,
		SortOrder:           DefaultSortOrder,
	}
}

func normalizeDefaults(cfg *Config, dataDir string) bool {
	updated := false

	if cfg.ClientID == "" {
		cfg.ClientID = uuid.NewString()
		updated = true
	}

	if strings.TrimSpace(cfg.RPCEndpoint) == "" {
		cfg.RPCEndpoint = DefaultRPCEndpoint
		updated = true
	}

	if cfg.BoxKeyPath == "" {
		cfg.BoxKeyPath = filepath.Join(dataDir, "keys", boxKeyFileName)
		updated = true
	}

	if cfg.SignatureLimit <= 0 {
		cfg.SignatureLimit = DefaultSignatureLimit
		updated = true
	}

	if cfg.PollIntervalSeconds <= 0 {
		cfg.PollIntervalSeconds = DefaultPollIntervalSeconds
		updated = true
	}

	if cfg.TimeWindowSeconds < 0 {
		cfg.TimeWindowSeconds = DefaultTimeWindowSeconds
		updated = true
	}

	mode := normalizeSortOrder(cfg.SortOrder)
	if cfg.SortOrder != mode {
		cfg.SortOrder = mode
		updated = true
	}

	return updated
}

func normalizeSortOrder(order string) string {
	switch strings.ToLower(strings.TrimSpace(order)) {
	case "asc":
		return "asc"
	default:
		return DefaultSortOrder
	}
}
