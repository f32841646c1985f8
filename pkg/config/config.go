package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/chainchat/pkg/dotdir"
	"github.com/papercomputeco/chainchat/pkg/ledger/evm"
	"github.com/papercomputeco/chainchat/pkg/utils"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

type Configer struct {
	ddm        *dotdir.Manager
	targetPath string
}

func NewConfiger(override string) (*Configer, error) {
	cfger := &Configer{}

	cfger.ddm = dotdir.NewManager()
	target, err := cfger.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	// If no .chainchat/ directory was resolved, targetPath stays empty;
	// LoadConfig will return defaults and SaveConfig will error clearly.
	if target == "" {
		return cfger, nil
	}

	path := filepath.Join(target, configFile)
	_, err = os.Stat(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Always set targetPath when the directory exists so SaveConfig
	// can create or overwrite the file.
	cfger.targetPath = path

	return cfger, nil
}

// orderedKeys is the stable, logical key order matching the TOML section layout.
var orderedKeys = []string{
	"ledger.provider",
	"ledger.rpc_url",
	"ledger.contract",
	"ledger.private_key",
	"ledger.public_key",
	"ledger.gas_limit",
	"ledger.confirmations",
	"conversation.name",
	"conversation.message_count",
	"conversation.message_size",
	"storage.archive",
	"storage.sqlite_path",
	"storage.postgres_dsn",
	"stream.kafka_brokers",
	"stream.kafka_topic",
	"api.listen",
}

// ValidConfigKeys returns the ordered list of all supported configuration key names.
func ValidConfigKeys() []string {
	result := make([]string, 0, len(configKeys))
	seen := make(map[string]bool, len(configKeys))
	for _, k := range orderedKeys {
		if _, ok := configKeys[k]; ok {
			result = append(result, k)
			seen[k] = true
		}
	}

	// Append any keys in the map that we missed in the ordered list.
	for k := range configKeys {
		if !seen[k] {
			result = append(result, k)
		}
	}

	return result
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

// IsSecretKey reports whether the key holds a credential that should be masked
// when displayed.
func IsSecretKey(key string) bool {
	return configKeys[key].secret
}

// DisplayValue returns the value of key in cfg, masking secrets. RPC URLs keep
// their host so users can tell endpoints apart.
func DisplayValue(cfg *Config, key string) string {
	info, ok := configKeys[key]
	if !ok {
		return ""
	}

	v := info.get(cfg)
	switch {
	case v == "" || !info.secret:
		return v
	case key == "ledger.rpc_url":
		return utils.RedactURL(v)
	default:
		return utils.Mask(v)
	}
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// LoadConfig loads the configuration from config.toml in the target .chainchat/ directory.
// If the file does not exist, returns NewDefaultConfig() so callers always receive
// a fully-populated Config with sane defaults. Fields explicitly set in the file
// override the defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	// Merge in defaults: fill in any zero-value fields from the loaded config
	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills zero-value fields in cfg with values from NewDefaultConfig().
func applyDefaults(cfg *Config) {
	defaults := NewDefaultConfig()

	if cfg.Version == 0 {
		cfg.Version = defaults.Version
	}

	if cfg.Ledger.Provider == "" {
		cfg.Ledger.Provider = defaults.Ledger.Provider
	}
	if cfg.Ledger.Contract == "" {
		cfg.Ledger.Contract = defaults.Ledger.Contract
	}
	if cfg.Ledger.GasLimit == 0 {
		cfg.Ledger.GasLimit = defaults.Ledger.GasLimit
	}
	if cfg.Ledger.Confirmations == 0 {
		cfg.Ledger.Confirmations = defaults.Ledger.Confirmations
	}

	if cfg.Conversation.MessageCount == 0 {
		cfg.Conversation.MessageCount = defaults.Conversation.MessageCount
	}
	if cfg.Conversation.MessageSize == 0 {
		cfg.Conversation.MessageSize = defaults.Conversation.MessageSize
	}

	if cfg.Stream.KafkaTopic == "" {
		cfg.Stream.KafkaTopic = defaults.Stream.KafkaTopic
	}

	if cfg.API.Listen == "" {
		cfg.API.Listen = defaults.API.Listen
	}
}

// SaveConfig persists the configuration to config.toml in the target .chainchat/ directory.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetConfigValue loads the config, sets the given key to the given value, and saves it.
// Returns an error if the key is not a valid config key.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string representation of the given key.
// Returns an error if the key is not a valid config key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// PresetConfig returns a Config with sane defaults for the named ledger preset.
// Supported presets: "memory", "local", "sepolia".
// Returns an error if the preset name is not recognized.
func PresetConfig(name string) (*Config, error) {
	cfg := NewDefaultConfig()

	switch strings.ToLower(name) {
	case "memory":
		cfg.Ledger = LedgerConfig{Provider: ProviderMemory}
		cfg.Storage.Archive = ArchiveMemory

	case "local":
		cfg.Ledger.RPCURL = "ws://127.0.0.1:8545"
		cfg.Storage.Archive = ArchiveSQLite

	case "sepolia":
		cfg.Ledger.RPCURL = "wss://ethereum-sepolia-rpc.publicnode.com"
		cfg.Ledger.Confirmations = 2
		cfg.Storage.Archive = ArchiveSQLite

	default:
		return nil, fmt.Errorf("unknown preset: %q (available: %s)", name, strings.Join(ValidPresetNames(), ", "))
	}

	return cfg, nil
}

// ValidPresetNames returns the list of recognized preset names.
func ValidPresetNames() []string {
	return []string{"memory", "local", "sepolia"}
}

// ParseConfigTOML parses raw TOML bytes into a Config.
// Returns an error if the version field is present and not equal to CurrentV.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, nil
}

// EVMConfig converts the ledger section into an evm.Config.
func (c *Config) EVMConfig() evm.Config {
	return evm.Config{
		RPCURL:        c.Ledger.RPCURL,
		Contract:      c.Ledger.Contract,
		PrivateKey:    c.Ledger.PrivateKey,
		PublicKey:     c.Ledger.PublicKey,
		GasLimit:      uint64(c.Ledger.GasLimit),
		Confirmations: uint64(c.Ledger.Confirmations),
	}
}

// Brokers splits the configured Kafka broker list.
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.Stream.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
