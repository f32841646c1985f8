package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/papercomputeco/chainchat/pkg/dotdir"
)

// EnvFile is read from the working directory before environment variables
// are bound. Variables already set in the environment win.
const EnvFile = ".env"

// legacyEnv maps config keys to the unprefixed variable names the original
// producer and consumer scripts used.
var legacyEnv = map[string]string{
	"ledger.rpc_url":             "RPC_URL",
	"ledger.public_key":          "PUBLIC_KEY",
	"ledger.private_key":         "PRIVATE_KEY",
	"conversation.name":          "CONVERSATION_ID",
	"conversation.message_count": "MESSAGE_COUNT",
	"conversation.message_size":  "MESSAGE_SIZE",
}

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), loads ./.env and binds environment
// variables with the CHAINCHAT_ prefix plus the legacy unprefixed names.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (CHAINCHAT_LEDGER_RPC_URL, then RPC_URL, etc.)
//  3. .env file values
//  4. config.toml file values
//  5. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. .env file, without overriding the real environment.
	if err := loadEnvFile(EnvFile); err != nil {
		return nil, err
	}

	// 4. Environment variables: CHAINCHAT_LEDGER_RPC_URL, CHAINCHAT_API_LISTEN, etc.
	v.SetEnvPrefix("CHAINCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		prefixed := "CHAINCHAT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("binding %s: %w", legacy, err)
		}
	}

	return v, nil
}

func loadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}

	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}

	return nil
}

// FromViper resolves every config key through v's precedence chain.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{Version: CurrentV}

	for _, key := range ValidConfigKeys() {
		if err := configKeys[key].set(cfg, v.GetString(key)); err != nil {
			return nil, err
		}
	}

	applyDefaults(cfg)
	return cfg, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	for _, key := range ValidConfigKeys() {
		v.SetDefault(key, configKeys[key].get(d))
	}
}
