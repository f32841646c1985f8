package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent chainchat configuration stored as
// config.toml in the .chainchat/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version      int                `toml:"version"`
	Ledger       LedgerConfig       `toml:"ledger"`
	Conversation ConversationConfig `toml:"conversation"`
	Storage      StorageConfig      `toml:"storage"`
	Stream       StreamConfig       `toml:"stream"`
	API          APIConfig          `toml:"api"`
}

// LedgerConfig holds chain connection and wallet settings.
type LedgerConfig struct {
	// Provider is "evm" for a JSON-RPC chain or "memory" for the in-process
	// demo ledger.
	Provider      string `toml:"provider,omitempty"`
	RPCURL        string `toml:"rpc_url,omitempty"`
	Contract      string `toml:"contract,omitempty"`
	PrivateKey    string `toml:"private_key,omitempty"`
	PublicKey     string `toml:"public_key,omitempty"`
	GasLimit      uint   `toml:"gas_limit,omitempty"`
	Confirmations uint   `toml:"confirmations,omitempty"`
}

// ConversationConfig holds the default conversation and producer settings.
type ConversationConfig struct {
	Name         string `toml:"name,omitempty"`
	MessageCount uint   `toml:"message_count,omitempty"`
	MessageSize  uint   `toml:"message_size,omitempty"`
}

// StorageConfig holds archive settings used by follow and the API.
type StorageConfig struct {
	// Archive selects the archive driver: "", "memory", "sqlite" or "postgres".
	// Empty disables archiving.
	Archive     string `toml:"archive,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// StreamConfig holds event stream settings.
type StreamConfig struct {
	// KafkaBrokers is a comma separated broker list. Empty disables
	// publishing.
	KafkaBrokers string `toml:"kafka_brokers,omitempty"`
	KafkaTopic   string `toml:"kafka_topic,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error

	// secret values are masked when listed.
	secret bool
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"ledger.provider": {
		get: func(c *Config) string { return c.Ledger.Provider },
		set: func(c *Config, v string) error { c.Ledger.Provider = v; return nil },
	},
	"ledger.rpc_url": {
		get:    func(c *Config) string { return c.Ledger.RPCURL },
		set:    func(c *Config, v string) error { c.Ledger.RPCURL = v; return nil },
		secret: true,
	},
	"ledger.contract": {
		get: func(c *Config) string { return c.Ledger.Contract },
		set: func(c *Config, v string) error { c.Ledger.Contract = v; return nil },
	},
	"ledger.private_key": {
		get:    func(c *Config) string { return c.Ledger.PrivateKey },
		set:    func(c *Config, v string) error { c.Ledger.PrivateKey = v; return nil },
		secret: true,
	},
	"ledger.public_key": {
		get: func(c *Config) string { return c.Ledger.PublicKey },
		set: func(c *Config, v string) error { c.Ledger.PublicKey = v; return nil },
	},
	"ledger.gas_limit": {
		get: func(c *Config) string { return formatUint(c.Ledger.GasLimit) },
		set: func(c *Config, v string) error { return parseUint("ledger.gas_limit", v, &c.Ledger.GasLimit) },
	},
	"ledger.confirmations": {
		get: func(c *Config) string { return formatUint(c.Ledger.Confirmations) },
		set: func(c *Config, v string) error {
			return parseUint("ledger.confirmations", v, &c.Ledger.Confirmations)
		},
	},
	"conversation.name": {
		get: func(c *Config) string { return c.Conversation.Name },
		set: func(c *Config, v string) error { c.Conversation.Name = v; return nil },
	},
	"conversation.message_count": {
		get: func(c *Config) string { return formatUint(c.Conversation.MessageCount) },
		set: func(c *Config, v string) error {
			return parseUint("conversation.message_count", v, &c.Conversation.MessageCount)
		},
	},
	"conversation.message_size": {
		get: func(c *Config) string { return formatUint(c.Conversation.MessageSize) },
		set: func(c *Config, v string) error {
			return parseUint("conversation.message_size", v, &c.Conversation.MessageSize)
		},
	},
	"storage.archive": {
		get: func(c *Config) string { return c.Storage.Archive },
		set: func(c *Config, v string) error { c.Storage.Archive = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get:    func(c *Config) string { return c.Storage.PostgresDSN },
		set:    func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
		secret: true,
	},
	"stream.kafka_brokers": {
		get: func(c *Config) string { return c.Stream.KafkaBrokers },
		set: func(c *Config, v string) error { c.Stream.KafkaBrokers = v; return nil },
	},
	"stream.kafka_topic": {
		get: func(c *Config) string { return c.Stream.KafkaTopic },
		set: func(c *Config, v string) error { c.Stream.KafkaTopic = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
}

func formatUint(n uint) string {
	if n == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(n), 10)
}

// parseUint treats an empty value as zero so unset keys fall back to defaults.
func parseUint(key, v string, target *uint) error {
	if v == "" {
		*target = 0
		return nil
	}

	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	*target = uint(n)
	return nil
}
