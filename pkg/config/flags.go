package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --rpc-url
// on "chainchat rewind", "chainchat follow" and "chainchat send").
type Flag struct {
	// Name is the long flag name (e.g. "rpc-url").
	Name string

	// Shorthand is the one-letter short flag (e.g. "n"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "ledger.rpc_url").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagLedger        = "ledger"
	FlagRPCURL        = "rpc-url"
	FlagContract      = "contract"
	FlagConfirmations = "confirmations"
	FlagGasLimit      = "gas-limit"
	FlagCount         = "count"
	FlagSize          = "size"
	FlagArchive       = "archive"
	FlagSQLite        = "sqlite"
	FlagPostgresDSN   = "postgres-dsn"
	FlagKafkaBrokers  = "kafka-brokers"
	FlagKafkaTopic    = "kafka-topic"
	FlagListen        = "listen"
)

// Flags is the registry shared by every chainchat command.
var Flags = FlagSet{
	FlagLedger:        {Name: "ledger", ViperKey: "ledger.provider", Description: "Ledger provider (evm, memory)"},
	FlagRPCURL:        {Name: "rpc-url", ViperKey: "ledger.rpc_url", Description: "JSON-RPC endpoint; following requires a websocket URL"},
	FlagContract:      {Name: "contract", ViperKey: "ledger.contract", Description: "Message contract address"},
	FlagConfirmations: {Name: "confirmations", ViperKey: "ledger.confirmations", Description: "Blocks to wait for before a send is reported"},
	FlagGasLimit:      {Name: "gas-limit", ViperKey: "ledger.gas_limit", Description: "Gas limit for sendMessage transactions"},
	FlagCount:         {Name: "count", Shorthand: "n", ViperKey: "conversation.message_count", Description: "Number of messages"},
	FlagSize:          {Name: "size", Shorthand: "s", ViperKey: "conversation.message_size", Description: "Size in bytes of generated messages"},
	FlagArchive:       {Name: "archive", ViperKey: "storage.archive", Description: "Archive driver (memory, sqlite, postgres); empty disables"},
	FlagSQLite:        {Name: "sqlite", ViperKey: "storage.sqlite_path", Description: "Path to the SQLite archive"},
	FlagPostgresDSN:   {Name: "postgres-dsn", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL archive connection string"},
	FlagKafkaBrokers:  {Name: "kafka-brokers", ViperKey: "stream.kafka_brokers", Description: "Comma separated Kafka brokers to publish delivered messages to"},
	FlagKafkaTopic:    {Name: "kafka-topic", ViperKey: "stream.kafka_topic", Description: "Kafka topic for delivered messages"},
	FlagListen:        {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}
