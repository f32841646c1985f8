package config

import (
	"github.com/papercomputeco/chainchat/pkg/eventstream/kafka"
	"github.com/papercomputeco/chainchat/pkg/ledger/evm"
)

const (
	// ProviderEVM talks to a JSON-RPC chain.
	ProviderEVM = "evm"

	// ProviderMemory runs an in-process ledger.
	ProviderMemory = "memory"

	// Archive drivers.
	ArchiveMemory   = "memory"
	ArchiveSQLite   = "sqlite"
	ArchivePostgres = "postgres"

	defaultMessageCount = 10
	defaultMessageSize  = 64
	defaultAPIListen    = ":8082"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Ledger: LedgerConfig{
			Provider:      ProviderEVM,
			Contract:      evm.DefaultContract,
			GasLimit:      uint(evm.DefaultGasLimit),
			Confirmations: uint(evm.DefaultConfirmations),
		},
		Conversation: ConversationConfig{
			MessageCount: defaultMessageCount,
			MessageSize:  defaultMessageSize,
		},
		Stream: StreamConfig{
			KafkaTopic: kafka.DefaultTopic,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
	}
}
