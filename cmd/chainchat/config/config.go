// Package configcmder provides the config command for managing persistent
// chainchat configuration stored in the .chainchat/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent chainchat configuration.

Configuration is stored as config.toml in the .chainchat/ directory and provides
default values for command flags. CLI flags and environment variables always
take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  ledger.provider, ledger.rpc_url, ledger.contract,
  ledger.private_key, ledger.public_key, ledger.gas_limit, ledger.confirmations,
  conversation.name, conversation.message_count, conversation.message_size,
  storage.archive, storage.sqlite_path, storage.postgres_dsn,
  stream.kafka_brokers, stream.kafka_topic,
  api.listen

Secrets (private key, RPC URL, PostgreSQL DSN) are masked when displayed.

Use subcommands to get, set, or list configuration values:
  chainchat config set <key> <value>    Set a configuration value
  chainchat config get <key>            Get a configuration value
  chainchat config list                 List all configuration values

Examples:
  chainchat config set ledger.rpc_url wss://ethereum-sepolia-rpc.publicnode.com
  chainchat config set storage.archive sqlite
  chainchat config get ledger.contract
  chainchat config list`

const configShortDesc string = "Manage persistent chainchat configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
