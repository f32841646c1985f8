// Package chainchatcmder is the root chainchat command.
package chainchatcmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/chainchat/cmd/chainchat/config"
	followcmder "github.com/papercomputeco/chainchat/cmd/chainchat/follow"
	initcmder "github.com/papercomputeco/chainchat/cmd/chainchat/init"
	rewindcmder "github.com/papercomputeco/chainchat/cmd/chainchat/rewind"
	sendcmder "github.com/papercomputeco/chainchat/cmd/chainchat/send"
	servecmder "github.com/papercomputeco/chainchat/cmd/chainchat/serve"
	statuscmder "github.com/papercomputeco/chainchat/cmd/chainchat/status"
	versioncmder "github.com/papercomputeco/chainchat/cmd/version"
)

const chainchatLongDesc string = `Chainchat stores conversations as a backward-linked chain of events on an
EVM ledger, and reads them back.

Each message is recorded together with the block of the previous message in
the same conversation, so the newest messages can be rewound without
scanning the chain, and new ones followed as they are mined.

Get started using:
  chainchat init --preset sepolia       Write a config for a public testnet
  chainchat send general -n 3           Send three filler messages
  chainchat rewind general              Print the most recent messages
  chainchat follow general              Rewind, then follow live
  chainchat status                      Show where follows left off
  chainchat serve                       Run the HTTP API and MCP server`

const chainchatShortDesc string = "Chainchat - conversations on a ledger"

func NewChainchatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "chainchat",
		Short:         chainchatShortDesc,
		Long:          chainchatLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .chainchat/ config directory")

	// Add subcommands
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(rewindcmder.NewRewindCmd())
	cmd.AddCommand(followcmder.NewFollowCmd())
	cmd.AddCommand(sendcmder.NewSendCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
