// Package sendcmder provides the send command, which records messages in a
// conversation.
package sendcmder

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chainchat/cmd/chainchat/setup"
	"github.com/papercomputeco/chainchat/pkg/cliui"
	"github.com/papercomputeco/chainchat/pkg/config"
	"github.com/papercomputeco/chainchat/pkg/conversation"
	"github.com/papercomputeco/chainchat/pkg/lipsum"
)

type sendCommander struct {
	message string
	count   uint
	size    uint
	flagSet []string
}

const sendLongDesc string = `Send messages to a conversation.

Each message is sent in its own transaction and reported once it is mined
with the configured number of confirmations. Without --message, a lorem ipsum
message of --size bytes is generated and sent --count times.

Sending requires ledger.private_key (or PRIVATE_KEY). When ledger.public_key
is also set it must match the key's address.

Examples:
  chainchat send general
  chainchat send general -n 3 --size 256
  chainchat send general -m "hello from the ledger"`

const sendShortDesc string = "Send messages to a conversation"

func NewSendCmd() *cobra.Command {
	cmder := &sendCommander{
		flagSet: slices.Concat(
			[]string{config.FlagCount, config.FlagSize},
			setup.LedgerFlags,
			setup.WriteFlags,
		),
	}

	cmd := &cobra.Command{
		Use:   "send [conversation]",
		Short: sendShortDesc,
		Long:  sendLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup.LoadConfig(cmd, cmder.flagSet...)
			if err != nil {
				return err
			}
			if err := cfg.ValidateProducer(); err != nil {
				return fmt.Errorf("invalid config:\n%w", err)
			}

			name, err := setup.ConversationName(cfg, args)
			if err != nil {
				return err
			}
			cmder.count = cfg.Conversation.MessageCount
			cmder.size = cfg.Conversation.MessageSize

			l := setup.NewLogger(cmd)
			ledger, err := setup.OpenLedger(cmd.Context(), cfg, true, l)
			if err != nil {
				return err
			}
			defer ledger.Close()

			return cmder.run(cmd.Context(), cmd.OutOrStdout(), name, ledger)
		},
	}

	setup.AddFlags(cmd, cmder.flagSet...)
	cmd.Flags().StringVarP(&cmder.message, "message", "m", "", "Message text; generated when empty")

	return cmd
}

func (c *sendCommander) run(ctx context.Context, w io.Writer, name string, sender conversation.Sender) error {
	if ctx == nil {
		ctx = context.Background()
	}

	text := c.message
	if text == "" {
		text = lipsum.Message(int(c.size))
	}

	id := conversation.NewID(name)
	fmt.Fprintf(w, "\n  %s %s %s\n\n",
		cliui.KeyStyle.Render("Sending to"),
		cliui.ValueStyle.Render(name),
		cliui.DimStyle.Render(id.String()),
	)

	var head conversation.Pointer
	for i := range c.count {
		msg := fmt.Sprintf("Message %d/%d (%d bytes)", i+1, c.count, len(text))
		err := cliui.Step(w, msg, func() error {
			p, err := sender.Send(ctx, id, text)
			if err != nil {
				return err
			}
			head = p
			return nil
		})
		if err != nil {
			return fmt.Errorf("sending message %d of %d: %w", i+1, c.count, err)
		}
	}

	fmt.Fprintf(w, "\n  %s Sent %d messages, head is #%s\n\n", cliui.SuccessMark, c.count, head)
	return nil
}
