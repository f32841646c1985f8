// Package rewindcmder provides the rewind command, which prints the most
// recent messages of a conversation.
package rewindcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chainchat/api"
	"github.com/papercomputeco/chainchat/cmd/chainchat/setup"
	"github.com/papercomputeco/chainchat/pkg/cliui"
	"github.com/papercomputeco/chainchat/pkg/config"
	"github.com/papercomputeco/chainchat/pkg/conversation"
)

type rewindCommander struct {
	before  uint64
	asJSON  bool
	full    bool
	limit   uint
	flagSet []string
}

const rewindLongDesc string = `Print the most recent messages of a conversation.

Walks the conversation's chain of events backwards from its newest message and
prints up to --count messages, oldest first. At most 1000 messages are read per
rewind. When older messages remain, the output ends with the block to pass as
--before to page further back.

The conversation defaults to conversation.name from the config.

Examples:
  chainchat rewind general
  chainchat rewind general -n 50
  chainchat rewind general --before 5812345
  chainchat rewind general --json | jq '.messages[].text'`

const rewindShortDesc string = "Print the most recent messages of a conversation"

func NewRewindCmd() *cobra.Command {
	cmder := &rewindCommander{
		flagSet: slices.Concat([]string{config.FlagCount}, setup.LedgerFlags),
	}

	cmd := &cobra.Command{
		Use:   "rewind [conversation]",
		Short: rewindShortDesc,
		Long:  rewindLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup.LoadConfig(cmd, cmder.flagSet...)
			if err != nil {
				return err
			}

			name, err := setup.ConversationName(cfg, args)
			if err != nil {
				return err
			}
			cmder.limit = setup.RewindLimit(cfg.Conversation.MessageCount)

			l := setup.NewLogger(cmd)
			ledger, err := setup.OpenLedger(cmd.Context(), cfg, false, l)
			if err != nil {
				return err
			}
			defer ledger.Close()

			return cmder.run(cmd.Context(), cmd.OutOrStdout(), conversation.New(name, ledger, l))
		},
	}

	setup.AddFlags(cmd, cmder.flagSet...)
	cmd.Flags().Uint64Var(&cmder.before, "before", 0, "Continue rewinding from this block, as printed by a previous rewind")
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print the result as JSON")
	cmd.Flags().BoolVar(&cmder.full, "full", false, "Print full messages instead of one-line previews")

	return cmd
}

func (c *rewindCommander) run(ctx context.Context, w io.Writer, conv *conversation.Conversation) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		result *conversation.RewindResult
		err    error
	)
	if c.before != 0 {
		result, err = conv.RewindFrom(ctx, conversation.Pointer(c.before), c.limit)
	} else {
		result, err = conv.Rewind(ctx, c.limit)
	}
	if err != nil {
		return fmt.Errorf("rewinding %q: %w", conv.Name, err)
	}

	if c.asJSON {
		return c.printJSON(w, conv, result)
	}

	cliui.PrintRewind(w, conv.Name, result, !c.full)
	return nil
}

func (c *rewindCommander) printJSON(w io.Writer, conv *conversation.Conversation, result *conversation.RewindResult) error {
	resp := api.RewindResponse{
		Name:       conv.Name,
		ID:         conv.ID,
		Messages:   result.Messages,
		Cursor:     result.Cursor,
		Head:       result.Head,
		FollowFrom: result.FollowFrom(),
	}
	if resp.Messages == nil {
		resp.Messages = []conversation.Message{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
