// Package statuscmder provides the status command for displaying the follow
// cursors saved in the .chainchat directory.
package statuscmder

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chainchat/pkg/cliui"
	"github.com/papercomputeco/chainchat/pkg/conversation"
	"github.com/papercomputeco/chainchat/pkg/dotdir"
	"github.com/papercomputeco/chainchat/pkg/utils"
)

const statusLongDesc string = `Show where each followed conversation was left off.

Reads the follow cursors from the local .chainchat/ directory (or
~/.chainchat/): the last block delivered per conversation, which
"chainchat follow --resume" continues after.

Pass a conversation to show only its cursor, and --clear to forget it so the
next resumed follow rewinds instead.

Examples:
  chainchat status
  chainchat status general
  chainchat status general --clear`

const statusShortDesc string = "Show saved follow cursors"

type statusCommander struct {
	clear     bool
	configDir string
	cursors   *dotdir.Manager
}

func NewStatusCmd() *cobra.Command {
	cmder := &statusCommander{
		cursors: dotdir.NewManager(),
	}

	cmd := &cobra.Command{
		Use:   "status [conversation]",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			if len(args) == 0 {
				if cmder.clear {
					return fmt.Errorf("--clear needs a conversation")
				}
				return cmder.runAll(cmd.OutOrStdout())
			}
			return cmder.runOne(cmd.OutOrStdout(), args[0])
		},
	}

	cmd.Flags().BoolVar(&cmder.clear, "clear", false, "Forget the conversation's cursor")

	return cmd
}

func (c *statusCommander) runAll(w io.Writer) error {
	all, err := c.cursors.ListCursors(c.configDir)
	if err != nil {
		return fmt.Errorf("loading cursors: %w", err)
	}

	if len(all) == 0 {
		fmt.Fprintf(w, "  %s No saved cursors. Run chainchat follow to create one.\n", cliui.DimStyle.Render("●"))
		return nil
	}

	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		return cmp.Or(
			cmp.Compare(all[a].Conversation, all[b].Conversation),
			cmp.Compare(a, b),
		)
	})

	fmt.Fprintln(w)
	for _, id := range ids {
		c.printCursor(w, id, all[id])
	}
	fmt.Fprintln(w)

	return nil
}

func (c *statusCommander) runOne(w io.Writer, name string) error {
	id := conversation.NewID(name).String()

	if c.clear {
		if err := c.cursors.ClearCursor(c.configDir, id); err != nil {
			return fmt.Errorf("clearing cursor: %w", err)
		}
		fmt.Fprintf(w, "  %s Cleared cursor for %s\n", cliui.SuccessMark, cliui.ValueStyle.Render(name))
		return nil
	}

	cursor, err := c.cursors.LoadCursor(c.configDir, id)
	if err != nil {
		return fmt.Errorf("loading cursor: %w", err)
	}
	if cursor == nil {
		fmt.Fprintf(w, "  %s No cursor for %s. The next follow rewinds.\n",
			cliui.DimStyle.Render("●"),
			cliui.ValueStyle.Render(name),
		)
		return nil
	}

	fmt.Fprintln(w)
	c.printCursor(w, id, *cursor)
	fmt.Fprintln(w)
	return nil
}

func (c *statusCommander) printCursor(w io.Writer, id string, cursor dotdir.Cursor) {
	name := cursor.Conversation
	if name == "" {
		name = "(unnamed)"
	}

	fmt.Fprintf(w, "  %s  %s  %s  %s\n",
		cliui.KeyStyle.Render(name),
		cliui.DimStyle.Render(utils.Truncate(id, 14)),
		cliui.ValueStyle.Render(fmt.Sprintf("#%d", cursor.Pointer)),
		cliui.DimStyle.Render("updated "+cursor.UpdatedAt.Local().Format(time.DateTime)),
	)
}
