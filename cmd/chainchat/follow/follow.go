// Package followcmder provides the follow command, which rewinds a
// conversation and then follows it live.
package followcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chainchat/cmd/chainchat/setup"
	"github.com/papercomputeco/chainchat/pkg/archive"
	"github.com/papercomputeco/chainchat/pkg/cliui"
	"github.com/papercomputeco/chainchat/pkg/config"
	"github.com/papercomputeco/chainchat/pkg/conversation"
	"github.com/papercomputeco/chainchat/pkg/dotdir"
	"github.com/papercomputeco/chainchat/pkg/logger"
	"github.com/papercomputeco/chainchat/pkg/relay"
)

type followCommander struct {
	resume    bool
	full      bool
	logFile   string
	apiTarget string

	configDir string
	limit     uint
	cursors   *dotdir.Manager
	logger    *slog.Logger
	flagSet   []string
}

const followLongDesc string = `Rewind a conversation, then follow it live.

Prints the last --count messages (at most 1000), then every new message as it
is mined, until interrupted. The rewound messages and the live ones join
without gaps or duplicates.

Following needs a websocket endpoint (ws:// or wss://) in ledger.rpc_url.

The last delivered block is saved per conversation in .chainchat/cursors.json.
With --resume, following starts right after the newest archived message, or
after the saved cursor when no archive is configured, instead of rewinding.

With --archive, delivered messages are stored in the configured archive. With
--kafka-brokers, a chainchat.message.delivered event is published for each new
message.

With --api, messages are streamed from a running "chainchat serve" instead of
the ledger.

Examples:
  chainchat follow general
  chainchat follow general -n 0
  chainchat follow general --archive sqlite --resume
  chainchat follow general --kafka-brokers localhost:9092
  chainchat follow general --api http://localhost:8082`

const followShortDesc string = "Rewind a conversation, then follow it live"

func NewFollowCmd() *cobra.Command {
	cmder := &followCommander{
		cursors: dotdir.NewManager(),
		logger:  logger.Nop(),
		flagSet: slices.Concat(
			[]string{config.FlagCount},
			setup.LedgerFlags,
			setup.ArchiveFlags,
			setup.StreamFlags,
		),
	}

	cmd := &cobra.Command{
		Use:   "follow [conversation]",
		Short: followShortDesc,
		Long:  followLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.runE(cmd, args)
		},
	}

	setup.AddFlags(cmd, cmder.flagSet...)
	cmd.Flags().BoolVar(&cmder.resume, "resume", false, "Continue after the last archived or delivered message instead of rewinding")
	cmd.Flags().BoolVar(&cmder.full, "full", false, "Print full messages instead of one-line previews")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")
	cmd.Flags().StringVar(&cmder.apiTarget, "api", "", "Follow through a chainchat API server at this URL")

	return cmd
}

func (c *followCommander) runE(cmd *cobra.Command, args []string) error {
	cfg, err := setup.LoadConfig(cmd, c.flagSet...)
	if err != nil {
		return err
	}

	name, err := setup.ConversationName(cfg, args)
	if err != nil {
		return err
	}
	c.limit = setup.RewindLimit(cfg.Conversation.MessageCount)
	c.configDir, _ = cmd.Flags().GetString("config-dir")

	var extra []io.Writer
	if c.logFile != "" {
		f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		extra = append(extra, f)
	}
	c.logger = setup.NewLogger(cmd, extra...)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := cmd.OutOrStdout()
	display := cliui.Sink(w, !c.full)

	if c.apiTarget != "" {
		id := conversation.NewID(name)
		return c.followRemote(ctx, w, name, id, conversation.MultiSink(display, c.cursorSink(name, id)))
	}

	if err := cfg.ValidateFollow(); err != nil {
		return fmt.Errorf("invalid config:\n%w", err)
	}

	ledger, err := setup.OpenLedger(ctx, cfg, false, c.logger)
	if err != nil {
		return err
	}
	defer ledger.Close()

	arch, err := setup.OpenArchive(ctx, cfg, c.configDir, c.logger)
	if err != nil {
		return err
	}
	if arch != nil {
		defer arch.Close()
	}

	conv := conversation.New(name, ledger, c.logger)
	sinks := []conversation.Sink{display, c.cursorSink(name, conv.ID)}

	if arch != nil || len(cfg.Brokers()) > 0 {
		publisher, err := setup.OpenPublisher(cfg, c.logger)
		if err != nil {
			return err
		}
		defer publisher.Close()

		pool, err := relay.NewPool(&relay.Config{
			Archive:   arch,
			Publisher: publisher,
			Logger:    c.logger,
		})
		if err != nil {
			return fmt.Errorf("starting relay: %w", err)
		}
		// Drains before the archive and publisher close.
		defer pool.Close()

		sinks = append(sinks, relay.Sink(pool, name))
	}

	return c.run(ctx, w, conv, arch, conversation.MultiSink(sinks...))
}

// run follows conv into sink. Interrupting the follow is a clean exit.
func (c *followCommander) run(ctx context.Context, w io.Writer, conv *conversation.Conversation, arch archive.Driver, sink conversation.Sink) error {
	from, resumed, err := c.start(ctx, conv.ID, arch)
	if err != nil {
		return err
	}

	if resumed {
		fmt.Fprintf(w, "%s %s %s\n",
			cliui.KeyStyle.Render("Resuming"),
			cliui.ValueStyle.Render(conv.Name),
			cliui.DimStyle.Render("from #"+from.String()),
		)
		err = conv.Follow(ctx, from, sink)
	} else {
		fmt.Fprintf(w, "%s %s %s\n",
			cliui.KeyStyle.Render("Following"),
			cliui.ValueStyle.Render(conv.Name),
			cliui.DimStyle.Render(conv.ID.String()),
		)
		err = conv.Replay(ctx, c.limit, sink)
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("following %q: %w", conv.Name, err)
	}
	return nil
}

// start picks the Pointer a resumed follow continues from: after the newest
// archived message, else after the saved cursor. Without --resume, or with
// nothing to resume from, it reports false and the caller rewinds instead.
func (c *followCommander) start(ctx context.Context, id conversation.ID, arch archive.Driver) (conversation.Pointer, bool, error) {
	if !c.resume {
		return conversation.NoPointer, false, nil
	}

	if arch != nil {
		checkpoint, err := arch.Checkpoint(ctx, id)
		if err != nil {
			return conversation.NoPointer, false, fmt.Errorf("reading archive checkpoint: %w", err)
		}
		if !checkpoint.IsNone() {
			return checkpoint + 1, true, nil
		}
	}

	cursor, err := c.cursors.LoadCursor(c.configDir, id.String())
	if err != nil {
		return conversation.NoPointer, false, fmt.Errorf("loading cursor: %w", err)
	}
	if cursor != nil && cursor.Pointer != 0 {
		return conversation.Pointer(cursor.Pointer) + 1, true, nil
	}

	c.logger.Info("nothing to resume from, rewinding instead", "conversation_id", id.String())
	return conversation.NoPointer, false, nil
}

// cursorSink records the Pointer of every delivered message.
func (c *followCommander) cursorSink(name string, id conversation.ID) conversation.Sink {
	key := id.String()
	return conversation.SinkFunc(func(_ context.Context, msg conversation.Message) error {
		err := c.cursors.SaveCursor(c.configDir, key, dotdir.Cursor{
			Conversation: name,
			Pointer:      uint64(msg.Pointer),
		})
		if err != nil {
			return fmt.Errorf("saving cursor: %w", err)
		}
		return nil
	})
}

