// Package servecmder provides the serve command, which runs the chainchat
// HTTP API and MCP server.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chainchat/api"
	"github.com/papercomputeco/chainchat/cmd/chainchat/setup"
	"github.com/papercomputeco/chainchat/pkg/archive"
	"github.com/papercomputeco/chainchat/pkg/config"
	"github.com/papercomputeco/chainchat/pkg/conversation"
)

type serveCommander struct {
	flagSet []string
	logger  *slog.Logger
}

const serveLongDesc string = `Run the chainchat API server.

Serves rewinds and live follows of any conversation over HTTP, with follows
streamed as server-sent events, and mounts an MCP server at /mcp with a
rewind_conversation tool.

When ledger.private_key is configured (or the ledger provider is memory),
POST /conversations/:name/messages and the send_message MCP tool are enabled.
When storage.archive is configured, GET /conversations/:name/archive serves
archived messages.

Routes:
  GET  /ping
  GET  /conversations/:name
  GET  /conversations/:name/messages?limit=N&before=P
  POST /conversations/:name/messages
  GET  /conversations/:name/follow?rewind=N|from=P&limit=N
  GET  /conversations/:name/archive?limit=N
  ALL  /mcp

Examples:
  chainchat serve
  chainchat serve --listen :9000 --archive sqlite
  chainchat serve --ledger memory`

const serveShortDesc string = "Run the chainchat API server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{
		flagSet: slices.Concat(
			[]string{config.FlagListen},
			setup.LedgerFlags,
			setup.WriteFlags,
			setup.ArchiveFlags,
		),
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := setup.LoadConfig(cmd, cmder.flagSet...)
			if err != nil {
				return err
			}
			configDir, _ := cmd.Flags().GetString("config-dir")
			cmder.logger = setup.NewLogger(cmd)

			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
			defer stop()

			return cmder.run(ctx, cfg, configDir)
		},
	}

	setup.AddFlags(cmd, cmder.flagSet...)

	return cmd
}

func (c *serveCommander) run(ctx context.Context, cfg *config.Config, configDir string) error {
	writable := cfg.Ledger.Provider == config.ProviderMemory || cfg.Ledger.PrivateKey != ""

	ledger, err := setup.OpenLedger(ctx, cfg, writable, c.logger)
	if err != nil {
		return err
	}
	defer ledger.Close()

	arch, err := setup.OpenArchive(ctx, cfg, configDir, c.logger)
	if err != nil {
		return err
	}
	if arch != nil {
		defer arch.Close()
	}

	server, err := api.NewServer(serverConfig(cfg, ledger, writable, arch), ledger, c.logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("API server: %w", err)
		}
		return nil

	case <-ctx.Done():
		c.logger.Info("shutting down API server")
		if err := server.Shutdown(); err != nil {
			return fmt.Errorf("shutting down API server: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("API server: %w", err)
		}
		return nil
	}
}

func serverConfig(cfg *config.Config, sender conversation.Sender, writable bool, arch archive.Driver) api.Config {
	ac := api.Config{
		ListenAddr: cfg.API.Listen,
		Archive:    arch,
		MaxLimit:   setup.MaxRewind,
	}
	if writable {
		ac.Sender = sender
	}
	return ac
}
