// Package initcmder provides the init command for initializing a local
// .chainchat directory in the current working directory.
package initcmder

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chainchat/pkg/config"
)

const (
	dirName = ".chainchat"

	fetchTimeout = 10 * time.Second
)

const initLongDesc string = `Initialize a new .chainchat/ directory in the current working directory.

Creates a local .chainchat/ directory that takes precedence over the default
~/.chainchat/ directory for configuration, follow cursors and the SQLite
archive.

Use --preset to write a config.toml for a known ledger setup, or pass an
http(s) URL to fetch a shared config.toml.

Presets:
  memory     In-process ledger and archive, nothing leaves the process
  local      Local development node on ws://127.0.0.1:8545
  sepolia    Public Sepolia websocket endpoint

Examples:
  chainchat init
  chainchat init --preset sepolia
  chainchat init --preset https://example.com/chainchat/config.toml`

const initShortDesc string = "Initialize a local .chainchat/ directory"

type initCommander struct {
	preset string
}

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "", "Config preset name or URL of a config.toml")

	return cmd
}

func (c *initCommander) run(ctx context.Context, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	existed := err == nil && info.IsDir()

	cfg, err := c.resolveConfig(ctx)
	if err != nil {
		return err
	}

	if !existed {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .chainchat directory: %w", err)
		}
	}

	configPath := filepath.Join(dir, "config.toml")
	_, statErr := os.Stat(configPath)

	// Without a preset an existing config is left alone.
	if c.preset != "" || os.IsNotExist(statErr) {
		cfger, err := config.NewConfiger(dir)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfger.SaveConfig(cfg); err != nil {
			return err
		}
	}

	if existed {
		fmt.Fprintf(w, "Already initialized: %s\n", dir)
	} else {
		fmt.Fprintf(w, "Initialized .chainchat directory: %s\n", dir)
	}
	if c.preset != "" {
		fmt.Fprintf(w, "Wrote %s preset to %s\n", c.preset, configPath)
	}

	return nil
}

func (c *initCommander) resolveConfig(ctx context.Context) (*config.Config, error) {
	switch {
	case c.preset == "":
		return config.NewDefaultConfig(), nil

	case strings.HasPrefix(c.preset, "http://"), strings.HasPrefix(c.preset, "https://"):
		return fetchConfig(ctx, c.preset)

	default:
		return config.PresetConfig(c.preset)
	}
}

func fetchConfig(ctx context.Context, url string) (*config.Config, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching remote config: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading remote config: %w", err)
	}

	cfg, err := config.ParseConfigTOML(data)
	if err != nil {
		return nil, fmt.Errorf("parsing remote config: %w", err)
	}

	return cfg, nil
}
