// Package setup resolves layered configuration for chainchat commands and
// builds the components they share: the ledger, the archive and the event
// stream publisher.
package setup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chainchat/cmd/chainchat/sqlitepath"
	"github.com/papercomputeco/chainchat/pkg/archive"
	archivemem "github.com/papercomputeco/chainchat/pkg/archive/inmemory"
	"github.com/papercomputeco/chainchat/pkg/archive/postgres"
	"github.com/papercomputeco/chainchat/pkg/archive/sqlite"
	"github.com/papercomputeco/chainchat/pkg/config"
	"github.com/papercomputeco/chainchat/pkg/conversation"
	"github.com/papercomputeco/chainchat/pkg/eventstream"
	"github.com/papercomputeco/chainchat/pkg/eventstream/kafka"
	"github.com/papercomputeco/chainchat/pkg/eventstream/nop"
	"github.com/papercomputeco/chainchat/pkg/ledger/evm"
	"github.com/papercomputeco/chainchat/pkg/ledger/inmemory"
	"github.com/papercomputeco/chainchat/pkg/logger"
)

// MaxRewind caps how many messages a single rewind walks back.
const MaxRewind uint = 1000

// RewindLimit clamps a requested message count to MaxRewind.
func RewindLimit(count uint) uint {
	return min(count, MaxRewind)
}

// Flag groups registered by the commands that need them.
var (
	LedgerFlags  = []string{config.FlagLedger, config.FlagRPCURL, config.FlagContract}
	WriteFlags   = []string{config.FlagConfirmations, config.FlagGasLimit}
	ArchiveFlags = []string{config.FlagArchive, config.FlagSQLite, config.FlagPostgresDSN}
	StreamFlags  = []string{config.FlagKafkaBrokers, config.FlagKafkaTopic}
)

// uintFlags are the registry keys backed by uint flags.
var uintFlags = map[string]bool{
	config.FlagConfirmations: true,
	config.FlagGasLimit:      true,
	config.FlagCount:         true,
	config.FlagSize:          true,
}

// AddFlags registers the given flags from config.Flags on cmd. Their values
// are read back through viper in LoadConfig, not through the flag targets.
func AddFlags(cmd *cobra.Command, keys ...string) {
	for _, key := range keys {
		if uintFlags[key] {
			config.AddUintFlag(cmd, config.Flags, key, new(uint))
			continue
		}
		config.AddStringFlag(cmd, config.Flags, key, new(string))
	}
}

// LoadConfig resolves the configuration for cmd through the full precedence
// chain (flags, environment, .env, config.toml, defaults) and validates it.
func LoadConfig(cmd *cobra.Command, keys ...string) (*config.Config, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, keys)

	cfg, err := config.FromViper(v)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config:\n%w", err)
	}

	return cfg, nil
}

// NewLogger builds the command logger. Logs go to stderr so stdout only
// carries message output; extra writers receive the same records as JSON.
func NewLogger(cmd *cobra.Command, extra ...io.Writer) *slog.Logger {
	debug, _ := cmd.Flags().GetBool("debug")

	console := logger.New(
		logger.WithDebug(debug),
		logger.WithPretty(true),
		logger.WithWriter(os.Stderr),
	)
	if len(extra) == 0 {
		return console
	}

	file := logger.New(
		logger.WithDebug(debug),
		logger.WithJSON(true),
		logger.WithWriters(extra...),
		logger.WithAttrs("command", cmd.Name()),
	)
	return logger.Multi(console, file)
}

// Ledger is what commands need from a ledger: reads, subscriptions, the write
// path and teardown.
type Ledger interface {
	conversation.Ledger
	conversation.Sender
	Close() error
}

// OpenLedger validates the ledger section and connects to the configured
// provider. write requires a usable wallet.
func OpenLedger(ctx context.Context, cfg *config.Config, write bool, l *slog.Logger) (Ledger, error) {
	if err := cfg.ValidateLedger(write); err != nil {
		return nil, fmt.Errorf("invalid ledger config:\n%w", err)
	}

	if cfg.Ledger.Provider == config.ProviderMemory {
		l.Warn("using the in-process memory ledger, messages are lost on exit")
		return inmemory.New(), nil
	}

	ec := cfg.EVMConfig()
	ec.Logger = l

	client, err := evm.Dial(ctx, ec)
	if err != nil {
		return nil, err
	}

	return client, nil
}

// OpenArchive opens the configured archive driver, or returns nil when
// archiving is disabled.
func OpenArchive(ctx context.Context, cfg *config.Config, configDir string, l *slog.Logger) (archive.Driver, error) {
	switch cfg.Storage.Archive {
	case "":
		return nil, nil

	case config.ArchiveMemory:
		l.Info("using in-memory archive")
		return archivemem.NewDriver(), nil

	case config.ArchiveSQLite:
		path, err := sqlitepath.ResolveSQLitePath(cfg.Storage.SQLitePath, configDir)
		if err != nil {
			return nil, fmt.Errorf("resolving SQLite path: %w", err)
		}

		driver, err := sqlite.NewDriver(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite archive: %w", err)
		}
		l.Info("using SQLite archive", "path", path)
		return driver, nil

	case config.ArchivePostgres:
		driver, err := postgres.NewDriver(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL archive: %w", err)
		}
		l.Info("using PostgreSQL archive")
		return driver, nil

	default:
		return nil, fmt.Errorf("unknown archive driver %q", cfg.Storage.Archive)
	}
}

// OpenPublisher returns a Kafka publisher when brokers are configured and a
// no-op publisher otherwise.
func OpenPublisher(cfg *config.Config, l *slog.Logger) (eventstream.Publisher, error) {
	brokers := cfg.Brokers()
	if len(brokers) == 0 {
		return nop.NewPublisher(), nil
	}

	pub, err := kafka.NewPublisher(kafka.Config{
		Brokers: brokers,
		Topic:   cfg.Stream.KafkaTopic,
		Logger:  l,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka publisher: %w", err)
	}

	l.Info("publishing delivered messages to Kafka",
		"brokers", brokers,
		"topic", cfg.Stream.KafkaTopic,
	)
	return pub, nil
}

// ConversationName returns the conversation named on the command line, or the
// configured one.
func ConversationName(cfg *config.Config, args []string) (string, error) {
	if len(args) > 0 {
		cfg.Conversation.Name = args[0]
	}
	if err := cfg.ValidateConversation(); err != nil {
		return "", err
	}
	return cfg.Conversation.Name, nil
}
