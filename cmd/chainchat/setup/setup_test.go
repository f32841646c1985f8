package setup_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/chainchat/cmd/chainchat/setup"
	"github.com/papercomputeco/chainchat/pkg/config"
	"github.com/papercomputeco/chainchat/pkg/eventstream/nop"
	"github.com/papercomputeco/chainchat/pkg/ledger/inmemory"
	"github.com/papercomputeco/chainchat/pkg/logger"
)

var _ = Describe("setup", func() {
	var configDir string

	newCmd := func(keys ...string) *cobra.Command {
		cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
		cmd.Flags().Bool("debug", false, "")
		cmd.Flags().String("config-dir", configDir, "")
		setup.AddFlags(cmd, keys...)
		return cmd
	}

	BeforeEach(func() {
		var err error
		configDir, err = os.MkdirTemp("", "chainchat-setup-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(configDir)
	})

	Describe("RewindLimit", func() {
		It("caps counts at MaxRewind", func() {
			Expect(setup.RewindLimit(5)).To(Equal(uint(5)))
			Expect(setup.RewindLimit(1000)).To(Equal(uint(1000)))
			Expect(setup.RewindLimit(50000)).To(Equal(setup.MaxRewind))
		})
	})

	Describe("AddFlags", func() {
		It("registers uint and string flags from the registry", func() {
			cmd := newCmd(config.FlagCount, config.FlagRPCURL, config.FlagConfirmations)

			Expect(cmd.Flags().Lookup("count").Value.Type()).To(Equal("uint"))
			Expect(cmd.Flags().Lookup("confirmations").Value.Type()).To(Equal("uint"))
			Expect(cmd.Flags().Lookup("rpc-url").Value.Type()).To(Equal("string"))
		})
	})

	Describe("LoadConfig", func() {
		It("layers flags over the config file", func() {
			err := os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(`[conversation]
name = "from-file"
message_count = 7
`), 0o600)
			Expect(err).NotTo(HaveOccurred())

			cmd := newCmd(config.FlagCount)
			Expect(cmd.ParseFlags([]string{"--count", "3"})).To(Succeed())

			cfg, err := setup.LoadConfig(cmd, config.FlagCount)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Conversation.Name).To(Equal("from-file"))
			Expect(cfg.Conversation.MessageCount).To(Equal(uint(3)))
		})

		It("rejects invalid settings", func() {
			cmd := newCmd(config.FlagArchive)
			Expect(cmd.ParseFlags([]string{"--archive", "tape-drive"})).To(Succeed())

			_, err := setup.LoadConfig(cmd, config.FlagArchive)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("storage.archive"))
		})
	})

	Describe("OpenLedger", func() {
		It("opens the memory ledger", func() {
			cfg := config.NewDefaultConfig()
			cfg.Ledger.Provider = config.ProviderMemory

			ledger, err := setup.OpenLedger(context.Background(), cfg, true, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(ledger).To(BeAssignableToTypeOf(&inmemory.Ledger{}))
			Expect(ledger.Close()).To(Succeed())
		})

		It("validates the EVM settings before dialing", func() {
			cfg := config.NewDefaultConfig()

			_, err := setup.OpenLedger(context.Background(), cfg, true, logger.Nop())
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("ledger.rpc_url"))
			Expect(err.Error()).To(ContainSubstring("ledger.private_key"))
		})
	})

	Describe("OpenArchive", func() {
		It("returns nil when archiving is disabled", func() {
			arch, err := setup.OpenArchive(context.Background(), config.NewDefaultConfig(), configDir, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(arch).To(BeNil())
		})

		It("opens a SQLite archive in the config dir", func() {
			cfg := config.NewDefaultConfig()
			cfg.Storage.Archive = config.ArchiveSQLite
			cfg.Storage.SQLitePath = filepath.Join(configDir, "archive.db")

			arch, err := setup.OpenArchive(context.Background(), cfg, configDir, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(arch).NotTo(BeNil())
			Expect(arch.Close()).To(Succeed())

			_, err = os.Stat(cfg.Storage.SQLitePath)
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects unknown drivers", func() {
			cfg := config.NewDefaultConfig()
			cfg.Storage.Archive = "tape-drive"

			_, err := setup.OpenArchive(context.Background(), cfg, configDir, logger.Nop())
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("OpenPublisher", func() {
		It("returns the no-op publisher without brokers", func() {
			pub, err := setup.OpenPublisher(config.NewDefaultConfig(), logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(pub).To(BeAssignableToTypeOf(nop.NewPublisher()))
		})
	})

	Describe("ConversationName", func() {
		It("prefers the argument over the config", func() {
			cfg := config.NewDefaultConfig()
			cfg.Conversation.Name = "configured"

			name, err := setup.ConversationName(cfg, []string{"general"})
			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal("general"))

		})

		It("falls back to the configured name", func() {
			cfg := config.NewDefaultConfig()
			cfg.Conversation.Name = "configured"

			name, err := setup.ConversationName(cfg, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal("configured"))
		})

		It("requires a name", func() {
			_, err := setup.ConversationName(config.NewDefaultConfig(), nil)
			Expect(err).To(HaveOccurred())
		})
	})
})
