package config_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chainchat/pkg/config"
)

var _ = Describe("Validation", func() {
	const (
		testKey     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
		testAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	)

	var cfg *config.Config

	BeforeEach(func() {
		cfg = config.NewDefaultConfig()
		cfg.Ledger.RPCURL = "wss://rpc.example.com/key"
		cfg.Conversation.Name = "test"
	})

	It("accepts the defaults", func() {
		Expect(cfg.Validate()).To(Succeed())
		Expect(cfg.ValidateLedger(false)).To(Succeed())
		Expect(cfg.ValidateFollow()).To(Succeed())
		Expect(cfg.ValidateConversation()).To(Succeed())
		Expect(cfg.ValidateProducer()).To(Succeed())
	})

	DescribeTable("Validate rejects",
		func(mutate func(*config.Config), msg string) {
			mutate(cfg)
			Expect(cfg.Validate()).To(MatchError(ContainSubstring(msg)))
		},
		Entry("an unknown provider", func(c *config.Config) { c.Ledger.Provider = "solana" }, "ledger.provider"),
		Entry("an unknown archive", func(c *config.Config) { c.Storage.Archive = "mongo" }, "storage.archive"),
		Entry("postgres without a dsn", func(c *config.Config) { c.Storage.Archive = "postgres" }, "storage.postgres_dsn"),
		Entry("brokers without a topic", func(c *config.Config) {
			c.Stream.KafkaBrokers = "localhost:9092"
			c.Stream.KafkaTopic = ""
		}, "stream.kafka_topic"),
	)

	DescribeTable("ValidateLedger rejects",
		func(mutate func(*config.Config), write bool, msg string) {
			mutate(cfg)
			Expect(cfg.ValidateLedger(write)).To(MatchError(ContainSubstring(msg)))
		},
		Entry("a missing rpc url", func(c *config.Config) { c.Ledger.RPCURL = "" }, false, "ledger.rpc_url: required"),
		Entry("an unsupported scheme", func(c *config.Config) { c.Ledger.RPCURL = "ftp://rpc.example.com" }, false, "unsupported scheme"),
		Entry("a bad contract", func(c *config.Config) { c.Ledger.Contract = "0x1234" }, false, "ledger.contract"),
		Entry("zero confirmations", func(c *config.Config) { c.Ledger.Confirmations = 0 }, false, "ledger.confirmations"),
		Entry("a missing key when sending", func(c *config.Config) {}, true, "ledger.private_key: required"),
		Entry("a malformed key", func(c *config.Config) { c.Ledger.PrivateKey = "xyz" }, false, "ledger.private_key"),
		Entry("a mismatched public key", func(c *config.Config) {
			c.Ledger.PrivateKey = testKey
			c.Ledger.PublicKey = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
		}, false, "does not match"),
	)

	It("accepts a consistent wallet", func() {
		cfg.Ledger.PrivateKey = testKey
		cfg.Ledger.PublicKey = testAddress
		Expect(cfg.ValidateLedger(true)).To(Succeed())
	})

	It("reports every problem at once", func() {
		cfg.Ledger.RPCURL = ""
		cfg.Ledger.Contract = "nope"
		err := cfg.ValidateLedger(true)
		Expect(err).To(MatchError(ContainSubstring("ledger.rpc_url")))
		Expect(err).To(MatchError(ContainSubstring("ledger.contract")))
		Expect(err).To(MatchError(ContainSubstring("ledger.private_key")))
	})

	It("requires a websocket endpoint to follow", func() {
		cfg.Ledger.RPCURL = "https://rpc.example.com"
		Expect(cfg.ValidateFollow()).To(MatchError(ContainSubstring("ws://")))
	})

	It("skips chain checks for the memory ledger", func() {
		cfg.Ledger.Provider = config.ProviderMemory
		cfg.Ledger.RPCURL = ""
		Expect(cfg.ValidateLedger(true)).To(Succeed())
		Expect(cfg.ValidateFollow()).To(Succeed())
	})

	It("requires a conversation name", func() {
		cfg.Conversation.Name = ""
		Expect(cfg.ValidateConversation()).To(MatchError(ContainSubstring("conversation.name")))
	})

	It("requires a non-zero message count and size", func() {
		cfg.Conversation.MessageCount = 0
		cfg.Conversation.MessageSize = 0
		err := cfg.ValidateProducer()
		Expect(err).To(MatchError(ContainSubstring("message_count")))
		Expect(err).To(MatchError(ContainSubstring("message_size")))
	})

	It("splits the broker list", func() {
		cfg.Stream.KafkaBrokers = "a:9092, b:9092,,"
		Expect(cfg.Brokers()).To(Equal([]string{"a:9092", "b:9092"}))
	})
})
