package evm_test

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chainchat/pkg/conversation"
	"github.com/papercomputeco/chainchat/pkg/ledger/evm"
	testutils "github.com/papercomputeco/chainchat/pkg/utils/test"
)

const (
	testKey     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	otherAddr   = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
)

var _ = Describe("ParseWallet", func() {
	It("derives the address from the private key", func() {
		w, err := evm.ParseWallet("0x"+testKey, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Address()).To(Equal(common.HexToAddress(testAddress)))
	})

	It("accepts a matching address", func() {
		_, err := evm.ParseWallet(testKey, testAddress)
		Expect(err).NotTo(HaveOccurred())
	})

	It("accepts a matching uncompressed public key", func() {
		key, err := crypto.HexToECDSA(testKey)
		Expect(err).NotTo(HaveOccurred())
		pub := hex.EncodeToString(crypto.FromECDSAPub(&key.PublicKey))

		_, err = evm.ParseWallet(testKey, "0x"+pub)
		Expect(err).NotTo(HaveOccurred())

		// Without the 0x04 prefix as well.
		_, err = evm.ParseWallet(testKey, pub[2:])
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects a mismatched public key", func() {
		_, err := evm.ParseWallet(testKey, otherAddr)
		var walletErr *conversation.WalletError
		Expect(errors.As(err, &walletErr)).To(BeTrue())
	})

	It("rejects a malformed private key", func() {
		_, err := evm.ParseWallet("not-a-key", "")
		var walletErr *conversation.WalletError
		Expect(errors.As(err, &walletErr)).To(BeTrue())
	})

	It("rejects a malformed public key", func() {
		_, err := evm.ParseWallet(testKey, "0x1234")
		var walletErr *conversation.WalletError
		Expect(errors.As(err, &walletErr)).To(BeTrue())
	})
})

var _ = Describe("Dial", func() {
	It("validates the wallet before connecting", func() {
		_, err := evm.Dial(context.Background(), evm.Config{
			RPCURL:     "ws://127.0.0.1:1",
			PrivateKey: "bogus",
		})
		var walletErr *conversation.WalletError
		Expect(errors.As(err, &walletErr)).To(BeTrue())
	})

	It("rejects a missing endpoint", func() {
		_, err := evm.Dial(context.Background(), evm.Config{})
		var connErr *conversation.ConnectionError
		Expect(errors.As(err, &connErr)).To(BeTrue())
	})

	It("rejects an invalid contract address", func() {
		_, err := evm.Dial(context.Background(), evm.Config{
			RPCURL:   "ws://127.0.0.1:1",
			Contract: "0xnope",
		})
		Expect(err).To(MatchError(ContainSubstring("invalid contract address")))
	})
})

var _ = Describe("Client", func() {
	var (
		ctx     context.Context
		cancel  context.CancelFunc
		backend *fakeBackend
		client  *evm.Client
		id      conversation.ID
	)

	newClient := func(mutate func(*evm.Config)) *evm.Client {
		cfg := evm.Config{
			PrivateKey:   testKey,
			PublicKey:    testAddress,
			PollInterval: time.Millisecond,
		}
		if mutate != nil {
			mutate(&cfg)
		}
		c, err := evm.NewClient(backend, cfg)
		Expect(err).NotTo(HaveOccurred())
		return c
	}

	send := func(messages ...string) {
		for _, m := range messages {
			_, err := client.Send(ctx, id, m)
			Expect(err).NotTo(HaveOccurred())
		}
	}

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		backend = newFakeBackend(evm.DefaultContract)
		client = newClient(nil)
		id = conversation.NewID("test")
	})

	AfterEach(func() {
		cancel()
	})

	Describe("Send", func() {
		It("returns the block the event was recorded in", func() {
			p, err := client.Send(ctx, id, "hello")
			Expect(err).NotTo(HaveOccurred())
			Expect(p).To(Equal(conversation.Pointer(1)))
			Expect(backend.senders).To(ConsistOf(common.HexToAddress(testAddress)))
		})

		It("waits for the configured confirmations", func() {
			client = newClient(func(c *evm.Config) { c.Confirmations = 3 })
			backend.advanceOnPoll = true

			p, err := client.Send(ctx, id, "hello")
			Expect(err).NotTo(HaveOccurred())
			Expect(p).To(Equal(conversation.Pointer(1)))

			head, err := backend.BlockNumber(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(head).To(BeNumerically(">=", 3))
		})

		It("reports a reverted transaction", func() {
			backend.revert = true

			_, err := client.Send(ctx, id, "hello")
			var txErr *conversation.TransactionError
			Expect(errors.As(err, &txErr)).To(BeTrue())
			Expect(txErr.TxHash).NotTo(BeEmpty())
			Expect(err).To(MatchError(evm.ErrReverted))
		})

		It("requires a wallet", func() {
			client = newClient(func(c *evm.Config) {
				c.PrivateKey = ""
				c.PublicKey = ""
			})

			_, err := client.Send(ctx, id, "hello")
			var walletErr *conversation.WalletError
			Expect(errors.As(err, &walletErr)).To(BeTrue())
		})
	})

	Describe("LastPointer", func() {
		It("is NoPointer for an empty conversation", func() {
			p, err := client.LastPointer(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.IsNone()).To(BeTrue())
		})

		It("tracks the newest event per conversation", func() {
			send("a", "b")
			backend.mine(common.Hash(conversation.NewID("other")), "x")

			p, err := client.LastPointer(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(p).To(Equal(conversation.Pointer(2)))
		})

		It("surfaces call failures", func() {
			backend.callErr = errors.New("boom")
			_, err := client.LastPointer(ctx, id)
			Expect(err).To(MatchError("boom"))
		})
	})

	Describe("LogsAt", func() {
		It("returns only the conversation's events at the block", func() {
			send("a")
			backend.mine(common.Hash(conversation.NewID("other")), "x")
			send("b")

			logs, err := client.LogsAt(ctx, id, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(logs).To(HaveLen(1))

			text, prev, err := conversation.DecodePayload(logs[0].Data)
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("b"))
			Expect(prev).To(Equal(conversation.Pointer(1)))

			logs, err = client.LogsAt(ctx, id, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(logs).To(BeEmpty())
		})
	})

	Describe("as a conversation ledger", func() {
		It("rewinds the newest messages oldest first", func() {
			send("a", "b", "c")

			res, err := conversation.NewRewinder(client, nil).Rewind(ctx, id, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Texts()).To(Equal([]string{"b", "c"}))
			Expect(res.Cursor).To(Equal(conversation.Pointer(1)))
		})

		It("hands off from rewind to follow without gaps or duplicates", func() {
			send("a", "b")

			collector := testutils.NewCollector()
			c := conversation.New("test", client, nil)

			done := make(chan error, 1)
			go func() {
				defer GinkgoRecover()
				done <- c.Replay(ctx, 10, collector)
			}()

			Eventually(collector.Texts).Should(Equal([]string{"a", "b"}))
			send("c")
			Eventually(collector.Texts).Should(Equal([]string{"a", "b", "c"}))

			cancel()
			Eventually(done).Should(Receive(MatchError(context.Canceled)))
		})
	})

	Describe("Subscribe", func() {
		drain := func(sub conversation.Subscription, n int) []conversation.Log {
			var out []conversation.Log
			for range n {
				var l conversation.Log
				Eventually(sub.Logs()).Should(Receive(&l))
				out = append(out, l)
			}
			return out
		}

		It("backfills from the start pointer then streams live events", func() {
			send("a", "b", "c")

			sub, err := client.Subscribe(ctx, id, 2)
			Expect(err).NotTo(HaveOccurred())
			defer sub.Close()

			logs := drain(sub, 2)
			Expect(logs[0].Pointer).To(Equal(conversation.Pointer(2)))
			Expect(logs[1].Pointer).To(Equal(conversation.Pointer(3)))

			send("d")
			logs = drain(sub, 1)
			Expect(logs[0].Pointer).To(Equal(conversation.Pointer(4)))
			Consistently(sub.Logs(), 50*time.Millisecond).ShouldNot(Receive())
		})

		It("does not repeat events mined while backfilling", func() {
			send("a")
			backend.onBlockNumber = func() {
				backend.mine(common.Hash(id), "b")
			}

			sub, err := client.Subscribe(ctx, id, 1)
			Expect(err).NotTo(HaveOccurred())
			defer sub.Close()

			logs := drain(sub, 2)
			Expect(logs[0].Pointer).To(Equal(conversation.Pointer(1)))
			Expect(logs[1].Pointer).To(Equal(conversation.Pointer(2)))
			Consistently(sub.Logs(), 50*time.Millisecond).ShouldNot(Receive())
		})

		It("streams only new events from NoPointer", func() {
			send("a")

			sub, err := client.Subscribe(ctx, id, conversation.NoPointer)
			Expect(err).NotTo(HaveOccurred())
			defer sub.Close()

			Consistently(sub.Logs(), 50*time.Millisecond).ShouldNot(Receive())
			send("b")
			logs := drain(sub, 1)
			Expect(logs[0].Pointer).To(Equal(conversation.Pointer(2)))
		})

		It("drops removed logs and other conversations", func() {
			sub, err := client.Subscribe(ctx, id, conversation.NoPointer)
			Expect(err).NotTo(HaveOccurred())
			defer sub.Close()

			backend.mineRemoved(common.Hash(id), "gone")
			backend.mine(common.Hash(conversation.NewID("other")), "x")
			Consistently(sub.Logs(), 50*time.Millisecond).ShouldNot(Receive())
		})

		It("reports a failed backfill", func() {
			backend.filterErr = errors.New("range too large")
			_, err := client.Subscribe(ctx, id, 1)
			Expect(err).To(MatchError("range too large"))
		})

		It("delivers a terminal subscription error and closes", func() {
			sub, err := client.Subscribe(ctx, id, conversation.NoPointer)
			Expect(err).NotTo(HaveOccurred())
			defer sub.Close()

			backend.failSubscriptions(errors.New("connection reset"))
			Eventually(sub.Err()).Should(Receive(MatchError("connection reset")))
			Eventually(sub.Logs()).Should(BeClosed())
		})

		It("closes the stream on Close", func() {
			sub, err := client.Subscribe(ctx, id, conversation.NoPointer)
			Expect(err).NotTo(HaveOccurred())

			sub.Close()
			sub.Close()
			Eventually(sub.Logs()).Should(BeClosed())
		})
	})
})
