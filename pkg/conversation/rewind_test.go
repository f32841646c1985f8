package conversation_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chainchat/pkg/conversation"
	"github.com/papercomputeco/chainchat/pkg/ledger/inmemory"
	testutils "github.com/papercomputeco/chainchat/pkg/utils/test"
)

// seedDemo records "a", "b", "c" at pointers 2, 5 and 10, so the chain reads
// 10 -> 5 -> 2 -> sentinel from the head.
func seedDemo(ctx context.Context, ledger *inmemory.Ledger, id conversation.ID) {
	ledger.Skip(1)
	p, err := ledger.Send(ctx, id, "a")
	Expect(err).NotTo(HaveOccurred())
	Expect(p).To(Equal(conversation.Pointer(2)))

	ledger.Skip(2)
	p, err = ledger.Send(ctx, id, "b")
	Expect(err).NotTo(HaveOccurred())
	Expect(p).To(Equal(conversation.Pointer(5)))

	ledger.Skip(4)
	p, err = ledger.Send(ctx, id, "c")
	Expect(err).NotTo(HaveOccurred())
	Expect(p).To(Equal(conversation.Pointer(10)))
}

var _ = Describe("Rewinder", func() {
	var (
		ctx      context.Context
		ledger   *inmemory.Ledger
		mock     *testutils.MockLedger
		rewinder *conversation.Rewinder
		id       conversation.ID
	)

	BeforeEach(func() {
		ctx = context.Background()
		ledger = inmemory.New()
		mock = testutils.NewMockLedger(ledger)
		rewinder = conversation.NewRewinder(mock, nil)
		id = conversation.NewID("demo")
		seedDemo(ctx, ledger, id)
	})

	Context("on the demo conversation", func() {
		It("returns the two most recent messages oldest first", func() {
			result, err := rewinder.Rewind(ctx, id, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Texts()).To(Equal([]string{"b", "c"}))
			Expect(result.Head).To(Equal(conversation.Pointer(10)))
		})

		It("points the cursor at the next unread position", func() {
			result, err := rewinder.Rewind(ctx, id, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Cursor).To(Equal(conversation.Pointer(2)))
			Expect(mock.Visited()).To(Equal([]conversation.Pointer{10, 5}))
		})

		It("returns the whole history with a sentinel cursor when the limit is larger", func() {
			result, err := rewinder.Rewind(ctx, id, 50)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Texts()).To(Equal([]string{"a", "b", "c"}))
			Expect(result.Cursor).To(Equal(conversation.NoPointer))
		})

		It("returns exactly as many messages as there are events", func() {
			result, err := rewinder.Rewind(ctx, id, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Texts()).To(Equal([]string{"a", "b", "c"}))
			Expect(result.Cursor).To(Equal(conversation.NoPointer))
		})

		It("records each message's own pointer and predecessor", func() {
			result, err := rewinder.Rewind(ctx, id, 3)
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Messages[0].Pointer).To(Equal(conversation.Pointer(2)))
			Expect(result.Messages[0].Prev).To(Equal(conversation.NoPointer))
			Expect(result.Messages[1].Pointer).To(Equal(conversation.Pointer(5)))
			Expect(result.Messages[1].Prev).To(Equal(conversation.Pointer(2)))
			Expect(result.Messages[2].Pointer).To(Equal(conversation.Pointer(10)))
			Expect(result.Messages[2].Prev).To(Equal(conversation.Pointer(5)))
			Expect(result.Messages[2].ConversationID).To(Equal(id))
		})

		It("performs no traversal for a zero limit", func() {
			result, err := rewinder.Rewind(ctx, id, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Messages).To(BeEmpty())
			Expect(result.Cursor).To(Equal(conversation.Pointer(10)))
			Expect(mock.Visited()).To(BeEmpty())
		})

		It("pages further back from a cursor", func() {
			first, err := rewinder.Rewind(ctx, id, 2)
			Expect(err).NotTo(HaveOccurred())

			older, err := rewinder.RewindFrom(ctx, id, first.Cursor, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(older.Texts()).To(Equal([]string{"a"}))
			Expect(older.Cursor).To(Equal(conversation.NoPointer))
		})

		It("follows on from the block after the head", func() {
			result, err := rewinder.Rewind(ctx, id, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.FollowFrom()).To(Equal(conversation.Pointer(11)))
		})
	})

	It("ignores events from other conversations", func() {
		other := conversation.NewID("other")
		_, err := ledger.Send(ctx, other, "noise")
		Expect(err).NotTo(HaveOccurred())

		result, err := rewinder.Rewind(ctx, id, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Texts()).To(Equal([]string{"a", "b", "c"}))
	})

	Context("on an empty conversation", func() {
		It("returns no messages and a sentinel cursor", func() {
			result, err := rewinder.Rewind(ctx, conversation.NewID("empty"), 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Messages).To(BeEmpty())
			Expect(result.Cursor).To(Equal(conversation.NoPointer))
			Expect(result.FollowFrom()).To(Equal(conversation.NoPointer))
		})
	})

	Context("when the head lookup fails", func() {
		It("returns a ChainQueryError", func() {
			mock.LastPointerErr = errors.New("rpc down")

			result, err := rewinder.Rewind(ctx, id, 2)
			Expect(result).To(BeNil())

			var queryErr *conversation.ChainQueryError
			Expect(errors.As(err, &queryErr)).To(BeTrue())
			Expect(queryErr.Op).To(Equal("last pointer"))
			Expect(err).To(MatchError(ContainSubstring("rpc down")))
		})
	})

	Context("when a log query fails", func() {
		It("returns a ChainQueryError for that pointer", func() {
			mock.LogsAtErr = errors.New("timeout")

			_, err := rewinder.Rewind(ctx, id, 2)
			var queryErr *conversation.ChainQueryError
			Expect(errors.As(err, &queryErr)).To(BeTrue())
			Expect(queryErr.Pointer).To(Equal(conversation.Pointer(10)))
		})
	})

	Context("when a pointer yields no events", func() {
		It("fails instead of silently stopping", func() {
			mock.Empty[5] = true

			result, err := rewinder.Rewind(ctx, id, 3)
			Expect(result).To(BeNil())
			Expect(errors.Is(err, conversation.ErrBrokenChain)).To(BeTrue())

			var queryErr *conversation.ChainQueryError
			Expect(errors.As(err, &queryErr)).To(BeTrue())
			Expect(queryErr.Pointer).To(Equal(conversation.Pointer(5)))
		})
	})

	Context("when an event is malformed", func() {
		var badAt conversation.Pointer

		BeforeEach(func() {
			var err error
			badAt, err = ledger.AppendRaw(id, []byte("not an abi payload"))
			Expect(err).NotTo(HaveOccurred())
			_, err = ledger.Send(ctx, id, "d")
			Expect(err).NotTo(HaveOccurred())
		})

		It("aborts with a DecodeError and no partial result", func() {
			result, err := rewinder.Rewind(ctx, id, 10)
			Expect(result).To(BeNil())

			var decodeErr *conversation.DecodeError
			Expect(errors.As(err, &decodeErr)).To(BeTrue())
			Expect(decodeErr.Pointer).To(Equal(badAt))
		})

		It("stops visiting pointers after the malformed event", func() {
			_, err := rewinder.Rewind(ctx, id, 10)
			Expect(err).To(HaveOccurred())
			Expect(mock.Visited()).To(Equal([]conversation.Pointer{badAt + 1, badAt}))
		})

		It("succeeds when the limit stops before the malformed event", func() {
			result, err := rewinder.Rewind(ctx, id, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Texts()).To(Equal([]string{"d"}))
			Expect(result.Cursor).To(Equal(badAt))
		})
	})

	Context("when several events share one block", func() {
		var batchAt conversation.Pointer

		BeforeEach(func() {
			var err error
			batchAt, err = ledger.SendBatch(id, "d", "e")
			Expect(err).NotTo(HaveOccurred())
		})

		It("starts from the newest event in the head block", func() {
			result, err := rewinder.Rewind(ctx, id, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Texts()).To(Equal([]string{"e"}))
			Expect(result.Cursor).To(Equal(batchAt))
			Expect(result.FollowFrom()).To(Equal(batchAt + 1))
		})

		It("reads the whole block with a single query", func() {
			result, err := rewinder.Rewind(ctx, id, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Texts()).To(Equal([]string{"d", "e"}))
			Expect(result.Cursor).To(Equal(conversation.Pointer(10)))
			Expect(mock.Visited()).To(Equal([]conversation.Pointer{batchAt}))
		})

		It("continues past the block in append order", func() {
			result, err := rewinder.Rewind(ctx, id, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Texts()).To(Equal([]string{"a", "b", "c", "d", "e"}))
			Expect(result.Cursor).To(Equal(conversation.NoPointer))
			Expect(mock.Visited()).To(Equal([]conversation.Pointer{batchAt, 10, 5, 2}))
		})
	})

	Context("when a block in the middle holds several events", func() {
		var (
			batchID conversation.ID
			first   conversation.Pointer
			batchAt conversation.Pointer
		)

		BeforeEach(func() {
			batchID = conversation.NewID("batch")

			var err error
			first, err = ledger.Send(ctx, batchID, "a")
			Expect(err).NotTo(HaveOccurred())
			batchAt, err = ledger.SendBatch(batchID, "b", "c")
			Expect(err).NotTo(HaveOccurred())
			_, err = ledger.Send(ctx, batchID, "d")
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns every message once, oldest first", func() {
			result, err := rewinder.Rewind(ctx, batchID, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Texts()).To(Equal([]string{"a", "b", "c", "d"}))
			Expect(result.Cursor).To(Equal(conversation.NoPointer))
			Expect(mock.Visited()).To(Equal([]conversation.Pointer{batchAt + 1, batchAt, first}))
		})

		It("stops mid-block at the limit with the cursor on that block", func() {
			result, err := rewinder.Rewind(ctx, batchID, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Texts()).To(Equal([]string{"c", "d"}))
			Expect(result.Cursor).To(Equal(batchAt))
		})
	})

	Context("when an event links back to its own block without a sibling", func() {
		It("fails after a single query of that block", func() {
			loopAt := ledger.Height() + 1
			data, err := conversation.EncodePayload("loop", loopAt)
			Expect(err).NotTo(HaveOccurred())
			_, err = ledger.AppendRaw(id, data)
			Expect(err).NotTo(HaveOccurred())

			result, err := rewinder.Rewind(ctx, id, 10)
			Expect(result).To(BeNil())
			Expect(errors.Is(err, conversation.ErrBrokenChain)).To(BeTrue())
			Expect(mock.Visited()).To(Equal([]conversation.Pointer{loopAt}))
		})
	})

	Context("when an event links forward", func() {
		It("fails instead of walking forward", func() {
			data, err := conversation.EncodePayload("forward", ledger.Height()+5)
			Expect(err).NotTo(HaveOccurred())
			at, err := ledger.AppendRaw(id, data)
			Expect(err).NotTo(HaveOccurred())

			_, err = rewinder.Rewind(ctx, id, 10)
			Expect(errors.Is(err, conversation.ErrBrokenChain)).To(BeTrue())
			Expect(mock.Visited()).To(Equal([]conversation.Pointer{at}))
		})
	})

	It("stops when the context is cancelled", func() {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := rewinder.Rewind(cancelled, id, 3)
		Expect(err).To(MatchError(context.Canceled))
	})
})
