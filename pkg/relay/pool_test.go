package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chainchat/pkg/archive"
	"github.com/papercomputeco/chainchat/pkg/archive/inmemory"
	"github.com/papercomputeco/chainchat/pkg/conversation"
	"github.com/papercomputeco/chainchat/pkg/eventstream"
	"github.com/papercomputeco/chainchat/pkg/logger"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.MessageDeliveredEvent
	err    error
}

func (p *recordingPublisher) PublishMessage(_ context.Context, event *eventstream.MessageDeliveredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) pointers() []uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]uint64, len(p.events))
	for i, e := range p.events {
		out[i] = e.Pointer
	}
	return out
}

// blockingPublisher holds every publish until release is closed.
type blockingPublisher struct {
	release chan struct{}
}

func (p *blockingPublisher) PublishMessage(context.Context, *eventstream.MessageDeliveredEvent) error {
	<-p.release
	return nil
}

func (p *blockingPublisher) Close() error { return nil }

func message(id conversation.ID, pointer conversation.Pointer, text string) conversation.Message {
	return conversation.Message{ConversationID: id, Pointer: pointer, Text: text}
}

var _ = Describe("Relay Pool", func() {
	var (
		ctx       context.Context
		driver    *inmemory.Driver
		publisher *recordingPublisher
		wp        *Pool
		id        conversation.ID
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
		publisher = &recordingPublisher{}
		id = conversation.NewID("test")

		var err error
		wp, err = NewPool(&Config{
			Archive:   driver,
			Publisher: publisher,
			Logger:    logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		wp.Close()
	})

	It("archives then publishes every job in conversation order", func() {
		for i := 1; i <= 20; i++ {
			Expect(wp.Enqueue(ctx, Job{Conversation: "test", Message: message(id, conversation.Pointer(i), "m")})).To(Succeed())
		}

		// Drain the worker pool to ensure processing completes before assertions
		wp.Close()

		recs, err := driver.List(ctx, id, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(recs).To(HaveLen(20))

		pointers := publisher.pointers()
		Expect(pointers).To(HaveLen(20))
		for i, p := range pointers {
			Expect(p).To(Equal(uint64(i + 1)))
		}
		Expect(publisher.events[0].Conversation.Name).To(Equal("test"))
	})

	It("does not publish messages that were already archived", func() {
		_, err := driver.Put(ctx, archive.NewRecord(message(id, 1, "a")))
		Expect(err).NotTo(HaveOccurred())

		Expect(wp.Enqueue(ctx, Job{Message: message(id, 1, "a")})).To(Succeed())
		Expect(wp.Enqueue(ctx, Job{Message: message(id, 2, "b")})).To(Succeed())
		wp.Close()

		Expect(publisher.pointers()).To(Equal([]uint64{2}))
	})

	It("keeps working after a publish failure", func() {
		publisher.err = errors.New("broker down")
		Expect(wp.Enqueue(ctx, Job{Message: message(id, 1, "a")})).To(Succeed())
		Expect(wp.Enqueue(ctx, Job{Message: message(id, 2, "b")})).To(Succeed())
		wp.Close()

		recs, err := driver.List(ctx, id, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(recs).To(HaveLen(2))
	})

	It("maps a conversation to a single worker", func() {
		Expect(wp.shard(id)).To(Equal(wp.shard(id)))
		Expect(wp.shard(id)).To(BeNumerically("<", 3))
	})

	It("rejects jobs after Close", func() {
		wp.Close()
		Expect(wp.Enqueue(ctx, Job{Message: message(id, 1, "a")})).To(MatchError(ErrClosed))
	})

	It("blocks instead of dropping when the queue is full", func() {
		blocker := &blockingPublisher{release: make(chan struct{})}
		full, err := NewPool(&Config{
			Publisher:  blocker,
			NumWorkers: 1,
			QueueSize:  1,
		})
		Expect(err).NotTo(HaveOccurred())

		// One job in flight, one queued.
		Expect(full.Enqueue(ctx, Job{Message: message(id, 1, "a")})).To(Succeed())
		Eventually(func() int { return len(full.queues[0]) }).Should(Equal(0))
		Expect(full.Enqueue(ctx, Job{Message: message(id, 2, "b")})).To(Succeed())

		timeout, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		Expect(full.Enqueue(timeout, Job{Message: message(id, 3, "c")})).To(MatchError(context.DeadlineExceeded))

		close(blocker.release)
		full.Close()
	})

	Describe("Sink", func() {
		It("enqueues delivered messages", func() {
			sink := Sink(wp, "test")
			Expect(sink.Deliver(ctx, message(id, 4, "d"))).To(Succeed())
			wp.Close()

			p, err := driver.Checkpoint(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(p).To(Equal(conversation.Pointer(4)))
		})
	})
})
