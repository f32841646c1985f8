// Package archivetest holds the behaviour every archive.Driver must share.
package archivetest

import (
	"context"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chainchat/pkg/archive"
	"github.com/papercomputeco/chainchat/pkg/conversation"
)

// DriverBehaviour registers specs against the driver returned by newDriver.
// Each test uses a fresh conversation so drivers may share state.
func DriverBehaviour(newDriver func() archive.Driver) {
	var (
		ctx    context.Context
		driver archive.Driver
		id     conversation.ID
	)

	record := func(pointer conversation.Pointer, index uint, prev conversation.Pointer, text string) archive.Record {
		return archive.NewRecord(conversation.Message{
			ConversationID: id,
			Pointer:        pointer,
			Index:          index,
			Prev:           prev,
			Text:           text,
		})
	}

	put := func(recs ...archive.Record) {
		for _, rec := range recs {
			inserted, err := driver.Put(ctx, rec)
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeTrue())
		}
	}

	texts := func(recs []archive.Record) []string {
		out := make([]string, len(recs))
		for i, r := range recs {
			out[i] = r.Message
		}
		return out
	}

	BeforeEach(func() {
		ctx = context.Background()
		driver = nil
		driver = newDriver()
		id = conversation.NewID("archive-" + uuid.NewString())
	})

	AfterEach(func() {
		if driver != nil {
			Expect(driver.Close()).To(Succeed())
		}
	})

	Describe("Put", func() {
		It("is idempotent on conversation, pointer and index", func() {
			put(record(2, 0, 0, "a"))

			inserted, err := driver.Put(ctx, record(2, 0, 0, "a"))
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeFalse())

			recs, err := driver.List(ctx, id, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(HaveLen(1))
		})

		It("stamps the archive time", func() {
			before := time.Now().Add(-time.Minute)
			put(record(2, 0, 0, "a"))

			rec, err := driver.Get(ctx, id, 2, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.ArchivedAt).To(BeTemporally(">", before))
		})
	})

	Describe("Get", func() {
		It("round trips every field", func() {
			put(record(5, 1, 2, "hello"))

			rec, err := driver.Get(ctx, id, 5, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.ToMessage()).To(Equal(conversation.Message{
				ConversationID: id,
				Pointer:        5,
				Index:          1,
				Prev:           2,
				Text:           "hello",
			}))
		})

		It("returns ErrNotFound for a missing key", func() {
			_, err := driver.Get(ctx, id, 9, 0)
			Expect(err).To(BeAssignableToTypeOf(archive.ErrNotFound{}))
		})
	})

	Describe("List", func() {
		BeforeEach(func() {
			put(
				record(10, 0, 5, "c"),
				record(2, 0, 0, "a"),
				record(5, 0, 2, "b"),
				record(10, 1, 10, "d"),
			)
		})

		It("returns every record oldest first", func() {
			recs, err := driver.List(ctx, id, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(texts(recs)).To(Equal([]string{"a", "b", "c", "d"}))
		})

		It("returns the newest records when limited", func() {
			recs, err := driver.List(ctx, id, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(texts(recs)).To(Equal([]string{"c", "d"}))
		})

		It("is empty for another conversation", func() {
			recs, err := driver.List(ctx, conversation.NewID("nobody-"+uuid.NewString()), 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(BeEmpty())
		})
	})

	Describe("Checkpoint", func() {
		It("is NoPointer for an empty conversation", func() {
			p, err := driver.Checkpoint(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.IsNone()).To(BeTrue())
		})

		It("is the newest archived pointer", func() {
			put(record(2, 0, 0, "a"), record(7, 0, 2, "b"), record(4, 0, 2, "late"))

			p, err := driver.Checkpoint(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(p).To(Equal(conversation.Pointer(7)))
		})
	})
}
