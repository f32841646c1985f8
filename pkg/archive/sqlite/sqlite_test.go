package sqlite_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chainchat/pkg/archive"
	"github.com/papercomputeco/chainchat/pkg/archive/archivetest"
	"github.com/papercomputeco/chainchat/pkg/archive/sqlite"
	"github.com/papercomputeco/chainchat/pkg/conversation"
)

var _ = Describe("Driver", func() {
	Describe("NewDriver", func() {
		It("creates a driver with file database", func() {
			dbPath := filepath.Join(GinkgoT().TempDir(), "archive.db")

			d, err := sqlite.NewDriver(context.Background(), dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer d.Close()

			// Verify file was created
			_, err = os.Stat(dbPath)
			Expect(err).NotTo(HaveOccurred())
		})

		It("keeps records across reopen", func() {
			ctx := context.Background()
			dbPath := filepath.Join(GinkgoT().TempDir(), "archive.db")
			id := conversation.NewID("reopen")

			d, err := sqlite.NewDriver(ctx, dbPath)
			Expect(err).NotTo(HaveOccurred())
			_, err = d.Put(ctx, archive.NewRecord(conversation.Message{ConversationID: id, Pointer: 3, Text: "kept"}))
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Close()).To(Succeed())

			d, err = sqlite.NewDriver(ctx, dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer d.Close()

			p, err := d.Checkpoint(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(p).To(Equal(conversation.Pointer(3)))
		})
	})

	archivetest.DriverBehaviour(func() archive.Driver {
		d, err := sqlite.NewDriver(context.Background(), ":memory:")
		Expect(err).NotTo(HaveOccurred())
		return d
	})
})
