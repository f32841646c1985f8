package inmemory_test

import (
	. "github.com/onsi/ginkgo/v2"

	"github.com/papercomputeco/chainchat/pkg/archive"
	"github.com/papercomputeco/chainchat/pkg/archive/archivetest"
	"github.com/papercomputeco/chainchat/pkg/archive/inmemory"
)

var _ = Describe("Driver", func() {
	archivetest.DriverBehaviour(func() archive.Driver {
		return inmemory.NewDriver()
	})
})
