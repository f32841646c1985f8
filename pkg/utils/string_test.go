package utils

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("truncate", func() {
	It("returns the string unchanged when within the limit", func() {
		Expect(Truncate("short", 10)).To(Equal("short"))
	})

	It("returns the string unchanged when exactly at the limit", func() {
		Expect(Truncate("12345", 5)).To(Equal("12345"))
	})

	It("truncates with ellipsis when over the limit", func() {
		result := Truncate("this is a long string", 10)
		Expect(result).To(Equal("this is a ..."))
	})
})

var _ = Describe("Mask", func() {
	DescribeTable("emits one asterisk per character up to ten",
		func(secret, want string) {
			Expect(Mask(secret)).To(Equal(want))
		},
		Entry("longer than ten", "12345678901", "**********"),
		Entry("exactly ten", "1234567890", "**********"),
		Entry("nine", "123456789", "*********"),
		Entry("four", "1234", "****"),
		Entry("one", "1", "*"),
		Entry("empty", "", ""),
	)
})

var _ = Describe("RedactURL", func() {
	It("masks API keys embedded in the path", func() {
		Expect(RedactURL("wss://eth-sepolia.g.alchemy.com/v2/abcdef123456")).
			To(Equal("wss://eth-sepolia.g.alchemy.com/**********"))
	})

	It("leaves bare endpoints readable", func() {
		Expect(RedactURL("ws://localhost:8546")).To(Equal("ws://localhost:8546"))
	})

	It("masks query strings", func() {
		Expect(RedactURL("https://rpc.example.com?key=abc")).To(Equal("https://rpc.example.com/********"))
	})

	It("masks unparseable input entirely", func() {
		Expect(RedactURL("not a url")).To(Equal("*********"))
	})
})
