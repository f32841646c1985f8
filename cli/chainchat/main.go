package main

import (
	"os"

	chainchatcmder "github.com/papercomputeco/chainchat/cmd/chainchat"
)

func main() {
	cmd := chainchatcmder.NewChainchatCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
