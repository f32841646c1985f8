package main

import (
	"os"

	servecmder "github.com/papercomputeco/chainchat/cmd/chainchat/serve"
)

func main() {
	cmd := servecmder.NewServeCmd()
	cmd.Use = "chainchatapi"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .chainchat/ config directory")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
