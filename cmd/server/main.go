package main

import (
	"os"

	"ace-hls-relay/internal/platform/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	_ = config.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
