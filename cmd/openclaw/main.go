package main

import (
	"os"

	"github.com/openclaw/openclaw/cmd/openclaw/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
