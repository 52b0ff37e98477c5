package main

import (
	"os"

	"github.com/moolen-fork/changeintel/cmd/changeintel/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
